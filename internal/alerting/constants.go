// Package alerting provides the clinical alert and notification engine.
package alerting

import "time"

// Rule type identifiers. Each names one entry in the static rule catalog.
const (
	RuleGlucoseSpikeCritical  = "glucoseSpikeCritical"
	RuleHighRiskCritical      = "highRiskCritical"
	RuleConsistentHighWarning = "consistentHighWarning"
	RuleLogDataReminder       = "logDataReminder"
	RulePositiveReinforcement = "positiveReinforcement"
	RulePatternDetectedTip    = "patternDetectedTip"
)

// Preference categories group rules for per-patient opt-in. Category is an
// explicit field on each rule, never inferred from the rule type name.
const (
	CategoryCritical = "critical"
	CategoryWarning  = "warning"
	CategoryReminder = "reminder"
	CategoryPositive = "positive"
)

// Dispatch outcomes recorded in the notification log. All three anchor the
// cooldown for future admission checks.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
	OutcomeMock   = "mock"
)

// Preference rejection reasons. A rejection is a normal terminal outcome for
// a candidate, not an error, and leaves no notification record.
const (
	RejectNoSettings = "no_settings"
	RejectDisabled   = "disabled"
	RejectNoToken    = "no_token"
)

// Candidate pipeline statuses reported by manual and scheduled runs.
const (
	StatusSuppressed = "suppressed"
	StatusRejected   = "rejected"
	StatusError      = "error"
)

// Template parameter keys produced by evaluators and consumed by the
// content resolver.
const (
	ParamValue    = "value"
	ParamPercent  = "percent"
	ParamDays     = "days"
	ParamMean     = "mean"
	ParamHours    = "hours"
	ParamReadings = "readings"
)

// Clinical thresholds and windows used by the built-in rules.
const (
	spikeThresholdMgDl   = 300.0
	spikeWindow          = 30 * time.Minute
	highRiskPercent      = 90.0
	highDailyMeanMgDl    = 180.0
	highDailyMeanDays    = 3
	inactivityWindow     = 24 * time.Hour
	targetRangeLowMgDl   = 80.0
	targetRangeHighMgDl  = 130.0
	targetMinReadings    = 14
	eveningMeanMgDl      = 200.0
	eveningPatternDays   = 4
	eveningWindowStartHr = 19
	eveningWindowEndHr   = 22
)
