package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glucoguard/glucoguard/internal/datastore/entities"
	"github.com/glucoguard/glucoguard/internal/datastore/repository"
)

// DefaultCatalog returns the built-in clinical rule set.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		&AlertRule{
			Type:     RuleGlucoseSpikeCritical,
			Category: CategoryCritical,
			Cooldown: 3 * time.Hour,
			Evaluate: evaluateGlucoseSpike,
		},
		&AlertRule{
			Type:     RuleHighRiskCritical,
			Category: CategoryCritical,
			Cooldown: 7 * 24 * time.Hour,
			Evaluate: evaluateHighRisk,
		},
		&AlertRule{
			Type:     RuleConsistentHighWarning,
			Category: CategoryWarning,
			Cooldown: 5 * 24 * time.Hour,
			Evaluate: evaluateConsistentHigh,
		},
		&AlertRule{
			Type:     RuleLogDataReminder,
			Category: CategoryReminder,
			Cooldown: 24 * time.Hour,
			Evaluate: evaluateLogDataReminder,
		},
		&AlertRule{
			Type:     RulePositiveReinforcement,
			Category: CategoryPositive,
			Cooldown: 7 * 24 * time.Hour,
			Evaluate: evaluatePositiveReinforcement,
		},
		&AlertRule{
			Type:     RulePatternDetectedTip,
			Category: CategoryReminder,
			Cooldown: 14 * 24 * time.Hour,
			Evaluate: evaluateEveningPattern,
		},
	)
}

// evaluateGlucoseSpike fires when any reading in the last 30 minutes is at
// or above 300 mg/dL. The boundary is inclusive.
func evaluateGlucoseSpike(ctx context.Context, src SignalSource, patients []string, now time.Time) ([]Candidate, error) {
	var out []Candidate
	since := now.Add(-spikeWindow)
	for _, patientID := range patients {
		readings, err := src.RecentReadings(ctx, patientID, since)
		if err != nil {
			return nil, err
		}
		peak := 0.0
		for i := range readings {
			if readings[i].ValueMgDl >= spikeThresholdMgDl && readings[i].ValueMgDl > peak {
				peak = readings[i].ValueMgDl
			}
		}
		if peak > 0 {
			out = append(out, Candidate{
				PatientID: patientID,
				RuleType:  RuleGlucoseSpikeCritical,
				Params:    map[string]any{ParamValue: formatMgDl(peak)},
			})
		}
	}
	return out, nil
}

// evaluateHighRisk fires when the most recent risk score is strictly above
// 90 percent. Patients with no score are skipped.
func evaluateHighRisk(ctx context.Context, src SignalSource, patients []string, now time.Time) ([]Candidate, error) {
	var out []Candidate
	for _, patientID := range patients {
		score, err := src.LatestRiskScore(ctx, patientID)
		if err != nil {
			if errors.Is(err, repository.ErrNoRiskScore) {
				continue
			}
			return nil, err
		}
		if score.Percent > highRiskPercent {
			out = append(out, Candidate{
				PatientID: patientID,
				RuleType:  RuleHighRiskCritical,
				Params:    map[string]any{ParamPercent: formatMgDl(score.Percent)},
			})
		}
	}
	return out, nil
}

// evaluateConsistentHigh fires when the daily mean glucose exceeded
// 180 mg/dL on at least 3 of the last 3 days.
func evaluateConsistentHigh(ctx context.Context, src SignalSource, patients []string, now time.Time) ([]Candidate, error) {
	var out []Candidate
	window := time.Duration(highDailyMeanDays) * 24 * time.Hour
	for _, patientID := range patients {
		readings, err := src.RecentReadings(ctx, patientID, now.Add(-window))
		if err != nil {
			return nil, err
		}
		days := dailyMeans(readings, now, highDailyMeanDays)
		highDays := 0
		for _, mean := range days {
			if mean > highDailyMeanMgDl {
				highDays++
			}
		}
		if highDays >= highDailyMeanDays {
			out = append(out, Candidate{
				PatientID: patientID,
				RuleType:  RuleConsistentHighWarning,
				Params: map[string]any{
					ParamDays: highDays,
					ParamMean: formatMgDl(meanGlucose(readings)),
				},
			})
		}
	}
	return out, nil
}

// evaluateLogDataReminder fires when a patient logged neither a glucose
// reading nor a meal in the last 24 hours.
func evaluateLogDataReminder(ctx context.Context, src SignalSource, patients []string, now time.Time) ([]Candidate, error) {
	var out []Candidate
	since := now.Add(-inactivityWindow)
	for _, patientID := range patients {
		readings, err := src.RecentReadings(ctx, patientID, since)
		if err != nil {
			return nil, err
		}
		if len(readings) > 0 {
			continue
		}
		meals, err := src.RecentMeals(ctx, patientID, since)
		if err != nil {
			return nil, err
		}
		if len(meals) > 0 {
			continue
		}
		out = append(out, Candidate{
			PatientID: patientID,
			RuleType:  RuleLogDataReminder,
			Params:    map[string]any{ParamHours: int(inactivityWindow.Hours())},
		})
	}
	return out, nil
}

// evaluatePositiveReinforcement fires when the 7-day mean is inside the
// 80–130 mg/dL target range (bounds inclusive) with at least 14 readings.
func evaluatePositiveReinforcement(ctx context.Context, src SignalSource, patients []string, now time.Time) ([]Candidate, error) {
	var out []Candidate
	since := now.Add(-7 * 24 * time.Hour)
	for _, patientID := range patients {
		readings, err := src.RecentReadings(ctx, patientID, since)
		if err != nil {
			return nil, err
		}
		if len(readings) < targetMinReadings {
			continue
		}
		mean := meanGlucose(readings)
		if mean >= targetRangeLowMgDl && mean <= targetRangeHighMgDl {
			out = append(out, Candidate{
				PatientID: patientID,
				RuleType:  RulePositiveReinforcement,
				Params: map[string]any{
					ParamMean:     formatMgDl(mean),
					ParamReadings: len(readings),
				},
			})
		}
	}
	return out, nil
}

// evaluateEveningPattern fires when the mean glucose in the 19:00–22:00
// window exceeded 200 mg/dL on at least 4 of the last 7 days.
func evaluateEveningPattern(ctx context.Context, src SignalSource, patients []string, now time.Time) ([]Candidate, error) {
	var out []Candidate
	since := now.Add(-7 * 24 * time.Hour)
	for _, patientID := range patients {
		readings, err := src.RecentReadings(ctx, patientID, since)
		if err != nil {
			return nil, err
		}
		var evening []entities.GlucoseReading
		for i := range readings {
			hour := readings[i].TakenAt.Hour()
			if hour >= eveningWindowStartHr && hour < eveningWindowEndHr {
				evening = append(evening, readings[i])
			}
		}
		days := dailyMeans(evening, now, 7)
		patternDays := 0
		for _, mean := range days {
			if mean > eveningMeanMgDl {
				patternDays++
			}
		}
		if patternDays >= eveningPatternDays {
			out = append(out, Candidate{
				PatientID: patientID,
				RuleType:  RulePatternDetectedTip,
				Params:    map[string]any{ParamDays: patternDays},
			})
		}
	}
	return out, nil
}

// dailyMeans buckets readings into 24h slots counted back from now and
// returns the mean per slot that has data. Slots are relative to the
// evaluation instant, not calendar days.
func dailyMeans(readings []entities.GlucoseReading, now time.Time, days int) map[int]float64 {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for i := range readings {
		age := now.Sub(readings[i].TakenAt)
		if age < 0 {
			continue
		}
		slot := int(age / (24 * time.Hour))
		if slot >= days {
			continue
		}
		sums[slot] += readings[i].ValueMgDl
		counts[slot]++
	}
	means := make(map[int]float64, len(sums))
	for slot, sum := range sums {
		means[slot] = sum / float64(counts[slot])
	}
	return means
}

func meanGlucose(readings []entities.GlucoseReading) float64 {
	if len(readings) == 0 {
		return 0
	}
	var sum float64
	for i := range readings {
		sum += readings[i].ValueMgDl
	}
	return sum / float64(len(readings))
}

// formatMgDl renders a glucose or percent value without trailing decimals
// for template substitution.
func formatMgDl(v float64) string {
	return fmt.Sprintf("%.0f", v)
}
