// Package repository defines store access contracts and their GORM
// implementations.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/glucoguard/glucoguard/internal/datastore/entities"
)

// Sentinel errors for absent records.
var (
	ErrNoRiskScore        = errors.New("no risk score for patient")
	ErrPreferenceNotFound = errors.New("notification preference not found")
	ErrNoNotifications    = errors.New("no notification records for user and rule")
)

// SignalRepository provides read-only access to patient health signals.
type SignalRepository interface {
	// RecentReadings returns glucose readings taken at or after since,
	// oldest first.
	RecentReadings(ctx context.Context, patientID string, since time.Time) ([]entities.GlucoseReading, error)
	// RecentMeals returns meal entries eaten at or after since, oldest first.
	RecentMeals(ctx context.Context, patientID string, since time.Time) ([]entities.MealEntry, error)
	// LatestRiskScore returns the most recently computed risk score, or
	// ErrNoRiskScore when the patient has none.
	LatestRiskScore(ctx context.Context, patientID string) (*entities.RiskScore, error)
	// ActivePatientIDs returns every patient known to any signal table or
	// the preference store. This is the patient universe rules scan.
	ActivePatientIDs(ctx context.Context) ([]string, error)
}

// PreferenceRepository provides read-only access to notification preferences.
type PreferenceRepository interface {
	// GetPreference returns the preference row for the user, or
	// ErrPreferenceNotFound when none exists.
	GetPreference(ctx context.Context, userID string) (*entities.NotificationPreference, error)
}

// NotificationRepository handles the append-only notification audit log.
type NotificationRepository interface {
	// Append writes one record. Records are never updated or deleted by the
	// engine outside of retention pruning.
	Append(ctx context.Context, record *entities.NotificationRecord) error
	// MostRecent returns the newest record for the (user, rule type) pair,
	// or ErrNoNotifications when none exists.
	MostRecent(ctx context.Context, userID, ruleType string) (*entities.NotificationRecord, error)
	// List returns the user's newest records across all rule types,
	// newest first, capped at limit.
	List(ctx context.Context, userID string, limit int) ([]entities.NotificationRecord, error)
	// RecentlyNotifiedSince returns user IDs with a record for the rule
	// type at or after since. Evaluators use it as a query-level fast path;
	// the dedup gate remains authoritative.
	RecentlyNotifiedSince(ctx context.Context, ruleType string, since time.Time) ([]string, error)
	// DeleteBefore prunes records older than before and reports how many
	// rows were removed.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
