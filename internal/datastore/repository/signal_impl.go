package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/glucoguard/glucoguard/internal/datastore/entities"
)

// signalRepository implements SignalRepository over GORM.
type signalRepository struct {
	db *gorm.DB
}

// NewSignalRepository creates a SignalRepository backed by the given DB.
func NewSignalRepository(db *gorm.DB) SignalRepository {
	return &signalRepository{db: db}
}

func (r *signalRepository) RecentReadings(ctx context.Context, patientID string, since time.Time) ([]entities.GlucoseReading, error) {
	var readings []entities.GlucoseReading
	err := r.db.WithContext(ctx).
		Where("patient_id = ? AND taken_at >= ?", patientID, since).
		Order("taken_at ASC").
		Find(&readings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query readings for patient %s: %w", patientID, err)
	}
	return readings, nil
}

func (r *signalRepository) RecentMeals(ctx context.Context, patientID string, since time.Time) ([]entities.MealEntry, error) {
	var meals []entities.MealEntry
	err := r.db.WithContext(ctx).
		Where("patient_id = ? AND eaten_at >= ?", patientID, since).
		Order("eaten_at ASC").
		Find(&meals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query meals for patient %s: %w", patientID, err)
	}
	return meals, nil
}

func (r *signalRepository) LatestRiskScore(ctx context.Context, patientID string) (*entities.RiskScore, error) {
	var score entities.RiskScore
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("computed_at DESC").
		First(&score).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoRiskScore
		}
		return nil, fmt.Errorf("failed to query risk score for patient %s: %w", patientID, err)
	}
	return &score, nil
}

func (r *signalRepository) ActivePatientIDs(ctx context.Context) ([]string, error) {
	var ids []string
	query := `
		SELECT patient_id FROM glucose_readings
		UNION SELECT patient_id FROM meal_entries
		UNION SELECT patient_id FROM risk_scores
		UNION SELECT user_id FROM notification_preferences`
	if err := r.db.WithContext(ctx).Raw(query).Scan(&ids).Error; err != nil {
		return nil, fmt.Errorf("failed to query active patient IDs: %w", err)
	}
	return ids, nil
}
