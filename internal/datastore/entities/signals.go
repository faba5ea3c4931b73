// Package entities defines the persisted data model.
package entities

import "time"

// GlucoseReading is a single blood glucose measurement logged by a patient.
type GlucoseReading struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PatientID string    `gorm:"size:64;not null;index:idx_reading_patient_taken,priority:1" json:"patient_id"`
	ValueMgDl float64   `gorm:"not null" json:"value_mg_dl"`
	TakenAt   time.Time `gorm:"not null;index:idx_reading_patient_taken,priority:2" json:"taken_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (GlucoseReading) TableName() string {
	return "glucose_readings"
}

// MealEntry is a logged meal. Only the timestamp matters to the engine;
// nutrition details belong to the logging UI.
type MealEntry struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PatientID   string    `gorm:"size:64;not null;index:idx_meal_patient_eaten,priority:1" json:"patient_id"`
	Description string    `gorm:"size:500;default:''" json:"description"`
	CarbsGrams  float64   `gorm:"default:0" json:"carbs_grams"`
	EatenAt     time.Time `gorm:"not null;index:idx_meal_patient_eaten,priority:2" json:"eaten_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (MealEntry) TableName() string {
	return "meal_entries"
}

// RiskScore is an externally computed complication risk score for a patient.
type RiskScore struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	PatientID  string    `gorm:"size:64;not null;index:idx_risk_patient_computed,priority:1" json:"patient_id"`
	Percent    float64   `gorm:"not null" json:"percent"`
	ComputedAt time.Time `gorm:"not null;index:idx_risk_patient_computed,priority:2" json:"computed_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (RiskScore) TableName() string {
	return "risk_scores"
}
