package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/glucoguard/glucoguard/internal/datastore/entities"
)

// preferenceRepository implements PreferenceRepository over GORM.
type preferenceRepository struct {
	db *gorm.DB
}

// NewPreferenceRepository creates a PreferenceRepository backed by the given DB.
func NewPreferenceRepository(db *gorm.DB) PreferenceRepository {
	return &preferenceRepository{db: db}
}

func (r *preferenceRepository) GetPreference(ctx context.Context, userID string) (*entities.NotificationPreference, error) {
	var pref entities.NotificationPreference
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&pref).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPreferenceNotFound
		}
		return nil, fmt.Errorf("failed to get preference for user %s: %w", userID, err)
	}
	return &pref, nil
}
