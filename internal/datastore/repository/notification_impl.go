package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/glucoguard/glucoguard/internal/datastore/entities"
)

// notificationRepository implements NotificationRepository over GORM.
type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a NotificationRepository backed by the given DB.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Append(ctx context.Context, record *entities.NotificationRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to append notification record: %w", err)
	}
	return nil
}

func (r *notificationRepository) MostRecent(ctx context.Context, userID, ruleType string) (*entities.NotificationRecord, error) {
	var record entities.NotificationRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND rule_type = ?", userID, ruleType).
		Order("fired_at DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoNotifications
		}
		return nil, fmt.Errorf("failed to get most recent notification for user %s rule %s: %w", userID, ruleType, err)
	}
	return &record, nil
}

func (r *notificationRepository) List(ctx context.Context, userID string, limit int) ([]entities.NotificationRecord, error) {
	var records []entities.NotificationRecord
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("fired_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list notifications for user %s: %w", userID, err)
	}
	return records, nil
}

func (r *notificationRepository) RecentlyNotifiedSince(ctx context.Context, ruleType string, since time.Time) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&entities.NotificationRecord{}).
		Distinct("user_id").
		Where("rule_type = ? AND fired_at >= ?", ruleType, since).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query recently notified users for rule %s: %w", ruleType, err)
	}
	return ids, nil
}

func (r *notificationRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("fired_at < ?", before).
		Delete(&entities.NotificationRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete notification records before %v: %w", before, result.Error)
	}
	return result.RowsAffected, nil
}
