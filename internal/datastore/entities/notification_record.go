package entities

import "time"

// NotificationRecord is the append-only audit entry written once per dispatch
// attempt. It is both the notification history shown to the patient and the
// sole source of truth for cooldown computation: the most recent record for a
// (user, rule type) pair anchors the cooldown regardless of outcome.
type NotificationRecord struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UserID    string            `gorm:"size:64;not null;index:idx_notif_user_rule_fired,priority:1" json:"user_id"`
	RuleType  string            `gorm:"size:64;not null;index:idx_notif_user_rule_fired,priority:2" json:"rule_type"`
	FiredAt   time.Time         `gorm:"not null;index:idx_notif_user_rule_fired,priority:3" json:"fired_at"`
	Outcome   string            `gorm:"size:16;not null" json:"outcome"`
	Title     string            `gorm:"size:255;default:''" json:"title"`
	Body      string            `gorm:"size:2000;default:''" json:"body"`
	Metadata  map[string]string `gorm:"serializer:json" json:"metadata"`
	CreatedAt time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (NotificationRecord) TableName() string {
	return "notification_records"
}
