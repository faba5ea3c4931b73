package entities

import "time"

// NotificationPreference holds a patient's notification settings. At most one
// row per user; absence means the engine never notifies that user.
type NotificationPreference struct {
	UserID            string          `gorm:"primaryKey;size:64" json:"user_id"`
	Locale            string          `gorm:"size:16;default:''" json:"locale"`
	EnabledCategories map[string]bool `gorm:"serializer:json" json:"enabled_categories"`
	DeliveryToken     string          `gorm:"size:512;default:''" json:"delivery_token"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (NotificationPreference) TableName() string {
	return "notification_preferences"
}

// CategoryEnabled reports whether the given category is switched on. A
// category missing from the map counts as disabled.
func (p *NotificationPreference) CategoryEnabled(category string) bool {
	return p.EnabledCategories[category]
}
