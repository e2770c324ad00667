package models

import "time"

const (
	FrequencyDaily  = "daily"
	FrequencyWeekly = "weekly"
)

func ValidFrequency(f string) bool {
	return f == FrequencyDaily || f == FrequencyWeekly
}

// NewsletterSubscription rows are created active. UnsubscribedAt is set only by an
// explicit unsubscribe and cleared again on reactivation.
type NewsletterSubscription struct {
	ID               uint64     `gorm:"primaryKey;autoIncrement"`
	Email            string     `gorm:"type:varchar(254);not null;uniqueIndex"`
	Active           bool       `gorm:"not null;default:true;index"`
	Frequency        string     `gorm:"type:varchar(10);not null;default:daily;index"`
	UnsubscribeToken string     `gorm:"type:varchar(64);not null;uniqueIndex"`
	CreatedAt        time.Time  `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"type:timestamptz;autoUpdateTime"`
	LastSentAt       *time.Time `gorm:"type:timestamptz"`
	UnsubscribedAt   *time.Time `gorm:"type:timestamptz"`
}

func (NewsletterSubscription) TableName() string {
	return "breaking_newsletter_subscriptions"
}
