package models

import (
	"time"

	"gorm.io/datatypes"
)

// SyncState keeps the outcome of the last sync run per scope.
type SyncState struct {
	Scope         string         `gorm:"primaryKey;type:text"`
	LastSuccessAt *time.Time     `gorm:"type:timestamptz"`
	LastAttemptAt *time.Time     `gorm:"type:timestamptz"`
	LastError     *string        `gorm:"type:text"`
	// Cursor is the listing offset the next full sync resumes from.
	Cursor        *string        `gorm:"type:text"`
	StatsJSON     datatypes.JSON `gorm:"type:jsonb"`
}

func (SyncState) TableName() string {
	return "sync_state"
}
