package dms

import "time"

// DMThread maps a user to the staff-side thread channel their direct
// messages are mirrored into.
type DMThread struct {
	UserID    string `gorm:"primaryKey;size:64"`
	ChannelID string `gorm:"size:128;uniqueIndex"`
	CreatedAt time.Time
}

// TableName keeps the table name stable across gorm versions.
func (DMThread) TableName() string { return "dm_threads" }
