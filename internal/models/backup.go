package models

import "time"

// Backup is one encrypted snapshot of the panel database on disk.
type Backup struct {
	ID       uint   `gorm:"primaryKey"`
	AdminID  uint   `gorm:"index;not null"`
	FileName string `gorm:"size:255;not null"`
	FilePath string `gorm:"size:512;not null"`
	Size     int64  `gorm:"not null"`

	CreatedAt time.Time
}
