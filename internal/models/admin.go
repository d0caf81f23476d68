package models

import "time"

// Admin is a panel operator account.
type Admin struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"size:64;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:255;not null"`

	LastLoginAt *time.Time
	LastLoginIP string `gorm:"size:64"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
