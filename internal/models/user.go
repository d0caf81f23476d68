package models

import (
	"time"

	"proxy-panel/internal/proxy"

	"gorm.io/gorm"
)

// UserStatus is the lifecycle state of a user.
type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusDisabled UserStatus = "disabled"
	StatusLimited  UserStatus = "limited"
	StatusExpired  UserStatus = "expired"
	StatusOnHold   UserStatus = "on_hold"
)

// CreationStatus reports whether s may be assigned at user creation.
// limited and expired are only ever produced by the state machine.
func (s UserStatus) CreationStatus() bool {
	return s == StatusActive || s == StatusOnHold
}

// AdminWritable reports whether an admin may set s directly on an
// existing user.
func (s UserStatus) AdminWritable() bool {
	return s == StatusActive || s == StatusDisabled || s == StatusOnHold
}

// DataLimitResetStrategy controls periodic zeroing of used_traffic.
type DataLimitResetStrategy string

const (
	ResetNever   DataLimitResetStrategy = "no_reset"
	ResetDaily   DataLimitResetStrategy = "day"
	ResetWeekly  DataLimitResetStrategy = "week"
	ResetMonthly DataLimitResetStrategy = "month"
	ResetYearly  DataLimitResetStrategy = "year"
)

// ValidResetStrategy reports whether s is a known reset strategy.
func ValidResetStrategy(s DataLimitResetStrategy) bool {
	switch s {
	case ResetNever, ResetDaily, ResetWeekly, ResetMonthly, ResetYearly:
		return true
	}
	return false
}

// User is a provisioned tenant of the proxy gateway.
//
// Optional numeric fields use pointers: nil means unset. A zero for expire,
// data_limit or on_hold_expire_duration is normalized to nil at the API
// boundary and never persisted.
type User struct {
	ID       uint       `gorm:"primaryKey"`
	Username string     `gorm:"size:32;uniqueIndex;not null"`
	Status   UserStatus `gorm:"size:16;index;not null;default:active"`

	UsedTraffic         int64 `gorm:"not null;default:0"` // bytes since last reset
	LifetimeUsedTraffic int64 `gorm:"not null;default:0"` // bytes, never reset

	DataLimit              *int64
	DataLimitResetStrategy DataLimitResetStrategy `gorm:"size:16;not null;default:no_reset"`
	LastTrafficResetAt     *time.Time

	Expire               *time.Time `gorm:"index"`
	OnHoldExpireDuration *int64     // seconds, only meaningful while on_hold
	OnHoldTimeout        *time.Time // instant at which the hold countdown is armed

	NextPlan *NextPlan `gorm:"constraint:OnDelete:CASCADE"`

	Groups        []Group        `gorm:"many2many:user_groups"`
	ProxySettings proxy.Settings `gorm:"serializer:json"`

	Note             string `gorm:"size:500"`
	OnlineAt         *time.Time
	SubUpdatedAt     *time.Time
	SubLastUserAgent string `gorm:"size:255"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// GroupIDs returns the ids of the user's groups in attachment order.
func (u *User) GroupIDs() []uint {
	ids := make([]uint, 0, len(u.Groups))
	for i := range u.Groups {
		ids = append(ids, u.Groups[i].ID)
	}
	return ids
}

// NextPlan is a pre-armed quota/expiry replacement that the state machine
// applies once the current plan is exhausted.
type NextPlan struct {
	ID             uint  `gorm:"primaryKey"`
	UserID         uint  `gorm:"uniqueIndex;not null"`
	UserTemplateID *uint // set: the plan re-arms itself after firing

	DataLimit           int64 `gorm:"not null;default:0"` // 0 means unlimited
	Expire              int64 `gorm:"not null;default:0"` // seconds from rollover, 0 means no expiry
	AddRemainingTraffic bool  `gorm:"not null;default:false"`
	FireOnEither        bool  `gorm:"not null;default:true"`

	CreatedAt time.Time
}
