package models

import "time"

// UserTemplate stamps out new users with consistent defaults. It shares the
// group model with User.
type UserTemplate struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:64;uniqueIndex;not null"`

	DataLimit      *int64
	ExpireDuration *int64 // seconds relative to creation, nil means no expiry

	UsernamePrefix string `gorm:"size:20"`
	UsernameSuffix string `gorm:"size:20"`

	Groups []Group `gorm:"many2many:template_groups"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// GroupIDs returns the ids of the template's groups in attachment order.
func (t *UserTemplate) GroupIDs() []uint {
	ids := make([]uint, 0, len(t.Groups))
	for i := range t.Groups {
		ids = append(ids, t.Groups[i].ID)
	}
	return ids
}
