package models

import "time"

// Group is a named, toggleable bundle of inbound tags assignable to many
// users and templates. A disabled group keeps its memberships but
// contributes no inbounds until re-enabled.
type Group struct {
	ID         uint   `gorm:"primaryKey"`
	Name       string `gorm:"size:64;uniqueIndex;not null"`
	IsDisabled bool   `gorm:"not null;default:false"`

	Inbounds []Inbound `gorm:"many2many:group_inbounds"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// InboundTags returns the tags attached to the group.
func (g *Group) InboundTags() []string {
	tags := make([]string, 0, len(g.Inbounds))
	for i := range g.Inbounds {
		tags = append(tags, g.Inbounds[i].Tag)
	}
	return tags
}
