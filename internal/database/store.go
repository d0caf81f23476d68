package database

import (
	"errors"
	"fmt"

	"proxy-panel/internal/core"
	"proxy-panel/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LoadUser fetches a user with its groups, group inbounds and next plan.
func LoadUser(db *gorm.DB, username string) (*models.User, error) {
	var user models.User
	err := db.Preload("Groups.Inbounds").Preload("NextPlan").
		Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &core.NotFoundError{Resource: "user", Key: username}
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

// LoadGroupsByIDs fetches groups with their inbounds and fails if any id
// is missing.
func LoadGroupsByIDs(db *gorm.DB, ids []uint) ([]models.Group, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var groups []models.Group
	if err := db.Preload("Inbounds").Where("id IN ?", ids).Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}
	if len(groups) != len(dedupeIDs(ids)) {
		found := make(map[uint]bool, len(groups))
		for i := range groups {
			found[groups[i].ID] = true
		}
		for _, id := range ids {
			if !found[id] {
				return nil, &core.NotFoundError{Resource: "group", Key: fmt.Sprintf("%d", id)}
			}
		}
	}
	return groups, nil
}

// SaveUser persists the full user row including association changes.
func SaveUser(db *gorm.DB, user *models.User) error {
	if err := db.Session(&gorm.Session{FullSaveAssociations: false}).Save(user).Error; err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// ReplaceUserGroups rewrites the user's group membership.
func ReplaceUserGroups(db *gorm.DB, user *models.User, groups []models.Group) error {
	if err := db.Model(user).Association("Groups").Replace(groups); err != nil {
		return fmt.Errorf("replace groups: %w", err)
	}
	user.Groups = groups
	return nil
}

// SyncInbounds upserts the catalog's inbounds into the inbounds table and
// prunes rows whose tag left the engine's configuration.
func SyncInbounds(db *gorm.DB, cat *core.Catalog) error {
	tags := cat.Tags()
	for _, tag := range tags {
		in, _ := cat.Get(tag)
		row := models.Inbound{Tag: in.Tag, Protocol: in.Protocol}
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tag"}},
			DoUpdates: clause.AssignmentColumns([]string{"protocol"}),
		}).Create(&row).Error; err != nil {
			return fmt.Errorf("sync inbound %s: %w", tag, err)
		}
	}
	if len(tags) == 0 {
		return db.Where("1 = 1").Delete(&models.Inbound{}).Error
	}
	if err := db.Where("tag NOT IN ?", tags).Delete(&models.Inbound{}).Error; err != nil {
		return fmt.Errorf("prune inbounds: %w", err)
	}
	return nil
}

func dedupeIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	var out []uint
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
