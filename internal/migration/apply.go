package migration

import (
	"fmt"
	"log"

	"proxy-panel/internal/core"
	"proxy-panel/internal/models"
	"proxy-panel/internal/proxy"

	"gorm.io/gorm"
)

// legacyProxy is a row of the historical per-user protocol table.
type legacyProxy struct {
	ID     uint
	UserID uint
	Type   string
}

func (legacyProxy) TableName() string { return "proxies" }

// legacyExclusion is a row of the historical per-proxy inbound exclusion
// association.
type legacyExclusion struct {
	ProxyID    uint
	InboundTag string
}

func (legacyExclusion) TableName() string { return "exclude_inbounds_association" }

// legacyTemplateInbound is a row of the historical template inbound
// association.
type legacyTemplateInbound struct {
	UserTemplateID uint
	InboundTag     string
}

func (legacyTemplateInbound) TableName() string { return "template_inbounds_association" }

// Migrate reconstructs groups from the legacy tables if they still hold
// data. Each group is committed in its own transaction; a mid-run failure
// leaves already-committed groups in place and a re-run is safe because
// the remaining legacy rows are counted again first.
func Migrate(db *gorm.DB, cat *core.Catalog) error {
	if !db.Migrator().HasTable("proxies") {
		return nil
	}

	users, err := collectLegacyUsers(db)
	if err != nil {
		return err
	}
	templates, err := collectLegacyTemplates(db)
	if err != nil {
		return err
	}

	plan := RunLegacyMigration(cat, users, templates)
	if plan == nil {
		return nil
	}
	log.Printf("group migration: %d users, %d templates, %d groups planned",
		len(users), len(templates), len(plan))

	// stale tags never enter a group; drop them from the inbounds table
	// before creating memberships
	if err := pruneInbounds(db, cat); err != nil {
		return err
	}

	for _, g := range plan {
		if err := applyGroup(db, g); err != nil {
			return fmt.Errorf("apply %s: %w", g.Name, err)
		}
	}

	// consume the legacy rows so the next run's count guard sees zero
	if err := db.Exec("DELETE FROM exclude_inbounds_association").Error; err != nil {
		return fmt.Errorf("clear legacy exclusions: %w", err)
	}
	if err := db.Exec("DELETE FROM proxies").Error; err != nil {
		return fmt.Errorf("clear legacy proxies: %w", err)
	}
	return nil
}

func collectLegacyUsers(db *gorm.DB) ([]LegacyUser, error) {
	var proxies []legacyProxy
	if err := db.Order("user_id, id").Find(&proxies).Error; err != nil {
		return nil, fmt.Errorf("load legacy proxies: %w", err)
	}
	if len(proxies) == 0 {
		return nil, nil
	}

	var exclusions []legacyExclusion
	if err := db.Find(&exclusions).Error; err != nil {
		return nil, fmt.Errorf("load legacy exclusions: %w", err)
	}
	excludedByProxy := make(map[uint][]string)
	for _, e := range exclusions {
		excludedByProxy[e.ProxyID] = append(excludedByProxy[e.ProxyID], e.InboundTag)
	}

	byUser := make(map[uint]*LegacyUser)
	var order []uint
	for _, p := range proxies {
		u, ok := byUser[p.UserID]
		if !ok {
			u = &LegacyUser{UserID: p.UserID}
			byUser[p.UserID] = u
			order = append(order, p.UserID)
		}
		u.ProxyTypes = append(u.ProxyTypes, proxy.Type(p.Type))
		u.ExcludedTags = append(u.ExcludedTags, excludedByProxy[p.ID]...)
	}

	users := make([]LegacyUser, 0, len(order))
	for _, id := range order {
		users = append(users, *byUser[id])
	}
	return users, nil
}

func collectLegacyTemplates(db *gorm.DB) ([]LegacyTemplate, error) {
	if !db.Migrator().HasTable("template_inbounds_association") {
		return nil, nil
	}
	var rows []legacyTemplateInbound
	if err := db.Order("user_template_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load legacy template inbounds: %w", err)
	}

	byTemplate := make(map[uint]*LegacyTemplate)
	var order []uint
	for _, r := range rows {
		t, ok := byTemplate[r.UserTemplateID]
		if !ok {
			t = &LegacyTemplate{TemplateID: r.UserTemplateID}
			byTemplate[r.UserTemplateID] = t
			order = append(order, r.UserTemplateID)
		}
		t.InboundTags = append(t.InboundTags, r.InboundTag)
	}

	templates := make([]LegacyTemplate, 0, len(order))
	for _, id := range order {
		templates = append(templates, *byTemplate[id])
	}
	return templates, nil
}

func pruneInbounds(db *gorm.DB, cat *core.Catalog) error {
	live := cat.Tags()
	if len(live) == 0 {
		return db.Where("1 = 1").Delete(&models.Inbound{}).Error
	}
	return db.Where("tag NOT IN ?", live).Delete(&models.Inbound{}).Error
}

// applyGroup creates one planned group with its inbound, user and template
// memberships as a single transaction.
func applyGroup(db *gorm.DB, g PlannedGroup) error {
	return db.Transaction(func(tx *gorm.DB) error {
		group := models.Group{Name: g.Name}
		if len(g.InboundTags) > 0 {
			if err := tx.Where("tag IN ?", g.InboundTags).Find(&group.Inbounds).Error; err != nil {
				return err
			}
		}
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		for _, userID := range g.UserIDs {
			if err := tx.Exec(
				"INSERT INTO user_groups (user_id, group_id) VALUES (?, ?)",
				userID, group.ID,
			).Error; err != nil {
				return err
			}
		}
		for _, templateID := range g.TemplateIDs {
			if err := tx.Exec(
				"INSERT INTO template_groups (user_template_id, group_id) VALUES (?, ?)",
				templateID, group.ID,
			).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
