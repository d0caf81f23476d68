// Package migration converts the pre-group schema, where every user
// carried its own protocol list plus an inbound exclusion list, into the
// shared group model. It runs once; re-running against a migrated store is
// a no-op.
package migration

import (
	"fmt"
	"sort"
	"strings"

	"proxy-panel/internal/core"
	"proxy-panel/internal/proxy"
)

// noExclusions is the canonical sentinel for an empty exclusion list so
// those users bucket together.
const noExclusions = "no-excluded-inbounds"

// LegacyUser is the pre-group shape of a user: enabled protocol types plus
// excluded inbound tags.
type LegacyUser struct {
	UserID       uint
	ProxyTypes   []proxy.Type
	ExcludedTags []string
}

// LegacyTemplate is the pre-group shape of a template: a direct inbound
// tag list.
type LegacyTemplate struct {
	TemplateID  uint
	InboundTags []string
}

// PlannedGroup is one group the migration will materialize, with every
// user and template that resolved to its inbound set.
type PlannedGroup struct {
	Name        string
	InboundTags []string
	UserIDs     []uint
	TemplateIDs []uint
}

// RunLegacyMigration plans the group reconstruction. Deterministic: group
// names follow first-seen order of the input slice, tag sets are sorted,
// and stale tags are pruned against the live catalog before any group is
// formed. Zero legacy users is the already-migrated case and yields nil.
func RunLegacyMigration(cat *core.Catalog, users []LegacyUser, templates []LegacyTemplate) []PlannedGroup {
	if len(users) == 0 {
		return nil
	}

	// pass 1: bucket by exclusion set, then pass 2 re-buckets by the
	// effective inbound set. Two different exclusion lists can still
	// yield the same effective set, so only the second key is the group
	// key; the first pass exists to keep resolution per distinct
	// exclusion shape.
	exclusionBuckets, order := bucketByExclusions(users)

	effective := make(map[string][]string) // effective-set key -> tags
	members := make(map[string][]uint)     // effective-set key -> user ids
	var keyOrder []string

	for _, exclKey := range order {
		for _, u := range exclusionBuckets[exclKey] {
			tags := effectiveTags(u, cat)
			key := setKey(tags)
			if _, ok := effective[key]; !ok {
				effective[key] = tags
				keyOrder = append(keyOrder, key)
			}
			members[key] = append(members[key], u.UserID)
		}
	}

	templateSets := make(map[uint][]string, len(templates))
	for _, t := range templates {
		templateSets[t.TemplateID] = pruneTags(t.InboundTags, cat)
	}

	var groups []PlannedGroup
	matched := make(map[uint]bool)
	counter := 1
	for _, key := range keyOrder {
		g := PlannedGroup{
			Name:        fmt.Sprintf("group%d", counter),
			InboundTags: effective[key],
			UserIDs:     members[key],
		}
		for _, t := range templates {
			if setKey(templateSets[t.TemplateID]) == key {
				g.TemplateIDs = append(g.TemplateIDs, t.TemplateID)
				matched[t.TemplateID] = true
			}
		}
		groups = append(groups, g)
		counter++
	}

	// every template must end up with at least one group; leftovers get a
	// synthetic group built the same way
	for _, t := range templates {
		if matched[t.TemplateID] {
			continue
		}
		groups = append(groups, PlannedGroup{
			Name:        fmt.Sprintf("group%d", counter),
			InboundTags: templateSets[t.TemplateID],
			TemplateIDs: []uint{t.TemplateID},
		})
		counter++
	}

	return groups
}

// bucketByExclusions groups users by their normalized exclusion tag set.
// The returned order preserves first appearance so group numbering is
// stable across runs.
func bucketByExclusions(users []LegacyUser) (map[string][]LegacyUser, []string) {
	buckets := make(map[string][]LegacyUser)
	var order []string
	for _, u := range users {
		key := exclusionKey(u.ExcludedTags)
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], u)
	}
	return buckets, order
}

// effectiveTags resolves one legacy user against the catalog: every tag
// whose protocol the user enabled and that the user did not exclude.
func effectiveTags(u LegacyUser, cat *core.Catalog) []string {
	excluded := make(map[string]bool, len(u.ExcludedTags))
	for _, tag := range u.ExcludedTags {
		excluded[tag] = true
	}
	enabled := make(map[proxy.Type]bool, len(u.ProxyTypes))
	for _, t := range u.ProxyTypes {
		enabled[t] = true
	}

	var tags []string
	for _, tag := range cat.Tags() {
		in, _ := cat.Get(tag)
		if enabled[in.Protocol] && !excluded[tag] {
			tags = append(tags, tag)
		}
	}
	return tags
}

// pruneTags drops tags no longer present in the live catalog, sorted.
func pruneTags(tags []string, cat *core.Catalog) []string {
	var kept []string
	seen := make(map[string]bool)
	for _, tag := range tags {
		if cat.Has(tag) && !seen[tag] {
			kept = append(kept, tag)
			seen[tag] = true
		}
	}
	sort.Strings(kept)
	return kept
}

func exclusionKey(tags []string) string {
	if len(tags) == 0 {
		return noExclusions
	}
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x00")
}

func setKey(tags []string) string {
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x00")
}
