package core

import (
	"sort"

	"proxy-panel/internal/models"
	"proxy-panel/internal/proxy"
)

// ConfigRecord is one (inbound, user) connection entry of an effective
// configuration.
type ConfigRecord struct {
	Tag      string                 `json:"tag"`
	Protocol proxy.Type             `json:"protocol"`
	Port     int                    `json:"port"`
	Network  string                 `json:"network,omitempty"`
	Settings proxy.ProtocolSettings `json:"settings"`
}

// EffectiveConfig is the final resolved configuration for one user.
// Blocked is set for any non-active user so the rendering layer can show
// the right message instead of an empty config. StaleTags lists group tags
// that no longer exist in the catalog; they are skipped, the caller logs
// them.
type EffectiveConfig struct {
	Blocked   bool
	Records   []ConfigRecord
	StaleTags []string
}

// ResolveGroupTags returns the union of inbound tags over every group that
// is not disabled, sorted. Disabled groups contribute nothing but keep
// their membership, so re-enabling one restores its tags without any
// user-side edit.
func ResolveGroupTags(groups []models.Group) []string {
	seen := make(map[string]struct{})
	for i := range groups {
		if groups[i].IsDisabled {
			continue
		}
		for _, tag := range groups[i].InboundTags() {
			seen[tag] = struct{}{}
		}
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// FilterByProtocol keeps the tags whose catalog protocol the user has
// enabled. The check is pure type membership; an enabled protocol with
// default credentials still counts. Tags missing from the catalog come
// back separately as stale.
func FilterByProtocol(tags []string, cat *Catalog, settings proxy.Settings) (kept, stale []string) {
	for _, tag := range tags {
		in, ok := cat.Get(tag)
		if !ok {
			stale = append(stale, tag)
			continue
		}
		if settings.Has(in.Protocol) {
			kept = append(kept, tag)
		}
	}
	return kept, stale
}

// BuildEffectiveConfig composes group resolution and protocol filtering
// into the per-user config records, one per inbound tag, sorted by tag.
// It is deterministic: identical (groups, settings, catalog) inputs yield
// identical output regardless of group order. Only active users get
// records; every other status yields a blocked result.
func BuildEffectiveConfig(u *models.User, cat *Catalog) EffectiveConfig {
	if u.Status != models.StatusActive {
		return EffectiveConfig{Blocked: true}
	}

	tags := ResolveGroupTags(u.Groups)
	kept, stale := FilterByProtocol(tags, cat, u.ProxySettings)

	records := make([]ConfigRecord, 0, len(kept))
	for _, tag := range kept {
		in, _ := cat.Get(tag)
		settings, _ := u.ProxySettings.Get(in.Protocol)
		records = append(records, ConfigRecord{
			Tag:      tag,
			Protocol: in.Protocol,
			Port:     in.Port,
			Network:  in.Network,
			Settings: settings,
		})
	}
	return EffectiveConfig{Records: records, StaleTags: stale}
}
