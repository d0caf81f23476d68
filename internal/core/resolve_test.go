package core

import (
	"reflect"
	"testing"

	"proxy-panel/internal/models"
	"proxy-panel/internal/proxy"
)

func testCatalog() *Catalog {
	return NewCatalog(1, []CatalogInbound{
		{Tag: "tagA", Protocol: proxy.VMess, Port: 10000, Network: "tcp"},
		{Tag: "tagB", Protocol: proxy.VLESS, Port: 10001, Network: "tcp"},
		{Tag: "tagC", Protocol: proxy.VLESS, Port: 10002, Network: "ws"},
		{Tag: "tagD", Protocol: proxy.Trojan, Port: 10003, Network: "tcp"},
	})
}

func group(name string, disabled bool, tags ...string) models.Group {
	g := models.Group{Name: name, IsDisabled: disabled}
	for _, tag := range tags {
		g.Inbounds = append(g.Inbounds, models.Inbound{Tag: tag})
	}
	return g
}

// TestResolveGroupTags_Union verifies the union over enabled groups with
// dedup.
func TestResolveGroupTags_Union(t *testing.T) {
	groups := []models.Group{
		group("g1", false, "tagA", "tagB"),
		group("g2", false, "tagB", "tagC"),
	}
	got := ResolveGroupTags(groups)
	want := []string{"tagA", "tagB", "tagC"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tags = %v, want %v", got, want)
	}
}

// TestResolveGroupTags_DisabledContributesNothing verifies a disabled
// group adds zero tags regardless of its set.
func TestResolveGroupTags_DisabledContributesNothing(t *testing.T) {
	groups := []models.Group{
		group("g1", false, "tagA"),
		group("g2", true, "tagB", "tagC", "tagD"),
	}
	got := ResolveGroupTags(groups)
	want := []string{"tagA"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tags = %v, want %v", got, want)
	}

	// re-enabling restores the contribution without any user edit
	groups[1].IsDisabled = false
	if got := ResolveGroupTags(groups); len(got) != 4 {
		t.Fatalf("tags after re-enable = %v, want 4 tags", got)
	}
}

// TestResolveGroupTags_OrderIndependent verifies shuffled group order
// yields the same set.
func TestResolveGroupTags_OrderIndependent(t *testing.T) {
	g1 := group("g1", false, "tagB", "tagA")
	g2 := group("g2", false, "tagC", "tagB")

	a := ResolveGroupTags([]models.Group{g1, g2})
	b := ResolveGroupTags([]models.Group{g2, g1})
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("order changed the result: %v vs %v", a, b)
	}
}

// TestFilterByProtocol keeps only tags whose protocol the user enabled
// and reports stale tags separately.
func TestFilterByProtocol(t *testing.T) {
	settings := proxy.Settings{VLESS: &proxy.VLESSSettings{ID: "2c8f29e3-8eeb-4e4b-a053-197b346f54d0"}}

	kept, stale := FilterByProtocol([]string{"tagA", "tagB", "tagC", "gone"}, testCatalog(), settings)
	if !reflect.DeepEqual(kept, []string{"tagB", "tagC"}) {
		t.Fatalf("kept = %v, want [tagB tagC]", kept)
	}
	if !reflect.DeepEqual(stale, []string{"gone"}) {
		t.Fatalf("stale = %v, want [gone]", stale)
	}
}

// TestFilterByProtocol_DefaultSettingsCount verifies an enabled protocol
// with default credentials still passes the filter; membership is by
// type, not content.
func TestFilterByProtocol_DefaultSettingsCount(t *testing.T) {
	settings := proxy.Settings{VMess: &proxy.VMessSettings{}}

	kept, _ := FilterByProtocol([]string{"tagA", "tagB"}, testCatalog(), settings)
	if !reflect.DeepEqual(kept, []string{"tagA"}) {
		t.Fatalf("kept = %v, want [tagA]", kept)
	}
}

// TestBuildEffectiveConfig covers the two-group, protocol-filtered
// resolution end to end.
func TestBuildEffectiveConfig(t *testing.T) {
	user := models.User{
		Username: "user1234",
		Status:   models.StatusActive,
		Groups: []models.Group{
			group("g1", false, "tagA", "tagB"),
			group("g2", false, "tagB", "tagC"),
		},
		ProxySettings: proxy.Settings{VLESS: &proxy.VLESSSettings{ID: "2c8f29e3-8eeb-4e4b-a053-197b346f54d0"}},
	}

	cfg := BuildEffectiveConfig(&user, testCatalog())
	if cfg.Blocked {
		t.Fatal("active user must not be blocked")
	}
	tags := make([]string, 0, len(cfg.Records))
	for _, rec := range cfg.Records {
		tags = append(tags, rec.Tag)
	}
	// tagA reachable through g1 but excluded by the protocol filter
	if !reflect.DeepEqual(tags, []string{"tagB", "tagC"}) {
		t.Fatalf("tags = %v, want [tagB tagC]", tags)
	}
	for _, rec := range cfg.Records {
		if rec.Protocol != proxy.VLESS {
			t.Errorf("record %s protocol = %s, want vless", rec.Tag, rec.Protocol)
		}
		if _, ok := rec.Settings.(proxy.VLESSSettings); !ok {
			t.Errorf("record %s carries wrong settings type %T", rec.Tag, rec.Settings)
		}
	}
}

// TestBuildEffectiveConfig_Deterministic verifies identical inputs give
// identical output regardless of group order.
func TestBuildEffectiveConfig_Deterministic(t *testing.T) {
	cat := testCatalog()
	settings := proxy.Settings{
		VMess: &proxy.VMessSettings{ID: "35e4e39c-7d5c-4f4b-8b71-558e4f37ff53"},
		VLESS: &proxy.VLESSSettings{ID: "2c8f29e3-8eeb-4e4b-a053-197b346f54d0"},
	}
	g1 := group("g1", false, "tagA", "tagB")
	g2 := group("g2", false, "tagC")

	u1 := models.User{Status: models.StatusActive, Groups: []models.Group{g1, g2}, ProxySettings: settings}
	u2 := models.User{Status: models.StatusActive, Groups: []models.Group{g2, g1}, ProxySettings: settings}

	a := BuildEffectiveConfig(&u1, cat)
	b := BuildEffectiveConfig(&u2, cat)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("group order changed the output:\n%+v\n%+v", a, b)
	}
}

// TestBuildEffectiveConfig_NonActiveBlocked verifies every non-active
// status yields a blocked, empty result.
func TestBuildEffectiveConfig_NonActiveBlocked(t *testing.T) {
	for _, status := range []models.UserStatus{
		models.StatusDisabled, models.StatusLimited, models.StatusExpired, models.StatusOnHold,
	} {
		user := models.User{
			Status:        status,
			Groups:        []models.Group{group("g1", false, "tagA")},
			ProxySettings: proxy.Settings{VMess: &proxy.VMessSettings{}},
		}
		cfg := BuildEffectiveConfig(&user, testCatalog())
		if !cfg.Blocked || len(cfg.Records) != 0 {
			t.Errorf("status %s: blocked = %v, records = %d", status, cfg.Blocked, len(cfg.Records))
		}
	}
}

// TestCatalogHolder_Swap verifies readers always see a whole snapshot.
func TestCatalogHolder_Swap(t *testing.T) {
	holder := NewCatalogHolder()
	if holder.Current() == nil || holder.Current().Len() != 0 {
		t.Fatal("holder must start with an empty snapshot")
	}

	first := holder.Replace([]CatalogInbound{{Tag: "a", Protocol: proxy.VMess}})
	second := holder.Replace([]CatalogInbound{{Tag: "b", Protocol: proxy.VLESS}})

	if first.Version() >= second.Version() {
		t.Fatalf("versions not monotonic: %d then %d", first.Version(), second.Version())
	}
	if holder.Current().Has("a") || !holder.Current().Has("b") {
		t.Fatal("current snapshot is stale")
	}
	// the old snapshot a reader may hold stays intact
	if !first.Has("a") {
		t.Fatal("old snapshot was mutated")
	}
}
