package core

import (
	"sort"
	"sync/atomic"

	"proxy-panel/internal/proxy"
)

// CatalogInbound is one listener of the running proxy engine as seen by the
// control plane.
type CatalogInbound struct {
	Tag      string
	Protocol proxy.Type
	Port     int
	Network  string
}

// Catalog is an immutable snapshot of every inbound the proxy engine
// currently exposes. Build a new one and swap it through a Holder; never
// mutate a snapshot readers may hold.
type Catalog struct {
	version uint64
	byTag   map[string]CatalogInbound
}

// NewCatalog builds a snapshot. Later duplicates of a tag win, matching the
// engine's own behavior for a misconfigured file.
func NewCatalog(version uint64, inbounds []CatalogInbound) *Catalog {
	byTag := make(map[string]CatalogInbound, len(inbounds))
	for _, in := range inbounds {
		if in.Tag == "" {
			continue
		}
		byTag[in.Tag] = in
	}
	return &Catalog{version: version, byTag: byTag}
}

// Version returns the snapshot's version counter.
func (c *Catalog) Version() uint64 { return c.version }

// Get looks up an inbound by tag.
func (c *Catalog) Get(tag string) (CatalogInbound, bool) {
	in, ok := c.byTag[tag]
	return in, ok
}

// Has reports whether the tag exists in this snapshot.
func (c *Catalog) Has(tag string) bool {
	_, ok := c.byTag[tag]
	return ok
}

// Tags returns every tag in the snapshot, sorted.
func (c *Catalog) Tags() []string {
	tags := make([]string, 0, len(c.byTag))
	for tag := range c.byTag {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Len returns the number of inbounds in the snapshot.
func (c *Catalog) Len() int { return len(c.byTag) }

// CatalogHolder publishes catalog snapshots to concurrent readers. Readers
// always see a whole snapshot, never a half-applied refresh.
type CatalogHolder struct {
	current atomic.Pointer[Catalog]
	version atomic.Uint64
}

// NewCatalogHolder starts with an empty snapshot so readers never see nil.
func NewCatalogHolder() *CatalogHolder {
	h := &CatalogHolder{}
	h.current.Store(NewCatalog(0, nil))
	return h
}

// Current returns the latest snapshot.
func (h *CatalogHolder) Current() *Catalog {
	return h.current.Load()
}

// Replace swaps in a new snapshot built from inbounds and returns it.
func (h *CatalogHolder) Replace(inbounds []CatalogInbound) *Catalog {
	cat := NewCatalog(h.version.Add(1), inbounds)
	h.current.Store(cat)
	return cat
}
