package models

import "proxy-panel/internal/proxy"

// Inbound mirrors one listener of the running proxy engine. The engine's
// config file is the source of truth; rows here are synced from it and
// pruned when a tag disappears.
type Inbound struct {
	Tag      string     `gorm:"primaryKey;size:64"`
	Protocol proxy.Type `gorm:"size:16;index;not null"`
}
