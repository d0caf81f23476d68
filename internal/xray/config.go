package xray

import (
	"encoding/json"
	"fmt"
	"os"

	"proxy-panel/internal/core"
	"proxy-panel/internal/proxy"
)

type xrayInbound struct {
	Tag            string                 `json:"tag"`
	Listen         string                 `json:"listen"`
	Port           int                    `json:"port"`
	Protocol       string                 `json:"protocol"`
	Settings       map[string]interface{} `json:"settings"`
	StreamSettings map[string]interface{} `json:"streamSettings"`
}

type xrayConfig struct {
	Inbounds []xrayInbound `json:"inbounds"`
}

// LoadInbounds parses the engine's config.json and returns the catalog
// view of its inbounds. Entries without a tag or with a protocol the panel
// does not manage are skipped.
func LoadInbounds(path string) ([]core.CatalogInbound, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read xray config: %w", err)
	}

	var cfg xrayConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse xray config: %w", err)
	}

	inbounds := make([]core.CatalogInbound, 0, len(cfg.Inbounds))
	for _, in := range cfg.Inbounds {
		if in.Tag == "" || !proxy.ValidType(proxy.Type(in.Protocol)) {
			continue
		}
		network := ""
		if ss := in.StreamSettings; ss != nil {
			if n, ok := ss["network"].(string); ok {
				network = n
			}
		}
		inbounds = append(inbounds, core.CatalogInbound{
			Tag:      in.Tag,
			Protocol: proxy.Type(in.Protocol),
			Port:     in.Port,
			Network:  network,
		})
	}
	return inbounds, nil
}
