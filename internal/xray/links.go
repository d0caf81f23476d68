package xray

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"proxy-panel/internal/core"
	"proxy-panel/internal/proxy"
)

// BuildLink renders one shareable client link for a resolved config
// record. Unknown protocol/settings combinations yield an empty string.
func BuildLink(username, host string, rec core.ConfigRecord) string {
	switch s := rec.Settings.(type) {
	case proxy.VMessSettings:
		return buildVMessLink(username, host, rec, s)
	case proxy.VLESSSettings:
		return buildVLESSLink(username, host, rec, s)
	case proxy.TrojanSettings:
		return fmt.Sprintf("trojan://%s@%s:%d?type=%s#%s-%s",
			s.Password, host, rec.Port, network(rec), username, rec.Tag)
	case proxy.ShadowsocksSettings:
		userinfo := base64.StdEncoding.EncodeToString([]byte(s.Method + ":" + s.Password))
		return fmt.Sprintf("ss://%s@%s:%d#%s-%s", userinfo, host, rec.Port, username, rec.Tag)
	}
	return ""
}

func buildVMessLink(username, host string, rec core.ConfigRecord, s proxy.VMessSettings) string {
	payload := map[string]interface{}{
		"v":    "2",
		"ps":   username + "-" + rec.Tag,
		"add":  host,
		"port": fmt.Sprintf("%d", rec.Port),
		"id":   s.ID,
		"aid":  "0",
		"net":  network(rec),
		"type": "none",
		"host": "",
		"path": "",
	}
	encoded, _ := json.Marshal(payload)
	return "vmess://" + base64.StdEncoding.EncodeToString(encoded)
}

func buildVLESSLink(username, host string, rec core.ConfigRecord, s proxy.VLESSSettings) string {
	link := fmt.Sprintf("vless://%s@%s:%d?type=%s", s.ID, host, rec.Port, network(rec))
	if s.Flow != "" {
		link += "&flow=" + s.Flow
	}
	return link + "#" + username + "-" + rec.Tag
}

func network(rec core.ConfigRecord) string {
	if rec.Network == "" {
		return "tcp"
	}
	return rec.Network
}
