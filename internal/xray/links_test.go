package xray

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"proxy-panel/internal/core"
	"proxy-panel/internal/proxy"
)

func TestBuildLink_VMess(t *testing.T) {
	rec := core.ConfigRecord{
		Tag:      "vmess-ws",
		Protocol: proxy.VMess,
		Port:     443,
		Network:  "ws",
		Settings: proxy.VMessSettings{ID: "11111111-2222-3333-4444-555555555555"},
	}

	link := BuildLink("alice", "example.com", rec)
	if !strings.HasPrefix(link, "vmess://") {
		t.Fatalf("link = %q, want vmess:// prefix", link)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(link, "vmess://"))
	if err != nil {
		t.Fatalf("payload is not base64: %v", err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("payload is not json: %v", err)
	}
	if payload["add"] != "example.com" || payload["port"] != "443" || payload["net"] != "ws" {
		t.Errorf("payload = %v", payload)
	}
	if payload["id"] != "11111111-2222-3333-4444-555555555555" {
		t.Errorf("id = %v", payload["id"])
	}
	if payload["ps"] != "alice-vmess-ws" {
		t.Errorf("ps = %v, want alice-vmess-ws", payload["ps"])
	}
}

func TestBuildLink_VLESS(t *testing.T) {
	rec := core.ConfigRecord{
		Tag:      "vless-tcp",
		Protocol: proxy.VLESS,
		Port:     8443,
		Settings: proxy.VLESSSettings{ID: "uuid-here", Flow: "xtls-rprx-vision"},
	}

	link := BuildLink("bob", "example.com", rec)
	want := "vless://uuid-here@example.com:8443?type=tcp&flow=xtls-rprx-vision#bob-vless-tcp"
	if link != want {
		t.Errorf("link = %q, want %q", link, want)
	}
}

func TestBuildLink_VLESS_NoFlow(t *testing.T) {
	rec := core.ConfigRecord{
		Tag:      "vless-ws",
		Protocol: proxy.VLESS,
		Port:     80,
		Network:  "ws",
		Settings: proxy.VLESSSettings{ID: "uuid-here"},
	}

	link := BuildLink("bob", "example.com", rec)
	if strings.Contains(link, "flow=") {
		t.Errorf("link = %q, should not carry flow", link)
	}
	if !strings.Contains(link, "?type=ws") {
		t.Errorf("link = %q, want type=ws", link)
	}
}

func TestBuildLink_Trojan(t *testing.T) {
	rec := core.ConfigRecord{
		Tag:      "trojan-tcp",
		Protocol: proxy.Trojan,
		Port:     443,
		Settings: proxy.TrojanSettings{Password: "p4ss"},
	}

	link := BuildLink("carol", "example.com", rec)
	want := "trojan://p4ss@example.com:443?type=tcp#carol-trojan-tcp"
	if link != want {
		t.Errorf("link = %q, want %q", link, want)
	}
}

func TestBuildLink_Shadowsocks(t *testing.T) {
	rec := core.ConfigRecord{
		Tag:      "ss-tcp",
		Protocol: proxy.Shadowsocks,
		Port:     8388,
		Settings: proxy.ShadowsocksSettings{Method: "chacha20-ietf-poly1305", Password: "p4ss"},
	}

	link := BuildLink("dave", "example.com", rec)
	if !strings.HasPrefix(link, "ss://") {
		t.Fatalf("link = %q, want ss:// prefix", link)
	}

	userinfo := strings.TrimPrefix(link, "ss://")
	userinfo = userinfo[:strings.Index(userinfo, "@")]
	decoded, err := base64.StdEncoding.DecodeString(userinfo)
	if err != nil {
		t.Fatalf("userinfo is not base64: %v", err)
	}
	if string(decoded) != "chacha20-ietf-poly1305:p4ss" {
		t.Errorf("userinfo = %q", decoded)
	}
}

func TestBuildLink_UnknownSettings(t *testing.T) {
	rec := core.ConfigRecord{Tag: "x", Settings: nil}
	if link := BuildLink("u", "h", rec); link != "" {
		t.Errorf("link = %q, want empty", link)
	}
}
