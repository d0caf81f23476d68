package proxy

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// Type is a proxy protocol supported by the underlying engine.
type Type string

const (
	VMess       Type = "vmess"
	VLESS       Type = "vless"
	Trojan      Type = "trojan"
	Shadowsocks Type = "shadowsocks"
)

// Types returns all known protocol types in a fixed order.
func Types() []Type {
	return []Type{VMess, VLESS, Trojan, Shadowsocks}
}

// ValidType reports whether t is one of the known protocol types.
func ValidType(t Type) bool {
	switch t {
	case VMess, VLESS, Trojan, Shadowsocks:
		return true
	}
	return false
}

// ProtocolSettings is the per-protocol credential record carried by a user.
type ProtocolSettings interface {
	Type() Type
}

type VMessSettings struct {
	ID string `json:"id"`
}

func (VMessSettings) Type() Type { return VMess }

type VLESSSettings struct {
	ID   string `json:"id"`
	Flow string `json:"flow,omitempty"`
}

func (VLESSSettings) Type() Type { return VLESS }

type TrojanSettings struct {
	Password string `json:"password"`
}

func (TrojanSettings) Type() Type { return Trojan }

type ShadowsocksSettings struct {
	Password string `json:"password"`
	Method   string `json:"method,omitempty"`
}

func (ShadowsocksSettings) Type() Type { return Shadowsocks }

// Settings holds one optional entry per known protocol type. A nil entry
// means the user has not enabled that protocol; a present entry with empty
// credentials is filled in by FillDefaults.
type Settings struct {
	VMess       *VMessSettings       `json:"vmess,omitempty"`
	VLESS       *VLESSSettings       `json:"vless,omitempty"`
	Trojan      *TrojanSettings      `json:"trojan,omitempty"`
	Shadowsocks *ShadowsocksSettings `json:"shadowsocks,omitempty"`
}

// Has reports whether the protocol is enabled for this user.
func (s Settings) Has(t Type) bool {
	_, ok := s.Get(t)
	return ok
}

// Get returns the settings entry for a protocol, if enabled.
func (s Settings) Get(t Type) (ProtocolSettings, bool) {
	switch t {
	case VMess:
		if s.VMess != nil {
			return *s.VMess, true
		}
	case VLESS:
		if s.VLESS != nil {
			return *s.VLESS, true
		}
	case Trojan:
		if s.Trojan != nil {
			return *s.Trojan, true
		}
	case Shadowsocks:
		if s.Shadowsocks != nil {
			return *s.Shadowsocks, true
		}
	}
	return nil, false
}

// EnabledTypes returns the enabled protocol types in the fixed Types order.
func (s Settings) EnabledTypes() []Type {
	var out []Type
	for _, t := range Types() {
		if s.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

// Empty reports whether no protocol is enabled.
func (s Settings) Empty() bool {
	return len(s.EnabledTypes()) == 0
}

// FillDefaults generates credentials for enabled protocols that were left
// blank. Disabled protocols stay disabled.
func (s *Settings) FillDefaults() {
	if s.VMess != nil && s.VMess.ID == "" {
		s.VMess.ID = uuid.New().String()
	}
	if s.VLESS != nil && s.VLESS.ID == "" {
		s.VLESS.ID = uuid.New().String()
	}
	if s.Trojan != nil && s.Trojan.Password == "" {
		s.Trojan.Password = randomHex(16)
	}
	if s.Shadowsocks != nil {
		if s.Shadowsocks.Password == "" {
			s.Shadowsocks.Password = randomHex(16)
		}
		if s.Shadowsocks.Method == "" {
			s.Shadowsocks.Method = "chacha20-ietf-poly1305"
		}
	}
}

// Validate checks that present credentials are well-formed.
func (s Settings) Validate() error {
	if s.VMess != nil && s.VMess.ID != "" {
		if _, err := uuid.Parse(s.VMess.ID); err != nil {
			return fmt.Errorf("vmess id is not a valid uuid")
		}
	}
	if s.VLESS != nil && s.VLESS.ID != "" {
		if _, err := uuid.Parse(s.VLESS.ID); err != nil {
			return fmt.Errorf("vless id is not a valid uuid")
		}
	}
	return nil
}

func randomHex(length int) string {
	buf := make([]byte, length)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
