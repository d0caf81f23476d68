package proxy

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
)

func TestSettings_HasAndGet(t *testing.T) {
	s := Settings{
		VMess:  &VMessSettings{ID: "some-id"},
		Trojan: &TrojanSettings{Password: "pw"},
	}

	if !s.Has(VMess) || !s.Has(Trojan) {
		t.Error("enabled protocols not reported")
	}
	if s.Has(VLESS) || s.Has(Shadowsocks) {
		t.Error("disabled protocols reported as enabled")
	}

	got, ok := s.Get(Trojan)
	if !ok {
		t.Fatal("Get(Trojan) not found")
	}
	if got.(TrojanSettings).Password != "pw" {
		t.Errorf("password = %v", got)
	}
}

func TestSettings_EnabledTypesOrder(t *testing.T) {
	s := Settings{
		Shadowsocks: &ShadowsocksSettings{},
		VMess:       &VMessSettings{},
	}

	want := []Type{VMess, Shadowsocks}
	if got := s.EnabledTypes(); !reflect.DeepEqual(got, want) {
		t.Errorf("EnabledTypes() = %v, want %v", got, want)
	}
}

func TestSettings_Empty(t *testing.T) {
	if !(Settings{}).Empty() {
		t.Error("zero value should be empty")
	}
	if (Settings{VLESS: &VLESSSettings{}}).Empty() {
		t.Error("one enabled protocol should not be empty")
	}
}

func TestSettings_FillDefaults(t *testing.T) {
	s := Settings{
		VMess:       &VMessSettings{},
		VLESS:       &VLESSSettings{ID: "11111111-2222-3333-4444-555555555555"},
		Trojan:      &TrojanSettings{},
		Shadowsocks: &ShadowsocksSettings{},
	}
	s.FillDefaults()

	if _, err := uuid.Parse(s.VMess.ID); err != nil {
		t.Errorf("vmess id %q is not a uuid", s.VMess.ID)
	}
	// an already-set credential stays untouched
	if s.VLESS.ID != "11111111-2222-3333-4444-555555555555" {
		t.Errorf("vless id was overwritten: %q", s.VLESS.ID)
	}
	if len(s.Trojan.Password) != 32 {
		t.Errorf("trojan password length = %d, want 32", len(s.Trojan.Password))
	}
	if s.Shadowsocks.Password == "" {
		t.Error("shadowsocks password not filled")
	}
	if s.Shadowsocks.Method != "chacha20-ietf-poly1305" {
		t.Errorf("shadowsocks method = %q", s.Shadowsocks.Method)
	}
}

func TestSettings_FillDefaults_KeepsDisabled(t *testing.T) {
	s := Settings{VMess: &VMessSettings{}}
	s.FillDefaults()

	if s.VLESS != nil || s.Trojan != nil || s.Shadowsocks != nil {
		t.Error("disabled protocols must stay disabled")
	}
}

func TestSettings_Validate(t *testing.T) {
	ok := Settings{VMess: &VMessSettings{ID: uuid.New().String()}}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid settings error = %v", err)
	}

	bad := Settings{VMess: &VMessSettings{ID: "not-a-uuid"}}
	if err := bad.Validate(); err == nil {
		t.Error("malformed vmess id error = nil, want error")
	}

	badVLESS := Settings{VLESS: &VLESSSettings{ID: "nope"}}
	if err := badVLESS.Validate(); err == nil {
		t.Error("malformed vless id error = nil, want error")
	}
}

func TestValidType(t *testing.T) {
	for _, typ := range Types() {
		if !ValidType(typ) {
			t.Errorf("ValidType(%q) = false", typ)
		}
	}
	if ValidType("socks") {
		t.Error(`ValidType("socks") = true, want false`)
	}
}
