package core

import (
	"errors"
	"testing"
	"time"

	"proxy-panel/internal/models"
	"proxy-panel/internal/proxy"
)

func validCandidate() models.User {
	return models.User{
		Username:               "user1234",
		Status:                 models.StatusActive,
		DataLimitResetStrategy: models.ResetNever,
		Groups:                 []models.Group{{Name: "group1"}},
		ProxySettings:          proxy.Settings{VMess: &proxy.VMessSettings{}},
	}
}

func violatedRules(err error) []string {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return nil
	}
	rules := make([]string, 0, len(verr.Violations))
	for _, v := range verr.Violations {
		rules = append(rules, v.Rule)
	}
	return rules
}

func hasRule(rules []string, name string) bool {
	for _, r := range rules {
		if r == name {
			return true
		}
	}
	return false
}

func TestValidateUser_Valid(t *testing.T) {
	u := validCandidate()
	NormalizeUser(&u)
	if err := ValidateUser(&u, true); err != nil {
		t.Fatalf("ValidateUser() error = %v, want nil", err)
	}
	// enabled protocol got default credentials
	if u.ProxySettings.VMess.ID == "" {
		t.Fatal("vmess id should be default-filled")
	}
}

func TestValidateUser_OnHoldWithoutDuration(t *testing.T) {
	u := validCandidate()
	u.Status = models.StatusOnHold
	NormalizeUser(&u)

	err := ValidateUser(&u, true)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !hasRule(violatedRules(err), "on_hold_duration") {
		t.Fatalf("violations = %v, want on_hold_duration", violatedRules(err))
	}
}

func TestValidateUser_OnHoldZeroDurationNormalized(t *testing.T) {
	zero := int64(0)
	u := validCandidate()
	u.Status = models.StatusOnHold
	u.OnHoldExpireDuration = &zero
	NormalizeUser(&u)

	// zero means unset, so the invariant still fails
	if err := ValidateUser(&u, true); err == nil {
		t.Fatal("zero hold duration must not satisfy the on_hold invariant")
	}
}

func TestValidateUser_OnHoldWithExpire(t *testing.T) {
	dur := int64(3600)
	exp := time.Now().Add(time.Hour)
	u := validCandidate()
	u.Status = models.StatusOnHold
	u.OnHoldExpireDuration = &dur
	u.Expire = &exp
	NormalizeUser(&u)

	err := ValidateUser(&u, true)
	if !hasRule(violatedRules(err), "on_hold_no_expire") {
		t.Fatalf("violations = %v, want on_hold_no_expire", violatedRules(err))
	}
}

func TestValidateUser_CreationStatus(t *testing.T) {
	for _, status := range []models.UserStatus{models.StatusLimited, models.StatusExpired, models.StatusDisabled} {
		u := validCandidate()
		u.Status = status
		NormalizeUser(&u)
		err := ValidateUser(&u, true)
		if !hasRule(violatedRules(err), "creation_status") {
			t.Errorf("status %s accepted at creation", status)
		}
	}
}

func TestValidateUser_GroupsRequired(t *testing.T) {
	u := validCandidate()
	u.Groups = nil
	NormalizeUser(&u)

	err := ValidateUser(&u, true)
	if !hasRule(violatedRules(err), "groups_required") {
		t.Fatalf("violations = %v, want groups_required", violatedRules(err))
	}

	// modify path allows keeping groups untouched
	if err := ValidateUser(&u, false); err != nil {
		t.Fatalf("modify validation error = %v, want nil", err)
	}
}

func TestValidateUser_CollectsAllViolations(t *testing.T) {
	u := models.User{
		Username: "x", // too short
		Status:   models.StatusOnHold,
	}
	NormalizeUser(&u)

	err := ValidateUser(&u, false)
	rules := violatedRules(err)
	if !hasRule(rules, "username_pattern") || !hasRule(rules, "on_hold_duration") {
		t.Fatalf("violations = %v, want both username_pattern and on_hold_duration", rules)
	}
}

func TestNormalizeUser_ZeroMeansUnset(t *testing.T) {
	zero := int64(0)
	var zeroTime time.Time
	u := validCandidate()
	u.DataLimit = &zero
	u.Expire = &zeroTime
	u.OnHoldExpireDuration = &zero
	NormalizeUser(&u)

	if u.DataLimit != nil || u.Expire != nil || u.OnHoldExpireDuration != nil {
		t.Fatalf("zero values must normalize to nil: %+v", u)
	}
}

func TestNormalizeUser_DefaultStatusFromHoldFields(t *testing.T) {
	dur := int64(60)

	u := validCandidate()
	u.Status = ""
	NormalizeUser(&u)
	if u.Status != models.StatusActive {
		t.Fatalf("status = %s, want active", u.Status)
	}

	held := validCandidate()
	held.Status = ""
	held.OnHoldExpireDuration = &dur
	NormalizeUser(&held)
	if held.Status != models.StatusOnHold {
		t.Fatalf("status = %s, want on_hold", held.Status)
	}
}

func TestValidateStatusWrite(t *testing.T) {
	u := validCandidate()

	if err := ValidateStatusWrite(&u, models.StatusLimited); err == nil {
		t.Fatal("limited must not be directly writable")
	}
	if err := ValidateStatusWrite(&u, models.StatusExpired); err == nil {
		t.Fatal("expired must not be directly writable")
	}
	if err := ValidateStatusWrite(&u, models.StatusDisabled); err != nil {
		t.Fatalf("disable rejected: %v", err)
	}

	// on_hold needs a hold duration on the row
	if err := ValidateStatusWrite(&u, models.StatusOnHold); err == nil {
		t.Fatal("on_hold without duration accepted")
	}
	dur := int64(3600)
	u.OnHoldExpireDuration = &dur
	if err := ValidateStatusWrite(&u, models.StatusOnHold); err != nil {
		t.Fatalf("on_hold with duration rejected: %v", err)
	}

	exp := time.Now().Add(time.Hour)
	u.Expire = &exp
	if err := ValidateStatusWrite(&u, models.StatusOnHold); err == nil {
		t.Fatal("on_hold together with expire accepted")
	}
}

func TestStampFromTemplate(t *testing.T) {
	now := time.Now()
	limit := int64(1 << 30)
	dur := int64(86400)
	tmpl := models.UserTemplate{
		Name:           "monthly",
		DataLimit:      &limit,
		ExpireDuration: &dur,
		UsernamePrefix: "shop_",
		UsernameSuffix: "_01",
		Groups:         []models.Group{{Name: "group1"}},
	}

	u := models.User{Username: "alice"}
	StampFromTemplate(&u, &tmpl, now)

	if u.Username != "shop_alice_01" {
		t.Fatalf("username = %s, want shop_alice_01", u.Username)
	}
	if u.DataLimit == nil || *u.DataLimit != limit {
		t.Fatalf("data_limit = %v, want %d", u.DataLimit, limit)
	}
	if u.Expire == nil || !u.Expire.Equal(now.Add(24*time.Hour)) {
		t.Fatalf("expire = %v, want %v", u.Expire, now.Add(24*time.Hour))
	}
	if len(u.Groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(u.Groups))
	}
}
