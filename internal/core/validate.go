package core

import (
	"fmt"
	"time"

	"proxy-panel/internal/models"
	"proxy-panel/internal/util"
)

// userRule is one named validation check. Rules run in order and every
// broken rule is reported, not just the first.
type userRule struct {
	name  string
	check func(u *models.User) error
}

var userRules = []userRule{
	{"username_pattern", func(u *models.User) error {
		return util.ValidateUsername(u.Username)
	}},
	{"status_known", func(u *models.User) error {
		switch u.Status {
		case models.StatusActive, models.StatusDisabled, models.StatusLimited,
			models.StatusExpired, models.StatusOnHold:
			return nil
		}
		return fmt.Errorf("unknown status %q", u.Status)
	}},
	{"on_hold_duration", func(u *models.User) error {
		if u.Status == models.StatusOnHold && u.OnHoldExpireDuration == nil {
			return fmt.Errorf("on_hold requires a non-zero on_hold_expire_duration")
		}
		return nil
	}},
	{"on_hold_no_expire", func(u *models.User) error {
		if u.Status == models.StatusOnHold && u.Expire != nil {
			return fmt.Errorf("on_hold cannot carry a fixed expire")
		}
		return nil
	}},
	{"data_limit_non_negative", func(u *models.User) error {
		if u.DataLimit != nil && *u.DataLimit < 0 {
			return fmt.Errorf("data_limit must be 0 or greater")
		}
		return nil
	}},
	{"reset_strategy_known", func(u *models.User) error {
		if !models.ValidResetStrategy(u.DataLimitResetStrategy) {
			return fmt.Errorf("unknown reset strategy %q", u.DataLimitResetStrategy)
		}
		return nil
	}},
	{"proxy_settings", func(u *models.User) error {
		return u.ProxySettings.Validate()
	}},
	{"note_length", func(u *models.User) error {
		return util.ValidateNote(u.Note)
	}},
}

var createOnlyRules = []userRule{
	{"creation_status", func(u *models.User) error {
		if !u.Status.CreationStatus() {
			return fmt.Errorf("status %q cannot be chosen at creation", u.Status)
		}
		return nil
	}},
	{"groups_required", func(u *models.User) error {
		if len(u.Groups) == 0 {
			return fmt.Errorf("at least one group is required")
		}
		return nil
	}},
}

// NormalizeUser canonicalizes a candidate before validation: a zero expire,
// data limit or hold duration means unset and is stored as nil, so
// persisted rows never carry an ambiguous zero. Missing credentials on
// enabled protocols are filled in.
func NormalizeUser(u *models.User) {
	if u.DataLimit != nil && *u.DataLimit == 0 {
		u.DataLimit = nil
	}
	if u.Expire != nil && u.Expire.IsZero() {
		u.Expire = nil
	}
	if u.OnHoldExpireDuration != nil && *u.OnHoldExpireDuration == 0 {
		u.OnHoldExpireDuration = nil
	}
	if u.DataLimitResetStrategy == "" {
		u.DataLimitResetStrategy = models.ResetNever
	}
	if u.Status == "" {
		u.Status = models.StatusActive
		if u.OnHoldExpireDuration != nil {
			u.Status = models.StatusOnHold
		}
	}
	u.ProxySettings.FillDefaults()
}

// ValidateUser runs the shared rule list against an already-normalized
// candidate. forCreate adds the creation-only rules. The returned error,
// if any, is a *ValidationError listing every broken rule.
func ValidateUser(u *models.User, forCreate bool) error {
	rules := userRules
	if forCreate {
		rules = append(append([]userRule{}, createOnlyRules...), userRules...)
	}

	var violations []Violation
	for _, r := range rules {
		if err := r.check(u); err != nil {
			violations = append(violations, Violation{Rule: r.name, Message: err.Error()})
		}
	}
	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// ValidateStatusWrite checks a direct admin status write on an existing
// user: only active, disabled and on_hold may be requested, and the
// on_hold invariant must hold on the resulting value.
func ValidateStatusWrite(u *models.User, status models.UserStatus) error {
	if !status.AdminWritable() {
		return &ValidationError{Violations: []Violation{{
			Rule:    "status_writable",
			Message: fmt.Sprintf("status %q cannot be set directly", status),
		}}}
	}
	candidate := *u
	candidate.Status = status
	if status == models.StatusOnHold && u.Expire != nil {
		return &ValidationError{Violations: []Violation{{
			Rule:    "on_hold_no_expire",
			Message: "on_hold cannot carry a fixed expire",
		}}}
	}
	return ValidateUser(&candidate, false)
}

// StampFromTemplate fills a new user's quota, expiry and groups from a
// template and decorates the username with the template's prefix/suffix.
func StampFromTemplate(u *models.User, t *models.UserTemplate, now time.Time) {
	if t.UsernamePrefix != "" {
		u.Username = t.UsernamePrefix + u.Username
	}
	if t.UsernameSuffix != "" {
		u.Username = u.Username + t.UsernameSuffix
	}
	if u.DataLimit == nil && t.DataLimit != nil && *t.DataLimit > 0 {
		limit := *t.DataLimit
		u.DataLimit = &limit
	}
	if u.Expire == nil && t.ExpireDuration != nil && *t.ExpireDuration > 0 {
		exp := now.Add(time.Duration(*t.ExpireDuration) * time.Second)
		u.Expire = &exp
	}
	if len(u.Groups) == 0 {
		u.Groups = append(u.Groups, t.Groups...)
	}
}
