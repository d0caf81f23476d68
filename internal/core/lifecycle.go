package core

import (
	"time"

	"proxy-panel/internal/models"
)

// DataLimitReached reports whether the user has used up the current quota.
// A nil limit means unlimited.
func DataLimitReached(u *models.User) bool {
	return u.DataLimit != nil && u.UsedTraffic >= *u.DataLimit
}

// Expired reports whether the user's fixed deadline has passed. A nil
// expire means no expiry.
func Expired(u *models.User, now time.Time) bool {
	return u.Expire != nil && !now.Before(*u.Expire)
}

// EvaluateStatus recomputes the user's status from its counters and the
// current instant. It is a pure function: the input is never mutated and
// the returned copy carries every field change, which the caller persists.
// The second result reports whether anything changed.
//
// disabled is an explicit admin lock and never exits automatically.
// on_hold only leaves through ActivateOnHold (first use) or an admin write.
func EvaluateStatus(u models.User, now time.Time) (models.User, bool) {
	orig := u.Status

	switch u.Status {
	case models.StatusActive:
		if DataLimitReached(&u) {
			u.Status = models.StatusLimited
		} else if Expired(&u, now) {
			u.Status = models.StatusExpired
		}
	case models.StatusLimited, models.StatusExpired:
		// exhausted already; only an armed rollover can move it
	default:
		return u, false
	}

	if (u.Status == models.StatusLimited || u.Status == models.StatusExpired) &&
		u.NextPlan != nil && rolloverFires(&u, now) {
		return applyNextPlan(u, now), true
	}
	return u, u.Status != orig
}

// rolloverFires checks the next plan's trigger against the current
// counters. fire_on_either arms the plan as soon as one of the two
// exhaustion conditions holds; otherwise both must hold at once.
func rolloverFires(u *models.User, now time.Time) bool {
	limitHit := DataLimitReached(u)
	expireHit := Expired(u, now)
	if u.NextPlan.FireOnEither {
		return limitHit || expireHit
	}
	return limitHit && expireHit
}

// applyNextPlan consumes the armed plan: quota and deadline are replaced,
// usage restarts at zero and the user returns to active.
func applyNextPlan(u models.User, now time.Time) models.User {
	plan := u.NextPlan

	newLimit := plan.DataLimit
	if plan.AddRemainingTraffic && u.DataLimit != nil {
		if remaining := *u.DataLimit - u.UsedTraffic; remaining > 0 {
			newLimit += remaining
		}
	}
	if newLimit > 0 {
		u.DataLimit = &newLimit
	} else {
		u.DataLimit = nil
	}

	u.UsedTraffic = 0

	if plan.Expire > 0 {
		exp := now.Add(time.Duration(plan.Expire) * time.Second)
		u.Expire = &exp
	} else {
		u.Expire = nil
	}

	// a plan stamped from a template stays armed for the next exhaustion
	if plan.UserTemplateID == nil {
		u.NextPlan = nil
	}

	u.Status = models.StatusActive
	return u
}

// ActivateOnHold converts the hold's relative duration into an absolute
// deadline at first use. It is a no-op for any other status.
func ActivateOnHold(u models.User, now time.Time) (models.User, bool) {
	if u.Status != models.StatusOnHold || u.OnHoldExpireDuration == nil || *u.OnHoldExpireDuration <= 0 {
		return u, false
	}
	exp := now.Add(time.Duration(*u.OnHoldExpireDuration) * time.Second)
	u.Expire = &exp
	u.OnHoldExpireDuration = nil
	u.OnHoldTimeout = nil
	u.Status = models.StatusActive
	return u, true
}

// ApplyResetStrategy zeroes used_traffic when a new day/week/month/year
// period (per the user's strategy) has started since the last reset. The
// pre-reset usage is folded into lifetime_used_traffic first. Status is
// left alone; callers run EvaluateStatus afterwards so a limited user may
// become active again.
func ApplyResetStrategy(u models.User, now time.Time) (models.User, bool) {
	if u.DataLimitResetStrategy == "" || u.DataLimitResetStrategy == models.ResetNever {
		return u, false
	}

	last := u.CreatedAt
	if u.LastTrafficResetAt != nil {
		last = *u.LastTrafficResetAt
	}
	if !periodStart(now, u.DataLimitResetStrategy).After(last) {
		return u, false
	}

	u.LifetimeUsedTraffic += u.UsedTraffic
	u.UsedTraffic = 0
	reset := now
	u.LastTrafficResetAt = &reset
	if u.Status == models.StatusLimited {
		u.Status = models.StatusActive
	}
	return u, true
}

// periodStart returns the start of the period containing t for the given
// strategy, in UTC. Weeks start on Monday.
func periodStart(t time.Time, strategy models.DataLimitResetStrategy) time.Time {
	t = t.UTC()
	switch strategy {
	case models.ResetDaily:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case models.ResetWeekly:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		return day.AddDate(0, 0, -offset)
	case models.ResetMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case models.ResetYearly:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}
