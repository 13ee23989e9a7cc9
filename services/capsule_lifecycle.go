package services

import (
	"sort"
	"time"

	"timinkAPI/internal/types/capsule"
)

const day = 24 * time.Hour

// ComputeTimeUntilUnlock splits the time left before unlockAt into whole
// days, hours and minutes. Each step floors; there is no seconds field.
// When unlockAt is not after now the capsule is unlockable and every
// duration field is zero.
func ComputeTimeUntilUnlock(unlockAt, now time.Time) capsule.Countdown {
	if !unlockAt.After(now) {
		return capsule.Countdown{IsUnlockable: true}
	}

	left := unlockAt.Sub(now)
	days := left / day
	left -= days * day
	hours := left / time.Hour
	left -= hours * time.Hour
	minutes := left / time.Minute

	return capsule.Countdown{
		Days:    int(days),
		Hours:   int(hours),
		Minutes: int(minutes),
	}
}

// CanUnlock reports whether c is locked and due at now.
func CanUnlock(c *capsule.Capsule, now time.Time) bool {
	return c.Status == capsule.StatusLocked && !now.Before(c.UnlockAt)
}

// FilterPending keeps capsules the member still owes content to: active
// membership, capsule locked, nothing submitted yet.
func FilterPending(memberships []capsule.Membership) []capsule.Membership {
	out := make([]capsule.Membership, 0, len(memberships))
	for _, m := range memberships {
		if m.Member.Status != capsule.MemberActive || m.Capsule.Status != capsule.StatusLocked {
			continue
		}
		if m.HasContent {
			continue
		}
		out = append(out, m)
	}
	return out
}

// FilterUnlockable keeps locked capsules that are due at now, soonest
// unlock_at first. Ties keep their input order.
func FilterUnlockable(memberships []capsule.Membership, now time.Time) []capsule.Membership {
	out := make([]capsule.Membership, 0, len(memberships))
	for _, m := range memberships {
		if m.Member.Status != capsule.MemberActive {
			continue
		}
		if CanUnlock(&m.Capsule, now) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Capsule.UnlockAt.Before(out[j].Capsule.UnlockAt)
	})
	return out
}

func toView(m capsule.Membership, now time.Time) capsule.View {
	return capsule.View{
		Capsule:    m.Capsule,
		Role:       m.Member.Role,
		IsPinned:   m.Member.IsPinned,
		HasContent: m.HasContent,
		Countdown:  ComputeTimeUntilUnlock(m.Capsule.UnlockAt, now),
	}
}

func toViews(ms []capsule.Membership, now time.Time) []capsule.View {
	views := make([]capsule.View, 0, len(ms))
	for _, m := range ms {
		views = append(views, toView(m, now))
	}
	return views
}
