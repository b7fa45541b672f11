package attendance

import (
	"time"

	"attendbot/internal/db/models"
)

// DenyReason explains why an attendance attempt was not permitted.
type DenyReason int

const (
	DenyNone DenyReason = iota
	DenyNoFormConfigured
	DenyAlreadyMarked
	DenyOutsideWindow
)

func (r DenyReason) String() string {
	switch r {
	case DenyNoFormConfigured:
		return "no form configured"
	case DenyAlreadyMarked:
		return "already marked"
	case DenyOutsideWindow:
		return "outside window"
	default:
		return "none"
	}
}

// Decision is the outcome of an eligibility check.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

// Evaluate decides whether marking attendance is permitted right now. It is a
// pure function: no I/O, no clock access. Rules apply in order, first match
// wins:
//
//  1. no form configured
//  2. already marked today
//  3. no window set means any time is eligible
//  4. guild-local day of week must match the window's day
//  5. guild-local time must fall in [start, end), end exclusive
//
// cfg may be nil (guild never configured), which denies at rule 1.
func Evaluate(now time.Time, cfg *models.GuildConfig, alreadyMarked bool) Decision {
	if !cfg.HasForm() {
		return Decision{Reason: DenyNoFormConfigured}
	}
	if alreadyMarked {
		return Decision{Reason: DenyAlreadyMarked}
	}
	if cfg.Window == nil {
		return Decision{Allowed: true}
	}

	local := now.In(GuildLocation(cfg.TzOffsetMinutes))
	if isoWeekday(local) != cfg.Window.Day {
		return Decision{Reason: DenyOutsideWindow}
	}
	minute := local.Hour()*60 + local.Minute()
	if minute < cfg.Window.StartMinute || minute >= cfg.Window.EndMinute {
		return Decision{Reason: DenyOutsideWindow}
	}
	return Decision{Allowed: true}
}

// GuildLocation returns a fixed-offset location for a guild's configured
// timezone offset in minutes.
func GuildLocation(offsetMinutes int) *time.Location {
	return time.FixedZone("", offsetMinutes*60)
}

// LocalDay returns the calendar date of an instant in the guild's timezone,
// formatted YYYY-MM-DD. Attendance records are keyed by this value.
func LocalDay(now time.Time, offsetMinutes int) string {
	return now.In(GuildLocation(offsetMinutes)).Format("2006-01-02")
}

// isoWeekday maps Go's Sunday-based weekday to ISO numbering (1=Monday,
// 7=Sunday), matching the stored window day.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
