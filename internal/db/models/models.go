package models

import (
	"time"

	"github.com/google/uuid"
)

// AttendanceWindow is the recurring weekly interval during which marking is
// permitted. Day is ISO (1=Monday .. 7=Sunday); StartMinute and EndMinute are
// minutes since local midnight. Windows never cross midnight.
type AttendanceWindow struct {
	Day         int `db:"window_day"`
	StartMinute int `db:"window_start_minute"`
	EndMinute   int `db:"window_end_minute"`
}

// GuildConfig holds the per-guild attendance configuration. The form fields
// are absent until an admin registers a form link; view URL, submit URL and
// field id are always present together.
type GuildConfig struct {
	GuildID         string            `db:"guild_id"`
	FormViewURL     string            `db:"form_view_url"`
	FormSubmitURL   string            `db:"form_submit_url"`
	NameFieldID     int64             `db:"name_field_id"`
	Window          *AttendanceWindow `db:"-"`
	TzOffsetMinutes int               `db:"tz_offset_minutes"`
	CreatedAt       time.Time         `db:"created_at"`
}

// HasForm reports whether a form has been configured for the guild.
func (c *GuildConfig) HasForm() bool {
	return c != nil && c.FormViewURL != ""
}

// AttendanceRecord is one marked attendance. AttendanceDay is the calendar
// date in the guild's timezone, formatted YYYY-MM-DD. Records are immutable
// after insert.
type AttendanceRecord struct {
	ID            uuid.UUID `db:"id"`
	GuildID       string    `db:"guild_id"`
	UserID        string    `db:"user_id"`
	AttendanceDay string    `db:"attendance_day"`
	MarkedAt      time.Time `db:"marked_at"`
	FormURL       string    `db:"form_url"`
}
