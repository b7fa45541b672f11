package attendance

import (
	"context"
	"errors"

	"attendbot/internal/db/models"
)

// ErrDuplicateRecord is returned by Ledger.InsertRecord when a record for the
// same (guild, user, day) key already exists. Implementations map their
// store's uniqueness violation to this sentinel so the orchestrator can tell
// a lost insert race apart from other datastore failures.
var ErrDuplicateRecord = errors.New("attendance already recorded for this day")

// ConfigStore is the durable per-guild configuration store. Absent guilds
// read as (nil, nil). All writes upsert; rows are created lazily by the first
// configuration command.
type ConfigStore interface {
	GetGuildConfig(ctx context.Context, guildID string) (*models.GuildConfig, error)
	UpsertGuildForm(ctx context.Context, guildID, viewURL, submitURL string, fieldID int64) error
	DeleteGuildForm(ctx context.Context, guildID string) error
	UpsertAttendanceWindow(ctx context.Context, guildID string, w models.AttendanceWindow) error
	DeleteAttendanceWindow(ctx context.Context, guildID string) error
	UpsertTimezone(ctx context.Context, guildID string, offsetMinutes int) error
}

// Ledger is the durable attendance record store. InsertRecord must enforce
// the per-day uniqueness constraint itself; the orchestrator's prior read is
// only an optimization.
type Ledger interface {
	GetRecord(ctx context.Context, guildID, userID, day string) (*models.AttendanceRecord, error)
	InsertRecord(ctx context.Context, rec *models.AttendanceRecord) error
}
