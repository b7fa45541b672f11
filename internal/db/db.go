package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"attendbot/internal/attendance"
	"attendbot/internal/config"
	"attendbot/internal/db/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	*pgxpool.Pool
}

// The orchestration core sees the DB only through these.
var (
	_ attendance.ConfigStore = (*DB)(nil)
	_ attendance.Ledger      = (*DB)(nil)
)

func New(cfg config.DatabaseConfig) (*DB, error) {
	// Create a configuration object
	poolCfg, err := pgxpool.ParseConfig(fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName, cfg.SSLMode,
	))
	if err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	// Configure connection pool and statement cache
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("error creating connection pool: %w", err)
	}

	return &DB{pool}, nil
}

// GetGuildConfig retrieves a guild's configuration, or (nil, nil) if the
// guild was never configured.
func (db *DB) GetGuildConfig(ctx context.Context, guildID string) (*models.GuildConfig, error) {
	query := `
		SELECT guild_id, form_view_url, form_submit_url, name_field_id,
		       window_day, window_start_minute, window_end_minute,
		       tz_offset_minutes, created_at
		FROM guilds
		WHERE guild_id = $1`

	var (
		cfg       models.GuildConfig
		viewURL   *string
		submitURL *string
		fieldID   *int64
		day       *int
		startMin  *int
		endMin    *int
	)
	err := db.QueryRow(ctx, query, guildID).Scan(
		&cfg.GuildID,
		&viewURL,
		&submitURL,
		&fieldID,
		&day,
		&startMin,
		&endMin,
		&cfg.TzOffsetMinutes,
		&cfg.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if viewURL != nil && submitURL != nil && fieldID != nil {
		cfg.FormViewURL = *viewURL
		cfg.FormSubmitURL = *submitURL
		cfg.NameFieldID = *fieldID
	}
	if day != nil && startMin != nil && endMin != nil {
		cfg.Window = &models.AttendanceWindow{
			Day:         *day,
			StartMinute: *startMin,
			EndMinute:   *endMin,
		}
	}
	return &cfg, nil
}

// UpsertGuildForm stores the resolved endpoint pair and field id as one unit,
// creating the guild row if needed.
func (db *DB) UpsertGuildForm(ctx context.Context, guildID, viewURL, submitURL string, fieldID int64) error {
	query := `
		INSERT INTO guilds (guild_id, form_view_url, form_submit_url, name_field_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id) DO UPDATE
		SET form_view_url = EXCLUDED.form_view_url,
		    form_submit_url = EXCLUDED.form_submit_url,
		    name_field_id = EXCLUDED.name_field_id`

	_, err := db.Exec(ctx, query, guildID, viewURL, submitURL, fieldID)
	return err
}

// DeleteGuildForm clears the form fields without touching the window or
// timezone.
func (db *DB) DeleteGuildForm(ctx context.Context, guildID string) error {
	query := `
		UPDATE guilds
		SET form_view_url = NULL, form_submit_url = NULL, name_field_id = NULL
		WHERE guild_id = $1`

	_, err := db.Exec(ctx, query, guildID)
	return err
}

// UpsertAttendanceWindow stores the weekly window, creating the guild row if
// needed.
func (db *DB) UpsertAttendanceWindow(ctx context.Context, guildID string, w models.AttendanceWindow) error {
	query := `
		INSERT INTO guilds (guild_id, window_day, window_start_minute, window_end_minute)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id) DO UPDATE
		SET window_day = EXCLUDED.window_day,
		    window_start_minute = EXCLUDED.window_start_minute,
		    window_end_minute = EXCLUDED.window_end_minute`

	_, err := db.Exec(ctx, query, guildID, w.Day, w.StartMinute, w.EndMinute)
	return err
}

// DeleteAttendanceWindow clears the window fields without touching the form
// configuration.
func (db *DB) DeleteAttendanceWindow(ctx context.Context, guildID string) error {
	query := `
		UPDATE guilds
		SET window_day = NULL, window_start_minute = NULL, window_end_minute = NULL
		WHERE guild_id = $1`

	_, err := db.Exec(ctx, query, guildID)
	return err
}

// UpsertTimezone stores the guild's UTC offset in minutes.
func (db *DB) UpsertTimezone(ctx context.Context, guildID string, offsetMinutes int) error {
	query := `
		INSERT INTO guilds (guild_id, tz_offset_minutes)
		VALUES ($1, $2)
		ON CONFLICT (guild_id) DO UPDATE
		SET tz_offset_minutes = EXCLUDED.tz_offset_minutes`

	_, err := db.Exec(ctx, query, guildID, offsetMinutes)
	return err
}

// GetRecord retrieves the attendance record for a guild/user/day key, or
// (nil, nil) if none exists. day is YYYY-MM-DD.
func (db *DB) GetRecord(ctx context.Context, guildID, userID, day string) (*models.AttendanceRecord, error) {
	query := `
		SELECT id, guild_id, user_id, attendance_day, marked_at, form_url
		FROM attendances
		WHERE guild_id = $1 AND user_id = $2 AND attendance_day = $3`

	rec := &models.AttendanceRecord{}
	var recDay time.Time
	err := db.QueryRow(ctx, query, guildID, userID, day).Scan(
		&rec.ID,
		&rec.GuildID,
		&rec.UserID,
		&recDay,
		&rec.MarkedAt,
		&rec.FormURL,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.AttendanceDay = recDay.Format("2006-01-02")
	return rec, nil
}

// InsertRecord writes a new attendance record. A violation of the
// (guild, user, day) unique constraint maps to attendance.ErrDuplicateRecord;
// the constraint, not any prior read, is what serializes concurrent attempts.
func (db *DB) InsertRecord(ctx context.Context, rec *models.AttendanceRecord) error {
	query := `
		INSERT INTO attendances (id, guild_id, user_id, attendance_day, marked_at, form_url)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := db.Exec(ctx, query,
		rec.ID.String(),
		rec.GuildID,
		rec.UserID,
		rec.AttendanceDay,
		rec.MarkedAt,
		rec.FormURL,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("insert attendance: %w", attendance.ErrDuplicateRecord)
	}
	return err
}
