package attendance

import (
	"context"
	"errors"
	"log"
	"time"

	"attendbot/internal/db/models"
	"attendbot/internal/gform"
)

// Timezone offsets are whole minutes from UTC. The default matches the
// original deployment region (UTC+7, Jakarta).
const (
	MinTzOffsetMinutes     = -12 * 60
	MaxTzOffsetMinutes     = 14 * 60
	DefaultTzOffsetMinutes = 7 * 60
)

var (
	// ErrInvalidWindow rejects windows outside a single day or with
	// start >= end. Midnight-crossing windows are a documented constraint,
	// caught here so the evaluator never sees one.
	ErrInvalidWindow = errors.New("window must use day 1-7 with start before end within one day")

	// ErrInvalidTimezone rejects offsets outside UTC-12:00..UTC+14:00.
	ErrInvalidTimezone = errors.New("timezone offset out of range")
)

// Resolver turns an admin-supplied link into canonical endpoints and finds
// the form's free-text name field.
type Resolver interface {
	Resolve(ctx context.Context, rawLink string) (viewURL, submitURL string, err error)
	DiscoverNameField(ctx context.Context, viewURL string) (int64, error)
}

// Configurator implements the admin-side configuration operations. These run
// out-of-band from attendance marking and use a more generous deadline, with
// bounded retry on transient form-host errors.
type Configurator struct {
	configs ConfigStore
	forms   Resolver
	timeout time.Duration
}

func NewConfigurator(configs ConfigStore, forms Resolver, timeout time.Duration) *Configurator {
	return &Configurator{
		configs: configs,
		forms:   forms,
		timeout: timeout,
	}
}

// ConfigureForm resolves rawLink, discovers the name field, and persists the
// endpoint pair and field id as one unit. Resolution and discovery errors
// propagate unchanged for the caller to render.
func (c *Configurator) ConfigureForm(ctx context.Context, guildID, rawLink string) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var viewURL, submitURL string
	err := withRetry(ctx, func() error {
		var err error
		viewURL, submitURL, err = c.forms.Resolve(ctx, rawLink)
		return err
	})
	if err != nil {
		return err
	}

	var fieldID int64
	err = withRetry(ctx, func() error {
		var err error
		fieldID, err = c.forms.DiscoverNameField(ctx, viewURL)
		return err
	})
	if err != nil {
		return err
	}

	return c.configs.UpsertGuildForm(ctx, guildID, viewURL, submitURL, fieldID)
}

// ConfigureWindow validates and stores the weekly attendance window.
func (c *Configurator) ConfigureWindow(ctx context.Context, guildID string, w models.AttendanceWindow) error {
	if w.Day < 1 || w.Day > 7 {
		return ErrInvalidWindow
	}
	if w.StartMinute < 0 || w.EndMinute > 24*60-1 || w.StartMinute >= w.EndMinute {
		return ErrInvalidWindow
	}
	return c.configs.UpsertAttendanceWindow(ctx, guildID, w)
}

// ConfigureTimezone validates and stores the guild's UTC offset in minutes.
func (c *Configurator) ConfigureTimezone(ctx context.Context, guildID string, offsetMinutes int) error {
	if offsetMinutes < MinTzOffsetMinutes || offsetMinutes > MaxTzOffsetMinutes {
		return ErrInvalidTimezone
	}
	return c.configs.UpsertTimezone(ctx, guildID, offsetMinutes)
}

// RemoveForm clears the form endpoints and field id. The attendance window,
// if any, is untouched.
func (c *Configurator) RemoveForm(ctx context.Context, guildID string) error {
	return c.configs.DeleteGuildForm(ctx, guildID)
}

// RemoveWindow clears the attendance window. The form configuration, if any,
// is untouched.
func (c *Configurator) RemoveWindow(ctx context.Context, guildID string) error {
	return c.configs.DeleteAttendanceWindow(ctx, guildID)
}

// GuildConfig reads the current configuration for display. Returns (nil, nil)
// for guilds that were never configured.
func (c *Configurator) GuildConfig(ctx context.Context, guildID string) (*models.GuildConfig, error) {
	return c.configs.GetGuildConfig(ctx, guildID)
}

const configureRetries = 3

// withRetry runs fn up to configureRetries times, backing off linearly, and
// retries only transient network errors. Configuration errors (bad link, no
// text field) surface immediately; retrying cannot fix them.
func withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= configureRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, gform.ErrNetwork) {
			return err
		}
		lastErr = err
		if attempt == configureRetries {
			break
		}
		log.Printf("attendance: transient form host error (attempt %d): %v", attempt, err)
		select {
		case <-time.After(time.Second * time.Duration(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
