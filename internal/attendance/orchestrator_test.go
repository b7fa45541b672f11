package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"attendbot/internal/db/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConfigs struct {
	cfg *models.GuildConfig
	err error
}

func (f *fakeConfigs) GetGuildConfig(ctx context.Context, guildID string) (*models.GuildConfig, error) {
	return f.cfg, f.err
}

func (f *fakeConfigs) UpsertGuildForm(ctx context.Context, guildID, viewURL, submitURL string, fieldID int64) error {
	return nil
}

func (f *fakeConfigs) DeleteGuildForm(ctx context.Context, guildID string) error { return nil }

func (f *fakeConfigs) UpsertAttendanceWindow(ctx context.Context, guildID string, w models.AttendanceWindow) error {
	return nil
}

func (f *fakeConfigs) DeleteAttendanceWindow(ctx context.Context, guildID string) error { return nil }

func (f *fakeConfigs) UpsertTimezone(ctx context.Context, guildID string, offsetMinutes int) error {
	return nil
}

// fakeLedger enforces the per-day uniqueness constraint under a mutex, the
// same guarantee the real store gets from its unique index. hideExisting makes
// reads report no record so every caller reaches the insert race.
type fakeLedger struct {
	mu           sync.Mutex
	records      map[string]*models.AttendanceRecord
	getErr       error
	insertErr    error
	hideExisting bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: map[string]*models.AttendanceRecord{}}
}

func ledgerKey(guildID, userID, day string) string {
	return fmt.Sprintf("%s/%s/%s", guildID, userID, day)
}

func (f *fakeLedger) GetRecord(ctx context.Context, guildID, userID, day string) (*models.AttendanceRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.hideExisting {
		return nil, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[ledgerKey(guildID, userID, day)], nil
}

func (f *fakeLedger) InsertRecord(ctx context.Context, rec *models.AttendanceRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := ledgerKey(rec.GuildID, rec.UserID, rec.AttendanceDay)
	if _, exists := f.records[key]; exists {
		return fmt.Errorf("insert attendance: %w", ErrDuplicateRecord)
	}
	f.records[key] = rec
	return nil
}

func (f *fakeLedger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeSubmitter struct {
	mu     sync.Mutex
	calls  []string
	err    error
	delay  time.Duration
	lastID int64
}

func (f *fakeSubmitter) Submit(ctx context.Context, submitURL string, fieldID int64, value string) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, value)
	f.lastID = fieldID
	f.mu.Unlock()
	return f.err
}

func (f *fakeSubmitter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestOrchestrator(cfg *models.GuildConfig, ledger *fakeLedger, forms *fakeSubmitter, timeout time.Duration) *Orchestrator {
	return NewOrchestrator(&fakeConfigs{cfg: cfg}, ledger, NewGate(10, 10), forms, timeout)
}

func TestMarkAttendanceSuccess(t *testing.T) {
	cfg := testGuildConfig(nil, 7*60)
	ledger := newFakeLedger()
	forms := &fakeSubmitter{}
	o := newTestOrchestrator(cfg, ledger, forms, time.Second)

	now := time.Date(2024, 1, 1, 2, 30, 0, 0, time.UTC)
	res := o.MarkAttendance(context.Background(), "guild-1", "user-1", "Alice", now)

	require.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 1, forms.callCount())
	assert.Equal(t, cfg.NameFieldID, forms.lastID)

	rec, err := ledger.GetRecord(context.Background(), "guild-1", "user-1", "2024-01-01")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "2024-01-01", rec.AttendanceDay)
	assert.Equal(t, cfg.FormSubmitURL, rec.FormURL)
}

func TestMarkAttendanceDeniedNoForm(t *testing.T) {
	ledger := newFakeLedger()
	forms := &fakeSubmitter{}
	o := newTestOrchestrator(nil, ledger, forms, time.Second)

	res := o.MarkAttendance(context.Background(), "guild-1", "user-1", "Alice", time.Now())

	assert.Equal(t, StatusDenied, res.Status)
	assert.Equal(t, DenyNoFormConfigured, res.Reason)
	assert.Zero(t, forms.callCount())
	assert.Zero(t, ledger.count())
}

func TestMarkAttendanceDeniedAlreadyMarked(t *testing.T) {
	cfg := testGuildConfig(nil, 7*60)
	ledger := newFakeLedger()
	forms := &fakeSubmitter{}
	o := newTestOrchestrator(cfg, ledger, forms, time.Second)

	now := time.Date(2024, 1, 1, 2, 30, 0, 0, time.UTC)
	require.Equal(t, StatusSuccess, o.MarkAttendance(context.Background(), "guild-1", "user-1", "Alice", now).Status)

	res := o.MarkAttendance(context.Background(), "guild-1", "user-1", "Alice", now)
	assert.Equal(t, StatusDenied, res.Status)
	assert.Equal(t, DenyAlreadyMarked, res.Reason)
	assert.Equal(t, 1, forms.callCount())
	assert.Equal(t, 1, ledger.count())
}

func TestMarkAttendanceDeniedOutsideWindow(t *testing.T) {
	// Window on Tuesday; attempt on Monday
	cfg := testGuildConfig(&models.AttendanceWindow{Day: 2, StartMinute: 9 * 60, EndMinute: 10 * 60}, 7*60)
	ledger := newFakeLedger()
	forms := &fakeSubmitter{}
	o := newTestOrchestrator(cfg, ledger, forms, time.Second)

	now := time.Date(2024, 1, 1, 2, 30, 0, 0, time.UTC)
	res := o.MarkAttendance(context.Background(), "guild-1", "user-1", "Alice", now)

	assert.Equal(t, StatusDenied, res.Status)
	assert.Equal(t, DenyOutsideWindow, res.Reason)
	assert.Zero(t, forms.callCount())
}

func TestMarkAttendanceLookupFailure(t *testing.T) {
	o := NewOrchestrator(&fakeConfigs{err: errors.New("connection refused")}, newFakeLedger(), NewGate(1, 1), &fakeSubmitter{}, time.Second)

	res := o.MarkAttendance(context.Background(), "guild-1", "user-1", "Alice", time.Now())
	assert.Equal(t, StatusFailure, res.Status)
	assert.Equal(t, FailureLookup, res.Failure)
}

func TestMarkAttendanceSubmissionFailure(t *testing.T) {
	cfg := testGuildConfig(nil, 7*60)
	ledger := newFakeLedger()
	forms := &fakeSubmitter{err: errors.New("status 500")}
	o := newTestOrchestrator(cfg, ledger, forms, time.Second)

	res := o.MarkAttendance(context.Background(), "guild-1", "user-1", "Alice", time.Now())

	assert.Equal(t, StatusFailure, res.Status)
	assert.Equal(t, FailureSubmission, res.Failure)
	assert.Zero(t, ledger.count(), "no record after a failed submission")
}

func TestMarkAttendanceRecordingFailure(t *testing.T) {
	cfg := testGuildConfig(nil, 7*60)
	ledger := newFakeLedger()
	ledger.insertErr = errors.New("connection reset")
	forms := &fakeSubmitter{}
	o := newTestOrchestrator(cfg, ledger, forms, time.Second)

	res := o.MarkAttendance(context.Background(), "guild-1", "user-1", "Alice", time.Now())

	assert.Equal(t, StatusFailure, res.Status)
	assert.Equal(t, FailureRecording, res.Failure)
	assert.Equal(t, 1, forms.callCount(), "submission happened before the write failed")
}

func TestMarkAttendanceLostInsertRace(t *testing.T) {
	// The eligibility read sees no record but the insert hits the constraint:
	// a concurrent attempt won, so the user is in fact recorded.
	cfg := testGuildConfig(nil, 7*60)
	ledger := newFakeLedger()
	ledger.hideExisting = true
	forms := &fakeSubmitter{}
	o := newTestOrchestrator(cfg, ledger, forms, time.Second)

	now := time.Date(2024, 1, 1, 2, 30, 0, 0, time.UTC)
	require.Equal(t, StatusSuccess, o.MarkAttendance(context.Background(), "guild-1", "user-1", "Alice", now).Status)

	res := o.MarkAttendance(context.Background(), "guild-1", "user-1", "Alice", now)
	assert.Equal(t, StatusDenied, res.Status)
	assert.Equal(t, DenyAlreadyMarked, res.Reason)
	assert.Equal(t, 1, ledger.count())
}

func TestMarkAttendanceTimeout(t *testing.T) {
	cfg := testGuildConfig(nil, 7*60)
	ledger := newFakeLedger()
	forms := &fakeSubmitter{delay: 500 * time.Millisecond}
	o := newTestOrchestrator(cfg, ledger, forms, 50*time.Millisecond)

	res := o.MarkAttendance(context.Background(), "guild-1", "user-1", "Alice", time.Now())

	assert.Equal(t, StatusFailure, res.Status)
	assert.Equal(t, FailureTimeout, res.Failure)
	assert.Zero(t, ledger.count())
}

func TestMarkAttendanceConcurrentDuplicates(t *testing.T) {
	// All goroutines pass the eligibility read and race on the insert; the
	// constraint must admit exactly one.
	cfg := testGuildConfig(nil, 7*60)
	ledger := newFakeLedger()
	ledger.hideExisting = true
	forms := &fakeSubmitter{}
	o := newTestOrchestrator(cfg, ledger, forms, 5*time.Second)

	now := time.Date(2024, 1, 1, 2, 30, 0, 0, time.UTC)

	const attempts = 10
	results := make([]Result, attempts)
	var wg sync.WaitGroup
	for n := 0; n < attempts; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results[n] = o.MarkAttendance(context.Background(), "guild-1", "user-1", "Alice", now)
		}(n)
	}
	wg.Wait()

	successes := 0
	for _, res := range results {
		switch res.Status {
		case StatusSuccess:
			successes++
		case StatusDenied:
			assert.Equal(t, DenyAlreadyMarked, res.Reason)
		default:
			t.Errorf("unexpected result %+v", res)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, ledger.count())
}
