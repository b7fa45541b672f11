package attendance

import (
	"context"
	"errors"
	"log"
	"time"

	"attendbot/internal/db/models"

	"github.com/google/uuid"
)

// Status is the top-level outcome of an attendance attempt.
type Status int

const (
	StatusSuccess Status = iota
	StatusDenied
	StatusFailure
)

// FailureKind classifies failed attempts. The bot layer renders these into
// user-facing text; raw transport errors never cross this boundary.
type FailureKind int

const (
	FailureNone FailureKind = iota
	// FailureLookup: config or ledger read failed before anything was submitted.
	FailureLookup
	// FailureSubmission: the form host rejected or never received the submission.
	FailureSubmission
	// FailureRecording: the form accepted the submission but the ledger write
	// failed for a non-duplicate reason. The external entry exists unrecorded.
	FailureRecording
	// FailureTimeout: the attempt deadline elapsed while queued or mid-call.
	FailureTimeout
)

// Result is the single outcome of one attendance attempt. Reason is set only
// for StatusDenied, Failure only for StatusFailure.
type Result struct {
	Status  Status
	Reason  DenyReason
	Failure FailureKind
}

// Submitter posts a display name into a configured form.
type Submitter interface {
	Submit(ctx context.Context, submitURL string, fieldID int64, value string) error
}

// Orchestrator sequences a single attendance attempt: gate acquisition,
// eligibility check, form submission, ledger write. Permits are held only for
// the duration of the individual external call, not the whole attempt.
type Orchestrator struct {
	configs        ConfigStore
	ledger         Ledger
	gate           *Gate
	forms          Submitter
	attemptTimeout time.Duration
}

func NewOrchestrator(configs ConfigStore, ledger Ledger, gate *Gate, forms Submitter, attemptTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		configs:        configs,
		ledger:         ledger,
		gate:           gate,
		forms:          forms,
		attemptTimeout: attemptTimeout,
	}
}

// MarkAttendance runs one attempt for a user. The attempt carries an overall
// deadline; elapsing it anywhere, queued on a permit or mid-call, reports
// FailureTimeout. A duplicate-key ledger insert after a successful submission
// means a concurrent attempt won the race and the user is in fact recorded;
// that maps to Denied(AlreadyMarked).
func (o *Orchestrator) MarkAttendance(ctx context.Context, guildID, userID, displayName string, now time.Time) Result {
	if o.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.attemptTimeout)
		defer cancel()
	}

	// Step 1: read config and today's record under one datastore permit.
	release, err := o.gate.AcquireStore(ctx)
	if err != nil {
		return Result{Status: StatusFailure, Failure: FailureTimeout}
	}
	cfg, day, marked, err := o.loadState(ctx, guildID, userID, now)
	release()
	if err != nil {
		log.Printf("attendance: lookup for guild %s user %s failed: %v", guildID, userID, err)
		return failureResult(ctx, FailureLookup)
	}

	// Step 2: eligibility. Denials short-circuit; nothing is submitted.
	dec := Evaluate(now, cfg, marked)
	if !dec.Allowed {
		return Result{Status: StatusDenied, Reason: dec.Reason}
	}

	// Step 3: submit the display name to the form host.
	releaseForm, err := o.gate.AcquireForm(ctx)
	if err != nil {
		return Result{Status: StatusFailure, Failure: FailureTimeout}
	}
	err = o.forms.Submit(ctx, cfg.FormSubmitURL, cfg.NameFieldID, displayName)
	releaseForm()
	if err != nil {
		log.Printf("attendance: form submission for guild %s user %s failed: %v", guildID, userID, err)
		return failureResult(ctx, FailureSubmission)
	}

	// Step 4: record it. The unique constraint closes the race between the
	// read in step 1 and this write.
	releaseStore, err := o.gate.AcquireStore(ctx)
	if err != nil {
		return Result{Status: StatusFailure, Failure: FailureTimeout}
	}
	rec := &models.AttendanceRecord{
		ID:            uuid.New(),
		GuildID:       guildID,
		UserID:        userID,
		AttendanceDay: day,
		MarkedAt:      now.UTC(),
		FormURL:       cfg.FormSubmitURL,
	}
	err = o.ledger.InsertRecord(ctx, rec)
	releaseStore()
	if err != nil {
		if errors.Is(err, ErrDuplicateRecord) {
			// A concurrent attempt's insert won; the user is recorded.
			return Result{Status: StatusDenied, Reason: DenyAlreadyMarked}
		}
		log.Printf("attendance: recording for guild %s user %s failed after submission: %v", guildID, userID, err)
		return failureResult(ctx, FailureRecording)
	}

	return Result{Status: StatusSuccess}
}

// loadState fetches the guild config and, when a form is configured, whether
// the user already has a record for today's guild-local date.
func (o *Orchestrator) loadState(ctx context.Context, guildID, userID string, now time.Time) (*models.GuildConfig, string, bool, error) {
	cfg, err := o.configs.GetGuildConfig(ctx, guildID)
	if err != nil {
		return nil, "", false, err
	}
	if !cfg.HasForm() {
		return cfg, "", false, nil
	}
	day := LocalDay(now, cfg.TzOffsetMinutes)
	rec, err := o.ledger.GetRecord(ctx, guildID, userID, day)
	if err != nil {
		return nil, "", false, err
	}
	return cfg, day, rec != nil, nil
}

// failureResult reports a deadline-driven abandonment as FailureTimeout and
// anything else as the given kind.
func failureResult(ctx context.Context, kind FailureKind) Result {
	if ctx.Err() != nil {
		return Result{Status: StatusFailure, Failure: FailureTimeout}
	}
	return Result{Status: StatusFailure, Failure: kind}
}
