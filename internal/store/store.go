// Package store defines the persistence contract shared by the API service
// and the background schedulers. Implementations live under
// internal/store/<driver>/ (postgres, sqlite).
package store

import (
	"context"
	"time"

	"github.com/medtrackhq/medtrack-server/internal/model"
)

// Outbox operation names. Every mutation writes one of these in the same
// transaction; the mirror worker drains them to the realtime mirror.
const (
	OpUpsertUser       = "upsert_user"
	OpUpsertMedication = "upsert_medication"
	OpDeleteMedication = "delete_medication"
	OpUpsertDose       = "upsert_dose"
	OpUpsertReminder   = "upsert_reminder"
	OpDeleteReminder   = "delete_reminder"
)

// Store exposes persistence operations required by services and schedulers.
type Store interface {
	Users() Users
	Medications() Medications
	Doses() Doses
	Reminders() Reminders
	Outbox() Outbox

	// Ping reports backend connectivity for health checks.
	Ping(ctx context.Context) error
}

type Users interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)
	Get(ctx context.Context, userID string) (*model.User, error)
	Delete(ctx context.Context, userID string) error
}

type Medications interface {
	Create(ctx context.Context, m *model.Medication) (*model.Medication, error)
	Get(ctx context.Context, ownerID, medicationID string) (*model.Medication, error)
	List(ctx context.Context, ownerID string) ([]*model.Medication, error)
	// ListActiveOn returns medications across all owners whose schedule range
	// covers the given calendar date. Used by the missed-dose sweep.
	ListActiveOn(ctx context.Context, date string) ([]*model.Medication, error)
	Update(ctx context.Context, m *model.Medication) (*model.Medication, error)
	// Delete removes the medication and cascades to its dose records and
	// reminders.
	Delete(ctx context.Context, ownerID, medicationID string) error
}

// Doses owns the per-medication, per-date dose records. All read-modify-write
// sequences against one medication's dose map are linearized by the backing
// transaction; the conditional UPDATEs below decide take-vs-sweep races.
type Doses interface {
	// GetOrInit returns the records for the date, synthesizing untaken
	// defaults from the medication's times on first touch. If the times
	// count changed since the date was populated, the date's records are
	// rebuilt to the new length, discarding prior state for that date.
	GetOrInit(ctx context.Context, med *model.Medication, date string) ([]*model.DoseRecord, error)
	Get(ctx context.Context, medicationID, date string, doseIndex int) (*model.DoseRecord, error)
	// SetTaken with taken=true refuses a dose already marked missed
	// (ErrOutOfWindow: once the sweep closed the window, missed wins).
	SetTaken(ctx context.Context, medicationID, date string, doseIndex int, taken bool, takenAt *time.Time) (*model.DoseRecord, error)
	// SetMissed with missed=true leaves a taken dose untouched (taken wins
	// while the write that recorded it committed first).
	SetMissed(ctx context.Context, medicationID, date string, doseIndex int, missed bool) (*model.DoseRecord, error)
}

type Reminders interface {
	Create(ctx context.Context, r *model.Reminder) (*model.Reminder, error)
	// Update rewrites reminder_time and anchor date of an existing reminder
	// and resets it to pending.
	Update(ctx context.Context, r *model.Reminder) (*model.Reminder, error)
	Get(ctx context.Context, reminderID string) (*model.Reminder, error)
	Delete(ctx context.Context, ownerID, reminderID string) error
	ListForOwner(ctx context.Context, ownerID string) ([]*model.Reminder, error)
	ListForSlot(ctx context.Context, medicationID string, doseIndex int) ([]*model.Reminder, error)
	// ListSchedulable returns reminders the engine must evaluate: pending
	// singles plus every daily reminder regardless of status, so a missed
	// nightly reset can never silence a daily reminder.
	ListSchedulable(ctx context.Context) ([]*model.Reminder, error)
	// ClaimFire atomically transitions the reminder for today's occurrence
	// (single: pending→sent; daily: last_fired_on≠today→today). Returns
	// false when another instance already claimed it.
	ClaimFire(ctx context.Context, r *model.Reminder, today string) (bool, error)
	// ReleaseFire reverts a claim after a failed dispatch so the reminder is
	// re-evaluated on the next tick.
	ReleaseFire(ctx context.Context, r *model.Reminder, today string) error
	UpdateStatus(ctx context.Context, reminderID string, status model.ReminderStatus) (*model.Reminder, error)
	// ResetDailyToPending flips every sent daily reminder back to pending.
	// Runs once per local-midnight boundary.
	ResetDailyToPending(ctx context.Context) (int64, error)
}

// Outbox leases pending mirror rows for the mirror worker. Timestamps are
// supplied by the caller so drivers stay clock-free.
type Outbox interface {
	Lease(ctx context.Context, now time.Time, limit int) ([]*model.OutboxRow, error)
	MarkDone(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, nextAttemptAt time.Time) error
}
