package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/medtrackhq/medtrack-server/internal/clock"
	"github.com/medtrackhq/medtrack-server/internal/doseclock"
	"github.com/medtrackhq/medtrack-server/internal/model"
	"github.com/medtrackhq/medtrack-server/internal/store"
)

// ReminderService owns reminder scheduling rules: the lead window before a
// dose, past-instant rejection, and the one-reminder-per-type-per-slot rule.
type ReminderService struct {
	store  store.Store
	clock  clock.Clock
	policy doseclock.Policy
}

func NewReminderService(s store.Store, clk clock.Clock, p doseclock.Policy) *ReminderService {
	return &ReminderService{store: s, clock: clk, policy: p}
}

// Upsert creates or updates the reminder occupying (medication, doseIndex,
// effective date) for the given type. The bool result is true when a new
// reminder was created, false when an existing one was updated in place.
func (s *ReminderService) Upsert(ctx context.Context, ownerID, medicationID string, doseIndex int, reminderTime, date string, typ model.ReminderType) (*model.Reminder, bool, error) {
	switch typ {
	case model.ReminderSingle, model.ReminderDaily:
	default:
		return nil, false, fmt.Errorf("reminder type must be single or daily: %w", model.ErrValidation)
	}
	if doseIndex < 0 {
		return nil, false, fmt.Errorf("dose index is required: %w", model.ErrValidation)
	}

	loc := s.clock.Location()
	if _, err := model.ParseTimeOfDay(reminderTime); err != nil {
		return nil, false, err
	}
	if _, err := model.ParseDate(date, loc); err != nil {
		return nil, false, err
	}

	med, err := s.store.Medications().Get(ctx, ownerID, medicationID)
	if err != nil {
		return nil, false, err
	}
	if doseIndex >= med.TimesPerDay() {
		return nil, false, fmt.Errorf("dose index %d of %d: %w", doseIndex, med.TimesPerDay(), model.ErrDoseIndexOutOfRange)
	}

	now := s.clock.Now()
	remAt, err := model.CombineAt(date, reminderTime, loc)
	if err != nil {
		return nil, false, err
	}
	doseAt, err := model.CombineAt(date, med.Times[doseIndex], loc)
	if err != nil {
		return nil, false, err
	}

	// A strictly future date waives both the past and the lead-window check:
	// the reminder cannot have elapsed yet and the user may be planning ahead.
	futureDate := date > model.DateOf(now)
	if !futureDate {
		if remAt.Before(now) {
			return nil, false, fmt.Errorf("%s %s has already passed: %w", date, reminderTime, model.ErrPastReminder)
		}
		earliest := doseAt.Add(-s.policy.ActionWindow)
		if remAt.Before(earliest) || remAt.After(doseAt) {
			return nil, false, fmt.Errorf("reminder must fall between %s and %s (dose at %s): %w",
				earliest.Format(model.TimeLayout), doseAt.Format(model.TimeLayout),
				med.Times[doseIndex], model.ErrWindowViolation)
		}
	}

	// The slot scan and the insert are two store calls; the partial unique
	// indexes on the reminder slot arbitrate concurrent upserts. A loser
	// re-reads the slot and converges on the winner's row.
	for attempt := 0; ; attempt++ {
		slot, err := s.store.Reminders().ListForSlot(ctx, medicationID, doseIndex)
		if err != nil {
			return nil, false, err
		}
		for _, existing := range slot {
			switch {
			case existing.Type == typ && (typ == model.ReminderDaily || existing.AnchorDate == date):
				// Same type on the same effective date: update in place.
				existing.ReminderTime = reminderTime
				existing.AnchorDate = date
				upd, err := s.store.Reminders().Update(ctx, existing)
				return upd, false, err
			case existing.Type != typ && (existing.Type == model.ReminderDaily || typ == model.ReminderDaily || existing.AnchorDate == date):
				// A daily covers every date, so either direction collides; two
				// singles collide only on the same date.
				return nil, false, fmt.Errorf("a %s reminder already exists for this dose; delete it first: %w",
					existing.Type, model.ErrTypeConflict)
			}
		}

		rem, err := s.store.Reminders().Create(ctx, &model.Reminder{
			OwnerID:      ownerID,
			MedicationID: medicationID,
			DoseIndex:    doseIndex,
			ReminderTime: reminderTime,
			AnchorDate:   date,
			Type:         typ,
		})
		if err == nil {
			return rem, true, nil
		}
		if !errors.Is(err, model.ErrDuplicate) || attempt > 0 {
			return nil, false, err
		}
	}
}

func (s *ReminderService) Delete(ctx context.Context, ownerID, reminderID string) error {
	return s.store.Reminders().Delete(ctx, ownerID, reminderID)
}

func (s *ReminderService) List(ctx context.Context, ownerID string) ([]*model.Reminder, error) {
	return s.store.Reminders().ListForOwner(ctx, ownerID)
}

func (s *ReminderService) UpdateStatus(ctx context.Context, reminderID string, status model.ReminderStatus) (*model.Reminder, error) {
	switch status {
	case model.ReminderPending, model.ReminderSent:
	default:
		return nil, fmt.Errorf("status must be pending or sent: %w", model.ErrValidation)
	}
	return s.store.Reminders().UpdateStatus(ctx, reminderID, status)
}

// ResetDailyToPending flips every sent daily reminder back to pending.
// Invoked by the midnight reset job.
func (s *ReminderService) ResetDailyToPending(ctx context.Context) (int64, error) {
	return s.store.Reminders().ResetDailyToPending(ctx)
}
