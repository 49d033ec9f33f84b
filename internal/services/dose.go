package services

import (
	"context"
	"fmt"

	"github.com/medtrackhq/medtrack-server/internal/clock"
	"github.com/medtrackhq/medtrack-server/internal/doseclock"
	"github.com/medtrackhq/medtrack-server/internal/model"
	"github.com/medtrackhq/medtrack-server/internal/store"
)

// DoseService owns taking, undoing and querying dose occurrences. All
// temporal decisions flow through the injected clock and window policy.
type DoseService struct {
	store  store.Store
	clock  clock.Clock
	policy doseclock.Policy
}

func NewDoseService(s store.Store, clk clock.Clock, p doseclock.Policy) *DoseService {
	return &DoseService{store: s, clock: clk, policy: p}
}

// resolve loads the medication and the dose record for an explicit index.
// An absent or negative index is a validation error; the index is never
// inferred from another dose's time.
func (s *DoseService) resolve(ctx context.Context, ownerID, medicationID, date string, doseIndex int) (*model.DoseRecord, error) {
	if doseIndex < 0 {
		return nil, fmt.Errorf("dose index is required: %w", model.ErrValidation)
	}
	loc := s.clock.Location()
	if _, err := model.ParseDate(date, loc); err != nil {
		return nil, err
	}
	med, err := s.store.Medications().Get(ctx, ownerID, medicationID)
	if err != nil {
		return nil, err
	}
	if doseIndex >= med.TimesPerDay() {
		return nil, fmt.Errorf("dose index %d of %d: %w", doseIndex, med.TimesPerDay(), model.ErrDoseIndexOutOfRange)
	}
	scheduled, err := med.ScheduledOn(date, loc)
	if err != nil {
		return nil, err
	}
	if !scheduled {
		return nil, fmt.Errorf("%s is not scheduled on %s: %w", med.Name, date, model.ErrValidation)
	}
	recs, err := s.store.Doses().GetOrInit(ctx, med, date)
	if err != nil {
		return nil, err
	}
	return recs[doseIndex], nil
}

// GetStatus is a pure query: it computes the dose's temporal state without
// side effects beyond lazy record synthesis.
func (s *DoseService) GetStatus(ctx context.Context, ownerID, medicationID, date string, doseIndex int) (model.DoseStatus, error) {
	rec, err := s.resolve(ctx, ownerID, medicationID, date, doseIndex)
	if err != nil {
		return model.DoseStatus{}, err
	}
	return doseclock.Compute(rec, s.clock.Now(), s.policy)
}

// TakeDose marks the dose taken. Precondition: now is within the action
// window around the scheduled time, otherwise ErrOutOfWindow with a message
// the UI can surface verbatim.
func (s *DoseService) TakeDose(ctx context.Context, ownerID, medicationID, date string, doseIndex int) (*model.DoseRecord, error) {
	rec, err := s.resolve(ctx, ownerID, medicationID, date, doseIndex)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	st, err := doseclock.Compute(rec, now, s.policy)
	if err != nil {
		return nil, err
	}
	if !st.WithinWindow {
		return nil, fmt.Errorf("dose scheduled at %s can only be taken between %s and %s: %w",
			rec.ScheduledTime,
			st.WindowStart.Format("15:04"), st.WindowEnd.Format("15:04"),
			model.ErrOutOfWindow)
	}
	return s.store.Doses().SetTaken(ctx, medicationID, date, doseIndex, true, &now)
}

// UndoDose clears a previously recorded take.
func (s *DoseService) UndoDose(ctx context.Context, ownerID, medicationID, date string, doseIndex int) (*model.DoseRecord, error) {
	rec, err := s.resolve(ctx, ownerID, medicationID, date, doseIndex)
	if err != nil {
		return nil, err
	}
	if !rec.Taken {
		return rec, nil
	}
	return s.store.Doses().SetTaken(ctx, medicationID, date, doseIndex, false, nil)
}

// ListStatuses resolves the full day's dose statuses for a medication.
func (s *DoseService) ListStatuses(ctx context.Context, ownerID, medicationID, date string) ([]model.DoseStatus, error) {
	loc := s.clock.Location()
	if _, err := model.ParseDate(date, loc); err != nil {
		return nil, err
	}
	med, err := s.store.Medications().Get(ctx, ownerID, medicationID)
	if err != nil {
		return nil, err
	}
	scheduled, err := med.ScheduledOn(date, loc)
	if err != nil {
		return nil, err
	}
	if !scheduled {
		return nil, nil
	}
	recs, err := s.store.Doses().GetOrInit(ctx, med, date)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	out := make([]model.DoseStatus, 0, len(recs))
	for _, rec := range recs {
		st, err := doseclock.Compute(rec, now, s.policy)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}
