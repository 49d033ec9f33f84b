package services

import (
	"context"
	"fmt"

	"github.com/medtrackhq/medtrack-server/internal/clock"
	"github.com/medtrackhq/medtrack-server/internal/model"
	"github.com/medtrackhq/medtrack-server/internal/store"
)

// MedicationService orchestrates medication schedule CRUD.
type MedicationService struct {
	store store.Store
	clock clock.Clock
}

func NewMedicationService(s store.Store, clk clock.Clock) *MedicationService {
	return &MedicationService{store: s, clock: clk}
}

func (s *MedicationService) validate(m *model.Medication) error {
	if m.Name == "" {
		return fmt.Errorf("name is required: %w", model.ErrValidation)
	}
	switch m.Frequency {
	case model.FrequencyDaily, model.FrequencyWeekly, model.FrequencyMonthly:
	default:
		return fmt.Errorf("frequency must be daily, weekly or monthly: %w", model.ErrValidation)
	}
	if len(m.Times) == 0 {
		return fmt.Errorf("at least one dose time is required: %w", model.ErrValidation)
	}
	for _, tod := range m.Times {
		if _, err := model.ParseTimeOfDay(tod); err != nil {
			return err
		}
	}
	loc := s.clock.Location()
	start, err := model.ParseDate(m.StartDate, loc)
	if err != nil {
		return err
	}
	if m.EndDate != nil {
		end, err := model.ParseDate(*m.EndDate, loc)
		if err != nil {
			return err
		}
		if end.Before(start) {
			return fmt.Errorf("end date before start date: %w", model.ErrValidation)
		}
	}
	return nil
}

func (s *MedicationService) CreateMedication(ctx context.Context, m *model.Medication) (*model.Medication, error) {
	if err := s.validate(m); err != nil {
		return nil, err
	}
	return s.store.Medications().Create(ctx, m)
}

func (s *MedicationService) GetMedication(ctx context.Context, ownerID, medicationID string) (*model.Medication, error) {
	return s.store.Medications().Get(ctx, ownerID, medicationID)
}

func (s *MedicationService) ListMedications(ctx context.Context, ownerID string) ([]*model.Medication, error) {
	return s.store.Medications().List(ctx, ownerID)
}

// UpdateMedication rewrites the schedule. If the number of times per day
// changes, already-populated dates are rebuilt on next touch, discarding
// their taken/missed state for that date.
func (s *MedicationService) UpdateMedication(ctx context.Context, m *model.Medication) (*model.Medication, error) {
	if err := s.validate(m); err != nil {
		return nil, err
	}
	return s.store.Medications().Update(ctx, m)
}

func (s *MedicationService) DeleteMedication(ctx context.Context, ownerID, medicationID string) error {
	return s.store.Medications().Delete(ctx, ownerID, medicationID)
}
