// Package storetest holds a compliance suite exercised against every
// store.Store implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medtrackhq/medtrack-server/internal/model"
	"github.com/medtrackhq/medtrack-server/internal/store"
)

// Run exercises the compliance suite against a store.Store implementation.
// makeStore must return a clean, isolated store.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	ownerID := "u-" + uuid.New().String()
	email := ownerID + "@example.test"

	// Users
	u := &model.User{UserID: ownerID, Email: email, TimeZone: "UTC"}
	if _, err := s.Users().Create(ctx, u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if got, err := s.Users().Get(ctx, ownerID); err != nil || got == nil || got.Email != email {
		t.Fatalf("GetUser: got=%v err=%v", got, err)
	}

	// Medications
	med, err := s.Medications().Create(ctx, &model.Medication{
		OwnerID:   ownerID,
		Name:      "metformin",
		Dosage:    "500mg",
		Frequency: model.FrequencyDaily,
		Times:     []string{"08:00:00", "20:00:00"},
		StartDate: "2026-03-01",
	})
	if err != nil {
		t.Fatalf("CreateMedication: %v", err)
	}
	if med.MedicationID == "" {
		t.Fatal("CreateMedication: empty id")
	}
	if got, err := s.Medications().Get(ctx, ownerID, med.MedicationID); err != nil || got.Name != "metformin" || len(got.Times) != 2 {
		t.Fatalf("GetMedication: got=%v err=%v", got, err)
	}
	if lst, err := s.Medications().List(ctx, ownerID); err != nil || len(lst) != 1 {
		t.Fatalf("ListMedications: n=%d err=%v", len(lst), err)
	}
	if lst, err := s.Medications().ListActiveOn(ctx, "2026-03-10"); err != nil || len(lst) == 0 {
		t.Fatalf("ListActiveOn inside range: n=%d err=%v", len(lst), err)
	}
	if lst, err := s.Medications().ListActiveOn(ctx, "2026-02-28"); err != nil || len(lst) != 0 {
		t.Fatalf("ListActiveOn before start: n=%d err=%v", len(lst), err)
	}

	// Doses: lazy synthesis
	recs, err := s.Doses().GetOrInit(ctx, med, "2026-03-10")
	if err != nil {
		t.Fatalf("GetOrInit: %v", err)
	}
	if len(recs) != 2 || recs[0].ScheduledTime != "08:00:00" || recs[1].ScheduledTime != "20:00:00" {
		t.Fatalf("GetOrInit synthesis wrong: %+v", recs)
	}
	if recs[0].Taken || recs[0].Missed || recs[0].TakenAt != nil {
		t.Fatalf("synthesized dose must be untaken: %+v", recs[0])
	}

	// Second call returns existing records, no resynthesis
	takenAt := time.Date(2026, 3, 10, 8, 5, 0, 0, time.UTC)
	if _, err := s.Doses().SetTaken(ctx, med.MedicationID, "2026-03-10", 0, true, &takenAt); err != nil {
		t.Fatalf("SetTaken: %v", err)
	}
	recs, err = s.Doses().GetOrInit(ctx, med, "2026-03-10")
	if err != nil {
		t.Fatalf("GetOrInit (second): %v", err)
	}
	if !recs[0].Taken || recs[0].TakenAt == nil {
		t.Fatalf("GetOrInit dropped taken state: %+v", recs[0])
	}

	// Mutual exclusion: taken dose resists sweep, untouched dose sweeps
	if rec, err := s.Doses().SetMissed(ctx, med.MedicationID, "2026-03-10", 0, true); err != nil {
		t.Fatalf("SetMissed over taken: %v", err)
	} else if rec.Missed || !rec.Taken {
		t.Fatalf("taken must win over sweep: %+v", rec)
	}
	if rec, err := s.Doses().SetMissed(ctx, med.MedicationID, "2026-03-10", 1, true); err != nil {
		t.Fatalf("SetMissed: %v", err)
	} else if !rec.Missed || rec.Taken || rec.TakenAt != nil {
		t.Fatalf("SetMissed result: %+v", rec)
	}

	// Take over missed is refused
	if _, err := s.Doses().SetTaken(ctx, med.MedicationID, "2026-03-10", 1, true, &takenAt); err == nil {
		t.Fatal("SetTaken over missed must fail")
	}

	// Undo clears taken
	if rec, err := s.Doses().SetTaken(ctx, med.MedicationID, "2026-03-10", 0, false, nil); err != nil || rec.Taken || rec.TakenAt != nil {
		t.Fatalf("undo: rec=%+v err=%v", rec, err)
	}

	// Rebuild when times-per-day changes
	med.Times = []string{"09:00:00"}
	if _, err := s.Medications().Update(ctx, med); err != nil {
		t.Fatalf("UpdateMedication: %v", err)
	}
	recs, err = s.Doses().GetOrInit(ctx, med, "2026-03-10")
	if err != nil {
		t.Fatalf("GetOrInit after times change: %v", err)
	}
	if len(recs) != 1 || recs[0].ScheduledTime != "09:00:00" || recs[0].Taken || recs[0].Missed {
		t.Fatalf("rebuild wrong: %+v", recs)
	}

	runReminders(t, s, ownerID, med)
	runOutbox(t, s)

	// Medication delete cascades
	if err := s.Medications().Delete(ctx, ownerID, med.MedicationID); err != nil {
		t.Fatalf("DeleteMedication: %v", err)
	}
	if lst, err := s.Reminders().ListForOwner(ctx, ownerID); err != nil || len(lst) != 0 {
		t.Fatalf("reminders must cascade on medication delete: n=%d err=%v", len(lst), err)
	}
	if _, err := s.Doses().Get(ctx, med.MedicationID, "2026-03-10", 0); err == nil {
		t.Fatal("dose records must cascade on medication delete")
	}

	if err := s.Users().Delete(ctx, ownerID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
}

func runReminders(t *testing.T, s store.Store, ownerID string, med *model.Medication) {
	t.Helper()
	ctx := context.Background()

	single, err := s.Reminders().Create(ctx, &model.Reminder{
		OwnerID:      ownerID,
		MedicationID: med.MedicationID,
		DoseIndex:    0,
		ReminderTime: "08:30:00",
		AnchorDate:   "2026-03-10",
		Type:         model.ReminderSingle,
	})
	if err != nil {
		t.Fatalf("CreateReminder single: %v", err)
	}
	if single.Status != model.ReminderPending {
		t.Fatalf("new reminder status = %s", single.Status)
	}

	daily, err := s.Reminders().Create(ctx, &model.Reminder{
		OwnerID:      ownerID,
		MedicationID: med.MedicationID,
		DoseIndex:    0,
		ReminderTime: "08:45:00",
		AnchorDate:   "2026-03-10",
		Type:         model.ReminderDaily,
	})
	if err != nil {
		t.Fatalf("CreateReminder daily: %v", err)
	}

	if lst, err := s.Reminders().ListForSlot(ctx, med.MedicationID, 0); err != nil || len(lst) != 2 {
		t.Fatalf("ListForSlot: n=%d err=%v", len(lst), err)
	}
	if lst, err := s.Reminders().ListSchedulable(ctx); err != nil || len(lst) != 2 {
		t.Fatalf("ListSchedulable: n=%d err=%v", len(lst), err)
	}

	// The slot is unique per type: a second daily, or a second single on the
	// same date, is refused by the store itself.
	if _, err := s.Reminders().Create(ctx, &model.Reminder{
		OwnerID:      ownerID,
		MedicationID: med.MedicationID,
		DoseIndex:    0,
		ReminderTime: "08:40:00",
		AnchorDate:   "2026-03-12",
		Type:         model.ReminderDaily,
	}); !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("second daily on slot: err=%v, want ErrDuplicate", err)
	}
	if _, err := s.Reminders().Create(ctx, &model.Reminder{
		OwnerID:      ownerID,
		MedicationID: med.MedicationID,
		DoseIndex:    0,
		ReminderTime: "08:35:00",
		AnchorDate:   "2026-03-10",
		Type:         model.ReminderSingle,
	}); !errors.Is(err, model.ErrDuplicate) {
		t.Fatalf("second single on slot+date: err=%v, want ErrDuplicate", err)
	}
	// A single on another date shares the slot.
	extra, err := s.Reminders().Create(ctx, &model.Reminder{
		OwnerID:      ownerID,
		MedicationID: med.MedicationID,
		DoseIndex:    0,
		ReminderTime: "08:35:00",
		AnchorDate:   "2026-03-11",
		Type:         model.ReminderSingle,
	})
	if err != nil {
		t.Fatalf("single on other date: %v", err)
	}
	if err := s.Reminders().Delete(ctx, ownerID, extra.ReminderID); err != nil {
		t.Fatalf("delete extra single: %v", err)
	}

	// Single claim is exactly-once
	claimed, err := s.Reminders().ClaimFire(ctx, single, "2026-03-10")
	if err != nil || !claimed {
		t.Fatalf("ClaimFire single: claimed=%v err=%v", claimed, err)
	}
	claimed, err = s.Reminders().ClaimFire(ctx, single, "2026-03-10")
	if err != nil || claimed {
		t.Fatalf("ClaimFire single twice: claimed=%v err=%v", claimed, err)
	}
	// Sent single drops out of the schedulable set
	if lst, err := s.Reminders().ListSchedulable(ctx); err != nil || len(lst) != 1 {
		t.Fatalf("ListSchedulable after single sent: n=%d err=%v", len(lst), err)
	}

	// Daily claim guards per-day, stays schedulable
	claimed, err = s.Reminders().ClaimFire(ctx, daily, "2026-03-10")
	if err != nil || !claimed {
		t.Fatalf("ClaimFire daily: claimed=%v err=%v", claimed, err)
	}
	claimed, err = s.Reminders().ClaimFire(ctx, daily, "2026-03-10")
	if err != nil || claimed {
		t.Fatalf("ClaimFire daily twice same day: claimed=%v err=%v", claimed, err)
	}
	if lst, err := s.Reminders().ListSchedulable(ctx); err != nil || len(lst) != 1 {
		t.Fatalf("daily must stay schedulable: n=%d err=%v", len(lst), err)
	}
	claimed, err = s.Reminders().ClaimFire(ctx, daily, "2026-03-11")
	if err != nil || !claimed {
		t.Fatalf("ClaimFire daily next day: claimed=%v err=%v", claimed, err)
	}

	// Release reopens the occurrence
	if err := s.Reminders().ReleaseFire(ctx, daily, "2026-03-11"); err != nil {
		t.Fatalf("ReleaseFire daily: %v", err)
	}
	claimed, err = s.Reminders().ClaimFire(ctx, daily, "2026-03-11")
	if err != nil || !claimed {
		t.Fatalf("ClaimFire daily after release: claimed=%v err=%v", claimed, err)
	}

	// Nightly reset flips sent dailies back to pending
	n, err := s.Reminders().ResetDailyToPending(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ResetDailyToPending: n=%d err=%v", n, err)
	}
	got, err := s.Reminders().Get(ctx, daily.ReminderID)
	if err != nil || got.Status != model.ReminderPending {
		t.Fatalf("daily after reset: got=%+v err=%v", got, err)
	}
	if got.LastFiredOn == nil || *got.LastFiredOn != "2026-03-11" {
		t.Fatalf("reset must keep last_fired_on: %+v", got)
	}

	// Update reschedules and re-arms
	single.ReminderTime = "07:45:00"
	single.AnchorDate = "2026-03-12"
	upd, err := s.Reminders().Update(ctx, single)
	if err != nil || upd.ReminderTime != "07:45:00" || upd.Status != model.ReminderPending {
		t.Fatalf("UpdateReminder: got=%+v err=%v", upd, err)
	}

	if _, err := s.Reminders().UpdateStatus(ctx, single.ReminderID, model.ReminderSent); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	// Owner-scoped delete
	if err := s.Reminders().Delete(ctx, "someone-else", single.ReminderID); err == nil {
		t.Fatal("Delete with wrong owner must fail")
	}
	if err := s.Reminders().Delete(ctx, ownerID, single.ReminderID); err != nil {
		t.Fatalf("DeleteReminder: %v", err)
	}
	if _, err := s.Reminders().Get(ctx, single.ReminderID); err == nil {
		t.Fatal("deleted reminder still present")
	}
}

func runOutbox(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().Add(time.Minute) // past every next_attempt_at written so far

	rows, err := s.Outbox().Lease(ctx, now, 100)
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	if len(rows) == 0 {
		t.Fatal("mutations above must have enqueued outbox rows")
	}
	for i := 1; i < len(rows); i++ {
		if rows[i].ID <= rows[i-1].ID {
			t.Fatal("lease must return rows in id order")
		}
	}

	if err := s.Outbox().MarkDone(ctx, rows[0].ID); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	if err := s.Outbox().MarkFailed(ctx, rows[1].ID, now.Add(time.Hour)); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	again, err := s.Outbox().Lease(ctx, now, 100)
	if err != nil {
		t.Fatalf("Lease (second): %v", err)
	}
	for _, r := range again {
		if r.ID == rows[0].ID {
			t.Fatal("done row leased again")
		}
		if r.ID == rows[1].ID {
			t.Fatal("failed row leased before its backoff elapsed")
		}
	}
}
