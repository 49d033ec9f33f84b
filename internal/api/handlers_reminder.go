package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	respond "github.com/medtrackhq/medtrack-server/internal/api/respond"
	"github.com/medtrackhq/medtrack-server/internal/model"
	"github.com/medtrackhq/medtrack-server/internal/services"
)

type ReminderHandler struct {
	svc *services.ReminderService
}

func NewReminderHandler(svc *services.ReminderService) *ReminderHandler {
	return &ReminderHandler{svc: svc}
}

// UpsertReminder PUT /api/users/{userId}/reminders
//
// One dose slot holds at most one reminder per kind; an upsert against an
// occupied slot of the same kind moves the existing reminder instead of
// stacking a second one. 201 reports a create, 200 a move.
func (h *ReminderHandler) UpsertReminder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MedicationID string             `json:"medicationId"`
		DoseIndex    *int               `json:"doseIndex"`
		ReminderTime string             `json:"reminderTime"`
		Date         string             `json:"date"`
		Type         model.ReminderType `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	idx := -1
	if req.DoseIndex != nil {
		idx = *req.DoseIndex
	}
	out, created, err := h.svc.Upsert(r.Context(), mux.Vars(r)["userId"], req.MedicationID, idx, req.ReminderTime, req.Date, req.Type)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respond.WriteJSON(w, status, out)
}

// ListReminders GET /api/users/{userId}/reminders
func (h *ReminderHandler) ListReminders(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.List(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	if out == nil {
		out = []*model.Reminder{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"reminders": out, "count": len(out)})
}

// DeleteReminder DELETE /api/users/{userId}/reminders/{reminderId}
func (h *ReminderHandler) DeleteReminder(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	if err := h.svc.Delete(r.Context(), v["userId"], v["reminderId"]); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
