package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	respond "github.com/medtrackhq/medtrack-server/internal/api/respond"
	"github.com/medtrackhq/medtrack-server/internal/model"
	"github.com/medtrackhq/medtrack-server/internal/services"
)

type MedicationHandler struct {
	svc *services.MedicationService
}

func NewMedicationHandler(svc *services.MedicationService) *MedicationHandler {
	return &MedicationHandler{svc: svc}
}

type medicationRequest struct {
	Name      string          `json:"name"`
	Dosage    string          `json:"dosage"`
	Frequency model.Frequency `json:"frequency"`
	Times     []string        `json:"times"`
	StartDate string          `json:"startDate"`
	EndDate   *string         `json:"endDate,omitempty"`
	Notes     *string         `json:"notes,omitempty"`
}

// CreateMedication POST /api/users/{userId}/medications
func (h *MedicationHandler) CreateMedication(w http.ResponseWriter, r *http.Request) {
	var req medicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	m := &model.Medication{
		OwnerID:   mux.Vars(r)["userId"],
		Name:      req.Name,
		Dosage:    req.Dosage,
		Frequency: req.Frequency,
		Times:     req.Times,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Notes:     req.Notes,
	}
	out, err := h.svc.CreateMedication(r.Context(), m)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}

// ListMedications GET /api/users/{userId}/medications
func (h *MedicationHandler) ListMedications(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ListMedications(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	if out == nil {
		out = []*model.Medication{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"medications": out, "count": len(out)})
}

// GetMedication GET /api/users/{userId}/medications/{medicationId}
func (h *MedicationHandler) GetMedication(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	out, err := h.svc.GetMedication(r.Context(), v["userId"], v["medicationId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// UpdateMedication PUT /api/users/{userId}/medications/{medicationId}
func (h *MedicationHandler) UpdateMedication(w http.ResponseWriter, r *http.Request) {
	var req medicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	v := mux.Vars(r)
	m := &model.Medication{
		MedicationID: v["medicationId"],
		OwnerID:      v["userId"],
		Name:         req.Name,
		Dosage:       req.Dosage,
		Frequency:    req.Frequency,
		Times:        req.Times,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Notes:        req.Notes,
	}
	out, err := h.svc.UpdateMedication(r.Context(), m)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// DeleteMedication DELETE /api/users/{userId}/medications/{medicationId}
// Cascades to the medication's dose records and reminders.
func (h *MedicationHandler) DeleteMedication(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	if err := h.svc.DeleteMedication(r.Context(), v["userId"], v["medicationId"]); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
