package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	respond "github.com/medtrackhq/medtrack-server/internal/api/respond"
	"github.com/medtrackhq/medtrack-server/internal/services"
)

type DoseHandler struct {
	svc *services.DoseService
}

func NewDoseHandler(svc *services.DoseService) *DoseHandler {
	return &DoseHandler{svc: svc}
}

func doseVars(w http.ResponseWriter, r *http.Request) (userID, medID, date string, idx int, ok bool) {
	v := mux.Vars(r)
	idx, err := strconv.Atoi(v["doseIndex"])
	if err != nil {
		respond.WriteBadRequest(w, "doseIndex must be an integer")
		return "", "", "", 0, false
	}
	return v["userId"], v["medicationId"], v["date"], idx, true
}

// ListDoseStatuses GET /api/users/{userId}/medications/{medicationId}/doses/{date}
func (h *DoseHandler) ListDoseStatuses(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	out, err := h.svc.ListStatuses(r.Context(), v["userId"], v["medicationId"], v["date"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"doses": out, "count": len(out)})
}

// GetDoseStatus GET /api/users/{userId}/medications/{medicationId}/doses/{date}/{doseIndex}
func (h *DoseHandler) GetDoseStatus(w http.ResponseWriter, r *http.Request) {
	userID, medID, date, idx, ok := doseVars(w, r)
	if !ok {
		return
	}
	out, err := h.svc.GetStatus(r.Context(), userID, medID, date, idx)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// TakeDose POST /api/users/{userId}/medications/{medicationId}/doses/{date}/{doseIndex}/take
func (h *DoseHandler) TakeDose(w http.ResponseWriter, r *http.Request) {
	userID, medID, date, idx, ok := doseVars(w, r)
	if !ok {
		return
	}
	out, err := h.svc.TakeDose(r.Context(), userID, medID, date, idx)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// UndoDose POST /api/users/{userId}/medications/{medicationId}/doses/{date}/{doseIndex}/undo
func (h *DoseHandler) UndoDose(w http.ResponseWriter, r *http.Request) {
	userID, medID, date, idx, ok := doseVars(w, r)
	if !ok {
		return
	}
	out, err := h.svc.UndoDose(r.Context(), userID, medID, date, idx)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}
