package api

import (
	"github.com/gorilla/mux"

	"github.com/medtrackhq/medtrack-server/internal/api/recovery"
	"github.com/medtrackhq/medtrack-server/internal/clock"
	"github.com/medtrackhq/medtrack-server/internal/doseclock"
	"github.com/medtrackhq/medtrack-server/internal/services"
	"github.com/medtrackhq/medtrack-server/internal/store"
)

// Deps carries everything the router needs. Healthy reports cached service
// health; nil means always healthy (tests).
type Deps struct {
	Store   store.Store
	Clock   clock.Clock
	Policy  doseclock.Policy
	Healthy func() bool
}

// NewRouter creates the HTTP router with all API routes.
func NewRouter(d Deps) *mux.Router {
	router := mux.NewRouter()
	router.Use(recovery.Middleware)

	userSvc := services.NewUserService(d.Store)
	medSvc := services.NewMedicationService(d.Store, d.Clock)
	doseSvc := services.NewDoseService(d.Store, d.Clock, d.Policy)
	remSvc := services.NewReminderService(d.Store, d.Clock, d.Policy)

	healthHandler := NewHealthHandler(d.Healthy, d.Store)
	userHandler := NewUserHandler(userSvc)
	medHandler := NewMedicationHandler(medSvc)
	doseHandler := NewDoseHandler(doseSvc)
	remHandler := NewReminderHandler(remSvc)

	// Health endpoints
	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")
	router.HandleFunc("/api/health/db", healthHandler.CheckStorageHealth).Methods("GET")

	// User endpoints
	router.HandleFunc("/api/users", userHandler.CreateUser).Methods("POST")
	router.HandleFunc("/api/users/{userId}", userHandler.GetUser).Methods("GET")
	router.HandleFunc("/api/users/{userId}", userHandler.DeleteUser).Methods("DELETE")

	// Medication endpoints
	router.HandleFunc("/api/users/{userId}/medications", medHandler.CreateMedication).Methods("POST")
	router.HandleFunc("/api/users/{userId}/medications", medHandler.ListMedications).Methods("GET")
	router.HandleFunc("/api/users/{userId}/medications/{medicationId}", medHandler.GetMedication).Methods("GET")
	router.HandleFunc("/api/users/{userId}/medications/{medicationId}", medHandler.UpdateMedication).Methods("PUT")
	router.HandleFunc("/api/users/{userId}/medications/{medicationId}", medHandler.DeleteMedication).Methods("DELETE")

	// Dose endpoints, keyed by calendar date and dose index
	router.HandleFunc("/api/users/{userId}/medications/{medicationId}/doses/{date:\\d{4}-\\d{2}-\\d{2}}", doseHandler.ListDoseStatuses).Methods("GET")
	router.HandleFunc("/api/users/{userId}/medications/{medicationId}/doses/{date:\\d{4}-\\d{2}-\\d{2}}/{doseIndex:\\d+}", doseHandler.GetDoseStatus).Methods("GET")
	router.HandleFunc("/api/users/{userId}/medications/{medicationId}/doses/{date:\\d{4}-\\d{2}-\\d{2}}/{doseIndex:\\d+}/take", doseHandler.TakeDose).Methods("POST")
	router.HandleFunc("/api/users/{userId}/medications/{medicationId}/doses/{date:\\d{4}-\\d{2}-\\d{2}}/{doseIndex:\\d+}/undo", doseHandler.UndoDose).Methods("POST")

	// Reminder endpoints
	router.HandleFunc("/api/users/{userId}/reminders", remHandler.UpsertReminder).Methods("PUT")
	router.HandleFunc("/api/users/{userId}/reminders", remHandler.ListReminders).Methods("GET")
	router.HandleFunc("/api/users/{userId}/reminders/{reminderId}", remHandler.DeleteReminder).Methods("DELETE")

	return router
}
