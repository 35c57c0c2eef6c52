package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/presencaplus/attendance-api/internal/authz"
	"github.com/presencaplus/attendance-api/internal/handlers"
	"github.com/presencaplus/attendance-api/internal/models"
)

// NewRouter sets up the API routes
func NewRouter(auth *handlers.AuthHandler, notif *handlers.NotificationHandler, fcm *handlers.FcmHandler) *mux.Router {
	router := mux.NewRouter()

	// Health check route
	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	// Public auth endpoints
	router.HandleFunc("/api/signup", auth.SignUp).Methods(http.MethodPost)
	router.HandleFunc("/api/login", auth.Login).Methods(http.MethodPost)

	// Everything below requires a valid token.
	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth.JWTMiddleware)

	// Notifications
	api.HandleFunc("/notifications", notif.Create).Methods(http.MethodPost)
	api.HandleFunc("/notifications/bulk", notif.SendBulk).Methods(http.MethodPost)
	api.HandleFunc("/notifications/attendance-confirmation", notif.SendAttendanceConfirmation).Methods(http.MethodPost)
	api.HandleFunc("/notifications/{notificationID}/read", notif.MarkRead).Methods(http.MethodPatch)
	api.HandleFunc("/notifications/{notificationID}", notif.Get).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{notificationID}", notif.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/users/{userID}/notifications", notif.ListForUser).Methods(http.MethodGet)
	api.HandleFunc("/users/{userID}/notifications/read", notif.MarkAllRead).Methods(http.MethodPatch)
	api.HandleFunc("/users/{userID}/notifications/stats", notif.Stats).Methods(http.MethodGet)

	// Event-driven notification triggers
	api.HandleFunc("/events/{eventID}/reminder", notif.SendEventReminder).Methods(http.MethodPost)
	api.HandleFunc("/events/{eventID}/update", notif.SendUpdateNotification).Methods(http.MethodPost)

	// Device token management
	api.HandleFunc("/users/{userID}/fcm-token", fcm.UpdateToken).Methods(http.MethodPut)
	api.HandleFunc("/users/{userID}/fcm-token", fcm.RemoveToken).Methods(http.MethodDelete)

	// Administrative cleanup of dead tokens
	api.Handle("/admin/fcm/cleanup",
		authz.RequireRoleHandler(models.RoleAdmin, http.HandlerFunc(fcm.Cleanup))).
		Methods(http.MethodPost)

	return router
}
