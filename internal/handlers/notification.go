package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/presencaplus/attendance-api/internal/authz"
	"github.com/presencaplus/attendance-api/internal/models"
	"github.com/presencaplus/attendance-api/internal/notification"
	"github.com/presencaplus/attendance-api/internal/repository"
)

type NotificationHandler struct {
	service notification.Service
	logger  zerolog.Logger
}

func NewNotificationHandler(service notification.Service, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		logger:  logger.With().Str("handler", "notification").Logger(),
	}
}

func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var params notification.CreateParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	notif, err := h.service.Create(r.Context(), params)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create notification")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, notif)
}

// canAccessUser allows the authenticated user to act on their own data and
// admins to act on anyone's.
func canAccessUser(r *http.Request, userID string) bool {
	requester, ok := authz.UserIDFromRequest(r)
	if !ok || requester == userID {
		return true
	}
	role, _ := authz.RoleFromRequest(r)
	return models.HasAtLeast(role, models.RoleAdmin)
}

func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	notifID := strings.TrimSpace(mux.Vars(r)["notificationID"])
	if notifID == "" {
		writeError(w, http.StatusBadRequest, "notification id is required")
		return
	}

	notif, err := h.service.Get(r.Context(), notifID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		h.logger.Error().Err(err).Str("notification_id", notifID).Msg("failed to load notification")
		writeError(w, http.StatusInternalServerError, "failed to load notification")
		return
	}

	if !canAccessUser(r, notif.UserID) {
		writeError(w, http.StatusForbidden, "cannot access another user's notifications")
		return
	}

	writeJSON(w, http.StatusOK, notif)
}

func (h *NotificationHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(mux.Vars(r)["userID"])
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user id is required")
		return
	}
	if !canAccessUser(r, userID) {
		writeError(w, http.StatusForbidden, "cannot access another user's notifications")
		return
	}

	notifications, err := h.service.ListForUser(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list notifications")
		writeError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
	})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	notifID := strings.TrimSpace(mux.Vars(r)["notificationID"])
	if notifID == "" {
		writeError(w, http.StatusBadRequest, "notification id is required")
		return
	}

	notif, err := h.service.MarkRead(r.Context(), notifID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		h.logger.Error().Err(err).Str("notification_id", notifID).Msg("failed to mark notification as read")
		writeError(w, http.StatusInternalServerError, "failed to update notification")
		return
	}

	writeJSON(w, http.StatusOK, notif)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(mux.Vars(r)["userID"])
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user id is required")
		return
	}

	modified, err := h.service.MarkAllRead(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to mark notifications as read")
		writeError(w, http.StatusInternalServerError, "failed to update notifications")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"modified": modified,
	})
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	notifID := strings.TrimSpace(mux.Vars(r)["notificationID"])
	if notifID == "" {
		writeError(w, http.StatusBadRequest, "notification id is required")
		return
	}

	if err := h.service.Delete(r.Context(), notifID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		h.logger.Error().Err(err).Str("notification_id", notifID).Msg("failed to delete notification")
		writeError(w, http.StatusInternalServerError, "failed to delete notification")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "notification deleted"})
}

func (h *NotificationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(mux.Vars(r)["userID"])
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user id is required")
		return
	}

	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to compute notification stats")
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *NotificationHandler) SendEventReminder(w http.ResponseWriter, r *http.Request) {
	eventID := strings.TrimSpace(mux.Vars(r)["eventID"])
	if eventID == "" {
		writeError(w, http.StatusBadRequest, "event id is required")
		return
	}

	notifications, err := h.service.SendEventReminder(r.Context(), eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		h.logger.Error().Err(err).Str("event_id", eventID).Msg("failed to send event reminders")
		writeError(w, http.StatusInternalServerError, "failed to send event reminders")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"sent":          len(notifications),
		"notifications": notifications,
	})
}

func (h *NotificationHandler) SendAttendanceConfirmation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID  string `json:"user_id"`
		EventID string `json:"event_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	notif, err := h.service.SendAttendanceConfirmation(r.Context(), req.UserID, req.EventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		h.logger.Error().Err(err).Msg("failed to send attendance confirmation")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, notif)
}

func (h *NotificationHandler) SendUpdateNotification(w http.ResponseWriter, r *http.Request) {
	eventID := strings.TrimSpace(mux.Vars(r)["eventID"])

	var req struct {
		UserID  string                  `json:"user_id"`
		Message string                  `json:"message"`
		Type    models.NotificationType `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	notif, err := h.service.SendUpdateNotification(r.Context(), req.UserID, eventID, req.Message, req.Type)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		h.logger.Error().Err(err).Str("event_id", eventID).Msg("failed to send update notification")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, notif)
}

func (h *NotificationHandler) SendBulk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserIDs   []string          `json:"user_ids"`
		Title     string            `json:"title"`
		Message   string            `json:"message"`
		RelatedTo *models.RelatedTo `json:"related_to,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.UserIDs) == 0 {
		writeError(w, http.StatusBadRequest, "user id list is required")
		return
	}
	if req.Title == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "title and message are required")
		return
	}

	notifications, err := h.service.SendBulk(r.Context(), req.UserIDs, req.Title, req.Message, req.RelatedTo)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to send bulk notifications")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"sent":          len(notifications),
		"notifications": notifications,
	})
}
