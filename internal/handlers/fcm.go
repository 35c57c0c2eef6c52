package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/presencaplus/attendance-api/internal/fcm"
	"github.com/presencaplus/attendance-api/internal/repository"
)

type FcmHandler struct {
	service *fcm.Service
	logger  zerolog.Logger
}

func NewFcmHandler(service *fcm.Service, logger zerolog.Logger) *FcmHandler {
	return &FcmHandler{
		service: service,
		logger:  logger.With().Str("handler", "fcm").Logger(),
	}
}

func (h *FcmHandler) UpdateToken(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(mux.Vars(r)["userID"])
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user id is required")
		return
	}

	var req struct {
		FcmToken string `json:"fcm_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.UpdateToken(r.Context(), userID, req.FcmToken); err != nil {
		switch {
		case errors.Is(err, fcm.ErrTokenRequired):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		default:
			h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to update fcm token")
			writeError(w, http.StatusInternalServerError, "failed to update fcm token")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "fcm token updated"})
}

func (h *FcmHandler) RemoveToken(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(mux.Vars(r)["userID"])
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user id is required")
		return
	}

	if err := h.service.RemoveToken(r.Context(), userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to remove fcm token")
		writeError(w, http.StatusInternalServerError, "failed to remove fcm token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "fcm token removed"})
}

// Cleanup runs the invalid-token purge. Concurrency-control refusals map to
// 409 so an admin retrying too early can tell them apart from real failures.
func (h *FcmHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.CleanupInvalidTokens(r.Context())
	if err != nil {
		var cooldown *fcm.CooldownError
		switch {
		case errors.Is(err, fcm.ErrCleanupInProgress):
			writeError(w, http.StatusConflict, err.Error())
		case errors.As(err, &cooldown):
			writeError(w, http.StatusConflict, err.Error())
		default:
			h.logger.Error().Err(err).Msg("token cleanup failed")
			writeError(w, http.StatusInternalServerError, "token cleanup failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "fcm token cleanup complete",
		"data":    result,
	})
}
