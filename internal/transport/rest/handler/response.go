package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/Ashu8840/chor-sipahi-sub000/internal/platform/errors"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code apperrors.Code, message string) {
	writeJSON(w, status, map[string]string{"code": string(code), "error": message})
}

// writeAppError maps a service error onto an HTTP status. Internal errors
// are logged and never echoed.
func writeAppError(w http.ResponseWriter, log *zap.Logger, err error) {
	if !apperrors.IsRejection(err) {
		log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, apperrors.CodeInternal, "internal error")
		return
	}
	code := apperrors.CodeOf(err)
	var e *apperrors.Error
	message := err.Error()
	if errors.As(err, &e) {
		message = e.Message
	}
	writeError(w, statusOf(code), code, message)
}

func statusOf(code apperrors.Code) int {
	switch code {
	case apperrors.CodeRoomNotFound:
		return http.StatusNotFound
	case apperrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.CodePasskeyMismatch, apperrors.CodeNotHost:
		return http.StatusForbidden
	case apperrors.CodeRoomFull, apperrors.CodeRoomNotWaiting, apperrors.CodeAlreadyInRoom:
		return http.StatusConflict
	case apperrors.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadRequest
	}
}
