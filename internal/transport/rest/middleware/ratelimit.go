package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/fault"
	apperrors "github.com/Ashu8840/chor-sipahi-sub000/internal/platform/errors"
)

// Limiter charges an identity for one event.
type Limiter interface {
	Allow(identity, event string) bool
}

// Guard contains handler faults per event type.
type Guard interface {
	Do(event, playerID string, fn func() error) error
}

var errServerStatus = errors.New("handler responded with a server error")

// Throttle applies the socket event pipeline to mutating HTTP routes.
type Throttle struct {
	limiter Limiter
	guard   Guard
}

// NewThrottle creates a throttle over the shared limiter and guard.
func NewThrottle(limiter Limiter, guard Guard) *Throttle {
	return &Throttle{limiter: limiter, guard: guard}
}

// Event charges the authenticated player for event, then runs next inside
// the fault guard. A 5xx response counts as a failure toward the breaker.
// It must run after RequirePlayer.
func (t *Throttle) Event(event string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, ok := GetPlayer(r.Context())
		if !ok {
			unauthorized(w, "missing authorization")
			return
		}
		if !t.limiter.Allow(player.ID, event) {
			writeError(w, http.StatusTooManyRequests, apperrors.CodeRateLimited, "Too many requests, slow down")
			return
		}

		rec := &statusRecorder{ResponseWriter: w}
		err := t.guard.Do(event, player.ID, func() error {
			next(rec, r)
			if rec.status >= http.StatusInternalServerError {
				return errServerStatus
			}
			return nil
		})
		if err == nil || rec.wrote {
			return
		}
		if apperrors.CodeOf(err) == apperrors.CodeCircuitOpen {
			writeError(w, http.StatusServiceUnavailable, apperrors.CodeCircuitOpen, fault.ClientMessage(err))
			return
		}
		writeError(w, http.StatusInternalServerError, apperrors.CodeInternal, fault.ClientMessage(err))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wrote {
		s.status, s.wrote = code, true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.wrote {
		s.status, s.wrote = http.StatusOK, true
	}
	return s.ResponseWriter.Write(b)
}

func writeError(w http.ResponseWriter, status int, code apperrors.Code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"code": string(code), "error": message})
}
