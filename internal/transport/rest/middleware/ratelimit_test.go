package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/fault"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/model"
	apperrors "github.com/Ashu8840/chor-sipahi-sub000/internal/platform/errors"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/ratelimit"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/transport/rest/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func serve(t *testing.T, h http.HandlerFunc, playerID string) (int, map[string]string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/rooms", nil)
	if playerID != "" {
		req = req.WithContext(middleware.WithPlayer(req.Context(), model.PlayerIdentity{ID: playerID}))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	var body map[string]string
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec.Code, body
}

func newThrottle(clock clockwork.Clock) *middleware.Throttle {
	limiter := ratelimit.New(ratelimit.Config{
		Capacity:        10,
		RefillPerSecond: 1,
		Retention:       time.Minute,
		Costs:           map[string]int{"create_room": 5},
	}, clock)
	guard := fault.New(fault.Config{Threshold: 2, Window: time.Minute}, zap.NewNop())
	return middleware.NewThrottle(limiter, guard)
}

func TestThrottle_ChargesPerPlayer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	calls := 0
	h := newThrottle(clock).Event("create_room", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	})

	code, _ := serve(t, h, "")
	assert.Equal(t, http.StatusUnauthorized, code)

	for i := 0; i < 2; i++ {
		code, _ = serve(t, h, "u1")
		require.Equal(t, http.StatusCreated, code)
	}
	code, body := serve(t, h, "u1")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, string(apperrors.CodeRateLimited), body["code"])

	code, _ = serve(t, h, "u2")
	assert.Equal(t, http.StatusCreated, code, "buckets are per player")

	clock.Advance(5 * time.Second)
	code, _ = serve(t, h, "u1")
	assert.Equal(t, http.StatusCreated, code, "bucket refills")
	assert.Equal(t, 4, calls)
}

func TestThrottle_ServerErrorsOpenTheBreaker(t *testing.T) {
	throttle := newThrottle(clockwork.NewFakeClock())
	failing := throttle.Event("quick_match", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	rejecting := throttle.Event("create_room", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	for i := 0; i < 2; i++ {
		code, _ := serve(t, failing, "u1")
		assert.Equal(t, http.StatusInternalServerError, code)
	}
	code, body := serve(t, failing, "u1")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, string(apperrors.CodeCircuitOpen), body["code"])

	for i := 0; i < 2; i++ {
		code, _ = serve(t, rejecting, "u2")
		assert.Equal(t, http.StatusConflict, code, "client errors never trip the breaker")
	}
}

func TestThrottle_RecoversPanics(t *testing.T) {
	h := newThrottle(clockwork.NewFakeClock()).Event("create_room", func(w http.ResponseWriter, r *http.Request) {
		panic("nil room")
	})

	code, body := serve(t, h, "u1")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, string(apperrors.CodeInternal), body["code"])
	assert.Equal(t, fault.GenericMessage, body["error"])
}
