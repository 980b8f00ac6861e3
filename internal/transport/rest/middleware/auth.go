package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/model"
	apperrors "github.com/Ashu8840/chor-sipahi-sub000/internal/platform/errors"
	"go.uber.org/zap"
)

type contextKey string

const playerKey contextKey = "player"

// Resolver turns a presented token into a player identity.
type Resolver interface {
	Resolve(ctx context.Context, token string) (model.PlayerIdentity, error)
}

// AuthMiddleware provides JWT authentication middleware
type AuthMiddleware struct {
	auth Resolver
	log  *zap.Logger
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(auth Resolver, log *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{auth: auth, log: log}
}

// RequirePlayer resolves the bearer token (or token query param) and stores
// the identity in the request context.
func (m *AuthMiddleware) RequirePlayer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			unauthorized(w, "missing authorization")
			return
		}

		player, err := m.auth.Resolve(r.Context(), token)
		if err != nil {
			if apperrors.CodeOf(err) == apperrors.CodeUnauthorized {
				unauthorized(w, err.Error())
				return
			}
			m.log.Error("failed to resolve player", zap.Error(err))
			writeError(w, http.StatusInternalServerError, apperrors.CodeInternal, "internal error")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPlayer(r.Context(), player)))
	})
}

// WithPlayer returns ctx carrying player.
func WithPlayer(ctx context.Context, player model.PlayerIdentity) context.Context {
	return context.WithValue(ctx, playerKey, player)
}

// GetPlayer extracts the authenticated player from context
func GetPlayer(ctx context.Context) (model.PlayerIdentity, bool) {
	player, ok := ctx.Value(playerKey).(model.PlayerIdentity)
	return player, ok
}

func unauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, apperrors.CodeUnauthorized, message)
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
