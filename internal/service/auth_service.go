package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Ashu8840/chor-sipahi-sub000/internal/model"
	apperrors "github.com/Ashu8840/chor-sipahi-sub000/internal/platform/errors"
	"github.com/Ashu8840/chor-sipahi-sub000/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

var (
	ErrInvalidToken = apperrors.New(apperrors.CodeUnauthorized, "Invalid or expired token")
	ErrBanned       = apperrors.New(apperrors.CodeUnauthorized, "This account is banned")
)

// AuthService resolves presented tokens to player identities
type AuthService struct {
	jwtSecret []byte
	players   repository.PlayerRepo
	clock     clockwork.Clock
	log       *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(secret string, players repository.PlayerRepo, clock clockwork.Clock, log *zap.Logger) *AuthService {
	return &AuthService{
		jwtSecret: []byte(secret),
		players:   players,
		clock:     clock,
		log:       log,
	}
}

// IssueToken signs a player token. Accounts are managed elsewhere; this is
// used by tooling and tests.
func (s *AuthService) IssueToken(identity model.PlayerIdentity, ttl time.Duration) (string, error) {
	now := s.clock.Now()
	claims := &model.PlayerClaims{
		PlayerID:    identity.ID,
		DisplayName: identity.DisplayName,
		AvatarURL:   identity.AvatarURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidatePlayerToken validates a player JWT and returns claims
func (s *AuthService) ValidatePlayerToken(tokenString string) (*model.PlayerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &model.PlayerClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.PlayerClaims)
	if !ok || !token.Valid || claims.PlayerID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Resolve validates tokenString and rejects banned identities.
func (s *AuthService) Resolve(ctx context.Context, tokenString string) (model.PlayerIdentity, error) {
	claims, err := s.ValidatePlayerToken(tokenString)
	if err != nil {
		return model.PlayerIdentity{}, err
	}
	identity := claims.Identity()

	profile, err := s.players.GetByID(ctx, identity.ID)
	if err != nil {
		return model.PlayerIdentity{}, fmt.Errorf("failed to load profile %s: %w", identity.ID, err)
	}
	if profile != nil && profile.Banned {
		s.log.Info("banned player rejected", zap.String("player_id", identity.ID))
		return model.PlayerIdentity{}, ErrBanned
	}
	if profile == nil || profile.DisplayName != identity.DisplayName || profile.AvatarURL != identity.AvatarURL {
		if err := s.players.Touch(ctx, identity); err != nil {
			s.log.Warn("failed to touch profile", zap.String("player_id", identity.ID), zap.Error(err))
		}
	}
	return identity, nil
}
