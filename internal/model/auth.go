package model

import "github.com/golang-jwt/jwt/v5"

// PlayerClaims are the JWT claims presented by a connecting player.
type PlayerClaims struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	jwt.RegisteredClaims
}

// Identity converts the claims into the session identity.
func (c *PlayerClaims) Identity() PlayerIdentity {
	return PlayerIdentity{
		ID:          c.PlayerID,
		DisplayName: c.DisplayName,
		AvatarURL:   c.AvatarURL,
	}
}
