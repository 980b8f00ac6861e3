package model

import "time"

// PlayerIdentity is the stable identity supplied by the auth provider at
// connection time. It is immutable for the session.
type PlayerIdentity struct {
	ID          string `json:"id" bson:"playerId"`
	DisplayName string `json:"displayName" bson:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty" bson:"avatarUrl,omitempty"`
}

// PlayerStats are the cumulative counters kept on a player profile.
type PlayerStats struct {
	GamesPlayed int `json:"gamesPlayed" bson:"gamesPlayed"`
	Wins        int `json:"wins" bson:"wins"`
	Points      int `json:"points" bson:"points"`
}

// PlayerProfile is the persisted player document. Only the fields this
// service reads or writes are mapped.
type PlayerProfile struct {
	ID          string      `json:"id" bson:"_id"`
	DisplayName string      `json:"displayName" bson:"displayName"`
	AvatarURL   string      `json:"avatarUrl,omitempty" bson:"avatarUrl,omitempty"`
	Banned      bool        `json:"banned" bson:"banned"`
	Stats       PlayerStats `json:"stats" bson:"stats"`
	UpdatedAt   time.Time   `json:"updatedAt" bson:"updatedAt"`
}

// StatsDelta is added to a player's stats when a match is finalized.
type StatsDelta struct {
	GamesPlayed int
	Wins        int
	Points      int
}
