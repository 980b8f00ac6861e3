package model

import "time"

// Standing is one participant's position in a finished or aborted match.
type Standing struct {
	PlayerID string `json:"playerId" bson:"playerId"`
	Score    int    `json:"score" bson:"score"`
	Place    int    `json:"place" bson:"place"`
}

// RoundRecord is appended to a match after each completed round.
type RoundRecord struct {
	Round   int               `json:"round" bson:"round"`
	Roles   map[string]string `json:"roles,omitempty" bson:"roles,omitempty"`
	Points  map[string]int    `json:"points,omitempty" bson:"points,omitempty"`
	Accused string            `json:"accused,omitempty" bson:"accused,omitempty"`
	Correct bool              `json:"correct" bson:"correct"`
	At      time.Time         `json:"at" bson:"at"`
}

// Match is the persisted history of one game played in a room.
type Match struct {
	ID        string        `json:"id" bson:"_id"`
	RoomID    string        `json:"roomId" bson:"roomId"`
	GameType  GameType      `json:"gameType" bson:"gameType"`
	Players   []string      `json:"players" bson:"players"`
	Rounds    []RoundRecord `json:"rounds" bson:"rounds"`
	Standings []Standing    `json:"standings,omitempty" bson:"standings,omitempty"`
	WinnerID  string        `json:"winnerId,omitempty" bson:"winnerId,omitempty"`
	Reason    string        `json:"reason,omitempty" bson:"reason,omitempty"`
	StartedAt time.Time     `json:"startedAt" bson:"startedAt"`
	EndedAt   *time.Time    `json:"endedAt,omitempty" bson:"endedAt,omitempty"`
}

// MatchResult closes a match.
type MatchResult struct {
	WinnerID  string
	Standings []Standing
	Reason    string
	EndedAt   time.Time
}

// Reasons a match or room ends.
const (
	ReasonCompleted      = "completed"
	ReasonPlayerLeft     = "player_left"
	ReasonHostLeft       = "host_left"
	ReasonEmpty          = "empty"
	ReasonTimeoutNoStart = "timeout_no_start"
	ReasonMaxDuration    = "max_duration"
	ReasonShutdown       = "server_shutdown"
)
