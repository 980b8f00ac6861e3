package model

import "time"

// PlayerEvent is the body of player_joined, player_left,
// player_disconnected and player_reconnected.
type PlayerEvent struct {
	RoomID       string `json:"roomId"`
	PlayerID     string `json:"playerId"`
	DisplayName  string `json:"displayName,omitempty"`
	Reason       string `json:"reason,omitempty"`
	GraceSeconds int    `json:"graceSeconds,omitempty"`
}

// RoomDisbanded is the body of room_disbanded.
type RoomDisbanded struct {
	RoomID string `json:"roomId"`
	Reason string `json:"reason"`
}

// GameFinished is the body of game_finished.
type GameFinished struct {
	RoomID    string     `json:"roomId"`
	MatchID   string     `json:"matchId,omitempty"`
	Reason    string     `json:"reason"`
	WinnerID  string     `json:"winnerId,omitempty"`
	Standings []Standing `json:"standings"`
	Game      any        `json:"game,omitempty"`
}

// ChatMessage is the body of new_message.
type ChatMessage struct {
	RoomID      string    `json:"roomId"`
	PlayerID    string    `json:"playerId"`
	DisplayName string    `json:"displayName"`
	Message     string    `json:"message"`
	SentAt      time.Time `json:"sentAt"`
}
