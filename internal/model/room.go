package model

import "time"

type RoomStatus string

const (
	RoomWaiting  RoomStatus = "waiting"
	RoomPlaying  RoomStatus = "playing"
	RoomFinished RoomStatus = "finished"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// GameType tags which engine drives a room's game state.
type GameType string

const (
	GameRoles GameType = "roles"
	GameCards GameType = "uno"
)

// Valid reports whether g names a known engine.
func (g GameType) Valid() bool {
	return g == GameRoles || g == GameCards
}

// Participant is a player's membership record within one room.
type Participant struct {
	PlayerIdentity `bson:",inline"`
	Connected      bool      `json:"connected" bson:"connected"`
	Ready          bool      `json:"ready" bson:"ready"`
	TransportID    string    `json:"-" bson:"transportId"`
	LastActiveAt   time.Time `json:"lastActiveAt" bson:"lastActiveAt"`
	JoinedAt       time.Time `json:"joinedAt" bson:"joinedAt"`
}

// Room is the authoritative record of one game room. GameState holds the
// active engine's state and is never serialized to clients directly.
type Room struct {
	ID           string         `json:"id" bson:"_id"`
	Name         string         `json:"name" bson:"name"`
	Visibility   Visibility     `json:"visibility" bson:"visibility"`
	PasskeyHash  string         `json:"-" bson:"passkey,omitempty"`
	HostID       string         `json:"hostId" bson:"hostId"`
	Participants []*Participant `json:"participants" bson:"participants"`
	Capacity     int            `json:"capacity" bson:"capacity"`
	Status       RoomStatus     `json:"status" bson:"status"`
	GameType     GameType       `json:"gameType" bson:"gameType"`
	MatchID      string         `json:"matchId,omitempty" bson:"matchId,omitempty"`
	GameState    any            `json:"-" bson:"gameState,omitempty"`
	CreatedAt    time.Time      `json:"createdAt" bson:"createdAt"`
	StartedAt    *time.Time     `json:"startedAt,omitempty" bson:"startedAt,omitempty"`
	EndedAt      *time.Time     `json:"endedAt,omitempty" bson:"endedAt,omitempty"`
}

// Participant returns the membership record for playerID, or nil.
func (r *Room) Participant(playerID string) *Participant {
	for _, p := range r.Participants {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

// ParticipantIDs returns participant ids in join order.
func (r *Room) ParticipantIDs() []string {
	ids := make([]string, len(r.Participants))
	for i, p := range r.Participants {
		ids[i] = p.ID
	}
	return ids
}

// HasPasskey reports whether joining requires a passkey.
func (r *Room) HasPasskey() bool {
	return r.PasskeyHash != ""
}

// RoomView is the sanitized room sent in room_updated messages.
type RoomView struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Visibility   Visibility     `json:"visibility"`
	HasPasskey   bool           `json:"hasPasskey"`
	HostID       string         `json:"hostId"`
	Participants []*Participant `json:"participants"`
	Capacity     int            `json:"capacity"`
	Status       RoomStatus     `json:"status"`
	GameType     GameType       `json:"gameType"`
	Game         any            `json:"game,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	StartedAt    *time.Time     `json:"startedAt,omitempty"`
}

// RoomMeta is the directory entry kept in Redis for quick match.
type RoomMeta struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	GameType     GameType   `json:"gameType"`
	Visibility   Visibility `json:"visibility"`
	Status       RoomStatus `json:"status"`
	Capacity     int        `json:"capacity"`
	Participants int        `json:"participants"`
	HasPasskey   bool       `json:"hasPasskey"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Open reports whether a stranger could quick-match into the room.
func (m *RoomMeta) Open() bool {
	return m.Status == RoomWaiting && m.Visibility == VisibilityPublic && !m.HasPasskey && m.Participants < m.Capacity
}
