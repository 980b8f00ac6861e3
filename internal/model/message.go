package model

import "encoding/json"

// Inbound event names.
const (
	EvJoinRoom         = "join_room"
	EvLeaveRoom        = "leave_room"
	EvPlayerReady      = "player_ready"
	EvStartRound       = "start_round"
	EvShuffleRoles     = "shuffle_roles"
	EvGuessChor        = "guess_chor"
	EvSendMessage      = "send_message"
	EvRequestReconnect = "request_reconnect"
	EvUnoStartGame     = "uno:start_game"
	EvUnoPlayCard      = "uno:play_card"
	EvUnoDrawCard      = "uno:draw_card"
	EvUnoCallUno       = "uno:call_uno"
	EvUnoChallenge     = "uno:challenge_draw4"
	EvUnoCatchPlayer   = "uno:catch_player"
)

// Outbound message types.
const (
	MsgRoomUpdated        = "room_updated"
	MsgPlayerJoined       = "player_joined"
	MsgPlayerLeft         = "player_left"
	MsgPlayerDisconnected = "player_disconnected"
	MsgPlayerReconnected  = "player_reconnected"
	MsgNewMessage         = "new_message"
	MsgRoundStarted       = "round_started"
	MsgRolesShuffled      = "roles_shuffled"
	MsgRoleAssigned       = "role_assigned"
	MsgGuessResult        = "guess_result"
	MsgGameFinished       = "game_finished"
	MsgRoomDisbanded      = "room_disbanded"
	MsgUnoGameState       = "uno:game_state"
	MsgUnoHand            = "uno:hand"
	MsgUnoCalled          = "uno:called"
	MsgUnoCaught          = "uno:caught"
	MsgUnoChallenge       = "uno:challenge_result"
	MsgRateLimitExceeded  = "rate_limit_exceeded"
	MsgError              = "error"
)

// Envelope is the wire format in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Outbound is one message addressed to a set of players, in production order.
type Outbound struct {
	RoomID     string
	Recipients []string
	Type       string
	Payload    any
}

// Result collects the messages a transition produced. Handlers return it
// instead of writing to connections themselves.
type Result struct {
	Messages []Outbound
}

// Send queues a message for a single player.
func (r *Result) Send(roomID, playerID, msgType string, payload any) {
	r.Messages = append(r.Messages, Outbound{
		RoomID:     roomID,
		Recipients: []string{playerID},
		Type:       msgType,
		Payload:    payload,
	})
}

// Broadcast queues a message for every listed player.
func (r *Result) Broadcast(roomID string, recipients []string, msgType string, payload any) {
	if len(recipients) == 0 {
		return
	}
	to := make([]string, len(recipients))
	copy(to, recipients)
	r.Messages = append(r.Messages, Outbound{
		RoomID:     roomID,
		Recipients: to,
		Type:       msgType,
		Payload:    payload,
	})
}

// Merge appends other's messages after r's.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Messages = append(r.Messages, other.Messages...)
}

// ErrorPayload is the body of error and rate_limit_exceeded messages.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}
