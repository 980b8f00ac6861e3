// Package errors provides coded domain errors shared by the room lifecycle
// manager, the game engines and the transport layer.
package errors

// Code is a machine-readable error code sent to clients alongside rejections.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Request errors
	CodeInvalidPayload Code = "INVALID_PAYLOAD"
	CodeUnknownEvent   Code = "UNKNOWN_EVENT"

	// Room errors
	CodeRoomNotFound        Code = "ROOM_NOT_FOUND"
	CodeRoomFull            Code = "ROOM_FULL"
	CodeRoomNotWaiting      Code = "ROOM_NOT_WAITING"
	CodeRoomNotPlaying      Code = "ROOM_NOT_PLAYING"
	CodeRoomInvalidSettings Code = "ROOM_INVALID_SETTINGS"
	CodePasskeyMismatch     Code = "PASSKEY_MISMATCH"
	CodeNotHost             Code = "NOT_HOST"
	CodeNotInRoom           Code = "NOT_IN_ROOM"
	CodeAlreadyInRoom       Code = "ALREADY_IN_ROOM"
	CodeNotEnoughPlayers    Code = "NOT_ENOUGH_PLAYERS"
	CodePlayersNotReady     Code = "PLAYERS_NOT_READY"
	CodeWrongGameType       Code = "WRONG_GAME_TYPE"
	CodeEmptyMessage        Code = "EMPTY_MESSAGE"

	// Role game errors
	CodeNotShuffler    Code = "NOT_SHUFFLER"
	CodeNotGuesser     Code = "NOT_GUESSER"
	CodeAlreadyGuessed Code = "ALREADY_GUESSED"
	CodeRolesNotDealt  Code = "ROLES_NOT_DEALT"
	CodeRolesDealt     Code = "ROLES_ALREADY_DEALT"
	CodeInvalidTarget  Code = "INVALID_TARGET"

	// Card game errors
	CodeNotYourTurn    Code = "NOT_YOUR_TURN"
	CodeCardNotInHand  Code = "CARD_NOT_IN_HAND"
	CodeIllegalCard    Code = "ILLEGAL_CARD"
	CodeInvalidColor   Code = "INVALID_COLOR"
	CodeNoChallenge    Code = "NO_CHALLENGE"
	CodeCannotCallLast Code = "CANNOT_CALL_LAST_CARD"
	CodeNothingToCatch Code = "NOTHING_TO_CATCH"

	// Game lifecycle errors
	CodeGameNotActive Code = "GAME_NOT_ACTIVE"

	// Gate errors
	CodeRateLimited  Code = "RATE_LIMITED"
	CodeCircuitOpen  Code = "CIRCUIT_OPEN"
	CodeUnauthorized Code = "UNAUTHORIZED"

	// CodeInternal marks an infrastructure fault; its message never reaches clients.
	CodeInternal Code = "INTERNAL"
)
