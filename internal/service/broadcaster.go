package service

import "github.com/Ashu8840/chor-sipahi-sub000/internal/model"

// Broadcaster delivers outbound messages to connected players. Implemented by
// the websocket hub; kept as an interface here to avoid an import cycle.
type Broadcaster interface {
	Deliver(msgs ...model.Outbound)
}
