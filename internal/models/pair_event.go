package models

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Pair lifecycle event kinds. UserBanned is published by operators; every
// server process disconnects the named users.
const (
	PairOpened = "opened"
	PairClosed = "closed"
	UserBanned = "banned"
)

// PairEvent is published on the pair events channel whenever a pair forms or
// is torn down. Payloads are msgpack-encoded.
type PairEvent struct {
	Kind   string    `msgpack:"kind"`
	RoomID string    `msgpack:"room_id"`
	Users  []string  `msgpack:"users"`
	Reason string    `msgpack:"reason,omitempty"`
	At     time.Time `msgpack:"at"`
}

// Encode serializes the event for the wire.
func (e PairEvent) Encode() ([]byte, error) {
	return msgpack.Marshal(e)
}

// DecodePairEvent parses a payload produced by Encode.
func DecodePairEvent(data []byte) (PairEvent, error) {
	var e PairEvent
	err := msgpack.Unmarshal(data, &e)
	return e, err
}
