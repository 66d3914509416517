package chathub

import "dilse/backend/internal/models"

// Client is the interface for any type of connection (e.g., WebSocket, Telegram).
// It abstracts the underlying communication mechanism, allowing the hub to manage
// different client types uniformly.
type Client interface {
	// GetUserID returns the connection id. It is unique among live connections.
	GetUserID() string

	// Deliver queues an envelope for the client without blocking. It returns
	// false when the client is closed or its buffer is full; the hub drops
	// such clients.
	Deliver(env models.Envelope) bool

	// Run starts the client's read and write loops.
	Run()
	// Close shuts the connection down. It must be safe to call more than once.
	Close()
}
