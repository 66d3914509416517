package chathub

import (
	"dilse/backend/internal/models"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// Session descriptions with many candidates easily exceed a few KB.
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// WebSocketClient implements Client over a gorilla/websocket connection.
type WebSocketClient struct {
	AnonID string
	Conn   *websocket.Conn
	Hub    *ManagerService
	Send   chan []byte

	// limiter throttles chat and typing events. Nil disables throttling.
	limiter *rate.Limiter
	log     logrus.FieldLogger

	mu     sync.Mutex
	closed bool
}

func NewWebSocketClient(anonID string, conn *websocket.Conn, hub *ManagerService, limiter *rate.Limiter) *WebSocketClient {
	return &WebSocketClient{
		AnonID:  anonID,
		Conn:    conn,
		Hub:     hub,
		Send:    make(chan []byte, sendBuffer),
		limiter: limiter,
		log:     hub.log.WithField("conn", anonID),
	}
}

func (c *WebSocketClient) GetUserID() string { return c.AnonID }

func (c *WebSocketClient) Deliver(env models.Envelope) bool {
	data, err := env.Encode()
	if err != nil {
		c.log.WithError(err).Error("failed to encode envelope")
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes Send, which makes writePump send a close frame and exit.
func (c *WebSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// throttled reports whether an event counts against the chat rate limit.
func throttled(event string) bool {
	switch event {
	case models.EventMessage, models.EventTyping, models.EventStopTyping:
		return true
	}
	return false
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Close()
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Warn("unexpected websocket close")
			}
			break
		}

		var env models.Envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Event == "" {
			c.log.Debug("dropping malformed frame")
			c.Hub.sendError(c, ErrBadPayload)
			continue
		}

		if c.limiter != nil && throttled(env.Event) && !c.limiter.Allow() {
			c.Hub.sendError(c, ErrRateLimited)
			continue
		}

		c.Hub.HandleEnvelope(c, env)
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Closed by the hub.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One frame per envelope; clients parse each frame as one JSON value.
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
