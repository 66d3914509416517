package chathub

import (
	"dilse/backend/internal/models"
	"encoding/json"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// RelayKind names what a connection sends to its partner.
type RelayKind string

const (
	KindOffer        RelayKind = "offer"
	KindAnswer       RelayKind = "answer"
	KindICECandidate RelayKind = "ice-candidate"
	KindChat         RelayKind = "chat"
	KindTyping       RelayKind = "typing"
	KindStopTyping   RelayKind = "stop-typing"
)

// Pair is two connections talking to each other. The hub lock guards the
// pair map; mu guards relaying through the pair and its closed flag.
type Pair struct {
	ID        string
	Users     [2]string
	CreatedAt time.Time

	mu      sync.Mutex
	clients [2]Client
	names   [2]string
	closed  bool
}

func newPair(a, b *Connection) *Pair {
	return &Pair{
		ID:        uuid.New().String(),
		Users:     [2]string{a.ID, b.ID},
		CreatedAt: time.Now().UTC(),
		clients:   [2]Client{a.Client, b.Client},
		names:     [2]string{a.Profile.Name, b.Profile.Name},
	}
}

// side returns 0 or 1 for a member, -1 otherwise.
func (p *Pair) side(id string) int {
	switch id {
	case p.Users[0]:
		return 0
	case p.Users[1]:
		return 1
	}
	return -1
}

// partnerOf returns the other member's id.
func (p *Pair) partnerOf(id string) string {
	if s := p.side(id); s >= 0 {
		return p.Users[1-s]
	}
	return ""
}

func (p *Pair) close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// Relay forwards an event from a connection to its partner. Negotiation
// payloads are passed on byte for byte. Chat text is appended to the pair's
// history before it is forwarded. Nothing is echoed to the sender.
func (m *ManagerService) Relay(fromID string, kind RelayKind, payload json.RawMessage) error {
	m.mu.RLock()
	conn, ok := m.conns[fromID]
	var pair *Pair
	if ok && conn.State == StatePaired {
		pair = m.pairs[conn.PairID]
	}
	m.mu.RUnlock()

	if !ok {
		return ErrUnknownConnection
	}
	if pair == nil {
		return ErrNoPartner
	}

	var (
		env  models.Envelope
		text string
		err  error
	)
	switch kind {
	case KindOffer:
		env = models.Envelope{Event: models.EventOffer, Data: payload}
	case KindAnswer:
		env = models.Envelope{Event: models.EventAnswer, Data: payload}
	case KindICECandidate:
		env = models.Envelope{Event: models.EventICE, Data: payload}
	case KindTyping:
		env = models.Envelope{Event: models.EventPartnerTyping}
	case KindStopTyping:
		env = models.Envelope{Event: models.EventPartnerStopTyping}
	case KindChat:
		if text, err = m.chatText(payload); err != nil {
			return err
		}
	default:
		return ErrUnsupportedEvent
	}

	pair.mu.Lock()
	defer pair.mu.Unlock()

	self := pair.side(fromID)
	if pair.closed || self < 0 {
		return ErrNoPartner
	}

	if kind == KindChat {
		msg := models.ChatMessage{
			SenderID:  fromID,
			From:      pair.names[self],
			Text:      text,
			Timestamp: time.Now().UTC(),
		}
		if err := m.History.Append(pair.ID, msg); err != nil {
			return err
		}
		m.recorder.MessageAppended(pair.ID, msg)
		if env, err = models.NewEnvelope(models.EventMessage, msg); err != nil {
			return err
		}
	}

	m.deliver(pair.clients[1-self], env)
	return nil
}

// chatText accepts either a JSON string or {"text": ...}.
func (m *ManagerService) chatText(payload json.RawMessage) (string, error) {
	if len(payload) == 0 {
		return "", ErrEmptyMessage
	}

	var text string
	if err := json.Unmarshal(payload, &text); err != nil {
		var in models.ChatInput
		if err := json.Unmarshal(payload, &in); err != nil {
			return "", ErrBadPayload
		}
		text = in.Text
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > m.opts.MaxMessageLength {
		return "", ErrMessageTooLong
	}
	return text, nil
}

// Replay returns the history of the connection's current pair.
func (m *ManagerService) Replay(id string) ([]models.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conn, ok := m.conns[id]
	if !ok {
		return nil, ErrUnknownConnection
	}
	if conn.State != StatePaired {
		return nil, ErrNoPartner
	}
	return m.History.Replay(conn.PairID), nil
}
