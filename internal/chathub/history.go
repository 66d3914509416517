package chathub

import (
	"dilse/backend/internal/models"
	"sync"
)

// HistoryStore keeps the chat log of every open pair. The store lock only
// guards the index; each log has its own mutex so that appends of different
// pairs do not contend.
type HistoryStore struct {
	mu   sync.RWMutex
	logs map[string]*pairLog
}

type pairLog struct {
	mu       sync.Mutex
	messages []models.ChatMessage
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{logs: make(map[string]*pairLog)}
}

// Open creates an empty log for a pair. Opening an existing pair resets it.
func (h *HistoryStore) Open(pairID string) {
	h.mu.Lock()
	h.logs[pairID] = &pairLog{}
	h.mu.Unlock()
}

// Append adds a message to the end of the pair's log.
func (h *HistoryStore) Append(pairID string, msg models.ChatMessage) error {
	h.mu.RLock()
	l, ok := h.logs[pairID]
	h.mu.RUnlock()
	if !ok {
		return ErrNoPartner
	}

	l.mu.Lock()
	l.messages = append(l.messages, msg)
	l.mu.Unlock()
	return nil
}

// Replay returns a copy of the pair's log in append order. Unknown pairs
// replay as an empty, non-nil slice.
func (h *HistoryStore) Replay(pairID string) []models.ChatMessage {
	h.mu.RLock()
	l, ok := h.logs[pairID]
	h.mu.RUnlock()
	if !ok {
		return []models.ChatMessage{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.ChatMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// Discard drops the pair's log.
func (h *HistoryStore) Discard(pairID string) {
	h.mu.Lock()
	delete(h.logs, pairID)
	h.mu.Unlock()
}

// Len reports how many pair logs are open.
func (h *HistoryStore) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.logs)
}
