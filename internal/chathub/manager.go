package chathub

import (
	"context"
	"dilse/backend/internal/logging"
	"dilse/backend/internal/models"
	"dilse/backend/internal/storage"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Options tunes pairing and relay behaviour.
type Options struct {
	// RequeueDelay is how long a survivor of a teardown waits before it
	// re-enters the queue. Zero re-queues immediately.
	RequeueDelay time.Duration
	// MaxMessageLength bounds chat text, in runes.
	MaxMessageLength int
	// Filter holds the optional matching rules.
	Filter MatchFilter
	// PersistHistory archives pairs and chat messages to storage.
	PersistHistory bool
}

// Stats is a point-in-time view of the hub.
type Stats struct {
	Online     int `json:"online"`
	Registered int `json:"registered"`
	Waiting    int `json:"waiting"`
	Pairs      int `json:"pairs"`
}

// ManagerService is the single owner of connections, the waiting queue and
// pairs. Every mutation of those three happens under mu, which makes
// registration, matching and teardown atomic with respect to each other.
// Relay only reads under mu and then works under the pair's own lock.
type ManagerService struct {
	mu      sync.RWMutex
	conns   map[string]*Connection
	queue   *WaitingQueue
	pairs   map[string]*Pair
	requeue map[string]*requeueTimer

	History    *HistoryStore
	Storage    storage.Storage
	recorder   *Recorder
	complaints ComplaintHandler

	opts Options
	log  logrus.FieldLogger
}

// NewManagerService builds a hub. Storage may be nil, in which case nothing is
// archived, mirrored or published.
func NewManagerService(s storage.Storage, opts Options, log logrus.FieldLogger) *ManagerService {
	if log == nil {
		log = logging.Discard()
	}
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = 2000
	}
	if opts.RequeueDelay < 0 {
		opts.RequeueDelay = 0
	}

	return &ManagerService{
		conns:    make(map[string]*Connection),
		queue:    NewWaitingQueue(opts.Filter),
		pairs:    make(map[string]*Pair),
		requeue:  make(map[string]*requeueTimer),
		History:  NewHistoryStore(),
		Storage:  s,
		recorder: NewRecorder(s, opts.PersistHistory, log),
		opts:     opts,
		log:      log,
	}
}

// SetComplaintHandler plugs in the moderation flow used by "report".
func (m *ManagerService) SetComplaintHandler(h ComplaintHandler) {
	m.complaints = h
}

// Run processes storage side effects until ctx is done, then closes every
// connection.
func (m *ManagerService) Run(ctx context.Context) {
	m.log.Info("chat hub started")
	m.recorder.Run(ctx)
	m.Shutdown()
	m.log.Info("chat hub stopped")
}

// Shutdown drops all connections, pairs and pending re-queues.
func (m *ManagerService) Shutdown() {
	m.mu.Lock()
	clients := make([]Client, 0, len(m.conns))
	for id, conn := range m.conns {
		m.cancelRequeueLocked(id)
		if conn.Client != nil {
			clients = append(clients, conn.Client)
		}
	}
	for id, p := range m.pairs {
		p.close()
		m.History.Discard(id)
	}
	m.conns = make(map[string]*Connection)
	m.pairs = make(map[string]*Pair)
	m.queue = NewWaitingQueue(m.opts.Filter)
	m.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}

// Stats reports connection, queue and pair counts.
func (m *ManagerService) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Stats{
		Online:  len(m.conns),
		Waiting: m.queue.Len(),
		Pairs:   len(m.pairs),
	}
	for _, c := range m.conns {
		if c.registered {
			st.Registered++
		}
	}
	return st
}

// WaitingIDs lists the connections currently waiting for a partner.
func (m *ManagerService) WaitingIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queue.Waiting()
}

// send delivers an event to a client. A client that cannot take it is
// dropped asynchronously, since callers usually hold mu.
func (m *ManagerService) send(c Client, event string, data any) {
	if c == nil {
		return
	}
	env, err := models.NewEnvelope(event, data)
	if err != nil {
		m.log.WithError(err).WithField("event", event).Error("failed to encode event")
		return
	}
	m.deliver(c, env)
}

func (m *ManagerService) deliver(c Client, env models.Envelope) {
	if c.Deliver(env) {
		return
	}
	m.log.WithField("conn", c.GetUserID()).Warn("client send buffer full, dropping connection")
	go m.Unregister(c)
}

// sendError reports a rejected operation back to its sender.
func (m *ManagerService) sendError(c Client, err error) {
	code := ErrorCode(err)
	msg := err.Error()
	if code == "internal" {
		msg = "internal error"
	}
	m.send(c, models.EventError, models.ErrorPayload{Code: code, Message: msg})
}
