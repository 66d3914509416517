package chathub

import (
	"dilse/backend/internal/models"
	"fmt"

	"github.com/sirupsen/logrus"
)

// State is the pairing state of a connection.
type State int

const (
	StateUnpaired State = iota
	StateWaiting
	StatePaired
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StatePaired:
		return "paired"
	default:
		return "unpaired"
	}
}

// Connection is the hub's record of one live client.
type Connection struct {
	ID      string
	Profile models.Profile
	State   State
	// PairID is set only while State is StatePaired.
	PairID string
	Client Client

	registered bool
	// lastPartner is the member of the pair that was last torn down. The next
	// search skips it so leaving a pair never hands back the same partner.
	lastPartner string
}

// Registered reports whether a profile was submitted.
func (c Connection) Registered() bool { return c.registered }

// Attach makes a transport connection known to the hub. A live connection
// with the same id is replaced and torn down as if it had disconnected.
func (m *ManagerService) Attach(c Client) {
	id := c.GetUserID()

	m.mu.Lock()
	var replaced Client
	if old, ok := m.conns[id]; ok {
		replaced = old.Client
		m.removeLocked(old, "replaced")
	}
	m.conns[id] = &Connection{ID: id, State: StateUnpaired, Client: c}
	m.mu.Unlock()

	if replaced != nil && replaced != c {
		replaced.Close()
	}
	m.log.WithField("conn", id).Debug("connection attached")
}

// Register stores the profile of a connection and asks for a partner. A
// connection that is waiting keeps its place when the profile is unchanged
// and is re-queued otherwise; a pending re-queue is cancelled in favour of
// this request.
func (m *ManagerService) Register(id string, profile models.Profile) error {
	profile = profile.Normalize()
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[id]
	if !ok {
		return ErrUnknownConnection
	}
	if conn.State == StatePaired {
		return ErrAlreadyPaired
	}

	if conn.State == StateWaiting && conn.Profile == profile {
		m.log.WithField("conn", id).Debug("register while waiting with the same profile")
		return nil
	}

	m.cancelRequeueLocked(id)
	if conn.State == StateWaiting {
		m.queue.Remove(id)
		m.recorder.NotWaiting(id)
		conn.State = StateUnpaired
	}
	conn.Profile = profile
	conn.registered = true

	m.log.WithFields(logOf(conn)).Info("profile registered")
	m.matchLocked(conn)
	return nil
}

// Unregister removes a client and everything it takes part in. Clients the
// hub does not know, or that were already replaced, are ignored.
func (m *ManagerService) Unregister(c Client) {
	m.mu.Lock()
	conn, ok := m.conns[c.GetUserID()]
	if !ok || conn.Client != c {
		m.mu.Unlock()
		return
	}
	m.removeLocked(conn, "disconnect")
	m.mu.Unlock()

	c.Close()
	m.log.WithField("conn", conn.ID).Info("connection unregistered")
}

// Lookup returns a copy of a connection's record.
func (m *ManagerService) Lookup(id string) (Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.conns[id]
	if !ok {
		return Connection{}, false
	}
	return *conn, true
}

// isCurrent reports whether c is the live client for its id.
func (m *ManagerService) isCurrent(c Client) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.conns[c.GetUserID()]
	return ok && conn.Client == c
}

// removeLocked forgets a connection: it leaves the queue, its pair is torn
// down and its pending re-queue is cancelled.
func (m *ManagerService) removeLocked(conn *Connection, reason string) {
	m.cancelRequeueLocked(conn.ID)
	switch conn.State {
	case StateWaiting:
		m.queue.Remove(conn.ID)
		m.recorder.NotWaiting(conn.ID)
	case StatePaired:
		m.teardownLocked(conn, reason)
	}
	conn.State = StateUnpaired
	delete(m.conns, conn.ID)
}

func logOf(conn *Connection) logrus.Fields {
	return logrus.Fields{
		"conn":        conn.ID,
		"gender":      conn.Profile.Gender,
		"looking_for": conn.Profile.LookingFor,
	}
}
