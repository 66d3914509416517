package chathub

import (
	"dilse/backend/internal/models"
	"time"

	"github.com/sirupsen/logrus"
)

type requeueTimer struct {
	timer *time.Timer
}

// Leave ends the connection's current session. A paired connection tears its
// pair down; a waiting one leaves the queue. Either way it ends up unpaired
// and stays connected.
func (m *ManagerService) Leave(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[id]
	if !ok {
		return ErrUnknownConnection
	}

	m.cancelRequeueLocked(id)
	switch conn.State {
	case StateWaiting:
		m.queue.Remove(id)
		m.recorder.NotWaiting(id)
		conn.State = StateUnpaired
	case StatePaired:
		m.teardownLocked(conn, "leave")
	}
	m.log.WithField("conn", id).Debug("left session")
	return nil
}

// Next leaves the current session and immediately searches again with the
// same profile. The partner just left is skipped.
func (m *ManagerService) Next(id string) error {
	if err := m.Leave(id); err != nil {
		return err
	}
	return m.RequestMatch(id)
}

// Kick notifies a connection why it is being removed and disconnects it.
func (m *ManagerService) Kick(id string, reason error) {
	m.mu.RLock()
	conn, ok := m.conns[id]
	var c Client
	if ok {
		c = conn.Client
	}
	m.mu.RUnlock()
	if c == nil {
		return
	}

	if reason != nil {
		m.sendError(c, reason)
	}
	m.Unregister(c)
}

// FollowBans disconnects the users named in operator ban events until events
// is closed. Other event kinds are ignored.
func (m *ManagerService) FollowBans(events <-chan models.PairEvent) {
	for evt := range events {
		if evt.Kind != models.UserBanned {
			continue
		}
		for _, id := range evt.Users {
			m.log.WithFields(logrus.Fields{"conn": id, "reason": evt.Reason}).Info("disconnecting banned user")
			m.Kick(id, ErrBanned)
		}
	}
}

// teardownLocked destroys the pair of conn. The pair is closed under its own
// lock before its history is discarded, so no relay can append afterwards.
// The other member is told and scheduled for re-queue.
func (m *ManagerService) teardownLocked(conn *Connection, reason string) {
	pair, ok := m.pairs[conn.PairID]
	conn.State = StateUnpaired
	conn.PairID = ""
	if !ok {
		return
	}

	delete(m.pairs, pair.ID)
	pair.close()
	m.History.Discard(pair.ID)
	m.recorder.PairClosed(pair, reason, time.Now().UTC())

	survivorID := pair.partnerOf(conn.ID)
	conn.lastPartner = survivorID
	if survivor, ok := m.conns[survivorID]; ok && survivor.PairID == pair.ID {
		survivor.State = StateUnpaired
		survivor.PairID = ""
		survivor.lastPartner = conn.ID
		m.send(survivor.Client, models.EventPartnerLeft, nil)
		m.scheduleRequeueLocked(survivor)
	}

	m.log.WithFields(logrus.Fields{
		"pair":   pair.ID,
		"leaver": conn.ID,
		"reason": reason,
	}).Info("pair closed")
}

// scheduleRequeueLocked puts a survivor back in the queue after RequeueDelay.
func (m *ManagerService) scheduleRequeueLocked(conn *Connection) {
	m.cancelRequeueLocked(conn.ID)
	if m.opts.RequeueDelay == 0 {
		m.matchLocked(conn)
		return
	}

	id := conn.ID
	rt := &requeueTimer{}
	rt.timer = time.AfterFunc(m.opts.RequeueDelay, func() { m.fireRequeue(id, rt) })
	m.requeue[id] = rt
}

func (m *ManagerService) fireRequeue(id string, rt *requeueTimer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Cancelled or superseded after the timer fired.
	if m.requeue[id] != rt {
		return
	}
	delete(m.requeue, id)

	conn, ok := m.conns[id]
	if !ok || conn.State != StateUnpaired || !conn.registered {
		return
	}
	m.matchLocked(conn)
}

func (m *ManagerService) cancelRequeueLocked(id string) {
	if rt, ok := m.requeue[id]; ok {
		rt.timer.Stop()
		delete(m.requeue, id)
	}
}

// PendingRequeue reports whether a re-queue is scheduled for the connection.
func (m *ManagerService) PendingRequeue(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.requeue[id]
	return ok
}
