package chathub

import (
	"container/list"
	"dilse/backend/internal/models"

	"github.com/sirupsen/logrus"
)

// MatchFilter holds the optional compatibility rules applied on top of the
// mutual gender preference.
type MatchFilter struct {
	// SameCity requires both sides to share a city.
	SameCity bool
	// MaxAgeGap caps the age difference. Zero disables the check.
	MaxAgeGap int
}

type bucketKey struct {
	gender     string
	lookingFor string
}

type waitingEntry struct {
	req models.SearchRequest
	key bucketKey
}

// WaitingQueue is the FIFO of connections waiting for a partner. Entries are
// bucketed by (gender, lookingFor) so that a lookup only walks candidates
// whose preferences already mirror the requester's.
//
// WaitingQueue is not safe for concurrent use; the ManagerService lock owns it.
type WaitingQueue struct {
	filter  MatchFilter
	buckets map[bucketKey]*list.List
	index   map[string]*list.Element
}

func NewWaitingQueue(filter MatchFilter) *WaitingQueue {
	return &WaitingQueue{
		filter:  filter,
		buckets: make(map[bucketKey]*list.List),
		index:   make(map[string]*list.Element),
	}
}

// Push appends a request to the back of its bucket. A user already waiting is
// moved to the back with the new criteria.
func (q *WaitingQueue) Push(req models.SearchRequest) {
	q.Remove(req.UserID)

	key := bucketKey{gender: req.Gender, lookingFor: req.LookingFor}
	b, ok := q.buckets[key]
	if !ok {
		b = list.New()
		q.buckets[key] = b
	}
	q.index[req.UserID] = b.PushBack(&waitingEntry{req: req, key: key})
}

// Remove drops a user from the queue. It reports whether the user was waiting.
func (q *WaitingQueue) Remove(userID string) bool {
	el, ok := q.index[userID]
	if !ok {
		return false
	}
	entry := el.Value.(*waitingEntry)
	b := q.buckets[entry.key]
	b.Remove(el)
	if b.Len() == 0 {
		delete(q.buckets, entry.key)
	}
	delete(q.index, userID)
	return true
}

// Contains reports whether the user is waiting.
func (q *WaitingQueue) Contains(userID string) bool {
	_, ok := q.index[userID]
	return ok
}

// Len returns the number of waiting users.
func (q *WaitingQueue) Len() int {
	return len(q.index)
}

// Take finds the oldest waiting candidate compatible with req, removes it
// from the queue and returns its id. The requester itself is never returned.
func (q *WaitingQueue) Take(req models.SearchRequest) (string, bool) {
	// Candidates must be looking for the requester's gender and be of the
	// gender the requester is looking for.
	b, ok := q.buckets[bucketKey{gender: req.LookingFor, lookingFor: req.Gender}]
	if !ok {
		return "", false
	}

	for el := b.Front(); el != nil; el = el.Next() {
		candidate := el.Value.(*waitingEntry).req
		if candidate.UserID == req.UserID || rematch(req, candidate) {
			continue
		}
		if !q.compatible(req, candidate) {
			continue
		}
		q.Remove(candidate.UserID)
		return candidate.UserID, true
	}
	return "", false
}

// Waiting returns the waiting user ids, oldest first within each bucket.
func (q *WaitingQueue) Waiting() []string {
	out := make([]string, 0, len(q.index))
	for _, b := range q.buckets {
		for el := b.Front(); el != nil; el = el.Next() {
			out = append(out, el.Value.(*waitingEntry).req.UserID)
		}
	}
	return out
}

// rematch reports whether two requests would pair up the partners that just
// split.
func rematch(a, b models.SearchRequest) bool {
	return (a.Avoid != "" && a.Avoid == b.UserID) || (b.Avoid != "" && b.Avoid == a.UserID)
}

func (q *WaitingQueue) compatible(a, b models.SearchRequest) bool {
	if a.LookingFor != b.Gender || b.LookingFor != a.Gender {
		return false
	}
	if q.filter.SameCity && a.City != b.City {
		return false
	}
	if q.filter.MaxAgeGap > 0 {
		gap := a.Age - b.Age
		if gap < 0 {
			gap = -gap
		}
		if gap > q.filter.MaxAgeGap {
			return false
		}
	}
	return true
}

// RequestMatch pairs a registered connection with the oldest compatible
// waiting one, or puts it in the queue. A connection that is already waiting
// is left where it is.
func (m *ManagerService) RequestMatch(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[id]
	if !ok {
		return ErrUnknownConnection
	}
	if !conn.registered {
		return ErrNotRegistered
	}
	switch conn.State {
	case StatePaired:
		return ErrAlreadyPaired
	case StateWaiting:
		return nil
	}

	m.cancelRequeueLocked(id)
	m.matchLocked(conn)
	return nil
}

// matchLocked runs one matching attempt for an unpaired, registered
// connection.
func (m *ManagerService) matchLocked(conn *Connection) {
	req := models.SearchRequestFor(conn.ID, conn.Profile)
	req.Avoid = conn.lastPartner

	partnerID, found := m.queue.Take(req)
	if found {
		if partner, ok := m.conns[partnerID]; ok && partner.State == StateWaiting {
			m.recorder.NotWaiting(partnerID)
			m.formPairLocked(partner, conn)
			return
		}
		// A queued id without a live waiting connection is stale; drop it
		// and keep looking.
		m.log.WithField("conn", partnerID).Warn("dropping stale queue entry")
		m.matchLocked(conn)
		return
	}

	m.queue.Push(req)
	conn.State = StateWaiting
	m.recorder.Waiting(conn.ID)
	m.send(conn.Client, models.EventWaiting, nil)
	m.log.WithFields(logOf(conn)).Debug("waiting for partner")
}

// formPairLocked creates a pair out of the older waiting connection and the
// requester, and tells both sides.
func (m *ManagerService) formPairLocked(waiting, requester *Connection) {
	pair := newPair(waiting, requester)
	m.pairs[pair.ID] = pair
	m.History.Open(pair.ID)

	for _, c := range []*Connection{waiting, requester} {
		c.State = StatePaired
		c.PairID = pair.ID
		c.lastPartner = ""
	}

	history := m.History.Replay(pair.ID)
	m.send(waiting.Client, models.EventPaired, models.PairedPayload{Name: requester.Profile.Name})
	m.send(waiting.Client, models.EventChatHistory, history)
	m.send(requester.Client, models.EventPaired, models.PairedPayload{Name: waiting.Profile.Name})
	m.send(requester.Client, models.EventChatHistory, history)

	m.recorder.PairOpened(pair)
	m.log.WithFields(logrus.Fields{
		"pair":  pair.ID,
		"user1": waiting.ID,
		"user2": requester.ID,
	}).Info("pair formed")
}
