package chathub

import (
	"context"
	"dilse/backend/internal/logging"
	"dilse/backend/internal/models"
	"dilse/backend/internal/storage"
	"time"

	"github.com/sirupsen/logrus"
)

const recorderBuffer = 256

type recordJob struct {
	name string
	run  func(storage.Storage) error
}

// Recorder applies storage side effects of hub operations in the background,
// so that pairing and relay never wait on Postgres or Redis. A nil Recorder
// or one without storage silently does nothing.
type Recorder struct {
	storage        storage.Storage
	persistHistory bool
	jobs           chan recordJob
	log            logrus.FieldLogger
}

func NewRecorder(s storage.Storage, persistHistory bool, log logrus.FieldLogger) *Recorder {
	if log == nil {
		log = logging.Discard()
	}
	return &Recorder{
		storage:        s,
		persistHistory: persistHistory,
		jobs:           make(chan recordJob, recorderBuffer),
		log:            log,
	}
}

// Run executes queued jobs until ctx is done, then drains what is left.
func (r *Recorder) Run(ctx context.Context) {
	if r == nil || r.storage == nil {
		<-ctx.Done()
		return
	}

	for {
		select {
		case job := <-r.jobs:
			r.exec(job)
		case <-ctx.Done():
			for {
				select {
				case job := <-r.jobs:
					r.exec(job)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) exec(job recordJob) {
	if err := job.run(r.storage); err != nil {
		r.log.WithError(err).WithField("job", job.name).Warn("storage side effect failed")
	}
}

func (r *Recorder) enqueue(name string, run func(storage.Storage) error) {
	if r == nil || r.storage == nil {
		return
	}
	select {
	case r.jobs <- recordJob{name: name, run: run}:
	default:
		r.log.WithField("job", name).Warn("recorder queue full, dropping job")
	}
}

// PairOpened archives the new room and announces it.
func (r *Recorder) PairOpened(p *Pair) {
	users := []string{p.Users[0], p.Users[1]}
	if r != nil && r.persistHistory {
		room := &models.ChatRoom{
			RoomID:    p.ID,
			User1ID:   users[0],
			User2ID:   users[1],
			IsActive:  true,
			StartedAt: p.CreatedAt,
		}
		r.enqueue("save_room", func(s storage.Storage) error { return s.SaveRoom(room) })
	}
	evt := models.PairEvent{Kind: models.PairOpened, RoomID: p.ID, Users: users, At: p.CreatedAt}
	r.enqueue("publish_opened", func(s storage.Storage) error { return s.PublishPairEvent(evt) })
}

// PairClosed marks the room closed and announces the teardown.
func (r *Recorder) PairClosed(p *Pair, reason string, at time.Time) {
	if r != nil && r.persistHistory {
		r.enqueue("close_room", func(s storage.Storage) error { return s.CloseRoom(p.ID, at) })
	}
	evt := models.PairEvent{
		Kind:   models.PairClosed,
		RoomID: p.ID,
		Users:  []string{p.Users[0], p.Users[1]},
		Reason: reason,
		At:     at,
	}
	r.enqueue("publish_closed", func(s storage.Storage) error { return s.PublishPairEvent(evt) })
}

// MessageAppended archives a chat message when history persistence is on.
func (r *Recorder) MessageAppended(pairID string, msg models.ChatMessage) {
	if r == nil || !r.persistHistory {
		return
	}
	row := models.ChatHistoryFrom(pairID, msg)
	r.enqueue("save_message", func(s storage.Storage) error { return s.SaveMessage(row) })
}

// Waiting mirrors a user entering the waiting queue.
func (r *Recorder) Waiting(userID string) {
	r.enqueue("queue_add", func(s storage.Storage) error { return s.AddUserToSearchQueue(userID) })
}

// NotWaiting mirrors a user leaving the waiting queue.
func (r *Recorder) NotWaiting(userID string) {
	r.enqueue("queue_remove", func(s storage.Storage) error { return s.RemoveUserFromSearchQueue(userID) })
}
