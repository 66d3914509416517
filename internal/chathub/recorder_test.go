package chathub_test

import (
	"context"
	"dilse/backend/internal/chathub"
	"dilse/backend/internal/models"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// runHub starts the hub and returns a func that stops it and waits until all
// queued storage jobs have run.
func runHub(t *testing.T, hub *chathub.ManagerService) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("hub did not stop")
		}
	}
}

func TestRecorder_PersistsPairLifecycle(t *testing.T) {
	store := new(MockStorage)
	hub := chathub.NewManagerService(store, chathub.Options{PersistHistory: true, RequeueDelay: time.Hour}, nil)
	stop := runHub(t, hub)

	store.On("AddUserToSearchQueue", "a").Return(nil).Once()
	store.On("RemoveUserFromSearchQueue", "a").Return(nil).Once()
	store.On("SaveRoom", mock.MatchedBy(func(r *models.ChatRoom) bool {
		return r.User1ID == "a" && r.User2ID == "b" && r.IsActive && r.RoomID != ""
	})).Return(nil).Once()
	store.On("PublishPairEvent", mock.MatchedBy(func(e models.PairEvent) bool {
		return e.Kind == models.PairOpened && len(e.Users) == 2
	})).Return(nil).Once()
	store.On("SaveMessage", mock.MatchedBy(func(h *models.ChatHistory) bool {
		return h.SenderID == "a" && h.SenderName == "Olena" && h.Content == "hi"
	})).Return(nil).Once()
	store.On("CloseRoom", mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil).Once()
	store.On("PublishPairEvent", mock.MatchedBy(func(e models.PairEvent) bool {
		return e.Kind == models.PairClosed && e.Reason == "disconnect"
	})).Return(nil).Once()

	a, b := newMockClient("a"), newMockClient("b")
	hub.Attach(a)
	hub.Attach(b)
	register(t, hub, "a", girlSeeksBoy("Olena"))
	register(t, hub, "b", boySeeksGirl("Taras"))
	require.NoError(t, hub.Relay("a", chathub.KindChat, []byte(`"hi"`)))
	hub.Unregister(a)

	stop()
	store.AssertExpectations(t)
}

func TestRecorder_WithoutPersistenceOnlyMirrorsAndPublishes(t *testing.T) {
	store := new(MockStorage)
	hub := chathub.NewManagerService(store, chathub.Options{RequeueDelay: time.Hour}, nil)
	stop := runHub(t, hub)

	store.On("AddUserToSearchQueue", mock.Anything).Return(nil)
	store.On("RemoveUserFromSearchQueue", mock.Anything).Return(nil)
	store.On("PublishPairEvent", mock.Anything).Return(errors.New("redis down"))

	a, b := newMockClient("a"), newMockClient("b")
	hub.Attach(a)
	hub.Attach(b)
	register(t, hub, "a", girlSeeksBoy("Olena"))
	register(t, hub, "b", boySeeksGirl("Taras"))
	require.NoError(t, hub.Relay("a", chathub.KindChat, []byte(`"hi"`)))
	require.NoError(t, hub.Leave("b"))

	stop()
	store.AssertNumberOfCalls(t, "PublishPairEvent", 2)
	store.AssertNotCalled(t, "SaveRoom", mock.Anything)
	store.AssertNotCalled(t, "SaveMessage", mock.Anything)
	store.AssertNotCalled(t, "CloseRoom", mock.Anything, mock.Anything)
}

func TestRecorder_NilIsSafe(t *testing.T) {
	var r *chathub.Recorder
	r.Waiting("a")
	r.NotWaiting("a")
	r.MessageAppended("p", models.ChatMessage{Text: "x"})
	r.PairClosed(&chathub.Pair{ID: "p"}, "leave", time.Now())
}
