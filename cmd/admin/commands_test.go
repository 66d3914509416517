package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"dilse/backend/internal/models"
	"dilse/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	banned  map[string]bool
	levels  map[string]int
	rooms   []models.ChatRoom
	history map[string][]models.ChatHistory
	queue   []string
	events  []models.PairEvent
	reason  string

	published  []models.PairEvent
	publishErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		banned:  map[string]bool{},
		levels:  map[string]int{},
		history: map[string][]models.ChatHistory{},
	}
}

func (f *fakeStore) BanUser(anonID, reason string) (time.Duration, error) {
	f.banned[anonID] = true
	f.levels[anonID]++
	f.reason = reason
	return 30 * time.Minute, nil
}

func (f *fakeStore) PublishPairEvent(evt models.PairEvent) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, evt)
	return nil
}

func (f *fakeStore) UnbanUser(anonID string) error {
	delete(f.banned, anonID)
	return nil
}

func (f *fakeStore) BanLevel(anonID string) (int, error)      { return f.levels[anonID], nil }
func (f *fakeStore) IsUserBanned(anonID string) (bool, error) { return f.banned[anonID], nil }

func (f *fakeStore) GetRecentRooms(limit int) ([]models.ChatRoom, error) {
	if limit < len(f.rooms) {
		return f.rooms[:limit], nil
	}
	return f.rooms, nil
}

func (f *fakeStore) GetRoomByID(roomID string) (*models.ChatRoom, error) {
	for i := range f.rooms {
		if f.rooms[i].RoomID == roomID {
			return &f.rooms[i], nil
		}
	}
	return nil, storage.ErrRoomNotFound
}

func (f *fakeStore) GetChatHistory(roomID string) ([]models.ChatHistory, error) {
	return f.history[roomID], nil
}

func (f *fakeStore) GetSearchingUsers() ([]string, error) { return f.queue, nil }

func (f *fakeStore) SubscribePairEvents(ctx context.Context) <-chan models.PairEvent {
	ch := make(chan models.PairEvent, len(f.events))
	for _, e := range f.events {
		ch <- e
	}
	close(ch)
	return ch
}

func runAdmin(t *testing.T, f *fakeStore, args ...string) (string, error) {
	t.Helper()
	openStore = func() (adminStore, func(), error) { return f, func() {}, nil }
	t.Cleanup(func() { openStore = openStorage })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestBan_JoinsReasonAndReportsLevel(t *testing.T) {
	f := newFakeStore()

	out, err := runAdmin(t, f, "ban", "u1", "spam", "links")

	require.NoError(t, err)
	assert.True(t, f.banned["u1"])
	assert.Equal(t, "spam links", f.reason)
	assert.Contains(t, out, "User u1 banned for 30m0s (level 1).")

	require.Len(t, f.published, 1)
	assert.Equal(t, models.UserBanned, f.published[0].Kind)
	assert.Equal(t, []string{"u1"}, f.published[0].Users)
	assert.Equal(t, "spam links", f.published[0].Reason)
}

func TestBan_PublishFailureStillBans(t *testing.T) {
	f := newFakeStore()
	f.publishErr = errors.New("redis down")

	out, err := runAdmin(t, f, "ban", "u1")

	require.NoError(t, err)
	assert.True(t, f.banned["u1"])
	assert.Contains(t, out, "stays connected")
}

func TestBan_RequiresID(t *testing.T) {
	_, err := runAdmin(t, newFakeStore(), "ban")
	assert.Error(t, err)
}

func TestUnban(t *testing.T) {
	f := newFakeStore()
	f.banned["u1"] = true

	out, err := runAdmin(t, f, "unban", "u1")
	require.NoError(t, err)
	assert.False(t, f.banned["u1"])
	assert.Contains(t, out, "has been unbanned")

	out, err = runAdmin(t, f, "unban", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "is not banned")
}

func TestPairs_ListsRooms(t *testing.T) {
	ended := time.Date(2024, 5, 1, 12, 5, 0, 0, time.UTC)
	f := newFakeStore()
	f.rooms = []models.ChatRoom{
		{RoomID: "room-a", User1ID: "u1", User2ID: "u2", IsActive: true, StartedAt: ended.Add(-time.Hour)},
		{RoomID: "room-b", User1ID: "u3", User2ID: "u4", StartedAt: ended.Add(-time.Minute), EndedAt: &ended},
	}

	out, err := runAdmin(t, f, "pairs", "--limit", "5")

	require.NoError(t, err)
	assert.Contains(t, out, "room-a")
	assert.Contains(t, out, "room-b")
	assert.Contains(t, out, "2024-05-01 12:05:00")
}

func TestPairs_RejectsNonPositiveLimit(t *testing.T) {
	_, err := runAdmin(t, newFakeStore(), "pairs", "--limit", "0")
	assert.Error(t, err)
}

func TestHistory(t *testing.T) {
	f := newFakeStore()
	f.rooms = []models.ChatRoom{{RoomID: "room-a", User1ID: "u1", User2ID: "u2"}}
	msg := models.ChatHistory{RoomID: "room-a", SenderID: "u1", SenderName: "Alice", Content: "hi there"}
	f.history["room-a"] = []models.ChatHistory{msg}

	out, err := runAdmin(t, f, "history", "room-a")
	require.NoError(t, err)
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "hi there")

	_, err = runAdmin(t, f, "history", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestQueue(t *testing.T) {
	f := newFakeStore()

	out, err := runAdmin(t, f, "queue")
	require.NoError(t, err)
	assert.Contains(t, out, "Nobody is waiting.")

	f.queue = []string{"u7"}
	out, err = runAdmin(t, f, "queue")
	require.NoError(t, err)
	assert.Contains(t, out, "u7")
}

func TestWatch_PrintsEventsUntilStreamEnds(t *testing.T) {
	f := newFakeStore()
	f.events = []models.PairEvent{
		{Kind: models.PairOpened, RoomID: "room-a", Users: []string{"u1", "u2"}, At: time.Now()},
		{Kind: models.PairClosed, RoomID: "room-a", Users: []string{"u1", "u2"}, Reason: "leave", At: time.Now()},
	}

	out, err := runAdmin(t, f, "watch")

	require.NoError(t, err)
	assert.Contains(t, out, "opened")
	assert.Contains(t, out, "closed")
	assert.Contains(t, out, "u1, u2")
}

func TestOpenStoreFailure(t *testing.T) {
	openStore = func() (adminStore, func(), error) { return nil, nil, errors.New("no db") }
	t.Cleanup(func() { openStore = openStorage })
	rootCmd.SetArgs([]string{"queue"})

	err := rootCmd.Execute()

	assert.EqualError(t, err, "no db")
}
