package chathub_test

import (
	"dilse/backend/internal/models"
	"dilse/backend/internal/storage"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var _ storage.Storage = (*MockStorage)(nil)

// MockStorage is a testify mock of storage.Storage.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) SaveRoom(room *models.ChatRoom) error {
	return m.Called(room).Error(0)
}

func (m *MockStorage) CloseRoom(roomID string, endedAt time.Time) error {
	return m.Called(roomID, endedAt).Error(0)
}

func (m *MockStorage) CloseStaleRooms() (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) GetRoomByID(roomID string) (*models.ChatRoom, error) {
	args := m.Called(roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatRoom), args.Error(1)
}

func (m *MockStorage) GetRecentRooms(limit int) ([]models.ChatRoom, error) {
	args := m.Called(limit)
	return args.Get(0).([]models.ChatRoom), args.Error(1)
}

func (m *MockStorage) SaveMessage(msg *models.ChatHistory) error {
	return m.Called(msg).Error(0)
}

func (m *MockStorage) GetChatHistory(roomID string) ([]models.ChatHistory, error) {
	args := m.Called(roomID)
	return args.Get(0).([]models.ChatHistory), args.Error(1)
}

func (m *MockStorage) SaveComplaint(complaint *models.Complaint) error {
	return m.Called(complaint).Error(0)
}

func (m *MockStorage) HasComplaint(reporterID, targetID, roomID string) (bool, error) {
	args := m.Called(reporterID, targetID, roomID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) TallyComplaints(targetID, reporterID string, since time.Time) (storage.ComplaintTally, error) {
	args := m.Called(targetID, reporterID, since)
	return args.Get(0).(storage.ComplaintTally), args.Error(1)
}

func (m *MockStorage) IsUserBanned(anonID string) (bool, error) {
	args := m.Called(anonID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) BanUser(anonID string, reason string) (time.Duration, error) {
	args := m.Called(anonID, reason)
	return args.Get(0).(time.Duration), args.Error(1)
}

func (m *MockStorage) UnbanUser(anonID string) error {
	return m.Called(anonID).Error(0)
}

func (m *MockStorage) SaveEmotion(post *models.EmotionPost) error {
	return m.Called(post).Error(0)
}

func (m *MockStorage) GetRecentEmotions(limit int) ([]models.EmotionPost, error) {
	args := m.Called(limit)
	return args.Get(0).([]models.EmotionPost), args.Error(1)
}

func (m *MockStorage) PublishPairEvent(evt models.PairEvent) error {
	return m.Called(evt).Error(0)
}

func (m *MockStorage) AddUserToSearchQueue(userID string) error {
	return m.Called(userID).Error(0)
}

func (m *MockStorage) RemoveUserFromSearchQueue(userID string) error {
	return m.Called(userID).Error(0)
}

func (m *MockStorage) GetSearchingUsers() ([]string, error) {
	args := m.Called()
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStorage) ClearSearchQueue() error {
	return m.Called().Error(0)
}

// mockClient records every envelope the hub delivers to it.
type mockClient struct {
	UserID      string
	RecvChannel chan models.Envelope

	mu     sync.Mutex
	closed bool
	full   bool
}

func newMockClient(userID string) *mockClient {
	return &mockClient{
		UserID:      userID,
		RecvChannel: make(chan models.Envelope, 100),
	}
}

func (c *mockClient) GetUserID() string { return c.UserID }

func (c *mockClient) Deliver(env models.Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.full {
		return false
	}
	select {
	case c.RecvChannel <- env:
		return true
	default:
		return false
	}
}

func (c *mockClient) Run() {}

func (c *mockClient) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *mockClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// next waits for the next delivered envelope.
func (c *mockClient) next(t *testing.T) models.Envelope {
	t.Helper()
	select {
	case env := <-c.RecvChannel:
		return env
	case <-time.After(time.Second):
		t.Fatalf("client %s received nothing", c.UserID)
		return models.Envelope{}
	}
}

// expect waits for the next envelope and checks its event name.
func (c *mockClient) expect(t *testing.T, event string) models.Envelope {
	t.Helper()
	env := c.next(t)
	require.Equal(t, event, env.Event, "client %s: unexpected event (data %s)", c.UserID, string(env.Data))
	return env
}

// drain discards everything delivered so far.
func (c *mockClient) drain() {
	for {
		select {
		case <-c.RecvChannel:
		default:
			return
		}
	}
}

// assertSilent checks that nothing was delivered.
func (c *mockClient) assertSilent(t *testing.T) {
	t.Helper()
	select {
	case env := <-c.RecvChannel:
		t.Fatalf("client %s unexpectedly received %q", c.UserID, env.Event)
	default:
	}
}

func decode[T any](t *testing.T, env models.Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}
