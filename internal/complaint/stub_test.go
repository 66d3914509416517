package complaint

import (
	"dilse/backend/internal/models"
	"dilse/backend/internal/storage"
	"time"
)

// storageStub satisfies storage.Storage for methods the complaint service
// never calls.
type storageStub struct{}

var _ storage.Storage = (*MockStorage)(nil)

func (storageStub) SaveRoom(*models.ChatRoom) error                     { panic("unexpected call") }
func (storageStub) CloseRoom(string, time.Time) error                   { panic("unexpected call") }
func (storageStub) CloseStaleRooms() (int64, error)                     { panic("unexpected call") }
func (storageStub) GetRoomByID(string) (*models.ChatRoom, error)        { panic("unexpected call") }
func (storageStub) GetRecentRooms(int) ([]models.ChatRoom, error)       { panic("unexpected call") }
func (storageStub) SaveMessage(*models.ChatHistory) error               { panic("unexpected call") }
func (storageStub) GetChatHistory(string) ([]models.ChatHistory, error) { panic("unexpected call") }
func (storageStub) UnbanUser(string) error                              { panic("unexpected call") }
func (storageStub) SaveEmotion(*models.EmotionPost) error               { panic("unexpected call") }
func (storageStub) GetRecentEmotions(int) ([]models.EmotionPost, error) { panic("unexpected call") }
func (storageStub) PublishPairEvent(models.PairEvent) error             { panic("unexpected call") }
func (storageStub) AddUserToSearchQueue(string) error                   { panic("unexpected call") }
func (storageStub) RemoveUserFromSearchQueue(string) error              { panic("unexpected call") }
func (storageStub) GetSearchingUsers() ([]string, error)                { panic("unexpected call") }
func (storageStub) ClearSearchQueue() error                             { panic("unexpected call") }
