package storage

import (
	"context"
	"dilse/backend/internal/config"
	"dilse/backend/internal/models"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	searchQueueKey    = "search_queue"
	banKeyPrefix      = "ban:"
	banLevelKeyPrefix = "ban_level:"
	// PairEventsChannel carries msgpack-encoded models.PairEvent values.
	PairEventsChannel = "dilse:pairs"
	// banLevelTTL is how long a previous ban keeps counting toward escalation.
	banLevelTTL = 30 * 24 * time.Hour
)

// ErrRoomNotFound is returned when a room id has no archived record.
var ErrRoomNotFound = errors.New("chat room not found")

type Storage interface {
	SaveRoom(room *models.ChatRoom) error
	CloseRoom(roomID string, endedAt time.Time) error
	CloseStaleRooms() (int64, error)
	GetRoomByID(roomID string) (*models.ChatRoom, error)
	GetRecentRooms(limit int) ([]models.ChatRoom, error)

	SaveMessage(msg *models.ChatHistory) error
	GetChatHistory(roomID string) ([]models.ChatHistory, error)

	SaveComplaint(complaint *models.Complaint) error
	HasComplaint(reporterID, targetID, roomID string) (bool, error)
	TallyComplaints(targetID, reporterID string, since time.Time) (ComplaintTally, error)

	IsUserBanned(anonID string) (bool, error)
	BanUser(anonID string, reason string) (time.Duration, error)
	UnbanUser(anonID string) error

	SaveEmotion(post *models.EmotionPost) error
	GetRecentEmotions(limit int) ([]models.EmotionPost, error)

	PublishPairEvent(evt models.PairEvent) error

	AddUserToSearchQueue(userID string) error
	RemoveUserFromSearchQueue(userID string) error
	GetSearchingUsers() ([]string, error)
	ClearSearchQueue() error
}

type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// Migrate creates or updates every table the service writes to.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(
		&models.ChatRoom{},
		&models.ChatHistory{},
		&models.Complaint{},
		&models.EmotionPost{},
	)
}

// SaveRoom stores a newly formed pair.
func (s *Service) SaveRoom(room *models.ChatRoom) error {
	return s.DB.Save(room).Error
}

// CloseRoom marks a pair as torn down.
func (s *Service) CloseRoom(roomID string, endedAt time.Time) error {
	return s.DB.Model(&models.ChatRoom{}).
		Where("room_id = ?", roomID).
		Updates(map[string]interface{}{
			"is_active": false,
			"ended_at":  endedAt,
		}).Error
}

// CloseStaleRooms closes rooms left active by a previous process. Pairs live
// in memory, so none of them survive a restart.
func (s *Service) CloseStaleRooms() (int64, error) {
	result := s.DB.Model(&models.ChatRoom{}).
		Where("is_active = ?", true).
		Updates(map[string]interface{}{
			"is_active": false,
			"ended_at":  gorm.Expr("NOW()"),
		})
	return result.RowsAffected, result.Error
}

func (s *Service) GetRoomByID(roomID string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := s.DB.Where("room_id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// GetRecentRooms returns the most recently started rooms first.
func (s *Service) GetRecentRooms(limit int) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	err := s.DB.Order("started_at desc").Limit(limit).Find(&rooms).Error
	return rooms, err
}

// SaveMessage archives one chat message.
func (s *Service) SaveMessage(msg *models.ChatHistory) error {
	return s.DB.Create(msg).Error
}

// GetChatHistory returns the archived messages of a room in send order.
func (s *Service) GetChatHistory(roomID string) ([]models.ChatHistory, error) {
	var history []models.ChatHistory
	err := s.DB.Where("room_id = ?", roomID).Order("created_at asc, id asc").Find(&history).Error
	if err != nil {
		return nil, err
	}
	return history, nil
}

func (s *Service) SaveComplaint(complaint *models.Complaint) error {
	if complaint.Status == "" {
		complaint.Status = "new"
	}
	return s.DB.Create(complaint).Error
}

// HasComplaint reports whether the reporter already filed a complaint against
// the target in the given room.
func (s *Service) HasComplaint(reporterID, targetID, roomID string) (bool, error) {
	var n int64
	err := s.DB.Model(&models.Complaint{}).
		Where("reporter_id = ? AND target_id = ? AND room_id = ?", reporterID, targetID, roomID).
		Count(&n).Error
	return n > 0, err
}

// ComplaintTally summarizes the complaints filed against a user in a window.
type ComplaintTally struct {
	Weight    int64
	Reporters int64
	// ByReporter is true when the reporter being checked is among Reporters.
	ByReporter bool
}

// TallyComplaints sums the weight and counts the distinct reporters of the
// complaints filed against targetID since the given time.
func (s *Service) TallyComplaints(targetID, reporterID string, since time.Time) (ComplaintTally, error) {
	var t ComplaintTally
	err := s.DB.Model(&models.Complaint{}).
		Select("COALESCE(SUM(weight), 0) AS weight, COUNT(DISTINCT reporter_id) AS reporters, COALESCE(BOOL_OR(reporter_id = ?), false) AS by_reporter", reporterID).
		Where("target_id = ? AND created_at >= ?", targetID, since).
		Scan(&t).Error
	return t, err
}

// IsUserBanned checks the ban key in Redis.
func (s *Service) IsUserBanned(anonID string) (bool, error) {
	status, err := s.Redis.Get(s.Ctx, banKeyPrefix+anonID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return status != "", nil
}

// BanUser bans a user for a duration that escalates with each ban received in
// the last 30 days. It returns the applied duration.
func (s *Service) BanUser(anonID string, reason string) (time.Duration, error) {
	levelKey := banLevelKeyPrefix + anonID
	level, err := s.Redis.Incr(s.Ctx, levelKey).Result()
	if err != nil {
		return 0, err
	}
	if err := s.Redis.Expire(s.Ctx, levelKey, banLevelTTL).Err(); err != nil {
		return 0, err
	}

	duration := config.BanDuration(int(level))
	if reason == "" {
		reason = "banned"
	}
	if err := s.Redis.Set(s.Ctx, banKeyPrefix+anonID, reason, duration).Err(); err != nil {
		return 0, err
	}
	return duration, nil
}

// UnbanUser lifts an active ban. The escalation level is kept.
func (s *Service) UnbanUser(anonID string) error {
	return s.Redis.Del(s.Ctx, banKeyPrefix+anonID).Err()
}

func (s *Service) SaveEmotion(post *models.EmotionPost) error {
	return s.DB.Create(post).Error
}

// GetRecentEmotions returns the newest posts first.
func (s *Service) GetRecentEmotions(limit int) ([]models.EmotionPost, error) {
	var posts []models.EmotionPost
	err := s.DB.Order("created_at desc").Limit(limit).Find(&posts).Error
	return posts, err
}

// PublishPairEvent publishes a pair lifecycle event to Redis Pub/Sub.
func (s *Service) PublishPairEvent(evt models.PairEvent) error {
	payload, err := evt.Encode()
	if err != nil {
		return fmt.Errorf("encode pair event: %w", err)
	}
	return s.Redis.Publish(s.Ctx, PairEventsChannel, payload).Err()
}

// SubscribePairEvents streams decoded pair events until ctx is done.
// Undecodable payloads are skipped.
func (s *Service) SubscribePairEvents(ctx context.Context) <-chan models.PairEvent {
	out := make(chan models.PairEvent)
	pubsub := s.Redis.Subscribe(ctx, PairEventsChannel)

	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				evt, err := models.DecodePairEvent([]byte(msg.Payload))
				if err != nil {
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// AddUserToSearchQueue adds a user to the waiting-queue mirror in Redis.
func (s *Service) AddUserToSearchQueue(userID string) error {
	return s.Redis.SAdd(s.Ctx, searchQueueKey, userID).Err()
}

// RemoveUserFromSearchQueue removes a user from the waiting-queue mirror.
func (s *Service) RemoveUserFromSearchQueue(userID string) error {
	return s.Redis.SRem(s.Ctx, searchQueueKey, userID).Err()
}

// GetSearchingUsers returns every user currently mirrored as waiting.
func (s *Service) GetSearchingUsers() ([]string, error) {
	return s.Redis.SMembers(s.Ctx, searchQueueKey).Result()
}

// ClearSearchQueue drops the mirror; used at startup.
func (s *Service) ClearSearchQueue() error {
	return s.Redis.Del(s.Ctx, searchQueueKey).Err()
}

// BanLevel reports how many bans a user received in the escalation window.
func (s *Service) BanLevel(anonID string) (int, error) {
	raw, err := s.Redis.Get(s.Ctx, banLevelKeyPrefix+anonID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(raw)
}
