package models

import "time"

// ChatRoom is the archived record of a pair between two connections.
// It is written when a pair forms and closed when the pair is torn down.
type ChatRoom struct {
	// RoomID is the pair identifier (UUID).
	RoomID string `gorm:"primaryKey"`
	// User1ID is the connection that requested the match.
	User1ID string `gorm:"index"`
	// User2ID is the waiting connection it was matched with.
	User2ID string `gorm:"index"`
	// IsActive is true until the pair is torn down.
	IsActive bool `gorm:"index"`
	// StartedAt is when the pair was formed.
	StartedAt time.Time
	// EndedAt is when the pair was torn down.
	EndedAt *time.Time
}
