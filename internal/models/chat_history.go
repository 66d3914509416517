package models

import "gorm.io/gorm"

// ChatHistory is an archived chat message in PostgreSQL.
// The embedded gorm.Model provides ID and CreatedAt, which order the archive.
type ChatHistory struct {
	gorm.Model

	// RoomID is the pair the message was sent in.
	RoomID string `gorm:"type:uuid;not null;index:idx_room_msg"`
	// SenderID is the connection id of the author.
	SenderID string `gorm:"type:text;not null;index:idx_room_msg"`
	// SenderName is the display name the author used.
	SenderName string `gorm:"type:text"`
	// Content is the message text.
	Content string `gorm:"type:text;not null"`
}

// ChatHistoryFrom converts an in-memory chat message into its archive row.
func ChatHistoryFrom(roomID string, msg ChatMessage) *ChatHistory {
	h := &ChatHistory{
		RoomID:     roomID,
		SenderID:   msg.SenderID,
		SenderName: msg.From,
		Content:    msg.Text,
	}
	h.CreatedAt = msg.Timestamp
	return h
}
