package models

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// EmotionPost is an anonymous note shared on the emotion wall.
type EmotionPost struct {
	ID        string         `gorm:"primaryKey" json:"id"`
	SessionID string         `gorm:"index" json:"-"`
	Message   string         `gorm:"type:text;not null" json:"message"`
	Tags      pq.StringArray `gorm:"type:text[]" json:"tags"`
	CreatedAt time.Time      `gorm:"index" json:"createdAt"`
}

// BeforeCreate is a GORM hook that assigns a UUID when the post has none.
func (p *EmotionPost) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return
}

// ExtractTags returns the distinct lowercased #hashtags of a message in
// order of first appearance.
func ExtractTags(message string) pq.StringArray {
	tags := pq.StringArray{}
	seen := make(map[string]bool)
	for _, word := range strings.Fields(message) {
		if !strings.HasPrefix(word, "#") {
			continue
		}
		tag := strings.ToLower(strings.TrimFunc(word[1:], func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}
