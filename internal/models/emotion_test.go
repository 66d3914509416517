package models_test

import (
	"dilse/backend/internal/models"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

// TestEmotionPostBeforeCreate_GeneratesUUID verifies that the BeforeCreate hook generates a valid UUID.
func TestEmotionPostBeforeCreate_GeneratesUUID(t *testing.T) {
	// Arrange
	post := &models.EmotionPost{SessionID: "s-1", Message: "feeling #blue today"}
	assert.Empty(t, post.ID, "ID should be empty before BeforeCreate")

	// Act
	err := post.BeforeCreate(nil) // nil *gorm.DB is acceptable for this hook

	// Assert
	assert.NoError(t, err)
	parsed, parseErr := uuid.Parse(post.ID)
	assert.NoError(t, parseErr, "ID must be a valid UUID string")
	assert.NotEqual(t, uuid.Nil, parsed)
}

// TestEmotionPostBeforeCreate_PreservesExistingID verifies that the hook doesn't overwrite an existing ID.
func TestEmotionPostBeforeCreate_PreservesExistingID(t *testing.T) {
	existingID := uuid.New().String()
	post := &models.EmotionPost{ID: existingID, Message: "hello"}

	err := post.BeforeCreate(nil)

	assert.NoError(t, err)
	assert.Equal(t, existingID, post.ID)
}

// TestEmotionPostStructTags catches accidental tag removal during refactoring.
func TestEmotionPostStructTags(t *testing.T) {
	postType := reflect.TypeOf(models.EmotionPost{})

	idField, found := postType.FieldByName("ID")
	assert.True(t, found)
	assert.Contains(t, idField.Tag.Get("gorm"), "primaryKey")

	tagsField, found := postType.FieldByName("Tags")
	assert.True(t, found)
	assert.Contains(t, tagsField.Tag.Get("gorm"), "type:text[]", "Tags should use PostgreSQL array type")

	sessionField, found := postType.FieldByName("SessionID")
	assert.True(t, found)
	assert.Equal(t, "-", sessionField.Tag.Get("json"), "session id must never be exposed")
}

func TestExtractTags(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    pq.StringArray
	}{
		{name: "no tags", message: "just a quiet day", want: pq.StringArray{}},
		{name: "single tag", message: "missing home #Homesick", want: pq.StringArray{"homesick"}},
		{name: "punctuation trimmed", message: "#happy! and #calm.", want: pq.StringArray{"happy", "calm"}},
		{name: "duplicates collapsed", message: "#love #LOVE #love", want: pq.StringArray{"love"}},
		{name: "bare hash ignored", message: "# alone", want: pq.StringArray{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, models.ExtractTags(tt.message))
		})
	}
}
