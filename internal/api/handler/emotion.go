package handler

import (
	"dilse/backend/internal/config"
	"dilse/backend/internal/models"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type createPostRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

// CreatePost adds an anonymous post to the emotion wall.
func (h *Handler) CreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionId and message are required"})
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is empty"})
		return
	}
	if len([]rune(message)) > config.MaxPostLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is too long"})
		return
	}

	post := &models.EmotionPost{
		SessionID: req.SessionID,
		Message:   message,
		Tags:      models.ExtractTags(message),
	}
	if err := h.Emotions.SaveEmotion(post); err != nil {
		h.log.WithError(err).Error("failed to save emotion post")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save post"})
		return
	}

	c.JSON(http.StatusCreated, post)
}

// ListPosts returns the newest posts, ?limit= capped at MaxPostsLimit.
func (h *Handler) ListPosts(c *gin.Context) {
	limit := config.DefaultPostsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > config.MaxPostsLimit {
		limit = config.MaxPostsLimit
	}

	posts, err := h.Emotions.GetRecentEmotions(limit)
	if err != nil {
		h.log.WithError(err).Error("failed to load emotion posts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load posts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}
