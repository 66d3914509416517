package handler

import (
	"dilse/backend/internal/chathub"
	"dilse/backend/internal/config"
	"dilse/backend/internal/logging"
	"dilse/backend/internal/models"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// EmotionStore persists emotion wall posts.
type EmotionStore interface {
	SaveEmotion(post *models.EmotionPost) error
	GetRecentEmotions(limit int) ([]models.EmotionPost, error)
}

// BanChecker tells whether a session is banned.
type BanChecker interface {
	IsUserBanned(anonID string) (bool, error)
}

// Handler містить посилання на ChatHub і сховища
type Handler struct {
	Hub      *chathub.ManagerService
	Emotions EmotionStore
	Bans     BanChecker
	Config   *config.Config

	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

func NewHandler(hub *chathub.ManagerService, emotions EmotionStore, bans BanChecker, cfg *config.Config, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logging.Discard()
	}
	h := &Handler{
		Hub:      hub,
		Emotions: emotions,
		Bans:     bans,
		Config:   cfg,
		log:      log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return h
}

// RegisterRoutes mounts every endpoint on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/session", h.GetSession)
	r.GET("/ws", h.ServeWebSocket)
	r.GET("/ice-servers", h.GetICEServers)
	r.POST("/post", h.CreatePost)
	r.GET("/posts", h.ListPosts)
	r.GET("/health", h.Health)
	r.GET("/stats", h.Stats)
}

// GetICEServers returns the STUN/TURN servers browsers should use.
func (h *Handler) GetICEServers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.Config.ICEServers})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Stats reports live connection and pairing counts.
func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.Hub.Stats())
}
