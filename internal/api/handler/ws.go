package handler

import (
	"dilse/backend/internal/chathub"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// originChecker allows the listed origins. An empty list allows any origin.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.ToLower(o), "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return set[strings.ToLower(u.Scheme+"://"+u.Host)]
	}
}

// ServeWebSocket оновлює HTTP-з'єднання до WebSocket
func (h *Handler) ServeWebSocket(c *gin.Context) {
	anonID := uuid.New().String()
	if token := tokenFromRequest(c); token != "" {
		id, err := h.validateAndGetAnonID(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
			return
		}
		anonID = id
	}

	if h.Bans != nil {
		banned, err := h.Bans.IsUserBanned(anonID)
		if err != nil {
			h.log.WithError(err).WithField("conn", anonID).Error("ban check failed")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Try again later"})
			return
		}
		if banned {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Session is banned"})
			return
		}
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	limiter := rate.NewLimiter(rate.Limit(h.Config.ChatRate), h.Config.ChatBurst)
	client := chathub.NewWebSocketClient(anonID, conn, h.Hub, limiter)

	// Attach before the pumps start so the first frame finds the connection.
	h.Hub.Attach(client)
	client.Run()
}
