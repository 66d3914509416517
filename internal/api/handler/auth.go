package handler

import (
	"dilse/backend/internal/config"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	jwt "github.com/golang-jwt/jwt/v5"
)

var errInvalidToken = errors.New("invalid token")

// generateJWT генерує JWT з анонімним ID
func generateJWT(secret string, ttl time.Duration, anonID string) (string, error) {
	claims := jwt.MapClaims{
		"anon_id": anonID,
		"exp":     time.Now().Add(ttl).Unix(),
		"iss":     config.JWTIssuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// validateAndGetAnonID checks the signature, expiry and issuer of a session
// token and returns the anonymous id it carries.
func (h *Handler) validateAndGetAnonID(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return []byte(h.Config.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(config.JWTIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return "", errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errInvalidToken
	}
	anonID, ok := claims["anon_id"].(string)
	if !ok || anonID == "" {
		return "", errInvalidToken
	}
	return anonID, nil
}

// tokenFromRequest reads the session token from ?token= or a Bearer header.
// Browsers cannot set headers on WebSocket requests, hence the query form.
func tokenFromRequest(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(authHeader[len("Bearer "):])
	}
	return ""
}

// GetSession створює анонімну сесію та повертає JWT
func (h *Handler) GetSession(c *gin.Context) {
	anonID := uuid.New().String()

	token, err := generateJWT(h.Config.JWTSecret, h.Config.JWTTTL, anonID)
	if err != nil {
		h.log.WithError(err).Error("failed to sign session token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessionId": anonID, "token": token})
}
