package http

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/aq2208/gorder-settlement/configs"
	"github.com/aq2208/gorder-settlement/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type TokenHandler struct {
	cfg configs.Config
}

func NewTokenHandler(cfg configs.Config) *TokenHandler {
	return &TokenHandler{cfg: cfg}
}

// POST /v1/token (form)
// Accepts: client_id, client_secret
func (h *TokenHandler) IssueToken(c *gin.Context) {
	clientID := c.PostForm("client_id")
	clientSecret := c.PostForm("client_secret")
	if clientID == "" || clientSecret == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid client"})
		return
	}

	cl, ok := security.Clients[clientID]
	if !ok || !cl.Enabled || subtle.ConstantTimeCompare([]byte(clientSecret), []byte(cl.Secret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid client"})
		return
	}

	perms := cl.Perms
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":      h.cfg.Security.Issuer,   // issuer
		"aud":      h.cfg.Security.Audience, // audience
		"iat":      now.Unix(),              // issued at
		"nbf":      now.Unix(),              // not before
		"exp":      now.Add(h.ttl()).Unix(), // expire
		"clientID": clientID,
		"perms":    perms,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.cfg.Security.JWTSecret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": signed,
		"token_type":   "Bearer",
		"expires_in":   int(h.ttl().Seconds()),
	})
}

func (h *TokenHandler) ttl() time.Duration {
	if h.cfg.Security.TTL <= 0 {
		return time.Hour
	}
	return h.cfg.Security.TTL
}
