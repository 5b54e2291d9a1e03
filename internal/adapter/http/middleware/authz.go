package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/aq2208/gorder-settlement/configs"
)

// ClientIDKey is where Require leaves the authenticated client id.
const ClientIDKey = "client_id"

type Authz struct {
	cfg    configs.Config
	parser *jwt.Parser
}

func NewAuthz(cfg configs.Config) *Authz {
	return &Authz{
		cfg: cfg,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(cfg.Security.Issuer),
			jwt.WithAudience(cfg.Security.Audience),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second), // small clock skew
		),
	}
}

// Require checks the bearer token and that it carries every permission in
// requiredPerms.
func (a *Authz) Require(requiredPerms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			unauth(c, "invalid_request", "missing bearer token")
			return
		}

		claims := jwt.MapClaims{}
		_, err := a.parser.ParseWithClaims(strings.TrimPrefix(auth, "Bearer "), claims, func(*jwt.Token) (any, error) {
			return []byte(a.cfg.Security.JWTSecret), nil
		})
		if err != nil {
			unauth(c, "invalid_token", "invalid jwt")
			return
		}

		if id, _ := claims["clientID"].(string); id != "" {
			c.Set(ClientIDKey, id)
		}
		if missing := missingPerms(extractPerms(claims), requiredPerms); len(missing) > 0 {
			forbidden(c, "insufficient_scope", "missing "+strings.Join(missing, ","))
			return
		}

		c.Next()
	}
}

func extractPerms(claims jwt.MapClaims) map[string]struct{} {
	out := map[string]struct{}{}
	if arr, ok := claims["perms"].([]any); ok {
		for _, v := range arr {
			if s, ok := v.(string); ok && s != "" {
				out[s] = struct{}{}
			}
		}
	}
	return out
}

func missingPerms(have map[string]struct{}, req []string) []string {
	var out []string
	for _, r := range req {
		if _, ok := have[r]; !ok {
			out = append(out, r)
		}
	}
	return out
}

func unauth(c *gin.Context, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": code, "error_description": desc})
}

func forbidden(c *gin.Context, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": code, "error_description": desc})
}
