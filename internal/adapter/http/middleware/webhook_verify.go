package middleware

import (
	"bytes"
	"encoding/base64"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aq2208/gorder-settlement/internal/logging"
	"github.com/aq2208/gorder-settlement/internal/security"
)

// SignatureHeader carries base64(RSA-SHA256(raw body)) from the gateway.
const SignatureHeader = "X-Gateway-Signature"

const webhookBodyLimit = 64 * 1024

type WebhookVerify struct {
	cs security.CryptoService
}

func NewWebhookVerify(cs security.CryptoService) *WebhookVerify {
	return &WebhookVerify{cs: cs}
}

// Verify rejects webhook calls whose body does not match the gateway's signature.
func (wv *WebhookVerify) Verify() gin.HandlerFunc {
	return func(c *gin.Context) {
		// --- Read raw body ---
		rawBody, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookBodyLimit+1))
		_ = c.Request.Body.Close()
		if err != nil || len(rawBody) > webhookBodyLimit {
			webhookRejected.WithLabelValues("body").Inc()
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}

		sig, err := base64.StdEncoding.DecodeString(c.GetHeader(SignatureHeader))
		if err != nil || len(sig) == 0 {
			webhookRejected.WithLabelValues("malformed").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or malformed signature"})
			return
		}

		// --- Verify RSA-SHA256 signature ---
		if err := wv.cs.Verify(rawBody, sig); err != nil {
			webhookRejected.WithLabelValues("signature").Inc()
			logging.From(c).Warn("webhook signature rejected", "err", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "signature verification failed"})
			return
		}

		// --- Hand the same bytes to the handler ---
		c.Request.Body = io.NopCloser(bytes.NewReader(rawBody))
		c.Request.ContentLength = int64(len(rawBody))
		c.Next()
	}
}

// SignBody is the sandbox counterpart: it signs whatever JSON it receives so
// local callers can exercise the webhook. Needs the RSA private key.
func (wv *WebhookVerify) SignBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookBodyLimit))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}
		sig, err := wv.cs.Sign(body)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "sign failed (need RSA private key)", "detail": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"header": SignatureHeader, "signature": base64.StdEncoding.EncodeToString(sig)})
	}
}
