package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-coach-bot/internal/clients/line"
)

// LineSignature verifies X-Line-Signature against the raw body using the
// channel secret and rejects mismatches with 401 before any handler runs.
// The body is restored for downstream readers. An empty secret disables the
// check (local development).
func LineSignature(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			abortJSON(c, http.StatusBadRequest, "bad_request", "unreadable body")
			return
		}
		_ = c.Request.Body.Close()
		if !line.ValidateSignature(secret, body, c.GetHeader(line.SignatureHeader)) {
			LoggerFrom(c).Warn().Int("bytes", len(body)).Msg("webhook signature mismatch")
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "invalid signature")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}

// abortJSON writes the standard error envelope from middleware, which cannot
// depend on the handlers package.
func abortJSON(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": asString(c.Value(requestIDKey)),
		"code":       code,
		"message":    msg,
	})
}
