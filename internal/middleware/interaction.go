package middleware

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"photo-review-backend/internal/signature"
)

const RawBodyKey = "raw_body"

// maxCallbackBody caps what the gate will read before verifying.
const maxCallbackBody = 1 << 20

// SignatureGate authenticates chat-platform callbacks. The body is read raw,
// verified against the timestamp header, and only then made available to the
// handler through RawBody. Anything that fails is rejected with 401 before
// the handler runs.
func SignatureGate(verifier *signature.Verifier, guard *ReplayGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		sig := c.GetHeader(signature.HeaderSignature)
		ts := c.GetHeader(signature.HeaderTimestamp)
		if sig == "" || ts == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid request signature"})
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody+1))
		if err != nil || len(body) > maxCallbackBody {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid request signature"})
			return
		}

		if !verifier.Verify(ts, body, sig) {
			log.Warn().Str("path", c.FullPath()).Str("ip", c.ClientIP()).Msg("rejected callback with bad signature")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid request signature"})
			return
		}

		if err := guard.Check(ts, sig); err != nil {
			log.Warn().Err(err).Str("path", c.FullPath()).Msg("rejected replayed callback")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid request signature"})
			return
		}

		c.Set(RawBodyKey, body)
		c.Next()
	}
}

// RawBody returns the verified body captured by SignatureGate, or reads up
// to the same limit from the request body when the route is not gated.
func RawBody(c *gin.Context) ([]byte, error) {
	if v, ok := c.Get(RawBodyKey); ok {
		if body, ok := v.([]byte); ok {
			return body, nil
		}
	}
	return io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
}
