// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key header on unsafe methods and
// stashes the accepted key in the Gin context. Deduplication itself happens
// in the order service; handlers report a served replay through
// MarkReplayed so the access log and the Idempotency-Replayed response
// header reflect it.
package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderIdempotencyKey carries the client's deduplication token.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderIdempotencyReplayed is set to "true" on responses served from
	// the idempotency cache.
	HeaderIdempotencyReplayed = "Idempotency-Replayed"
)

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
)

// defaultKeyPattern accepts printable ASCII, space included.
var defaultKeyPattern = regexp.MustCompile(`^[\x20-\x7E]+$`)

// GetIdempotencyKey returns the key stored by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// MarkReplayed records that the response is a cached replay and sets the
// Idempotency-Replayed header.
func MarkReplayed(c *gin.Context) {
	c.Set(ctxKeyIdemReplay, true)
	c.Header(HeaderIdempotencyReplayed, "true")
}

// IsReplay reports whether MarkReplayed was called for this request.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures IdempotencyValidator.
type IdempotencyOptions struct {
	// MaxLen caps the key length in bytes. Values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters. Nil means printable ASCII.
	Pattern *regexp.Regexp
}

// IdempotencyValidator rejects malformed Idempotency-Key headers with 400
// bad_idempotency_key and stashes valid ones for GetIdempotencyKey.
// A key of only whitespace is malformed. Requests without the header, and
// safe methods, pass through untouched.
func IdempotencyValidator(opts IdempotencyOptions) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}
		if strings.TrimSpace(key) == "" || len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)
		c.Next()
	}
}

func isSafeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
