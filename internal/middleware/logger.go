package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// sensitiveHeaderPatterns contains regex patterns for headers that must be
// redacted before logging
var sensitiveHeaderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)authorization`),
	regexp.MustCompile(`(?i)api[-_]?key`),
	regexp.MustCompile(`(?i)token`),
	regexp.MustCompile(`(?i)secret`),
	regexp.MustCompile(`(?i)password`),
	regexp.MustCompile(`(?i)bearer`),
	regexp.MustCompile(`(?i)cookie`),
	regexp.MustCompile(`(?i)session`),
}

// bodies larger than this are logged by size only. Receipt image uploads
// always exceed it.
const maxLoggedBodyBytes = 2048

// responseWriter is a custom response writer to capture response body
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// RequestResponseLogger creates a middleware that logs all API requests and
// responses through the given logger. Sensitive headers are redacted and
// binary payloads are never logged.
func RequestResponseLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		var requestBody []byte
		if c.Request.Body != nil && loggableContentType(c.ContentType()) {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		responseBodyWriter := &responseWriter{
			ResponseWriter: c.Writer,
			body:           bytes.NewBufferString(""),
		}
		c.Writer = responseBodyWriter

		c.Next()

		latency := time.Since(startTime)

		event := log.Info()
		if c.Writer.Status() >= 500 {
			event = log.Error()
		} else if c.Writer.Status() >= 400 {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status_code", c.Writer.Status()).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent())

		for name := range c.Request.Header {
			if isSensitiveHeader(name) {
				event.Str("header_"+strings.ToLower(name), "[REDACTED]")
			}
		}
		_ = addBody(event, "request_body", requestBody)
		_ = addBody(event, "response_body", responseBodyWriter.body.Bytes())
		if len(c.Errors) > 0 {
			event.Str("error", c.Errors.String())
		}

		event.Msg("request handled")
	}
}

// isSensitiveHeader checks if a header name matches a redaction pattern
func isSensitiveHeader(name string) bool {
	for _, pattern := range sensitiveHeaderPatterns {
		if pattern.MatchString(name) {
			return true
		}
	}
	return false
}

// loggableContentType reports whether a request body can be captured safely
func loggableContentType(contentType string) bool {
	return strings.HasPrefix(contentType, "application/json")
}

func addBody(event *zerolog.Event, key string, body []byte) *zerolog.Event {
	if len(body) == 0 {
		return event
	}
	if len(body) > maxLoggedBodyBytes || !json.Valid(body) {
		return event.Int(key+"_bytes", len(body))
	}
	return event.RawJSON(key, body)
}
