package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/nexusknowledge-backend/internal/platform/ctxutil"
)

const (
	headerCorrelationID = "X-Correlation-Id"
	headerRequestID     = "X-Request-Id"
)

// AttachTraceContext adopts the caller's correlation id or mints one, so
// every request and every job it enqueues share an id end to end.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if reqID == "" {
			reqID = uuid.New().String()
		}
		correlationID := strings.TrimSpace(c.GetHeader(headerCorrelationID))
		if correlationID == "" {
			spanCtx := trace.SpanContextFromContext(c.Request.Context())
			if spanCtx.HasTraceID() {
				correlationID = spanCtx.TraceID().String()
			}
		}
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		ctx := ctxutil.WithTraceData(c.Request.Context(), &ctxutil.TraceData{
			CorrelationID: correlationID,
			RequestID:     reqID,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Set("correlation_id", correlationID)
		c.Set("request_id", reqID)
		c.Writer.Header().Set(headerCorrelationID, correlationID)
		c.Writer.Header().Set(headerRequestID, reqID)
		c.Next()
	}
}
