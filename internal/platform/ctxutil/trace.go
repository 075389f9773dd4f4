package ctxutil

import "context"

type traceDataKey struct{}

// TraceData carries the identifiers that tie one logical request together
// across the API, the job queue, and the tracker. CorrelationID is
// caller-supplied; RequestID is minted per HTTP request.
type TraceData struct {
	CorrelationID string
	RequestID     string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	val := ctx.Value(traceDataKey{})
	if td, ok := val.(*TraceData); ok {
		return td
	}
	return nil
}

func CorrelationID(ctx context.Context) string {
	if td := GetTraceData(ctx); td != nil {
		return td.CorrelationID
	}
	return ""
}
