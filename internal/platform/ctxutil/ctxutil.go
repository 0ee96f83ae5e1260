// Package ctxutil carries request-scoped identity through context.Context.
package ctxutil

import "context"

type (
	requestKey struct{}
	visitorKey struct{}
)

// RequestData correlates a request with its trace.
type RequestData struct {
	TraceID   string
	RequestID string
}

// VisitorData identifies whose cart a request operates on.
type VisitorData struct {
	VisitorID string
	// Fresh is set when the session was minted by this request.
	Fresh bool
}

func WithRequest(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestKey{}, rd)
}

func GetRequest(ctx context.Context) *RequestData {
	if rd, ok := ctx.Value(requestKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}

func WithVisitor(ctx context.Context, vd *VisitorData) context.Context {
	return context.WithValue(ctx, visitorKey{}, vd)
}

func GetVisitor(ctx context.Context) *VisitorData {
	if vd, ok := ctx.Value(visitorKey{}).(*VisitorData); ok {
		return vd
	}
	return nil
}

// LogFields returns the logger key/value pairs for whatever identity ctx
// carries. Empty values are skipped.
func LogFields(ctx context.Context) []interface{} {
	var fields []interface{}
	if rd := GetRequest(ctx); rd != nil {
		if rd.TraceID != "" {
			fields = append(fields, "trace_id", rd.TraceID)
		}
		if rd.RequestID != "" {
			fields = append(fields, "request_id", rd.RequestID)
		}
	}
	if vd := GetVisitor(ctx); vd != nil && vd.VisitorID != "" {
		fields = append(fields, "visitor_id", vd.VisitorID)
		if vd.Fresh {
			fields = append(fields, "new_visitor", true)
		}
	}
	return fields
}
