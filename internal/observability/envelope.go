package observability

import (
	"net"
	"net/http"
	"strings"
)

// EventEnvelope is the shape consumed by the wellness platform's event
// pipeline. EventType selects the consumer queue, EventName the event within
// it.
type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// RequestMeta carries the per-request correlation fields attached to
// published events.
type RequestMeta struct {
	RequestID string
	DeviceID  string
	IP        string
}

// MetaFromRequest extracts correlation metadata from a console request. The
// client IP honors X-Forwarded-For since the console sits behind a proxy in
// deployment.
func MetaFromRequest(r *http.Request) RequestMeta {
	return RequestMeta{
		RequestID: r.Header.Get("X-Request-Id"),
		DeviceID:  r.Header.Get("X-Device-Id"),
		IP:        clientIP(r),
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// BuildHeaders assembles the AMQP headers correlating a published event with
// its originating request and trace.
func BuildHeaders(requestID, traceID string) map[string]string {
	headers := make(map[string]string, 2)
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
