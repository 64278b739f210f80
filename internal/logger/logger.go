package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrorObject is emitted only for error logs.
type ErrorObject struct {
	Msg   string `json:"msg"`
	Stack string `json:"stack"`
}

// LogEntry is the single-line JSON format written to stdout.
type LogEntry struct {
	Timestamp  string       `json:"timestamp"`             // ISO 8601
	Level      string       `json:"level"`                 // DEBUG | INFO | ERROR
	Service    string       `json:"service"`               // e.g. carrier-agent
	Action     string       `json:"action"`                // event name, e.g. ws_connected
	Message    string       `json:"message"`               // human-readable description
	Hostname   string       `json:"hostname"`              // agent hostname
	RequestID  string       `json:"request_id,omitempty"`  // correlation ID
	DeliveryID string       `json:"delivery_id,omitempty"` // tracked delivery (when applicable)
	Details    any          `json:"details,omitempty"`     // extra fields (map or struct)
	Error      *ErrorObject `json:"error,omitempty"`
}

// Logger writes structured JSON lines for one named service.
type Logger struct {
	service  string
	hostname string
	mu       sync.Mutex
}

// New creates a structured logger for the given service.
func New(service string) *Logger {
	hn, err := os.Hostname()
	if err != nil || strings.TrimSpace(hn) == "" {
		hn = "unknown-hostname"
	}
	if strings.TrimSpace(service) == "" {
		service = "unknown-service"
	}
	return &Logger{service: service, hostname: hn}
}

// Debug writes a DEBUG line with optional details.
func (l *Logger) Debug(ctx context.Context, action, msg string, details any) {
	l.emit(l.entry(ctx, "DEBUG", action, msg, details))
}

// Info writes an INFO line with optional details.
func (l *Logger) Info(ctx context.Context, action, msg string, details any) {
	l.emit(l.entry(ctx, "INFO", action, msg, details))
}

// Error writes an ERROR line and attaches a stack trace.
func (l *Logger) Error(ctx context.Context, action, msg string, err error, details any) {
	if err == nil {
		err = fmt.Errorf("unknown error")
	}
	e := l.entry(ctx, "ERROR", action, msg, details)
	e.Error = &ErrorObject{
		Msg:   strings.TrimSpace(err.Error()),
		Stack: string(debug.Stack()),
	}
	l.emit(e)
}

func (l *Logger) entry(ctx context.Context, level, action, msg string, details any) LogEntry {
	action = strings.TrimSpace(action)
	if action == "" {
		action = "unspecified"
	}
	return LogEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Level:      level,
		Service:    l.service,
		Action:     action,
		Message:    strings.TrimSpace(msg),
		Hostname:   l.hostname,
		RequestID:  RequestID(ctx),
		DeliveryID: DeliveryID(ctx),
		Details:    details,
	}
}

// emit marshals and prints a single JSON line to stdout.
func (l *Logger) emit(e LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := json.Marshal(e)
	if err == nil {
		fmt.Println(string(b))
		return
	}

	// retry once without Details (the usual source of marshal errors)
	e.Details = nil
	if b, err2 := json.Marshal(e); err2 == nil {
		fmt.Println(string(b))
		return
	}

	fmt.Fprintf(os.Stderr, "log marshal failed: %v\n", err)
}

// ------------ context helpers -------------

type ctxKey string

const (
	ctxKeyRequestID  ctxKey = "track_request_id"
	ctxKeyDeliveryID ctxKey = "track_delivery_id"
)

// WithNewRequestID attaches a freshly generated correlation ID.
func WithNewRequestID(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, "req_"+uuid.NewString())
}

// WithRequestID returns a context carrying request_id.
func WithRequestID(ctx context.Context, id string) context.Context {
	if strings.TrimSpace(id) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// WithDeliveryID returns a context carrying delivery_id.
func WithDeliveryID(ctx context.Context, id string) context.Context {
	if strings.TrimSpace(id) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyDeliveryID, id)
}

// RequestID extracts request_id from ctx, if any.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return v
	}
	return ""
}

// DeliveryID extracts delivery_id from ctx, if any.
func DeliveryID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxKeyDeliveryID).(string); ok {
		return v
	}
	return ""
}
