// Package bridge implements the request dispatcher and the stdio protocol
// loop of the memU bridge daemon.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/rcliao/memu-bridge/internal/build"
	"github.com/rcliao/memu-bridge/internal/convo"
	"github.com/rcliao/memu-bridge/internal/memsvc"
	"github.com/rcliao/memu-bridge/internal/service"
)

// Supported operations.
const (
	OpHealth         = "health"
	OpListCategories = "list_categories"
	OpMemorize       = "memorize"
)

// Request is one parsed protocol request.
type Request struct {
	ID      any
	Op      string
	Payload map[string]any
}

// Response is the single response envelope: id echoed when present, ok as
// the uniform failure signal, result or error depending on ok.
type Response struct {
	ID     any    `json:"id,omitempty"`
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// DomainError marks a structurally valid request that intentionally makes
// no library call, such as a conversation that normalizes to nothing.
type DomainError struct {
	Op     string
	Reason string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// HealthStatus is the health operation's result.
type HealthStatus struct {
	Status         string    `json:"status"`
	Services       int       `json:"services"`
	ServiceKeys    []string  `json:"service_keys"`
	BridgeVersion  string    `json:"bridge_version"`
	InstanceID     string    `json:"instance_id"`
	StartedAt      time.Time `json:"started_at"`
	LibraryVersion string    `json:"library_version"`
}

// Dispatcher routes operations onto cached service instances.
type Dispatcher struct {
	cache  *service.Cache
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher over the given cache.
func NewDispatcher(cache *service.Cache, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{cache: cache, logger: logger}
}

// Handle runs one request to completion and always produces a well-formed
// response; no failure escapes it.
func (d *Dispatcher) Handle(ctx context.Context, req Request) Response {
	result, err := d.dispatch(ctx, req.Op, req.Payload)
	resp := Response{ID: req.ID, OK: err == nil}
	if err == nil {
		resp.Result = result
		return resp
	}

	resp.Error = err.Error()
	var de *DomainError
	if errors.As(err, &de) {
		// Distinguish a domain no-op from transport-level failures.
		resp.Result = map[string]any{"noop": true, "reason": de.Reason}
		d.logger.Info("domain no-op", "op", req.Op, "reason", de.Reason)
	} else {
		d.logger.Error("op failed", "op", req.Op, "error", err)
	}
	return resp
}

// dispatch is the supervisor boundary: any panic inside a handler becomes
// an error result and the daemon lives on.
func (d *Dispatcher) dispatch(ctx context.Context, op string, payload map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic during dispatch", "op", op, "panic", r, "stack", string(debug.Stack()))
			result = nil
			err = fmt.Errorf("panic in op %q: %v", op, r)
		}
	}()

	if payload == nil {
		payload = map[string]any{}
	}

	switch op {
	case OpHealth:
		return d.health(ctx, payload)
	case OpListCategories:
		return d.listCategories(ctx, payload)
	case OpMemorize:
		return d.memorize(ctx, payload)
	default:
		return nil, fmt.Errorf("unknown op %q", op)
	}
}

func (d *Dispatcher) health(ctx context.Context, payload map[string]any) (any, error) {
	svc, err := d.cache.GetOrCreate(payload)
	if err != nil {
		return nil, err
	}

	// Liveness of the bridge is the point; a failing probe is reported
	// but does not fail the health check.
	status := "ok"
	if err := svc.Probe(ctx); err != nil {
		status = "degraded"
		d.logger.Warn("health probe failed", "error", err)
	}

	return HealthStatus{
		Status:         status,
		Services:       d.cache.Len(),
		ServiceKeys:    d.cache.Keys(),
		BridgeVersion:  build.Version,
		InstanceID:     build.InstanceID,
		StartedAt:      build.StartedAt,
		LibraryVersion: memsvc.Version,
	}, nil
}

func (d *Dispatcher) listCategories(ctx context.Context, payload map[string]any) (any, error) {
	svc, err := d.cache.GetOrCreate(payload)
	if err != nil {
		return nil, err
	}

	var where *memsvc.CategoryFilter
	if w, ok := payload["where"].(map[string]any); ok {
		if user, ok := w["user_id"].(string); ok && user != "" {
			where = &memsvc.CategoryFilter{UserID: user}
		}
	}

	return svc.ListCategories(ctx, where)
}

func (d *Dispatcher) memorize(ctx context.Context, payload map[string]any) (any, error) {
	svc, err := d.cache.GetOrCreate(payload)
	if err != nil {
		return nil, err
	}

	normalized := convo.Normalize(payload["conversation"])
	if len(normalized) == 0 {
		return nil, &DomainError{Op: OpMemorize, Reason: "payload.conversation must be a non-empty list (after normalization)"}
	}

	path, err := writeResourceFile(service.ResourcesDir(payload), normalized)
	if err != nil {
		return nil, fmt.Errorf("persist conversation: %w", err)
	}

	return svc.Memorize(ctx, memsvc.MemorizeParams{
		ResourceURL: path,
		Modality:    "conversation",
		User:        userScope(payload),
	})
}

// userScope resolves the optional user identity: an explicit payload
// field, then user_config.
func userScope(payload map[string]any) string {
	if u, ok := payload["user"].(string); ok && u != "" {
		return u
	}
	if uc, ok := payload["user_config"].(map[string]any); ok {
		if u, ok := uc["user_id"].(string); ok {
			return u
		}
	}
	return ""
}
