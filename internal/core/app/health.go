package app

import (
	"context"
	"fmt"
	"time"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Session    string            `json:"session"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

// Health reports the state of the session's collaborators. The status is
// "degraded" when a configured component is missing.
func (s *Session) Health(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Session:    s.id,
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}
	if err := ctx.Err(); err != nil {
		status.Status = "degraded"
		status.Components["context"] = err.Error()
	}

	if s.tokenizer != nil {
		status.Components["tokenizer"] = "ok (" + s.tokenizer.Name() + ")"
	} else {
		status.Status = "degraded"
		status.Components["tokenizer"] = "missing"
	}

	switch {
	case s.store != nil:
		status.Components["module_store"] = "ok"
	case s.cfg.DB.Enabled:
		status.Status = "degraded"
		status.Components["module_store"] = "missing but enabled in config"
	default:
		status.Components["module_store"] = "disabled"
	}

	stats := s.modules.Stats()
	status.Components["module_cache"] = fmt.Sprintf("ok (%d/%d entries, %d hits, %d misses)",
		s.modules.Len(), s.modules.Cap(), stats.Hits, stats.Misses)
	status.Components["types"] = fmt.Sprintf("ok (%d interned)", s.types.Len())
	return status
}

// Fields flattens the status for the /health endpoint.
func (h HealthStatus) Fields() map[string]any {
	return map[string]any{
		"status":     h.Status,
		"session":    h.Session,
		"timestamp":  h.Timestamp,
		"components": h.Components,
	}
}
