// Package audit captures key actions taken by the service: quota decisions,
// upstream generation calls, gallery writes and admin operations. Events are
// append-only and queryable by the admin API.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	ActionGenerationGranted Action = "generation_granted"
	ActionGenerationDenied  Action = "generation_denied"
	ActionGenerationFailed  Action = "generation_failed"
	ActionImagePersisted    Action = "image_persisted"
	ActionAdminLogin        Action = "admin_login"
	ActionAdminLoginFailed  Action = "admin_login_failed"
	ActionQuotaReset        Action = "quota_reset"
)

// Event records one action. Keep it transport-agnostic so stores can fan out.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	Subject   string    `json:"subject,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	ClientIP  string    `json:"client_ip,omitempty"`
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Log appends an event, filling in ID and Timestamp when unset. Append
// failures are logged and swallowed: an audit outage must not take the
// request path down with it.
func Log(ctx context.Context, store Store, logger *slog.Logger, event Event) {
	if store == nil {
		return
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := store.Append(ctx, event); err != nil {
		logger.ErrorContext(ctx, "failed to append audit event",
			"action", string(event.Action),
			"error", err,
		)
	}
}
