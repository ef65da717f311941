package goVolunteer

import (
	"context"
)

const (
	auditEventLoginSuccess    = "login_success"
	auditEventLoginFailure    = "login_failure"
	auditEventRegisterSuccess = "register_success"
	auditEventRegisterFailure = "register_failure"
	auditEventLogout          = "logout"
	auditEventUnauthorized    = "logout_unauthorized"
	auditEventHydrateSuccess  = "hydrate_success"
	auditEventHydrateFailure  = "hydrate_failure"
)

// EmitAudit forwards event to the audit dispatcher, filling in the current
// user when the event has none. It is a no-op when auditing is disabled.
func (s *Store) EmitAudit(ctx context.Context, event AuditEvent) {
	if s == nil || s.audit == nil {
		return
	}
	if event.UserID == "" {
		snap := s.Snapshot()
		event.UserID = snap.UserID
		if event.Role == "" {
			event.Role = string(snap.Role)
		}
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	s.audit.Emit(ctx, event)
}

func (s *Store) emitAudit(ctx context.Context, eventType string, success bool, err error, user *User, metadata map[string]string) {
	if s == nil || s.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: s.now().UTC(),
		EventType: eventType,
		Success:   success,
		Metadata:  metadata,
	}
	if user != nil {
		event.UserID = user.ID
		event.Role = string(user.Role)
	}
	if err != nil {
		event.Error = err.Error()
	}

	s.audit.Emit(ctx, event)
}
