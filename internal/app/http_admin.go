package app

import (
	"net/http"
	"time"

	"launchkit/api/internal/rbac"
	"launchkit/api/internal/store"
)

// handleAdmin serves the platform tooling reads. Access is decided by the app
// role policy, not by workspace membership.
func (s *HTTPServer) handleAdmin(w http.ResponseWriter, r *http.Request, resource string) {
	object := map[string]string{
		"users":     rbac.ObjectUsers,
		"audit":     rbac.ObjectAudit,
		"telemetry": rbac.ObjectTelemetry,
	}[resource]
	if object == "" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	if !s.service.policy.Allow(session.AppRole, object, rbac.ActionRead) {
		s.logger.Warn().
			Str("actor_id", session.UserID).
			Str("app_role", session.AppRole).
			Str("object", object).
			Msg("admin read denied")
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
		return
	}

	switch resource {
	case "users":
		users, err := s.service.store.ListUsers(r.Context(), queryInt(r, "limit", 100, 500))
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": mapSlice(users, newUserView)})
	case "audit":
		query := r.URL.Query()
		entries, err := s.service.store.ListAuditLogs(r.Context(), store.AuditLogFilter{
			ActorID:          query.Get("actorId"),
			Action:           query.Get("action"),
			TargetEntityType: query.Get("targetType"),
			TargetEntityID:   query.Get("targetId"),
			Limit:            queryInt(r, "limit", 100, 500),
		})
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": mapSlice(entries, newAuditView)})
	case "telemetry":
		events, err := s.service.store.ListTelemetryEvents(r.Context(), r.URL.Query().Get("type"), queryInt(r, "limit", 100, 500))
		if err != nil {
			writeMappedError(w, err)
			return
		}
		counts, err := s.service.store.CountTelemetryEvents(r.Context(), time.Now().Add(-24*time.Hour))
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"events": mapSlice(events, newTelemetryView),
			"counts": mapSlice(counts, func(c store.TelemetryCount) map[string]any {
				return map[string]any{"eventType": c.EventType, "count": c.Count}
			}),
		})
	}
}
