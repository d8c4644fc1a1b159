package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/noolite-core/internal/audit"
)

// handleListAuditLogs returns paginated audit log entries with optional filters.
//
// Query parameters:
//   - action: filter by registry action (create, set_state, toggle, ...)
//   - entity_type: bulb or registry
//   - bulb_id: filter by bulb (alias entity_id)
//   - outcome: ok, rejected or device_error
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeFailure(w, http.StatusServiceUnavailable, ReasonError, "audit logging not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("bulb_id"),
		Outcome:    q.Get("outcome"),
	}
	if filter.EntityID == "" {
		filter.EntityID = q.Get("entity_id")
	}
	if filter.EntityID != "" && filter.EntityType == "" {
		filter.EntityType = audit.EntityBulb
	}

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit logs", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
