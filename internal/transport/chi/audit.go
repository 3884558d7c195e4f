package chi

import (
	"net/http"
	"time"

	domaudit "github.com/kedb-platform/kedb/internal/domain/audit"
)

// listAudit handles GET /api/v1/audit.
func (s *Server) listAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domaudit.ListFilter{
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		UserID:     q.Get("user_id"),
	}

	if raw := q.Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "since must be RFC 3339")
			return
		}
		filter.Since = t
	}
	if raw := q.Get("until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "until must be RFC 3339")
			return
		}
		filter.Until = t
	}

	limit := queryInt(r, "limit")
	offset := queryInt(r, "offset")

	records, err := s.audit.List(r.Context(), filter, limit, offset)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]auditResponse, len(records))
	for i, rec := range records {
		items[i] = auditToDTO(rec)
	}
	writeJSON(w, http.StatusOK, listResponse[auditResponse]{
		Items:  items,
		Total:  len(items),
		Limit:  limit,
		Offset: offset,
	})
}

// listEntryAudit handles GET /api/v1/entries/{entryID}/audit: the entry's
// own history, newest first.
func (s *Server) listEntryAudit(w http.ResponseWriter, r *http.Request) {
	entryID, ok := pathUUID(w, r, "entryID")
	if !ok {
		return
	}

	records, err := s.audit.List(r.Context(), domaudit.ListFilter{
		EntityType: domaudit.EntityEntry,
		EntityID:   entryID.String(),
	}, queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]auditResponse, len(records))
	for i, rec := range records {
		items[i] = auditToDTO(rec)
	}
	writeJSON(w, http.StatusOK, listResponse[auditResponse]{Items: items, Total: len(items)})
}
