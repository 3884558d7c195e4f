package chi

import (
	"net/http"

	"github.com/google/uuid"

	domtag "github.com/kedb-platform/kedb/internal/domain/tag"
)

// createTag handles POST /api/v1/tags.
func (s *Server) createTag(w http.ResponseWriter, r *http.Request) {
	var req createTagRequest
	if !decodeBody(w, r, &req) {
		return
	}

	t, err := s.tags.Create(r.Context(), domtag.Tag{
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, tagToDTO(t))
}

// listTags handles GET /api/v1/tags.
func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.tags.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]tagResponse, len(tags))
	for i, t := range tags {
		items[i] = tagToDTO(t)
	}
	writeJSON(w, http.StatusOK, listResponse[tagResponse]{Items: items, Total: len(items)})
}

// getTag handles GET /api/v1/tags/{tagID}.
func (s *Server) getTag(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "tagID")
	if !ok {
		return
	}

	t, err := s.tags.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tagToDTO(t))
}

// tagEntry handles POST /api/v1/entries/{entryID}/tags.
func (s *Server) tagEntry(w http.ResponseWriter, r *http.Request) {
	entryID, ok := pathUUID(w, r, "entryID")
	if !ok {
		return
	}

	var req struct {
		TagID string `json:"tag_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	tagID, err := uuid.Parse(req.TagID)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid tag_id")
		return
	}

	if err := s.tags.TagEntry(r.Context(), entryID, tagID, actingUser(r)); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// untagEntry handles DELETE /api/v1/entries/{entryID}/tags/{tagID}.
func (s *Server) untagEntry(w http.ResponseWriter, r *http.Request) {
	entryID, ok := pathUUID(w, r, "entryID")
	if !ok {
		return
	}
	tagID, ok := pathUUID(w, r, "tagID")
	if !ok {
		return
	}

	if err := s.tags.UntagEntry(r.Context(), entryID, tagID); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// listEntryTags handles GET /api/v1/entries/{entryID}/tags.
func (s *Server) listEntryTags(w http.ResponseWriter, r *http.Request) {
	entryID, ok := pathUUID(w, r, "entryID")
	if !ok {
		return
	}

	tags, err := s.tags.ListEntryTags(r.Context(), entryID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]tagResponse, len(tags))
	for i, t := range tags {
		items[i] = tagToDTO(t)
	}
	writeJSON(w, http.StatusOK, listResponse[tagResponse]{Items: items, Total: len(items)})
}
