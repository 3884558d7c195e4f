package chi

import (
	"net/http"

	domreview "github.com/kedb-platform/kedb/internal/domain/review"
)

// createReview handles POST /api/v1/entries/{entryID}/reviews.
func (s *Server) createReview(w http.ResponseWriter, r *http.Request) {
	entryID, ok := pathUUID(w, r, "entryID")
	if !ok {
		return
	}

	var req createReviewRequest
	if !decodeBody(w, r, &req) {
		return
	}

	participants := make([]domreview.Participant, len(req.Participants))
	for i, p := range req.Participants {
		participants[i] = domreview.Participant{
			UserID: p.UserID,
			Role:   domreview.Role(p.Role),
		}
	}

	rev, err := s.reviews.Create(r.Context(), entryID, req.RCAText, req.Comments, participants)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, reviewToDTO(rev))
}

// listEntryReviews handles GET /api/v1/entries/{entryID}/reviews.
func (s *Server) listEntryReviews(w http.ResponseWriter, r *http.Request) {
	entryID, ok := pathUUID(w, r, "entryID")
	if !ok {
		return
	}

	revs, err := s.reviews.ListByEntry(r.Context(), entryID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]reviewResponse, len(revs))
	for i, rev := range revs {
		items[i] = reviewToDTO(rev)
	}
	writeJSON(w, http.StatusOK, listResponse[reviewResponse]{Items: items, Total: len(items)})
}

// getReview handles GET /api/v1/reviews/{reviewID}.
func (s *Server) getReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "reviewID")
	if !ok {
		return
	}

	rev, err := s.reviews.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reviewToDTO(rev))
}

// respondReview handles POST /api/v1/reviews/{reviewID}/respond. The
// responding participant is identified by the user header.
func (s *Server) respondReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "reviewID")
	if !ok {
		return
	}

	var req respondReviewRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user := r.Header.Get(userIDHeader)
	if user == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "missing "+userIDHeader+" header")
		return
	}

	if err := s.reviews.Respond(r.Context(), id, user, req.Approved, req.Comments); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// completeReview handles POST /api/v1/reviews/{reviewID}/complete.
func (s *Server) completeReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "reviewID")
	if !ok {
		return
	}

	var req completeReviewRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rev, err := s.reviews.Complete(r.Context(), id, domreview.Status(req.Status))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reviewToDTO(rev))
}
