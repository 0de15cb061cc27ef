package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"reviewdash/internal/app"
	"reviewdash/internal/domain"
)

type Handlers struct {
	Q        *app.QueryService
	R        *app.ReviewService
	validate *validator.Validate
}

func NewHandlers(q *app.QueryService, r *app.ReviewService) *Handlers {
	return &Handlers{Q: q, R: r, validate: validator.New()}
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/reviews", h.listReviews)
	s.mux.Get("/v1/properties/{slug}/reviews", h.propertyReviews)
	s.mux.Patch("/v1/reviews/{id}/approve", h.approveReview)
	s.mux.Patch("/v1/reviews/{id}/status", h.updateStatus)
	s.mux.Get("/v1/stats", h.dashboardStats)
	s.mux.Get("/v1/analytics", h.analytics)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeErr maps the domain error taxonomy onto problem+json responses.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrValidation):
		writeProblem(w, http.StatusBadRequest, "Invalid Request", err.Error())
	case errors.Is(err, domain.ErrUpstream), errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrForbidden):
		writeProblem(w, http.StatusBadGateway, "Upstream Failure", err.Error())
	default:
		log.Error().Err(err).Msg("internal error")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "unexpected failure")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCached sends v with an ETag, short-circuiting on If-None-Match.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func parseFilters(r *http.Request) (app.Filters, error) {
	q := r.URL.Query()
	f := app.Filters{
		Channel: q.Get("channel"),
		Status:  q.Get("status"),
		Listing: q.Get("listing"),
	}
	if rs := q.Get("rating"); rs != "" {
		v, err := strconv.ParseFloat(rs, 64)
		if err != nil || v < 0 || v > domain.MaxRating {
			return app.Filters{}, domain.ErrValidation
		}
		f.MinRating = &v
	}
	return f, nil
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilters(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid rating", "rating must be a number between 0 and 5")
		return
	}
	out, err := h.Q.GetReviews(r.Context(), f)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeCached(w, r, toReviewDTOs(out))
}

func (h *Handlers) propertyReviews(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	approvedOnly := false
	if as := r.URL.Query().Get("approved"); as != "" {
		v, err := strconv.ParseBool(as)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid approved", "approved must be a boolean")
			return
		}
		approvedOnly = v
	}
	out, err := h.Q.GetPropertyReviews(r.Context(), slug, approvedOnly)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeCached(w, r, toReviewDTOs(out))
}

type approveRequest struct {
	Approved     *bool   `json:"approved" validate:"required"`
	ManagerNotes *string `json:"managerNotes"`
	UpdatedBy    *string `json:"updatedBy"`
}

func (h *Handlers) approveReview(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "approved is required and must be a boolean")
		return
	}
	rv, err := h.R.Approve(r.Context(), id, *req.Approved, req.ManagerNotes, req.UpdatedBy)
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(decisionDTO{
		ID:           rv.ID,
		IsApproved:   rv.Approved,
		ManagerNotes: rv.ManagerNotes,
		UpdatedBy:    rv.UpdatedBy,
		UpdatedAt:    rv.UpdatedAt,
	})
}

type statusRequest struct {
	Status     string `json:"status" validate:"required"`
	IsApproved *bool  `json:"isApproved" validate:"required"`
}

func (h *Handlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "status and isApproved are required")
		return
	}
	st, err := domain.ParseStatus(req.Status)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Status", "status must be pending, published or rejected")
		return
	}
	rv, err := h.R.UpdateStatus(r.Context(), id, st, *req.IsApproved)
	if err != nil {
		writeErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toReviewDTO(rv))
}

func (h *Handlers) dashboardStats(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.DashboardStats(r.Context(), r.URL.Query().Get("range"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeCached(w, r, out)
}

// analytics computes the aggregate view over the same filter surface as the
// review list.
func (h *Handlers) analytics(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilters(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid rating", "rating must be a number between 0 and 5")
		return
	}
	reviews, err := h.Q.GetReviews(r.Context(), f)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeCached(w, r, app.ComputeAnalytics(reviews))
}
