package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"bank_reviews/internal/app"
	"bank_reviews/internal/domain"
)

const (
	maxReviewLimit = 200
	maxThemeLimit  = 50
)

type Handlers struct{ Q *app.QueryService }

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/banks", h.listBanks)
	s.mux.Get("/v1/banks/{bank}/reviews", h.listReviews)
	s.mux.Route("/v1/reports", func(r chi.Router) {
		r.Get("/banks", h.bankSummaries)
		r.Get("/sentiment", h.sentiment)
		r.Get("/themes", h.themes)
		r.Get("/coverage", h.coverage)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrInvalidCursor):
		writeProblem(w, http.StatusBadRequest, "Invalid cursor", "cursor was not issued by this API")
	default:
		log.Error().Err(err).Msg("report query failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
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

// writeJSON sends v with a weak ETag, or 304 when the client already has it.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

// intParam reads an optional positive query integer no larger than hi.
func intParam(r *http.Request, name string, def, hi int) (int, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > hi {
		return 0, false
	}
	return n, true
}

func (h *Handlers) listBanks(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.Banks(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if out == nil {
		out = []domain.Bank{}
	}
	writeJSON(w, r, out)
}

func (h *Handlers) bankSummaries(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.BankSummaries(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if out == nil {
		out = []domain.BankSummary{}
	}
	writeJSON(w, r, out)
}

func (h *Handlers) sentiment(w http.ResponseWriter, r *http.Request) {
	var bankID *int
	if ref := r.URL.Query().Get("bank"); ref != "" {
		b, err := h.Q.ResolveBank(r.Context(), ref)
		if err != nil {
			writeError(w, err)
			return
		}
		bankID = &b.ID
	}
	out, err := h.Q.SentimentDistribution(r.Context(), bankID)
	if err != nil {
		writeError(w, err)
		return
	}
	if out == nil {
		out = []domain.SentimentShare{}
	}
	writeJSON(w, r, out)
}

func (h *Handlers) themes(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(r, "limit", 5, maxThemeLimit)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 50")
		return
	}
	out, err := h.Q.TopThemes(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, out)
}

func (h *Handlers) coverage(w http.ResponseWriter, r *http.Request) {
	minPer, ok := intParam(r, "min", 400, 1_000_000)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid min", "min must be a positive integer")
		return
	}
	out, err := h.Q.Coverage(r.Context(), minPer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, r, out)
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	bank, err := h.Q.ResolveBank(r.Context(), chi.URLParam(r, "bank"))
	if err != nil {
		writeError(w, err)
		return
	}

	limit, ok := intParam(r, "limit", 50, maxReviewLimit)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
		return
	}

	q := domain.ReviewsQuery{BankID: bank.ID, Limit: limit}
	if s := r.URL.Query().Get("sentiment"); s != "" {
		label, ok := domain.ParseSentimentLabel(s)
		if !ok {
			writeProblem(w, http.StatusBadRequest, "Invalid sentiment", "sentiment must be POSITIVE, NEGATIVE or NEUTRAL")
			return
		}
		q.Sentiment = &label
	}
	if c := r.URL.Query().Get("cursor"); c != "" {
		q.Cursor = &c
	}

	out, err := h.Q.ListReviews(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	if out.Items == nil {
		out.Items = []domain.LabeledReview{}
	}
	writeJSON(w, r, out)
}
