package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	gateway "github.com/ryuka-api/ryuka/internal"
)

// defaultSummaryWindow is the look-back of /api/fetches/summary without ?since=.
const defaultSummaryWindow = 24 * time.Hour

type fetchList struct {
	Records []gateway.FetchRecord `json:"records"`
	Offset  int                   `json:"offset"`
	Limit   int                   `json:"limit"`
}

func parsePagination(r *http.Request) (offset, limit int) {
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return
}

// parseSince accepts an RFC 3339 timestamp or a Go duration ("6h") meaning
// that long ago.
func parseSince(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return now.Add(-defaultSummaryWindow), nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("since must be RFC 3339 or a duration: %w", gateway.ErrBadRequest)
	}
	return t, nil
}

func (s *server) handleListFetches(w http.ResponseWriter, r *http.Request) {
	if s.deps.FetchLog == nil {
		writeError(w, r, gateway.ErrNotFound)
		return
	}
	offset, limit := parsePagination(r)
	q := r.URL.Query()
	filter := gateway.FetchFilter{
		Kind:    gateway.Kind(q.Get("kind")),
		Outcome: q.Get("outcome"),
		Limit:   limit,
		Offset:  offset,
	}
	records, err := s.deps.FetchLog.ListFetches(r.Context(), filter)
	if err != nil {
		writeError(w, r, fmt.Errorf("list fetches: %w", err))
		return
	}
	if records == nil {
		records = []gateway.FetchRecord{}
	}
	writeJSON(w, http.StatusOK, success(fetchList{Records: records, Offset: offset, Limit: limit}))
}

func (s *server) handleFetchSummary(w http.ResponseWriter, r *http.Request) {
	if s.deps.FetchLog == nil {
		writeError(w, r, gateway.ErrNotFound)
		return
	}
	since, err := parseSince(r.URL.Query().Get("since"), time.Now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := s.deps.FetchLog.SummarizeFetches(r.Context(), since)
	if err != nil {
		writeError(w, r, fmt.Errorf("summarize fetches: %w", err))
		return
	}
	if summary == nil {
		summary = []gateway.FetchSummary{}
	}
	writeJSON(w, http.StatusOK, success(summary))
}
