package server

import (
	"errors"
	"net/http"

	gateway "github.com/ryuka-api/ryuka/internal"
	"github.com/ryuka-api/ryuka/internal/app"
)

// notImplementedNote answers kinds configured without any provider.
const notImplementedNote = "downloader not implemented: no free reliable provider is configured for this source"

type noteData struct {
	Note string `json:"note"`
	URL  string `json:"url"`
}

// handleResolve serves GET /api/<kind>?url=... through the cache-aside resolver.
func (s *server) handleResolve(kind gateway.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := app.Normalize(kind, r.URL.Query().Get("url"))
		if err != nil {
			writeError(w, r, err)
			return
		}

		res, err := s.deps.Resolver.Resolve(r.Context(), t)
		if err != nil {
			if errors.Is(err, gateway.ErrNoProviders) {
				writeJSON(w, http.StatusOK, success(noteData{Note: notImplementedNote, URL: t.URL}))
				return
			}
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resolved(res))
	}
}
