package server

import "net/http"

type clearedData struct {
	Cleared int `json:"cleared"`
}

func (s *server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	st := s.deps.Cache.Stats(r.Context())
	if st.Keys == nil {
		st.Keys = []string{}
	}
	writeJSON(w, http.StatusOK, success(st))
}

// handleCacheClear empties the cache. Clearing an empty cache is not an error.
func (s *server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	n := s.deps.Cache.Stats(r.Context()).Size
	s.deps.Cache.Clear(r.Context())
	writeJSON(w, http.StatusOK, success(clearedData{Cleared: n}))
}
