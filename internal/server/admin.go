package server

import (
	"net/http"
	"strconv"

	brewmap "github.com/brewmap/brewmap/internal"
)

// cacheStatsResponse reports viewport cache occupancy.
type cacheStatsResponse struct {
	TotalEntries   int    `json:"total_entries"`
	ValidEntries   int    `json:"valid_entries"`
	ExpiredEntries int    `json:"expired_entries"`
	MaxSize        int    `json:"max_size"`
	TTL            string `json:"ttl"`
}

func (s *server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	st := s.deps.Cache.Stats()
	writeJSON(w, http.StatusOK, cacheStatsResponse{
		TotalEntries:   st.TotalEntries,
		ValidEntries:   st.ValidEntries,
		ExpiredEntries: st.ExpiredEntries,
		MaxSize:        st.MaxSize,
		TTL:            st.TTL.String(),
	})
}

func (s *server) handleCacheClear(w http.ResponseWriter, _ *http.Request) {
	s.deps.Cache.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// handleMirrors reports circuit breaker state per Overpass mirror.
func (s *server) handleMirrors(w http.ResponseWriter, r *http.Request) {
	if s.deps.Breakers == nil {
		writeJSON(w, http.StatusNotFound, errorResponse("mirror state not available"))
		return
	}
	out := make(map[string]string)
	for mirror, state := range s.deps.Breakers.States() {
		out[mirror] = state.String()
	}
	writeJSON(w, http.StatusOK, out)
}

const defaultQueryLimit = 100

// handleRecentQueries serves the upstream query diagnostics log.
func (s *server) handleRecentQueries(w http.ResponseWriter, r *http.Request) {
	if s.deps.Queries == nil {
		writeJSON(w, http.StatusNotFound, errorResponse("query log not available"))
		return
	}

	limit := defaultQueryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse("invalid limit"))
			return
		}
		limit = n
	}

	recs, err := s.deps.Queries.RecentQueries(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if recs == nil {
		recs = []brewmap.QueryRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}
