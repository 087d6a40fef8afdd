package server

import (
	"encoding/json"
	"net/http"

	brewmap "github.com/brewmap/brewmap/internal"
)

// filtersResponse lists the enabled location types.
type filtersResponse struct {
	Enabled []brewmap.LocationType `json:"enabled"`
}

func (s *server) handleGetFilters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, filtersResponse{Enabled: enabledTypes(s.deps.Filters.Current())})
}

// handlePutFilters replaces the service-wide filter set. Accepted as
// {"enabled": ["cafe", "roastery"]}; an empty list disables everything.
const maxFiltersBody = 4 << 10

func (s *server) handlePutFilters(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFiltersBody)

	var req filtersResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body: "+err.Error()))
		return
	}

	fs := make(brewmap.FilterSet, len(req.Enabled))
	for _, t := range req.Enabled {
		fs[t] = true
	}
	if err := s.deps.Filters.Replace(fs); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, filtersResponse{Enabled: enabledTypes(s.deps.Filters.Current())})
}

// enabledTypes returns the enabled types in the stable KnownTypes order.
func enabledTypes(fs brewmap.FilterSet) []brewmap.LocationType {
	out := make([]brewmap.LocationType, 0, len(fs))
	for _, t := range brewmap.KnownTypes {
		if fs.Enabled(t) {
			out = append(out, t)
		}
	}
	return out
}
