package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	brewmap "github.com/brewmap/brewmap/internal"
)

const (
	defaultNearbyRadius = 1000  // meters
	maxNearbyRadius     = 10000 // meters
)

// locationsResponse is the envelope for viewport query results.
type locationsResponse struct {
	Locations []brewmap.Location `json:"locations"`
	Count     int                `json:"count"`
}

// handleLocations serves GET /api/v1/locations. The viewport arrives as
// south, west, north, east query parameters; an optional types parameter
// narrows the result to a comma-separated list of location types.
func (s *server) handleLocations(w http.ResponseWriter, r *http.Request) {
	bounds, err := parseBounds(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	types, err := parseTypes(r.URL.Query().Get("types"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	locs, err := s.deps.Locations.Query(r.Context(), bounds, types)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, locationsResponse{Locations: locs, Count: len(locs)})
}

// handleNearby serves GET /api/v1/nearby: a point plus radius search, for
// clients that know their position but not a viewport.
func (s *server) handleNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := parseFloat(q, "lat")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	lon, err := parseFloat(q, "lon")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	radius := float64(defaultNearbyRadius)
	if raw := q.Get("radius"); raw != "" {
		radius, err = strconv.ParseFloat(raw, 64)
		if err != nil || radius <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse("invalid radius"))
			return
		}
		if radius > maxNearbyRadius {
			radius = maxNearbyRadius
		}
	}
	types, err := parseTypes(q.Get("types"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	locs, err := s.deps.Locations.Query(r.Context(), brewmap.BoundsAround(lat, lon, radius), types)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, locationsResponse{Locations: locs, Count: len(locs)})
}

// typeInfo describes one known location type for clients building legends.
type typeInfo struct {
	Type  brewmap.LocationType `json:"type"`
	Label string               `json:"label"`
}

func (s *server) handleTypes(w http.ResponseWriter, _ *http.Request) {
	out := make([]typeInfo, 0, len(brewmap.KnownTypes))
	for _, t := range brewmap.KnownTypes {
		out = append(out, typeInfo{Type: t, Label: t.Label()})
	}
	writeJSON(w, http.StatusOK, out)
}

// parseBounds extracts a viewport from query parameters.
func parseBounds(r *http.Request) (brewmap.Bounds, error) {
	q := r.URL.Query()
	south, err := parseFloat(q, "south")
	if err != nil {
		return brewmap.Bounds{}, err
	}
	west, err := parseFloat(q, "west")
	if err != nil {
		return brewmap.Bounds{}, err
	}
	north, err := parseFloat(q, "north")
	if err != nil {
		return brewmap.Bounds{}, err
	}
	east, err := parseFloat(q, "east")
	if err != nil {
		return brewmap.Bounds{}, err
	}
	if south >= north {
		return brewmap.Bounds{}, errors.New("south must be less than north")
	}
	return brewmap.Bounds{South: south, West: west, North: north, East: east}, nil
}

func parseFloat(q map[string][]string, key string) (float64, error) {
	vals := q[key]
	if len(vals) == 0 || vals[0] == "" {
		return 0, errors.New("missing parameter: " + key)
	}
	v, err := strconv.ParseFloat(vals[0], 64)
	if err != nil {
		return 0, errors.New("invalid parameter: " + key)
	}
	return v, nil
}

// parseTypes converts a comma-separated types parameter into a FilterSet.
// An empty parameter returns nil, meaning the service-wide filters apply.
func parseTypes(raw string) (brewmap.FilterSet, error) {
	if raw == "" {
		return nil, nil
	}
	fs := make(brewmap.FilterSet)
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		typ := brewmap.LocationType(name)
		known := false
		for _, k := range brewmap.KnownTypes {
			if typ == k {
				known = true
				break
			}
		}
		if !known {
			return nil, errors.New("unknown location type: " + name)
		}
		fs[typ] = true
	}
	if len(fs) == 0 {
		return nil, nil
	}
	return fs, nil
}

// respondError maps a service error onto an HTTP response. Cancellation by
// a disconnected client writes nothing; a superseded query reports 409 so
// callers can tell it apart from a real failure.
func (s *server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		return
	}
	writeJSON(w, errorStatus(err), errorResponse(err.Error()))
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func errorResponse(msg string) apiError {
	var e apiError
	e.Error.Message = msg
	e.Error.Type = "invalid_request_error"
	return e
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, brewmap.ErrBadRequest), errors.Is(err, brewmap.ErrMalformedBounds):
		return http.StatusBadRequest
	case errors.Is(err, brewmap.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, brewmap.ErrConflict), errors.Is(err, brewmap.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, brewmap.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, brewmap.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// jsonCT is a pre-allocated header value slice. Direct map assignment
// (w.Header()["Content-Type"] = jsonCT) avoids the []string{v} alloc
// that Header.Set creates on every call. Saves 1 alloc/req.
var jsonCT = []string{"application/json"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
