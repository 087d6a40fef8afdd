// Package brewmap defines domain types for the brewmap location service.
// This package has no project imports -- it is the dependency root.
package brewmap

import (
	"context"
	"math"
	"time"
)

// --- Geometry ---

// Bounds is a geographic bounding box in decimal degrees (WGS 84).
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Valid reports whether all four coordinates are finite numbers.
// NaN or infinite bounds indicate a caller bug, not a user error.
func (b Bounds) Valid() bool {
	for _, v := range []float64{b.South, b.West, b.North, b.East} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// metersPerDegreeLat is the approximate length of one degree of latitude.
const metersPerDegreeLat = 111_320.0

// BoundsAround returns a bounding box centered on (lat, lon) extending
// radius meters in each direction. Longitude span widens toward the poles;
// latitude is clamped to the valid range.
func BoundsAround(lat, lon, radius float64) Bounds {
	dLat := radius / metersPerDegreeLat
	// Longitude degrees shrink with cos(lat); guard the cos(90°) singularity.
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	dLon := radius / (metersPerDegreeLat * cosLat)
	return Bounds{
		South: math.Max(lat-dLat, -90),
		West:  lon - dLon,
		North: math.Min(lat+dLat, 90),
		East:  lon + dLon,
	}
}

// --- Location types ---

// LocationType classifies a coffee location.
type LocationType string

const (
	TypeCafe     LocationType = "cafe"
	TypeShop     LocationType = "shop"
	TypeRoastery LocationType = "roastery"
	TypeSandwich LocationType = "sandwich"
)

// KnownTypes lists all location types in display order.
var KnownTypes = []LocationType{TypeCafe, TypeShop, TypeRoastery, TypeSandwich}

// Label returns a human-readable name for the type.
func (t LocationType) Label() string {
	switch t {
	case TypeCafe:
		return "Café"
	case TypeShop:
		return "Coffee Shop"
	case TypeRoastery:
		return "Roastery"
	case TypeSandwich:
		return "Sandwich Bar"
	default:
		return string(t)
	}
}

// ClassifyTags maps an OSM tag set to a location type. Rules are evaluated
// in strict priority order; the first match wins. An element tagged both
// craft=roaster and shop=coffee is a roastery.
func ClassifyTags(tags map[string]string) LocationType {
	switch {
	case tags["craft"] == "roaster":
		return TypeRoastery
	case tags["shop"] == "coffee":
		return TypeShop
	case tags["amenity"] == "fast_food" && tags["cuisine"] == "sandwich":
		return TypeSandwich
	default:
		return TypeCafe
	}
}

// --- Raw elements ---

// Element is a raw location element as returned by the geo query transport.
// Nodes carry direct coordinates; ways and relations carry a centroid.
type Element struct {
	Kind   string            `json:"type"` // "node", "way", "relation"
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat,omitempty"`
	Lon    *float64          `json:"lon,omitempty"`
	Center *Center           `json:"center,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// Center is a centroid coordinate for elements without a direct position.
type Center struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Coordinates resolves the element's position. Direct coordinates take
// precedence over the centroid even when both are present. ok is false
// when the element carries neither.
func (e Element) Coordinates() (lat, lon float64, ok bool) {
	if e.Lat != nil && e.Lon != nil {
		return *e.Lat, *e.Lon, true
	}
	if e.Center != nil {
		return e.Center.Lat, e.Center.Lon, true
	}
	return 0, 0, false
}

// --- Locations ---

// Location is a classified coffee location ready to serve to clients.
type Location struct {
	ID   int64             `json:"id"`
	Kind string            `json:"kind"`
	Type LocationType      `json:"type"`
	Name string            `json:"name,omitempty"`
	Lat  float64           `json:"lat"`
	Lon  float64           `json:"lon"`
	Tags map[string]string `json:"tags,omitempty"`
}

// --- Filters ---

// FilterSet maps location types to their enabled state. A type absent from
// the set is disabled. The zero value disables everything.
type FilterSet map[LocationType]bool

// DefaultFilters returns a filter set with every known type enabled.
func DefaultFilters() FilterSet {
	fs := make(FilterSet, len(KnownTypes))
	for _, t := range KnownTypes {
		fs[t] = true
	}
	return fs
}

// Enabled reports whether t is enabled.
func (fs FilterSet) Enabled(t LocationType) bool { return fs[t] }

// Clone returns an independent copy of the filter set.
func (fs FilterSet) Clone() FilterSet {
	out := make(FilterSet, len(fs))
	for t, on := range fs {
		out[t] = on
	}
	return out
}

// --- Favorites ---

// Favorite is a saved location pinned by a client device.
type Favorite struct {
	ID         string       `json:"id"`
	DeviceID   string       `json:"device_id"`
	LocationID int64        `json:"location_id"`
	Name       string       `json:"name,omitempty"`
	Type       LocationType `json:"type"`
	Lat        float64      `json:"lat"`
	Lon        float64      `json:"lon"`
	CreatedAt  time.Time    `json:"created_at"`
}

// --- Query log ---

// QueryRecord captures one upstream viewport query for diagnostics.
type QueryRecord struct {
	ID          string    `json:"id"`
	Bounds      Bounds    `json:"bounds"`
	Mirror      string    `json:"mirror,omitempty"`
	ResultCount int       `json:"result_count"`
	CacheHit    bool      `json:"cache_hit"`
	LatencyMs   int       `json:"latency_ms"`
	RequestID   string    `json:"request_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// --- Context keys ---

type contextKey int

const ctxKeyMeta contextKey = 0

// requestMeta bundles per-request values into a single context allocation.
type requestMeta struct {
	RequestID string
}

// ContextWithRequestID stores a request ID in the context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyMeta, &requestMeta{RequestID: id})
}

// RequestIDFromContext extracts the request ID from context, or "".
func RequestIDFromContext(ctx context.Context) string {
	if m, ok := ctx.Value(ctxKeyMeta).(*requestMeta); ok {
		return m.RequestID
	}
	return ""
}
