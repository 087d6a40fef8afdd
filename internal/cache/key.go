package cache

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	brewmap "github.com/brewmap/brewmap/internal"
)

// keyPrecision is the number of decimal places bounds are rounded to before
// keying. Three decimals is ~111m at the equator, coarse enough that small
// map pans reuse the same entry.
const keyPrecision = 3

// Key produces a deterministic cache key for a viewport and filter set:
// "south,west,north,east|type1,type2". Bounds are rounded to three decimal
// places (half away from zero) and formatted fixed-point; enabled filter
// names are sorted lexicographically. Identical effective inputs always
// yield identical keys regardless of map iteration order.
func Key(b brewmap.Bounds, filters brewmap.FilterSet) (string, error) {
	if !b.Valid() {
		return "", fmt.Errorf("%w: %+v", brewmap.ErrMalformedBounds, b)
	}

	var sb strings.Builder
	sb.Grow(64)
	for i, v := range [4]float64{b.South, b.West, b.North, b.East} {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(formatCoord(v))
	}
	sb.WriteByte('|')

	names := make([]string, 0, len(filters))
	for typ, on := range filters {
		if on {
			names = append(names, string(typ))
		}
	}
	sort.Strings(names)
	sb.WriteString(strings.Join(names, ","))

	return sb.String(), nil
}

// formatCoord rounds v to keyPrecision decimals and renders it fixed-point.
// math.Round rounds halves away from zero; the tie rule only matters for
// coordinates landing exactly on a half-thousandth, which real GPS data
// never guarantees, but the cache must at least be internally consistent.
func formatCoord(v float64) string {
	shift := math.Pow10(keyPrecision)
	rounded := math.Round(v*shift) / shift
	return strconv.FormatFloat(rounded, 'f', keyPrecision, 64)
}
