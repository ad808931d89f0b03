package geo

import (
	"math"
	"sort"

	"github.com/paulmach/orb/geojson"
)

const (
	NullColor       = "grey"
	fillOpacity     = 0.8
	nullFillOpacity = 0.5
	DefaultClasses  = 5
)

// viridis5 samples the viridis colormap at five equal steps.
var viridis5 = []string{"#440154", "#3b528b", "#21918c", "#5ec962", "#fde725"}

// JoinResult is the geometry layer with correlation values attached.
type JoinResult struct {
	Features *geojson.FeatureCollection
	// Matched lists district ids that received a value.
	Matched []string
	// Unmatched lists correlation keys with no geometry.
	Unmatched []string
}

// Join left-joins values onto districts by exact id. Every district becomes
// a feature; those without a value carry a null correlation. Values whose
// key has no district are reported in Unmatched.
func Join(districts []District, values map[string]*float64) JoinResult {
	fc := geojson.NewFeatureCollection()
	known := make(map[string]struct{}, len(districts))
	matched := make([]string, 0, len(values))

	for _, d := range districts {
		known[d.ID] = struct{}{}

		f := geojson.NewFeature(d.Geometry)
		f.ID = d.ID
		f.Properties["id"] = d.ID
		f.Properties["name"] = d.Name

		v, ok := values[d.ID]
		f.Properties["matched"] = ok
		if ok && v != nil {
			f.Properties["correlation"] = *v
		} else {
			f.Properties["correlation"] = nil
		}
		if ok {
			matched = append(matched, d.ID)
		}
		fc.Append(f)
	}

	unmatched := make([]string, 0)
	for id := range values {
		if _, ok := known[id]; !ok {
			unmatched = append(unmatched, id)
		}
	}
	sort.Strings(matched)
	sort.Strings(unmatched)

	return JoinResult{Features: fc, Matched: matched, Unmatched: unmatched}
}

// Breaks returns the k-1 inner equal-interval class boundaries over the
// non-null values, or nil when there are none.
func Breaks(values []float64, k int) []float64 {
	if len(values) == 0 || k < 2 {
		return nil
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	step := (hi - lo) / float64(k)
	out := make([]float64, k-1)
	for i := range out {
		out[i] = lo + step*float64(i+1)
	}
	return out
}

// ClassOf returns the class index of v given the inner breaks.
func ClassOf(v float64, breaks []float64) int {
	for i, b := range breaks {
		if v < b {
			return i
		}
	}
	return len(breaks)
}

// Classify assigns each feature an equal-interval class and fill color from
// its correlation property. Features with a null correlation get a null
// class and the grey null color. It returns the breaks used.
func Classify(fc *geojson.FeatureCollection, k int) []float64 {
	if k <= 0 {
		k = DefaultClasses
	}

	present := make([]float64, 0, len(fc.Features))
	for _, f := range fc.Features {
		if v, ok := f.Properties["correlation"].(float64); ok {
			present = append(present, v)
		}
	}
	breaks := Breaks(present, k)

	for _, f := range fc.Features {
		v, ok := f.Properties["correlation"].(float64)
		if !ok {
			f.Properties["class"] = nil
			f.Properties["fill"] = NullColor
			f.Properties["fill_opacity"] = nullFillOpacity
			continue
		}
		class := ClassOf(v, breaks)
		f.Properties["class"] = class
		f.Properties["fill"] = palette(class, k)
		f.Properties["fill_opacity"] = fillOpacity
	}
	return breaks
}

func palette(class, k int) string {
	if k <= 1 {
		return viridis5[0]
	}
	i := int(math.Round(float64(class) * float64(len(viridis5)-1) / float64(k-1)))
	return viridis5[i]
}
