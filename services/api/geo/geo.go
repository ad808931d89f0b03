// Package geo loads district polygons and joins correlation values onto
// them to produce a render-ready choropleth layer.
package geo

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// District is one polygon feature keyed by ubigeo.
type District struct {
	ID       string
	Name     string
	Geometry orb.Geometry
}

// LoadOptions selects the feature properties that hold the id and name.
type LoadOptions struct {
	IDProperty   string
	NameProperty string
	// PadWidth left-pads all-digit ids with zeros when > 0.
	PadWidth int
}

func (o LoadOptions) withDefaults() LoadOptions {
	if o.IDProperty == "" {
		o.IDProperty = "id"
	}
	if o.NameProperty == "" {
		o.NameProperty = "name"
	}
	return o
}

// LoadGeoJSON reads a FeatureCollection file.
func LoadGeoJSON(path string, opts LoadOptions) ([]District, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	districts, err := ParseGeoJSON(data, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return districts, nil
}

// ParseGeoJSON decodes a FeatureCollection into districts sorted by id.
func ParseGeoJSON(data []byte, opts LoadOptions) ([]District, error) {
	opts = opts.withDefaults()

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}

	seen := make(map[string]struct{}, len(fc.Features))
	districts := make([]District, 0, len(fc.Features))
	for i, f := range fc.Features {
		id := propertyString(f.Properties[opts.IDProperty])
		if id == "" {
			id = propertyString(f.ID)
		}
		if id == "" {
			return nil, fmt.Errorf("feature %d: missing %q property", i, opts.IDProperty)
		}
		id = PadID(id, opts.PadWidth)

		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("feature %d: duplicate district id %q", i, id)
		}
		seen[id] = struct{}{}

		districts = append(districts, District{
			ID:       id,
			Name:     propertyString(f.Properties[opts.NameProperty]),
			Geometry: f.Geometry,
		})
	}

	sort.Slice(districts, func(a, b int) bool { return districts[a].ID < districts[b].ID })
	return districts, nil
}

// ParseGeometry decodes a single GeoJSON geometry object.
func ParseGeometry(data []byte) (orb.Geometry, error) {
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, err
	}
	if g.Geometry() == nil {
		return nil, errors.New("empty geometry")
	}
	return g.Geometry(), nil
}

// PadID left-pads an all-digit id with zeros to width. Other ids are
// returned unchanged.
func PadID(id string, width int) string {
	if width <= 0 || len(id) >= width {
		return id
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return id
		}
	}
	return strings.Repeat("0", width-len(id)) + id
}

func propertyString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return fmt.Sprint(val)
	}
}
