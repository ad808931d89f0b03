// Package dataset holds the pre-merged LDAS / malaria observation table.
//
// A Dataset is built once at process start and never mutated afterwards, so
// a single instance can be shared by every request handler without locking.
package dataset

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

const (
	DataTypeRetrospective = "retrospective"
	DataTypeForecast      = "forecast"
)

// ErrDuplicate is returned when two observations share the same key.
var ErrDuplicate = errors.New("duplicate observation")

// Observation is one row of the long-format table.
type Observation struct {
	District string    `json:"ubigeo"`
	Name     string    `json:"name,omitempty"`
	Variable string    `json:"variable"`
	Species  string    `json:"species"`
	Time     time.Time `json:"ts"`
	Year     int       `json:"year,omitempty"`
	Week     int       `json:"week,omitempty"`
	Driver   *float64  `json:"driver"`
	Response *float64  `json:"response"`
	DataType string    `json:"data_type"`
}

// Key identifies an observation.
type Key struct {
	District string
	Variable string
	Species  string
	Time     time.Time
}

func (o Observation) Key() Key {
	return Key{District: o.District, Variable: o.Variable, Species: o.Species, Time: o.Time}
}

type sliceKey struct {
	variable string
	species  string
}

// Dataset is the immutable, indexed observation table.
type Dataset struct {
	slices    map[sliceKey]map[string][]Observation
	names     map[string]string
	variables []string
	districts []string
	species   []string
	size      int
}

// New validates the observations and builds the per-slice index. The input
// slice is copied; the caller may reuse it.
func New(obs []Observation) (*Dataset, error) {
	ds := &Dataset{
		slices: make(map[sliceKey]map[string][]Observation),
		names:  make(map[string]string),
	}

	seen := make(map[Key]struct{}, len(obs))
	variables := make(map[string]struct{})
	districts := make(map[string]struct{})
	species := make(map[string]struct{})

	for i, o := range obs {
		if err := validate(o); err != nil {
			return nil, fmt.Errorf("observation %d: %w", i, err)
		}
		o.Time = o.Time.UTC()
		if o.DataType == "" {
			o.DataType = DataTypeRetrospective
		}

		k := o.Key()
		if _, dup := seen[k]; dup {
			return nil, fmt.Errorf("%w: district=%s variable=%s species=%s ts=%s",
				ErrDuplicate, o.District, o.Variable, o.Species, o.Time.Format(time.DateOnly))
		}
		seen[k] = struct{}{}

		sk := sliceKey{variable: o.Variable, species: o.Species}
		byDistrict, ok := ds.slices[sk]
		if !ok {
			byDistrict = make(map[string][]Observation)
			ds.slices[sk] = byDistrict
		}
		byDistrict[o.District] = append(byDistrict[o.District], o)

		if o.Name != "" {
			if _, ok := ds.names[o.District]; !ok {
				ds.names[o.District] = o.Name
			}
		}
		variables[o.Variable] = struct{}{}
		districts[o.District] = struct{}{}
		species[o.Species] = struct{}{}
	}

	for _, byDistrict := range ds.slices {
		for _, group := range byDistrict {
			sort.Slice(group, func(a, b int) bool { return group[a].Time.Before(group[b].Time) })
		}
	}

	ds.variables = sortedKeys(variables)
	ds.districts = sortedKeys(districts)
	ds.species = sortedKeys(species)
	ds.size = len(obs)
	return ds, nil
}

func validate(o Observation) error {
	switch {
	case o.District == "":
		return errors.New("district is required")
	case o.Variable == "":
		return errors.New("variable is required")
	case o.Species == "":
		return errors.New("species is required")
	case o.Time.IsZero():
		return errors.New("timestamp is required")
	}
	return nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of observations.
func (d *Dataset) Len() int { return d.size }

// Variables returns the distinct LDAS variable names, sorted.
func (d *Dataset) Variables() []string { return append([]string(nil), d.variables...) }

// Districts returns the distinct district identifiers, sorted.
func (d *Dataset) Districts() []string { return append([]string(nil), d.districts...) }

// Species returns the distinct species codes, sorted.
func (d *Dataset) Species() []string { return append([]string(nil), d.species...) }

func (d *Dataset) HasVariable(v string) bool { return contains(d.variables, v) }
func (d *Dataset) HasDistrict(id string) bool { return contains(d.districts, id) }
func (d *Dataset) HasSpecies(s string) bool  { return contains(d.species, s) }

func contains(sorted []string, v string) bool {
	i := sort.SearchStrings(sorted, v)
	return i < len(sorted) && sorted[i] == v
}

// DistrictName returns the first non-empty name seen for the district.
func (d *Dataset) DistrictName(id string) string { return d.names[id] }

// Slice returns the (variable, species) slice grouped by district. Each
// group is sorted by time ascending. The returned slices are shared and
// must not be modified.
func (d *Dataset) Slice(variable, species string) map[string][]Observation {
	byDistrict := d.slices[sliceKey{variable: variable, species: species}]
	out := make(map[string][]Observation, len(byDistrict))
	for id, group := range byDistrict {
		out[id] = group
	}
	return out
}

// Series returns the sorted observations of a single (district, variable,
// species) combination, or nil when there are none.
func (d *Dataset) Series(district, variable, species string) []Observation {
	return d.slices[sliceKey{variable: variable, species: species}][district]
}
