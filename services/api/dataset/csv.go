package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Column names of the merged table export.
const (
	ColDistrict = "ubigeo"
	ColName     = "name"
	ColVariable = "ldas_variable"
	ColSpecies  = "species"
	ColDate     = "epiweekstartdate"
	ColYear     = "year"
	ColWeek     = "week"
	ColDriver   = "ldas_value"
	ColResponse = "case_rate"
	ColDataType = "data_type"
)

var requiredColumns = []string{ColDistrict, ColVariable, ColSpecies, ColDate}

// LoadCSV reads observations from a CSV file and builds the Dataset.
func LoadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	obs, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return New(obs)
}

// ReadCSV parses the long-format table. Header names are matched
// case-insensitively; unknown columns are ignored.
func ReadCSV(r io.Reader) ([]Observation, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty csv")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}

	field := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	obs := make([]Observation, 0)
	line := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		ts, err := ParseDate(field(rec, ColDate))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		driver, err := ParseValue(field(rec, ColDriver))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid %s: %w", line, ColDriver, err)
		}
		response, err := ParseValue(field(rec, ColResponse))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid %s: %w", line, ColResponse, err)
		}

		o := Observation{
			District: field(rec, ColDistrict),
			Name:     field(rec, ColName),
			Variable: field(rec, ColVariable),
			Species:  field(rec, ColSpecies),
			Time:     ts,
			Driver:   driver,
			Response: response,
			DataType: strings.ToLower(field(rec, ColDataType)),
		}
		if y := field(rec, ColYear); y != "" {
			if o.Year, err = strconv.Atoi(y); err != nil {
				return nil, fmt.Errorf("line %d: invalid %s: %s", line, ColYear, y)
			}
		}
		if w := field(rec, ColWeek); w != "" {
			if o.Week, err = strconv.Atoi(w); err != nil {
				return nil, fmt.Errorf("line %d: invalid %s: %s", line, ColWeek, w)
			}
		}
		obs = append(obs, o)
	}
	return obs, nil
}

// ParseDate accepts plain dates and RFC3339 timestamps, normalized to UTC.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateTime, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// ParseValue converts a cell into an optional float. Empty cells, NaN
// markers and the -999 style sentinels are nulls.
func ParseValue(s string) (*float64, error) {
	switch strings.ToLower(s) {
	case "", "nan", "na", "null", "none":
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return NormalizeValue(&v), nil
}

// NormalizeValue maps NaN, infinities and sentinel values to nil.
func NormalizeValue(v *float64) *float64 {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v <= -900 {
		return nil
	}
	val := *v
	return &val
}
