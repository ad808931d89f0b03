package analysis

import (
	"sort"

	"github.com/02loveslollipop/ldas-malaria-viewer/services/api/dataset"
)

// Correlations maps district id to its lagged rank correlation. A nil value
// means the correlation is undefined for that district.
type Correlations map[string]*float64

// CorrelationResult is one row of the per-district correlation table.
type CorrelationResult struct {
	District    string   `json:"district"`
	Name        string   `json:"name,omitempty"`
	Correlation *float64 `json:"correlation"`
}

// AggregateCorrelations computes, for every district in the (variable,
// species) slice, the Spearman correlation between the lag-shifted response
// and the driver. Every district of the slice appears in the result.
func AggregateCorrelations(ds *dataset.Dataset, variable, species string, lag int) Correlations {
	slice := ds.Slice(variable, species)
	out := make(Correlations, len(slice))
	for district, obs := range slice {
		out[district] = districtCorrelation(obs, lag)
	}
	return out
}

func districtCorrelation(obs []dataset.Observation, lag int) *float64 {
	driver := make([]*float64, len(obs))
	response := make([]*float64, len(obs))
	for i, o := range obs {
		driver[i] = o.Driver
		response[i] = o.Response
	}

	x, y := pairs(driver, Shift(response, lag))
	r, err := Spearman(x, y)
	if err != nil {
		return nil
	}
	return &r
}

// Results flattens the mapping into rows sorted by district id.
func Results(ds *dataset.Dataset, corr Correlations) []CorrelationResult {
	out := make([]CorrelationResult, 0, len(corr))
	for district, r := range corr {
		out = append(out, CorrelationResult{
			District:    district,
			Name:        ds.DistrictName(district),
			Correlation: r,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].District < out[j].District })
	return out
}
