package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/ldas-malaria-viewer/services/api/dataset"
	"github.com/02loveslollipop/ldas-malaria-viewer/services/api/observability"
)

const (
	rainfall = "Rainfall(mm)"
	pFal     = "p_fal"
)

func ptr(v float64) *float64 { return &v }

func weekFrom(start time.Time, i int) time.Time { return start.AddDate(0, 0, 7*i) }

var jan2015 = time.Date(2015, 1, 4, 0, 0, 0, 0, time.UTC)

// tenPoint has response i and driver 100+i for weeks 0..9.
func tenPoint(t *testing.T) *dataset.Dataset {
	t.Helper()
	obs := make([]dataset.Observation, 0, 10)
	for i := 0; i < 10; i++ {
		obs = append(obs, dataset.Observation{
			District: "160101",
			Variable: rainfall,
			Species:  pFal,
			Time:     weekFrom(jan2015, i),
			Driver:   ptr(100 + float64(i)),
			Response: ptr(float64(i)),
		})
	}
	ds, err := dataset.New(obs)
	require.NoError(t, err)
	return ds
}

func values(vs []*float64) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		if v == nil {
			out[i] = nil
			continue
		}
		out[i] = *v
	}
	return out
}

func TestShift(t *testing.T) {
	in := []*float64{ptr(1), ptr(2), ptr(3), ptr(4)}

	assert.Equal(t, []any{1.0, 2.0, 3.0, 4.0}, values(Shift(in, 0)))
	assert.Equal(t, []any{nil, nil, 1.0, 2.0}, values(Shift(in, 2)))
	assert.Equal(t, []any{4.0, nil, nil, nil}, values(Shift(in, -3)))
	assert.Equal(t, []any{nil, nil, nil, nil}, values(Shift(in, 10)))
	assert.Empty(t, Shift(nil, 3))

	// input untouched
	assert.Equal(t, []any{1.0, 2.0, 3.0, 4.0}, values(in))
}

func TestRanks_AverageTies(t *testing.T) {
	assert.Equal(t, []float64{1, 2.5, 2.5, 4}, Ranks([]float64{10, 20, 20, 30}))
	assert.Equal(t, []float64{3, 1, 2}, Ranks([]float64{9, -1, 0}))
	assert.Equal(t, []float64{2, 2, 2}, Ranks([]float64{5, 5, 5}))
}

func TestSpearman(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6}

	r, err := Spearman(x, []float64{1, 4, 9, 16, 25, 36})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r, 1e-9)

	r, err = Spearman(x, []float64{6, 5, 4, 3, 2, 1})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, r, 1e-9)

	r, err = Spearman([]float64{1, 2, 3, 4, 5}, []float64{5, 6, 7, 8, 7})
	require.NoError(t, err)
	assert.InDelta(t, 0.8207826816681233, r, 1e-9)
}

func TestSpearman_Errors(t *testing.T) {
	_, err := Spearman([]float64{1}, []float64{2})
	require.ErrorIs(t, err, ErrInsufficientData)

	_, err = Spearman(nil, nil)
	require.ErrorIs(t, err, ErrInsufficientData)

	_, err = Spearman([]float64{1, 2, 3}, []float64{4, 4, 4})
	require.ErrorIs(t, err, ErrZeroVariance)

	_, err = Spearman([]float64{1, 2}, []float64{1})
	require.Error(t, err)
}

func TestExtract_LagShift(t *testing.T) {
	ds := tenPoint(t)

	tests := []struct {
		lag  int
		want []any
	}{
		{0, []any{0.0, 1.0, 2.0, 3.0, 4.0, 5.0, 6.0, 7.0, 8.0, 9.0}},
		{2, []any{nil, nil, 0.0, 1.0, 2.0, 3.0, 4.0, 5.0, 6.0, 7.0}},
		{-3, []any{3.0, 4.0, 5.0, 6.0, 7.0, 8.0, 9.0, nil, nil, nil}},
	}
	for _, tt := range tests {
		s, err := Extract(ds, Request{Variable: rainfall, District: "160101", Species: pFal, Lag: tt.lag})
		require.NoError(t, err)

		require.Equal(t, 10, s.Len())
		assert.Len(t, s.Driver, 10)
		assert.Len(t, s.Response, 10)
		assert.Len(t, s.DataTypes, 10)
		assert.Equal(t, tt.want, values(s.Response), "lag %d", tt.lag)
		// driver is never shifted
		assert.InDelta(t, 100.0, *s.Driver[0], 1e-12)
		for i := 1; i < s.Len(); i++ {
			assert.True(t, s.Timestamps[i].After(s.Timestamps[i-1]))
		}
	}
}

func TestExtract_WindowAndShiftOrder(t *testing.T) {
	start := time.Date(2009, 12, 13, 0, 0, 0, 0, time.UTC)
	obs := make([]dataset.Observation, 0, 8)
	for i := 0; i < 8; i++ {
		obs = append(obs, dataset.Observation{
			District: "160101", Variable: rainfall, Species: pFal,
			Time: weekFrom(start, i), Driver: ptr(float64(i)), Response: ptr(float64(i)),
		})
	}
	ds, err := dataset.New(obs)
	require.NoError(t, err)

	req := Request{Variable: rainfall, District: "160101", Species: pFal, Lag: 1}

	shifted, err := Extract(ds, req)
	require.NoError(t, err)
	// 2009-12-13, -20, -27 fall before the default window
	require.Equal(t, 5, shifted.Len())
	assert.Equal(t, time.Date(2010, 1, 3, 0, 0, 0, 0, time.UTC), shifted.Timestamps[0])
	assert.Equal(t, []any{2.0, 3.0, 4.0, 5.0, 6.0}, values(shifted.Response))

	req.Order = WindowThenShift
	windowed, err := Extract(ds, req)
	require.NoError(t, err)
	require.Equal(t, 5, windowed.Len())
	assert.Equal(t, []any{nil, 3.0, 4.0, 5.0, 6.0}, values(windowed.Response))

	req.Order = ShiftThenWindow
	req.Window = Window{Start: weekFrom(start, 5), End: weekFrom(start, 6)}
	narrow, err := Extract(ds, req)
	require.NoError(t, err)
	assert.Equal(t, []any{5.0, 6.0}, values(narrow.Driver))
	assert.Equal(t, []any{4.0, 5.0}, values(narrow.Response))
}

func TestExtract_NotFound(t *testing.T) {
	ds := tenPoint(t)

	_, err := Extract(ds, Request{Variable: "Tair(K)", District: "160101"})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "variable")

	_, err = Extract(ds, Request{Variable: rainfall, District: "999999"})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = Extract(ds, Request{Variable: rainfall, District: "160101", Species: "p_vivax"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExtract_EmptyCombination(t *testing.T) {
	ds, err := dataset.New([]dataset.Observation{
		{District: "160101", Variable: rainfall, Species: pFal, Time: jan2015},
		{District: "160102", Variable: "Tair(K)", Species: pFal, Time: jan2015},
	})
	require.NoError(t, err)

	s, err := Extract(ds, Request{Variable: "Tair(K)", District: "160101", Species: pFal})
	require.NoError(t, err)
	assert.Zero(t, s.Len())
	assert.Empty(t, s.Response)
}

func TestExtract_AllNullResponse(t *testing.T) {
	obs := make([]dataset.Observation, 0, 6)
	for i := 0; i < 6; i++ {
		obs = append(obs, dataset.Observation{
			District: "160101", Variable: rainfall, Species: pFal,
			Time: weekFrom(jan2015, i), Driver: ptr(float64(i)),
		})
	}
	ds, err := dataset.New(obs)
	require.NoError(t, err)

	s, err := Extract(ds, Request{Variable: rainfall, District: "160101", Lag: 2})
	require.NoError(t, err)
	assert.Equal(t, []any{nil, nil, nil, nil, nil, nil}, values(s.Response))
	assert.Nil(t, AggregateCorrelations(ds, rainfall, pFal, 2)["160101"])
}

// scenario builds three districts of 52 weekly points: A correlated, B with
// an all-null response and C correlated but typically missing from geometry.
func scenario(t *testing.T) *dataset.Dataset {
	t.Helper()
	obs := make([]dataset.Observation, 0, 3*52)
	for i := 0; i < 52; i++ {
		ts := weekFrom(jan2015, i)
		obs = append(obs,
			dataset.Observation{District: "A", Name: "Alpha", Variable: rainfall, Species: pFal, Time: ts,
				Driver: ptr(float64(i)), Response: ptr(float64(i + (i*17)%37))},
			dataset.Observation{District: "B", Name: "Beta", Variable: rainfall, Species: pFal, Time: ts,
				Driver: ptr(float64(i))},
			dataset.Observation{District: "C", Name: "Gamma", Variable: rainfall, Species: pFal, Time: ts,
				Driver: ptr(float64(i)), Response: ptr(float64(2 * i))},
			dataset.Observation{District: "A", Variable: rainfall, Species: "p_vivax", Time: ts,
				Driver: ptr(float64(i)), Response: ptr(float64(i))},
		)
	}
	ds, err := dataset.New(obs)
	require.NoError(t, err)
	return ds
}

func TestAggregateCorrelations_Scenario(t *testing.T) {
	ds := scenario(t)

	corr := AggregateCorrelations(ds, rainfall, pFal, 0)
	require.Len(t, corr, 3)

	require.NotNil(t, corr["A"])
	assert.InDelta(t, 0.8, *corr["A"], 0.01)
	assert.Contains(t, corr, "B")
	assert.Nil(t, corr["B"])
	require.NotNil(t, corr["C"])
	assert.InDelta(t, 1.0, *corr["C"], 1e-9)

	vivax := AggregateCorrelations(ds, rainfall, "p_vivax", 0)
	assert.Len(t, vivax, 1)
	assert.Contains(t, vivax, "A")

	assert.Empty(t, AggregateCorrelations(ds, "Tair(K)", pFal, 0))
}

func TestAggregateCorrelations_LagAlignsLeadingResponse(t *testing.T) {
	const n = 40
	driver := make([]float64, n)
	for i := range driver {
		driver[i] = float64((i * 7) % 13)
	}
	obs := make([]dataset.Observation, 0, n)
	for i := 0; i < n; i++ {
		o := dataset.Observation{
			District: "160101", Variable: rainfall, Species: pFal,
			Time: weekFrom(jan2015, i), Driver: ptr(driver[i]),
		}
		// the response leads the driver by two weeks
		if i+2 < n {
			o.Response = ptr(driver[i+2])
		}
		obs = append(obs, o)
	}
	ds, err := dataset.New(obs)
	require.NoError(t, err)

	aligned := AggregateCorrelations(ds, rainfall, pFal, 2)["160101"]
	require.NotNil(t, aligned)
	assert.InDelta(t, 1.0, *aligned, 1e-9)

	unaligned := AggregateCorrelations(ds, rainfall, pFal, 0)["160101"]
	require.NotNil(t, unaligned)
	assert.Less(t, *unaligned, 0.99)
}

func TestAggregateCorrelations_TooFewPairs(t *testing.T) {
	ds, err := dataset.New([]dataset.Observation{
		{District: "160101", Variable: rainfall, Species: pFal, Time: weekFrom(jan2015, 0), Driver: ptr(1), Response: ptr(1)},
		{District: "160101", Variable: rainfall, Species: pFal, Time: weekFrom(jan2015, 1), Driver: ptr(2), Response: ptr(3)},
		{District: "160101", Variable: rainfall, Species: pFal, Time: weekFrom(jan2015, 2), Response: ptr(5)},
	})
	require.NoError(t, err)

	lag0 := AggregateCorrelations(ds, rainfall, pFal, 0)
	require.NotNil(t, lag0["160101"])
	assert.InDelta(t, 1.0, *lag0["160101"], 1e-9)

	// shifting by one leaves a single valid pair
	lag1 := AggregateCorrelations(ds, rainfall, pFal, 1)
	assert.Contains(t, lag1, "160101")
	assert.Nil(t, lag1["160101"])

	for _, r := range AggregateCorrelations(ds, rainfall, pFal, 100) {
		assert.Nil(t, r)
	}
}

func TestResults_SortedWithNames(t *testing.T) {
	ds := scenario(t)
	rows := Results(ds, AggregateCorrelations(ds, rainfall, pFal, 0))
	require.Len(t, rows, 3)
	assert.Equal(t, "A", rows[0].District)
	assert.Equal(t, "Alpha", rows[0].Name)
	assert.Equal(t, "B", rows[1].District)
	assert.Nil(t, rows[1].Correlation)
}

func TestParseShiftOrder(t *testing.T) {
	o, err := ParseShiftOrder("")
	require.NoError(t, err)
	assert.Equal(t, ShiftThenWindow, o)

	o, err = ParseShiftOrder("WINDOW_THEN_SHIFT")
	require.NoError(t, err)
	assert.Equal(t, WindowThenShift, o)

	_, err = ParseShiftOrder("sideways")
	require.Error(t, err)
}

func TestService_CachesCorrelations(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	svc := NewService(scenario(t), ServiceConfig{Metrics: metrics, CacheTTL: time.Minute})
	defer svc.Close()

	first, err := svc.Correlations(rainfall, "", 0)
	require.NoError(t, err)
	second, err := svc.Correlations(rainfall, pFal, 0)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CorrelationCache.WithLabelValues("miss")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CorrelationCache.WithLabelValues("hit")), 1e-9)

	_, err = svc.Correlations(rainfall, pFal, 3)
	require.NoError(t, err)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.CorrelationCache.WithLabelValues("miss")), 1e-9)
}

func TestService_NotFound(t *testing.T) {
	svc := NewService(scenario(t), ServiceConfig{})
	defer svc.Close()

	_, err := svc.Correlations("Tair(K)", pFal, 0)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Extract(Request{Variable: rainfall, District: "Z"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestService_DefaultsApplyToExtract(t *testing.T) {
	svc := NewService(tenPoint(t), ServiceConfig{
		Window: Window{Start: weekFrom(jan2015, 2), End: weekFrom(jan2015, 4)},
		Order:  WindowThenShift,
	})
	defer svc.Close()

	s, err := svc.Extract(Request{Variable: rainfall, District: "160101", Lag: 1})
	require.NoError(t, err)
	assert.Equal(t, []any{nil, 2.0, 3.0}, values(s.Response))
	assert.False(t, math.IsNaN(*s.Driver[0]))
}
