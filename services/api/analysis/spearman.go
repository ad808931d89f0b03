// Package analysis computes the lag-shifted series and per-district rank
// correlations served to the line plot and the choropleth.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrInsufficientData means fewer than two valid pairs remain.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrZeroVariance means one side of the pairs is constant.
	ErrZeroVariance = errors.New("zero variance")
)

// Shift moves values forward by lag positions: out[i] = values[i-lag].
// Positions without a source value are nil. The length is preserved.
func Shift(values []*float64, lag int) []*float64 {
	out := make([]*float64, len(values))
	for i := range out {
		j := i - lag
		if j >= 0 && j < len(values) {
			out[i] = values[j]
		}
	}
	return out
}

// Ranks returns 1-based ranks, assigning tied values their average rank.
func Ranks(values []float64) []float64 {
	n := len(values)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i + 1
		for j < n && values[order[j]] == values[order[i]] {
			j++
		}
		// positions i..j-1 share ranks i+1..j
		avg := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			ranks[order[k]] = avg
		}
		i = j
	}
	return ranks
}

// Spearman returns the rank correlation of x and y.
func Spearman(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("length mismatch: %d != %d", len(x), len(y))
	}
	if len(x) < 2 {
		return 0, ErrInsufficientData
	}
	return pearson(Ranks(x), Ranks(y))
}

func pearson(x, y []float64) (float64, error) {
	n := float64(len(x))
	var sumX, sumY float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range x {
		dx, dy := x[i]-meanX, y[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, ErrZeroVariance
	}

	r := cov / math.Sqrt(varX*varY)
	// clamp rounding drift
	return math.Max(-1, math.Min(1, r)), nil
}

// pairs keeps the positions where both values are present.
func pairs(driver, response []*float64) (x, y []float64) {
	for i := range driver {
		if driver[i] == nil || response[i] == nil {
			continue
		}
		x = append(x, *driver[i])
		y = append(y, *response[i])
	}
	return x, y
}
