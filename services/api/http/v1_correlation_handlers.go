package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb/geojson"

	"github.com/02loveslollipop/ldas-malaria-viewer/services/api/analysis"
	"github.com/02loveslollipop/ldas-malaria-viewer/services/api/geo"
)

type correlationQuery struct {
	Variable string `form:"variable" binding:"required"`
	Species  string `form:"species"`
	Lag      int    `form:"lag" binding:"min=-10,max=10"`
}

// correlations binds the query and runs the aggregator. It writes the error
// response itself and reports whether the handler should continue.
func (s *Server) correlations(c *gin.Context) (correlationQuery, analysis.Correlations, bool) {
	var q correlationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return q, nil, false
	}
	if q.Species == "" {
		q.Species = s.cfg.DefaultSpecies
	}

	corr, err := s.svc.Correlations(q.Variable, q.Species, q.Lag)
	if err != nil {
		if errors.Is(err, analysis.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return q, nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return q, nil, false
	}
	return q, corr, true
}

// handleV1Correlations returns the per-district Spearman correlation table
// GET /api/v1/correlations?variable=Rainfall(mm)&species=p_fal&lag=2
func (s *Server) handleV1Correlations(c *gin.Context) {
	q, corr, ok := s.correlations(c)
	if !ok {
		return
	}

	rows := analysis.Results(s.svc.Dataset(), corr)
	undefined := 0
	for _, r := range rows {
		if r.Correlation == nil {
			undefined++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"data": rows,
		"meta": gin.H{
			"variable":     q.Variable,
			"species":      q.Species,
			"lag":          q.Lag,
			"count":        len(rows),
			"undefined":    undefined,
			"generated_at": s.clock.Now().UTC().Format(time.RFC3339),
		},
	})
}

// handleV1Choropleth returns the district polygons with correlation, class
// and fill color properties as a GeoJSON FeatureCollection
// GET /api/v1/choropleth?variable=Rainfall(mm)&species=p_fal&lag=2
func (s *Server) handleV1Choropleth(c *gin.Context) {
	q, corr, ok := s.correlations(c)
	if !ok {
		return
	}

	start := time.Now()
	joined := geo.Join(s.districts, corr)
	breaks := geo.Classify(joined.Features, s.cfg.ChoroplethClasses)
	s.metrics.ComputeDuration.WithLabelValues("join").Observe(time.Since(start).Seconds())

	if len(joined.Unmatched) > 0 {
		s.metrics.UnmatchedDistricts.Add(float64(len(joined.Unmatched)))
		s.log.Warn("correlated districts missing from geometry",
			"variable", q.Variable,
			"species", q.Species,
			"lag", q.Lag,
			"unmatched", len(joined.Unmatched),
			"sample", sample(joined.Unmatched, 5),
		)
	}

	joined.Features.ExtraMembers = geojson.Properties{
		"meta": gin.H{
			"variable":     q.Variable,
			"species":      q.Species,
			"lag":          q.Lag,
			"classes":      s.cfg.ChoroplethClasses,
			"breaks":       breaks,
			"matched":      len(joined.Matched),
			"unmatched":    joined.Unmatched,
			"generated_at": s.clock.Now().UTC().Format(time.RFC3339),
		},
	}

	raw, err := joined.Features.MarshalJSON()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("X-Matched-Districts", strconv.Itoa(len(joined.Matched)))
	c.Header("X-Unmatched-Districts", strconv.Itoa(len(joined.Unmatched)))
	c.Header("X-Class-Breaks", formatBreaks(breaks))
	c.Data(http.StatusOK, "application/geo+json", raw)
}

func sample(ids []string, n int) []string {
	if len(ids) <= n {
		return ids
	}
	return ids[:n]
}

func formatBreaks(breaks []float64) string {
	parts := make([]string, len(breaks))
	for i, b := range breaks {
		parts[i] = strconv.FormatFloat(b, 'f', 4, 64)
	}
	return strings.Join(parts, ",")
}
