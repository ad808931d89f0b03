package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/02loveslollipop/ldas-malaria-viewer/services/api/analysis"
	"github.com/02loveslollipop/ldas-malaria-viewer/services/api/dataset"
)

type seriesQuery struct {
	Variable string `form:"variable" binding:"required"`
	District string `form:"district" binding:"required"`
	Species  string `form:"species"`
	Lag      int    `form:"lag" binding:"min=-10,max=10"`
	Start    string `form:"start"`
	End      string `form:"end"`
	Order    string `form:"order"`
}

type seriesPoint struct {
	Timestamp string   `json:"ts"`
	Driver    *float64 `json:"driver"`
	Response  *float64 `json:"response"`
	DataType  string   `json:"data_type"`
}

var speciesLabels = map[string]string{
	"p_fal":   "P. falciparum",
	"p_vivax": "P. vivax",
}

func speciesLabel(species string) string {
	if label, ok := speciesLabels[species]; ok {
		return label
	}
	return species
}

// handleV1Series returns the aligned driver and lag-shifted case rate series
// GET /api/v1/series?variable=Rainfall(mm)&district=160101&species=p_fal&lag=2&start=2010-01-01&end=2024-05-01
func (s *Server) handleV1Series(c *gin.Context) {
	var q seriesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if q.Species == "" {
		q.Species = s.cfg.DefaultSpecies
	}

	window := s.svc.Window()
	if q.Start != "" {
		t, err := dataset.ParseDate(q.Start)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start date, expected YYYY-MM-DD"})
			return
		}
		window.Start = t
	}
	if q.End != "" {
		t, err := dataset.ParseDate(q.End)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end date, expected YYYY-MM-DD"})
			return
		}
		window.End = t
	}
	if window.End.Before(window.Start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must not be before start"})
		return
	}

	order := s.svc.Order()
	if q.Order != "" {
		parsed, err := analysis.ParseShiftOrder(q.Order)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		order = parsed
	}

	series, err := s.svc.Extract(analysis.Request{
		Variable: q.Variable,
		District: q.District,
		Species:  q.Species,
		Lag:      q.Lag,
		Window:   window,
		Order:    order,
	})
	if err != nil {
		if errors.Is(err, analysis.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	points := make([]seriesPoint, 0, series.Len())
	for i, ts := range series.Timestamps {
		points = append(points, seriesPoint{
			Timestamp: ts.Format(time.DateOnly),
			Driver:    series.Driver[i],
			Response:  series.Response[i],
			DataType:  series.DataTypes[i],
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"points": points,
		},
		"meta": gin.H{
			"variable": q.Variable,
			"district": q.District,
			"name":     s.svc.Dataset().DistrictName(q.District),
			"species":  q.Species,
			"lag":      q.Lag,
			"order":    order,
			"window": gin.H{
				"start": window.Start.Format(time.DateOnly),
				"end":   window.End.Format(time.DateOnly),
			},
			"count":        len(points),
			"title":        fmt.Sprintf("%s cases & %s for district %s: %d weeks offset", speciesLabel(q.Species), q.Variable, q.District, q.Lag),
			"generated_at": s.clock.Now().UTC().Format(time.RFC3339),
		},
	})
}
