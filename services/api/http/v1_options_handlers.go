package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	minLag = -10
	maxLag = 10
)

// handleV1Options returns the selector choices derived from the dataset
// GET /api/v1/options
func (s *Server) handleV1Options(c *gin.Context) {
	ds := s.svc.Dataset()
	window := s.svc.Window()

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"variables":       ds.Variables(),
			"districts":       ds.Districts(),
			"species":         ds.Species(),
			"default_species": s.cfg.DefaultSpecies,
			"lag": gin.H{
				"min":     minLag,
				"max":     maxLag,
				"default": 0,
			},
			"window": gin.H{
				"start": window.Start.Format(time.DateOnly),
				"end":   window.End.Format(time.DateOnly),
			},
			"shift_order": s.svc.Order(),
		},
	})
}
