package http

// registerV1Routes sets up the v1 API structure
// Groups: /api/v1 (options), /api/v1/series, /api/v1/correlations, /api/v1/choropleth
func (s *Server) registerV1Routes() {
	v1 := s.engine.Group("/api/v1")
	v1.Use(apiVersionMiddleware()) // Add X-API-Version: v1 header

	// Selector choices for the variable, district and lag widgets
	v1.GET("/options", s.handleV1Options)

	// Line plot data for one district
	v1.GET("/series", s.handleV1Series)

	// Per-district lagged correlations and the choropleth layer built from them
	v1.GET("/correlations", s.handleV1Correlations)
	v1.GET("/choropleth", s.handleV1Choropleth)
}
