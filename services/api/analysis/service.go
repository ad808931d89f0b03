package analysis

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/02loveslollipop/ldas-malaria-viewer/services/api/dataset"
	"github.com/02loveslollipop/ldas-malaria-viewer/services/api/observability"
)

const defaultCacheTTL = 10 * time.Minute

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Logger   *slog.Logger
	Metrics  *observability.Metrics
	CacheTTL time.Duration
	Window   Window
	Order    ShiftOrder
}

// Service answers extraction and aggregation requests over one immutable
// dataset. Correlation mappings are memoized per (variable, species, lag).
type Service struct {
	ds      *dataset.Dataset
	log     *slog.Logger
	metrics *observability.Metrics
	window  Window
	order   ShiftOrder
	cache   *ttlcache.Cache[string, Correlations]
}

func NewService(ds *dataset.Dataset, cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewMetricsForTesting()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.Window.IsZero() {
		cfg.Window = DefaultWindow()
	}
	if cfg.Order == "" {
		cfg.Order = ShiftThenWindow
	}

	cache := ttlcache.New(
		ttlcache.WithTTL[string, Correlations](cfg.CacheTTL),
		ttlcache.WithDisableTouchOnHit[string, Correlations](),
	)
	go cache.Start()

	return &Service{
		ds:      ds,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
		window:  cfg.Window,
		order:   cfg.Order,
		cache:   cache,
	}
}

// Close stops the cache janitor.
func (s *Service) Close() {
	s.cache.Stop()
}

func (s *Service) Dataset() *dataset.Dataset { return s.ds }

func (s *Service) Window() Window { return s.window }

func (s *Service) Order() ShiftOrder { return s.order }

// Extract runs the series extractor, filling zero request fields from the
// service defaults.
func (s *Service) Extract(req Request) (Series, error) {
	if req.Window.IsZero() {
		req.Window = s.window
	}
	if req.Order == "" {
		req.Order = s.order
	}

	start := time.Now()
	series, err := Extract(s.ds, req)
	s.metrics.ComputeDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	if err != nil {
		return Series{}, err
	}

	s.log.Debug("series extracted",
		"variable", req.Variable,
		"district", req.District,
		"species", req.Species,
		"lag", req.Lag,
		"points", series.Len(),
	)
	return series, nil
}

// Correlations returns the per-district correlation mapping. The returned
// map is shared with the cache and must not be modified.
func (s *Service) Correlations(variable, species string, lag int) (Correlations, error) {
	if species == "" {
		species = DefaultSpecies
	}
	if !s.ds.HasVariable(variable) {
		return nil, fmt.Errorf("variable %q: %w", variable, ErrNotFound)
	}
	if !s.ds.HasSpecies(species) {
		return nil, fmt.Errorf("species %q: %w", species, ErrNotFound)
	}

	key := cacheKey(variable, species, lag)
	if item := s.cache.Get(key); item != nil {
		s.metrics.CorrelationCache.WithLabelValues("hit").Inc()
		return item.Value(), nil
	}
	s.metrics.CorrelationCache.WithLabelValues("miss").Inc()

	start := time.Now()
	corr := AggregateCorrelations(s.ds, variable, species, lag)
	elapsed := time.Since(start)
	s.metrics.ComputeDuration.WithLabelValues("aggregate").Observe(elapsed.Seconds())

	undefined := 0
	for _, r := range corr {
		if r == nil {
			undefined++
		}
	}
	s.log.Debug("correlations computed",
		"variable", variable,
		"species", species,
		"lag", lag,
		"districts", len(corr),
		"undefined", undefined,
		"elapsed", elapsed,
	)

	s.cache.Set(key, corr, ttlcache.DefaultTTL)
	return corr, nil
}

func cacheKey(variable, species string, lag int) string {
	return fmt.Sprintf("%s|%s|%d", variable, species, lag)
}
