package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/02loveslollipop/ldas-malaria-viewer/services/api/dataset"
	"github.com/02loveslollipop/ldas-malaria-viewer/services/api/geo"
)

// Store wraps database access helpers.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const observationsSQL = `
    SELECT ubigeo, name, ldas_variable, species, epiweek_start_date, year, week,
           ldas_value, case_rate, data_type
    FROM ldas.observations
    ORDER BY ubigeo, ldas_variable, species, epiweek_start_date
`

// LoadObservations reads the pre-merged observation table.
func (s *Store) LoadObservations(ctx context.Context) ([]dataset.Observation, error) {
	rows, err := s.pool.Query(ctx, observationsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]dataset.Observation, 0)
	for rows.Next() {
		var (
			o        dataset.Observation
			name     *string
			year     *int32
			week     *int32
			dataType *string
			ts       time.Time
		)
		if err := rows.Scan(
			&o.District,
			&name,
			&o.Variable,
			&o.Species,
			&ts,
			&year,
			&week,
			&o.Driver,
			&o.Response,
			&dataType,
		); err != nil {
			return nil, err
		}
		o.Time = ts.UTC()
		o.Name = deref(name)
		o.DataType = deref(dataType)
		if year != nil {
			o.Year = int(*year)
		}
		if week != nil {
			o.Week = int(*week)
		}
		o.Driver = dataset.NormalizeValue(o.Driver)
		o.Response = dataset.NormalizeValue(o.Response)
		out = append(out, o)
	}
	return out, rows.Err()
}

const districtsSQL = `
    SELECT ubigeo, name, geometry
    FROM ldas.districts
    ORDER BY ubigeo
`

// LoadDistricts reads district polygons. The geometry column holds GeoJSON.
func (s *Store) LoadDistricts(ctx context.Context) ([]geo.District, error) {
	rows, err := s.pool.Query(ctx, districtsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]geo.District, 0)
	for rows.Next() {
		var (
			d       geo.District
			name    *string
			geomRaw []byte
		)
		if err := rows.Scan(&d.ID, &name, &geomRaw); err != nil {
			return nil, err
		}
		d.Name = deref(name)
		if len(geomRaw) > 0 {
			g, err := geo.ParseGeometry(geomRaw)
			if err != nil {
				return nil, fmt.Errorf("district %s: %w", d.ID, err)
			}
			d.Geometry = g
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
