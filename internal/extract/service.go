// Package extract orchestrates the per-request pipeline: resolve a dataset
// handle, apply the optional aggregation transform, run nearest-neighbor
// sampling for the query geometry, and build and validate the coverage.
package extract

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/esmtools/grid-coverage/internal/covjson"
	"github.com/esmtools/grid-coverage/internal/grid"
	"github.com/esmtools/grid-coverage/internal/store"
)

// Transform is an optional dataset reduction applied before sampling.
// "mean" is the only supported aggregation.
type Transform struct {
	Aggregation string
	Dim         string
}

// TrajectoryPoint is one vertex of a trajectory query, carrying its own
// timestamp.
type TrajectoryPoint struct {
	Time time.Time
	Lat  float64
	Lon  float64
}

// BBox is a lon/lat window: [minLon, minLat, maxLon, maxLat].
type BBox [4]float64

// Service runs extraction queries against registered datasets. It holds no
// per-request state; every operation resolves its dataset handle up front
// and works on that immutable snapshot.
type Service struct {
	registry *store.Registry
}

// NewService creates a new Service backed by the dataset registry.
func NewService(registry *store.Registry) *Service {
	return &Service{registry: registry}
}

// FieldNames lists the data variables of a dataset.
func (s *Service) FieldNames(dataset string) ([]string, error) {
	ds, err := s.registry.Get(dataset)
	if err != nil {
		return nil, err
	}
	return ds.FieldNames(), nil
}

// ExtractTracks extracts the named fields along each track and returns one
// MultiPoint coverage per track, in track order. Track geometries in the
// result are "model" tracks: every point is snapped to its nearest grid
// position. Tracks are processed concurrently; any failure aborts the whole
// request.
func (s *Service) ExtractTracks(ctx context.Context, dataset string, tracks []Track, tf *Transform, fields []string) ([]covjson.Coverage, error) {
	ds, fields, err := s.prepare(dataset, tf, fields)
	if err != nil {
		return nil, err
	}

	coverages := make([]covjson.Coverage, len(tracks))
	g, _ := errgroup.WithContext(ctx)

	for i, track := range tracks {
		i, track := i, track
		g.Go(func() error {
			queries := make([]grid.Query, len(track.Points))
			for j, p := range track.Points {
				queries[j] = grid.Query{"lat": p.Lat(), "lon": p.Lon()}
			}

			cov, err := s.buildCoverage(ds, covjson.DomainMultiPoint, queries, fields)
			if err != nil {
				return fmt.Errorf("track %q: %w", track.ID, err)
			}
			cov.ID = track.ID
			coverages[i] = *cov
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return coverages, nil
}

// ExtractPoints extracts the named fields at a set of scattered points that
// share one query time, returning a MultiPoint coverage whose composite
// axis lists one snapped position per input point.
func (s *Service) ExtractPoints(ctx context.Context, dataset string, ts time.Time, points [][2]float64, tf *Transform, fields []string) (*covjson.Coverage, error) {
	ds, fields, err := s.prepare(dataset, tf, fields)
	if err != nil {
		return nil, err
	}

	t := float64(ts.Unix())
	queries := make([]grid.Query, len(points))
	for i, p := range points {
		queries[i] = grid.Query{"lat": p[0], "lon": p[1], "time": t}
	}

	return s.buildCoverage(ds, covjson.DomainMultiPoint, queries, fields)
}

// ExtractTrajectory extracts the named fields along a trajectory whose
// points each carry their own time, returning a Trajectory coverage in
// input point order.
func (s *Service) ExtractTrajectory(ctx context.Context, dataset string, points []TrajectoryPoint, tf *Transform, fields []string) (*covjson.Coverage, error) {
	ds, fields, err := s.prepare(dataset, tf, fields)
	if err != nil {
		return nil, err
	}

	queries := make([]grid.Query, len(points))
	for i, p := range points {
		queries[i] = grid.Query{"lat": p.Lat, "lon": p.Lon, "time": float64(p.Time.Unix())}
	}

	return s.buildCoverage(ds, covjson.DomainTrajectory, queries, fields)
}

// PointSeries extracts the named fields at a single position, returning a
// PointSeries coverage: the full time series when ts is nil, or the single
// nearest time slice otherwise.
func (s *Service) PointSeries(ctx context.Context, dataset string, lat, lon float64, ts *time.Time, fields []string) (*covjson.Coverage, error) {
	ds, fields, err := s.prepare(dataset, nil, fields)
	if err != nil {
		return nil, err
	}

	query := grid.Query{"lat": lat, "lon": lon}
	if ts != nil {
		query["time"] = float64(ts.Unix())
	}

	return s.buildCoverage(ds, covjson.DomainPointSeries, []grid.Query{query}, fields)
}

// GridCoverage returns the dataset itself (optionally windowed to a lon/lat
// bounding box) as a Grid coverage.
func (s *Service) GridCoverage(ctx context.Context, dataset string, bbox *BBox, fields []string) (*covjson.Coverage, error) {
	ds, fields, err := s.prepare(dataset, nil, fields)
	if err != nil {
		return nil, err
	}

	if bbox != nil {
		ds, err = grid.Window(ds, bbox[1], bbox[3], bbox[0], bbox[2])
		if err != nil {
			return nil, err
		}
	}

	cov, err := covjson.Build(ds, covjson.DomainGrid, nil, fields)
	if err != nil {
		return nil, err
	}
	if err := covjson.Validate(cov, fields); err != nil {
		return nil, err
	}
	return cov, nil
}

// prepare resolves the dataset handle, applies the optional transform, and
// expands an empty field filter to all fields.
func (s *Service) prepare(dataset string, tf *Transform, fields []string) (*grid.Dataset, []string, error) {
	ds, err := s.registry.Get(dataset)
	if err != nil {
		return nil, nil, err
	}

	if tf != nil {
		switch tf.Aggregation {
		case "mean":
			ds, err = grid.Mean(ds, tf.Dim)
			if err != nil {
				return nil, nil, err
			}
		default:
			return nil, nil, fmt.Errorf("unsupported aggregation %q", tf.Aggregation)
		}
	}

	if len(fields) == 0 {
		fields = ds.FieldNames()
	}
	return ds, fields, nil
}

// buildCoverage runs the sample → build → validate tail of the pipeline.
// A coverage is never returned unvalidated.
func (s *Service) buildCoverage(ds *grid.Dataset, kind covjson.DomainType, queries []grid.Query, fields []string) (*covjson.Coverage, error) {
	samples, err := grid.SelectNearest(ds, queries, fields)
	if err != nil {
		return nil, err
	}

	cov, err := covjson.Build(ds, kind, samples, fields)
	if err != nil {
		return nil, err
	}
	if err := covjson.Validate(cov, fields); err != nil {
		return nil, err
	}
	return cov, nil
}
