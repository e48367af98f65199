package extract

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/esmtools/grid-coverage/internal/covjson"
	"github.com/esmtools/grid-coverage/internal/grid"
	"github.com/esmtools/grid-coverage/internal/store"
)

func testService(t *testing.T) *Service {
	t.Helper()

	values := make([]float64, 2*3*3)
	for i := range values {
		values[i] = float64(i)
	}

	ds, err := grid.NewDataset(
		[]grid.Axis{
			{Name: "time", Values: []float64{1600000000, 1600003600}, IsTime: true},
			{Name: "lat", Values: []float64{10, 20, 30}},
			{Name: "lon", Values: []float64{100, 110, 120}},
		},
		map[string]grid.Variable{
			"air": {
				Dims: []string{"time", "lat", "lon"}, Shape: []int{2, 3, 3},
				Values: values,
				Meta:   grid.VarMeta{LongName: "Air temperature", Units: "K"},
			},
		},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	registry := store.NewRegistry()
	registry.Register("demo", ds)
	return NewService(registry)
}

func TestFieldNames(t *testing.T) {
	svc := testService(t)

	names, err := svc.FieldNames("demo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"air"}) {
		t.Fatalf("expected [air], got %v", names)
	}

	if _, err := svc.FieldNames("missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected store.ErrNotFound, got %v", err)
	}
}

func TestExtractTracksMeanAggregation(t *testing.T) {
	svc := testService(t)

	tracks := []Track{
		{ID: "a", Points: orb.LineString{{100, 10}, {120, 30}}},
		{ID: "b", Points: orb.LineString{{110, 20}, {100, 30}}},
	}
	tf := &Transform{Aggregation: "mean", Dim: "time"}

	coverages, err := svc.ExtractTracks(context.Background(), "demo", tracks, tf, []string{"air"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(coverages) != 2 {
		t.Fatalf("expected 2 coverages, got %d", len(coverages))
	}

	// Coverages come back in track order with the track id attached.
	if coverages[0].ID != "a" || coverages[1].ID != "b" {
		t.Fatalf("expected ids [a b], got [%s %s]", coverages[0].ID, coverages[1].ID)
	}

	for _, cov := range coverages {
		if cov.Domain.DomainType != covjson.DomainMultiPoint {
			t.Fatalf("expected MultiPoint coverage, got %s", cov.Domain.DomainType)
		}
		r := cov.Ranges["air"]
		// Time was averaged away, so one value per track point.
		if !reflect.DeepEqual(r.Shape, []int{2}) {
			t.Fatalf("expected shape [2], got %v", r.Shape)
		}
	}

	// Means of the two time slices at point (lat 10, lon 100): (0+9)/2.
	if v := coverages[0].Ranges["air"].Values[0]; v == nil || *v != 4.5 {
		t.Fatalf("expected aggregated value 4.5, got %v", v)
	}
}

func TestExtractTracksUnknownAggregationDim(t *testing.T) {
	svc := testService(t)

	tracks := []Track{{ID: "a", Points: orb.LineString{{100, 10}, {120, 30}}}}
	tf := &Transform{Aggregation: "mean", Dim: "height"}

	_, err := svc.ExtractTracks(context.Background(), "demo", tracks, tf, nil)
	if !errors.Is(err, grid.ErrDimensionNotFound) {
		t.Fatalf("expected ErrDimensionNotFound, got %v", err)
	}
}

func TestExtractTracksUnknownField(t *testing.T) {
	svc := testService(t)

	tracks := []Track{{ID: "a", Points: orb.LineString{{100, 10}, {120, 30}}}}

	_, err := svc.ExtractTracks(context.Background(), "demo", tracks, nil, []string{"humidity"})
	if !errors.Is(err, grid.ErrFieldNotFound) {
		t.Fatalf("expected ErrFieldNotFound, got %v", err)
	}
}

func TestExtractPoints(t *testing.T) {
	svc := testService(t)

	points := make([][2]float64, 50)
	for i := range points {
		points[i] = [2]float64{10 + float64(i%3)*10, 100 + float64(i%3)*10}
	}

	cov, err := svc.ExtractPoints(context.Background(), "demo", time.Unix(1600000000, 0), points, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := len(cov.Domain.Axes["composite"].Values); n != 50 {
		t.Fatalf("expected 50 composite entries, got %d", n)
	}
	if n := len(cov.Domain.Axes["t"].Values); n != 1 {
		t.Fatalf("expected 1 time value, got %d", n)
	}
	if n := len(cov.Ranges["air"].Values); n != 50 {
		t.Fatalf("expected 50 range values, got %d", n)
	}
}

func TestExtractTrajectoryPreservesOrder(t *testing.T) {
	svc := testService(t)

	points := []TrajectoryPoint{
		{Time: time.Unix(1600003600, 0), Lat: 30, Lon: 120},
		{Time: time.Unix(1600000000, 0), Lat: 10, Lon: 100},
	}

	cov, err := svc.ExtractTrajectory(context.Background(), "demo", points, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	composite := cov.Domain.Axes["composite"].Values
	first, ok := composite[0].([]any)
	if !ok || first[1] != 120.0 || first[2] != 30.0 {
		t.Fatalf("expected first tuple at (120, 30), got %v", composite[0])
	}

	// t1 slice at (lat 30, lon 120) is 9+8, t0 slice at (10, 100) is 0.
	values := cov.Ranges["air"].Values
	if *values[0] != 17 || *values[1] != 0 {
		t.Fatalf("expected values [17 0], got [%v %v]", *values[0], *values[1])
	}
}

func TestPointSeries(t *testing.T) {
	svc := testService(t)

	cov, err := svc.PointSeries(context.Background(), "demo", 18, 104, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cov.Domain.DomainType != covjson.DomainPointSeries {
		t.Fatalf("expected PointSeries coverage, got %s", cov.Domain.DomainType)
	}
	if n := len(cov.Domain.Axes["t"].Values); n != 2 {
		t.Fatalf("expected 2 time values, got %d", n)
	}

	ts := time.Unix(1600003600, 0)
	cov, err = svc.PointSeries(context.Background(), "demo", 18, 104, &ts, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(cov.Domain.Axes["t"].Values); n != 1 {
		t.Fatalf("expected 1 time value, got %d", n)
	}
}

func TestGridCoverageWindowed(t *testing.T) {
	svc := testService(t)

	bbox := &BBox{105, 15, 125, 35}
	cov, err := svc.GridCoverage(context.Background(), "demo", bbox, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cov.Domain.DomainType != covjson.DomainGrid {
		t.Fatalf("expected Grid coverage, got %s", cov.Domain.DomainType)
	}
	if n := len(cov.Domain.Axes["x"].Values); n != 2 {
		t.Fatalf("expected 2 x values, got %d", n)
	}
	if n := len(cov.Domain.Axes["y"].Values); n != 2 {
		t.Fatalf("expected 2 y values, got %d", n)
	}
	if !reflect.DeepEqual(cov.Ranges["air"].Shape, []int{2, 2, 2}) {
		t.Fatalf("expected shape [2 2 2], got %v", cov.Ranges["air"].Shape)
	}
}
