package grid

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestNearestIndexTieChoosesLowerIndex(t *testing.T) {
	// 5 is equidistant from 0 and 10.
	if got := NearestIndex([]float64{0, 10}, 5); got != 0 {
		t.Fatalf("expected tie to resolve to index 0, got %d", got)
	}
	if got := NearestIndex([]float64{0, 10, 20}, 15); got != 1 {
		t.Fatalf("expected tie to resolve to index 1, got %d", got)
	}
}

func TestNearestIndexDescendingAxis(t *testing.T) {
	// Latitude axes are often stored north to south.
	if got := NearestIndex([]float64{30, 20, 10}, 12); got != 2 {
		t.Fatalf("expected index 2, got %d", got)
	}
}

func TestSelectNearestPreservesQueryOrder(t *testing.T) {
	ds := testDataset(t)

	queries := []Query{
		{"lat": 29, "lon": 121, "time": 1600000000},
		{"lat": 11, "lon": 99, "time": 1600003600},
		{"lat": 19, "lon": 112, "time": 1600000000},
	}

	samples, err := SelectNearest(ds, queries, []string{"air"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(samples))
	}

	// Row-major (time, lat, lon) values count up from 0, so the expected
	// scalar is t*9 + lat*3 + lon.
	want := []float64{0*9 + 2*3 + 2, 1*9 + 0*3 + 0, 0*9 + 1*3 + 1}
	for i, s := range samples {
		got := s.Fields["air"].Values
		if len(got) != 1 || got[0] != want[i] {
			t.Errorf("sample %d: expected value %v, got %v", i, want[i], got)
		}
	}
}

func TestSelectNearestSnappedCoordinates(t *testing.T) {
	ds := testDataset(t)

	samples, err := SelectNearest(ds, []Query{{"lat": 23, "lon": 108}}, []string{"air"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := samples[0]
	if s.Snapped["lat"] != 20 || s.Snapped["lon"] != 110 {
		t.Fatalf("expected snapped (20, 110), got (%v, %v)", s.Snapped["lat"], s.Snapped["lon"])
	}
	if s.Index["lat"] != 1 || s.Index["lon"] != 1 {
		t.Fatalf("expected indices (1, 1), got (%v, %v)", s.Index["lat"], s.Index["lon"])
	}
}

func TestSelectNearestIsDeterministic(t *testing.T) {
	ds := testDataset(t)
	queries := []Query{{"lat": 15, "lon": 105, "time": 1600001800}}

	first, err := SelectNearest(ds, queries, []string{"air"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := SelectNearest(ds, queries, []string{"air"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differed: %+v vs %+v", i, first, again)
		}
	}
}

func TestSelectNearestLeavesUnqueriedAxisFree(t *testing.T) {
	ds := testDataset(t)

	// No time in the query: a track sampled at the dataset's native time.
	samples, err := SelectNearest(ds, []Query{{"lat": 10, "lon": 100}}, []string{"air"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	series := samples[0].Fields["air"]
	if !reflect.DeepEqual(series.Dims, []string{"time"}) {
		t.Fatalf("expected residual time dim, got %v", series.Dims)
	}
	if !reflect.DeepEqual(series.Values, []float64{0, 9}) {
		t.Fatalf("expected time series [0 9], got %v", series.Values)
	}
}

func TestSelectNearestUnknownField(t *testing.T) {
	ds := testDataset(t)

	_, err := SelectNearest(ds, []Query{{"lat": 10, "lon": 100}}, []string{"humidity"})
	if !errors.Is(err, ErrFieldNotFound) {
		t.Fatalf("expected ErrFieldNotFound, got %v", err)
	}
}

func TestSelectNearestUnknownAxis(t *testing.T) {
	ds := testDataset(t)

	_, err := SelectNearest(ds, []Query{{"height": 2}}, []string{"air"})
	if !errors.Is(err, ErrDimensionNotFound) {
		t.Fatalf("expected ErrDimensionNotFound, got %v", err)
	}
}

func TestSelectNearestPropagatesMissingValues(t *testing.T) {
	ds, err := NewDataset(
		[]Axis{{Name: "lat", Values: []float64{10, 20}}},
		map[string]Variable{
			"air": {Dims: []string{"lat"}, Shape: []int{2}, Values: []float64{math.NaN(), 5}},
		},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	samples, err := SelectNearest(ds, []Query{{"lat": 10}}, []string{"air"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v := samples[0].Fields["air"].Values[0]; !math.IsNaN(v) {
		t.Fatalf("expected NaN to propagate, got %v", v)
	}
}
