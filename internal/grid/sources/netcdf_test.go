package sources

import (
	"math"
	"testing"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

type fakeAttrs map[string]any

func (f fakeAttrs) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	return keys
}

func (f fakeAttrs) Get(key string) (any, bool) {
	v, has := f[key]
	return v, has
}

func (f fakeAttrs) GetType(string) (string, bool)   { return "", false }
func (f fakeAttrs) GetGoType(string) (string, bool) { return "", false }

var _ api.AttributeMap = fakeAttrs{}

func TestFlattenValues(t *testing.T) {
	values, shape, err := flattenValues([][]float32{{1, 2, 3}, {4, 5, 6}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(shape) != 2 || shape[0] != 2 || shape[1] != 3 {
		t.Fatalf("expected shape [2 3], got %v", shape)
	}
	for i, v := range values {
		if v != float64(i+1) {
			t.Fatalf("expected %d at index %d, got %g", i+1, i, v)
		}
	}
}

func TestFlattenValuesScalarSlice(t *testing.T) {
	values, shape, err := flattenValues([]int16{-3, 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(shape) != 1 || shape[0] != 2 {
		t.Fatalf("expected shape [2], got %v", shape)
	}
	if values[0] != -3 || values[1] != 7 {
		t.Fatalf("expected [-3 7], got %v", values)
	}
}

func TestFlattenValuesRejectsStrings(t *testing.T) {
	if _, _, err := flattenValues([]string{"a"}); err == nil {
		t.Fatal("expected error for non-numeric values")
	}
}

func TestApplyPacking(t *testing.T) {
	values := []float64{-32767, 100, 200}
	applyPacking(values, fakeAttrs{
		"_FillValue":   []int16{-32767},
		"scale_factor": 0.5,
		"add_offset":   float32(10),
	})

	if !math.IsNaN(values[0]) {
		t.Fatalf("expected NaN for fill value, got %g", values[0])
	}
	if values[1] != 60 || values[2] != 110 {
		t.Fatalf("expected [60 110], got %v", values[1:])
	}
}

func TestApplyPackingMissingValueFallback(t *testing.T) {
	values := []float64{-999, 1}
	applyPacking(values, fakeAttrs{"missing_value": -999.0})

	if !math.IsNaN(values[0]) {
		t.Fatalf("expected NaN for missing value, got %g", values[0])
	}
	if values[1] != 1 {
		t.Fatalf("expected 1, got %g", values[1])
	}
}

func TestBuildAxisTime(t *testing.T) {
	ax, err := buildAxis("time", []float64{0, 1}, fakeAttrs{"units": "hours since 1970-01-01 00:00:00"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ax.IsTime || ax.Values[1] != 3600 {
		t.Fatalf("unexpected axis: %+v", ax)
	}
}

func TestBuildAxisCanonicalName(t *testing.T) {
	ax, err := buildAxis("latitude", []float64{10, 20}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ax.Name != "lat" || ax.IsTime {
		t.Fatalf("unexpected axis: %+v", ax)
	}
}

func TestIsCoordinate(t *testing.T) {
	if !isCoordinate("lat", &api.Variable{Dimensions: []string{"lat"}}) {
		t.Fatal("expected a single self-dimensioned variable to be a coordinate")
	}
	if isCoordinate("air", &api.Variable{Dimensions: []string{"time", "lat"}}) {
		t.Fatal("expected a data variable not to be a coordinate")
	}
}
