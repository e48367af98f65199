package store

import (
	"errors"
	"testing"

	"github.com/esmtools/grid-coverage/internal/grid"
)

func tinyDataset(t *testing.T, value float64) *grid.Dataset {
	t.Helper()

	ds, err := grid.NewDataset(
		[]grid.Axis{{Name: "lat", Values: []float64{10}}},
		map[string]grid.Variable{
			"air": {Dims: []string{"lat"}, Shape: []int{1}, Values: []float64{value}},
		},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return ds
}

func TestRegistryGet(t *testing.T) {
	r := NewRegistry()
	ds := tinyDataset(t, 1)
	r.Register("era5", ds)

	got, err := r.Get("era5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != ds {
		t.Fatal("expected the registered dataset handle")
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistryRegisterReplaces(t *testing.T) {
	r := NewRegistry()
	old := tinyDataset(t, 1)
	r.Register("era5", old)

	fresh := tinyDataset(t, 2)
	r.Register("era5", fresh)

	got, err := r.Get("era5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != fresh {
		t.Fatal("expected the replacement dataset handle")
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	r.Register("waves", tinyDataset(t, 1))
	r.Register("era5", tinyDataset(t, 2))

	names := r.Names()
	if len(names) != 2 || names[0] != "era5" || names[1] != "waves" {
		t.Fatalf("expected [era5 waves], got %v", names)
	}
}
