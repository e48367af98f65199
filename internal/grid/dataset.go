package grid

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrDimensionNotFound is returned when an operation names an axis the
	// dataset does not have.
	ErrDimensionNotFound = errors.New("dimension not found")

	// ErrFieldNotFound is returned when a requested data variable is absent
	// from the dataset.
	ErrFieldNotFound = errors.New("field not found")
)

// Axis is a named coordinate axis. Values are monotonic but not necessarily
// uniformly spaced. Time axes store unix seconds and are rendered as
// RFC 3339 timestamps at the serialization boundary.
type Axis struct {
	Name   string
	Values []float64
	IsTime bool
}

// VarMeta carries the descriptive metadata of a data variable.
type VarMeta struct {
	LongName    string
	Description string
	Units       string
}

// Variable is an N-dimensional data array. Values are stored row-major in
// the order of Dims; NaN marks a missing value.
type Variable struct {
	Dims   []string
	Shape  []int
	Values []float64
	Meta   VarMeta
}

// Dataset is an immutable in-memory gridded dataset: named coordinate axes
// plus named data variables, each declaring the axes it varies over.
// A Dataset is never mutated after construction, so concurrent readers
// share it without synchronization.
type Dataset struct {
	axes map[string]Axis
	vars map[string]Variable
}

// NewDataset validates axes and variables and assembles a Dataset.
// Every variable's shape must match the lengths of its declared axes,
// in the declared order.
func NewDataset(axes []Axis, vars map[string]Variable) (*Dataset, error) {
	axisMap := make(map[string]Axis, len(axes))
	for _, ax := range axes {
		if len(ax.Values) == 0 {
			return nil, fmt.Errorf("axis %q has no values", ax.Name)
		}
		axisMap[ax.Name] = ax
	}

	for name, v := range vars {
		if len(v.Dims) != len(v.Shape) {
			return nil, fmt.Errorf("variable %q: %d dims but %d shape entries", name, len(v.Dims), len(v.Shape))
		}
		n := 1
		for i, dim := range v.Dims {
			ax, ok := axisMap[dim]
			if !ok {
				return nil, fmt.Errorf("variable %q: %w: %q", name, ErrDimensionNotFound, dim)
			}
			if v.Shape[i] != len(ax.Values) {
				return nil, fmt.Errorf("variable %q: shape[%d]=%d does not match axis %q length %d",
					name, i, v.Shape[i], dim, len(ax.Values))
			}
			n *= v.Shape[i]
		}
		if n != len(v.Values) {
			return nil, fmt.Errorf("variable %q: shape implies %d values, got %d", name, n, len(v.Values))
		}
	}

	return &Dataset{axes: axisMap, vars: vars}, nil
}

// Axis returns the named coordinate axis.
func (d *Dataset) Axis(name string) (Axis, bool) {
	ax, ok := d.axes[name]
	return ax, ok
}

// HasAxis reports whether the dataset has the named coordinate axis.
func (d *Dataset) HasAxis(name string) bool {
	_, ok := d.axes[name]
	return ok
}

// Var returns the named data variable.
func (d *Dataset) Var(name string) (Variable, bool) {
	v, ok := d.vars[name]
	return v, ok
}

// Axes returns all coordinate axes, sorted by name for stable output.
func (d *Dataset) Axes() []Axis {
	names := make([]string, 0, len(d.axes))
	for name := range d.axes {
		names = append(names, name)
	}
	sort.Strings(names)
	axes := make([]Axis, len(names))
	for i, name := range names {
		axes[i] = d.axes[name]
	}
	return axes
}

// FieldNames returns the names of all data variables, sorted for stable
// output.
func (d *Dataset) FieldNames() []string {
	names := make([]string, 0, len(d.vars))
	for name := range d.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// strides returns the row-major stride of each dimension of v.
func strides(shape []int) []int {
	s := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = stride
		stride *= shape[i]
	}
	return s
}
