package grid

import (
	"fmt"
	"math"
)

// Mean reduces the named axis away, averaging every variable that depends
// on it. Missing values (NaN) are skipped, matching the source dataset
// convention; an all-missing slice averages to NaN. Variables that do not
// depend on the axis pass through unchanged.
func Mean(ds *Dataset, dim string) (*Dataset, error) {
	if _, ok := ds.Axis(dim); !ok {
		return nil, fmt.Errorf("%w: %q", ErrDimensionNotFound, dim)
	}

	axes := make([]Axis, 0, len(ds.axes))
	for name, ax := range ds.axes {
		if name == dim {
			continue
		}
		axes = append(axes, ax)
	}

	vars := make(map[string]Variable, len(ds.vars))
	for name, v := range ds.vars {
		pos := dimIndex(v.Dims, dim)
		if pos < 0 {
			vars[name] = v
			continue
		}
		vars[name] = meanAlong(v, pos)
	}

	return NewDataset(axes, vars)
}

// meanAlong averages v over its pos-th dimension, dropping that dimension.
func meanAlong(v Variable, pos int) Variable {
	outer := 1
	for _, n := range v.Shape[:pos] {
		outer *= n
	}
	reduced := v.Shape[pos]
	inner := 1
	for _, n := range v.Shape[pos+1:] {
		inner *= n
	}

	values := make([]float64, outer*inner)
	for o := 0; o < outer; o++ {
		for k := 0; k < inner; k++ {
			var sum float64
			var count int
			for r := 0; r < reduced; r++ {
				x := v.Values[(o*reduced+r)*inner+k]
				if math.IsNaN(x) {
					continue
				}
				sum += x
				count++
			}
			if count == 0 {
				values[o*inner+k] = math.NaN()
			} else {
				values[o*inner+k] = sum / float64(count)
			}
		}
	}

	dims := make([]string, 0, len(v.Dims)-1)
	shape := make([]int, 0, len(v.Shape)-1)
	for i := range v.Dims {
		if i == pos {
			continue
		}
		dims = append(dims, v.Dims[i])
		shape = append(shape, v.Shape[i])
	}

	return Variable{Dims: dims, Shape: shape, Values: values, Meta: v.Meta}
}

func dimIndex(dims []string, dim string) int {
	for i, d := range dims {
		if d == dim {
			return i
		}
	}
	return -1
}
