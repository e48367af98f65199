package grid

import (
	"fmt"
	"math"
)

// Query maps axis names to the coordinate value requested for that axis.
// Axes a variable depends on but the query does not name stay free and come
// back as a residual series.
type Query map[string]float64

// Series is the residual array extracted for one field at one query point:
// a scalar (empty Dims) or a 1-D sequence over the unqueried axis.
type Series struct {
	Dims   []string
	Shape  []int
	Values []float64
}

// Sample is the extraction for a single query point: the grid indices and
// snapped coordinate values actually used, plus the extracted field values.
type Sample struct {
	Index   map[string]int
	Snapped map[string]float64
	Fields  map[string]Series
}

// NearestIndex returns the index of the value closest to q. Ties are broken
// by the lowest index. Works for ascending and descending axes alike.
func NearestIndex(values []float64, q float64) int {
	best := 0
	bestDist := math.Abs(values[0] - q)
	for i := 1; i < len(values); i++ {
		d := math.Abs(values[i] - q)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// SelectNearest resolves each query point against the dataset and extracts
// the named fields. Each queried axis is resolved independently to its
// nearest grid index; this is deliberately not a joint spatial
// nearest-neighbor over the lat/lon pair. Results are ordered exactly as
// the queries.
func SelectNearest(ds *Dataset, queries []Query, fields []string) ([]Sample, error) {
	for _, name := range fields {
		if _, ok := ds.Var(name); !ok {
			return nil, fmt.Errorf("%w: %q", ErrFieldNotFound, name)
		}
	}

	samples := make([]Sample, len(queries))
	for qi, query := range queries {
		index := make(map[string]int, len(query))
		snapped := make(map[string]float64, len(query))
		for axName, coord := range query {
			ax, ok := ds.Axis(axName)
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrDimensionNotFound, axName)
			}
			i := NearestIndex(ax.Values, coord)
			index[axName] = i
			snapped[axName] = ax.Values[i]
		}

		extracted := make(map[string]Series, len(fields))
		for _, name := range fields {
			v, _ := ds.Var(name)
			extracted[name] = extractAt(v, index)
		}

		samples[qi] = Sample{Index: index, Snapped: snapped, Fields: extracted}
	}

	return samples, nil
}

// extractAt pulls the values of v at the resolved indices, iterating any
// dimension the query left free.
func extractAt(v Variable, index map[string]int) Series {
	st := strides(v.Shape)

	base := 0
	var freeDims []string
	var freeShape []int
	var freeStrides []int
	for i, dim := range v.Dims {
		if idx, ok := index[dim]; ok {
			base += idx * st[i]
		} else {
			freeDims = append(freeDims, dim)
			freeShape = append(freeShape, v.Shape[i])
			freeStrides = append(freeStrides, st[i])
		}
	}

	n := 1
	for _, s := range freeShape {
		n *= s
	}

	values := make([]float64, 0, n)
	odo := make([]int, len(freeShape))
	for {
		off := base
		for i, c := range odo {
			off += c * freeStrides[i]
		}
		values = append(values, v.Values[off])

		i := len(odo) - 1
		for ; i >= 0; i-- {
			odo[i]++
			if odo[i] < freeShape[i] {
				break
			}
			odo[i] = 0
		}
		if i < 0 {
			break
		}
	}

	return Series{Dims: freeDims, Shape: freeShape, Values: values}
}
