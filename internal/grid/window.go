package grid

import "fmt"

// Window restricts the dataset to the lat/lon bounding box, keeping every
// grid point whose coordinate falls inside the (inclusive) ranges. Axes
// other than lat and lon are untouched.
func Window(ds *Dataset, minLat, maxLat, minLon, maxLon float64) (*Dataset, error) {
	latIdx, err := axisIndicesWithin(ds, "lat", minLat, maxLat)
	if err != nil {
		return nil, err
	}
	lonIdx, err := axisIndicesWithin(ds, "lon", minLon, maxLon)
	if err != nil {
		return nil, err
	}

	axes := make([]Axis, 0, len(ds.axes))
	for name, ax := range ds.axes {
		switch name {
		case "lat":
			axes = append(axes, takeAxis(ax, latIdx))
		case "lon":
			axes = append(axes, takeAxis(ax, lonIdx))
		default:
			axes = append(axes, ax)
		}
	}

	vars := make(map[string]Variable, len(ds.vars))
	for name, v := range ds.vars {
		if dimIndex(v.Dims, "lat") >= 0 {
			v = takeAlong(v, "lat", latIdx)
		}
		if dimIndex(v.Dims, "lon") >= 0 {
			v = takeAlong(v, "lon", lonIdx)
		}
		vars[name] = v
	}

	return NewDataset(axes, vars)
}

func axisIndicesWithin(ds *Dataset, name string, min, max float64) ([]int, error) {
	ax, ok := ds.Axis(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDimensionNotFound, name)
	}
	var idx []int
	for i, v := range ax.Values {
		if v >= min && v <= max {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return nil, fmt.Errorf("window selects no %s values in [%v, %v]", name, min, max)
	}
	return idx, nil
}

func takeAxis(ax Axis, idx []int) Axis {
	values := make([]float64, len(idx))
	for i, j := range idx {
		values[i] = ax.Values[j]
	}
	return Axis{Name: ax.Name, Values: values, IsTime: ax.IsTime}
}

// takeAlong selects the given indices along one dimension of v.
func takeAlong(v Variable, dim string, idx []int) Variable {
	pos := dimIndex(v.Dims, dim)

	outer := 1
	for _, n := range v.Shape[:pos] {
		outer *= n
	}
	old := v.Shape[pos]
	inner := 1
	for _, n := range v.Shape[pos+1:] {
		inner *= n
	}

	values := make([]float64, outer*len(idx)*inner)
	for o := 0; o < outer; o++ {
		for j, src := range idx {
			copy(values[(o*len(idx)+j)*inner:(o*len(idx)+j+1)*inner],
				v.Values[(o*old+src)*inner:(o*old+src)*inner+inner])
		}
	}

	shape := make([]int, len(v.Shape))
	copy(shape, v.Shape)
	shape[pos] = len(idx)

	return Variable{Dims: v.Dims, Shape: shape, Values: values, Meta: v.Meta}
}
