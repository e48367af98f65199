package covjson

import (
	"fmt"
	"math"
	"time"

	"github.com/esmtools/grid-coverage/internal/grid"
)

// Build assembles a Coverage of the given domain kind from an extraction
// result. The Grid kind reads the dataset axes directly and ignores samples;
// the point kinds read the snapped coordinates and extracted values of each
// sample, preserving query order.
func Build(ds *grid.Dataset, kind DomainType, samples []grid.Sample, fields []string) (*Coverage, error) {
	params, err := buildParameters(ds, fields)
	if err != nil {
		return nil, err
	}

	var (
		domain Domain
		ranges map[string]NdArray
	)

	switch kind {
	case DomainGrid:
		domain, ranges = buildGrid(ds, fields)
	case DomainPointSeries:
		domain, ranges, err = buildPointSeries(ds, samples, fields)
	case DomainMultiPoint:
		domain, ranges, err = buildMultiPoint(ds, samples, fields)
	case DomainTrajectory:
		domain, ranges, err = buildTrajectory(samples, fields)
	default:
		err = fmt.Errorf("unknown domain type %q", kind)
	}
	if err != nil {
		return nil, err
	}

	return &Coverage{
		Type:       TypeCoverage,
		Domain:     domain,
		Parameters: params,
		Ranges:     ranges,
	}, nil
}

func buildParameters(ds *grid.Dataset, fields []string) (map[string]Parameter, error) {
	params := make(map[string]Parameter, len(fields))
	for _, name := range fields {
		v, ok := ds.Var(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", grid.ErrFieldNotFound, name)
		}

		label := v.Meta.LongName
		if label == "" {
			label = name
		}

		p := Parameter{
			Type:             TypeParameter,
			Label:            EnText(label),
			ObservedProperty: ObservedProperty{Label: EnText(label)},
		}
		if v.Meta.Description != "" {
			p.Description = EnText(v.Meta.Description)
		}
		if v.Meta.Units != "" {
			p.Unit = &Unit{
				Label:  EnText(v.Meta.Units),
				Symbol: &Symbol{Type: UCUMUnitType, Value: v.Meta.Units},
			}
		}
		params[name] = p
	}
	return params, nil
}

func buildGrid(ds *grid.Dataset, fields []string) (Domain, map[string]NdArray) {
	axes := make(map[string]Axis)
	hasTime := false
	for _, ax := range ds.Axes() {
		axes[covAxisName(ax.Name)] = primitiveAxis(ax)
		if ax.IsTime {
			hasTime = true
		}
	}

	ranges := make(map[string]NdArray, len(fields))
	for _, name := range fields {
		v, _ := ds.Var(name)
		axisNames := make([]string, len(v.Dims))
		for i, dim := range v.Dims {
			axisNames[i] = covAxisName(dim)
		}
		shape := make([]int, len(v.Shape))
		copy(shape, v.Shape)
		ranges[name] = NdArray{
			Type:      TypeNdArray,
			DataType:  DataTypeFloat,
			Shape:     shape,
			AxisNames: axisNames,
			Values:    floatValues(v.Values),
		}
	}

	return Domain{
		Type:        TypeDomain,
		DomainType:  DomainGrid,
		Axes:        axes,
		Referencing: referencing(hasTime),
	}, ranges
}

func buildPointSeries(ds *grid.Dataset, samples []grid.Sample, fields []string) (Domain, map[string]NdArray, error) {
	if len(samples) != 1 {
		return Domain{}, nil, fmt.Errorf("point series requires exactly one query point, got %d", len(samples))
	}
	s := samples[0]

	lon, lat, err := snappedPosition(s)
	if err != nil {
		return Domain{}, nil, err
	}

	axes := map[string]Axis{
		"x": {Values: []any{lon}},
		"y": {Values: []any{lat}},
	}
	hasTime := false
	if t, ok := s.Snapped["time"]; ok {
		axes["t"] = Axis{Values: []any{timeString(t)}}
		hasTime = true
	} else if ax, ok := ds.Axis("time"); ok {
		axes["t"] = timeAxis(ax.Values)
		hasTime = true
	}

	ranges := make(map[string]NdArray, len(fields))
	for _, name := range fields {
		series := s.Fields[name]
		axisNames := make([]string, len(series.Dims))
		for i, dim := range series.Dims {
			axisNames[i] = covAxisName(dim)
		}
		shape := make([]int, len(series.Shape))
		copy(shape, series.Shape)
		ranges[name] = NdArray{
			Type:      TypeNdArray,
			DataType:  DataTypeFloat,
			Shape:     shape,
			AxisNames: axisNames,
			Values:    floatValues(series.Values),
		}
	}

	return Domain{
		Type:        TypeDomain,
		DomainType:  DomainPointSeries,
		Axes:        axes,
		Referencing: referencing(hasTime),
	}, ranges, nil
}

func buildMultiPoint(ds *grid.Dataset, samples []grid.Sample, fields []string) (Domain, map[string]NdArray, error) {
	if len(samples) == 0 {
		return Domain{}, nil, fmt.Errorf("multipoint requires at least one query point")
	}

	tuples := make([]any, len(samples))
	for i, s := range samples {
		lon, lat, err := snappedPosition(s)
		if err != nil {
			return Domain{}, nil, err
		}
		tuples[i] = []any{lon, lat}
	}

	axes := map[string]Axis{
		"composite": {
			DataType:    AxisDataTypeTuple,
			Coordinates: []string{"x", "y"},
			Values:      tuples,
		},
	}
	hasTime := false
	if t, ok := samples[0].Snapped["time"]; ok {
		// All points share one query time.
		axes["t"] = Axis{Values: []any{timeString(t)}}
		hasTime = true
	} else if ax, ok := ds.Axis("time"); ok {
		// Track extraction: the grid's native time slices remain.
		axes["t"] = timeAxis(ax.Values)
		hasTime = true
	}

	ranges, err := compositeRanges(samples, fields)
	if err != nil {
		return Domain{}, nil, err
	}

	return Domain{
		Type:        TypeDomain,
		DomainType:  DomainMultiPoint,
		Axes:        axes,
		Referencing: referencing(hasTime),
	}, ranges, nil
}

func buildTrajectory(samples []grid.Sample, fields []string) (Domain, map[string]NdArray, error) {
	if len(samples) == 0 {
		return Domain{}, nil, fmt.Errorf("trajectory requires at least one query point")
	}

	tuples := make([]any, len(samples))
	for i, s := range samples {
		lon, lat, err := snappedPosition(s)
		if err != nil {
			return Domain{}, nil, err
		}
		t, ok := s.Snapped["time"]
		if !ok {
			return Domain{}, nil, fmt.Errorf("trajectory point %d has no resolved time", i)
		}
		tuples[i] = []any{timeString(t), lon, lat}
	}

	axes := map[string]Axis{
		"composite": {
			DataType:    AxisDataTypeTuple,
			Coordinates: []string{"t", "x", "y"},
			Values:      tuples,
		},
	}

	ranges, err := compositeRanges(samples, fields)
	if err != nil {
		return Domain{}, nil, err
	}

	return Domain{
		Type:        TypeDomain,
		DomainType:  DomainTrajectory,
		Axes:        axes,
		Referencing: referencing(true),
	}, ranges, nil
}

// compositeRanges flattens per-sample extractions into ranges co-indexed
// with the composite axis: shape [n] for scalar extractions, [L, n]
// row-major when each point carries a residual series of length L.
func compositeRanges(samples []grid.Sample, fields []string) (map[string]NdArray, error) {
	n := len(samples)
	ranges := make(map[string]NdArray, len(fields))

	for _, name := range fields {
		l := len(samples[0].Fields[name].Values)
		for i, s := range samples {
			if len(s.Fields[name].Values) != l {
				return nil, fmt.Errorf("field %q: point %d extracted %d values, point 0 extracted %d",
					name, i, len(s.Fields[name].Values), l)
			}
		}

		var shape []int
		values := make([]*float64, 0, l*n)
		if l == 1 {
			shape = []int{n}
			for _, s := range samples {
				values = append(values, floatValue(s.Fields[name].Values[0]))
			}
		} else {
			shape = []int{l, n}
			for t := 0; t < l; t++ {
				for _, s := range samples {
					values = append(values, floatValue(s.Fields[name].Values[t]))
				}
			}
		}

		ranges[name] = NdArray{
			Type:     TypeNdArray,
			DataType: DataTypeFloat,
			Shape:    shape,
			Values:   values,
		}
	}

	return ranges, nil
}

func referencing(hasTime bool) []Reference {
	refs := []Reference{GeographicReference()}
	if hasTime {
		refs = append(refs, TemporalReference())
	}
	return refs
}

func snappedPosition(s grid.Sample) (lon, lat float64, err error) {
	lon, okLon := s.Snapped["lon"]
	lat, okLat := s.Snapped["lat"]
	if !okLon || !okLat {
		return 0, 0, fmt.Errorf("query point resolved no lat/lon position")
	}
	return lon, lat, nil
}

func primitiveAxis(ax grid.Axis) Axis {
	if ax.IsTime {
		return timeAxis(ax.Values)
	}
	values := make([]any, len(ax.Values))
	for i, v := range ax.Values {
		values[i] = v
	}
	return Axis{Values: values}
}

func timeAxis(secs []float64) Axis {
	values := make([]any, len(secs))
	for i, s := range secs {
		values[i] = timeString(s)
	}
	return Axis{Values: values}
}

// covAxisName maps dataset axis names onto CoverageJSON axis identifiers.
func covAxisName(dim string) string {
	switch dim {
	case "lon":
		return "x"
	case "lat":
		return "y"
	case "time":
		return "t"
	default:
		return dim
	}
}

func timeString(unixSec float64) string {
	return time.Unix(int64(unixSec), 0).UTC().Format(time.RFC3339)
}

func floatValues(vals []float64) []*float64 {
	out := make([]*float64, len(vals))
	for i, v := range vals {
		out[i] = floatValue(v)
	}
	return out
}

// floatValue returns nil for any non-finite value so it serializes as an
// explicit null instead of being dropped; encoding/json refuses NaN and
// infinities outright.
func floatValue(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	x := v
	return &x
}
