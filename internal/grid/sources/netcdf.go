package sources

import (
	"context"
	"fmt"
	"math"
	"reflect"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/esmtools/grid-coverage/internal/grid"
)

// NetCDFSource loads a dataset from a local NetCDF file. Coordinate
// variables (a variable whose only dimension is itself) become axes; all
// other variables become data fields. Packed variables (scale_factor /
// add_offset) are unpacked and fill values become NaN.
type NetCDFSource struct {
	name string
	path string
}

// NewNetCDFSource creates a source reading the NetCDF file at path.
func NewNetCDFSource(name, path string) *NetCDFSource {
	return &NetCDFSource{name: name, path: path}
}

func (s *NetCDFSource) Name() string {
	return s.name
}

// Load reads the whole file into an immutable in-memory dataset.
func (s *NetCDFSource) Load(ctx context.Context) (*grid.Dataset, error) {
	nc, err := netcdf.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s.path, err)
	}
	defer nc.Close()

	var axes []grid.Axis
	vars := make(map[string]grid.Variable)

	for _, name := range nc.ListVariables() {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		v, err := nc.GetVariable(name)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}

		values, shape, err := flattenValues(v.Values)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}

		if isCoordinate(name, v) {
			ax, err := buildAxis(name, values, v.Attributes)
			if err != nil {
				return nil, err
			}
			axes = append(axes, ax)
			continue
		}

		applyPacking(values, v.Attributes)

		dims := make([]string, len(v.Dimensions))
		for i, d := range v.Dimensions {
			dims[i] = canonicalAxisName(d)
		}

		vars[name] = grid.Variable{
			Dims:   dims,
			Shape:  shape,
			Values: values,
			Meta: grid.VarMeta{
				LongName:    attrString(v.Attributes, "long_name"),
				Description: attrString(v.Attributes, "description"),
				Units:       attrString(v.Attributes, "units"),
			},
		}
	}

	return grid.NewDataset(axes, vars)
}

func isCoordinate(name string, v *api.Variable) bool {
	return len(v.Dimensions) == 1 && v.Dimensions[0] == name
}

func buildAxis(name string, values []float64, attrs api.AttributeMap) (grid.Axis, error) {
	canonical := canonicalAxisName(name)
	if canonical != "time" {
		return grid.Axis{Name: canonical, Values: values}, nil
	}

	units := attrString(attrs, "units")
	secs, err := toUnixSeconds(values, units)
	if err != nil {
		return grid.Axis{}, fmt.Errorf("time axis %q: %w", name, err)
	}
	return grid.Axis{Name: "time", Values: secs, IsTime: true}, nil
}

// applyPacking replaces fill values with NaN and unpacks scale_factor /
// add_offset encoded variables in place.
func applyPacking(values []float64, attrs api.AttributeMap) {
	fill, hasFill := attrFloat(attrs, "_FillValue")
	if !hasFill {
		fill, hasFill = attrFloat(attrs, "missing_value")
	}
	scale, hasScale := attrFloat(attrs, "scale_factor")
	offset, hasOffset := attrFloat(attrs, "add_offset")

	for i, v := range values {
		if hasFill && v == fill {
			values[i] = math.NaN()
			continue
		}
		if hasScale {
			v = v * scale
		}
		if hasOffset {
			v = v + offset
		}
		values[i] = v
	}
}

func attrString(attrs api.AttributeMap, key string) string {
	if attrs == nil {
		return ""
	}
	v, has := attrs.Get(key)
	if !has {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

func attrFloat(attrs api.AttributeMap, key string) (float64, bool) {
	if attrs == nil {
		return 0, false
	}
	v, has := attrs.Get(key)
	if !has {
		return 0, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		if rv.Len() != 1 {
			return 0, false
		}
		rv = rv.Index(0)
	}

	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	default:
		return 0, false
	}
}

// flattenValues converts the nested typed slices the NetCDF reader returns
// into a row-major float64 array plus its shape.
func flattenValues(v interface{}) ([]float64, []int, error) {
	rv := reflect.ValueOf(v)

	var shape []int
	for r := rv; r.Kind() == reflect.Slice; r = r.Index(0) {
		shape = append(shape, r.Len())
		if r.Len() == 0 {
			break
		}
	}

	n := 1
	for _, s := range shape {
		n *= s
	}
	values := make([]float64, 0, n)

	var walk func(r reflect.Value) error
	walk = func(r reflect.Value) error {
		if r.Kind() == reflect.Slice {
			for i := 0; i < r.Len(); i++ {
				if err := walk(r.Index(i)); err != nil {
					return err
				}
			}
			return nil
		}
		switch r.Kind() {
		case reflect.Float32, reflect.Float64:
			values = append(values, r.Float())
		case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			values = append(values, float64(r.Int()))
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			values = append(values, float64(r.Uint()))
		default:
			return fmt.Errorf("unsupported value kind %s", r.Kind())
		}
		return nil
	}

	if err := walk(rv); err != nil {
		return nil, nil, err
	}
	return values, shape, nil
}
