package sources

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/esmtools/grid-coverage/internal/grid"
)

// ZarrSource loads a dataset from a remote consolidated zarr (v2) store
// over HTTP. Supported arrays are uncompressed, C-ordered, little-endian
// numeric chunks; fill values become NaN. Individual object fetches retry
// with backoff behind a circuit breaker; no retry policy leaks into the
// core query pipeline.
type ZarrSource struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewZarrSource creates a source reading the consolidated zarr store at
// baseURL.
func NewZarrSource(name, baseURL string, client *http.Client) *ZarrSource {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "zarr:" + name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &ZarrSource{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpCfg: HTTPClientConfig{
			Client: client,
			Backoff: BackoffConfig{
				MaxRetries:      3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: cb,
	}
}

func (s *ZarrSource) Name() string {
	return s.name
}

type zarrayMeta struct {
	Shape      []int           `json:"shape"`
	Chunks     []int           `json:"chunks"`
	Dtype      string          `json:"dtype"`
	Compressor json.RawMessage `json:"compressor"`
	Order      string          `json:"order"`
	FillValue  json.RawMessage `json:"fill_value"`
}

type zattrsMeta struct {
	Dims        []string `json:"_ARRAY_DIMENSIONS"`
	LongName    string   `json:"long_name"`
	Description string   `json:"description"`
	Units       string   `json:"units"`
}

// Load fetches the consolidated metadata and every array's chunks, and
// assembles an immutable in-memory dataset.
func (s *ZarrSource) Load(ctx context.Context) (*grid.Dataset, error) {
	body, err := s.fetch(ctx, ".zmetadata")
	if err != nil {
		return nil, fmt.Errorf("fetching consolidated metadata: %w", err)
	}

	var consolidated struct {
		Metadata map[string]json.RawMessage `json:"metadata"`
	}
	if err := json.Unmarshal(body, &consolidated); err != nil {
		return nil, fmt.Errorf("decoding consolidated metadata: %w", err)
	}

	var axes []grid.Axis
	vars := make(map[string]grid.Variable)

	for key, raw := range consolidated.Metadata {
		name, ok := strings.CutSuffix(key, "/.zarray")
		if !ok {
			continue
		}

		var meta zarrayMeta
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil, fmt.Errorf("array %q: decoding .zarray: %w", name, err)
		}

		var attrs zattrsMeta
		if rawAttrs, ok := consolidated.Metadata[name+"/.zattrs"]; ok {
			if err := json.Unmarshal(rawAttrs, &attrs); err != nil {
				return nil, fmt.Errorf("array %q: decoding .zattrs: %w", name, err)
			}
		}

		values, err := s.readArray(ctx, name, meta)
		if err != nil {
			return nil, err
		}

		if len(attrs.Dims) == 1 && attrs.Dims[0] == name {
			ax, err := buildZarrAxis(name, values, attrs)
			if err != nil {
				return nil, err
			}
			axes = append(axes, ax)
			continue
		}

		dims := make([]string, len(attrs.Dims))
		for i, d := range attrs.Dims {
			dims[i] = canonicalAxisName(d)
		}
		shape := make([]int, len(meta.Shape))
		copy(shape, meta.Shape)

		vars[name] = grid.Variable{
			Dims:   dims,
			Shape:  shape,
			Values: values,
			Meta: grid.VarMeta{
				LongName:    attrs.LongName,
				Description: attrs.Description,
				Units:       attrs.Units,
			},
		}
	}

	return grid.NewDataset(axes, vars)
}

func buildZarrAxis(name string, values []float64, attrs zattrsMeta) (grid.Axis, error) {
	canonical := canonicalAxisName(name)
	if canonical != "time" {
		return grid.Axis{Name: canonical, Values: values}, nil
	}
	secs, err := toUnixSeconds(values, attrs.Units)
	if err != nil {
		return grid.Axis{}, fmt.Errorf("time axis %q: %w", name, err)
	}
	return grid.Axis{Name: "time", Values: secs, IsTime: true}, nil
}

// readArray fetches every chunk of one array and assembles the full
// row-major value array.
func (s *ZarrSource) readArray(ctx context.Context, name string, meta zarrayMeta) ([]float64, error) {
	if len(meta.Compressor) > 0 && string(meta.Compressor) != "null" {
		return nil, fmt.Errorf("array %q: compressed chunks are not supported", name)
	}
	if meta.Order != "" && meta.Order != "C" {
		return nil, fmt.Errorf("array %q: order %q is not supported", name, meta.Order)
	}
	if len(meta.Shape) != len(meta.Chunks) {
		return nil, fmt.Errorf("array %q: %d shape dims but %d chunk dims", name, len(meta.Shape), len(meta.Chunks))
	}
	for i := range meta.Shape {
		if meta.Shape[i] < 0 || meta.Chunks[i] < 1 {
			return nil, fmt.Errorf("array %q: invalid shape %v with chunks %v", name, meta.Shape, meta.Chunks)
		}
	}

	total := 1
	for _, n := range meta.Shape {
		total *= n
	}
	values := make([]float64, total)

	fill := parseFillValue(meta.FillValue)

	// Number of chunks along each dimension.
	counts := make([]int, len(meta.Shape))
	for i := range meta.Shape {
		counts[i] = (meta.Shape[i] + meta.Chunks[i] - 1) / meta.Chunks[i]
	}

	coord := make([]int, len(counts))
	for {
		raw, err := s.fetch(ctx, name+"/"+chunkKey(coord))
		if err != nil {
			return nil, fmt.Errorf("array %q chunk %s: %w", name, chunkKey(coord), err)
		}

		chunk, err := decodeChunk(raw, meta.Dtype, meta.Chunks)
		if err != nil {
			return nil, fmt.Errorf("array %q chunk %s: %w", name, chunkKey(coord), err)
		}

		placeChunk(values, meta.Shape, meta.Chunks, coord, chunk)

		if !advance(coord, counts) {
			break
		}
	}

	if fill != nil {
		for i, v := range values {
			if v == *fill {
				values[i] = math.NaN()
			}
		}
	}

	return values, nil
}

func chunkKey(coord []int) string {
	parts := make([]string, len(coord))
	for i, c := range coord {
		parts[i] = strconv.Itoa(c)
	}
	if len(parts) == 0 {
		return "0"
	}
	return strings.Join(parts, ".")
}

func decodeChunk(raw []byte, dtype string, chunks []int) ([]float64, error) {
	n := 1
	for _, c := range chunks {
		n *= c
	}

	type decoder struct {
		size int
		at   func(b []byte) float64
	}

	var d decoder
	switch dtype {
	case "<f8":
		d = decoder{8, func(b []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(b)) }}
	case "<f4":
		d = decoder{4, func(b []byte) float64 { return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))) }}
	case "<i8":
		d = decoder{8, func(b []byte) float64 { return float64(int64(binary.LittleEndian.Uint64(b))) }}
	case "<i4":
		d = decoder{4, func(b []byte) float64 { return float64(int32(binary.LittleEndian.Uint32(b))) }}
	case "<i2":
		d = decoder{2, func(b []byte) float64 { return float64(int16(binary.LittleEndian.Uint16(b))) }}
	case "|i1":
		d = decoder{1, func(b []byte) float64 { return float64(int8(b[0])) }}
	case "|u1":
		d = decoder{1, func(b []byte) float64 { return float64(b[0]) }}
	default:
		return nil, fmt.Errorf("dtype %q is not supported", dtype)
	}

	if len(raw) < n*d.size {
		return nil, fmt.Errorf("chunk holds %d bytes, need %d", len(raw), n*d.size)
	}

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = d.at(raw[i*d.size:])
	}
	return out, nil
}

// placeChunk copies one chunk into the assembled array, skipping the
// padding of partial edge chunks.
func placeChunk(values []float64, shape, chunks, coord []int, chunk []float64) {
	ndim := len(shape)
	if ndim == 0 {
		values[0] = chunk[0]
		return
	}

	strides := make([]int, ndim)
	stride := 1
	for i := ndim - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}

	pos := make([]int, ndim)
	for {
		inBounds := true
		off := 0
		cOff := 0
		cStride := 1
		for i := ndim - 1; i >= 0; i-- {
			cOff += pos[i] * cStride
			cStride *= chunks[i]
		}
		for i := 0; i < ndim; i++ {
			g := coord[i]*chunks[i] + pos[i]
			if g >= shape[i] {
				inBounds = false
				break
			}
			off += g * strides[i]
		}
		if inBounds {
			values[off] = chunk[cOff]
		}

		if !advance(pos, chunks) {
			break
		}
	}
}

// advance increments a multi-dimensional odometer; it reports false once
// every position has been visited.
func advance(pos, limits []int) bool {
	for i := len(pos) - 1; i >= 0; i-- {
		pos[i]++
		if pos[i] < limits[i] {
			return true
		}
		pos[i] = 0
	}
	return false
}

func parseFillValue(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "NaN" {
			nan := math.NaN()
			return &nan
		}
	}
	return nil
}

func (s *ZarrSource) fetch(ctx context.Context, key string) ([]byte, error) {
	return fetchWithResilience(ctx, s.httpCfg, s.circuit, s.baseURL+"/"+key)
}
