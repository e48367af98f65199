package extract

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var (
	// ErrUnsupportedGeometry is returned for track geometries other than a
	// single-path LineString, notably MultiLineString.
	ErrUnsupportedGeometry = errors.New("unsupported geometry")
)

// Track is a single-segment route: an ordered path of (lon, lat) points
// with an identifier.
type Track struct {
	ID     string
	Points orb.LineString
}

// ParseTracks decodes a GeoJSON FeatureCollection of LineString features
// into tracks. Any feature carrying a MultiLineString (or any other
// non-LineString geometry) rejects the whole collection; multi-path tracks
// are never silently flattened. The track id comes from the feature's
// track_id property, or a generated identifier when absent.
func ParseTracks(raw []byte) ([]Track, error) {
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding tracks: %w", err)
	}
	if len(fc.Features) == 0 {
		return nil, fmt.Errorf("tracks contain no features")
	}

	tracks := make([]Track, 0, len(fc.Features))
	for i, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.LineString:
			if len(g) < 2 {
				return nil, fmt.Errorf("%w: feature %d has fewer than 2 track points", ErrUnsupportedGeometry, i)
			}
			tracks = append(tracks, Track{ID: trackID(f), Points: g})
		case orb.MultiLineString:
			return nil, fmt.Errorf("%w: feature %d is a MultiLineString; only single-path tracks are supported", ErrUnsupportedGeometry, i)
		default:
			return nil, fmt.Errorf("%w: feature %d is a %s; only LineString tracks are supported", ErrUnsupportedGeometry, i, f.Geometry.GeoJSONType())
		}
	}

	return tracks, nil
}

func trackID(f *geojson.Feature) string {
	switch id := f.Properties["track_id"].(type) {
	case string:
		return id
	case float64:
		return fmt.Sprintf("%v", id)
	default:
		return uuid.NewString()
	}
}
