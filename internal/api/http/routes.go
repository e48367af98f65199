package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/esmtools/grid-coverage/internal/covjson"
	"github.com/esmtools/grid-coverage/internal/extract"
	"github.com/esmtools/grid-coverage/internal/grid"
	"github.com/esmtools/grid-coverage/internal/store"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *extract.Service) {
	v1 := app.Group("/api/v1")
	ds := v1.Group("/datasets/:dataset")

	ds.Get("/fieldnames", func(c *fiber.Ctx) error {
		names, err := service.FieldNames(c.Params("dataset"))
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(fiber.Map{"fieldnames": names})
	})

	ds.Post("/extract_tracks", func(c *fiber.Ctx) error {
		var req extractTracksRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}

		tracks, err := extract.ParseTracks(req.Tracks)
		if err != nil {
			return toHTTPError(err)
		}

		coverages, err := service.ExtractTracks(c.Context(), c.Params("dataset"), tracks, req.Transform.toTransform(), req.Fieldnames)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(coverages)
	})

	ds.Post("/extract_points", func(c *fiber.Ctx) error {
		var req extractPointsRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}

		ts, err := parseTime(req.Time)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "bad_request: "+err.Error())
		}

		points := make([][2]float64, len(req.Points))
		for i, p := range req.Points {
			if p[0] < -90 || p[0] > 90 {
				return fiber.NewError(fiber.StatusBadRequest,
					fmt.Sprintf("bad_request: point %d latitude %v must be between -90 and 90", i, p[0]))
			}
			points[i] = [2]float64{p[0], p[1]}
		}

		cov, err := service.ExtractPoints(c.Context(), c.Params("dataset"), ts, points, req.Transform.toTransform(), req.Fieldnames)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(cov)
	})

	ds.Post("/extract_trajectory", func(c *fiber.Ctx) error {
		var req extractTrajectoryRequest
		if err := bindBody(c, &req); err != nil {
			return err
		}

		points := make([]extract.TrajectoryPoint, len(req.Points))
		for i, p := range req.Points {
			ts, err := parseTime(p.Time)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "bad_request: "+err.Error())
			}
			points[i] = extract.TrajectoryPoint{Time: ts, Lat: p.Lat, Lon: p.Lon}
		}

		cov, err := service.ExtractTrajectory(c.Context(), c.Params("dataset"), points, req.Transform.toTransform(), req.Fieldnames)
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(cov)
	})

	ds.Get("/position", func(c *fiber.Ctx) error {
		lat, err := requiredFloatQuery(c, "lat")
		if err != nil {
			return err
		}
		lon, err := requiredFloatQuery(c, "lon")
		if err != nil {
			return err
		}

		var ts *time.Time
		if v := c.Query("time"); v != "" {
			t, err := parseTime(v)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "bad_request: "+err.Error())
			}
			ts = &t
		}

		cov, err := service.PointSeries(c.Context(), c.Params("dataset"), lat, lon, ts, fieldsQuery(c))
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(cov)
	})

	ds.Get("/coverage", func(c *fiber.Ctx) error {
		bbox, err := parseBBox(c.Query("bbox"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "bad_request: "+err.Error())
		}

		cov, err := service.GridCoverage(c.Context(), c.Params("dataset"), bbox, fieldsQuery(c))
		if err != nil {
			return toHTTPError(err)
		}
		return c.JSON(cov)
	})
}

// toHTTPError maps pipeline errors onto distinct, documented failure codes.
func toHTTPError(err error) error {
	var verr *covjson.ValidationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "dataset_not_found: "+err.Error())
	case errors.Is(err, extract.ErrUnsupportedGeometry):
		return fiber.NewError(fiber.StatusUnprocessableEntity, "unsupported_geometry: "+err.Error())
	case errors.Is(err, grid.ErrFieldNotFound):
		return fiber.NewError(fiber.StatusNotFound, "field_not_found: "+err.Error())
	case errors.Is(err, grid.ErrDimensionNotFound):
		return fiber.NewError(fiber.StatusNotFound, "dimension_not_found: "+err.Error())
	case errors.As(err, &verr):
		return fiber.NewError(fiber.StatusInternalServerError, "validation_error: "+err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}

// fieldList accepts either a single field name or a list of names, matching
// the request contract.
type fieldList []string

func (f *fieldList) UnmarshalJSON(b []byte) error {
	// An explicit null means the same as omitting the field: all fields.
	if string(b) == "null" {
		*f = nil
		return nil
	}
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*f = fieldList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*f = fieldList(many)
	return nil
}

// transformRequest is the optional dataset reduction directive.
type transformRequest struct {
	Aggregation string `json:"aggregation" validate:"required,oneof=mean"`
	Dim         string `json:"dim" validate:"required"`
}

func (t *transformRequest) toTransform() *extract.Transform {
	if t == nil {
		return nil
	}
	return &extract.Transform{Aggregation: t.Aggregation, Dim: t.Dim}
}

type extractTracksRequest struct {
	Transform  *transformRequest `json:"transform"`
	Tracks     json.RawMessage   `json:"tracks" validate:"required"`
	Fieldnames fieldList         `json:"fieldnames"`
}

type extractPointsRequest struct {
	Transform  *transformRequest `json:"transform"`
	Time       string            `json:"time" validate:"required"`
	Points     [][]float64       `json:"points" validate:"required,min=1,dive,len=2"`
	Fieldnames fieldList         `json:"fieldnames"`
}

type trajectoryPointRequest struct {
	Time string  `json:"time" validate:"required"`
	Lat  float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon  float64 `json:"lon"`
}

type extractTrajectoryRequest struct {
	Transform  *transformRequest        `json:"transform"`
	Points     []trajectoryPointRequest `json:"points" validate:"required,min=1,dive"`
	Fieldnames fieldList                `json:"fieldnames"`
}

func bindBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "bad_request: "+err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "bad_request: "+err.Error())
	}
	return nil
}

func requiredFloatQuery(c *fiber.Ctx, name string) (float64, error) {
	v := c.Query(name)
	if v == "" {
		return 0, fiber.NewError(fiber.StatusBadRequest, "bad_request: "+name+" query parameter is required")
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "bad_request: invalid "+name+": "+err.Error())
	}
	return f, nil
}

func fieldsQuery(c *fiber.Ctx) []string {
	v := c.Query("fields")
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}

// parseBBox parses "minLon,minLat,maxLon,maxLat"; an empty string means no
// window.
func parseBBox(s string) (*extract.BBox, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, errors.New("bbox must be minLon,minLat,maxLon,maxLat")
	}
	var bbox extract.BBox
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.New("invalid bbox value " + p)
		}
		bbox[i] = f
	}
	return &bbox, nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
