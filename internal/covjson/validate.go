package covjson

import (
	"fmt"
	"sort"
)

// ValidationError reports the first structural invariant an assembled
// coverage violates.
type ValidationError struct {
	Invariant string
	Detail    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid coverage: %s: %s", e.Invariant, e.Detail)
}

func invalid(invariant, format string, args ...any) *ValidationError {
	return &ValidationError{Invariant: invariant, Detail: fmt.Sprintf(format, args...)}
}

// Validate checks the structural invariants of a coverage against the
// requested field set, in a fixed order, returning on the first violation:
// (1) axis values non-empty, (2) bounds length, (3) domain-kind axis rules,
// (4) range shape/axisNames agreement, (5) range shape/values agreement,
// (6) parameter, range and requested key sets identical.
func Validate(c *Coverage, fields []string) error {
	axisNames := make([]string, 0, len(c.Domain.Axes))
	for name := range c.Domain.Axes {
		axisNames = append(axisNames, name)
	}
	sort.Strings(axisNames)

	// (1) axis values must be non-empty.
	for _, name := range axisNames {
		if len(c.Domain.Axes[name].Values) == 0 {
			return invalid("axis values", "axis %q has no values", name)
		}
	}

	// (2) bounds, when present, pair up with values.
	for _, name := range axisNames {
		ax := c.Domain.Axes[name]
		if len(ax.Bounds) > 0 && len(ax.Bounds) != 2*len(ax.Values) {
			return invalid("axis bounds", "axis %q has %d bounds for %d values", name, len(ax.Bounds), len(ax.Values))
		}
	}

	// (3) domain-kind axis rules.
	if err := validateDomainAxes(&c.Domain); err != nil {
		return err
	}

	rangeNames := make([]string, 0, len(c.Ranges))
	for name := range c.Ranges {
		rangeNames = append(rangeNames, name)
	}
	sort.Strings(rangeNames)

	// (4) axisNames, when present, match the shape rank.
	for _, name := range rangeNames {
		r := c.Ranges[name]
		if len(r.AxisNames) > 0 && len(r.AxisNames) != len(r.Shape) {
			return invalid("range axisNames", "range %q has %d axisNames for rank-%d shape", name, len(r.AxisNames), len(r.Shape))
		}
	}

	// (5) shape must account for every value.
	for _, name := range rangeNames {
		r := c.Ranges[name]
		n := 1
		for _, s := range r.Shape {
			n *= s
		}
		if n != len(r.Values) {
			return invalid("range shape", "range %q shape implies %d values, got %d", name, n, len(r.Values))
		}
	}

	// (6) parameters, ranges and the requested field set must coincide.
	if err := validateKeySets(c, fields); err != nil {
		return err
	}

	return nil
}

func validateDomainAxes(d *Domain) error {
	switch d.DomainType {
	case DomainGrid:
		for _, name := range []string{"x", "y"} {
			ax, ok := d.Axes[name]
			if !ok {
				return invalid("domain axes", "Grid domain is missing the %q axis", name)
			}
			if ax.DataType == AxisDataTypeTuple {
				return invalid("domain axes", "Grid domain axis %q must not be composite", name)
			}
		}
	case DomainPointSeries:
		for _, name := range []string{"x", "y"} {
			ax, ok := d.Axes[name]
			if !ok {
				return invalid("domain axes", "PointSeries domain is missing the %q axis", name)
			}
			if len(ax.Values) != 1 {
				return invalid("domain axes", "PointSeries domain axis %q must hold exactly one value, got %d", name, len(ax.Values))
			}
		}
		if _, ok := d.Axes["t"]; !ok {
			return invalid("domain axes", "PointSeries domain is missing the \"t\" axis")
		}
	case DomainMultiPoint:
		return validateCompositeAxis(d, []string{"x", "y"})
	case DomainTrajectory:
		return validateCompositeAxis(d, []string{"t", "x", "y"})
	default:
		return invalid("domain type", "unknown domain type %q", d.DomainType)
	}
	return nil
}

// validateCompositeAxis checks the composite axis of a MultiPoint or
// Trajectory domain: coordinate roles must start with the required ones
// (an optional trailing "z" is allowed) and every value must be a tuple of
// matching arity.
func validateCompositeAxis(d *Domain, required []string) error {
	ax, ok := d.Axes["composite"]
	if !ok {
		return invalid("domain axes", "%s domain is missing the composite axis", d.DomainType)
	}
	if ax.DataType != AxisDataTypeTuple {
		return invalid("domain axes", "%s composite axis dataType must be %q, got %q", d.DomainType, AxisDataTypeTuple, ax.DataType)
	}

	coords := ax.Coordinates
	withZ := append(append([]string{}, required...), "z")
	if !equalStrings(coords, required) && !equalStrings(coords, withZ) {
		return invalid("domain axes", "%s composite axis coordinates must be %v (optionally with \"z\"), got %v", d.DomainType, required, coords)
	}

	for i, v := range ax.Values {
		tuple, ok := v.([]any)
		if !ok || len(tuple) != len(coords) {
			return invalid("domain axes", "%s composite axis value %d is not a %d-tuple", d.DomainType, i, len(coords))
		}
	}

	return nil
}

func validateKeySets(c *Coverage, fields []string) error {
	want := make(map[string]bool, len(fields))
	for _, f := range fields {
		want[f] = true
	}

	for name := range want {
		if _, ok := c.Parameters[name]; !ok {
			return invalid("key sets", "requested field %q has no parameter", name)
		}
		if _, ok := c.Ranges[name]; !ok {
			return invalid("key sets", "requested field %q has no range", name)
		}
	}
	for name := range c.Parameters {
		if !want[name] {
			return invalid("key sets", "parameter %q was not requested", name)
		}
	}
	for name := range c.Ranges {
		if !want[name] {
			return invalid("key sets", "range %q was not requested", name)
		}
	}

	return nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
