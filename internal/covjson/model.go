// Package covjson assembles and validates CoverageJSON documents from
// gridded-dataset extractions.
package covjson

// DomainType is the closed set of coverage domain kinds this service
// produces.
type DomainType string

const (
	DomainGrid        DomainType = "Grid"
	DomainPointSeries DomainType = "PointSeries"
	DomainMultiPoint  DomainType = "MultiPoint"
	DomainTrajectory  DomainType = "Trajectory"
)

// Constant type tags and reference-system identifiers of the CoverageJSON
// wire format.
const (
	TypeCoverage  = "Coverage"
	TypeDomain    = "Domain"
	TypeParameter = "Parameter"
	TypeNdArray   = "NdArray"

	DataTypeFloat   = "float"
	DataTypeInteger = "integer"
	DataTypeString  = "string"

	AxisDataTypeTuple = "tuple"

	CRS84URI     = "http://www.opengis.net/def/crs/OGC/1.3/CRS84"
	UCUMUnitType = "http://www.opengis.net/def/uom/UCUM/"

	GregorianCalendar = "Gregorian"
)

// I18N is a language-tagged text map; all text this service emits is tagged
// "en".
type I18N map[string]string

// EnText wraps plain text as English-tagged I18N text.
func EnText(s string) I18N {
	return I18N{"en": s}
}

// Axis is one domain axis. Primitive axes carry numbers (or RFC 3339 time
// strings); composite axes carry coordinate tuples and set DataType "tuple"
// plus the coordinate roles.
type Axis struct {
	DataType    string    `json:"dataType,omitempty"`
	Coordinates []string  `json:"coordinates,omitempty"`
	Values      []any     `json:"values,omitempty"`
	Bounds      []float64 `json:"bounds,omitempty"`
}

// ReferenceSystem identifies a spatial CRS or a temporal reference system.
type ReferenceSystem struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`
	Calendar string `json:"calendar,omitempty"`
}

// Reference binds axis coordinates to a reference system.
type Reference struct {
	Coordinates []string        `json:"coordinates"`
	System      ReferenceSystem `json:"system"`
}

// GeographicReference is the WGS84-equivalent spatial reference for the x/y
// axes.
func GeographicReference() Reference {
	return Reference{
		Coordinates: []string{"x", "y"},
		System:      ReferenceSystem{Type: "GeographicCRS", ID: CRS84URI},
	}
}

// TemporalReference is the Gregorian-calendar reference for the t axis.
func TemporalReference() Reference {
	return Reference{
		Coordinates: []string{"t"},
		System:      ReferenceSystem{Type: "TemporalRS", Calendar: GregorianCalendar},
	}
}

// Domain is the geometric/temporal structure of a coverage.
type Domain struct {
	Type        string          `json:"type"`
	DomainType  DomainType      `json:"domainType"`
	Axes        map[string]Axis `json:"axes"`
	Referencing []Reference     `json:"referencing"`
}

// ObservedProperty labels the quantity a parameter measures.
type ObservedProperty struct {
	Label I18N `json:"label"`
}

// Symbol is a unit symbol with its notation system.
type Symbol struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Unit describes a parameter's unit of measurement.
type Unit struct {
	Label  I18N    `json:"label,omitempty"`
	Symbol *Symbol `json:"symbol,omitempty"`
}

// Parameter is the descriptive metadata of one exposed data field.
type Parameter struct {
	Type             string           `json:"type"`
	Label            I18N             `json:"label,omitempty"`
	Description      I18N             `json:"description,omitempty"`
	ObservedProperty ObservedProperty `json:"observedProperty"`
	Unit             *Unit            `json:"unit,omitempty"`
}

// NdArray is the flattened value payload for one field. A nil entry in
// Values is an explicit null marking a missing value; missing values are
// never dropped, so len(Values) always matches the shape.
type NdArray struct {
	Type      string     `json:"type"`
	DataType  string     `json:"dataType"`
	Shape     []int      `json:"shape"`
	AxisNames []string   `json:"axisNames,omitempty"`
	Values    []*float64 `json:"values"`
}

// Coverage is the top-level artifact: one domain plus per-field parameters
// and ranges.
type Coverage struct {
	Type       string               `json:"type"`
	ID         string               `json:"id,omitempty"`
	Domain     Domain               `json:"domain"`
	Parameters map[string]Parameter `json:"parameters"`
	Ranges     map[string]NdArray   `json:"ranges"`
}
