package hub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// GeoLocation is a spatial region or named place.
type GeoLocation struct {
	GeoLocationPlace   string                   `json:"geoLocationPlace,omitempty"`
	GeoLocationPoint   *GeoLocationPoint        `json:"geoLocationPoint,omitempty"`
	GeoLocationBox     *GeoLocationBox          `json:"geoLocationBox,omitempty"`
	GeoLocationPolygon List[GeoLocationPolygon] `json:"geoLocationPolygon,omitempty"`
}

// GeoLocationPoint is a single coordinate.
type GeoLocationPoint struct {
	PointLongitude *Degrees `json:"pointLongitude,omitempty"`
	PointLatitude  *Degrees `json:"pointLatitude,omitempty"`
}

// GeoLocationBox is a bounding box.
type GeoLocationBox struct {
	WestBoundLongitude *Degrees `json:"westBoundLongitude,omitempty"`
	EastBoundLongitude *Degrees `json:"eastBoundLongitude,omitempty"`
	SouthBoundLatitude *Degrees `json:"southBoundLatitude,omitempty"`
	NorthBoundLatitude *Degrees `json:"northBoundLatitude,omitempty"`
}

// GeoLocationPolygon is a closed ring of points.
type GeoLocationPolygon struct {
	PolygonPoints  List[GeoLocationPoint] `json:"polygonPoints,omitempty"`
	InPolygonPoint *GeoLocationPoint      `json:"inPolygonPoint,omitempty"`
}

// Degrees is a latitude or longitude. Input that cannot be read as a number
// is kept verbatim in Invalid so validation can report it.
type Degrees struct {
	Value   float64
	Invalid string
}

// Deg returns a valid coordinate.
func Deg(v float64) *Degrees {
	return &Degrees{Value: v}
}

// ParseDegrees reads a coordinate written as text. A leading "+" and a
// trailing "." are accepted ("+123." is 123).
func ParseDegrees(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "+")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	if s == "" {
		return 0, fmt.Errorf("empty coordinate")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid coordinate %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid coordinate %q", s)
	}
	return v, nil
}

// DegreesFromText coerces text into a coordinate, keeping invalid input.
func DegreesFromText(s string) *Degrees {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	v, err := ParseDegrees(s)
	if err != nil {
		return &Degrees{Invalid: s}
	}
	return &Degrees{Value: v}
}

// Valid reports whether the coordinate parsed as a number.
func (d *Degrees) Valid() bool {
	return d != nil && d.Invalid == ""
}

// String formats the value the shortest way that parses back identically.
func (d *Degrees) String() string {
	if d == nil {
		return ""
	}
	if d.Invalid != "" {
		return d.Invalid
	}
	return strconv.FormatFloat(d.Value, 'f', -1, 64)
}

// MarshalJSON writes a number, or the original text if it never parsed.
func (d Degrees) MarshalJSON() ([]byte, error) {
	if d.Invalid != "" {
		return json.Marshal(d.Invalid)
	}
	return []byte(strconv.FormatFloat(d.Value, 'f', -1, 64)), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (d *Degrees) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := ParseDegrees(s)
		if err != nil {
			*d = Degrees{Invalid: s}
			return nil
		}
		*d = Degrees{Value: v}
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		*d = Degrees{Invalid: string(data)}
		return nil
	}
	*d = Degrees{Value: v}
	return nil
}
