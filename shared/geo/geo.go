// Package geo holds the GeoJSON shapes shared by the storage layer, the API
// payloads and the geocoding gateway. Positions are always longitude first.
package geo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

const (
	TypePoint   = "Point"
	TypePolygon = "Polygon"
)

var (
	ErrInvalidCoordinates = errors.New("coordinates must be valid numbers")
	ErrInvalidPoint       = errors.New("invalid GeoJSON point")
	ErrInvalidPolygon     = errors.New("invalid GeoJSON polygon")
)

// Coordinates is a latitude/longitude pair with unambiguous field names.
//
// It decodes from a [lng, lat] pair, from {"lat": .., "lng": ..} and from a
// GeoJSON point, so callers never have to know which ordering a client used.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// FromPair converts a GeoJSON position ([lng, lat]) into Coordinates.
func FromPair(pair []float64) (Coordinates, error) {
	if len(pair) != 2 {
		return Coordinates{}, fmt.Errorf("%w: expected [lng, lat], got %d values", ErrInvalidCoordinates, len(pair))
	}

	return Coordinates{Lat: pair[1], Lng: pair[0]}, nil
}

// Pair returns the GeoJSON position for c.
func (c Coordinates) Pair() []float64 {
	return []float64{c.Lng, c.Lat}
}

// Validate reports whether both values are finite and inside the WGS84 range.
func (c Coordinates) Validate() error {
	if !isFinite(c.Lat) || !isFinite(c.Lng) {
		return ErrInvalidCoordinates
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("%w: lat=%f lng=%f out of range", ErrInvalidCoordinates, c.Lat, c.Lng)
	}

	return nil
}

func (c *Coordinates) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var pair []float64
		if err := json.Unmarshal(data, &pair); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
		}
		parsed, err := FromPair(pair)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}

	var raw struct {
		Type        string    `json:"type"`
		Coordinates []float64 `json:"coordinates"`
		Lat         *float64  `json:"lat"`
		Lng         *float64  `json:"lng"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
	}

	switch {
	case raw.Lat != nil && raw.Lng != nil:
		*c = Coordinates{Lat: *raw.Lat, Lng: *raw.Lng}
		return nil
	case raw.Type == TypePoint:
		parsed, err := FromPair(raw.Coordinates)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	default:
		return ErrInvalidCoordinates
	}
}

// Point is a GeoJSON point.
type Point struct {
	Type        string    `json:"type"        bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
}

// NewPoint builds a GeoJSON point from c.
func NewPoint(c Coordinates) *Point {
	return &Point{Type: TypePoint, Coordinates: c.Pair()}
}

// LatLng extracts the coordinates carried by the point.
func (p Point) LatLng() (Coordinates, error) {
	if p.Type != TypePoint {
		return Coordinates{}, ErrInvalidPoint
	}

	return FromPair(p.Coordinates)
}

// Polygon is a GeoJSON polygon: an outer ring followed by optional holes.
type Polygon struct {
	Type        string        `json:"type"        bson:"type"`
	Coordinates [][][]float64 `json:"coordinates" bson:"coordinates"`
}

// UnmarshalJSON keeps the geometry type even when the coordinates do not have
// a polygon's shape, so that Validate can reject it with ErrInvalidPolygon
// instead of a generic decoding error.
func (p *Polygon) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPolygon, err)
	}

	p.Type = raw.Type
	p.Coordinates = nil

	var rings [][][]float64
	if len(raw.Coordinates) > 0 && json.Unmarshal(raw.Coordinates, &rings) == nil {
		p.Coordinates = rings
	}

	return nil
}

// Validate checks the geometry type and that every ring is a closed sequence
// of at least four finite positions.
func (p Polygon) Validate() error {
	if p.Type != TypePolygon {
		return fmt.Errorf("%w: type %q", ErrInvalidPolygon, p.Type)
	}
	if len(p.Coordinates) == 0 {
		return fmt.Errorf("%w: no rings", ErrInvalidPolygon)
	}

	for i, ring := range p.Coordinates {
		if len(ring) < 4 {
			return fmt.Errorf("%w: ring %d has %d positions", ErrInvalidPolygon, i, len(ring))
		}
		for _, position := range ring {
			c, err := FromPair(position)
			if err != nil {
				return fmt.Errorf("%w: ring %d: %v", ErrInvalidPolygon, i, err)
			}
			if err := c.Validate(); err != nil {
				return fmt.Errorf("%w: ring %d: %v", ErrInvalidPolygon, i, err)
			}
		}

		first, last := ring[0], ring[len(ring)-1]
		if first[0] != last[0] || first[1] != last[1] {
			return fmt.Errorf("%w: ring %d is not closed", ErrInvalidPolygon, i)
		}
	}

	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
