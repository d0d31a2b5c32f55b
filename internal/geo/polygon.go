// Package geo holds the drawn-polygon store and GeoJSON import/export.
package geo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var (
	// ErrMalformed is returned when uploaded content is not parseable GeoJSON
	ErrMalformed = errors.New("malformed GeoJSON")

	// ErrNoPolygon is returned when GeoJSON parses but carries no polygon geometry
	ErrNoPolygon = errors.New("no polygon geometry found")

	// ErrInvalidPolygon is returned for rings that cannot describe an area
	ErrInvalidPolygon = errors.New("invalid polygon")
)

// Store holds at most one drawn polygon. It is not safe for concurrent use;
// the owner serializes access.
type Store struct {
	polygon orb.Polygon
	id      string
}

// Set replaces the stored polygon and returns its new id
func (s *Store) Set(p orb.Polygon) (string, error) {
	normalized, err := NormalizePolygon(p)
	if err != nil {
		return "", err
	}
	s.polygon = normalized
	s.id = uuid.NewString()
	return s.id, nil
}

// Restore stores a polygon under a previously assigned id, as when
// reloading a saved history. An empty id gets a fresh one.
func (s *Store) Restore(p orb.Polygon, id string) (string, error) {
	normalized, err := NormalizePolygon(p)
	if err != nil {
		return "", err
	}
	if id == "" {
		id = uuid.NewString()
	}
	s.polygon = normalized
	s.id = id
	return s.id, nil
}

// Clear removes the stored polygon
func (s *Store) Clear() {
	s.polygon = nil
	s.id = ""
}

// Polygon returns the stored polygon, if any
func (s *Store) Polygon() (orb.Polygon, bool) {
	if s.polygon == nil {
		return nil, false
	}
	return s.polygon, true
}

// HasPolygon reports whether a polygon is drawn
func (s *Store) HasPolygon() bool {
	return s.polygon != nil
}

// ID returns the id assigned when the polygon was stored ("" when empty)
func (s *Store) ID() string {
	return s.id
}

// NormalizePolygon validates the outer ring and closes any open ring
func NormalizePolygon(p orb.Polygon) (orb.Polygon, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: no rings", ErrInvalidPolygon)
	}

	out := make(orb.Polygon, 0, len(p))
	for i, ring := range p {
		if len(ring) > 0 && !ring.Closed() {
			ring = append(ring.Clone(), ring[0])
		}
		// closed ring: at least three distinct vertices plus the closing one
		if len(ring) < 4 {
			if i == 0 {
				return nil, fmt.Errorf("%w: outer ring has %d vertices", ErrInvalidPolygon, len(ring))
			}
			continue
		}
		for _, pt := range ring {
			if pt.Lon() < -180 || pt.Lon() > 180 || pt.Lat() < -90 || pt.Lat() > 90 {
				return nil, fmt.Errorf("%w: vertex %v out of lon/lat range", ErrInvalidPolygon, pt)
			}
		}
		out = append(out, ring)
	}
	return out, nil
}

// ParsePolygon extracts a polygon from a FeatureCollection, a Feature or a
// bare geometry. MultiPolygons yield their first polygon.
func ParsePolygon(data []byte) (orb.Polygon, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var geometries []orb.Geometry
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		for _, f := range fc.Features {
			geometries = append(geometries, f.Geometry)
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		geometries = append(geometries, f.Geometry)
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		geometries = append(geometries, g.Geometry())
	}

	for _, g := range geometries {
		if p, ok := polygonOf(g); ok {
			return NormalizePolygon(p)
		}
	}
	return nil, ErrNoPolygon
}

func polygonOf(g orb.Geometry) (orb.Polygon, bool) {
	switch v := g.(type) {
	case orb.Polygon:
		return v, len(v) > 0
	case orb.MultiPolygon:
		if len(v) > 0 && len(v[0]) > 0 {
			return v[0], true
		}
	}
	return nil, false
}

// EncodePolygon serializes p as an indented FeatureCollection holding one
// Feature
func EncodePolygon(p orb.Polygon, props map[string]interface{}) ([]byte, error) {
	if len(p) == 0 {
		return nil, ErrNoPolygon
	}

	feature := geojson.NewFeature(p)
	for k, v := range props {
		feature.Properties[k] = v
	}
	fc := geojson.NewFeatureCollection()
	fc.Append(feature)

	raw, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal polygon: %w", err)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("failed to indent polygon: %w", err)
	}
	return buf.Bytes(), nil
}

// GeometryJSON returns the bare GeoJSON geometry object for p, the shape the
// backend's *-from-geojson endpoints expect
func GeometryJSON(p orb.Geometry) (json.RawMessage, error) {
	raw, err := geojson.NewGeometry(p).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal geometry: %w", err)
	}
	return raw, nil
}
