package controller

import (
	"errors"
	"fmt"
	"log"

	"github.com/paulmach/orb"

	"vegwatch-desktop/internal/common"
	"vegwatch-desktop/internal/geo"
)

// SetPolygon replaces the drawn polygon. An invalid polygon leaves the
// current one in place.
func (c *Controller) SetPolygon(p orb.Polygon) error {
	c.lock()
	defer c.unlock()

	if _, err := c.polygons.Set(p); err != nil {
		c.errorLocked("Polygon rejected: %v", err)
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	c.vigor = nil
	c.emitPolygonLocked()
	c.publishButtonsLocked()
	c.infoLocked("Polygon drawn")
	c.track("polygon_drawn", nil)
	return nil
}

// ClearPolygon removes the drawn polygon
func (c *Controller) ClearPolygon() {
	c.lock()
	defer c.unlock()

	if !c.polygons.HasPolygon() {
		return
	}
	c.polygons.Clear()
	c.vigor = nil
	c.emit(func(v View) { v.PolygonChanged(nil) })
	c.publishButtonsLocked()
}

// Polygon returns the drawn polygon and its id
func (c *Controller) Polygon() (orb.Polygon, string, bool) {
	c.lock()
	defer c.unlock()

	p, ok := c.polygons.Polygon()
	if !ok {
		return nil, "", false
	}
	return p.Clone(), c.polygons.ID(), true
}

// emitPolygonLocked pushes the current polygon and its style to the view
func (c *Controller) emitPolygonLocked() {
	p, ok := c.polygons.Polygon()
	if !ok {
		c.emit(func(v View) { v.PolygonChanged(nil) })
		return
	}

	geometry, err := geo.GeometryJSON(p)
	if err != nil {
		log.Printf("[Controller] Failed to encode polygon: %v", err)
		return
	}
	shown := &PolygonView{ID: c.polygons.ID(), Geometry: geometry}
	if c.vigor != nil {
		vigor := *c.vigor
		shown.Style = &vigor
	}
	c.emit(func(v View) { v.PolygonChanged(shown) })
}

// ImportPolygon replaces the polygon with the one in uploaded GeoJSON and
// fits the map to it. Unusable content leaves the current polygon alone.
func (c *Controller) ImportPolygon(data []byte) error {
	p, err := geo.ParsePolygon(data)
	if err == nil {
		_, err = geo.NormalizePolygon(p)
	}

	c.lock()
	defer c.unlock()

	if err != nil {
		switch {
		case errors.Is(err, geo.ErrNoPolygon):
			c.errorLocked("The file does not contain a polygon")
		case errors.Is(err, geo.ErrMalformed):
			c.errorLocked("The file is not valid GeoJSON")
		default:
			c.errorLocked("Polygon rejected: %v", err)
		}
		c.track("polygon_import_failed", map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("failed to import polygon: %w", err)
	}

	if _, err := c.polygons.Set(p); err != nil {
		return fmt.Errorf("failed to import polygon: %w", err)
	}
	c.vigor = nil
	c.emitPolygonLocked()

	bound := p.Bound()
	c.emit(func(v View) { v.FitBounds(bound) })
	c.publishButtonsLocked()
	c.infoLocked("Polygon imported")
	c.track("polygon_imported", nil)
	return nil
}

// ExportPolygon saves the polygon as a GeoJSON FeatureCollection through
// the view's save dialog and returns the chosen path ("" when cancelled)
func (c *Controller) ExportPolygon() (string, error) {
	c.lock()
	p, ok := c.polygons.Polygon()
	id := c.polygons.ID()
	if !ok {
		c.errorLocked("Draw or upload a polygon first")
		c.unlock()
		return "", fmt.Errorf("%w: no polygon to export", ErrValidation)
	}
	name := fmt.Sprintf("area_%s.json", c.opts.Now().Format(common.TimestampName))
	c.unlock()

	data, err := geo.EncodePolygon(p, map[string]interface{}{"id": id})
	if err != nil {
		return "", err
	}

	path, err := c.view.SaveFile(name, data)

	c.lock()
	defer c.unlock()
	switch {
	case err != nil:
		c.errorLocked("Failed to save polygon: %v", err)
		return "", fmt.Errorf("failed to save polygon: %w", err)
	case path == "":
		c.infoLocked("Export cancelled")
		return "", nil
	}
	c.infoLocked("Polygon saved to %s", path)
	c.track("polygon_exported", nil)
	return path, nil
}
