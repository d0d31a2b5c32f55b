package controller

import (
	"fmt"
	"log"
	"sort"

	"vegwatch-desktop/internal/backend"
	"vegwatch-desktop/internal/common"
	"vegwatch-desktop/internal/legend"
)

// newTileLayer builds a raster layer from one or more tile results
func newTileLayer(key common.LayerKey, name string, results []*backend.TileResult, dates []string) *ResultLayer {
	layer := &ResultLayer{
		ID:     key.String(),
		Key:    key,
		Name:   name,
		Legend: legend.For(key.Index, key.Operation),
	}
	for i, r := range results {
		overlay := TileOverlay{
			ID:         key.String(),
			Name:       r.Name,
			CloudCover: r.CloudCover,
			upstream:   r.TileURL,
		}
		if len(results) > 1 {
			overlay.ID = fmt.Sprintf("%s-%d", key.String(), i)
		}
		if i < len(dates) {
			overlay.Date = dates[i]
		}
		if overlay.Name == "" {
			overlay.Name = name
		}
		layer.Overlays = append(layer.Overlays, overlay)
	}
	return layer
}

// putLayerLocked replaces the layer for its key and shows its legend
func (c *Controller) putLayerLocked(layer *ResultLayer) {
	if old, ok := c.layers[layer.Key]; ok {
		c.dropLayerLocked(old)
	}

	for i := range layer.Overlays {
		overlay := &layer.Overlays[i]
		overlay.URL = overlay.upstream
		if c.tiles != nil {
			overlay.URL = c.tiles.Register(overlay.ID, overlay.upstream)
		}
	}

	c.layers[layer.Key] = layer
	added := *layer
	lg := layer.Legend
	c.emit(func(v View) {
		v.LayerAdded(added)
		v.LegendChanged(added.ID, &lg)
	})
	log.Printf("[Controller] Layer %s added (%d overlays)", layer.ID, len(layer.Overlays))
}

// dropLayerLocked removes a layer and hides its legend
func (c *Controller) dropLayerLocked(layer *ResultLayer) {
	delete(c.layers, layer.Key)
	if c.tiles != nil {
		for _, overlay := range layer.Overlays {
			c.tiles.Unregister(overlay.ID)
		}
	}
	id := layer.ID
	c.emit(func(v View) {
		v.LayerRemoved(id)
		v.LegendChanged(id, nil)
	})
}

// Clear removes every result layer, hides legends, status and panels and
// discards in-flight results. The drawn polygon survives only with
// keepPolygon.
func (c *Controller) Clear(keepPolygon bool) {
	c.lock()
	defer c.unlock()
	c.clearLocked(keepPolygon)
}

// Reset clears the map, keeping the polygon as configured by
// SetKeepPolygonOnClear
func (c *Controller) Reset() {
	c.lock()
	defer c.unlock()
	c.clearLocked(c.keepPolygon)
}

func (c *Controller) clearLocked(keepPolygon bool) {
	c.generation++
	clear(c.pending)

	keys := make([]common.LayerKey, 0, len(c.layers))
	for key := range c.layers {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	for _, key := range keys {
		c.dropLayerLocked(c.layers[key])
	}

	c.stats = nil
	c.histogram = nil
	c.candidates = nil
	c.emit(func(v View) {
		v.StatsChanged(nil)
		v.HistogramChanged(nil)
		v.CandidatesChanged(nil)
	})

	if !keepPolygon && c.polygons.HasPolygon() {
		c.polygons.Clear()
		c.vigor = nil
		c.emit(func(v View) { v.PolygonChanged(nil) })
	} else if c.vigor != nil {
		c.vigor = nil
		c.emitPolygonLocked()
	}

	c.setStatusLocked("", false)
	c.publishButtonsLocked()
	c.track("map_cleared", map[string]interface{}{"keepPolygon": keepPolygon})
	log.Printf("[Controller] Map cleared (keepPolygon=%v, generation=%d)", keepPolygon, c.generation)
}

// Layers returns the active layers ordered by id
func (c *Controller) Layers() []ResultLayer {
	c.lock()
	defer c.unlock()
	return c.layersLocked()
}

func (c *Controller) layersLocked() []ResultLayer {
	out := make([]ResultLayer, 0, len(c.layers))
	for _, layer := range c.layers {
		out = append(out, *layer)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
