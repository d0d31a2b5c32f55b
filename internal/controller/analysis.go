package controller

import (
	"context"
	"fmt"
	"strings"

	"vegwatch-desktop/internal/backend"
	"vegwatch-desktop/internal/common"
	"vegwatch-desktop/internal/legend"
)

const (
	slotStats      = "stats"
	slotHistogram  = "histogram"
	slotCloudiness = "cloudiness"
	slotLandsat    = "landsat-dates"
)

func layerKey(kind common.IndexKind, op common.OperationKind) common.LayerKey {
	return common.LayerKey{Index: kind, Operation: op}
}

// ViewTile shows the index for the start date
func (c *Controller) ViewTile(ctx context.Context, kind common.IndexKind) error {
	key := layerKey(kind, common.OpSingle)
	t, err := c.begin(ActionView, kind, key.String(), false)
	if err != nil {
		return err
	}

	result, err := c.backend.Tile(ctx, kind, t.start)
	return c.finish(t, err, func() error {
		date := common.FormatISO8601(t.start)
		layer := newTileLayer(key, fmt.Sprintf("%s %s", kind.DisplayName(), date), []*backend.TileResult{result}, []string{date})
		c.applyTileLayerLocked(t, layer, result.CloudCover, fmt.Sprintf("%s for %s loaded", kind.DisplayName(), date))
		return nil
	})
}

// Compare shows the index for both dates as two toggleable overlays
func (c *Controller) Compare(ctx context.Context, kind common.IndexKind) error {
	key := layerKey(kind, common.OpCompare)
	t, err := c.begin(ActionCompare, kind, key.String(), false)
	if err != nil {
		return err
	}

	pair, err := c.backend.ComparePair(ctx, kind, t.start, t.end)
	return c.finish(t, err, func() error {
		first, second := common.FormatISO8601(t.start), common.FormatISO8601(t.end)
		layer := newTileLayer(key, fmt.Sprintf("%s %s / %s", kind.DisplayName(), first, second), pair[:], []string{first, second})
		c.applyTileLayerLocked(t, layer, maxCloud(pair[0].CloudCover, pair[1].CloudCover),
			fmt.Sprintf("%s layers for %s and %s loaded", kind.DisplayName(), first, second))
		return nil
	})
}

// Diff shows the index difference between the two dates
func (c *Controller) Diff(ctx context.Context, kind common.IndexKind) error {
	key := layerKey(kind, common.OpDiff)
	t, err := c.begin(ActionDiff, kind, key.String(), false)
	if err != nil {
		return err
	}

	bound := &t.viewport
	if !t.hasViewport {
		bound = nil
	}
	threshold := t.threshold
	result, err := c.backend.Diff(ctx, kind, t.start, t.end, bound, &threshold)
	return c.finish(t, err, func() error {
		first, second := common.FormatISO8601(t.start), common.FormatISO8601(t.end)
		name := result.Name
		if name == "" {
			name = fmt.Sprintf("%s difference %s - %s", kind.DisplayName(), first, second)
		}
		tile := &backend.TileResult{TileURL: result.TileURL, Name: name}
		layer := newTileLayer(key, name, []*backend.TileResult{tile}, nil)

		done := fmt.Sprintf("%s difference between %s and %s loaded", kind.DisplayName(), first, second)
		if result.DeforestationDetected != nil && *result.DeforestationDetected {
			done = fmt.Sprintf("Possible deforestation detected between %s and %s", first, second)
		}

		var cloud *float64
		if worst, ok := result.MaxCloudCover(); ok {
			cloud = &worst
		}
		c.applyTileLayerLocked(t, layer, cloud, done)
		return nil
	})
}

// Zones outlines deforested zones inside the visible map area
func (c *Controller) Zones(ctx context.Context, kind common.IndexKind) error {
	key := layerKey(kind, common.OpZones)
	t, err := c.begin(ActionZones, kind, key.String(), true)
	if err != nil {
		return err
	}

	result, err := c.backend.Zones(ctx, kind, t.start, t.end, t.threshold, t.viewport)
	return c.finish(t, err, func() error {
		c.applyZonesLocked(key, result)
		return nil
	})
}

// ZonesFromPolygon outlines deforested zones inside the drawn polygon
func (c *Controller) ZonesFromPolygon(ctx context.Context, kind common.IndexKind) error {
	key := layerKey(kind, common.OpZones)
	t, err := c.begin(ActionZonesPolygon, kind, key.String(), false)
	if err != nil {
		return err
	}

	result, err := c.backend.ZonesFromGeometry(ctx, kind, t.start, t.end, t.threshold, t.polygon)
	return c.finish(t, err, func() error {
		c.applyZonesLocked(key, result)
		return nil
	})
}

func (c *Controller) applyZonesLocked(key common.LayerKey, result *backend.ZonesResult) {
	layer := &ResultLayer{
		ID:          key.String(),
		Key:         key,
		Name:        fmt.Sprintf("%s deforestation zones", key.Index.DisplayName()),
		Zones:       result.Features,
		ZoneSummary: result.Summary,
		Legend:      legend.For(key.Index, key.Operation),
	}
	c.putLayerLocked(layer)

	count := result.ZoneCount()
	if result.Summary != nil && count > 0 {
		c.infoLocked("%d zones found (%.2f%% of the area affected)", count, result.Summary.PercentageAffected)
		return
	}
	c.infoLocked("%d zones found", count)
}

// Stats summarizes the index over the visible map area on the start date
func (c *Controller) Stats(ctx context.Context, kind common.IndexKind) error {
	t, err := c.begin(ActionStats, kind, slotStats, true)
	if err != nil {
		return err
	}

	result, err := c.backend.Stats(ctx, kind, t.start, t.viewport)
	return c.finish(t, err, func() error {
		c.applyStatsLocked(kind, "viewport", result, nil)
		return nil
	})
}

// StatsFromPolygon summarizes the index inside the drawn polygon and styles
// the polygon by its mean
func (c *Controller) StatsFromPolygon(ctx context.Context, kind common.IndexKind) error {
	t, err := c.begin(ActionStatsPolygon, kind, slotStats, false)
	if err != nil {
		return err
	}

	result, err := c.backend.StatsFromGeometry(ctx, kind, t.start, t.polygon)
	return c.finish(t, err, func() error {
		vigor := legend.ClassifyMean(result.Mean)
		c.applyStatsLocked(kind, "polygon", result, &vigor)
		return nil
	})
}

func (c *Controller) applyStatsLocked(kind common.IndexKind, source string, s *backend.Stats, vigor *legend.Vigor) {
	panel := &StatsPanel{
		Kind:   kind,
		Source: source,
		Year:   s.Year,
		Mean:   s.Mean,
		Min:    s.Min,
		Max:    s.Max,
		StdDev: s.StdDev,
		Count:  s.Count,
	}
	if vigor != nil {
		panel.Message = vigor.Message
		if c.polygons.HasPolygon() {
			c.vigor = vigor
			c.emitPolygonLocked()
		}
	}
	c.stats = panel

	shown := *panel
	c.emit(func(v View) { v.StatsChanged(&shown) })
	if panel.Message != "" {
		c.infoLocked("%s mean %.3f: %s", kind.DisplayName(), s.Mean, panel.Message)
		return
	}
	c.infoLocked("%s mean %.3f", kind.DisplayName(), s.Mean)
}

// Histogram shows the distribution of the index difference inside the
// drawn polygon
func (c *Controller) Histogram(ctx context.Context, kind common.IndexKind) error {
	t, err := c.begin(ActionHistogram, kind, slotHistogram, false)
	if err != nil {
		return err
	}

	result, err := c.backend.Histogram(ctx, kind, t.start, t.end, t.polygon)
	return c.finish(t, err, func() error {
		c.histogram = result
		hist := *result
		c.emit(func(v View) { v.HistogramChanged(&hist) })
		c.infoLocked("%s difference histogram ready (%d buckets)", kind.DisplayName(), len(result.Counts))
		return nil
	})
}

// Cloudiness reports the cloud cover over the visible area on the start date
func (c *Controller) Cloudiness(ctx context.Context) error {
	t, err := c.begin(ActionCloudiness, "", slotCloudiness, true)
	if err != nil {
		return err
	}

	result, err := c.backend.Cloudiness(ctx, t.start, t.viewport)
	return c.finish(t, err, func() error {
		date := common.FormatISO8601(t.start)
		if result.Cloudiness > c.opts.CloudAlertThreshold {
			c.infoLocked("Cloud cover in view on %s: %.1f%% (above the %.0f%% alert threshold)", date, result.Cloudiness, c.opts.CloudAlertThreshold)
			return nil
		}
		c.infoLocked("Cloud cover in view on %s: %.1f%%", date, result.Cloudiness)
		return nil
	})
}

// LandsatDates lists the acquisitions in the year of the start date
func (c *Controller) LandsatDates(ctx context.Context) error {
	t, err := c.begin(ActionLandsatDates, "", slotLandsat, false)
	if err != nil {
		return err
	}

	result, err := c.backend.LandsatDates(ctx, t.start)
	return c.finish(t, err, func() error {
		if len(result.Dates) == 0 {
			c.infoLocked("No Landsat acquisitions in %d", result.Year)
			return nil
		}
		c.infoLocked("%d Landsat acquisitions in %d: %s", len(result.Dates), result.Year, strings.Join(result.Dates, ", "))
		return nil
	})
}

// applyTileLayerLocked shows a raster layer, asking first when its cloud
// cover exceeds the alert threshold
func (c *Controller) applyTileLayerLocked(t *ticket, layer *ResultLayer, cloud *float64, done string) {
	apply := func() {
		c.putLayerLocked(layer)
		c.infoLocked("%s", done)
	}

	if cloud != nil && *cloud > c.opts.CloudAlertThreshold {
		message := fmt.Sprintf("Cloud cover is %.1f%%, above the %.0f%% alert threshold. Show the %s result anyway?",
			*cloud, c.opts.CloudAlertThreshold, t.label())
		c.requestConfirmationLocked(t, "cloud-cover", message, fmt.Sprintf("%s result discarded", t.label()), apply)
		return
	}
	apply()
}

func maxCloud(values ...*float64) *float64 {
	var worst *float64
	for _, v := range values {
		if v != nil && (worst == nil || *v > *worst) {
			worst = v
		}
	}
	return worst
}
