package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vegwatch-desktop/internal/common"
	"vegwatch-desktop/internal/geo"
)

// HistoryEntry is one captured screenshot with the dates it showed
type HistoryEntry struct {
	Screenshot string    `json:"screenshot"`
	StartDate  string    `json:"startDate,omitempty"`
	EndDate    string    `json:"endDate,omitempty"`
	CapturedAt time.Time `json:"capturedAt"`
}

// History pairs a polygon with the screenshots captured over it
type History struct {
	PolygonID string          `json:"polygonId"`
	Polygon   json.RawMessage `json:"polygon,omitempty"`
	Entries   []HistoryEntry  `json:"entries"`
}

func isoOrEmpty(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return common.FormatISO8601(t)
}

// Capture waits for the map to settle, asks the view for a screenshot and
// records it in the history of the current polygon. It returns the
// screenshot name.
func (c *Controller) Capture(ctx context.Context) (string, error) {
	c.lock()
	name := "captura_" + c.opts.Now().Format(common.TimestampName)
	delay := c.opts.CaptureDelay
	generation := c.generation
	c.unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	c.lock()
	defer c.unlock()

	if generation != c.generation {
		return "", ErrStale
	}

	c.emit(func(v View) { v.CaptureScreenshot(name) })

	polygonID := c.polygons.ID()
	if c.history.PolygonID != polygonID {
		c.history = History{PolygonID: polygonID}
	}
	c.history.Entries = append(c.history.Entries, HistoryEntry{
		Screenshot: name + ".png",
		StartDate:  isoOrEmpty(c.start),
		EndDate:    isoOrEmpty(c.end),
		CapturedAt: c.opts.Now(),
	})

	c.infoLocked("Screenshot %s captured", name)
	c.track("screenshot_captured", map[string]interface{}{"entries": len(c.history.Entries)})
	return name, nil
}

// History returns a copy of the capture history
func (c *Controller) History() History {
	c.lock()
	defer c.unlock()

	h := c.history
	h.Entries = append([]HistoryEntry(nil), c.history.Entries...)
	return h
}

// ExportHistory saves the polygon and its capture history as JSON through
// the view's save dialog
func (c *Controller) ExportHistory() (string, error) {
	c.lock()
	p, ok := c.polygons.Polygon()
	if !ok {
		c.errorLocked("Draw or upload a polygon first")
		c.unlock()
		return "", fmt.Errorf("%w: no polygon for history", ErrValidation)
	}

	h := History{PolygonID: c.polygons.ID()}
	if c.history.PolygonID == h.PolygonID {
		h.Entries = append(h.Entries, c.history.Entries...)
	}
	if h.Entries == nil {
		h.Entries = []HistoryEntry{}
	}
	name := fmt.Sprintf("history_%s.json", c.opts.Now().Format(common.TimestampName))
	c.unlock()

	geometry, err := geo.GeometryJSON(p)
	if err != nil {
		return "", err
	}
	h.Polygon = geometry

	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal history: %w", err)
	}

	path, err := c.view.SaveFile(name, data)

	c.lock()
	defer c.unlock()
	switch {
	case err != nil:
		c.errorLocked("Failed to save history: %v", err)
		return "", fmt.Errorf("failed to save history: %w", err)
	case path == "":
		c.infoLocked("Export cancelled")
		return "", nil
	}
	c.infoLocked("History saved to %s", path)
	c.track("history_exported", map[string]interface{}{"entries": len(h.Entries)})
	return path, nil
}

func validateEntries(entries []HistoryEntry) error {
	for i, e := range entries {
		if e.Screenshot == "" {
			return fmt.Errorf("%w: entry %d has no screenshot", geo.ErrMalformed, i)
		}
		for _, d := range []string{e.StartDate, e.EndDate} {
			if d != "" && !common.ValidateISO8601(d) {
				return fmt.Errorf("%w: entry %d has invalid date %q", geo.ErrMalformed, i, d)
			}
		}
	}
	return nil
}

// ImportHistory loads a saved history, restoring its polygon when present
func (c *Controller) ImportHistory(data []byte) error {
	var h History
	err := json.Unmarshal(data, &h)
	if err != nil {
		err = fmt.Errorf("%w: %v", geo.ErrMalformed, err)
	} else {
		err = validateEntries(h.Entries)
	}

	var restored bool
	c.lock()
	defer c.unlock()

	if err == nil && len(h.Polygon) > 0 {
		p, perr := geo.ParsePolygon(h.Polygon)
		if perr == nil {
			_, perr = c.polygons.Restore(p, h.PolygonID)
		}
		if perr != nil {
			err = perr
		} else {
			restored = true
			h.PolygonID = c.polygons.ID()
		}
	}
	if err != nil {
		c.errorLocked("Could not import history: %v", err)
		c.track("history_import_failed", map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("failed to import history: %w", err)
	}

	h.Polygon = nil
	c.history = h

	if restored {
		c.vigor = nil
		c.emitPolygonLocked()
		p, _ := c.polygons.Polygon()
		bound := p.Bound()
		c.emit(func(v View) { v.FitBounds(bound) })
		c.publishButtonsLocked()
	}

	c.infoLocked("History imported: %d entries", len(h.Entries))
	c.track("history_imported", map[string]interface{}{"entries": len(h.Entries)})
	return nil
}
