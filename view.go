package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"vegwatch-desktop/internal/backend"
	"vegwatch-desktop/internal/controller"
	"vegwatch-desktop/internal/legend"
)

// wailsView forwards controller updates to the frontend as Wails events
type wailsView struct {
	app *App
}

func (v *wailsView) emit(event string, data ...interface{}) {
	wailsRuntime.EventsEmit(v.app.ctx, event, data...)
}

func (v *wailsView) ButtonsChanged(buttons map[string]bool) {
	v.emit("buttons-changed", buttons)
}

func (v *wailsView) LayerAdded(layer controller.ResultLayer) {
	v.emit("layer-added", layer)
}

func (v *wailsView) LayerRemoved(layerID string) {
	v.emit("layer-removed", layerID)
}

func (v *wailsView) LegendChanged(layerID string, lg *legend.Legend) {
	v.emit("legend-changed", map[string]interface{}{
		"layerId": layerID,
		"visible": lg != nil,
		"legend":  lg,
	})
}

func (v *wailsView) StatusChanged(status controller.StatusMessage) {
	v.emit("status-changed", status)
}

func (v *wailsView) StatsChanged(panel *controller.StatsPanel) {
	v.emit("stats-changed", panel)
}

func (v *wailsView) HistogramChanged(hist *backend.Histogram) {
	v.emit("histogram-changed", hist)
}

func (v *wailsView) PolygonChanged(polygon *controller.PolygonView) {
	v.emit("polygon-changed", polygon)
}

func (v *wailsView) FitBounds(bound orb.Bound) {
	v.emit("fit-bounds", []float64{bound.Min.Lon(), bound.Min.Lat(), bound.Max.Lon(), bound.Max.Lat()})
}

func (v *wailsView) DateChanged(field controller.DateField, date string) {
	v.emit("date-changed", map[string]string{
		"field": string(field),
		"date":  date,
	})
}

func (v *wailsView) CandidatesChanged(candidates []backend.CandidateImage) {
	v.emit("candidates-changed", candidates)
}

func (v *wailsView) ConfirmationRequested(pending controller.PendingConfirmation) {
	v.emit("confirmation-requested", pending)
	go v.app.promptConfirmation(pending)
}

func (v *wailsView) CaptureScreenshot(name string) {
	v.emit("capture-screenshot", name)
}

// SaveFile shows a save dialog in the export folder and writes data
func (v *wailsView) SaveFile(defaultName string, data []byte) (string, error) {
	v.app.mu.Lock()
	dir := v.app.settings.ExportPath
	v.app.mu.Unlock()

	path, err := wailsRuntime.SaveFileDialog(v.app.ctx, wailsRuntime.SaveDialogOptions{
		Title:            "Save file",
		DefaultDirectory: dir,
		DefaultFilename:  defaultName,
		Filters: []wailsRuntime.FileFilter{
			{DisplayName: "JSON (*.json)", Pattern: "*.json"},
		},
	})
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create folder: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
