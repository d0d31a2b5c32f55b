package controller

import (
	"context"
	"encoding/json"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"vegwatch-desktop/internal/backend"
	"vegwatch-desktop/internal/common"
	"vegwatch-desktop/internal/legend"
)

// View receives every state change the map frontend has to render.
// Implementations must not call back into the Controller synchronously.
type View interface {
	ButtonsChanged(buttons map[string]bool)
	LayerAdded(layer ResultLayer)
	LayerRemoved(layerID string)
	// LegendChanged shows a legend, or hides it when lg is nil
	LegendChanged(layerID string, lg *legend.Legend)
	StatusChanged(status StatusMessage)
	StatsChanged(panel *StatsPanel)
	HistogramChanged(hist *backend.Histogram)
	// PolygonChanged draws the polygon, or removes it when polygon is nil
	PolygonChanged(polygon *PolygonView)
	FitBounds(bound orb.Bound)
	DateChanged(field DateField, date string)
	CandidatesChanged(candidates []backend.CandidateImage)
	ConfirmationRequested(pending PendingConfirmation)
	CaptureScreenshot(name string)

	// SaveFile asks the user where to save data. An empty path means the
	// user cancelled.
	SaveFile(defaultName string, data []byte) (string, error)
}

// Backend is the analysis backend as seen by the controller
type Backend interface {
	Tile(ctx context.Context, kind common.IndexKind, date time.Time) (*backend.TileResult, error)
	ComparePair(ctx context.Context, kind common.IndexKind, first, second time.Time) ([2]*backend.TileResult, error)
	Diff(ctx context.Context, kind common.IndexKind, first, second time.Time, bound *orb.Bound, threshold *float64) (*backend.DiffResult, error)
	Zones(ctx context.Context, kind common.IndexKind, first, second time.Time, threshold float64, bound orb.Bound) (*backend.ZonesResult, error)
	ZonesFromGeometry(ctx context.Context, kind common.IndexKind, first, second time.Time, threshold float64, geometry orb.Geometry) (*backend.ZonesResult, error)
	Stats(ctx context.Context, kind common.IndexKind, date time.Time, bound orb.Bound) (*backend.Stats, error)
	StatsFromGeometry(ctx context.Context, kind common.IndexKind, date time.Time, geometry orb.Geometry) (*backend.Stats, error)
	Histogram(ctx context.Context, kind common.IndexKind, first, second time.Time, geometry orb.Geometry) (*backend.Histogram, error)
	LandsatDates(ctx context.Context, date time.Time) (*backend.LandsatDates, error)
	BestImageDate(ctx context.Context, target time.Time, geometry orb.Geometry) (*backend.BestDate, error)
	Cloudiness(ctx context.Context, date time.Time, bound orb.Bound) (*backend.Cloudiness, error)
}

// TileRewriter routes raster overlays through a local proxy
type TileRewriter interface {
	Register(id, upstream string) string
	Unregister(id string)
}

// DateField names one of the two date inputs
type DateField string

const (
	FieldStart DateField = "start"
	FieldEnd   DateField = "end"
)

// StatusMessage is the single-slot status line. An empty Text hides it.
type StatusMessage struct {
	Text    string `json:"text"`
	IsError bool   `json:"isError"`
}

// TileOverlay is one raster layer on the map
type TileOverlay struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	URL        string   `json:"url"`
	Date       string   `json:"date,omitempty"`
	CloudCover *float64 `json:"cloudCover,omitempty"`
	upstream   string
}

// ResultLayer is the map content produced by one (index, operation) result
type ResultLayer struct {
	ID          string                     `json:"id"`
	Key         common.LayerKey            `json:"key"`
	Name        string                     `json:"name"`
	Overlays    []TileOverlay              `json:"overlays,omitempty"`
	Zones       *geojson.FeatureCollection `json:"zones,omitempty"`
	ZoneSummary *backend.ZoneSummary       `json:"zoneSummary,omitempty"`
	Legend      legend.Legend              `json:"legend"`
}

// StatsPanel is the last statistics result
type StatsPanel struct {
	Kind    common.IndexKind `json:"kind"`
	Source  string           `json:"source"` // "viewport" or "polygon"
	Year    int              `json:"year"`
	Mean    float64          `json:"mean"`
	Min     float64          `json:"min"`
	Max     float64          `json:"max"`
	StdDev  float64          `json:"stdDev"`
	Count   float64          `json:"count"`
	Message string           `json:"message,omitempty"`
}

// PolygonView is the drawn polygon as the map renders it
type PolygonView struct {
	ID       string          `json:"id"`
	Geometry json.RawMessage `json:"geometry"`
	Style    *legend.Vigor   `json:"style,omitempty"`
}

// PendingConfirmation is a result waiting for the user to accept a warning
type PendingConfirmation struct {
	ID      string `json:"id"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}
