package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	goruntime "runtime"
	"sync"
	"time"

	"github.com/posthog/posthog-go"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"vegwatch-desktop/internal/backend"
	"vegwatch-desktop/internal/cache"
	"vegwatch-desktop/internal/common"
	"vegwatch-desktop/internal/config"
	"vegwatch-desktop/internal/controller"
	"vegwatch-desktop/internal/geo"
	"vegwatch-desktop/internal/legend"
	"vegwatch-desktop/internal/tileserver"
)

// Linker flags
var (
	PostHogKey  string
	PostHogHost string
	AppVersion  string = "0.0.0-dev"
)

// MapConfig is what the frontend needs to build the base map
type MapConfig struct {
	CenterLat     float64 `json:"centerLat"`
	CenterLon     float64 `json:"centerLon"`
	Zoom          int     `json:"zoom"`
	MaxZoom       int     `json:"maxZoom"`
	BaseLayerURL  string  `json:"baseLayerURL"`
	Attribution   string  `json:"attribution"`
	TileServerURL string  `json:"tileServerURL"`
	BackendURL    string  `json:"backendURL"`
}

// App struct
type App struct {
	ctx        context.Context
	settings   *config.UserSettings
	mu         sync.Mutex
	devMode    bool // echo events to the frontend log
	phClient   posthog.Client
	tileCache  *cache.TileCache
	tileServer *tileserver.Server
	backend    *backend.Client
	controller *controller.Controller
}

// NewApp creates a new App application struct
func NewApp() *App {
	settings, err := config.LoadSettings()
	if err != nil {
		log.Printf("Failed to load settings, using defaults: %v", err)
		settings = config.DefaultSettings()
		config.ApplyEnv(settings)
	}
	log.Printf("Settings loaded from: %s", config.GetSettingsPath())

	cacheDir := cache.GetCacheDir()
	tileCache, err := cache.NewTileCache(cacheDir, settings.CacheMaxSizeMB, cache.DefaultTTL)
	if err != nil {
		log.Printf("Failed to initialize tile cache: %v", err)
		tileCache = nil // Continue without cache
	} else {
		log.Printf("Tile cache initialized at %s (max %d MB)", cacheDir, settings.CacheMaxSizeMB)
	}

	var phClient posthog.Client
	if PostHogKey != "" {
		phConfig := posthog.Config{
			Endpoint: PostHogHost,
		}
		client, err := posthog.NewWithConfig(PostHogKey, phConfig)
		if err != nil {
			log.Printf("Failed to initialize PostHog: %v", err)
		} else {
			phClient = client
		}
	}

	return &App{
		settings:   settings,
		phClient:   phClient,
		tileCache:  tileCache,
		tileServer: tileserver.NewServer(tileCache),
		backend:    backend.NewClient(settings.Backend, settings.Visualization),
	}
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	os.MkdirAll(a.settings.ExportPath, 0755)

	if err := a.tileServer.Start(); err != nil {
		wailsRuntime.LogError(ctx, fmt.Sprintf("Failed to start tile server, overlays load directly: %v", err))
	}

	opts := controller.OptionsFromSettings(a.settings)
	opts.OnEvent = a.TrackEvent
	a.controller = controller.New(&wailsView{app: a}, a.backend, a.tileServer, opts)

	wailsRuntime.LogInfo(ctx, fmt.Sprintf("Analysis backend: %s", a.backend.BaseURL()))

	a.TrackEvent("app_started", map[string]interface{}{
		"version": a.GetAppVersion(),
		"os":      goruntime.GOOS,
		"arch":    goruntime.GOARCH,
	})
}

// emitLog sends a log message to the frontend (only in dev mode)
func (a *App) emitLog(message string) {
	if a.devMode {
		wailsRuntime.EventsEmit(a.ctx, "log", message)
	}
}

// TrackEvent sends an event to PostHog
func (a *App) TrackEvent(event string, props map[string]interface{}) {
	a.emitLog(fmt.Sprintf("[Event] %s %v", event, props))
	if a.phClient != nil {
		a.phClient.Enqueue(posthog.Capture{
			DistinctId: "desktop_user",
			Event:      event,
			Properties: props,
		})
	}
}

// Shutdown cleans up resources
func (a *App) Shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tileServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Tile server shutdown: %v", err)
	}
	if a.phClient != nil {
		a.phClient.Close()
	}
}

// GetAppVersion returns the current application version
func (a *App) GetAppVersion() string {
	return AppVersion
}

// GetMapConfig returns the initial map view and base layer
func (a *App) GetMapConfig() MapConfig {
	a.mu.Lock()
	defer a.mu.Unlock()

	return MapConfig{
		CenterLat:     a.settings.DefaultCenterLat,
		CenterLon:     a.settings.DefaultCenterLon,
		Zoom:          a.settings.DefaultZoom,
		MaxZoom:       a.settings.MaxZoom,
		BaseLayerURL:  a.settings.BaseLayerURL,
		Attribution:   a.settings.BaseLayerAttribution,
		TileServerURL: a.tileServer.URL(),
		BackendURL:    a.backend.BaseURL(),
	}
}

// GetState returns the full map state, used after a frontend reload
func (a *App) GetState() controller.State {
	return a.controller.State()
}

// GetLegend returns the legend content for an index and operation
func (a *App) GetLegend(index, operation string) (legend.Legend, error) {
	kind, err := common.ParseIndexKind(index)
	if err != nil {
		return legend.Legend{}, err
	}
	op, err := common.ParseOperationKind(operation)
	if err != nil {
		return legend.Legend{}, err
	}
	return legend.For(kind, op), nil
}

// frontendError hides superseded results from the frontend
func frontendError(err error) error {
	if errors.Is(err, controller.ErrStale) {
		return nil
	}
	return err
}

// SetDate updates a date input ("start" or "end"). With auto optimal date
// enabled a best-date search runs in the background.
func (a *App) SetDate(field, value string) error {
	df := controller.DateField(field)
	if err := a.controller.SetDate(df, value); err != nil {
		return err
	}

	a.mu.Lock()
	auto := a.settings.AutoOptimalDate
	a.mu.Unlock()

	if auto && value != "" {
		go func() {
			if err := a.controller.SuggestDate(a.ctx, df); err != nil && !errors.Is(err, controller.ErrStale) {
				log.Printf("[App] Optimal %s date search failed: %v", field, err)
			}
		}()
	}
	return nil
}

// SuggestDate runs the optimal-date search for a date input
func (a *App) SuggestDate(field string) error {
	return frontendError(a.controller.SuggestDate(a.ctx, controller.DateField(field)))
}

// SetViewport records the visible map bounds
func (a *App) SetViewport(west, south, east, north float64) {
	a.controller.SetViewport(west, south, east, north)
}

// SetThreshold updates the zone detection threshold
func (a *App) SetThreshold(threshold float64) {
	a.controller.SetThreshold(threshold)
}

// RunAction runs an index action ("view", "compare", "diff", "zones",
// "zones-polygon", "stats", "stats-polygon", "histogram") for an index
func (a *App) RunAction(action, index string) error {
	kind, err := common.ParseIndexKind(index)
	if err != nil {
		return err
	}

	var run func(context.Context, common.IndexKind) error
	switch controller.Action(action) {
	case controller.ActionView:
		run = a.controller.ViewTile
	case controller.ActionCompare:
		run = a.controller.Compare
	case controller.ActionDiff:
		run = a.controller.Diff
	case controller.ActionZones:
		run = a.controller.Zones
	case controller.ActionZonesPolygon:
		run = a.controller.ZonesFromPolygon
	case controller.ActionStats:
		run = a.controller.Stats
	case controller.ActionStatsPolygon:
		run = a.controller.StatsFromPolygon
	case controller.ActionHistogram:
		run = a.controller.Histogram
	default:
		return fmt.Errorf("unknown action: %s", action)
	}

	return frontendError(run(a.ctx, kind))
}

// GetCloudiness reports the cloud cover over the visible area
func (a *App) GetCloudiness() error {
	return frontendError(a.controller.Cloudiness(a.ctx))
}

// GetLandsatDates lists the acquisitions in the year of the start date
func (a *App) GetLandsatDates() error {
	return frontendError(a.controller.LandsatDates(a.ctx))
}

// Confirm accepts a pending confirmation
func (a *App) Confirm(id string) error {
	return frontendError(a.controller.Confirm(id))
}

// Cancel rejects a pending confirmation
func (a *App) Cancel(id string) error {
	return a.controller.Cancel(id)
}

// Clear removes all results from the map. The polygon is kept when the
// keep-polygon setting is on.
func (a *App) Clear() {
	a.controller.Reset()
}

// ClearMap removes all results, choosing explicitly whether the polygon stays
func (a *App) ClearMap(keepPolygon bool) {
	a.controller.Clear(keepPolygon)
}

// DrawPolygon replaces the polygon with a GeoJSON geometry drawn on the map
func (a *App) DrawPolygon(geometry string) error {
	p, err := geo.ParsePolygon([]byte(geometry))
	if err != nil {
		return fmt.Errorf("failed to read drawn polygon: %w", err)
	}
	return a.controller.SetPolygon(p)
}

// ClearPolygon removes the polygon
func (a *App) ClearPolygon() {
	a.controller.ClearPolygon()
}

// UploadPolygon asks for a GeoJSON file and imports its polygon
func (a *App) UploadPolygon() error {
	data, err := a.openFile("Open polygon", "GeoJSON (*.geojson;*.json)", "*.geojson;*.json")
	if err != nil || data == nil {
		return err
	}
	return a.controller.ImportPolygon(data)
}

// ImportPolygonData imports a polygon from GeoJSON text (drag and drop)
func (a *App) ImportPolygonData(content string) error {
	return a.controller.ImportPolygon([]byte(content))
}

// DownloadPolygon saves the polygon as GeoJSON
func (a *App) DownloadPolygon() (string, error) {
	return a.controller.ExportPolygon()
}

// CaptureScreenshot asks the frontend for a screenshot after the map settles
func (a *App) CaptureScreenshot() (string, error) {
	name, err := a.controller.Capture(a.ctx)
	return name, frontendError(err)
}

// ExportHistory saves the polygon and its screenshot history
func (a *App) ExportHistory() (string, error) {
	return a.controller.ExportHistory()
}

// ImportHistory asks for a history file and loads it
func (a *App) ImportHistory() error {
	data, err := a.openFile("Open history", "History (*.json)", "*.json")
	if err != nil || data == nil {
		return err
	}
	return a.controller.ImportHistory(data)
}

// openFile shows an open dialog and reads the chosen file. A cancelled
// dialog returns nil data.
func (a *App) openFile(title, filterName, pattern string) ([]byte, error) {
	a.mu.Lock()
	dir := a.settings.ExportPath
	a.mu.Unlock()

	path, err := wailsRuntime.OpenFileDialog(a.ctx, wailsRuntime.OpenDialogOptions{
		Title:            title,
		DefaultDirectory: dir,
		Filters: []wailsRuntime.FileFilter{
			{DisplayName: filterName, Pattern: pattern},
		},
	})
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// promptConfirmation shows a native yes/no dialog for a pending confirmation
func (a *App) promptConfirmation(p controller.PendingConfirmation) {
	result, err := wailsRuntime.MessageDialog(a.ctx, wailsRuntime.MessageDialogOptions{
		Type:          wailsRuntime.QuestionDialog,
		Title:         "High cloud cover",
		Message:       p.Message,
		Buttons:       []string{"Yes", "No"},
		DefaultButton: "No",
		CancelButton:  "No",
	})
	if err != nil {
		log.Printf("[App] Confirmation dialog failed: %v", err)
		a.controller.Cancel(p.ID)
		return
	}

	if result == "Yes" || result == "Ok" {
		err = a.controller.Confirm(p.ID)
	} else {
		err = a.controller.Cancel(p.ID)
	}
	if err != nil && !errors.Is(err, controller.ErrStale) {
		log.Printf("[App] Confirmation %s: %v", p.ID, err)
	}
}
