package controller

import (
	"context"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"vegwatch-desktop/internal/backend"
	"vegwatch-desktop/internal/common"
	"vegwatch-desktop/internal/legend"
)

type fakeView struct {
	mu            sync.Mutex
	buttons       map[string]bool
	layers        map[string]ResultLayer
	legends       map[string]legend.Legend
	layerAdds     int
	layerRemoves  int
	status        StatusMessage
	stats         *StatsPanel
	histogram     *backend.Histogram
	polygon       *PolygonView
	fits          []orb.Bound
	dates         map[DateField]string
	candidates    []backend.CandidateImage
	confirmations []PendingConfirmation
	screenshots   []string
	saved         map[string][]byte
	savePath      string
	saveErr       error
}

func newFakeView() *fakeView {
	return &fakeView{
		layers:   make(map[string]ResultLayer),
		legends:  make(map[string]legend.Legend),
		dates:    make(map[DateField]string),
		saved:    make(map[string][]byte),
		savePath: "/tmp/out.json",
	}
}

func (v *fakeView) ButtonsChanged(buttons map[string]bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.buttons = buttons
}

func (v *fakeView) LayerAdded(layer ResultLayer) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.layers[layer.ID] = layer
	v.layerAdds++
}

func (v *fakeView) LayerRemoved(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.layers, id)
	v.layerRemoves++
}

func (v *fakeView) LegendChanged(id string, lg *legend.Legend) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if lg == nil {
		delete(v.legends, id)
		return
	}
	v.legends[id] = *lg
}

func (v *fakeView) StatusChanged(status StatusMessage) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.status = status
}

func (v *fakeView) StatsChanged(panel *StatsPanel) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stats = panel
}

func (v *fakeView) HistogramChanged(hist *backend.Histogram) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.histogram = hist
}

func (v *fakeView) PolygonChanged(polygon *PolygonView) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.polygon = polygon
}

func (v *fakeView) FitBounds(bound orb.Bound) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fits = append(v.fits, bound)
}

func (v *fakeView) DateChanged(field DateField, date string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dates[field] = date
}

func (v *fakeView) CandidatesChanged(candidates []backend.CandidateImage) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.candidates = candidates
}

func (v *fakeView) ConfirmationRequested(pending PendingConfirmation) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.confirmations = append(v.confirmations, pending)
}

func (v *fakeView) CaptureScreenshot(name string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.screenshots = append(v.screenshots, name)
}

func (v *fakeView) SaveFile(name string, data []byte) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.saveErr != nil {
		return "", v.saveErr
	}
	v.saved[name] = data
	return v.savePath, nil
}

func (v *fakeView) lastStatus() StatusMessage {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status
}

func (v *fakeView) button(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.buttons[id]
}

func (v *fakeView) layerCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.layers)
}

// fakeBackend answers every call with canned results. A non-nil gate
// blocks calls until it is closed.
type fakeBackend struct {
	mu    sync.Mutex
	calls []string
	gate  chan struct{}

	tileCloud  map[string]float64 // by ISO date
	err        error
	diff       *backend.DiffResult
	zones      *backend.ZonesResult
	stats      *backend.Stats
	histogram  *backend.Histogram
	best       *backend.BestDate
	cloudiness float64
	lastBound  *orb.Bound
	lastGeom   orb.Geometry
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		tileCloud: make(map[string]float64),
		diff:      &backend.DiffResult{TileURL: "https://up/diff/{z}/{x}/{y}", Name: "diff"},
		zones:     &backend.ZonesResult{},
		stats:     &backend.Stats{Year: 2023, Mean: 0.7},
		histogram: &backend.Histogram{BucketMin: -1, BucketWidth: 0.5, Counts: []float64{1, 2, 3, 4}},
		best:      &backend.BestDate{BestDate: "2023-06-03", CloudCover: 5},
	}
}

func (b *fakeBackend) record(ctx context.Context, name string) error {
	b.mu.Lock()
	b.calls = append(b.calls, name)
	gate := b.gate
	err := b.err
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (b *fakeBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

func (b *fakeBackend) setErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

func (b *fakeBackend) setGate(gate chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gate = gate
}

func (b *fakeBackend) tile(kind common.IndexKind, date time.Time) *backend.TileResult {
	iso := common.FormatISO8601(date)
	r := &backend.TileResult{
		TileURL: "https://up/" + string(kind) + "/" + iso + "/{z}/{x}/{y}",
		Name:    kind.DisplayName() + " " + iso,
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if cloud, ok := b.tileCloud[iso]; ok {
		r.CloudCover = &cloud
	}
	return r
}

func (b *fakeBackend) Tile(ctx context.Context, kind common.IndexKind, date time.Time) (*backend.TileResult, error) {
	if err := b.record(ctx, "tile"); err != nil {
		return nil, err
	}
	return b.tile(kind, date), nil
}

func (b *fakeBackend) ComparePair(ctx context.Context, kind common.IndexKind, first, second time.Time) ([2]*backend.TileResult, error) {
	if err := b.record(ctx, "compare"); err != nil {
		return [2]*backend.TileResult{}, err
	}
	return [2]*backend.TileResult{b.tile(kind, first), b.tile(kind, second)}, nil
}

func (b *fakeBackend) Diff(ctx context.Context, kind common.IndexKind, first, second time.Time, bound *orb.Bound, threshold *float64) (*backend.DiffResult, error) {
	if err := b.record(ctx, "diff"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastBound = bound
	return b.diff, nil
}

func (b *fakeBackend) Zones(ctx context.Context, kind common.IndexKind, first, second time.Time, threshold float64, bound orb.Bound) (*backend.ZonesResult, error) {
	if err := b.record(ctx, "zones"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastBound = &bound
	return b.zones, nil
}

func (b *fakeBackend) ZonesFromGeometry(ctx context.Context, kind common.IndexKind, first, second time.Time, threshold float64, geometry orb.Geometry) (*backend.ZonesResult, error) {
	if err := b.record(ctx, "zones-geojson"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastGeom = geometry
	return b.zones, nil
}

func (b *fakeBackend) Stats(ctx context.Context, kind common.IndexKind, date time.Time, bound orb.Bound) (*backend.Stats, error) {
	if err := b.record(ctx, "stats"); err != nil {
		return nil, err
	}
	return b.stats, nil
}

func (b *fakeBackend) StatsFromGeometry(ctx context.Context, kind common.IndexKind, date time.Time, geometry orb.Geometry) (*backend.Stats, error) {
	if err := b.record(ctx, "stats-geojson"); err != nil {
		return nil, err
	}
	return b.stats, nil
}

func (b *fakeBackend) Histogram(ctx context.Context, kind common.IndexKind, first, second time.Time, geometry orb.Geometry) (*backend.Histogram, error) {
	if err := b.record(ctx, "histogram"); err != nil {
		return nil, err
	}
	return b.histogram, nil
}

func (b *fakeBackend) LandsatDates(ctx context.Context, date time.Time) (*backend.LandsatDates, error) {
	if err := b.record(ctx, "landsat"); err != nil {
		return nil, err
	}
	return &backend.LandsatDates{Year: date.Year(), Dates: []string{"2023-06-05", "2023-06-21"}}, nil
}

func (b *fakeBackend) BestImageDate(ctx context.Context, target time.Time, geometry orb.Geometry) (*backend.BestDate, error) {
	if err := b.record(ctx, "best-date"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastGeom = geometry
	return b.best, nil
}

func (b *fakeBackend) Cloudiness(ctx context.Context, date time.Time, bound orb.Bound) (*backend.Cloudiness, error) {
	if err := b.record(ctx, "cloudiness"); err != nil {
		return nil, err
	}
	return &backend.Cloudiness{Cloudiness: b.cloudiness}, nil
}

type fakeTiles struct {
	mu     sync.Mutex
	routes map[string]string
}

func (f *fakeTiles) Register(id, upstream string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[id] = upstream
	return "http://127.0.0.1:9999/overlay/" + id + "/{z}/{x}/{y}"
}

func (f *fakeTiles) Unregister(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.routes, id)
}
