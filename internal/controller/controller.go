// Package controller is the map interaction state machine: it decides which
// actions are valid, dispatches them to the analysis backend and turns the
// results into map, legend and status updates on the View.
package controller

import (
	"errors"
	"fmt"
	"log"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"vegwatch-desktop/internal/backend"
	"vegwatch-desktop/internal/common"
	"vegwatch-desktop/internal/config"
	"vegwatch-desktop/internal/geo"
	"vegwatch-desktop/internal/legend"
)

// Options tune controller behavior
type Options struct {
	Threshold           float64
	CloudAlertThreshold float64 // percent
	CaptureDelay        time.Duration
	KeepPolygonOnClear  bool

	// OnEvent is called after every action outcome (analytics)
	OnEvent func(event string, props map[string]interface{})

	// Now defaults to time.Now
	Now func() time.Time
}

// OptionsFromSettings builds Options from user settings
func OptionsFromSettings(s *config.UserSettings) Options {
	return Options{
		Threshold:           s.DefaultThreshold,
		CloudAlertThreshold: s.CloudAlertThreshold,
		CaptureDelay:        time.Duration(s.CaptureDelayMs) * time.Millisecond,
		KeepPolygonOnClear:  s.KeepPolygonOnClear,
	}
}

// Controller owns all client-side map state. Methods are safe for
// concurrent use; network calls never run under the lock.
type Controller struct {
	mu       sync.Mutex
	notifyMu sync.Mutex
	outbox   []func()

	view    View
	backend Backend
	tiles   TileRewriter
	opts    Options

	start, end  time.Time
	viewport    orb.Bound
	hasView     bool
	threshold   float64
	keepPolygon bool
	polygons    geo.Store
	vigor       *legend.Vigor

	layers     map[common.LayerKey]*ResultLayer
	status     StatusMessage
	stats      *StatsPanel
	histogram  *backend.Histogram
	candidates []backend.CandidateImage
	pending    map[string]*pending
	history    History

	tokens     map[string]uint64
	inFlight   map[string]int
	active     map[string]*ticket // latest in-flight ticket per slot
	generation uint64
	buttons    map[string]bool
	pendingSeq uint64
}

// New creates a controller. tiles may be nil to load overlays directly.
func New(view View, be Backend, tiles TileRewriter, opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CloudAlertThreshold <= 0 {
		opts.CloudAlertThreshold = 20
	}

	c := &Controller{
		view:        view,
		backend:     be,
		tiles:       tiles,
		opts:        opts,
		threshold:   opts.Threshold,
		keepPolygon: opts.KeepPolygonOnClear,
		layers:      make(map[common.LayerKey]*ResultLayer),
		pending:     make(map[string]*pending),
		tokens:      make(map[string]uint64),
		inFlight:    make(map[string]int),
		active:      make(map[string]*ticket),
	}

	c.lock()
	c.publishButtonsLocked()
	c.unlock()
	return c
}

func (c *Controller) lock() {
	c.mu.Lock()
}

// unlock releases the state lock and delivers queued view updates in the
// order they were produced
func (c *Controller) unlock() {
	events := c.outbox
	c.outbox = nil
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	for _, fn := range events {
		fn()
	}
}

// emit queues a view update; must hold mu
func (c *Controller) emit(fn func(v View)) {
	view := c.view
	c.outbox = append(c.outbox, func() { fn(view) })
}

// track queues an analytics event; must hold mu
func (c *Controller) track(event string, props map[string]interface{}) {
	if c.opts.OnEvent == nil {
		return
	}
	onEvent := c.opts.OnEvent
	c.outbox = append(c.outbox, func() { onEvent(event, props) })
}

func (c *Controller) datesSetLocked() bool {
	return !c.start.IsZero() && !c.end.IsZero()
}

func (c *Controller) publishButtonsLocked() {
	buttons := computeButtons(gateInput{
		datesSet:   c.datesSetLocked(),
		hasPolygon: c.polygons.HasPolygon(),
		inFlight:   c.inFlight,
	})
	if maps.Equal(buttons, c.buttons) {
		return
	}
	c.buttons = buttons
	snapshot := maps.Clone(buttons)
	c.emit(func(v View) { v.ButtonsChanged(snapshot) })
}

func (c *Controller) setStatusLocked(text string, isError bool) {
	c.status = StatusMessage{Text: text, IsError: isError}
	status := c.status
	c.emit(func(v View) { v.StatusChanged(status) })
}

func (c *Controller) infoLocked(format string, args ...interface{}) {
	c.setStatusLocked(fmt.Sprintf(format, args...), false)
}

func (c *Controller) errorLocked(format string, args ...interface{}) {
	c.setStatusLocked(fmt.Sprintf(format, args...), true)
}

// ticket is an issued request. Its result applies only while id is the
// latest for its slot and no clear happened since.
type ticket struct {
	action     Action
	kind       common.IndexKind
	button     string
	slot       string
	id         uint64
	generation uint64

	start, end  time.Time
	viewport    orb.Bound
	hasViewport bool
	threshold   float64
	polygon     orb.Polygon

	released bool // no longer counted in flight
}

func (t *ticket) label() string {
	return describe(t.action, t.kind)
}

// begin validates an action, records it in flight and snapshots the inputs
// it needs
func (c *Controller) begin(action Action, kind common.IndexKind, slot string, needsViewport bool) (*ticket, error) {
	return c.beginButton(action, kind, ButtonID(action, kind), slot, needsViewport)
}

func (c *Controller) beginButton(action Action, kind common.IndexKind, button, slot string, needsViewport bool) (*ticket, error) {
	c.lock()
	defer c.unlock()

	err := checkAction(gateInput{
		datesSet:   c.datesSetLocked(),
		hasPolygon: c.polygons.HasPolygon(),
		inFlight:   c.inFlight,
	}, action, kind, button)
	if err == nil && kind != "" {
		if _, perr := common.ParseIndexKind(string(kind)); perr != nil {
			err = fmt.Errorf("%w: %v", ErrValidation, perr)
		}
	}
	if err == nil && needsViewport && !c.hasView {
		err = fmt.Errorf("%w: the map view is not ready yet", ErrValidation)
	}
	if err != nil {
		c.errorLocked("%s", validationText(err))
		c.track("action_rejected", map[string]interface{}{"action": button})
		return nil, err
	}

	c.tokens[slot]++
	t := &ticket{
		action:      action,
		kind:        kind,
		button:      button,
		slot:        slot,
		id:          c.tokens[slot],
		generation:  c.generation,
		start:       c.start,
		end:         c.end,
		viewport:    c.viewport,
		hasViewport: c.hasView,
		threshold:   c.threshold,
	}
	if p, ok := c.polygons.Polygon(); ok {
		t.polygon = p.Clone()
	}

	c.inFlight[button]++
	c.active[slot] = t
	c.infoLocked("Loading %s...", t.label())
	c.publishButtonsLocked()
	log.Printf("[Controller] %s started (slot=%s op=%d)", button, slot, t.id)
	return t, nil
}

// finish ends a request. On a current ticket it reports err or runs apply
// under the lock; stale results return ErrStale.
func (c *Controller) finish(t *ticket, err error, apply func() error) error {
	c.lock()
	defer c.unlock()

	c.releaseLocked(t)
	c.publishButtonsLocked()

	if !c.currentLocked(t) {
		log.Printf("[Controller] %s op=%d discarded (superseded)", t.button, t.id)
		return ErrStale
	}

	if err != nil {
		log.Printf("[Controller] %s failed: %v", t.button, err)
		if errors.Is(err, ErrValidation) {
			c.errorLocked("%s", validationText(err))
		} else {
			c.errorLocked("%s failed: %s", t.label(), err.Error())
		}
		c.track("action_failed", map[string]interface{}{"action": t.button, "error": err.Error()})
		return err
	}

	if err := apply(); err != nil {
		return err
	}
	c.track("action_succeeded", map[string]interface{}{"action": t.button})
	return nil
}

// releaseLocked takes a ticket out of the in-flight count, once
func (c *Controller) releaseLocked(t *ticket) {
	if t.released {
		return
	}
	t.released = true
	if c.inFlight[t.button] > 0 {
		c.inFlight[t.button]--
	}
	if c.active[t.slot] == t {
		delete(c.active, t.slot)
	}
}

// supersedeLocked makes whatever is running for slot stale and frees its
// button for a new request
func (c *Controller) supersedeLocked(slot string) {
	c.tokens[slot]++
	if t, ok := c.active[slot]; ok {
		log.Printf("[Controller] %s op=%d superseded", t.button, t.id)
		c.releaseLocked(t)
	}
	c.publishButtonsLocked()
}

func (c *Controller) currentLocked(t *ticket) bool {
	return t.generation == c.generation && c.tokens[t.slot] == t.id
}

func validationText(err error) string {
	text := strings.TrimPrefix(err.Error(), ErrValidation.Error()+": ")
	if text == "" {
		return text
	}
	return strings.ToUpper(text[:1]) + text[1:]
}

// SetThreshold updates the difference threshold sent with zone requests
func (c *Controller) SetThreshold(threshold float64) {
	c.lock()
	defer c.unlock()
	c.threshold = threshold
}

// SetKeepPolygonOnClear sets whether Reset keeps the drawn polygon
func (c *Controller) SetKeepPolygonOnClear(keep bool) {
	c.lock()
	defer c.unlock()
	c.keepPolygon = keep
}

// SetViewport records the visible map bounds
func (c *Controller) SetViewport(west, south, east, north float64) {
	c.lock()
	defer c.unlock()
	c.viewport = orb.Bound{Min: orb.Point{west, south}, Max: orb.Point{east, north}}
	c.hasView = true
}
