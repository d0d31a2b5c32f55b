package controller

import (
	"errors"
	"fmt"

	"vegwatch-desktop/internal/common"
)

// ErrValidation is returned when an action's preconditions do not hold.
// No request is sent.
var ErrValidation = errors.New("validation failed")

// ErrStale is returned when a response arrives after a newer request for
// the same slot or after a clear. The response is discarded.
var ErrStale = errors.New("result superseded")

// Action is a user-triggerable operation
type Action string

// Index-qualified actions, one button per index kind
const (
	ActionView         Action = "view"
	ActionCompare      Action = "compare"
	ActionDiff         Action = "diff"
	ActionZones        Action = "zones"
	ActionZonesPolygon Action = "zones-polygon"
	ActionStats        Action = "stats"
	ActionStatsPolygon Action = "stats-polygon"
	ActionHistogram    Action = "histogram"
)

// Global actions
const (
	ActionCloudiness      Action = "cloudiness"
	ActionLandsatDates    Action = "landsat-dates"
	ActionOptimalDate     Action = "optimal-date"
	ActionDownloadPolygon Action = "download-polygon"
	ActionExportHistory   Action = "export-history"
	ActionClear           Action = "clear"
	ActionCapture         Action = "capture"
	ActionDraw            Action = "draw"
	ActionUpload          Action = "upload"
	ActionImportHistory   Action = "import-history"
)

var indexActions = []Action{
	ActionView, ActionCompare, ActionDiff, ActionZones, ActionZonesPolygon,
	ActionStats, ActionStatsPolygon, ActionHistogram,
}

var globalActions = []Action{
	ActionCloudiness, ActionLandsatDates, ActionDownloadPolygon,
	ActionExportHistory, ActionClear, ActionCapture, ActionDraw, ActionUpload,
	ActionImportHistory,
}

var actionNames = map[Action]string{
	ActionView:         "tile",
	ActionCompare:      "comparison",
	ActionDiff:         "difference",
	ActionZones:        "deforestation zones",
	ActionZonesPolygon: "polygon deforestation zones",
	ActionStats:        "statistics",
	ActionStatsPolygon: "polygon statistics",
	ActionHistogram:    "histogram",
	ActionCloudiness:   "cloudiness",
	ActionLandsatDates: "Landsat dates",
	ActionOptimalDate:  "optimal date",
}

// describe names an action in status messages, e.g. "NDVI comparison"
func describe(action Action, kind common.IndexKind) string {
	name, ok := actionNames[action]
	if !ok {
		name = string(action)
	}
	if kind == "" {
		return name
	}
	return kind.DisplayName() + " " + name
}

type requirement struct {
	dates   bool
	polygon bool
}

var requirements = map[Action]requirement{
	ActionView:            {dates: true},
	ActionCompare:         {dates: true},
	ActionDiff:            {dates: true},
	ActionZones:           {dates: true},
	ActionStats:           {dates: true},
	ActionCloudiness:      {dates: true},
	ActionLandsatDates:    {dates: true},
	ActionZonesPolygon:    {dates: true, polygon: true},
	ActionStatsPolygon:    {dates: true, polygon: true},
	ActionHistogram:       {dates: true, polygon: true},
	ActionDownloadPolygon: {polygon: true},
	ActionExportHistory:   {polygon: true},
}

// ButtonID is the id of an action's button: "<index>:<action>" for index
// actions, the bare action otherwise
func ButtonID(action Action, kind common.IndexKind) string {
	if kind == "" {
		return string(action)
	}
	return string(kind) + ":" + string(action)
}

// OptimalDateButton is the id of a date field's optimal-date button. Each
// field searches independently.
func OptimalDateButton(field DateField) string {
	return string(ActionOptimalDate) + ":" + string(field)
}

// gateInput is the part of the state buttons depend on
type gateInput struct {
	datesSet   bool
	hasPolygon bool
	inFlight   map[string]int
}

// computeButtons derives the enabled state of every button
func computeButtons(in gateInput) map[string]bool {
	buttons := make(map[string]bool, len(indexActions)*len(common.AllIndexKinds)+len(globalActions))
	for _, kind := range common.AllIndexKinds {
		for _, action := range indexActions {
			id := ButtonID(action, kind)
			buttons[id] = checkAction(in, action, kind, id) == nil
		}
	}
	for _, action := range globalActions {
		id := ButtonID(action, "")
		buttons[id] = checkAction(in, action, "", id) == nil
	}
	for _, field := range []DateField{FieldStart, FieldEnd} {
		id := OptimalDateButton(field)
		buttons[id] = checkAction(in, ActionOptimalDate, "", id) == nil
	}
	return buttons
}

// checkAction explains why an action cannot run, or returns nil
func checkAction(in gateInput, action Action, kind common.IndexKind, button string) error {
	req := requirements[action]
	switch {
	case in.inFlight[button] > 0:
		return fmt.Errorf("%w: the %s request is still in progress", ErrValidation, describe(action, kind))
	case req.dates && !in.datesSet:
		return fmt.Errorf("%w: select both dates first", ErrValidation)
	case req.polygon && !in.hasPolygon:
		return fmt.Errorf("%w: draw or upload a polygon first", ErrValidation)
	}
	return nil
}
