// Package legend describes the legend shown next to each result layer and
// the vigor class used to style a polygon from its statistics.
package legend

import (
	"fmt"

	"vegwatch-desktop/internal/common"
)

// Entry is one colored row of a legend
type Entry struct {
	Color string `json:"color"`
	Label string `json:"label"`
}

// Legend is the content of a legend box
type Legend struct {
	Title   string  `json:"title"`
	Entries []Entry `json:"entries"`
}

// indexClasses is the sequential scale for single-date index tiles
var indexClasses = []Entry{
	{Color: "#01665e", Label: "> 0.8 (dense vegetation)"},
	{Color: "#5ab4ac", Label: "0.6 - 0.8 (abundant vegetation)"},
	{Color: "#c7eae5", Label: "0.4 - 0.6 (moderate vegetation)"},
	{Color: "#f6e8c3", Label: "0.2 - 0.4 (sparse or mixed vegetation)"},
	{Color: "#d8b365", Label: "0.1 - 0.2 (highly degraded vegetation)"},
	{Color: "#8c510a", Label: "< 0.1 (bare soil)"},
}

// burnClasses replaces the vegetation wording for NBR tiles
var burnClasses = []Entry{
	{Color: "#01665e", Label: "> 0.8 (healthy vegetation)"},
	{Color: "#5ab4ac", Label: "0.6 - 0.8 (vegetated)"},
	{Color: "#c7eae5", Label: "0.4 - 0.6 (low vigor)"},
	{Color: "#f6e8c3", Label: "0.2 - 0.4 (sparse cover)"},
	{Color: "#d8b365", Label: "0.1 - 0.2 (recently burned)"},
	{Color: "#8c510a", Label: "< 0.1 (burn scar or bare soil)"},
}

// changeClasses is the diverging scale for difference tiles
var changeClasses = []Entry{
	{Color: "green", Label: "Large increase (regrowth)"},
	{Color: "cyan", Label: "Small increase"},
	{Color: "white", Label: "Little or no change"},
	{Color: "yellow", Label: "Small decrease"},
	{Color: "red", Label: "Large decrease (deforestation)"},
}

// ZoneColor is the stroke/fill color of deforested zone polygons
const ZoneColor = "#ff0000"

// For returns the legend for a result layer
func For(kind common.IndexKind, op common.OperationKind) Legend {
	name := kind.DisplayName()

	switch op {
	case common.OpDiff:
		return Legend{
			Title:   fmt.Sprintf("%s difference", name),
			Entries: changeClasses,
		}
	case common.OpZones:
		return Legend{
			Title: fmt.Sprintf("%s deforestation zones", name),
			Entries: []Entry{
				{Color: ZoneColor, Label: "Index loss above threshold"},
			},
		}
	}

	entries := indexClasses
	if kind == common.IndexNBR {
		entries = burnClasses
	}
	title := fmt.Sprintf("%s legend", name)
	if op == common.OpCompare {
		title = fmt.Sprintf("%s comparison", name)
	}
	return Legend{Title: title, Entries: entries}
}

// Vigor is the class a polygon falls into from its mean index value
type Vigor struct {
	Color   string `json:"color"`
	Message string `json:"message"`
}

var (
	VigorLow          = Vigor{Color: "red", Message: "Possible deforestation"}
	VigorIntermediate = Vigor{Color: "yellow", Message: "Intermediate vegetation"}
	VigorHealthy      = Vigor{Color: "green", Message: "Healthy vegetation"}
)

// ClassifyMean maps a mean index value to its vigor class
func ClassifyMean(mean float64) Vigor {
	switch {
	case mean < 0.4:
		return VigorLow
	case mean < 0.6:
		return VigorIntermediate
	default:
		return VigorHealthy
	}
}
