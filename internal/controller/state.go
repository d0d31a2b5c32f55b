package controller

import (
	"maps"

	"vegwatch-desktop/internal/backend"
	"vegwatch-desktop/internal/geo"
)

// State is a full snapshot, used by the frontend after a reload
type State struct {
	Buttons    map[string]bool          `json:"buttons"`
	Layers     []ResultLayer            `json:"layers"`
	Status     StatusMessage            `json:"status"`
	Stats      *StatsPanel              `json:"stats,omitempty"`
	Histogram  *backend.Histogram       `json:"histogram,omitempty"`
	Polygon    *PolygonView             `json:"polygon,omitempty"`
	StartDate  string                   `json:"startDate"`
	EndDate    string                   `json:"endDate"`
	Threshold  float64                  `json:"threshold"`
	Candidates []backend.CandidateImage `json:"candidates,omitempty"`
	Pending    []PendingConfirmation    `json:"pending,omitempty"`
}

// State returns a snapshot of the controller state
func (c *Controller) State() State {
	c.lock()
	defer c.unlock()

	s := State{
		Buttons:    maps.Clone(c.buttons),
		Layers:     c.layersLocked(),
		Status:     c.status,
		StartDate:  isoOrEmpty(c.start),
		EndDate:    isoOrEmpty(c.end),
		Threshold:  c.threshold,
		Candidates: append([]backend.CandidateImage(nil), c.candidates...),
		Pending:    c.pendingLocked(),
	}
	if c.stats != nil {
		stats := *c.stats
		s.Stats = &stats
	}
	if c.histogram != nil {
		hist := *c.histogram
		s.Histogram = &hist
	}
	if p, ok := c.polygons.Polygon(); ok {
		if geometry, err := geo.GeometryJSON(p); err == nil {
			s.Polygon = &PolygonView{ID: c.polygons.ID(), Geometry: geometry}
			if c.vigor != nil {
				vigor := *c.vigor
				s.Polygon.Style = &vigor
			}
		}
	}
	return s
}
