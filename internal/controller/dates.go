package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/orb"

	"vegwatch-desktop/internal/backend"
	"vegwatch-desktop/internal/common"
)

// SetDate updates a date input. An empty value clears it. An optimal-date
// search still running for the field no longer applies.
func (c *Controller) SetDate(field DateField, value string) error {
	var date time.Time
	if value != "" {
		parsed, err := common.ParseDate(value)
		if err != nil {
			c.lock()
			c.errorLocked("Invalid %s date %q", field, value)
			c.unlock()
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		date = parsed
	}

	c.lock()
	defer c.unlock()
	if err := c.setDateLocked(field, date, false); err != nil {
		return err
	}
	c.supersedeLocked(OptimalDateButton(field))
	return nil
}

// setDateLocked stores a date; notify pushes it back to the date input
func (c *Controller) setDateLocked(field DateField, date time.Time, notify bool) error {
	switch field {
	case FieldStart:
		c.start = date
	case FieldEnd:
		c.end = date
	default:
		return fmt.Errorf("%w: unknown date field %q", ErrValidation, field)
	}
	c.publishButtonsLocked()

	if notify {
		value := ""
		if !date.IsZero() {
			value = common.FormatISO8601(date)
		}
		c.emit(func(v View) { v.DateChanged(field, value) })
	}
	return nil
}

// Dates returns the current start and end dates (zero when unset)
func (c *Controller) Dates() (time.Time, time.Time) {
	c.lock()
	defer c.unlock()
	return c.start, c.end
}

// SuggestDate asks the backend for the least cloudy acquisition near the
// current value of a date field, restricted to the polygon when one is
// drawn. Cloudy suggestions wait for confirmation before replacing the date.
func (c *Controller) SuggestDate(ctx context.Context, field DateField) error {
	if field != FieldStart && field != FieldEnd {
		return fmt.Errorf("%w: unknown date field %q", ErrValidation, field)
	}

	button := OptimalDateButton(field)
	t, err := c.beginButton(ActionOptimalDate, "", button, button, false)
	if err != nil {
		return err
	}

	target := t.start
	if field == FieldEnd {
		target = t.end
	}
	if target.IsZero() {
		return c.finish(t, fmt.Errorf("%w: select the %s date first", ErrValidation, field), nil)
	}

	var geometry orb.Geometry
	if t.polygon != nil {
		geometry = t.polygon
	}

	result, err := c.backend.BestImageDate(ctx, target, geometry)
	return c.finish(t, err, func() error {
		return c.applySuggestionLocked(t, field, result)
	})
}

func (c *Controller) applySuggestionLocked(t *ticket, field DateField, result *backend.BestDate) error {
	c.candidates = append([]backend.CandidateImage(nil), result.CandidateImages...)
	candidates := c.candidates
	c.emit(func(v View) { v.CandidatesChanged(candidates) })

	suggested, err := common.ParseDate(result.Date())
	if err != nil {
		c.errorLocked("Optimal date search returned an invalid date %q", result.Date())
		return fmt.Errorf("invalid suggested date: %w", err)
	}
	iso := common.FormatISO8601(suggested)

	apply := func() {
		c.setDateLocked(field, suggested, true)
		c.infoLocked("Optimal %s date: %s (%.1f%% cloud cover)", field, iso, result.CloudCover)
	}

	if result.CloudCover > c.opts.CloudAlertThreshold {
		message := fmt.Sprintf("The best %s date found, %s, has %.1f%% cloud cover (above %.0f%%). Use it anyway?",
			field, iso, result.CloudCover, c.opts.CloudAlertThreshold)
		c.requestConfirmationLocked(t, "cloud-cover", message, fmt.Sprintf("Optimal %s date not applied", field), apply)
		return nil
	}
	apply()
	return nil
}
