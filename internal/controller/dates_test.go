package controller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vegwatch-desktop/internal/backend"
	"vegwatch-desktop/internal/common"
)

func TestSuggestDateFieldsRunIndependently(t *testing.T) {
	c, view, be := newTestController(t)
	setDates(t, c)

	gate := make(chan struct{})
	be.setGate(gate)

	ctx := context.Background()
	startDone := make(chan error, 1)
	go func() { startDone <- c.SuggestDate(ctx, FieldStart) }()
	require.Eventually(t, func() bool { return be.callCount() == 1 }, time.Second, time.Millisecond)

	assert.False(t, view.button("optimal-date:start"))
	assert.True(t, view.button("optimal-date:end"))

	endDone := make(chan error, 1)
	go func() { endDone <- c.SuggestDate(ctx, FieldEnd) }()
	require.Eventually(t, func() bool { return be.callCount() == 2 }, time.Second, time.Millisecond)

	close(gate)
	require.NoError(t, <-startDone)
	require.NoError(t, <-endDone)

	start, end := c.Dates()
	assert.Equal(t, "2023-06-03", common.FormatISO8601(start))
	assert.Equal(t, "2023-06-03", common.FormatISO8601(end))
	assert.False(t, view.lastStatus().IsError)
	assert.True(t, view.button("optimal-date:start"))
	assert.True(t, view.button("optimal-date:end"))
}

func TestDateEditSupersedesSuggestion(t *testing.T) {
	t.Run("running search is discarded", func(t *testing.T) {
		c, view, be := newTestController(t)
		setDates(t, c)

		gate := make(chan struct{})
		be.setGate(gate)

		done := make(chan error, 1)
		go func() { done <- c.SuggestDate(context.Background(), FieldStart) }()
		require.Eventually(t, func() bool { return be.callCount() == 1 }, time.Second, time.Millisecond)

		require.NoError(t, c.SetDate(FieldStart, "2023-09-20"))
		assert.True(t, view.button("optimal-date:start"), "the edit frees the button")

		close(gate)
		require.ErrorIs(t, <-done, ErrStale)

		start, _ := c.Dates()
		assert.Equal(t, "2023-09-20", common.FormatISO8601(start))
		assert.Empty(t, view.dates)
	})

	t.Run("search for the new date applies", func(t *testing.T) {
		c, _, be := newTestController(t)
		setDates(t, c)

		gate := make(chan struct{})
		be.setGate(gate)

		ctx := context.Background()
		first := make(chan error, 1)
		go func() { first <- c.SuggestDate(ctx, FieldStart) }()
		require.Eventually(t, func() bool { return be.callCount() == 1 }, time.Second, time.Millisecond)

		require.NoError(t, c.SetDate(FieldStart, "2023-09-20"))

		second := make(chan error, 1)
		go func() { second <- c.SuggestDate(ctx, FieldStart) }()
		require.Eventually(t, func() bool { return be.callCount() == 2 }, time.Second, time.Millisecond)

		close(gate)
		require.ErrorIs(t, <-first, ErrStale)
		require.NoError(t, <-second)

		start, _ := c.Dates()
		assert.Equal(t, "2023-06-03", common.FormatISO8601(start))
	})

	t.Run("other field keeps searching", func(t *testing.T) {
		c, _, be := newTestController(t)
		setDates(t, c)

		gate := make(chan struct{})
		be.setGate(gate)

		done := make(chan error, 1)
		go func() { done <- c.SuggestDate(context.Background(), FieldEnd) }()
		require.Eventually(t, func() bool { return be.callCount() == 1 }, time.Second, time.Millisecond)

		require.NoError(t, c.SetDate(FieldStart, "2023-05-01"))
		close(gate)
		require.NoError(t, <-done)

		start, end := c.Dates()
		assert.Equal(t, "2023-05-01", common.FormatISO8601(start))
		assert.Equal(t, "2023-06-03", common.FormatISO8601(end))
	})

	t.Run("open prompt is discarded", func(t *testing.T) {
		c, view, be := newTestController(t)
		setDates(t, c)
		be.best = &backend.BestDate{BestDate: "2023-06-20", CloudCover: 35}

		require.NoError(t, c.SuggestDate(context.Background(), FieldStart))
		require.Len(t, view.confirmations, 1)

		require.NoError(t, c.SetDate(FieldStart, "2023-09-20"))
		require.ErrorIs(t, c.Confirm(view.confirmations[0].ID), ErrStale)

		start, _ := c.Dates()
		assert.Equal(t, "2023-09-20", common.FormatISO8601(start))
		assert.Equal(t, "Optimal start date not applied", view.lastStatus().Text)
	})
}
