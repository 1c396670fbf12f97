package main

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationMetricsStats(t *testing.T) {
	var om OperationMetrics
	for i := 1; i <= 20; i++ {
		om.Record(time.Duration(i)*time.Millisecond, OutcomeSuccess)
	}
	om.Record(time.Second, OutcomeConflict)

	avg, min, max, p50, p95 := om.Stats()
	assert.Equal(t, int64(21), om.Total)
	assert.Equal(t, int64(20), om.Success)
	assert.Equal(t, int64(1), om.Conflict)
	assert.Equal(t, time.Millisecond, min)
	assert.Equal(t, time.Second, max)
	assert.Equal(t, 11*time.Millisecond, p50)
	assert.Equal(t, 20*time.Millisecond, p95)
	assert.Greater(t, avg, 20*time.Millisecond)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, classify(http.StatusCreated, nil, http.StatusCreated))
	assert.Equal(t, OutcomeConflict, classify(http.StatusConflict, nil, http.StatusCreated))
	assert.Equal(t, OutcomeError, classify(http.StatusInternalServerError, nil, http.StatusOK))
	assert.Equal(t, OutcomeError, classify(0, errors.New("dial"), http.StatusOK))
}

func TestUpcomingDatesSkipWeekends(t *testing.T) {
	friday := time.Date(2025, 3, 7, 15, 0, 0, 0, time.UTC)
	got := upcomingDates(friday, 3)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"2025-03-10", "2025-03-11", "2025-03-12"}, got)
}

func TestNormalizeRatios(t *testing.T) {
	cfg := normalize(SimConfig{APIBaseURL: "http://x/", BookingRatio: 2, ConfirmRatio: 1, CancelRatio: 0, ReadRatio: 1})
	assert.InDelta(t, 0.5, cfg.BookingRatio, 1e-9)
	assert.InDelta(t, 0.25, cfg.ReadRatio, 1e-9)
	assert.Equal(t, "http://x", cfg.APIBaseURL)
}
