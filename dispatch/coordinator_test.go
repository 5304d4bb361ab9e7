package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusops/facultyhours/errors"
	"github.com/campusops/facultyhours/report"
)

// fakeHandler records delivery calls and fails or stalls on demand.
type fakeHandler struct {
	name     string
	err      error
	panicMsg string
	delay    time.Duration
	calls    int
	lastKey  string
}

func (h *fakeHandler) Name() string { return h.name }

func (h *fakeHandler) Deliver(ctx context.Context, doc *report.Document, key string) error {
	h.calls++
	h.lastKey = key
	if h.panicMsg != "" {
		panic(h.panicMsg)
	}
	if h.delay > 0 {
		select {
		case <-time.After(h.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return h.err
}

func testDoc() *report.Document {
	return &report.Document{
		Period: report.Period{Year: 2025, Month: time.April},
		Totals: report.Totals{SkippedEvents: 3},
	}
}

func newTestCoordinator(t *testing.T, timeout time.Duration, handlers ...Handler) *Coordinator {
	t.Helper()
	c := NewCoordinator(timeout, nil)
	for _, h := range handlers {
		require.NoError(t, c.Register(h))
	}
	return c
}

func TestRunAllSucceed(t *testing.T) {
	a := &fakeHandler{name: "csv"}
	b := &fakeHandler{name: "s3"}
	c := newTestCoordinator(t, 0, a, b)

	result, err := c.Run(context.Background(), testDoc(), []string{"csv", "s3"})

	require.NoError(t, err)
	assert.Equal(t, RunSuccess, result.Status)
	assert.True(t, result.Succeeded())
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, "2025-04", a.lastKey, "handlers receive the period idempotence key")
	assert.Equal(t, 3, result.SkippedEvents)
	assert.NotEmpty(t, result.RunID)
}

func TestRunPartialFailure(t *testing.T) {
	a := &fakeHandler{name: "csv"}
	b := &fakeHandler{name: "s3", err: errors.New("bucket unreachable")}
	c := newTestCoordinator(t, 0, a, b)

	result, err := c.Run(context.Background(), testDoc(), []string{"csv", "s3"})

	require.NoError(t, err)
	assert.Equal(t, RunPartialFailure, result.Status)
	assert.Equal(t, StatusSuccess, result.Outcomes[0].Status)
	assert.Equal(t, StatusFailed, result.Outcomes[1].Status)
	assert.Equal(t, 1, a.calls, "sibling delivery unaffected by the failure")
	assert.Equal(t, []string{"s3"}, result.FailedHandlers())
}

func TestRunFatalFailure(t *testing.T) {
	a := &fakeHandler{name: "csv", err: errors.New("disk full")}
	b := &fakeHandler{name: "s3", err: errors.New("bucket unreachable")}
	c := newTestCoordinator(t, 0, a, b)

	result, err := c.Run(context.Background(), testDoc(), []string{"csv", "s3"})

	require.NoError(t, err)
	assert.Equal(t, RunFatalFailure, result.Status)
	assert.Len(t, result.FailedHandlers(), 2)
}

func TestRunUnknownHandlerFailsBeforeAnyDelivery(t *testing.T) {
	a := &fakeHandler{name: "csv"}
	c := newTestCoordinator(t, 0, a)

	result, err := c.Run(context.Background(), testDoc(), []string{"csv", "nope"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownHandler))
	assert.Nil(t, result, "no outcomes recorded for valid handlers in that run")
	assert.Equal(t, 0, a.calls, "no handler may execute before validation passes")
}

func TestRunPreservesCallerOrderAndDedups(t *testing.T) {
	a := &fakeHandler{name: "csv"}
	b := &fakeHandler{name: "s3"}
	tt := &fakeHandler{name: "timesync"}
	c := newTestCoordinator(t, 0, a, b, tt)

	result, err := c.Run(context.Background(), testDoc(),
		[]string{"timesync", "csv", "timesync", "s3", "csv"})

	require.NoError(t, err)
	require.Len(t, result.Outcomes, 3)
	assert.Equal(t, "timesync", result.Outcomes[0].Handler)
	assert.Equal(t, "csv", result.Outcomes[1].Handler)
	assert.Equal(t, "s3", result.Outcomes[2].Handler)
	assert.Equal(t, 1, tt.calls)
}

func TestRunHandlerTimeout(t *testing.T) {
	slow := &fakeHandler{name: "timesync", delay: 500 * time.Millisecond}
	fast := &fakeHandler{name: "csv"}
	c := newTestCoordinator(t, 20*time.Millisecond, slow, fast)

	result, err := c.Run(context.Background(), testDoc(), []string{"timesync", "csv"})

	require.NoError(t, err)
	assert.Equal(t, RunPartialFailure, result.Status)
	assert.Equal(t, StatusFailed, result.Outcomes[0].Status)
	assert.True(t, errors.Is(result.Outcomes[0].Err, errors.ErrHandlerTimeout),
		"timeout is reported as a handler failure with a timeout reason")
	assert.Equal(t, StatusSuccess, result.Outcomes[1].Status,
		"a stalled sink must not block siblings")
}

func TestRunHandlerPanicIsContained(t *testing.T) {
	boom := &fakeHandler{name: "s3", panicMsg: "nil dereference in sink"}
	ok := &fakeHandler{name: "csv"}
	c := newTestCoordinator(t, 0, boom, ok)

	result, err := c.Run(context.Background(), testDoc(), []string{"s3", "csv"})

	require.NoError(t, err)
	assert.Equal(t, RunPartialFailure, result.Status)
	assert.Equal(t, StatusFailed, result.Outcomes[0].Status)
	assert.Contains(t, result.Outcomes[0].Err.Error(), "panicked")
	assert.Equal(t, 1, ok.calls)
}

func TestRunEmptyHandlerList(t *testing.T) {
	c := newTestCoordinator(t, 0)
	_, err := c.Run(context.Background(), testDoc(), nil)
	assert.Error(t, err)
}

func TestRegisterDuplicate(t *testing.T) {
	c := NewCoordinator(0, nil)
	require.NoError(t, c.Register(&fakeHandler{name: "csv"}))
	assert.Error(t, c.Register(&fakeHandler{name: "csv"}))
}

func TestRerunSamePeriodSameKeys(t *testing.T) {
	// Idempotence: two runs for the same period hand handlers the same
	// key, so last-write-wins sinks end up with no duplicates.
	h := &fakeHandler{name: "s3"}
	c := newTestCoordinator(t, 0, h)

	first, err := c.Run(context.Background(), testDoc(), []string{"s3"})
	require.NoError(t, err)
	firstKey := h.lastKey

	second, err := c.Run(context.Background(), testDoc(), []string{"s3"})
	require.NoError(t, err)

	assert.Equal(t, firstKey, h.lastKey)
	assert.NotEqual(t, first.RunID, second.RunID, "run ids are per-run, keys are per-period")
}
