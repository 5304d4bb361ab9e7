package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusops/facultyhours/errors"
	"github.com/campusops/facultyhours/report"
)

// Handler delivers a report document to one sink.
//
// The document is read-only: handlers must not mutate it. The
// idempotence key is the period string; handlers performing external
// writes derive per-person object keys as key + "/" + canonical id so
// re-running a period overwrites rather than duplicates.
type Handler interface {
	Name() string
	Deliver(ctx context.Context, doc *report.Document, key string) error
}

// Coordinator owns the handler registry and runs dispatches.
//
// Handlers are invoked sequentially in the order the caller requested
// them, with no implicit reordering. Callers rely on a cheap handler
// (local file) running before an expensive one (network sync) to keep a
// local audit copy regardless of network outcome.
type Coordinator struct {
	handlers map[string]Handler
	timeout  time.Duration
	log      *zap.SugaredLogger
}

// NewCoordinator creates a coordinator. timeout bounds each handler's
// delivery; zero disables the per-handler timeout.
func NewCoordinator(timeout time.Duration, log *zap.SugaredLogger) *Coordinator {
	return &Coordinator{
		handlers: make(map[string]Handler),
		timeout:  timeout,
		log:      log,
	}
}

// Register adds a handler to the registry. Duplicate names are a
// programming error and rejected.
func (c *Coordinator) Register(h Handler) error {
	name := h.Name()
	if _, exists := c.handlers[name]; exists {
		return errors.Newf("handler %q already registered", name)
	}
	c.handlers[name] = h
	return nil
}

// KnownHandlers returns the registered handler names (unordered).
func (c *Coordinator) KnownHandlers() []string {
	names := make([]string, 0, len(c.handlers))
	for name := range c.handlers {
		names = append(names, name)
	}
	return names
}

// Run dispatches one document to the requested handlers.
//
// Requested names are deduplicated preserving first-occurrence order.
// Any unknown name fails the run before a single handler executes: no
// partial side effects from a mistyped handler list. Each handler runs
// under the per-handler timeout; its error or panic is converted to a
// failed Outcome at this boundary and never aborts sibling handlers.
func (c *Coordinator) Run(ctx context.Context, doc *report.Document, names []string) (*RunResult, error) {
	if len(names) == 0 {
		return nil, errors.New("no handlers requested")
	}

	requested, err := c.resolveHandlers(names)
	if err != nil {
		return nil, err
	}

	result := &RunResult{
		RunID:         uuid.NewString(),
		Period:        doc.Period.String(),
		SkippedEvents: doc.Totals.SkippedEvents,
	}
	key := doc.IdempotenceKey()

	for _, h := range requested {
		outcome := c.deliver(ctx, h, doc, key)
		result.Outcomes = append(result.Outcomes, outcome)

		if c.log != nil {
			if outcome.Status == StatusSuccess {
				c.log.Infow("Handler delivered report",
					"run_id", result.RunID, "handler", h.Name(), "period", result.Period)
			} else {
				c.log.Errorw("Handler failed to deliver report",
					"run_id", result.RunID, "handler", h.Name(), "period", result.Period,
					"error", outcome.Err)
			}
		}
	}

	result.Status = runStatus(result.Outcomes)
	return result, nil
}

// resolveHandlers dedups the requested names in order and resolves each
// against the registry, failing fast on the first unknown name.
func (c *Coordinator) resolveHandlers(names []string) ([]Handler, error) {
	seen := make(map[string]struct{}, len(names))
	var resolved []Handler
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		h, ok := c.handlers[name]
		if !ok {
			return nil, errors.Wrapf(errors.ErrUnknownHandler, "%q", name)
		}
		resolved = append(resolved, h)
	}
	return resolved, nil
}

// deliver invokes one handler under the per-handler timeout, converting
// errors, timeouts, and panics into an Outcome.
func (c *Coordinator) deliver(ctx context.Context, h Handler, doc *report.Document, key string) (outcome Outcome) {
	outcome = Outcome{Handler: h.Name(), Status: StatusSuccess}

	deliverCtx := ctx
	var cancel context.CancelFunc
	if c.timeout > 0 {
		deliverCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			outcome.Status = StatusFailed
			outcome.Err = errors.Newf("handler %q panicked: %v", h.Name(), r)
		}
	}()

	err := h.Deliver(deliverCtx, doc, key)
	if err != nil {
		outcome.Status = StatusFailed
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(deliverCtx.Err(), context.DeadlineExceeded) {
			outcome.Err = errors.Wrapf(errors.ErrHandlerTimeout,
				"handler %q exceeded %s", h.Name(), c.timeout)
		} else {
			outcome.Err = err
		}
	}
	return outcome
}
