package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

// State is the lifecycle position of a Controller.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateRunning    State = "running"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transitions happen without a new run.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// ErrNoInput is returned when a run is requested without an export.
var ErrNoInput = errors.New("no file selected")

// NoInputMessage is shown for ErrNoInput.
const NoInputMessage = "No file selected."

// NewErrorInfo classifies a run failure for presentation.
func NewErrorInfo(err error) *ErrorInfo {
	var schemaErr *SchemaError
	switch {
	case errors.As(err, &schemaErr):
		lines := schemaErr.Lines()
		return &ErrorInfo{Kind: KindInvalidSchema, Message: lines[0], Lines: lines}
	case errors.Is(err, ErrNoInput):
		return &ErrorInfo{Kind: KindInputRead, Message: NoInputMessage}
	case errors.As(err, new(*InputError)):
		return &ErrorInfo{Kind: KindInputRead, Message: err.Error()}
	default:
		return &ErrorInfo{Kind: KindServiceFatal, Message: err.Error()}
	}
}

// ErrSuperseded is returned by Run when a newer run replaced it before it
// finished. Its result has been discarded.
var ErrSuperseded = errors.New("run superseded by a newer run")

// ErrNoOutput is returned when output is requested from a run that has not
// completed.
var ErrNoOutput = errors.New("no completed run")

// Progress reports how far the current run has got.
type Progress struct {
	RunID   string `json:"run_id"`
	State   State  `json:"state"`
	Total   int    `json:"total"`
	Settled int    `json:"settled"`
}

// Percent returns settled rows as a percentage of dispatched rows.
func (p Progress) Percent() int {
	if p.Total == 0 {
		if p.State.Terminal() {
			return 100
		}
		return 0
	}
	return p.Settled * 100 / p.Total
}

// Snapshot is a point-in-time view of a Controller for presentation.
type Snapshot struct {
	RunID    string       `json:"run_id"`
	State    State        `json:"state"`
	Variant  string       `json:"variant,omitempty"`
	Result   *BatchResult `json:"result,omitempty"`
	Err      *ErrorInfo   `json:"error,omitempty"`
	Progress Progress     `json:"progress"`
}

// Controller drives conversion runs and holds the published result of the
// latest one. Starting a run discards whatever the previous run left behind;
// a run that is still going when a newer one starts has its result ignored.
type Controller struct {
	resolver *Resolver
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	gen       uint64
	stop      chan struct{}
	runID     string
	state     State
	variant   SchemaVariant
	result    *BatchResult
	errInfo   *ErrorInfo
	progress  Progress
	listeners []chan Progress
}

// NewController creates an idle Controller resolving rows against source,
// starting one row every interval.
func NewController(source CardSource, interval time.Duration, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if interval < 0 {
		interval = DefaultDispatchInterval
	}
	return &Controller{
		resolver: NewResolver(source),
		interval: interval,
		logger:   logger,
		state:    StateIdle,
	}
}

// Run starts a run and executes it. See Begin and (*Run).Execute.
func (c *Controller) Run(ctx context.Context, runID string, input io.Reader) (BatchResult, error) {
	return c.Begin(runID).Execute(ctx, input)
}

// Run is one conversion started on a Controller.
type Run struct {
	ID   string
	c    *Controller
	gen  uint64
	stop <-chan struct{}
}

// superseded reports whether a newer run has begun on the controller.
func (r *Run) superseded() bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}

// Begin moves the controller to Validating for a new run, discarding the
// previous run's output and superseding it if it is still going.
func (c *Controller) Begin(runID string) *Run {
	gen, stop := c.begin(runID)
	return &Run{ID: runID, c: c, gen: gen, stop: stop}
}

// Execute converts the export read from input. It blocks until the run
// reaches a terminal state and returns the published result. A nil input
// fails the run with ErrNoInput.
//
// Failed runs return a *SchemaError, *InputError or *ServiceError. Runs
// replaced by a newer one start no further lookups and return ErrSuperseded
// once the lookups already in flight have finished.
func (r *Run) Execute(ctx context.Context, input io.Reader) (BatchResult, error) {
	c, gen, runID := r.c, r.gen, r.ID
	logger := c.logger.With("run_id", runID)

	if input == nil {
		return BatchResult{}, c.fail(gen, ErrNoInput)
	}

	table, err := ParseTable(input)
	if err != nil {
		return BatchResult{}, c.fail(gen, &InputError{Err: err})
	}

	variant, err := DetectSchema(table.Header)
	if err != nil {
		logger.Info("export rejected", "header", table.Header)
		return BatchResult{}, c.fail(gen, err)
	}

	agg := NewAggregator(len(table.Rows))
	queries := make([]NormalizedQuery, len(table.Rows))
	skip := make([]bool, len(table.Rows))
	dispatched := 0
	for i, row := range table.Rows {
		q, ok := Normalize(row, variant)
		if !ok {
			agg.Exclude(i)
			skip[i] = true
			logger.Debug("row excluded", "row", i+1, "category", row.Get(ColCategory))
			continue
		}
		queries[i] = q
		dispatched++
	}

	if !c.transition(gen, func() {
		c.state = StateRunning
		c.variant = variant
		c.progress.State = StateRunning
		c.progress.Total = dispatched
	}) {
		return BatchResult{}, ErrSuperseded
	}
	logger.Info("run started", "variant", variant.String(), "rows", len(table.Rows), "dispatched", dispatched)

	// Superseding the run stops new rows from starting. Lookups already in
	// flight keep ctx and finish on their own.
	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	defer stopDispatch()
	go func() {
		select {
		case <-r.stop:
			stopDispatch()
		case <-dispatchCtx.Done():
		}
	}()

	// Excluded rows keep their slot in the stagger, so row i starts at
	// i*interval whatever its neighbours are.
	err = Dispatch(dispatchCtx, len(table.Rows), c.interval, func(_ context.Context, i int) error {
		if skip[i] {
			return nil
		}
		q := queries[i]
		out := c.resolver.Resolve(ctx, q)

		switch {
		case out.Kind == OutcomeFatal:
			return &ServiceError{Row: i, ID: q.MarketplaceID, Stage: stageOf(out.Err), Err: out.Err}
		case out.Kind == OutcomeResolved && out.Confidence == ConfidenceLow:
			logger.Debug("fallback match", "row", i+1, "id", q.MarketplaceID, "name", out.Card.Name)
		case out.Kind == OutcomeUnmatched && out.Reason == FallbackNotFound && q.Category != SingleCardCategory:
			logger.Warn("fallback miss dropped", "row", i+1, "id", q.MarketplaceID, "category", q.Category)
		case out.Kind == OutcomeUnmatched:
			logger.Debug("row unmatched", "row", i+1, "id", q.MarketplaceID, "reason", out.Reason.String())
		}

		agg.Settle(i, q, out)
		c.settled(gen)
		return nil
	})
	if err != nil {
		if r.superseded() {
			logger.Info("run stopped by a newer run")
			return BatchResult{}, ErrSuperseded
		}
		if !errors.As(err, new(*ServiceError)) {
			err = &ServiceError{Row: -1, Stage: StagePrimary, Err: err}
		}
		logger.Error("run failed", "error", err)
		return BatchResult{}, c.fail(gen, err)
	}

	result := agg.Result()
	result.Variant = variant.String()
	if !c.transition(gen, func() {
		c.state = StateCompleted
		c.result = &result
		c.progress.State = StateCompleted
	}) {
		return BatchResult{}, ErrSuperseded
	}
	logger.Info("run completed",
		"records", len(result.Records),
		"missing", len(result.Missing),
		"excluded", result.Stats.Excluded,
		"dropped", result.Stats.Dropped,
	)
	return result, nil
}

// Snapshot returns the current state and published result.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		RunID:    c.runID,
		State:    c.state,
		Result:   c.result,
		Err:      c.errInfo,
		Progress: c.progress,
	}
	if c.variant != SchemaUnknown {
		snap.Variant = c.variant.String()
	}
	return snap
}

// Subscribe returns a channel of progress updates for the current run. The
// current progress is sent immediately. The channel is closed when the run
// ends or is superseded. Slow readers miss intermediate updates.
func (c *Controller) Subscribe() <-chan Progress {
	ch := make(chan Progress, 10)

	c.mu.Lock()
	defer c.mu.Unlock()

	ch <- c.progress
	if c.state.Terminal() || c.state == StateIdle {
		close(ch)
		return ch
	}
	c.listeners = append(c.listeners, ch)
	return ch
}

// begin moves to Validating for a new run, discarding prior state. The
// returned channel is closed when a newer run begins.
func (c *Controller) begin(runID string) (uint64, <-chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeListeners()
	if c.stop != nil {
		close(c.stop)
	}
	c.stop = make(chan struct{})
	c.gen++
	c.runID = runID
	c.state = StateValidating
	c.variant = SchemaUnknown
	c.result = nil
	c.errInfo = nil
	c.progress = Progress{RunID: runID, State: StateValidating}
	return c.gen, c.stop
}

// transition applies fn if gen is still the current run.
func (c *Controller) transition(gen uint64, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return false
	}
	fn()
	c.notify()
	if c.state.Terminal() {
		c.closeListeners()
	}
	return true
}

func (c *Controller) settled(gen uint64) {
	c.transition(gen, func() { c.progress.Settled++ })
}

// fail moves the run to Failed, clearing any output, and returns err (or
// ErrSuperseded if a newer run has started).
func (c *Controller) fail(gen uint64, err error) error {
	info := NewErrorInfo(err)
	if !c.transition(gen, func() {
		c.state = StateFailed
		c.result = nil
		c.errInfo = info
		c.progress.State = StateFailed
	}) {
		return ErrSuperseded
	}
	return err
}

// notify sends the current progress to listeners without blocking.
// Caller must hold c.mu.
func (c *Controller) notify() {
	for _, ch := range c.listeners {
		select {
		case ch <- c.progress:
		default:
		}
	}
}

// closeListeners closes and forgets all listener channels.
// Caller must hold c.mu.
func (c *Controller) closeListeners() {
	for _, ch := range c.listeners {
		close(ch)
	}
	c.listeners = nil
}
