// Package orchestrator drives flush submissions from an operator surface:
// one Form per cache family, each allowing a single submission in flight.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/saiset-co/sai-cache-admin/render"
	"github.com/saiset-co/sai-cache-admin/resolver"
	"github.com/saiset-co/sai-cache-admin/types"
)

type State int32

const (
	StateIdle State = iota
	StateSubmitting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	ProcessingLabel   = "Processing..."
	SubmissionsMetric = "admin_flush_submissions_total"
)

// Flusher sends a validated flush to the admin API.
type Flusher interface {
	Flush(ctx context.Context, req *resolver.FlushRequest) (*types.FlushResult, error)
}

// View is what an operator surface shows for a form at one instant.
type View struct {
	State          State
	ControlEnabled bool
	ControlLabel   string
	Result         *render.DisplayModel
}

type Observer func(View)

type FormOption func(*Form)

func WithLabel(label string) FormOption {
	return func(f *Form) { f.label = label }
}

func WithObserver(observer Observer) FormOption {
	return func(f *Form) { f.observer = observer }
}

func WithMetrics(metrics types.MetricsManager) FormOption {
	return func(f *Form) { f.metrics = metrics }
}

type Form struct {
	family   types.CacheFamily
	label    string
	flusher  Flusher
	logger   types.Logger
	metrics  types.MetricsManager
	observer Observer
	state    atomic.Int32
	view     View
	viewMu   sync.RWMutex
}

func NewForm(family types.CacheFamily, flusher Flusher, logger types.Logger, opts ...FormOption) *Form {
	f := &Form{
		family:  family,
		label:   "Flush " + family.DisplayName(),
		flusher: flusher,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(f)
	}

	f.view = View{State: StateIdle, ControlEnabled: true, ControlLabel: f.label}
	return f
}

func (f *Form) Family() types.CacheFamily {
	return f.family
}

func (f *Form) State() State {
	return State(f.state.Load())
}

func (f *Form) View() View {
	f.viewMu.RLock()
	defer f.viewMu.RUnlock()
	return f.view
}

// Submit dispatches req and blocks until it reaches a terminal state. A call
// made while another is in flight is rejected with ErrSubmissionInFlight
// and sends nothing. Transport failures come back as *types.TransportError
// after the form has moved to StateFailed.
func (f *Form) Submit(ctx context.Context, req *resolver.FlushRequest) (*types.FlushResult, error) {
	if req == nil {
		return nil, types.ErrFlushRequestIsNil
	}
	if req.Family() != f.family {
		return nil, types.Errorf(types.ErrFamilyMismatch, "form is %s, request is %s", f.family, req.Family())
	}

	if !f.begin() {
		f.count("rejected")
		f.logger.Warn("Flush submission rejected, another is in flight", zap.String("cache_type", string(f.family)))
		return nil, types.ErrSubmissionInFlight
	}

	f.publish(View{State: StateSubmitting, ControlEnabled: false, ControlLabel: ProcessingLabel})

	result, err := f.dispatch(ctx, req)
	if err != nil {
		f.finish(StateFailed, render.RenderError(displayMessage(err)))
		f.count("failed")
		f.logger.Warn("Flush submission failed",
			zap.String("cache_type", string(f.family)),
			zap.String("scope", req.Scope().String()),
			zap.Error(err))
		return nil, err
	}

	f.finish(StateSucceeded, render.Render(result, f.family))
	f.count("succeeded")
	f.logger.Info("Flush submission completed",
		zap.String("cache_type", string(f.family)),
		zap.String("scope", req.Scope().String()),
		zap.Bool("success", result.Success),
		zap.Int64("entries_removed", result.EntriesRemoved))

	return result, nil
}

// dispatch runs the flusher and turns a panic into an error, so the form
// always reaches a terminal state.
func (f *Form) dispatch(ctx context.Context, req *resolver.FlushRequest) (result *types.FlushResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = types.Errorf(types.ErrFlushPanicked, "%v", r)
			f.logger.Error("Flush submission panicked",
				zap.String("cache_type", string(f.family)),
				zap.Any("panic", r))
		}
	}()

	return f.flusher.Flush(ctx, req)
}

// begin moves any non-submitting state to Submitting.
func (f *Form) begin() bool {
	for {
		current := f.state.Load()
		if State(current) == StateSubmitting {
			return false
		}
		if f.state.CompareAndSwap(current, int32(StateSubmitting)) {
			return true
		}
	}
}

func (f *Form) finish(state State, model *render.DisplayModel) {
	view := View{State: state, ControlEnabled: true, ControlLabel: f.label, Result: model}

	f.viewMu.Lock()
	f.view = view
	f.state.Store(int32(state))
	f.viewMu.Unlock()

	if f.observer != nil {
		f.observer(view)
	}
}

func (f *Form) publish(view View) {
	f.viewMu.Lock()
	f.view = view
	f.viewMu.Unlock()

	if f.observer != nil {
		f.observer(view)
	}
}

func (f *Form) count(outcome string) {
	if f.metrics == nil {
		return
	}
	f.metrics.Counter(SubmissionsMetric, map[string]string{
		"family":  string(f.family),
		"outcome": outcome,
	}).Inc()
}

func displayMessage(err error) string {
	var transportErr *types.TransportError
	if errors.As(err, &transportErr) {
		return transportErr.DisplayMessage()
	}
	return err.Error()
}
