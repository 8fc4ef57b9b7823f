// Package poller keeps a dashboard's view of the flush metrics current by
// fetching a snapshot on a fixed interval, at startup and on demand.
package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-cache-admin/types"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

const (
	DefaultInterval     = 30 * time.Second
	DefaultFetchTimeout = 10 * time.Second
)

type MetricsFetcher interface {
	FetchMetrics(ctx context.Context) (*types.MetricsSnapshot, error)
}

// Observer is called after every applied tick with the new display state.
type Observer func(DisplayState)

type Poller struct {
	parent          context.Context
	runMu           sync.Mutex
	ctx             context.Context
	cancel          context.CancelFunc
	logger          types.Logger
	fetcher         MetricsFetcher
	scheduled       bool
	interval        time.Duration
	fetchTimeout    time.Duration
	shutdownTimeout time.Duration
	cron            *cron.Cron
	state           atomic.Value
	sequence        atomic.Uint64
	display         DisplayState
	displayMu       sync.RWMutex
	observer        Observer
	inflight        sync.WaitGroup
}

func NewPoller(ctx context.Context, logger types.Logger, fetcher MetricsFetcher, config *types.PollerConfig, observer Observer) *Poller {
	interval := DefaultInterval
	fetchTimeout := DefaultFetchTimeout
	scheduled := true
	if config != nil {
		scheduled = config.Enabled
		if config.Interval > 0 {
			interval = config.Interval
		}
		if config.FetchTimeout > 0 {
			fetchTimeout = config.FetchTimeout
		}
	}

	p := &Poller{
		parent:          ctx,
		ctx:             ctx,
		logger:          logger,
		fetcher:         fetcher,
		scheduled:       scheduled,
		interval:        interval,
		fetchTimeout:    fetchTimeout,
		shutdownTimeout: 5 * time.Second,
		observer:        observer,
	}

	p.state.Store(StateStopped)

	return p
}

// Start schedules the periodic tick and fires the first one immediately.
// With polling disabled only the first tick runs; Refresh still works.
func (p *Poller) Start() error {
	if !p.transitionState(StateStopped, StateStarting) {
		return types.ErrPollerIsRunning
	}

	p.runMu.Lock()
	p.ctx, p.cancel = context.WithCancel(p.parent)
	p.cron = cron.New(cron.WithChain(cron.Recover(cronLogger{logger: p.logger})))
	if p.scheduled {
		p.cron.Schedule(cron.Every(p.interval), cron.FuncJob(func() {
			p.tick()
		}))
	}
	p.cron.Start()
	p.runMu.Unlock()

	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		p.tick()
	}()

	p.setState(StateRunning)
	p.logger.Info("Metrics poller started",
		zap.Duration("interval", p.interval),
		zap.Bool("scheduled", p.scheduled))

	return nil
}

// Stop removes the schedule and cancels any fetch still in flight.
func (p *Poller) Stop() error {
	if !p.transitionState(StateRunning, StateStopping) {
		return types.ErrPollerNotRunning
	}

	defer p.setState(StateStopped)

	p.runMu.Lock()
	stopCtx := p.cron.Stop()
	p.cancel()
	p.ctx = p.parent
	p.runMu.Unlock()

	select {
	case <-stopCtx.Done():
	case <-time.After(p.shutdownTimeout):
		p.logger.Warn("Metrics poller stop timeout, a tick may still be running")
	}
	p.inflight.Wait()

	p.logger.Info("Metrics poller stopped")
	return nil
}

func (p *Poller) IsRunning() bool {
	return p.getState() == StateRunning
}

// Refresh runs one tick now and returns the resulting display state.
func (p *Poller) Refresh() DisplayState {
	p.tick()
	return p.Display()
}

func (p *Poller) Display() DisplayState {
	p.displayMu.RLock()
	defer p.displayMu.RUnlock()
	return p.display
}

func (p *Poller) tick() {
	seq := p.sequence.Add(1)

	p.runMu.Lock()
	runCtx := p.ctx
	p.runMu.Unlock()

	ctx, cancel := context.WithTimeout(runCtx, p.fetchTimeout)
	defer cancel()

	snapshot, err := p.fetcher.FetchMetrics(ctx)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = types.WrapError(types.ErrPollerFetchTimeout, err.Error())
	}

	p.apply(seq, snapshot, err)
}

// apply folds one tick's outcome into the display state unless a later
// tick has already been applied.
func (p *Poller) apply(seq uint64, snapshot *types.MetricsSnapshot, err error) {
	p.displayMu.Lock()

	if seq <= p.display.Sequence {
		p.displayMu.Unlock()
		p.logger.Debug("Dropping stale metrics tick", zap.Uint64("sequence", seq))
		return
	}

	p.display.Sequence = seq
	if err != nil {
		p.display.MetricsVisible = false
		p.display.ErrorVisible = true
		p.display.ErrorMessage = errorMessage(err)
	} else {
		p.display.Snapshot = snapshot
		p.display.MetricsVisible = true
		p.display.ErrorVisible = false
		p.display.ErrorMessage = ""
		p.display.UpdatedAt = time.Now()
	}
	display := p.display

	p.displayMu.Unlock()

	if err != nil {
		p.logger.Warn("Failed to fetch cache flush metrics", zap.Uint64("sequence", seq), zap.Error(err))
	}

	if p.observer != nil {
		p.observer(display)
	}
}

func (p *Poller) getState() State {
	return p.state.Load().(State)
}

func (p *Poller) setState(newState State) {
	p.state.Store(newState)
}

func (p *Poller) transitionState(from, to State) bool {
	return p.state.CompareAndSwap(from, to)
}

func errorMessage(err error) string {
	var transportErr *types.TransportError
	if errors.As(err, &transportErr) {
		return transportErr.DisplayMessage()
	}
	return err.Error()
}
