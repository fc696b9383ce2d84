// Package automation drives the background traffic loop: one worker per
// standard event name, each ticking on its own configurable cadence and
// pushing a freshly built record through the dispatch fanout.
package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/jdgallegos/beaconshop-backend/internal/dispatch"
	"github.com/jdgallegos/beaconshop-backend/internal/eventlog"
	"github.com/jdgallegos/beaconshop-backend/internal/events"
	"github.com/jdgallegos/beaconshop-backend/pkg/db/models"
	"github.com/jdgallegos/beaconshop-backend/pkg/enums"
	"github.com/jdgallegos/beaconshop-backend/pkg/errors"
	"github.com/jdgallegos/beaconshop-backend/pkg/logger"
	"github.com/jdgallegos/beaconshop-backend/pkg/metrics"
)

type recordBuilder interface {
	Build(ctx context.Context, name enums.EventName) events.Record
}

type sender interface {
	Send(ctx context.Context, rec events.Record, rc dispatch.RequestContext) (dispatch.Outcome, dispatch.Outcome)
}

type intervalSource interface {
	IntervalFor(ctx context.Context, name enums.EventName) time.Duration
}

type logAppender interface {
	Append(ctx context.Context, entry *models.EventLogEntry, stats *eventlog.AppendStats) (bool, error)
}

// SchedulerParams configure the automation scheduler.
type SchedulerParams struct {
	Logger         *logger.Logger
	Builder        recordBuilder
	Dispatcher     sender
	Intervals      intervalSource
	EventLog       logAppender
	Metrics        *metrics.DispatchMetrics
	Lock           Lock
	MaxConcurrency int
	StopTimeout    time.Duration
}

// Scheduler owns the automation worker pool. Start and Stop are safe to call
// from concurrent admin requests.
type Scheduler struct {
	logg        *logger.Logger
	builder     recordBuilder
	dispatcher  sender
	intervals   intervalSource
	eventLog    logAppender
	metrics     *metrics.DispatchMetrics
	lock        Lock
	maxWorkers  int
	stopTimeout time.Duration

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	cancel    context.CancelFunc
	wg        *sync.WaitGroup
	names     []enums.EventName
}

// EventStatus reports one worker's cadence.
type EventStatus struct {
	Name     enums.EventName `json:"name"`
	Interval string          `json:"interval"`
}

// Status is the admin-facing snapshot of the scheduler.
type Status struct {
	Running   bool          `json:"running"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
	Workers   int           `json:"workers"`
	Events    []EventStatus `json:"events"`
}

// NewScheduler validates the wiring and builds a scheduler.
func NewScheduler(params SchedulerParams) (*Scheduler, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Builder == nil {
		return nil, fmt.Errorf("record builder required")
	}
	if params.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if params.Intervals == nil {
		return nil, fmt.Errorf("interval source required")
	}
	if params.EventLog == nil {
		return nil, fmt.Errorf("event log required")
	}
	if params.Lock == nil {
		params.Lock = NewLocalLock()
	}
	if params.MaxConcurrency <= 0 {
		params.MaxConcurrency = 10
	}
	if params.StopTimeout <= 0 {
		params.StopTimeout = 5 * time.Second
	}
	return &Scheduler{
		logg:        params.Logger,
		builder:     params.Builder,
		dispatcher:  params.Dispatcher,
		intervals:   params.Intervals,
		eventLog:    params.EventLog,
		metrics:     params.Metrics,
		lock:        params.Lock,
		maxWorkers:  params.MaxConcurrency,
		stopTimeout: params.StopTimeout,
	}, nil
}

// SetMaxWorkers adjusts the worker cap for the next Start. Calls while
// running are ignored; the live pool keeps its size until restarted.
func (s *Scheduler) SetMaxWorkers(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || n < 1 {
		return
	}
	s.maxWorkers = n
}

// Start spins up one worker per standard event name. Calling Start while the
// scheduler is already running is a no-op, not an error.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	acquired, err := s.lock.Acquire(ctx)
	if err != nil {
		return errors.Wrap(errors.CodeDependency, err, "automation lease unavailable")
	}
	if !acquired {
		return errors.New(errors.CodeConflict, "another automation instance holds the lease")
	}

	names := enums.StandardEventNames()
	if len(names) > s.maxWorkers {
		names = names[:s.maxWorkers]
	}

	// Workers outlive the admin request that started them.
	runCtx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	for _, name := range names {
		wg.Add(1)
		go s.runWorker(runCtx, wg, name)
	}
	if interval := s.lock.RenewInterval(); interval > 0 {
		wg.Add(1)
		go s.renewLease(runCtx, cancel, wg, interval)
	}

	s.running = true
	s.startedAt = time.Now()
	s.cancel = cancel
	s.wg = wg
	s.names = names
	s.metrics.SetActiveWorkers(len(names))
	s.logg.Info(s.logg.WithField(ctx, "workers", len(names)), "automation started")
	return nil
}

// Stop cancels the workers and waits for them to drain, bounded by the stop
// timeout. Stopping an idle scheduler is a no-op.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}

	s.cancel()
	done := make(chan struct{})
	go func(wg *sync.WaitGroup) {
		wg.Wait()
		close(done)
	}(s.wg)

	var stopErr error
	select {
	case <-done:
	case <-time.After(s.stopTimeout):
		stopErr = errors.New(errors.CodeInternal, "automation workers did not stop in time")
	}

	if err := s.lock.Release(ctx); err != nil {
		stopErr = multierr.Append(stopErr, fmt.Errorf("releasing automation lease: %w", err))
	}

	s.running = false
	s.cancel = nil
	s.wg = nil
	s.names = nil
	s.metrics.SetActiveWorkers(0)
	if stopErr != nil {
		s.logg.Error(ctx, "automation stop incomplete", stopErr)
		return stopErr
	}
	s.logg.Info(ctx, "automation stopped")
	return nil
}

// Running reports whether the worker pool is live.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status snapshots the scheduler state with current per-event intervals.
func (s *Scheduler) Status(ctx context.Context) Status {
	s.mu.Lock()
	running := s.running
	startedAt := s.startedAt
	names := s.names
	s.mu.Unlock()

	if len(names) == 0 {
		names = enums.StandardEventNames()
	}
	events := make([]EventStatus, 0, len(names))
	for _, name := range names {
		events = append(events, EventStatus{
			Name:     name,
			Interval: s.intervals.IntervalFor(ctx, name).String(),
		})
	}

	status := Status{Running: running, Events: events}
	if running {
		status.StartedAt = &startedAt
		status.Workers = len(names)
	}
	return status
}

// runWorker ticks one event name until the run context is canceled. The
// interval is re-read every cycle so admin changes apply on the next tick.
func (s *Scheduler) runWorker(ctx context.Context, wg *sync.WaitGroup, name enums.EventName) {
	defer wg.Done()
	workerCtx := s.logg.WithField(ctx, "event_name", name.String())
	s.logg.Info(workerCtx, "automation worker started")

	timer := time.NewTimer(s.intervals.IntervalFor(ctx, name))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(workerCtx, "automation worker stopped")
			return
		case <-timer.C:
			s.tick(workerCtx, name)
			timer.Reset(s.intervals.IntervalFor(ctx, name))
		}
	}
}

// renewLease keeps the distributed lease alive for the whole run. Losing
// the lease means another process may already be scheduling, so this holder
// fences itself off by cancelling its workers. Transient renew errors are
// logged and retried: while the store is unreachable nobody else can
// acquire the lease either.
func (s *Scheduler) renewLease(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup, interval time.Duration) {
	defer wg.Done()
	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		held, err := s.lock.Renew(ctx)
		if err != nil {
			s.logg.Error(ctx, "automation lease renew failed", err)
		} else if !held {
			err := fmt.Errorf("automation lease lost")
			s.logg.Error(ctx, "automation lease lost, fencing workers", err)
			s.recordError(ctx, "", err)
			cancel()
			return
		}
		timer.Reset(interval)
	}
}

// tick builds and dispatches one record. Panics and failures are contained
// here so a bad cycle never takes the worker down.
func (s *Scheduler) tick(ctx context.Context, name enums.EventName) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("automation tick panic: %v", r)
			s.logg.Error(ctx, "automation tick panicked", err)
			s.recordError(ctx, name, err)
		}
	}()

	rec := s.builder.Build(ctx, name)
	tickCtx := s.logg.WithEventID(ctx, rec.EventID)
	pixel, capiOut := s.dispatcher.Send(tickCtx, rec, dispatch.RequestContext{})
	if pixel.Status.IsFailure() || capiOut.Status.IsFailure() {
		s.logg.Warn(s.logg.WithFields(tickCtx, map[string]any{
			"pixel_status": pixel.Status.String(),
			"capi_status":  capiOut.Status.String(),
		}), "automation tick had a failing channel")
	}
}

func (s *Scheduler) recordError(ctx context.Context, name enums.EventName, cause error) {
	entry := &models.EventLogEntry{
		Channel:   enums.ChannelApp,
		EventName: name,
		Status:    enums.StatusError,
		Error:     "automation_error: " + cause.Error(),
	}
	if _, err := s.eventLog.Append(ctx, entry, nil); err != nil {
		s.logg.Error(ctx, "failed to record automation error", err)
	}
}
