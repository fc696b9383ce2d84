package automation

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jdgallegos/beaconshop-backend/internal/dispatch"
	"github.com/jdgallegos/beaconshop-backend/internal/eventlog"
	"github.com/jdgallegos/beaconshop-backend/internal/events"
	"github.com/jdgallegos/beaconshop-backend/pkg/db/models"
	"github.com/jdgallegos/beaconshop-backend/pkg/enums"
	"github.com/jdgallegos/beaconshop-backend/pkg/logger"
)

type stubBuilder struct{}

func (stubBuilder) Build(_ context.Context, name enums.EventName) events.Record {
	return events.Record{Name: name, EventID: "evt-" + name.String()}
}

type countingSender struct {
	sends atomic.Int64
	panic bool
}

func (c *countingSender) Send(context.Context, events.Record, dispatch.RequestContext) (dispatch.Outcome, dispatch.Outcome) {
	if c.panic {
		panic("boom")
	}
	c.sends.Add(1)
	return dispatch.Outcome{Status: enums.StatusOK}, dispatch.Outcome{Status: enums.StatusOK}
}

type fixedIntervals struct {
	interval time.Duration
}

func (f fixedIntervals) IntervalFor(context.Context, enums.EventName) time.Duration {
	return f.interval
}

type memoryLog struct {
	mu      sync.Mutex
	entries []*models.EventLogEntry
}

func (m *memoryLog) Append(_ context.Context, entry *models.EventLogEntry, _ *eventlog.AppendStats) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return false, nil
}

func newTestScheduler(t *testing.T, sender *countingSender, interval time.Duration) (*Scheduler, *memoryLog) {
	t.Helper()

	log := &memoryLog{}
	sched, err := NewScheduler(SchedulerParams{
		Logger:      logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Builder:     stubBuilder{},
		Dispatcher:  sender,
		Intervals:   fixedIntervals{interval: interval},
		EventLog:    log,
		StopTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return sched, log
}

func TestStartStopLifecycle(t *testing.T) {
	sender := &countingSender{}
	sched, _ := newTestScheduler(t, sender, 10*time.Millisecond)
	ctx := context.Background()

	if sched.Running() {
		t.Fatal("fresh scheduler must be idle")
	}
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !sched.Running() {
		t.Fatal("scheduler must report running")
	}

	// Give the workers a few ticks.
	time.Sleep(100 * time.Millisecond)

	if err := sched.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if sched.Running() {
		t.Fatal("scheduler must report stopped")
	}
	if sender.sends.Load() == 0 {
		t.Fatal("workers should have dispatched at least one record")
	}

	// No further sends after stop.
	settled := sender.sends.Load()
	time.Sleep(50 * time.Millisecond)
	if sender.sends.Load() != settled {
		t.Fatal("workers kept sending after stop")
	}
}

func TestStartIsIdempotent(t *testing.T) {
	sender := &countingSender{}
	sched, _ := newTestScheduler(t, sender, time.Hour)
	ctx := context.Background()

	if err := sched.Start(ctx); err != nil {
		t.Fatalf("first start: %v", err)
	}
	defer sched.Stop(ctx)

	if err := sched.Start(ctx); err != nil {
		t.Fatalf("second start must be a no-op: %v", err)
	}

	status := sched.Status(ctx)
	if status.Workers != len(enums.StandardEventNames()) {
		t.Fatalf("workers = %d", status.Workers)
	}
}

func TestStopIdleSchedulerIsNoOp(t *testing.T) {
	sched, _ := newTestScheduler(t, &countingSender{}, time.Hour)
	if err := sched.Stop(context.Background()); err != nil {
		t.Fatalf("stop on idle scheduler: %v", err)
	}
}

func TestLocalLockPreventsSecondInstance(t *testing.T) {
	lock := NewLocalLock()
	ctx := context.Background()

	ok, err := lock.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	ok, err = lock.Acquire(ctx)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatal("second acquire must fail while held")
	}

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, _ = lock.Acquire(ctx)
	if !ok {
		t.Fatal("acquire after release must succeed")
	}
}

func TestSchedulersShareLock(t *testing.T) {
	lock := NewLocalLock()
	ctx := context.Background()

	mk := func() *Scheduler {
		sched, err := NewScheduler(SchedulerParams{
			Logger:      logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
			Builder:     stubBuilder{},
			Dispatcher:  &countingSender{},
			Intervals:   fixedIntervals{interval: time.Hour},
			EventLog:    &memoryLog{},
			Lock:        lock,
			StopTimeout: time.Second,
		})
		if err != nil {
			t.Fatalf("new scheduler: %v", err)
		}
		return sched
	}

	first := mk()
	second := mk()

	if err := first.Start(ctx); err != nil {
		t.Fatalf("first start: %v", err)
	}
	defer first.Stop(ctx)

	if err := second.Start(ctx); err == nil {
		second.Stop(ctx)
		t.Fatal("second scheduler must fail to acquire the lease")
	}
}

func TestTickPanicIsContained(t *testing.T) {
	sender := &countingSender{panic: true}
	sched, log := newTestScheduler(t, sender, 10*time.Millisecond)
	ctx := context.Background()

	if err := sched.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(60 * time.Millisecond)

	if err := sched.Stop(ctx); err != nil {
		t.Fatalf("panicking ticks must not wedge the stop: %v", err)
	}

	log.mu.Lock()
	defer log.mu.Unlock()
	if len(log.entries) == 0 {
		t.Fatal("panics must be recorded in the event log")
	}
	for _, entry := range log.entries {
		if entry.Channel != enums.ChannelApp || entry.Status != enums.StatusError {
			t.Fatalf("unexpected entry %+v", entry)
		}
	}
}

func TestStatusReportsIntervals(t *testing.T) {
	sched, _ := newTestScheduler(t, &countingSender{}, 750*time.Millisecond)

	status := sched.Status(context.Background())
	if status.Running {
		t.Fatal("idle scheduler must not report running")
	}
	if len(status.Events) != len(enums.StandardEventNames()) {
		t.Fatalf("events = %d", len(status.Events))
	}
	for _, ev := range status.Events {
		if ev.Interval != "750ms" {
			t.Fatalf("interval = %q", ev.Interval)
		}
	}
}

func TestSetMaxWorkersCapsThePool(t *testing.T) {
	sched, _ := newTestScheduler(t, &countingSender{}, time.Hour)
	ctx := context.Background()

	sched.SetMaxWorkers(2)
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sched.Stop(ctx)

	if got := sched.Status(ctx).Workers; got != 2 {
		t.Fatalf("workers = %d", got)
	}

	// Resizing a live pool is ignored until the next start.
	sched.SetMaxWorkers(5)
	if got := sched.Status(ctx).Workers; got != 2 {
		t.Fatalf("workers after live resize = %d", got)
	}

	sched.SetMaxWorkers(0)
	if err := sched.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer sched.Stop(ctx)
	if got := sched.Status(ctx).Workers; got != 2 {
		t.Fatalf("zero must be ignored, workers = %d", got)
	}
}
