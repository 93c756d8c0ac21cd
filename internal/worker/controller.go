package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// State is a phase in the controller's shutdown state machine.
type State int32

const (
	StateRunning State = iota
	StateDraining
	StateFlushing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateFlushing:
		return "flushing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Controller owns every consumer, the shared task pool, and the offset
// coordinator, and drives the Running -> Draining -> Flushing -> Stopped
// shutdown sequence, matching the source Rust worker's shutdown.rs +
// consumer_shutdown.rs sequencing.
type Controller struct {
	consumers []*Consumer
	pool      *Pool
	offsets   *OffsetCoordinator
	log       *zap.Logger

	commitInterval time.Duration
	drainDeadline  time.Duration
	drainPoll      time.Duration

	state atomic.Int32
}

// ControllerConfig bundles the tunables Controller needs beyond its
// component references.
type ControllerConfig struct {
	CommitInterval time.Duration
	DrainDeadline  time.Duration
	DrainPoll      time.Duration
}

// NewController builds a Controller. consumers and their consumer-name/topic
// directory are expected to have been built once at startup and never
// mutated afterward, so commits always route through a consumer actually
// subscribed to the topic it's committing.
func NewController(consumers []*Consumer, pool *Pool, offsets *OffsetCoordinator, log *zap.Logger, cfg ControllerConfig) *Controller {
	c := &Controller{
		consumers:      consumers,
		pool:           pool,
		offsets:        offsets,
		log:            log,
		commitInterval: cfg.CommitInterval,
		drainDeadline:  cfg.DrainDeadline,
		drainPoll:      cfg.DrainPoll,
	}
	c.state.Store(int32(StateRunning))
	return c
}

// State reports the controller's current shutdown phase.
func (c *Controller) State() State { return State(c.state.Load()) }

// Run starts the offset-commit ticker and every consumer's poll loop,
// blocking until ctx is canceled.
func (c *Controller) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.offsets.Run(ctx, c.commitInterval)
	}()

	for _, cons := range c.consumers {
		cons := cons
		wg.Add(1)
		go func() {
			defer wg.Done()
			cons.Run(ctx)
		}()
	}

	wg.Wait()
}

// Shutdown drives the Draining -> Flushing -> Stopped sequence. It should
// be called once the context passed to Run has already been canceled (or
// is about to be), so consumer poll loops are winding down concurrently
// with this method's draining wait.
func (c *Controller) Shutdown(ctx context.Context) {
	c.state.Store(int32(StateDraining))
	c.pool.StopAccepting()
	for _, cons := range c.consumers {
		cons.PauseFetching()
	}

	drained := c.pool.Drain(c.drainDeadline, c.drainPoll, func(inFlight int) {
		c.log.Info("waiting for in-flight indexing tasks", zap.Int("in_flight", inFlight))
	})
	if !drained {
		c.log.Warn("drain deadline exceeded, flushing offsets anyway",
			zap.Int("in_flight", c.pool.InFlight()))
	}

	c.state.Store(int32(StateFlushing))
	c.offsets.Flush(ctx)

	for _, cons := range c.consumers {
		cons.Close()
	}
	c.state.Store(int32(StateStopped))
}
