package capture

import (
	"log/slog"
	"sync"
)

// State is the listening state.
type State int

const (
	Idle State = iota
	Listening
)

func (s State) String() string {
	if s == Listening {
		return "listening"
	}
	return "idle"
}

// Runner is the producer a Controller gates. *Capture satisfies it.
type Runner interface {
	Run(stop <-chan struct{}, out *Queue)
}

// Controller gates a single capture producer. Start and Stop are idempotent;
// Stop only signals and returns immediately. A new execution waits for the
// previous one to exit, so at most one producer runs at a time.
type Controller struct {
	runner Runner
	queue  *Queue
	log    *slog.Logger

	mu    sync.Mutex
	state State
	stop  chan struct{}
	done  chan struct{}
}

func NewController(runner Runner, queue *Queue, log *slog.Logger) *Controller {
	return &Controller{
		runner: runner,
		queue:  queue,
		log:    log.With(slog.String("component", "listener")),
	}
}

// Start begins a listening session. It returns false if already listening.
func (c *Controller) Start() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Listening {
		return false
	}
	prev := c.done
	stop := make(chan struct{})
	done := make(chan struct{})
	c.stop, c.done = stop, done
	c.state = Listening

	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		select {
		case <-stop:
			return
		default:
		}
		c.log.Info("capture started")
		c.runner.Run(stop, c.queue)
		c.log.Info("capture exited")
	}()
	return true
}

// Stop signals the producer to exit after its current cycle. It returns
// false if already idle.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Idle {
		return false
	}
	close(c.stop)
	c.state = Idle
	return true
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Listening() bool {
	return c.State() == Listening
}

// Wait blocks until the most recent execution has exited.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}
