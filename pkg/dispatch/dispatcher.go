package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/niels/sparrow/pkg/activity"
	"github.com/niels/sparrow/pkg/config"
	"github.com/niels/sparrow/pkg/listener"
)

// StatusUnavailable is sent when a request is dropped before a handler ran.
const StatusUnavailable = 503

// HandlerFunc answers one request. It owns c.Response and must close it
// unless it returns an error, in which case the dispatcher closes it.
type HandlerFunc func(ctx context.Context, c *listener.Context) error

// ResultFunc is called once a request has been answered or has failed
type ResultFunc func(id int64, c *listener.Context, err error)

// Dispatcher runs a handler for each request on a bounded number of goroutines
type Dispatcher struct {
	handler   HandlerFunc
	tracker   activity.Tracker
	onResult  ResultFunc
	semaphore chan struct{}
	wg        sync.WaitGroup
	nextID    int64
}

// NewDispatcher creates a dispatcher limited to cfg.Concurrency.MaxTasks handlers
func NewDispatcher(cfg *config.Config, handler HandlerFunc) *Dispatcher {
	maxTasks := cfg.Concurrency.MaxTasks
	if maxTasks <= 0 {
		maxTasks = 1
	}
	return &Dispatcher{
		handler:   handler,
		semaphore: make(chan struct{}, maxTasks),
	}
}

// WithTracker sets an activity tracker
func (d *Dispatcher) WithTracker(tracker activity.Tracker) *Dispatcher {
	d.tracker = tracker
	return d
}

// WithResultCallback sets a callback invoked after every request
func (d *Dispatcher) WithResultCallback(fn ResultFunc) *Dispatcher {
	d.onResult = fn
	return d
}

// Dispatch waits for a free slot and runs the handler for c in its own
// goroutine. If ctx ends before a slot frees up the request is answered
// with 503 and the context error is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, c *listener.Context) error {
	id := atomic.AddInt64(&d.nextID, 1)
	if d.tracker != nil {
		d.tracker.StartRequest(id, c.Request.HTTPMethod(), c.Request.Path())
	}

	select {
	case d.semaphore <- struct{}{}:
	case <-ctx.Done():
		c.Response.StatusCode = StatusUnavailable
		_ = c.Response.Close()
		d.finish(id, c, ctx.Err())
		return ctx.Err()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() { <-d.semaphore }()
		d.finish(id, c, d.run(ctx, c))
	}()
	return nil
}

// Wait blocks until every dispatched handler has returned
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, c *listener.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
		if err != nil && !c.Response.Closed() {
			c.Response.StatusCode = 500
			_ = c.Response.Close()
		}
	}()

	if err := d.handler(ctx, c); err != nil {
		return err
	}
	if !c.Response.Closed() {
		return c.Response.Close()
	}
	return nil
}

func (d *Dispatcher) finish(id int64, c *listener.Context, err error) {
	if d.tracker != nil {
		if err != nil {
			d.tracker.ErrorRequest(id, err.Error())
		} else {
			d.tracker.CompleteRequest(id, c.Response.StatusCode, c.Response.Len())
		}
	}
	if d.onResult != nil {
		d.onResult(id, c, err)
	}
}
