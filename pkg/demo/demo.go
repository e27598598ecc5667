// Package demo is the sample application served by the sparrow binary. It
// answers every request with a small JSON document.
package demo

import (
	"context"
	"errors"
	"time"

	"github.com/niels/sparrow/pkg/config"
	"github.com/niels/sparrow/pkg/listener"
	"github.com/niels/sparrow/pkg/version"
)

// Payload is the document returned for every request
type Payload struct {
	Name        string
	Version     string
	Description string
	Timestamp   time.Time
}

// Handler answers requests with a Payload built from the demo configuration
type Handler struct {
	cfg config.DemoConfig
	now func() time.Time
}

// NewHandler creates a handler for the given payload settings
func NewHandler(cfg config.DemoConfig) *Handler {
	return &Handler{
		cfg: cfg,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Handle writes the payload with status 200 and closes the response
func (h *Handler) Handle(ctx context.Context, c *listener.Context) error {
	c.Response.StatusCode = 200
	if err := c.Response.SetHeader("Server", version.ServerHeader()); err != nil {
		return err
	}
	return WriteJSONAndClose(c.Response, h.payload())
}

func (h *Handler) payload() Payload {
	return Payload{
		Name:        h.cfg.Name,
		Version:     h.cfg.Version,
		Description: h.cfg.Description,
		Timestamp:   h.now(),
	}
}

// WriteText appends text without closing the response
func WriteText(res *listener.Response, text string) error {
	return res.Write(text)
}

// WriteJSONAndClose encodes v and flushes the response
func WriteJSONAndClose(res *listener.Response, v interface{}) error {
	if err := res.WriteJSON(v); err != nil {
		return err
	}
	return res.Close()
}

// Dispatcher hands a request over to whatever answers it
type Dispatcher interface {
	Dispatch(ctx context.Context, c *listener.Context) error
}

// Source is the part of the listener the serve loop needs
type Source interface {
	IsListening() bool
	GetNextRequest(ctx context.Context) (*listener.Context, error)
}

// Serve pulls requests from src while it is listening and passes each one to
// d. It returns nil when ctx ends or the request stream is terminated.
func Serve(ctx context.Context, src Source, d Dispatcher) error {
	for src.IsListening() {
		c, err := src.GetNextRequest(ctx)
		if err != nil {
			if errors.Is(err, listener.ErrStreamTerminated) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := d.Dispatch(ctx, c); err != nil && ctx.Err() == nil {
			return err
		}
	}
	return nil
}
