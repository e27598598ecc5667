package listener

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultContentType = "text/plain; charset=utf-8"
	jsonContentType    = "application/json; charset=utf-8"
)

// writeDeadliner is implemented by connections that support write timeouts.
type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Response buffers a status code, headers and body for one connection and
// writes them out in a single pass on Close.
//
// The status line always carries the reason phrase "OK", whatever the code.
type Response struct {
	// StatusCode is sent on Close. It defaults to 200.
	StatusCode int

	mu      sync.Mutex
	header  *Header
	body    bytes.Buffer
	out     io.Writer
	timeout time.Duration
	closed  bool

	done     chan struct{}
	doneOnce sync.Once
}

// NewResponse returns a Response that serialises itself to out on Close.
func NewResponse(out io.Writer) *Response {
	return newResponse(out, 0)
}

func newResponse(out io.Writer, timeout time.Duration) *Response {
	header := NewHeader()
	header.Set("Content-Type", defaultContentType)
	return &Response{
		StatusCode: 200,
		header:     header,
		out:        out,
		timeout:    timeout,
		done:       make(chan struct{}),
	}
}

// Header returns the value of the named response header.
func (r *Response) Header(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.header.Get(name)
}

// SetHeader sets a response header. It fails once the response is closed.
func (r *Response) SetHeader(name, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrAlreadyClosed
	}
	r.header.Set(name, value)
	return nil
}

// Len returns the number of body bytes buffered so far.
func (r *Response) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.Len()
}

// Closed reports whether Close has been called.
func (r *Response) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Write appends text to the body.
func (r *Response) Write(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrAlreadyClosed
	}
	r.body.WriteString(text)
	return nil
}

// WriteJSON encodes v as JSON, appends it to the body and switches the
// content type to application/json.
func (r *Response) WriteJSON(v interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrAlreadyClosed
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	r.header.Set("Content-Type", jsonContentType)
	r.body.Write(data)
	return nil
}

// Close writes the status line, headers and buffered body to the connection
// and flushes it. Calls after the first are no-ops.
func (r *Response) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	defer r.release()

	r.header.Set("Content-Length", strconv.Itoa(r.body.Len()))

	var head strings.Builder
	fmt.Fprintf(&head, "HTTP/1.1 %d OK\r\n", r.StatusCode)
	r.header.Each(func(name, value string) {
		head.WriteString(name)
		head.WriteString(": ")
		head.WriteString(value)
		head.WriteString("\r\n")
	})
	head.WriteString("\r\n")

	if d, ok := r.out.(writeDeadliner); ok && r.timeout > 0 {
		if err := d.SetWriteDeadline(time.Now().Add(r.timeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}

	w := bufio.NewWriter(r.out)
	if _, err := w.WriteString(head.String()); err != nil {
		return fmt.Errorf("write headers: %w", err)
	}
	if _, err := w.Write(r.body.Bytes()); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush response: %w", err)
	}
	return nil
}

// release lets the owning connection finish.
func (r *Response) release() {
	r.doneOnce.Do(func() { close(r.done) })
}
