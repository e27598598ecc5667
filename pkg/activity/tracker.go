package activity

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Status represents the state of a request handled by the application
type Status string

const (
	// StatusProcessing indicates the request is being answered
	StatusProcessing Status = "processing"
	// StatusCompleted indicates the response was flushed
	StatusCompleted Status = "completed"
	// StatusError indicates the request could not be answered
	StatusError Status = "error"
)

// RequestActivity records one request taken from the listener
type RequestActivity struct {
	ID         int64
	Method     string
	Path       string
	Status     Status
	StartTime  time.Time
	EndTime    time.Time
	StatusCode int
	Bytes      int
	Message    string
}

// Tracker observes the requests an application serves
type Tracker interface {
	// Start announces the address the server is listening on
	Start(addr string)
	// StartRequest marks a request as taken from the queue
	StartRequest(id int64, method, path string)
	// CompleteRequest marks a request as answered
	CompleteRequest(id int64, statusCode, bytes int)
	// ErrorRequest marks a request as failed
	ErrorRequest(id int64, message string)
	// Finish prints a summary
	Finish()
}

// Summary holds counters collected by a ConsoleTracker
type Summary struct {
	Served   int
	Failed   int
	InFlight int
	Uptime   time.Duration
}

// ConsoleTracker implements Tracker for console output
type ConsoleTracker struct {
	mu        sync.Mutex
	writer    io.Writer
	useColor  bool
	requests  map[int64]*RequestActivity
	startTime time.Time
	served    int
	failed    int
}

// NewConsoleTracker creates a new console tracker writing to stdout
func NewConsoleTracker() *ConsoleTracker {
	return &ConsoleTracker{
		writer:   os.Stdout,
		useColor: true,
		requests: make(map[int64]*RequestActivity),
	}
}

// WithWriter sets the writer for the console tracker
func (t *ConsoleTracker) WithWriter(writer io.Writer) *ConsoleTracker {
	t.writer = writer
	return t
}

// WithColor enables or disables colored output
func (t *ConsoleTracker) WithColor(useColor bool) *ConsoleTracker {
	t.useColor = useColor
	return t
}

// Start announces the listening address
func (t *ConsoleTracker) Start(addr string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.startTime = time.Now()
	t.served = 0
	t.failed = 0

	fmt.Fprintf(t.writer, "Server started at %s\n", addr)
}

// StartRequest prints the received request line
func (t *ConsoleTracker) StartRequest(id int64, method, path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.requests[id] = &RequestActivity{
		ID:        id,
		Method:    method,
		Path:      path,
		Status:    StatusProcessing,
		StartTime: time.Now(),
	}

	fmt.Fprintf(t.writer, "Received request: %s %s\n", method, t.colorize(color.FgCyan, path))
}

// CompleteRequest prints the status code and size of the response
func (t *ConsoleTracker) CompleteRequest(id int64, statusCode, bytes int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	req := t.finish(id, StatusCompleted)
	req.StatusCode = statusCode
	req.Bytes = bytes
	t.served++

	fg := color.FgGreen
	if statusCode >= 400 {
		fg = color.FgYellow
	}
	fmt.Fprintf(t.writer, "  #%d %s %s -> %s (%d bytes, %s)\n",
		id, req.Method, req.Path, t.colorize(fg, fmt.Sprint(statusCode)), bytes,
		req.EndTime.Sub(req.StartTime).Round(time.Microsecond))
}

// ErrorRequest prints the failure of a request
func (t *ConsoleTracker) ErrorRequest(id int64, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	req := t.finish(id, StatusError)
	req.Message = message
	t.failed++

	fmt.Fprintf(t.writer, "  #%d %s %s -> %s\n", id, req.Method, req.Path, t.colorize(color.FgRed, message))
}

// Finish prints the totals collected since Start
func (t *ConsoleTracker) Finish() {
	s := t.Summary()
	fmt.Fprintf(t.writer, "\nServer stopped after %s\n", s.Uptime.Round(time.Second))
	fmt.Fprintf(t.writer, "Handled %d requests: %d served, %d errors\n", s.Served+s.Failed, s.Served, s.Failed)
}

// Summary returns the current counters
func (t *ConsoleTracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	inFlight := 0
	for _, req := range t.requests {
		if req.Status == StatusProcessing {
			inFlight++
		}
	}

	var uptime time.Duration
	if !t.startTime.IsZero() {
		uptime = time.Since(t.startTime)
	}
	return Summary{
		Served:   t.served,
		Failed:   t.failed,
		InFlight: inFlight,
		Uptime:   uptime,
	}
}

// finish must be called with mu held.
func (t *ConsoleTracker) finish(id int64, status Status) *RequestActivity {
	req, ok := t.requests[id]
	if !ok {
		req = &RequestActivity{ID: id, StartTime: time.Now()}
		t.requests[id] = req
	}
	req.Status = status
	req.EndTime = time.Now()
	return req
}

func (t *ConsoleTracker) colorize(attr color.Attribute, text string) string {
	if !t.useColor {
		return text
	}
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(text)
}
