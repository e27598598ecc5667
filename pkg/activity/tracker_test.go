package activity

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
)

func TestConsoleTrackerOutput(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewConsoleTracker().WithWriter(&buf).WithColor(false)

	tracker.Start("http://localhost:11231/")
	tracker.StartRequest(1, "GET", "/hello")
	tracker.CompleteRequest(1, 200, 42)
	tracker.StartRequest(2, "POST", "/broken")
	tracker.ErrorRequest(2, "write: broken pipe")
	tracker.Finish()

	output := buf.String()
	expected := []string{
		"Server started at http://localhost:11231/",
		"Received request: GET /hello",
		"#1 GET /hello -> 200 (42 bytes",
		"Received request: POST /broken",
		"#2 POST /broken -> write: broken pipe",
		"Handled 2 requests: 1 served, 1 errors",
	}
	for _, want := range expected {
		if !strings.Contains(output, want) {
			t.Errorf("Output missing %q:\n%s", want, output)
		}
	}
}

func TestConsoleTrackerColor(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewConsoleTracker().WithWriter(&buf).WithColor(true)

	tracker.StartRequest(1, "GET", "/colored")
	if !strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("Expected ANSI escape codes in colored output, got %q", buf.String())
	}
}

func TestConsoleTrackerSummary(t *testing.T) {
	tracker := NewConsoleTracker().WithWriter(io.Discard)
	tracker.Start("127.0.0.1:0")

	tracker.StartRequest(1, "GET", "/a")
	tracker.StartRequest(2, "GET", "/b")
	tracker.StartRequest(3, "GET", "/c")
	tracker.CompleteRequest(1, 200, 10)
	tracker.ErrorRequest(2, "timeout")

	s := tracker.Summary()
	if s.Served != 1 || s.Failed != 1 || s.InFlight != 1 {
		t.Errorf("Unexpected summary %+v", s)
	}
}

func TestConsoleTrackerUnknownRequest(t *testing.T) {
	tracker := NewConsoleTracker().WithWriter(io.Discard)
	tracker.CompleteRequest(99, 200, 0)

	if s := tracker.Summary(); s.Served != 1 {
		t.Errorf("Completing an untracked request should still count, got %+v", s)
	}
}

func TestConsoleTrackerConcurrent(t *testing.T) {
	tracker := NewConsoleTracker().WithWriter(io.Discard)
	tracker.Start("127.0.0.1:0")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			tracker.StartRequest(id, "GET", fmt.Sprintf("/%d", id))
			if id%2 == 0 {
				tracker.CompleteRequest(id, 200, 1)
			} else {
				tracker.ErrorRequest(id, "failed")
			}
		}(int64(i))
	}
	wg.Wait()

	s := tracker.Summary()
	if s.Served != 10 || s.Failed != 10 || s.InFlight != 0 {
		t.Errorf("Unexpected summary %+v", s)
	}
}
