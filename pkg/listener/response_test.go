package listener

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"testing"
)

func splitResponse(t *testing.T, raw string) (string, []string, string) {
	t.Helper()
	head, body, ok := strings.Cut(raw, "\r\n\r\n")
	if !ok {
		t.Fatalf("Response has no header terminator: %q", raw)
	}
	lines := strings.Split(head, "\r\n")
	return lines[0], lines[1:], body
}

func TestResponseDefaults(t *testing.T) {
	var out bytes.Buffer
	resp := NewResponse(&out)

	if resp.StatusCode != 200 {
		t.Errorf("Expected default status 200, got %d", resp.StatusCode)
	}
	if resp.Header("content-type") != "text/plain; charset=utf-8" {
		t.Errorf("Expected default content type, got %q", resp.Header("Content-Type"))
	}
	if out.Len() != 0 {
		t.Errorf("Nothing should be written before Close, got %q", out.String())
	}
}

func TestResponseWriteJSONRoundTrip(t *testing.T) {
	var out bytes.Buffer
	resp := NewResponse(&out)

	if err := resp.WriteJSON(map[string]int{"a": 1}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	if err := resp.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	status, headers, body := splitResponse(t, out.String())
	if status != "HTTP/1.1 200 OK" {
		t.Errorf("Unexpected status line %q", status)
	}
	expected := []string{
		"Content-Type: application/json; charset=utf-8",
		"Content-Length: " + strconv.Itoa(len(`{"a":1}`)),
	}
	if strings.Join(headers, "|") != strings.Join(expected, "|") {
		t.Errorf("Expected headers %v, got %v", expected, headers)
	}
	if body != `{"a":1}` {
		t.Errorf("Expected body {\"a\":1}, got %q", body)
	}
}

func TestResponseReasonPhraseAlwaysOK(t *testing.T) {
	for _, code := range []int{200, 201, 404, 500} {
		var out bytes.Buffer
		resp := NewResponse(&out)
		resp.StatusCode = code
		if err := resp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		want := "HTTP/1.1 " + strconv.Itoa(code) + " OK\r\n"
		if !strings.HasPrefix(out.String(), want) {
			t.Errorf("Expected status line %q, got %q", want, out.String())
		}
	}
}

func TestResponseMultipleWrites(t *testing.T) {
	var out bytes.Buffer
	resp := NewResponse(&out)
	_ = resp.Write("héllo")
	_ = resp.Write(", world")
	if err := resp.SetHeader("X-Trace", "abc"); err != nil {
		t.Fatalf("SetHeader failed: %v", err)
	}
	if err := resp.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	_, headers, body := splitResponse(t, out.String())
	if body != "héllo, world" {
		t.Errorf("Unexpected body %q", body)
	}
	wantLength := "Content-Length: " + strconv.Itoa(len("héllo, world"))
	if headers[len(headers)-1] != wantLength {
		t.Errorf("Expected %q as byte count, got %v", wantLength, headers)
	}
	if headers[1] != "X-Trace: abc" {
		t.Errorf("Expected custom header after content type, got %v", headers)
	}
	if resp.Len() != len("héllo, world") {
		t.Errorf("Len should report buffered bytes after Close, got %d", resp.Len())
	}
}

func TestResponseWriteAfterClose(t *testing.T) {
	var out bytes.Buffer
	resp := NewResponse(&out)
	if err := resp.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := resp.Write("late"); !errors.Is(err, ErrAlreadyClosed) {
		t.Errorf("Expected ErrAlreadyClosed from Write, got %v", err)
	}
	if err := resp.WriteJSON(1); !errors.Is(err, ErrAlreadyClosed) {
		t.Errorf("Expected ErrAlreadyClosed from WriteJSON, got %v", err)
	}
	if err := resp.SetHeader("X", "y"); !errors.Is(err, ErrAlreadyClosed) {
		t.Errorf("Expected ErrAlreadyClosed from SetHeader, got %v", err)
	}
	if !resp.Closed() {
		t.Error("Closed should report true")
	}
}

func TestResponseCloseTwice(t *testing.T) {
	var out bytes.Buffer
	resp := NewResponse(&out)
	_ = resp.Write("once")

	if err := resp.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	first := out.String()
	if err := resp.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
	if out.String() != first {
		t.Errorf("Second Close changed output: %q vs %q", first, out.String())
	}
}

func TestResponseWriteJSONUnsupported(t *testing.T) {
	var out bytes.Buffer
	resp := NewResponse(&out)
	if err := resp.WriteJSON(make(chan int)); err == nil {
		t.Error("Expected an encoding error for a channel")
	}
	if resp.Header("Content-Type") != "text/plain; charset=utf-8" {
		t.Errorf("Content type must not change on encoding failure, got %q", resp.Header("Content-Type"))
	}
}

type brokenWriter struct{}

func (brokenWriter) Write(p []byte) (int, error) { return 0, errors.New("broken pipe") }

func TestResponseCloseWriteFailure(t *testing.T) {
	resp := NewResponse(brokenWriter{})
	if err := resp.Close(); err == nil {
		t.Error("Expected Close to report the write failure")
	}
	select {
	case <-resp.done:
	default:
		t.Error("A failed Close must still release the connection")
	}
	if err := resp.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}
}
