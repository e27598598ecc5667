package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/niels/sparrow/pkg/version"
)

func executeCommand(ctx context.Context, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root := NewRootCmd()
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return buf.String(), err
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to reserve a port: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestVersionFlag(t *testing.T) {
	out, err := executeCommand(context.Background(), "--version")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out, version.AppName) || !strings.Contains(out, version.Version) {
		t.Errorf("Expected version information, got: %s", out)
	}
}

func TestHelpFlag(t *testing.T) {
	out, err := executeCommand(context.Background(), "--help")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for _, flag := range []string{"--prefix", "--config", "--dump", "--log-exchange", "--no-color"} {
		if !strings.Contains(out, flag) {
			t.Errorf("Help output should mention %s, got: %s", flag, out)
		}
	}
}

func TestInvalidPrefix(t *testing.T) {
	_, err := executeCommand(context.Background(), "--prefix", "not a prefix")
	if err == nil {
		t.Fatal("Expected an error for an invalid prefix")
	}
	if !strings.Contains(err.Error(), "invalid prefix") {
		t.Errorf("Expected invalid prefix error, got: %v", err)
	}
}

func TestHostnamePrefixFailsToStart(t *testing.T) {
	_, err := executeCommand(context.Background(), "--prefix", "http://example.com:8080/")
	if err == nil {
		t.Fatal("Expected an error for a prefix that is not bound to an IP address")
	}
	if !strings.Contains(err.Error(), "failed to start listener") {
		t.Errorf("Expected start failure, got: %v", err)
	}
}

func TestServeRequest(t *testing.T) {
	port := freePort(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := executeCommand(ctx, "--no-color", "--prefix", fmt.Sprintf("http://127.0.0.1:%d/", port))
		done <- result{out, err}
	}()

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	var conn net.Conn
	var err error
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		conn, err = net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Server never came up: %v", err)
	}

	if _, err := io.WriteString(conn, "GET /hello HTTP/1.1\r\nHost: localhost\r\n\r\n"); err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	raw, err := io.ReadAll(conn)
	conn.Close()
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	resp := string(raw)
	if !strings.HasPrefix(resp, "HTTP/1.1 200 OK\r\n") {
		t.Errorf("Expected 200 status line, got: %q", resp)
	}
	if !strings.Contains(resp, "Content-Type: application/json; charset=utf-8\r\n") {
		t.Errorf("Expected JSON content type, got: %q", resp)
	}
	if !strings.Contains(resp, `"Name":"thisisnabi"`) {
		t.Errorf("Expected demo payload, got: %q", resp)
	}

	cancel()
	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("Unexpected error: %v", r.err)
		}
		if !strings.Contains(r.out, "Received request: GET /hello") {
			t.Errorf("Expected request line in output, got: %s", r.out)
		}
		if !strings.Contains(r.out, "Handled 1 requests: 1 served, 0 errors") {
			t.Errorf("Expected summary in output, got: %s", r.out)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Command did not stop after cancel")
	}
}
