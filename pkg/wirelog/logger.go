package wirelog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/niels/sparrow/pkg/listener"
)

const (
	// DefaultLogFile is the default file path for exchange logging
	DefaultLogFile = "exchange.log"
)

// Logger appends request/response exchanges to a file
type Logger struct {
	file    *os.File
	enabled bool
	mu      sync.Mutex
}

// NewLogger creates a new exchange logger
func NewLogger(enabled bool, logFile string) (*Logger, error) {
	if !enabled {
		return &Logger{enabled: false}, nil
	}

	if logFile == "" {
		logFile = DefaultLogFile
	}

	dir := filepath.Dir(logFile)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &Logger{
		file:    file,
		enabled: true,
	}, nil
}

// Close closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// LogExchange records a request together with the response that answered it.
// A nil response error means the response was flushed.
func (l *Logger) LogExchange(id int64, c *listener.Context, respErr error) error {
	if l == nil || !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}

	req := c.Request
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n===== EXCHANGE #%d [%s] =====\n", id, time.Now().Format(time.RFC3339))
	fmt.Fprintf(&sb, "Remote: %s\n\n", req.RemoteAddr())
	fmt.Fprintf(&sb, "%s %s %s\n", req.HTTPMethod(), req.Path(), req.Protocol())
	req.Headers().Each(func(name, value string) {
		fmt.Fprintf(&sb, "%s: %s\n", name, value)
	})
	fmt.Fprintf(&sb, "\n[%d byte body]\n\n", req.ContentLength())

	if respErr != nil {
		fmt.Fprintf(&sb, "Response failed: %v\n", respErr)
	} else {
		fmt.Fprintf(&sb, "Response: %d, %d bytes, %s\n",
			c.Response.StatusCode, c.Response.Len(), c.Response.Header("Content-Type"))
	}
	sb.WriteString("===== END EXCHANGE =====\n")

	if _, err := l.file.WriteString(sb.String()); err != nil {
		return err
	}
	return l.file.Sync()
}

// Global logger instance
var (
	globalLogger = &Logger{enabled: false}
	globalMu     sync.Mutex
)

// InitGlobalLogger replaces the global exchange logger
func InitGlobalLogger(enabled bool, logFile string) error {
	logger, err := NewLogger(enabled, logFile)
	if err != nil {
		return err
	}

	globalMu.Lock()
	old := globalLogger
	globalLogger = logger
	globalMu.Unlock()
	return old.Close()
}

// GetGlobalLogger returns the global exchange logger
func GetGlobalLogger() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalLogger
}

// LogExchange logs an exchange using the global logger
func LogExchange(id int64, c *listener.Context, respErr error) error {
	return GetGlobalLogger().LogExchange(id, c, respErr)
}
