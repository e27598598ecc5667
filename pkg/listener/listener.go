// Package listener is a small HTTP/1.1 server built directly on TCP sockets.
//
// A Listener accepts connections, parses one request from each, and hands
// the request together with a Response bound to the same connection to the
// application through GetNextRequest. The application fills the Response
// and closes it, which writes the bytes back to the peer. Connections are
// never kept alive.
package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout bounds reads and writes on each connection.
const DefaultTimeout = 5 * time.Second

const maxAcceptDelay = time.Second

// ConnErrorFunc observes connection-level failures. remote is empty for
// accept failures.
type ConnErrorFunc func(remote string, err error)

// Listener owns one bound socket and the queue of parsed requests.
type Listener struct {
	mu       sync.Mutex
	prefixes []string
	ln       net.Listener
	cancel   context.CancelFunc
	loopDone chan struct{}
	shutdown bool
	closing  chan struct{}

	pending     *queue
	timeout     time.Duration
	onConnError ConnErrorFunc
}

// New creates a Listener with no prefixes.
func New() *Listener {
	return &Listener{
		pending: newQueue(),
		timeout: DefaultTimeout,
		closing: make(chan struct{}),
	}
}

// WithTimeout sets the per-connection read/write timeout. Call it before Start.
func (l *Listener) WithTimeout(d time.Duration) *Listener {
	if d > 0 {
		l.timeout = d
	}
	return l
}

// WithConnErrorHook sets a callback for dropped connections. Call it before Start.
func (l *Listener) WithConnErrorHook(fn ConnErrorFunc) *Listener {
	l.onConnError = fn
	return l
}

// AddPrefix registers an absolute URI such as "http://localhost:8080/".
// Only the first registered prefix is bound.
func (l *Listener) AddPrefix(prefix string) error {
	if strings.TrimSpace(prefix) == "" {
		return fmt.Errorf("%w: prefix can't be empty", ErrInvalidArgument)
	}
	if _, err := parsePrefix(prefix); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.prefixes = append(l.prefixes, prefix)
	return nil
}

// Prefixes returns the registered prefixes in order.
func (l *Listener) Prefixes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.prefixes...)
}

// Start binds the first prefix and starts accepting connections.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.shutdown {
		return fmt.Errorf("%w: the listener has been shut down", ErrInvalidOperation)
	}
	if l.ln != nil {
		return fmt.Errorf("%w: the listener has already started", ErrInvalidOperation)
	}
	if len(l.prefixes) == 0 {
		return fmt.Errorf("%w: no prefixes added", ErrInvalidOperation)
	}

	addr, err := bindAddress(l.prefixes[0])
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.ln = ln
	l.cancel = cancel
	l.loopDone = make(chan struct{})
	go l.acceptLoop(ctx, ln, l.loopDone)
	return nil
}

// IsListening reports whether a socket is currently bound.
func (l *Listener) IsListening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ln != nil
}

// Addr returns the bound address, or nil when not listening.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Stop closes the socket and waits for the accept loop to exit. Connections
// already accepted keep running. Stop is a no-op when not listening, and the
// Listener may be started again afterwards.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ln == nil {
		return
	}
	l.cancel()
	_ = l.ln.Close()
	<-l.loopDone

	l.ln = nil
	l.cancel = nil
	l.loopDone = nil
}

// Shutdown stops the listener and permanently closes the request queue.
// Pending and future GetNextRequest calls fail with ErrStreamTerminated, and
// every connection still waiting for its Response to be closed is released
// without a response.
func (l *Listener) Shutdown() {
	l.Stop()

	l.mu.Lock()
	if !l.shutdown {
		l.shutdown = true
		close(l.closing)
	}
	l.mu.Unlock()

	for _, c := range l.pending.close() {
		c.Response.release()
	}
}

// GetNextRequest waits for the next parsed request. It fails with
// ErrStreamTerminated after Shutdown, or with ctx.Err() if ctx ends first.
func (l *Listener) GetNextRequest(ctx context.Context) (*Context, error) {
	return l.pending.pop(ctx)
}

// Pending returns the number of parsed requests waiting to be taken.
func (l *Listener) Pending() int {
	return l.pending.size()
}

func (l *Listener) acceptLoop(ctx context.Context, ln net.Listener, done chan struct{}) {
	defer close(done)

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			l.connError("", err)

			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay *= 2
			}
			if delay > maxAcceptDelay {
				delay = maxAcceptDelay
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
			continue
		}
		delay = 0
		go l.serveConn(conn)
	}
}

func (l *Listener) connError(remote string, err error) {
	if l.onConnError != nil {
		l.onConnError(remote, err)
	}
}

func parsePrefix(prefix string) (*url.URL, error) {
	u, err := url.Parse(prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid prefix %q: %v", ErrInvalidArgument, prefix, err)
	}
	if !u.IsAbs() || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: prefix %q is not an absolute URI", ErrInvalidArgument, prefix)
	}
	return u, nil
}

// bindAddress turns a prefix into host:port. "localhost" maps to the loopback
// address; any other host must be a literal IP.
func bindAddress(prefix string) (string, error) {
	u, err := parsePrefix(prefix)
	if err != nil {
		return "", err
	}

	var ip net.IP
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		ip = net.IPv4(127, 0, 0, 1)
	} else if ip = net.ParseIP(host); ip == nil {
		return "", fmt.Errorf("%w: host %q is not an IP address", ErrInvalidArgument, host)
	}

	port := u.Port()
	if port == "" {
		switch strings.ToLower(u.Scheme) {
		case "https":
			port = "443"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(ip.String(), port), nil
}
