package listener

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// Defaults for request line tokens that the client left out.
const (
	defaultMethod   = "GET"
	defaultPath     = "/"
	defaultProtocol = "HTTP/1.1"
)

// MaxHeaderBytes caps the request line and header block of a single request.
const MaxHeaderBytes = 1 << 20

// serveConn reads one request from conn, queues it and keeps the connection
// open until the application closes the Response, the listener shuts down or
// the timeout passes, whichever comes first.
func (l *Listener) serveConn(conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	if err := conn.SetDeadline(time.Now().Add(l.timeout)); err != nil {
		l.connError(remote, err)
		return
	}

	req, err := readRequest(bufio.NewReader(conn))
	if err != nil {
		if !errors.Is(err, errEmptyRequest) {
			l.connError(remote, err)
		}
		return
	}
	req.remoteAddr = remote

	resp := newResponse(conn, l.timeout)
	if !l.pending.push(&Context{Request: req, Response: resp}) {
		return
	}

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()
	select {
	case <-resp.done:
	case <-l.closing:
	case <-timer.C:
		l.connError(remote, fmt.Errorf("%w after %s", ErrResponseTimeout, l.timeout))
	}
}

// readRequest parses a request line, a header block and an optional
// fixed-length body from r.
func readRequest(r *bufio.Reader) (*Request, error) {
	budget := MaxHeaderBytes
	line, err := readLine(r, &budget)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read request line: %w", err)
	}
	if strings.TrimSpace(line) == "" {
		return nil, errEmptyRequest
	}

	method, path, protocol := parseRequestLine(line)

	header := NewHeader()
	for err == nil {
		line, err = readLine(r, &budget)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read header: %w", err)
		}
		if line == "" {
			break
		}
		name, value, ok := parseHeaderLine(line)
		if !ok {
			continue
		}
		header.Set(name, value)
	}

	var body []byte
	if n, ok := contentLength(header); ok && err == nil {
		body, err = readBody(r, n)
		if err != nil {
			return nil, err
		}
	}

	return &Request{
		method:   method,
		path:     path,
		protocol: protocol,
		header:   header,
		body:     body,
	}, nil
}

// readLine returns the next line without its terminator. A final line with
// no terminator is returned together with io.EOF. Bytes read are charged to
// budget, and the read fails with ErrHeaderTooLarge once it runs out.
func readLine(r *bufio.Reader, budget *int) (string, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		*budget -= len(chunk)
		if *budget < 0 {
			return "", ErrHeaderTooLarge
		}
		line = append(line, chunk...)
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return strings.TrimRight(string(line), "\r\n"), err
	}
}

func parseRequestLine(line string) (method, path, protocol string) {
	method, path, protocol = defaultMethod, defaultPath, defaultProtocol
	parts := strings.Split(line, " ")
	if len(parts) > 0 {
		method = parts[0]
	}
	if len(parts) > 1 {
		path = parts[1]
	}
	if len(parts) > 2 {
		protocol = parts[2]
	}
	return method, path, protocol
}

// parseHeaderLine splits a "Name: Value" line on the first colon. Lines with
// no colon or an empty name position are rejected.
func parseHeaderLine(line string) (name, value string, ok bool) {
	idx := strings.IndexByte(line, ':')
	if idx <= 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

func contentLength(header *Header) (int64, bool) {
	raw, ok := header.Lookup("Content-Length")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 32)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// readBody reads up to n bytes. A peer that closes early yields whatever
// arrived; any other read failure aborts the request.
func readBody(r io.Reader, n int64) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, r, n); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return buf.Bytes(), nil
}
