package listener

import "bytes"

// Request is an immutable snapshot of one parsed HTTP request.
type Request struct {
	method     string
	path       string
	protocol   string
	header     *Header
	body       []byte
	remoteAddr string
}

// NewRequest builds a Request. The header map and body are copied.
func NewRequest(method, path, protocol string, header *Header, body []byte) *Request {
	if header == nil {
		header = NewHeader()
	}
	return &Request{
		method:   method,
		path:     path,
		protocol: protocol,
		header:   header.Clone(),
		body:     bytes.Clone(body),
	}
}

// HTTPMethod returns the request method token, e.g. "GET".
func (r *Request) HTTPMethod() string { return r.method }

// Path returns the raw request target.
func (r *Request) Path() string { return r.path }

// Protocol returns the protocol version token, e.g. "HTTP/1.1".
func (r *Request) Protocol() string { return r.protocol }

// RemoteAddr returns the peer address, or "" if unknown.
func (r *Request) RemoteAddr() string { return r.remoteAddr }

// Header returns the value of the named header, ignoring case.
func (r *Request) Header(name string) string { return r.header.Get(name) }

// Headers returns a copy of the header map.
func (r *Request) Headers() *Header { return r.header.Clone() }

// Body returns a copy of the body bytes. It is empty when no body was sent.
func (r *Request) Body() []byte {
	if len(r.body) == 0 {
		return []byte{}
	}
	return bytes.Clone(r.body)
}

// ContentLength returns the number of body bytes actually received.
func (r *Request) ContentLength() int { return len(r.body) }

// Context pairs a Request with the Response bound to the same connection.
type Context struct {
	Request  *Request
	Response *Response
}
