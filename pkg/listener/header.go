package listener

import "strings"

// Header is a case-insensitive header map. Names keep the casing they were
// first set with, and iteration follows insertion order.
type Header struct {
	names  map[string]string
	values map[string]string
	order  []string
}

// NewHeader returns an empty header map.
func NewHeader() *Header {
	return &Header{
		names:  make(map[string]string),
		values: make(map[string]string),
	}
}

// Set stores value under name, overwriting any entry whose name differs only in case.
func (h *Header) Set(name, value string) {
	key := strings.ToLower(name)
	if _, ok := h.values[key]; !ok {
		h.names[key] = name
		h.order = append(h.order, key)
	}
	h.values[key] = value
}

// Get returns the value stored under name, or "" if absent.
func (h *Header) Get(name string) string {
	return h.values[strings.ToLower(name)]
}

// Lookup returns the value stored under name and whether it was present.
func (h *Header) Lookup(name string) (string, bool) {
	v, ok := h.values[strings.ToLower(name)]
	return v, ok
}

// Len returns the number of distinct header names.
func (h *Header) Len() int {
	return len(h.order)
}

// Each calls fn for every header in insertion order.
func (h *Header) Each(fn func(name, value string)) {
	for _, key := range h.order {
		fn(h.names[key], h.values[key])
	}
}

// Clone returns an independent copy of h.
func (h *Header) Clone() *Header {
	c := &Header{
		names:  make(map[string]string, len(h.names)),
		values: make(map[string]string, len(h.values)),
		order:  append([]string(nil), h.order...),
	}
	for k, v := range h.names {
		c.names[k] = v
	}
	for k, v := range h.values {
		c.values[k] = v
	}
	return c
}

// Map returns a plain map keyed by the stored header names.
func (h *Header) Map() map[string]string {
	m := make(map[string]string, len(h.order))
	h.Each(func(name, value string) {
		m[name] = value
	})
	return m
}
