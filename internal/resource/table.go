// Package resource implements the per-call handle table that stands between
// guest code and host-owned objects.
//
// Guests only ever see a uint32 handle. The table maps it to the host value.
// Handles are issued monotonically starting at 1 and are never reused, so a
// handle that has been taken or dropped can never resolve again.
package resource

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// Handle is the opaque integer a guest holds in place of a host object.
type Handle = uint32

var (
	// ErrNotFound is returned when a handle does not resolve to a live entry.
	ErrNotFound = errors.New("resource: handle not found")

	// ErrWrongType is returned when a handle resolves to a value of another kind.
	ErrWrongType = errors.New("resource: handle has unexpected type")

	// ErrClosed is returned when the table has already been closed.
	ErrClosed = errors.New("resource: table closed")
)

// Table is an arena of host objects addressed by handle.
// The zero value is not usable; use NewTable.
type Table struct {
	mu      sync.Mutex
	entries map[Handle]any
	next    Handle
	closed  bool
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		entries: make(map[Handle]any),
		next:    1,
	}
}

// Push stores v and returns the handle for it.
func (t *Table) Push(v any) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, ErrClosed
	}
	if t.next == 0 {
		// wrapped around; handle 0 is never issued
		return 0, fmt.Errorf("resource: handle space exhausted")
	}
	h := t.next
	t.next++
	t.entries[h] = v
	return h, nil
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Drop removes the entry for h, closing it if it implements io.Closer.
func (t *Table) Drop(h Handle) error {
	t.mu.Lock()
	v, ok := t.entries[h]
	if ok {
		delete(t.entries, h)
	}
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("drop %d: %w", h, ErrNotFound)
	}
	if c, ok := v.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Close drops every remaining entry. Further pushes fail with ErrClosed.
// The first close error is returned.
func (t *Table) Close() error {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[Handle]any)
	t.closed = true
	t.mu.Unlock()

	var firstErr error
	for _, v := range entries {
		if c, ok := v.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (t *Table) lookup(h Handle) (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.entries[h]
	if !ok {
		return nil, fmt.Errorf("handle %d: %w", h, ErrNotFound)
	}
	return v, nil
}

// Get borrows the value behind h without removing it.
func Get[T any](t *Table, h Handle) (T, error) {
	var zero T
	v, err := t.lookup(h)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("handle %d holds %T: %w", h, v, ErrWrongType)
	}
	return typed, nil
}

// Take removes h from the table and returns its value; ownership moves to the
// caller. A handle of the wrong type is left in place.
func Take[T any](t *Table, h Handle) (T, error) {
	var zero T

	t.mu.Lock()
	v, ok := t.entries[h]
	if !ok {
		t.mu.Unlock()
		return zero, fmt.Errorf("handle %d: %w", h, ErrNotFound)
	}
	typed, ok := v.(T)
	if !ok {
		t.mu.Unlock()
		return zero, fmt.Errorf("handle %d holds %T: %w", h, v, ErrWrongType)
	}
	delete(t.entries, h)
	t.mu.Unlock()

	return typed, nil
}
