package resource

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrClosed is returned when a resource is registered into a closed handle.
var ErrClosed = errors.New("resource handle is closed")

// Registrar accepts resources for later release.
type Registrar interface {
	Register(name string, c io.Closer) error
	RegisterFunc(name string, fn func() error) error
}

type entry struct {
	name  string
	close func() error
}

// Handle is the single owner of every connection opened during initialization.
type Handle struct {
	mu       sync.Mutex
	entries  []entry
	closed   bool
	closeErr error
}

// NewHandle creates an empty handle
func NewHandle() *Handle {
	return &Handle{}
}

// Register adds a closer to the handle
func (h *Handle) Register(name string, c io.Closer) error {
	if c == nil {
		return fmt.Errorf("resource %s: closer is nil", name)
	}
	return h.RegisterFunc(name, c.Close)
}

// RegisterFunc adds a release function to the handle. If the handle is already
// closed the function runs immediately and ErrClosed is returned.
func (h *Handle) RegisterFunc(name string, fn func() error) error {
	if fn == nil {
		return fmt.Errorf("resource %s: release func is nil", name)
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		if err := fn(); err != nil {
			return errors.Join(fmt.Errorf("resource %s: %w", name, ErrClosed), err)
		}
		return fmt.Errorf("resource %s: %w", name, ErrClosed)
	}
	h.entries = append(h.entries, entry{name: name, close: fn})
	h.mu.Unlock()

	return nil
}

// Len returns the number of live resources
func (h *Handle) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Names returns resource names in registration order
func (h *Handle) Names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := make([]string, 0, len(h.entries))
	for _, e := range h.entries {
		names = append(names, e.name)
	}
	return names
}

// Closed reports whether Close has been called
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Close releases every resource in reverse registration order. All release
// errors are joined; one failing resource does not stop the others.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		err := h.closeErr
		h.mu.Unlock()
		return err
	}
	h.closed = true
	entries := h.entries
	h.entries = nil
	h.mu.Unlock()

	err := releaseAll(entries)

	h.mu.Lock()
	h.closeErr = err
	h.mu.Unlock()

	return err
}

// Begin opens a scope whose resources are released together unless committed.
func (h *Handle) Begin(name string) *Scope {
	return &Scope{name: name, handle: h}
}

func (h *Handle) adopt(entries []entry) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return errors.Join(ErrClosed, releaseAll(entries))
	}
	h.entries = append(h.entries, entries...)
	h.mu.Unlock()
	return nil
}

func releaseAll(entries []entry) error {
	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		if err := entries[i].close(); err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", entries[i].name, err))
		}
	}
	return errors.Join(errs...)
}
