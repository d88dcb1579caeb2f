package resource

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrScopeDone is returned when a scope is used after Commit or Rollback.
var ErrScopeDone = errors.New("resource scope already finished")

// Scope collects the resources of one capability source. Nothing it holds is
// visible in the parent Handle until Commit.
type Scope struct {
	name    string
	handle  *Handle
	mu      sync.Mutex
	entries []entry
	done    bool
}

// Name returns the scope name
func (s *Scope) Name() string { return s.name }

// Register adds a closer to the scope
func (s *Scope) Register(name string, c io.Closer) error {
	if c == nil {
		return fmt.Errorf("resource %s/%s: closer is nil", s.name, name)
	}
	return s.RegisterFunc(name, c.Close)
}

// RegisterFunc adds a release function to the scope
func (s *Scope) RegisterFunc(name string, fn func() error) error {
	if fn == nil {
		return fmt.Errorf("resource %s/%s: release func is nil", s.name, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return errors.Join(fmt.Errorf("resource %s/%s: %w", s.name, name, ErrScopeDone), fn())
	}
	s.entries = append(s.entries, entry{name: s.name + "/" + name, close: fn})
	return nil
}

// Len returns the number of resources held by the scope
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Commit hands the scope's resources to the parent handle.
func (s *Scope) Commit() error {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return ErrScopeDone
	}
	s.done = true
	entries := s.entries
	s.entries = nil
	s.mu.Unlock()

	return s.handle.adopt(entries)
}

// Rollback releases the scope's resources in reverse order.
func (s *Scope) Rollback() error {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return nil
	}
	s.done = true
	entries := s.entries
	s.entries = nil
	s.mu.Unlock()

	return releaseAll(entries)
}
