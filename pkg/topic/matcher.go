package topic

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

const (
	// Separator splits a topic into segments.
	Separator = "/"
	// SingleLevel matches exactly one segment at its position.
	SingleLevel = "+"
	// MultiLevel matches its position and all remaining segments.
	// It is only valid as the final segment of a pattern.
	MultiLevel = "#"
)

var (
	ErrEmptyPattern      = errors.New("topic: empty pattern")
	ErrMultiLevelNotLast = errors.New("topic: '#' must be the final segment")
	ErrMixedWildcard     = errors.New("topic: wildcard must occupy a whole segment")
)

// ValidatePattern checks a subscription pattern at registration time.
// Wildcards embedded inside a literal segment (e.g. "a#", "b+c") are
// rejected, as is a '#' anywhere but the last position. An empty segment
// (double slash) is a legal literal segment.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return ErrEmptyPattern
	}
	segs := strings.Split(pattern, Separator)
	for i, s := range segs {
		switch s {
		case MultiLevel:
			if i != len(segs)-1 {
				return fmt.Errorf("%w: %q", ErrMultiLevelNotLast, pattern)
			}
		case SingleLevel:
			// ok at any position
		default:
			if strings.ContainsAny(s, SingleLevel+MultiLevel) {
				return fmt.Errorf("%w: %q", ErrMixedWildcard, pattern)
			}
		}
	}
	return nil
}

// Matches reports whether a concrete topic matches a single pattern.
// Matching is segment-wise left-to-right: a literal segment must be equal,
// '+' consumes exactly one segment, '#' consumes all remaining segments
// (including zero). The pattern is assumed to have passed ValidatePattern.
func Matches(topic, pattern string) bool {
	ts := strings.Split(topic, Separator)
	ps := strings.Split(pattern, Separator)
	for i, p := range ps {
		if p == MultiLevel {
			return true
		}
		if i >= len(ts) {
			return false
		}
		if p != SingleLevel && p != ts[i] {
			return false
		}
	}
	return len(ts) == len(ps)
}

// Matcher holds a set of registered subscription patterns and answers which
// of them match a concrete topic. Patterns are stored verbatim.
// Safe for concurrent use: Match takes a read lock, so subscriptions may be
// added or removed while messages are being dispatched.
type Matcher struct {
	mu       sync.RWMutex
	patterns map[string]struct{}
}

func NewMatcher() *Matcher {
	return &Matcher{patterns: make(map[string]struct{})}
}

// Subscribe adds a pattern to the set. Invalid patterns are rejected here
// rather than surfacing as silent non-matches later.
func (m *Matcher) Subscribe(pattern string) error {
	if err := ValidatePattern(pattern); err != nil {
		return err
	}
	m.mu.Lock()
	m.patterns[pattern] = struct{}{}
	m.mu.Unlock()
	return nil
}

// Unsubscribe removes a pattern. Removing an unknown pattern is a no-op.
func (m *Matcher) Unsubscribe(pattern string) {
	m.mu.Lock()
	delete(m.patterns, pattern)
	m.mu.Unlock()
}

// Match returns every registered pattern that matches topic. The result is
// a fresh slice; order is unspecified.
func (m *Matcher) Match(topic string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for p := range m.patterns {
		if Matches(topic, p) {
			out = append(out, p)
		}
	}
	return out
}

// Patterns returns a snapshot of the registered patterns.
func (m *Matcher) Patterns() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.patterns))
	for p := range m.patterns {
		out = append(out, p)
	}
	return out
}

// Len returns the number of registered patterns.
func (m *Matcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.patterns)
}
