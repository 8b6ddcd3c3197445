package filtering

import (
	"sort"
	"strings"
	"sync"
)

// HostExceptionSet tracks hosts for which blocking is disabled, independent
// of the global enabled flag. Hosts are normalized to lowercase, so
// "Example.COM" and "example.com" refer to the same entry.
type HostExceptionSet struct {
	mu    sync.RWMutex
	hosts map[string]struct{}
}

// NewHostExceptionSet creates an empty exception set.
func NewHostExceptionSet() *HostExceptionSet {
	return &HostExceptionSet{hosts: make(map[string]struct{})}
}

// Toggle flips membership of host and reports the new membership.
// Toggling twice restores the original set.
func (s *HostExceptionSet) Toggle(host string) bool {
	host = NormalizeHost(host)
	if host == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hosts[host]; ok {
		delete(s.hosts, host)
		return false
	}
	s.hosts[host] = struct{}{}
	return true
}

// Contains reports whether host is exempted from blocking.
func (s *HostExceptionSet) Contains(host string) bool {
	host = NormalizeHost(host)

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.hosts[host]
	return ok
}

// Hosts returns the exempted hosts in sorted order.
func (s *HostExceptionSet) Hosts() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.hosts))
	for h := range s.hosts {
		out = append(out, h)
	}
	s.mu.RUnlock()

	sort.Strings(out)
	return out
}

// Count returns the number of exempted hosts.
func (s *HostExceptionSet) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.hosts)
}

// NormalizeHost lowercases and trims a host string.
func NormalizeHost(host string) string {
	return strings.ToLower(strings.TrimSpace(host))
}
