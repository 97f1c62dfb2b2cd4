// Package visitor holds the per-browser state of the console. A visitor is
// identified by the session cookie; everything the gates, the API client and
// the handlers share about one browser hangs off its State.
package visitor

import (
	"sync"
	"time"

	"sacco-console/internal/adapters/api"
	"sacco-console/internal/core/domain"
	"sacco-console/internal/core/services"
)

// State is the long-lived part of a visitor. It outlives requests and is
// shared by concurrent requests of the same browser.
type State struct {
	ID    string
	guard *api.RedirectGuard

	mu         sync.Mutex
	status     *domain.SystemStatus
	navigation string
	poller     *services.NotificationPoller
	lastSeen   time.Time
}

func newState(id string, cooldown time.Duration, now time.Time) *State {
	return &State{
		ID:       id,
		guard:    api.NewRedirectGuard(cooldown),
		lastSeen: now,
	}
}

// Guard returns the visitor's redirect and logout flags
func (s *State) Guard() *api.RedirectGuard {
	return s.guard
}

// Navigate queues a navigation for the visitor's browser. The first queued
// target wins until it is taken.
func (s *State) Navigate(target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.navigation == "" {
		s.navigation = target
	}
}

// TakeNavigation returns and clears the queued navigation
func (s *State) TakeNavigation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	target := s.navigation
	s.navigation = ""
	return target
}

// CachedStatus returns the SystemStatus resolved for this visitor, if any
func (s *State) CachedStatus() (domain.SystemStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == nil {
		return domain.SystemStatus{}, false
	}
	return *s.status, true
}

// SetStatus caches a resolved SystemStatus
func (s *State) SetStatus(status domain.SystemStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = &status
}

// InvalidateStatus forgets the cached SystemStatus
func (s *State) InvalidateStatus() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = nil
}

// LastSeen returns the time of the visitor's last request
func (s *State) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *State) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func (s *State) pollerOrCreate(create func() *services.NotificationPoller) *services.NotificationPoller {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.poller == nil {
		s.poller = create()
	}
	return s.poller
}

func (s *State) currentPoller() *services.NotificationPoller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poller
}

// cancelPolling stops the poller without waiting for it
func (s *State) cancelPolling() {
	if p := s.currentPoller(); p != nil {
		p.Cancel()
	}
}

// handOver copies the cached status and any queued navigation to next
func (s *State) handOver(next *State) {
	s.mu.Lock()
	status, navigation := s.status, s.navigation
	s.navigation = ""
	s.mu.Unlock()

	next.mu.Lock()
	defer next.mu.Unlock()
	next.status = status
	next.navigation = navigation
}
