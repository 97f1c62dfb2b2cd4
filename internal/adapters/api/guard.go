package api

import (
	"sync"
	"time"
)

// RedirectGuard serializes the reactions of one visitor to authentication
// failures. It holds two flags:
//   - redirecting: a login redirect was issued and must not be repeated until
//     the cooldown elapses or Reset is called
//   - loggingOut: an explicit logout owns cleanup, so 401s are passed through
type RedirectGuard struct {
	mu          sync.Mutex
	cooldown    time.Duration
	now         func() time.Time
	redirecting bool
	redirectAt  time.Time
	loggingOut  int
}

// NewRedirectGuard creates a guard that re-arms after cooldown
func NewRedirectGuard(cooldown time.Duration) *RedirectGuard {
	return &RedirectGuard{cooldown: cooldown, now: time.Now}
}

// TryRedirect reports whether the caller may issue the login redirect for
// the current failure episode. Only the first caller per episode wins.
func (g *RedirectGuard) TryRedirect() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if g.redirecting && now.Sub(g.redirectAt) < g.cooldown {
		return false
	}
	g.redirecting = true
	g.redirectAt = now
	return true
}

// Redirecting reports whether a redirect episode is still active
func (g *RedirectGuard) Redirecting() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.redirecting && g.now().Sub(g.redirectAt) < g.cooldown
}

// Reset ends the current redirect episode
func (g *RedirectGuard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.redirecting = false
	g.redirectAt = time.Time{}
}

// BeginLogout marks an explicit logout in progress. Calls nest.
func (g *RedirectGuard) BeginLogout() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loggingOut++
}

// EndLogout clears one BeginLogout
func (g *RedirectGuard) EndLogout() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loggingOut > 0 {
		g.loggingOut--
	}
}

// LoggingOut reports whether an explicit logout is in progress
func (g *RedirectGuard) LoggingOut() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loggingOut > 0
}
