package visitor

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"sacco-console/internal/adapters/api"
	"sacco-console/internal/config"
	"sacco-console/internal/core/domain"
	"sacco-console/internal/core/session"

	"github.com/stretchr/testify/require"
)

type fixture struct {
	registry  *Registry
	durable   *session.MemoryStorage
	transient *session.MemoryStorage
	events    *api.Events
	unread    atomic.Int32
	reject    atomic.Bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		durable:   session.NewMemoryStorage(0),
		transient: session.NewMemoryStorage(0),
		events:    api.NewEvents(),
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/notifications/unread-count":
			f.unread.Add(1)
			if f.reject.Load() {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			io.WriteString(w, `{"count":7}`)
		case "/system/onboarding/status":
			io.WriteString(w, `{"needsOnboarding":false,"isInitialized":true}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	sealer, err := session.NewSealer("test-secret")
	require.NoError(t, err)

	f.registry = NewRegistry(Dependencies{
		Config: &config.Config{
			API: config.APIConfig{BaseURL: srv.URL, Timeout: 5 * time.Second},
			Session: config.SessionConfig{
				RedirectCooldown:     time.Minute,
				NotificationInterval: 20 * time.Millisecond,
			},
		},
		Durable:   f.durable,
		Transient: f.transient,
		Sealer:    sealer,
		Events:    f.events,
	})
	t.Cleanup(f.registry.Close)
	return f
}

func TestOpenSharesStatePerVisitor(t *testing.T) {
	f := newFixture(t)

	a := f.registry.Open("a")
	again := f.registry.Open("a")
	b := f.registry.Open("b")

	require.Same(t, a.State, again.State)
	require.NotSame(t, a.State, b.State)
	require.Same(t, a.State.Guard(), a.Client.Guard())
	require.Equal(t, 2, f.registry.Len())
}

func TestNavigationFirstTargetWins(t *testing.T) {
	f := newFixture(t)
	v := f.registry.Open("a")

	v.Navigate("/login?expired=1")
	v.Navigate("/unauthorized")
	require.Equal(t, "/login?expired=1", v.State.TakeNavigation())
	require.Empty(t, v.State.TakeNavigation())
}

func TestStatusIsCachedUntilRefreshed(t *testing.T) {
	f := newFixture(t)
	v := f.registry.Open("a")

	_, cached := v.State.CachedStatus()
	require.False(t, cached)

	status := v.Status(context.Background())
	require.False(t, status.NeedsOnboarding)
	_, cached = v.State.CachedStatus()
	require.True(t, cached)

	v.State.InvalidateStatus()
	_, cached = v.State.CachedStatus()
	require.False(t, cached)
}

func TestPollerStopsWhenSessionExpires(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, session.NewTokenStore(f.durable.Scope("a")).SetSession("tok", domain.User{ID: "1", Role: domain.RoleAdmin}))

	v := f.registry.Open("a")
	v.StartPolling()
	require.Eventually(t, func() bool {
		count, ok := v.UnreadCount()
		return ok && count == 7
	}, time.Second, 5*time.Millisecond)

	f.reject.Store(true)
	require.Eventually(t, func() bool {
		return !v.State.currentPoller().Running()
	}, time.Second, 5*time.Millisecond)

	// the expiry cleared the session and queued exactly one login redirect
	require.False(t, v.Tokens.IsAuthenticated())
	target := v.State.TakeNavigation()
	require.Contains(t, target, "/login?expired=")

	calls := f.unread.Load()
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, calls, f.unread.Load())
}

func TestPruneForgetsIdleVisitors(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.registry.now = func() time.Time { return now }

	stale := f.registry.Open("stale")
	require.NoError(t, f.transient.Scope("stale").Set("pendingTwoFactor", "sealed"))

	now = now.Add(3 * time.Hour)
	f.registry.Open("fresh")

	require.Equal(t, 1, f.registry.Prune(2*time.Hour))
	_, ok := f.registry.Get("stale")
	require.False(t, ok)
	_, ok = f.registry.Get("fresh")
	require.True(t, ok)

	_, err := f.transient.Scope("stale").Get("pendingTwoFactor")
	require.ErrorIs(t, err, session.ErrKeyNotFound)
	require.Equal(t, "stale", stale.ID)
}

func TestRotateMovesVisitorToNewID(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, session.NewTokenStore(f.durable.Scope("old")).SetSession("tok", domain.User{ID: "1", Role: domain.RoleAdmin}))
	require.NoError(t, f.transient.Scope("old").Set("pendingTwoFactor", "sealed"))

	old := f.registry.Open("old")
	old.State.SetStatus(domain.SystemStatus{IsInitialized: true})
	old.Navigate("/dashboard")

	v, err := f.registry.Rotate("old", "new")
	require.NoError(t, err)
	require.Equal(t, "new", v.ID)
	require.True(t, v.Tokens.IsAuthenticated())
	_, cached := v.State.CachedStatus()
	require.True(t, cached)
	require.Equal(t, "/dashboard", v.State.TakeNavigation())

	raw, err := f.transient.Scope("new").Get("pendingTwoFactor")
	require.NoError(t, err)
	require.Equal(t, "sealed", raw)

	_, ok := f.registry.Get("old")
	require.False(t, ok)
	require.False(t, old.Tokens.IsAuthenticated())
	_, err = f.transient.Scope("old").Get("pendingTwoFactor")
	require.ErrorIs(t, err, session.ErrKeyNotFound)

	// the old cookie now opens an empty visitor
	require.False(t, f.registry.Open("old").Tokens.IsAuthenticated())
}
