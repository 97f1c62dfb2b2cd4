package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

type fakeTokens struct {
	mu      sync.Mutex
	token   string
	cleared int
}

func (f *fakeTokens) Token() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.token != ""
}

func (f *fakeTokens) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.cleared++
	return nil
}

func (f *fakeTokens) set(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

type fakeTransient struct {
	mu      sync.Mutex
	cleared int
}

func (f *fakeTransient) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	return nil
}

type recordingNavigator struct {
	mu      sync.Mutex
	targets []string
}

func (r *recordingNavigator) Navigate(target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = append(r.targets, target)
}

func (r *recordingNavigator) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.targets)
}

type fixture struct {
	client    *Client
	tokens    *fakeTokens
	transient *fakeTransient
	nav       *recordingNavigator
	events    *Events
	guard     *RedirectGuard
}

func newFixture(t *testing.T, handler http.HandlerFunc) *fixture {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	f := &fixture{
		tokens:    &fakeTokens{token: "tok-1"},
		transient: &fakeTransient{},
		nav:       &recordingNavigator{},
		events:    NewEvents(),
		guard:     NewRedirectGuard(time.Minute),
	}
	f.client = NewClient(Options{
		BaseURL:   srv.URL,
		Tokens:    f.tokens,
		Transient: f.transient,
		Guard:     f.guard,
		Navigator: f.nav,
		Events:    f.events,
		VisitorID: "visitor-1",
	})
	return f
}

func TestClientAttachesTokenAtSendTime(t *testing.T) {
	var seen []string
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-ID") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		seen = append(seen, r.Header.Get("Authorization"))
		w.Write([]byte(`{}`))
	})

	require.NoError(t, f.client.Get(context.Background(), "/members", nil))
	f.tokens.set("tok-2")
	require.NoError(t, f.client.Get(context.Background(), "/members", nil))
	require.NoError(t, f.client.Get(context.Background(), "/members", nil, SkipAuth()))
	require.NoError(t, f.client.Get(context.Background(), "/members", nil, WithToken("pending")))

	require.Equal(t, []string{"Bearer tok-1", "Bearer tok-2", "", "Bearer pending"}, seen)
}

func TestClientDecodesJSON(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"count":` + r.URL.Query().Get("page") + `}`))
	})

	var out struct {
		Count int `json:"count"`
	}
	err := f.client.Get(context.Background(), "/notifications/unread-count", &out, WithQuery(map[string][]string{"page": {"2"}}))
	require.NoError(t, err)
	require.Equal(t, 2, out.Count)
}

func TestClientUnauthorizedClearsAndRedirectsOnce(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"jwt expired"}`))
	})

	var expired []Event
	f.events.Subscribe(func(ev Event) { expired = append(expired, ev) })

	for i := 0; i < 5; i++ {
		err := f.client.Get(context.Background(), "/accounts", nil)
		require.ErrorIs(t, err, ErrUnauthorized)
	}

	require.Equal(t, 1, f.nav.count())
	require.True(t, strings.HasPrefix(f.nav.targets[0], "/login?expired="))
	require.Equal(t, 5, f.tokens.cleared)
	require.Equal(t, 5, f.transient.cleared)
	require.Len(t, expired, 5)
	require.Equal(t, EventTokenExpired, expired[0].Type)
	require.Equal(t, "visitor-1", expired[0].VisitorID)
}

func TestClientConcurrentUnauthorizedRedirectsOnce(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.client.Get(context.Background(), "/budgets", nil)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, f.nav.count())
}

func TestClientRedirectRearmsAfterCooldown(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	f.guard.now = func() time.Time { return now }

	_ = f.client.Get(context.Background(), "/leaves", nil)
	_ = f.client.Get(context.Background(), "/leaves", nil)
	require.Equal(t, 1, f.nav.count())

	now = now.Add(2 * time.Minute)
	_ = f.client.Get(context.Background(), "/leaves", nil)
	require.Equal(t, 2, f.nav.count())
}

func TestClientUnauthorizedDuringLogoutIsPassedThrough(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	fired := false
	f.events.Subscribe(func(Event) { fired = true })

	f.guard.BeginLogout()
	err := f.client.Post(context.Background(), "/auth/logout", nil, nil)
	f.guard.EndLogout()

	require.ErrorIs(t, err, ErrUnauthorized)
	require.Zero(t, f.nav.count())
	require.Zero(t, f.tokens.cleared)
	require.Zero(t, f.transient.cleared)
	require.False(t, fired)
}

func TestClientSkipAuthUnauthorizedIsNotExpiry(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Invalid email or password"}`))
	})

	err := f.client.Post(context.Background(), "/users/login", map[string]string{"email": "x"}, nil, SkipAuth())
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Zero(t, f.nav.count())
	require.Zero(t, f.tokens.cleared)
}

func TestClientOtherErrorsPropagate(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"Validation failed","errors":[{"path":"amount","msg":"must be positive"}]}`))
	})

	err := f.client.Post(context.Background(), "/expenses", map[string]int{"amount": -1}, nil)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	require.Equal(t, "Validation failed", apiErr.Message)
	require.Equal(t, []FieldError{{Field: "amount", Message: "must be positive"}}, apiErr.Errors)
	require.False(t, errors.Is(err, ErrUnauthorized))
	require.Zero(t, f.nav.count())
	require.Equal(t, http.StatusUnprocessableEntity, StatusCode(err))
	require.Zero(t, f.tokens.cleared)
}

func TestDecodeErrorShapes(t *testing.T) {
	e := decodeError(400, []byte(`{"error":"Bad input","errors":["name is required"]}`))
	require.Equal(t, "Bad input", e.Message)
	require.Equal(t, []FieldError{{Message: "name is required"}}, e.Errors)

	e = decodeError(502, []byte("<html>bad gateway</html>"))
	require.Equal(t, "<html>bad gateway</html>", e.Message)
}

func TestClientCredentialCheckUnauthorizedKeepsSession(t *testing.T) {
	var auth string
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Current password is incorrect"}`))
	})

	err := f.client.Post(context.Background(), "/auth/change-password", map[string]string{"currentPassword": "x"}, nil, CredentialCheck())
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, "Bearer tok-1", auth)
	require.Zero(t, f.nav.count())
	require.Zero(t, f.tokens.cleared)
	require.Zero(t, f.transient.cleared)
}

func TestClientExpireSession(t *testing.T) {
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {})

	var expired int
	f.events.Subscribe(func(ev Event) { expired++ })

	f.client.ExpireSession()
	f.client.ExpireSession()

	require.Equal(t, 2, f.tokens.cleared)
	require.Equal(t, 2, expired)
	require.Equal(t, 1, f.nav.count())
	require.True(t, f.guard.Redirecting())

	f.guard.Reset()
	require.False(t, f.guard.Redirecting())
}

func TestDecodeErrorTruncatesOnRuneBoundary(t *testing.T) {
	body := strings.Repeat("a", maxPlainMessage-1) + "é and more"
	e := decodeError(502, []byte(body))
	require.True(t, utf8.ValidString(e.Message))
	require.Equal(t, strings.Repeat("a", maxPlainMessage-1), e.Message)

	short := decodeError(502, []byte("Hitilafu ya seva ✗"))
	require.Equal(t, "Hitilafu ya seva ✗", short.Message)
}
