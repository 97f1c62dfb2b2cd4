package services

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"sacco-console/internal/adapters/api"
	"sacco-console/internal/core/session"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorded struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
}

// backend is a scripted SACCO API
type backend struct {
	mu       sync.Mutex
	routes   map[string]func(w http.ResponseWriter, r *http.Request)
	requests []recorded
}

func (b *backend) handle(method, path string, fn func(w http.ResponseWriter, r *http.Request)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[method+" "+path] = fn
}

func (b *backend) reply(method, path string, status int, body string) {
	b.handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	})
}

func (b *backend) calls(method, path string) []recorded {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []recorded
	for _, r := range b.requests {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recorded{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization")}
	if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
		_ = json.Unmarshal(raw, &rec.Body)
	}

	b.mu.Lock()
	b.requests = append(b.requests, rec)
	fn := b.routes[r.Method+" "+r.URL.Path]
	b.mu.Unlock()

	if fn == nil {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"message":"not found"}`)
		return
	}
	fn(w, r)
}

type harness struct {
	backend *backend
	client  *api.Client
	tokens  *session.TokenStore
	pending *session.PendingStore
	guard   *api.RedirectGuard
	nav     *navRecorder
	auth    *AuthService
}

type navRecorder struct {
	mu      sync.Mutex
	targets []string
}

func (n *navRecorder) Navigate(target string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, target)
}

func (n *navRecorder) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.targets)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b := &backend{routes: map[string]func(http.ResponseWriter, *http.Request){}}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	sealer, err := session.NewSealer("test-secret")
	require.NoError(t, err)

	tokens := session.NewTokenStore(session.NewMemoryStorage(0).Scope("visitor-1"))
	pending := session.NewPendingStore(session.NewMemoryStorage(0).Scope("visitor-1"), sealer)
	guard := api.NewRedirectGuard(time.Minute)
	nav := &navRecorder{}

	client := api.NewClient(api.Options{
		BaseURL:   srv.URL,
		Tokens:    tokens,
		Transient: pending,
		Guard:     guard,
		Navigator: nav,
		Events:    api.NewEvents(),
		VisitorID: "visitor-1",
	})

	return &harness{
		backend: b,
		client:  client,
		tokens:  tokens,
		pending: pending,
		guard:   guard,
		nav:     nav,
		auth:    NewAuthService(client, tokens, pending, zap.NewNop()),
	}
}
