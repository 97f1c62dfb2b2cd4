package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"sacco-console/internal/adapters/api"
	"sacco-console/internal/adapters/http/visitor"
	"sacco-console/internal/config"
	"sacco-console/internal/core/domain"
	"sacco-console/internal/core/services"
	"sacco-console/internal/core/session"

	"github.com/gofiber/fiber/v2"
	gojwt "github.com/golang-jwt/jwt/v5"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	registry    *visitor.Registry
	durable     *session.MemoryStorage
	transient   *session.MemoryStorage
	sealer      *session.Sealer
	statusCalls atomic.Int32
	status      string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		durable:   session.NewMemoryStorage(0),
		transient: session.NewMemoryStorage(0),
		status:    `{"isInitialized":true,"needsOnboarding":false}`,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/system/onboarding/status":
			env.statusCalls.Add(1)
			io.WriteString(w, env.status)
		case "/notifications/unread-count":
			io.WriteString(w, `{"count":2}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	sealer, err := session.NewSealer("test-secret")
	require.NoError(t, err)
	env.sealer = sealer

	env.registry = visitor.NewRegistry(visitor.Dependencies{
		Config: &config.Config{
			AppMode: "dev",
			API:     config.APIConfig{BaseURL: srv.URL, Timeout: 5 * time.Second},
			Session: config.SessionConfig{
				RedirectCooldown:     time.Minute,
				NotificationInterval: time.Hour,
			},
		},
		Durable:   env.durable,
		Transient: env.transient,
		Sealer:    sealer,
		Events:    api.NewEvents(),
	})
	t.Cleanup(env.registry.Close)
	return env
}

func (env *testEnv) signIn(t *testing.T, id string, user domain.User) {
	t.Helper()
	require.NoError(t, session.NewTokenStore(env.durable.Scope(id)).SetSession("tok-"+id, user))
}

// as attaches visitor id without going through the session cookie
func (env *testEnv) as(id string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		visitor.Attach(c, env.registry.Open(id))
		return c.Next()
	}
}

func ok(c *fiber.Ctx) error {
	return c.SendString("rendered")
}

func do(t *testing.T, app *fiber.App, method, target string) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil), -1)
	require.NoError(t, err)
	return resp
}

func requireRedirect(t *testing.T, resp *http.Response, target string) {
	t.Helper()
	require.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	require.Equal(t, target, resp.Header.Get("Location"))
}

func requireRendered(t *testing.T, resp *http.Response) {
	t.Helper()
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, "rendered", string(body))
}

func TestRoleGuard(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t, "v-manager", domain.User{ID: "2", Role: domain.RoleManager})
	env.signIn(t, "v-admin", domain.User{ID: "1", Role: domain.RoleAdmin})

	var ran atomic.Int32
	handler := func(c *fiber.Ctx) error {
		ran.Add(1)
		return ok(c)
	}

	app := fiber.New()
	for _, id := range []string{"v-manager", "v-admin", "v-anon"} {
		app.Get("/"+id+"/admin", env.as(id), RoleGuard(domain.Administrators...), handler)
	}

	requireRedirect(t, do(t, app, "GET", "/v-manager/admin"), services.UnauthorizedPath)
	requireRedirect(t, do(t, app, "GET", "/v-anon/admin"), services.LoginPath)
	require.Zero(t, ran.Load())

	requireRendered(t, do(t, app, "GET", "/v-admin/admin"))
	require.Equal(t, int32(1), ran.Load())
}

func TestRoleGuardEmptyRoleSetAdmitsAnyUser(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t, "v-clerk", domain.User{ID: "3", Role: domain.RoleClerk})

	app := fiber.New()
	app.Get("/leaves", env.as("v-clerk"), RoleGuard(), ok)
	requireRendered(t, do(t, app, "GET", "/leaves"))
}

func TestAuthGuard(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t, "v-user", domain.User{ID: "4", Role: domain.RoleCashier})
	env.signIn(t, "v-forced", domain.User{ID: "5", Role: domain.RoleClerk, PasswordChangeRequired: true})
	pending := session.NewPendingStore(env.transient.Scope("v-pending"), env.sealer)
	require.NoError(t, pending.SavePasswordChange(domain.PendingPasswordChange{Token: "tok-temp", User: domain.User{ID: "6"}}))

	policy := services.NewAccessPolicy([]string{"/dashboard"})

	// one app per visitor
	newApp := func(id string) *fiber.App {
		a := fiber.New()
		a.Use(env.as(id), AuthGuard(policy))
		a.Get("/dashboard", ok)
		a.Get("/dashboard/members", ok)
		a.Get("/login", ok)
		return a
	}

	requireRedirect(t, do(t, newApp("v-anon"), "GET", "/dashboard/members"), services.LoginPath)
	requireRendered(t, do(t, newApp("v-anon"), "GET", "/login"))
	requireRedirect(t, do(t, newApp("v-pending"), "GET", "/dashboard"), services.ChangePasswordPath)
	requireRedirect(t, do(t, newApp("v-forced"), "GET", "/dashboard"), services.ChangePasswordPath)

	requireRendered(t, do(t, newApp("v-user"), "GET", "/dashboard"))
	state, found := env.registry.Get("v-user")
	require.True(t, found)
	require.Eventually(t, func() bool {
		v := env.registry.Open("v-user")
		count, polled := v.UnreadCount()
		return polled && count == 2
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, "v-user", state.ID)
}

func TestAuthGuardDropsExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	expired, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"userId": 4,
		"exp":    time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	tokens := session.NewTokenStore(env.durable.Scope("v-stale"))
	require.NoError(t, tokens.SetSession(expired, domain.User{ID: "4", Role: domain.RoleCashier}))

	app := fiber.New()
	app.Use(env.as("v-stale"), AuthGuard(services.NewAccessPolicy([]string{"/dashboard"})))
	app.Get("/dashboard", ok)

	requireRedirect(t, do(t, app, "GET", "/dashboard"), services.LoginPath)
	require.False(t, tokens.IsAuthenticated())

	state, found := env.registry.Get("v-stale")
	require.True(t, found)
	require.True(t, strings.HasPrefix(state.TakeNavigation(), "/login?expired="))
	require.True(t, state.Guard().Redirecting())
}

func TestStatusGate(t *testing.T) {
	env := newTestEnv(t)
	env.status = `{"isInitialized":false,"needsOnboarding":true}`
	policy := services.NewAccessPolicy([]string{"/dashboard"})

	app := fiber.New()
	app.Use(env.as("v-1"), StatusGate(policy))
	app.Get("/login", ok)
	app.Post("/login", ok)
	app.Get("/onboarding", ok)
	app.Get("/dashboard", ok)
	app.Get("/api/session", ok)

	requireRedirect(t, do(t, app, "GET", "/login"), services.OnboardingPath)
	requireRendered(t, do(t, app, "GET", "/onboarding"))
	requireRendered(t, do(t, app, "GET", "/dashboard"))
	requireRendered(t, do(t, app, "POST", "/login"))
	requireRendered(t, do(t, app, "GET", "/api/session"))

	// resolved once per visitor
	require.Equal(t, int32(1), env.statusCalls.Load())
}

func TestStatusGateEvaluatesEveryPageLoad(t *testing.T) {
	env := newTestEnv(t)
	env.status = `{"isInitialized":false,"needsOnboarding":true}`

	app := fiber.New()
	app.Use(env.as("v-1"), StatusGate(services.NewAccessPolicy([]string{"/dashboard"})))
	app.Get("/", ok)

	for i := 0; i < 3; i++ {
		requireRedirect(t, do(t, app, "GET", "/"), services.OnboardingPath)
	}
	require.Equal(t, int32(1), env.statusCalls.Load())
}

func TestStatusGateInitializedLeavesOnboarding(t *testing.T) {
	env := newTestEnv(t)
	app := fiber.New()
	app.Use(env.as("v-1"), StatusGate(services.NewAccessPolicy([]string{"/dashboard"})))
	app.Get("/onboarding", ok)
	app.Get("/login", ok)

	requireRedirect(t, do(t, app, "GET", "/onboarding"), services.RootPath)
	requireRendered(t, do(t, app, "GET", "/login"))
}

func TestVisitorMiddleware(t *testing.T) {
	env := newTestEnv(t)
	store := fibersession.New(fibersession.Config{KeyLookup: "cookie:sid"})

	app := fiber.New()
	app.Use(Visitor(store, env.registry))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.SendString(visitor.From(c).ID)
	})
	app.Get("/navigate", func(c *fiber.Ctx) error {
		visitor.From(c).Navigate("/login?expired=1")
		return c.SendString("ignored")
	})

	resp := do(t, app, "GET", "/whoami")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	id := string(body)
	require.NotEmpty(t, id)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "sid" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	require.Equal(t, id, cookie.Value)

	// same browser, same visitor
	req := httptest.NewRequest("GET", "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: cookie.Value})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	require.Equal(t, id, string(body))

	// a navigation queued by the handler replaces its answer
	requireRedirect(t, do(t, app, "GET", "/navigate"), "/login?expired=1")

	// a navigation queued between requests is delivered on the next one
	state, found := env.registry.Get(id)
	require.True(t, found)
	state.Navigate("/login?expired=2")
	req = httptest.NewRequest("GET", "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: cookie.Value})
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	requireRedirect(t, resp, "/login?expired=2")
}
