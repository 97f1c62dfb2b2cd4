package services

import (
	"context"
	"sync"

	"sacco-console/internal/adapters/api"
	"sacco-console/internal/core/domain"

	"go.uber.org/zap"
)

// SystemService reads and completes the backend initialization state
type SystemService struct {
	client *api.Client
	log    *zap.Logger
}

// NewSystemService creates a new system service
func NewSystemService(client *api.Client, log *zap.Logger) *SystemService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SystemService{client: client, log: log}
}

// Status fetches the SystemStatus. When the backend cannot be asked the
// returned snapshot says onboarding is needed and is marked Unreachable; the
// error is returned alongside so callers can offer a retry.
func (s *SystemService) Status(ctx context.Context) (domain.SystemStatus, error) {
	var status domain.SystemStatus
	if err := s.client.Get(ctx, "/system/onboarding/status", &status, api.SkipAuth()); err != nil {
		s.log.Warn("system status unavailable", zap.Error(err))
		return domain.SystemStatus{NeedsOnboarding: true, Unreachable: true}, err
	}
	return status, nil
}

// Initialize submits the onboarding payload (company, main branch and first
// administrator) and returns the backend's answer untouched
func (s *SystemService) Initialize(ctx context.Context, payload map[string]any) (map[string]any, error) {
	if len(payload) == 0 {
		return nil, domain.ErrInvalidInput
	}
	var out map[string]any
	if err := s.client.Post(ctx, "/system/onboarding/initialize", payload, &out, api.SkipAuth()); err != nil {
		return nil, err
	}
	s.log.Info("system initialized")
	return out, nil
}

// StatusGate routes a page load to onboarding or back to the application.
// A gate lives for one page load and issues at most one navigation; later
// evaluations are no-ops. A new load gets a new gate.
type StatusGate struct {
	policy *AccessPolicy

	mu    sync.Mutex
	fired bool
}

// NewStatusGate creates a gate that leaves protected routes alone
func NewStatusGate(policy *AccessPolicy) *StatusGate {
	if policy == nil {
		policy = NewAccessPolicy(nil)
	}
	return &StatusGate{policy: policy}
}

// Evaluate returns the route to navigate to, if any, for the visitor on path
func (g *StatusGate) Evaluate(status domain.SystemStatus, path string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.fired {
		return "", false
	}

	var target string
	switch {
	case status.NeedsOnboarding && path != OnboardingPath && !g.policy.IsProtected(path):
		target = OnboardingPath
	case !status.NeedsOnboarding && path == OnboardingPath:
		target = RootPath
	default:
		return "", false
	}

	g.fired = true
	return target, true
}
