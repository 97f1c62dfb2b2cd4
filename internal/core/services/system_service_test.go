package services

import (
	"context"
	"net/http"
	"testing"

	"sacco-console/internal/core/domain"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSystemStatus(t *testing.T) {
	h := newHarness(t)
	h.backend.reply(http.MethodGet, "/system/onboarding/status", http.StatusOK,
		`{"isInitialized":true,"hasCompany":true,"hasAdminUser":true,"hasMainBranch":true,"needsOnboarding":false}`)

	status, err := NewSystemService(h.client, zap.NewNop()).Status(context.Background())
	require.NoError(t, err)
	require.False(t, status.NeedsOnboarding)
	require.True(t, status.HasMainBranch)
	require.False(t, status.Unreachable)
}

func TestSystemStatusFailsTowardOnboarding(t *testing.T) {
	h := newHarness(t)
	h.backend.reply(http.MethodGet, "/system/onboarding/status", http.StatusInternalServerError, `{"message":"db down"}`)

	status, err := NewSystemService(h.client, nil).Status(context.Background())
	require.Error(t, err)
	require.True(t, status.NeedsOnboarding)
	require.True(t, status.Unreachable)
	require.Zero(t, h.nav.count())
}

func TestSystemInitialize(t *testing.T) {
	h := newHarness(t)
	h.backend.reply(http.MethodPost, "/system/onboarding/initialize", http.StatusCreated, `{"message":"initialized"}`)
	svc := NewSystemService(h.client, nil)

	_, err := svc.Initialize(context.Background(), nil)
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	out, err := svc.Initialize(context.Background(), map[string]any{"companyName": "Umoja SACCO"})
	require.NoError(t, err)
	require.Equal(t, "initialized", out["message"])

	calls := h.backend.calls(http.MethodPost, "/system/onboarding/initialize")
	require.Len(t, calls, 1)
	require.Equal(t, "Umoja SACCO", calls[0].Body["companyName"])
}

func TestStatusGate(t *testing.T) {
	policy := NewAccessPolicy([]string{"/dashboard"})
	needs := domain.SystemStatus{NeedsOnboarding: true}
	ready := domain.SystemStatus{IsInitialized: true}

	tests := []struct {
		name   string
		status domain.SystemStatus
		path   string
		target string
	}{
		{"uninitialized public route goes to onboarding", needs, "/login", OnboardingPath},
		{"uninitialized root goes to onboarding", needs, "/", OnboardingPath},
		{"onboarding route stays", needs, OnboardingPath, ""},
		{"protected route is exempt", needs, "/dashboard/members", ""},
		{"initialized onboarding goes to root", ready, OnboardingPath, RootPath},
		{"initialized public route stays", ready, "/login", ""},
		{"unreachable behaves as uninitialized", domain.SystemStatus{NeedsOnboarding: true, Unreachable: true}, "/", OnboardingPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, ok := NewStatusGate(policy).Evaluate(tt.status, tt.path)
			require.Equal(t, tt.target != "", ok)
			require.Equal(t, tt.target, target)
		})
	}
}

func TestStatusGateFiresOnce(t *testing.T) {
	gate := NewStatusGate(NewAccessPolicy([]string{"/dashboard"}))
	needs := domain.SystemStatus{NeedsOnboarding: true}

	target, ok := gate.Evaluate(needs, "/login")
	require.True(t, ok)
	require.Equal(t, OnboardingPath, target)

	for i := 0; i < 3; i++ {
		_, ok = gate.Evaluate(needs, "/login")
		require.False(t, ok)
	}
	_, ok = gate.Evaluate(domain.SystemStatus{}, OnboardingPath)
	require.False(t, ok)
}
