package services

import "strings"

// Console routes the gates navigate to
const (
	RootPath           = "/"
	LoginPath          = "/login"
	OTPPath            = "/login/otp"
	ChangePasswordPath = "/change-password"
	OnboardingPath     = "/onboarding"
	UnauthorizedPath   = "/unauthorized"
	DashboardPath      = "/dashboard"
)

// AccessPolicy decides which console routes need an authenticated session
type AccessPolicy struct {
	prefixes []string
}

// NewAccessPolicy creates a policy for the given protected path prefixes
func NewAccessPolicy(prefixes []string) *AccessPolicy {
	p := &AccessPolicy{}
	for _, prefix := range prefixes {
		prefix = strings.TrimSpace(prefix)
		if prefix == "" {
			continue
		}
		if !strings.HasPrefix(prefix, "/") {
			prefix = "/" + prefix
		}
		if prefix != "/" {
			prefix = strings.TrimRight(prefix, "/")
		}
		p.prefixes = append(p.prefixes, prefix)
	}
	return p
}

// Prefixes returns the normalized protected prefixes
func (p *AccessPolicy) Prefixes() []string {
	return append([]string(nil), p.prefixes...)
}

// IsProtected reports whether path equals or is nested under a protected
// prefix. "/dashboard" protects "/dashboard/members" but not "/dashboards".
func (p *AccessPolicy) IsProtected(path string) bool {
	for _, prefix := range p.prefixes {
		if prefix == "/" {
			return true
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
