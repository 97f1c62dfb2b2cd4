package services

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccessPolicyIsProtected(t *testing.T) {
	p := NewAccessPolicy([]string{"/dashboard", "reports/", " "})
	require.Equal(t, []string{"/dashboard", "/reports"}, p.Prefixes())

	cases := map[string]bool{
		"/dashboard":             true,
		"/dashboard/":            true,
		"/dashboard/members/12":  true,
		"/dashboards":            false,
		"/reports/monthly":       true,
		"/login":                 false,
		"/":                      false,
		"/onboarding":            false,
		"/dashboard-preview/foo": false,
	}
	for path, want := range cases {
		require.Equal(t, want, p.IsProtected(path), path)
	}
}

func TestAccessPolicyRootPrefix(t *testing.T) {
	p := NewAccessPolicy([]string{"/"})
	require.True(t, p.IsProtected("/anything"))
	require.True(t, p.IsProtected("/"))
}
