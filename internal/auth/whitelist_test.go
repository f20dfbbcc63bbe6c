package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWhitelist_Matches(t *testing.T) {
	w := NewWhitelist([]string{"/", "/api/v1/auth/**", "/static/*", "/metrics", " ", "/health/**"})

	cases := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"", true},
		{"/metrics", true},
		{"/metrics/", true},
		{"/metricsx", false},
		{"/api/v1/auth", true},
		{"/api/v1/auth/login", true},
		{"/api/v1/auth/a/b/c", true},
		{"/api/v1/authx", false},
		{"/api/v1/auth/../users/profile", false},
		{"/static", false},
		{"/static/app.js", true},
		{"/static/js/app.js", false},
		{"/health/live", true},
		{"/api/v1/users/profile", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, w.Matches(tc.path), tc.path)
	}
}

func TestWhitelist_CatchAll(t *testing.T) {
	assert.True(t, NewWhitelist([]string{"/**"}).Matches("/anything/at/all"))
	assert.False(t, NewWhitelist(nil).Matches("/"))

	var w *Whitelist
	assert.False(t, w.Matches("/"))
}
