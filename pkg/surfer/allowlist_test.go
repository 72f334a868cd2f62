package surfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowlist(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		url      string
		want     bool
	}{
		{name: "no patterns allow everything", patterns: nil, url: "https://anywhere.test/", want: true},
		{name: "exact match", patterns: []string{"https://shop.example.com/login"}, url: "https://shop.example.com/login", want: true},
		{name: "wildcard host", patterns: []string{"https://*.example.com/*"}, url: "https://api.example.com/v1", want: true},
		{name: "wildcard host other domain", patterns: []string{"https://*.example.com/*"}, url: "https://example.org/v1", want: false},
		{name: "second pattern matches", patterns: []string{"https://a.test/*", "https://b.test/*"}, url: "https://b.test/page", want: true},
		{name: "scheme mismatch", patterns: []string{"https://a.test/*"}, url: "http://a.test/page", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allow, err := NewAllowlist(tt.patterns)
			require.NoError(t, err)
			assert.Equal(t, tt.want, allow.Allows(tt.url))
		})
	}
}

func TestAllowlist_InvalidPattern(t *testing.T) {
	_, err := NewAllowlist([]string{"https://[abc"})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestAllowlist_Nil(t *testing.T) {
	var allow *Allowlist
	assert.True(t, allow.Allows("https://anywhere.test/"))
	assert.Nil(t, allow.Patterns())

	allow, err := NewAllowlist([]string{"https://a.test/*"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.test/*"}, allow.Patterns())
}
