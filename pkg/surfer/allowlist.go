package surfer

import (
	"fmt"

	"github.com/gobwas/glob"
)

// Allowlist restricts which URLs sessions may navigate to.
type Allowlist struct {
	patterns []glob.Glob
	raw      []string
}

// NewAllowlist compiles glob patterns such as "https://*.example.com/*".
// With no patterns every URL is allowed.
func NewAllowlist(patterns []string) (*Allowlist, error) {
	a := &Allowlist{raw: append([]string(nil), patterns...)}
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid allowed url pattern '%s': %v", ErrConfiguration, pattern, err)
		}
		a.patterns = append(a.patterns, g)
	}
	return a, nil
}

// Allows reports whether url matches a pattern.
func (a *Allowlist) Allows(url string) bool {
	if a == nil || len(a.patterns) == 0 {
		return true
	}
	for _, pattern := range a.patterns {
		if pattern.Match(url) {
			return true
		}
	}
	return false
}

// Patterns returns the source patterns.
func (a *Allowlist) Patterns() []string {
	if a == nil {
		return nil
	}
	return append([]string(nil), a.raw...)
}
