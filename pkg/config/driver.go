package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"github.com/entrhq/surfer/pkg/driver"
)

const (
	// SectionIDDriver is the identifier for the driver settings section
	SectionIDDriver = "driver"
)

// Recognized driver setting keys.
const (
	KeyDriver        = "driver"
	KeyRemoteHost    = "remote_host"
	KeyRemoteTimeout = "remote_timeout"
	KeyWindowWidth   = "window_width"
	KeyWindowHeight  = "window_height"
	KeyHeadless      = "headless"
	KeyAllowedURLs   = "allowed_urls"
)

// DriverSection holds the settings used to build driver handles.
type DriverSection struct {
	Driver        string
	RemoteHost    string
	RemoteTimeout time.Duration
	WindowWidth   int
	WindowHeight  int
	Headless      bool

	// AllowedURLs are glob patterns navigation must match; empty allows all
	AllowedURLs []string

	mu sync.RWMutex
}

// NewDriverSection creates a driver section with default settings.
// No driver kind is configured by default.
func NewDriverSection() *DriverSection {
	s := &DriverSection{}
	s.Reset()
	return s
}

// ID returns the section identifier.
func (s *DriverSection) ID() string {
	return SectionIDDriver
}

// Title returns the section title.
func (s *DriverSection) Title() string {
	return "Driver Settings"
}

// Description returns the section description.
func (s *DriverSection) Description() string {
	return "Select the browser driver (chromium, firefox, webkit, remote or static), the remote endpoint and timeout, the window size and the URL patterns robots may navigate to."
}

// Data returns the current configuration data.
func (s *DriverSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allowed := make([]interface{}, 0, len(s.AllowedURLs))
	for _, pattern := range s.AllowedURLs {
		allowed = append(allowed, pattern)
	}

	return map[string]interface{}{
		KeyDriver:        s.Driver,
		KeyRemoteHost:    s.RemoteHost,
		KeyRemoteTimeout: s.RemoteTimeout.String(),
		KeyWindowWidth:   s.WindowWidth,
		KeyWindowHeight:  s.WindowHeight,
		KeyHeadless:      s.Headless,
		KeyAllowedURLs:   allowed,
	}
}

// SetData applies recognized keys. Unknown keys are ignored; recognized keys
// with the wrong type are an error.
func (s *DriverSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, value := range data {
		switch key {
		case KeyDriver:
			v, ok := value.(string)
			if !ok {
				return fmt.Errorf("%s must be a string, got %T", key, value)
			}
			s.Driver = v
		case KeyRemoteHost:
			v, ok := value.(string)
			if !ok {
				return fmt.Errorf("%s must be a string, got %T", key, value)
			}
			s.RemoteHost = v
		case KeyRemoteTimeout:
			d, err := toDuration(value)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			s.RemoteTimeout = d
		case KeyWindowWidth, KeyWindowHeight:
			n, ok := toInt(value)
			if !ok {
				return fmt.Errorf("%s must be a number, got %T", key, value)
			}
			if key == KeyWindowWidth {
				s.WindowWidth = n
			} else {
				s.WindowHeight = n
			}
		case KeyHeadless:
			v, ok := value.(bool)
			if !ok {
				return fmt.Errorf("%s must be a boolean, got %T", key, value)
			}
			s.Headless = v
		case KeyAllowedURLs:
			patterns, err := toStrings(value)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			s.AllowedURLs = patterns
		}
	}

	return nil
}

// Validate checks the driver kind and the allowlist patterns.
func (s *DriverSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch driver.Kind(s.Driver) {
	case "", driver.KindChromium, driver.KindFirefox, driver.KindWebKit, driver.KindStatic:
	case driver.KindRemote:
		if s.RemoteHost == "" {
			return fmt.Errorf("remote driver requires %s", KeyRemoteHost)
		}
	default:
		return fmt.Errorf("unknown driver %q", s.Driver)
	}

	if s.WindowWidth < 0 || s.WindowHeight < 0 {
		return fmt.Errorf("window size must not be negative")
	}

	for _, pattern := range s.AllowedURLs {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("invalid allowed url pattern %q: %w", pattern, err)
		}
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *DriverSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Driver = ""
	s.RemoteHost = driver.DefaultRemoteHost
	s.RemoteTimeout = driver.DefaultRemoteTimeout
	s.WindowWidth = 0
	s.WindowHeight = 0
	s.Headless = true
	s.AllowedURLs = nil
}

// Settings converts the section to driver settings.
func (s *DriverSection) Settings() driver.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return driver.Settings{
		Kind:          driver.Kind(s.Driver),
		RemoteHost:    s.RemoteHost,
		RemoteTimeout: s.RemoteTimeout,
		WindowWidth:   s.WindowWidth,
		WindowHeight:  s.WindowHeight,
		Headless:      s.Headless,
	}
}

// GetAllowedURLs returns a copy of the navigation allowlist.
func (s *DriverSection) GetAllowedURLs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.AllowedURLs...)
}

// SetDriver sets the driver kind.
func (s *DriverSection) SetDriver(kind driver.Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Driver = string(kind)
}

func toInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// toDuration accepts a number of seconds, fractional or whole, or a Go
// duration string.
func toDuration(value interface{}) (time.Duration, error) {
	switch v := value.(type) {
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", v, err)
		}
		return d, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	}
	if n, ok := toInt(value); ok {
		return time.Duration(n) * time.Second, nil
	}
	return 0, fmt.Errorf("must be seconds or a duration string, got %T", value)
}

func toStrings(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []string:
		return append([]string(nil), v...), nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected strings, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list of strings, got %T", value)
	}
}
