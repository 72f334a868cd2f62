package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/surfer/pkg/driver"
)

func TestNewDriverSection(t *testing.T) {
	section := NewDriverSection()

	assert.Equal(t, SectionIDDriver, section.ID())
	assert.Equal(t, "Driver Settings", section.Title())
	assert.Contains(t, section.Description(), "remote")

	settings := section.Settings()
	assert.Equal(t, driver.Kind(""), settings.Kind)
	assert.Equal(t, driver.DefaultRemoteHost, settings.RemoteHost)
	assert.Equal(t, 120*time.Second, settings.RemoteTimeout)
	assert.True(t, settings.Headless)
	assert.NoError(t, section.Validate())
}

func TestDriverSection_SetData(t *testing.T) {
	tests := []struct {
		name    string
		data    map[string]interface{}
		wantErr bool
		check   func(t *testing.T, s *DriverSection)
	}{
		{
			name: "json numbers and lists",
			data: map[string]interface{}{
				"driver":         "remote",
				"remote_host":    "ws://grid:3000",
				"remote_timeout": float64(30),
				"window_width":   float64(1024),
				"window_height":  float64(768),
				"allowed_urls":   []interface{}{"https://*.example.com/*"},
			},
			check: func(t *testing.T, s *DriverSection) {
				settings := s.Settings()
				assert.Equal(t, driver.KindRemote, settings.Kind)
				assert.Equal(t, "ws://grid:3000", settings.RemoteHost)
				assert.Equal(t, 30*time.Second, settings.RemoteTimeout)
				assert.Equal(t, 1024, settings.WindowWidth)
				assert.Equal(t, 768, settings.WindowHeight)
				assert.Equal(t, []string{"https://*.example.com/*"}, s.GetAllowedURLs())
			},
		},
		{
			name: "duration strings",
			data: map[string]interface{}{"remote_timeout": "1m30s"},
			check: func(t *testing.T, s *DriverSection) {
				assert.Equal(t, 90*time.Second, s.Settings().RemoteTimeout)
			},
		},
		{
			name: "sub-second duration strings",
			data: map[string]interface{}{"remote_timeout": "1500ms"},
			check: func(t *testing.T, s *DriverSection) {
				assert.Equal(t, 1500*time.Millisecond, s.Settings().RemoteTimeout)
			},
		},
		{
			name: "fractional seconds",
			data: map[string]interface{}{"remote_timeout": 0.5},
			check: func(t *testing.T, s *DriverSection) {
				assert.Equal(t, 500*time.Millisecond, s.Settings().RemoteTimeout)
			},
		},
		{
			name: "whole seconds as int",
			data: map[string]interface{}{"remote_timeout": 45},
			check: func(t *testing.T, s *DriverSection) {
				assert.Equal(t, 45*time.Second, s.Settings().RemoteTimeout)
			},
		},
		{
			name: "unknown keys are ignored",
			data: map[string]interface{}{"webdriver": "firefox", "color": "blue"},
			check: func(t *testing.T, s *DriverSection) {
				assert.Equal(t, driver.Kind(""), s.Settings().Kind)
			},
		},
		{
			name:    "wrong type is rejected",
			data:    map[string]interface{}{"window_width": "wide"},
			wantErr: true,
		},
		{
			name:    "bad duration is rejected",
			data:    map[string]interface{}{"remote_timeout": "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			section := NewDriverSection()
			err := section.SetData(tt.data)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, section)
		})
	}
}

func TestDriverSection_Validate(t *testing.T) {
	tests := []struct {
		name    string
		data    map[string]interface{}
		wantErr bool
	}{
		{name: "static", data: map[string]interface{}{"driver": "static"}},
		{name: "unknown driver", data: map[string]interface{}{"driver": "netscape"}, wantErr: true},
		{name: "remote without host", data: map[string]interface{}{"driver": "remote", "remote_host": ""}, wantErr: true},
		{name: "negative window", data: map[string]interface{}{"window_width": -1}, wantErr: true},
		{name: "bad glob", data: map[string]interface{}{"allowed_urls": []string{"https://[a-"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			section := NewDriverSection()
			require.NoError(t, section.SetData(tt.data))
			if tt.wantErr {
				assert.Error(t, section.Validate())
			} else {
				assert.NoError(t, section.Validate())
			}
		})
	}
}

func TestDriverSection_DataRoundTrip(t *testing.T) {
	section := NewDriverSection()
	require.NoError(t, section.SetData(map[string]interface{}{
		"driver":         "chromium",
		"window_width":   800,
		"remote_timeout": "1500ms",
		"allowed_urls":   []string{"http://localhost*"},
	}))

	copied := NewDriverSection()
	require.NoError(t, copied.SetData(section.Data()))
	assert.Equal(t, section.Settings(), copied.Settings())
	assert.Equal(t, section.GetAllowedURLs(), copied.GetAllowedURLs())
	assert.Equal(t, 1500*time.Millisecond, copied.Settings().RemoteTimeout)

	section.Reset()
	assert.Equal(t, driver.Kind(""), section.Settings().Kind)
	assert.Empty(t, section.GetAllowedURLs())
}
