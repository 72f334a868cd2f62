package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/surfer/pkg/driver"
	"github.com/entrhq/surfer/pkg/logging"
)

// resetGlobal clears the global manager and captures warnings.
func resetGlobal(t *testing.T) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	globalMu.Lock()
	globalManager = nil
	origLogger := logger
	logger = logging.NewWriterLogger("config", &buf)
	globalMu.Unlock()

	t.Cleanup(func() {
		globalMu.Lock()
		globalManager = nil
		logger = origLogger
		globalMu.Unlock()
	})
	return &buf
}

func TestInitialize(t *testing.T) {
	t.Run("registers the driver section", func(t *testing.T) {
		resetGlobal(t)

		require.NoError(t, Initialize(filepath.Join(t.TempDir(), "config.json")))
		assert.True(t, IsInitialized())
		require.NotNil(t, GetDriver())
		assert.Equal(t, driver.DefaultRemoteHost, GetDriver().Settings().RemoteHost)
	})

	t.Run("loads persisted settings", func(t *testing.T) {
		resetGlobal(t)
		configPath := filepath.Join(t.TempDir(), "config.yaml")

		require.NoError(t, Initialize(configPath))
		require.NoError(t, Configure(map[string]interface{}{"driver": "static"}))
		require.NoError(t, Global().SaveAll())

		globalMu.Lock()
		globalManager = nil
		globalMu.Unlock()

		require.NoError(t, Initialize(configPath))
		assert.Equal(t, driver.KindStatic, GetDriver().Settings().Kind)
	})

	t.Run("uninitialized accessors", func(t *testing.T) {
		resetGlobal(t)

		assert.False(t, IsInitialized())
		assert.Nil(t, GetDriver())
		assert.ErrorIs(t, Configure(nil), ErrNotInitialized)
		assert.ErrorIs(t, ConfigureWith("x.yaml"), ErrNotInitialized)
		assert.Panics(t, func() { Global() })
	})
}

func TestConfigureWith(t *testing.T) {
	tests := []struct {
		name     string
		content  *string
		wantKind driver.Kind
		warning  string
	}{
		{
			name:     "applies recognized keys",
			content:  ptr("driver: remote\nremote_host: ws://grid:3000\nremote_timeout: 45\nunknown: 1\n"),
			wantKind: driver.KindRemote,
		},
		{
			name:     "missing file keeps defaults",
			content:  nil,
			wantKind: "",
			warning:  "couldn't be found",
		},
		{
			name:     "invalid syntax keeps defaults",
			content:  ptr("driver: [remote\n"),
			wantKind: "",
			warning:  "invalid syntax",
		},
		{
			name:     "invalid values keep defaults",
			content:  ptr("driver: static\nwindow_width: wide\n"),
			wantKind: "",
			warning:  "invalid values",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := resetGlobal(t)
			require.NoError(t, Initialize(filepath.Join(t.TempDir(), "config.json")))

			path := filepath.Join(t.TempDir(), "surfer.yaml")
			if tt.content != nil {
				require.NoError(t, os.WriteFile(path, []byte(*tt.content), 0600))
			}

			require.NoError(t, ConfigureWith(path))
			assert.Equal(t, tt.wantKind, GetDriver().Settings().Kind)
			if tt.warning != "" {
				assert.Contains(t, buf.String(), "[WARN]")
				assert.Contains(t, buf.String(), tt.warning)
			}
		})
	}
}

func TestConfigureWith_RemoteTimeout(t *testing.T) {
	tests := []struct {
		name    string
		initial string
		content string
		want    time.Duration
	}{
		{
			name:    "unrelated keys keep a sub-second timeout",
			initial: "1500ms",
			content: "window_width: 800\n",
			want:    1500 * time.Millisecond,
		},
		{
			name:    "fractional seconds",
			initial: "2m",
			content: "remote_timeout: 0.5\n",
			want:    500 * time.Millisecond,
		},
		{
			name:    "duration strings",
			initial: "2m",
			content: "remote_timeout: 750ms\n",
			want:    750 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetGlobal(t)
			require.NoError(t, Initialize(filepath.Join(t.TempDir(), "config.json")))
			require.NoError(t, Configure(map[string]interface{}{KeyRemoteTimeout: tt.initial}))

			path := filepath.Join(t.TempDir(), "surfer.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))

			require.NoError(t, ConfigureWith(path))
			assert.Equal(t, tt.want, GetDriver().Settings().RemoteTimeout)
		})
	}
}

func ptr(s string) *string { return &s }
