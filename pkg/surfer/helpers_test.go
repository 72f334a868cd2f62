package surfer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/entrhq/surfer/pkg/driver"
	"github.com/entrhq/surfer/pkg/driver/drivertest"
)

const (
	loginURL  = "http://x/login"
	searchURL = "http://x/search?q=go"
)

const loginPage = `<html><head><title>Shop</title><script>var x = 1;</script></head><body>
<form id="login">
  <input name="user" value="">
  <input name="pass" value="">
</form>
<ul class="items">
  <li class="item"><a href="/a">A</a></li>
  <li class="item"><a href="/b">B</a><a href="/c">C</a></li>
</ul>
</body></html>`

const searchPage = `<html><head><title>Results</title></head><body><p class="hit">go</p></body></html>`

func newTestScope(t *testing.T, opts ...Option) (*Scope, *drivertest.Launcher) {
	t.Helper()

	launcher := drivertest.NewLauncher().
		AddPage(loginURL, loginPage).
		AddPage(searchURL, searchPage)

	opts = append([]Option{WithRetryBackoff(time.Millisecond)}, opts...)
	return New(launcher, driver.Settings{Kind: driver.KindStatic}, opts...), launcher
}

// managed runs body in a managed window of scope and fails the test on error.
func managed(t *testing.T, scope *Scope, opts ManagedOptions, body func(ctx context.Context) error) {
	t.Helper()
	require.NoError(t, scope.Managed(context.Background(), opts, body))
}

// loadedRoot navigates a standalone handle to the login page and returns its root.
func loadedRoot(t *testing.T) driver.Element {
	t.Helper()

	launcher := drivertest.NewLauncher().AddPage(loginURL, loginPage)
	h, err := launcher.Launch(context.Background(), driver.Settings{Kind: driver.KindStatic})
	require.NoError(t, err)
	require.NoError(t, h.Navigate(context.Background(), loginURL))

	root, err := h.Root()
	require.NoError(t, err)
	return root
}

var errTimeout = driver.Transient(errors.New("load timed out"))

// notifier records unbind notifications.
type notifier struct {
	unbinds int
}

func (n *notifier) onUnbind() { n.unbinds++ }
