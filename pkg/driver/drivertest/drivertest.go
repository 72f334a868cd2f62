// Package drivertest provides an in-memory driver for tests.
//
// Pages are registered as HTML strings keyed by URL and served through the
// static driver, so CSS queries behave like they do against real pages.
// Navigation failures can be scripted per URL and every launch and close is
// counted.
package drivertest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/entrhq/surfer/pkg/driver"
	"github.com/entrhq/surfer/pkg/driver/static"
)

// Launcher is a driver.Launcher over registered pages.
type Launcher struct {
	mu       sync.Mutex
	pages    map[string]string
	failures map[string][]error
	handles  []*Handle
	launches int
	closes   int
	settings []driver.Settings

	// LaunchErr, when set, is returned by every Launch
	LaunchErr error
}

// NewLauncher creates a launcher with no pages.
func NewLauncher() *Launcher {
	return &Launcher{
		pages:    make(map[string]string),
		failures: make(map[string][]error),
	}
}

// AddPage registers html under url.
func (l *Launcher) AddPage(url, html string) *Launcher {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pages[url] = html
	return l
}

// FailNext makes the next len(errs) navigations to url fail with errs in order.
func (l *Launcher) FailNext(url string, errs ...error) *Launcher {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[url] = append(l.failures[url], errs...)
	return l
}

// Launch implements driver.Launcher.
func (l *Launcher) Launch(_ context.Context, settings driver.Settings) (driver.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.settings = append(l.settings, settings)
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}

	l.launches++
	h := &Handle{
		Handle:   static.NewHandle(fetcher{l}),
		launcher: l,
		id:       l.launches,
	}
	l.handles = append(l.handles, h)
	return h, nil
}

// Launches returns how many handles have been built.
func (l *Launcher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

// Closes returns how many handles have been closed.
func (l *Launcher) Closes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closes
}

// Live returns how many launched handles are still open.
func (l *Launcher) Live() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches - l.closes
}

// LastSettings returns the settings passed to the most recent Launch.
func (l *Launcher) LastSettings() driver.Settings {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.settings) == 0 {
		return driver.Settings{}
	}
	return l.settings[len(l.settings)-1]
}

type fetcher struct {
	l *Launcher
}

func (f fetcher) Fetch(_ context.Context, url string) (io.ReadCloser, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()

	if queued := f.l.failures[url]; len(queued) > 0 {
		err := queued[0]
		f.l.failures[url] = queued[1:]
		return nil, err
	}

	html, ok := f.l.pages[url]
	if !ok {
		return nil, fmt.Errorf("no page registered for %s", url)
	}
	return io.NopCloser(strings.NewReader(html)), nil
}

// Handle is a static handle that reports its Close to the launcher.
type Handle struct {
	*static.Handle
	launcher *Launcher
	id       int
	once     sync.Once
	closed   bool
}

// ID is the 1-based launch sequence number of the handle.
func (h *Handle) ID() int {
	return h.id
}

// Closed reports whether Close has been called.
func (h *Handle) Closed() bool {
	h.launcher.mu.Lock()
	defer h.launcher.mu.Unlock()
	return h.closed
}

// Close implements driver.Handle.
func (h *Handle) Close() error {
	h.once.Do(func() {
		h.launcher.mu.Lock()
		h.launcher.closes++
		h.closed = true
		h.launcher.mu.Unlock()
	})
	return h.Handle.Close()
}
