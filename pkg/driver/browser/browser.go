// Package browser adapts Playwright browsers to the driver capability.
//
// Local kinds (chromium, firefox, webkit) launch a browser process; the
// remote kind connects to a Playwright browser server over its websocket
// endpoint. Either way a Handle owns one browser, one context and one page.
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/surfer/pkg/driver"
	"github.com/entrhq/surfer/pkg/logging"
)

// Launcher starts Playwright lazily and builds handles from it.
type Launcher struct {
	mu          sync.Mutex
	pw          *playwright.Playwright
	initialized bool

	// SkipInstall disables the driver/browser download on first use
	SkipInstall bool

	logger *logging.Logger
}

// NewLauncher creates a launcher. Playwright is started on the first Launch.
func NewLauncher(logger *logging.Logger) *Launcher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Launcher{logger: logger}
}

// initialize installs and runs the Playwright driver once.
func (l *Launcher) initialize() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized {
		return nil
	}

	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if !l.SkipInstall {
		if err := playwright.Install(opts); err != nil {
			return fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	l.pw = pw
	l.initialized = true
	return nil
}

// Launch implements driver.Launcher.
func (l *Launcher) Launch(_ context.Context, settings driver.Settings) (driver.Handle, error) {
	if err := l.initialize(); err != nil {
		return nil, err
	}

	var (
		browser playwright.Browser
		err     error
	)

	switch settings.Kind {
	case driver.KindRemote:
		timeout := float64(settings.RemoteTimeout.Milliseconds())
		l.logger.Debugf("connecting to remote browser at %s (timeout %s)", settings.RemoteHost, settings.RemoteTimeout)
		browser, err = l.pw.Chromium.Connect(settings.RemoteHost, playwright.BrowserTypeConnectOptions{
			Timeout: &timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", settings.RemoteHost, translate(err))
		}
	case driver.KindChromium, driver.KindFirefox, driver.KindWebKit:
		browserType := l.browserType(settings.Kind)
		l.logger.Debugf("launching local %s (headless=%v)", settings.Kind, settings.Headless)
		browser, err = browserType.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: &settings.Headless,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to launch %s: %w", settings.Kind, translate(err))
		}
	default:
		return nil, fmt.Errorf("unsupported playwright driver %q", settings.Kind)
	}

	bctx, err := browser.NewContext()
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	// Window sizing is best effort; remote servers may refuse it.
	if settings.Kind != driver.KindRemote && settings.WindowWidth > 0 && settings.WindowHeight > 0 {
		if err := page.SetViewportSize(settings.WindowWidth, settings.WindowHeight); err != nil {
			l.logger.Warnf("failed to size window to %dx%d: %v", settings.WindowWidth, settings.WindowHeight, err)
		}
	}

	return &Handle{browser: browser, context: bctx, page: page}, nil
}

func (l *Launcher) browserType(kind driver.Kind) playwright.BrowserType {
	switch kind {
	case driver.KindFirefox:
		return l.pw.Firefox
	case driver.KindWebKit:
		return l.pw.WebKit
	default:
		return l.pw.Chromium
	}
}

// Stop shuts Playwright down. Handles must be closed first.
func (l *Launcher) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.initialized || l.pw == nil {
		return nil
	}
	if err := l.pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	l.initialized = false
	l.pw = nil
	return nil
}

// translate marks Playwright timeouts as transient.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return driver.Transient(err)
	}
	return err
}

// Handle is a driver.Handle over one Playwright page.
type Handle struct {
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page

	closeOnce sync.Once
}

// Navigate implements driver.Handle.
func (h *Handle) Navigate(ctx context.Context, url string) error {
	opts, err := gotoOptions(ctx)
	if err != nil {
		return err
	}
	if _, err := h.page.Goto(url, opts); err != nil {
		return fmt.Errorf("navigation failed: %w", translate(err))
	}
	return nil
}

// gotoOptions bounds the navigation by the context deadline. Playwright reads
// a zero timeout as "wait forever", so an expired deadline fails up front.
func gotoOptions(ctx context.Context) (playwright.PageGotoOptions, error) {
	opts := playwright.PageGotoOptions{}
	if err := ctx.Err(); err != nil {
		return opts, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline).Milliseconds()
		if remaining <= 0 {
			return opts, context.DeadlineExceeded
		}
		timeout := float64(remaining)
		opts.Timeout = &timeout
	}
	return opts, nil
}

// Root returns the <html> element of the current page.
func (h *Handle) Root() (driver.Element, error) {
	root, err := h.page.QuerySelector(":root")
	if err != nil {
		return nil, fmt.Errorf("root query failed: %w", translate(err))
	}
	if root == nil {
		return nil, errors.New("page has no document element")
	}
	return &Element{handle: root}, nil
}

// Title implements driver.Handle.
func (h *Handle) Title() (string, error) {
	return h.page.Title()
}

// URL implements driver.Handle.
func (h *Handle) URL() (string, error) {
	return h.page.URL(), nil
}

// Cookies implements driver.Handle.
func (h *Handle) Cookies() ([]driver.Cookie, error) {
	cookies, err := h.context.Cookies(h.page.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	out := make([]driver.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, driver.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		})
	}
	return out, nil
}

// PageSource implements driver.Handle.
func (h *Handle) PageSource() (string, error) {
	return h.page.Content()
}

// Close releases the page, context and browser, ignoring teardown errors
// after the first so every resource gets a chance to close.
func (h *Handle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		_ = h.page.Close()
		_ = h.context.Close()
		err = h.browser.Close()
	})
	return err
}

// Element wraps a Playwright element handle.
type Element struct {
	handle playwright.ElementHandle
}

// Attribute implements driver.Element.
func (e *Element) Attribute(name string) (string, error) {
	return e.handle.GetAttribute(name)
}

// Text implements driver.Element.
func (e *Element) Text() (string, error) {
	return e.handle.TextContent()
}

// Clear implements driver.Element.
func (e *Element) Clear() error {
	return translate(e.handle.Fill(""))
}

// SendKeys implements driver.Element.
func (e *Element) SendKeys(value string) error {
	return translate(e.handle.Type(value))
}

// Click implements driver.Clicker.
func (e *Element) Click() error {
	return translate(e.handle.Click())
}

// Hover implements driver.Hoverer.
func (e *Element) Hover() error {
	return translate(e.handle.Hover())
}

// Find implements driver.Element. XPath queries use Playwright's xpath= engine.
func (e *Element) Find(q driver.Query) ([]driver.Element, error) {
	var selector string
	switch {
	case q.XPath != "":
		selector = "xpath=" + q.XPath
	case q.CSS != "":
		selector = q.CSS
	default:
		return nil, fmt.Errorf("empty query: %w", driver.ErrUnsupported)
	}

	handles, err := e.handle.QuerySelectorAll(selector)
	if err != nil {
		return nil, fmt.Errorf("query %s failed: %w", q, translate(err))
	}

	elements := make([]driver.Element, 0, len(handles))
	for _, eh := range handles {
		elements = append(elements, &Element{handle: eh})
	}
	return elements, nil
}
