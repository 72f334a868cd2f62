// Package driver defines the browser capability consumed by surfer robots.
//
// A Handle is one live browser connection (a page plus whatever process or
// remote session backs it). Elements are opaque handles into the page that
// can be read, cleared, typed into and searched. Concrete adapters live in
// the playwright and static subpackages; drivertest provides an in-memory
// implementation for tests.
package driver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Kind names a driver implementation.
type Kind string

const (
	// KindChromium launches a local Chromium through Playwright
	KindChromium Kind = "chromium"

	// KindFirefox launches a local Firefox through Playwright
	KindFirefox Kind = "firefox"

	// KindWebKit launches a local WebKit through Playwright
	KindWebKit Kind = "webkit"

	// KindRemote connects to a Playwright browser server at Settings.RemoteHost
	KindRemote Kind = "remote"

	// KindStatic fetches pages over HTTP and queries them without running scripts
	KindStatic Kind = "static"
)

// Default values for driver settings
const (
	DefaultRemoteHost    = "http://localhost:8080"
	DefaultRemoteTimeout = 120 * time.Second
)

var (
	// ErrTransient marks failures that are worth retrying (timeouts, dropped loads).
	ErrTransient = errors.New("transient driver failure")

	// ErrUnsupported is returned when an element or handle lacks a capability.
	ErrUnsupported = errors.New("operation not supported by driver")
)

// Settings is everything a Launcher needs to build a Handle.
type Settings struct {
	// Kind selects the driver implementation. Empty means unconfigured.
	Kind Kind

	// RemoteHost is the endpoint used by KindRemote
	RemoteHost string

	// RemoteTimeout bounds connection setup for KindRemote
	RemoteTimeout time.Duration

	// WindowWidth and WindowHeight size local windows; zero leaves the driver default
	WindowWidth  int
	WindowHeight int

	// Headless controls whether local browsers show a window
	Headless bool
}

// Query describes a structural match against descendants of an element.
// Exactly one of CSS or XPath is expected to be set.
type Query struct {
	CSS   string
	XPath string
}

// CSS is shorthand for a CSS selector query.
func CSS(selector string) Query {
	return Query{CSS: selector}
}

// XPath is shorthand for an XPath query.
func XPath(expr string) Query {
	return Query{XPath: expr}
}

// IsZero reports whether q selects nothing.
func (q Query) IsZero() bool {
	return q.CSS == "" && q.XPath == ""
}

func (q Query) String() string {
	if q.XPath != "" {
		return "xpath=" + q.XPath
	}
	return "css=" + q.CSS
}

// Element is an opaque handle to a node in the current page.
type Element interface {
	// Attribute returns the named attribute, or "" when absent
	Attribute(name string) (string, error)

	// Text returns the element's text content
	Text() (string, error)

	// Clear empties an input-like element
	Clear() error

	// SendKeys types value into the element
	SendKeys(value string) error

	// Find returns matching descendants in document order
	Find(q Query) ([]Element, error)
}

// Clicker is implemented by elements that can be clicked.
type Clicker interface {
	Click() error
}

// Submitter is implemented by elements that can submit their form.
type Submitter interface {
	Submit() error
}

// Hoverer is implemented by elements that can receive a pointer hover.
type Hoverer interface {
	Hover() error
}

// Cookie is a browser cookie visible to the current page.
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

// Handle is a live browser connection.
type Handle interface {
	// Navigate loads url and blocks until the load completes or fails
	Navigate(ctx context.Context, url string) error

	// Root returns the document root element of the current page
	Root() (Element, error)

	Title() (string, error)
	URL() (string, error)
	Cookies() ([]Cookie, error)

	// PageSource returns the serialized DOM of the current page
	PageSource() (string, error)

	// Close tears the connection down. It is safe to call more than once.
	Close() error
}

// Launcher constructs handles.
type Launcher interface {
	Launch(ctx context.Context, settings Settings) (Handle, error)
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context, settings Settings) (Handle, error)

// Launch calls f.
func (f LauncherFunc) Launch(ctx context.Context, settings Settings) (Handle, error) {
	return f(ctx, settings)
}

// Mux dispatches Launch to the launcher registered for Settings.Kind.
type Mux map[Kind]Launcher

// Launch implements Launcher.
func (m Mux) Launch(ctx context.Context, settings Settings) (Handle, error) {
	l, ok := m[settings.Kind]
	if !ok {
		return nil, fmt.Errorf("no launcher registered for driver %q", settings.Kind)
	}
	return l.Launch(ctx, settings)
}

// IsTransient reports whether err is a timeout-class failure that may succeed
// on retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Transient wraps err so that IsTransient reports true.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() []error { return []error{ErrTransient, e.err} }
