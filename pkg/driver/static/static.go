// Package static implements a script-free driver that fetches pages over
// HTTP and answers CSS queries against the parsed document with goquery.
//
// It is useful for scraping robots that do not need a real browser, and it
// backs the in-memory driver used by tests.
package static

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/entrhq/surfer/pkg/driver"
)

// Fetcher retrieves the raw HTML for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// HTTPFetcher fetches pages with an http.Client.
type HTTPFetcher struct {
	Client *http.Client
}

// Fetch implements Fetcher. Server errors and client timeouts are reported as
// transient so callers can retry them.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		if driver.IsTransient(err) {
			return nil, driver.Transient(err)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		resp.Body.Close()
		return nil, driver.Transient(fmt.Errorf("GET %s: %s", rawURL, resp.Status))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", rawURL, resp.Status)
	}

	return resp.Body, nil
}

// Launcher builds static handles. A nil Fetcher uses an HTTPFetcher whose
// client timeout is Settings.RemoteTimeout.
type Launcher struct {
	Fetcher Fetcher
}

// Launch implements driver.Launcher.
func (l *Launcher) Launch(_ context.Context, settings driver.Settings) (driver.Handle, error) {
	fetcher := l.Fetcher
	if fetcher == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		fetcher = &HTTPFetcher{Client: &http.Client{
			Jar:     jar,
			Timeout: settings.RemoteTimeout,
		}}
	}
	return NewHandle(fetcher), nil
}

// Handle is a driver.Handle over a goquery document.
type Handle struct {
	mu      sync.Mutex
	fetcher Fetcher
	doc     *goquery.Document
	url     string
	closed  bool
}

// NewHandle returns a handle showing an empty document.
func NewHandle(fetcher Fetcher) *Handle {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(""))
	return &Handle{
		fetcher: fetcher,
		doc:     doc,
		url:     "about:blank",
	}
}

var errClosed = errors.New("static handle is closed")

// Navigate fetches and parses rawURL.
func (h *Handle) Navigate(ctx context.Context, rawURL string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return errClosed
	}

	body, err := h.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", rawURL, err)
	}

	if u, parseErr := url.Parse(rawURL); parseErr == nil {
		doc.Url = u
	}
	h.doc = doc
	h.url = rawURL
	return nil
}

// Root returns the document node.
func (h *Handle) Root() (driver.Element, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, errClosed
	}
	return &Element{sel: h.doc.Selection}, nil
}

// Title returns the text of the first <title> element.
func (h *Handle) Title() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return "", errClosed
	}
	return strings.TrimSpace(h.doc.Find("title").First().Text()), nil
}

// URL returns the last successfully loaded URL.
func (h *Handle) URL() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return "", errClosed
	}
	return h.url, nil
}

// Cookies returns the fetcher's cookies for the current URL when it keeps a
// jar, and nothing otherwise.
func (h *Handle) Cookies() ([]driver.Cookie, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, errClosed
	}

	hf, ok := h.fetcher.(*HTTPFetcher)
	if !ok || hf.Client == nil || hf.Client.Jar == nil {
		return nil, nil
	}
	u, err := url.Parse(h.url)
	if err != nil {
		return nil, fmt.Errorf("invalid current url: %w", err)
	}

	var cookies []driver.Cookie
	for _, c := range hf.Client.Jar.Cookies(u) {
		cookies = append(cookies, driver.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: u.Hostname(),
			Path:   c.Path,
		})
	}
	return cookies, nil
}

// PageSource renders the current document.
func (h *Handle) PageSource() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return "", errClosed
	}
	return goquery.OuterHtml(h.doc.Selection)
}

// Close marks the handle closed. Later calls are no-ops.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

// Element wraps a single-node goquery selection.
type Element struct {
	sel *goquery.Selection
}

// Attribute implements driver.Element.
func (e *Element) Attribute(name string) (string, error) {
	return e.sel.AttrOr(name, ""), nil
}

// Text implements driver.Element.
func (e *Element) Text() (string, error) {
	return e.sel.Text(), nil
}

// Clear empties the value of inputs and the content of textareas.
func (e *Element) Clear() error {
	if goquery.NodeName(e.sel) == "textarea" {
		e.sel.SetText("")
		return nil
	}
	e.sel.SetAttr("value", "")
	return nil
}

// SendKeys appends value the way typing would.
func (e *Element) SendKeys(value string) error {
	if goquery.NodeName(e.sel) == "textarea" {
		e.sel.SetText(e.sel.Text() + value)
		return nil
	}
	e.sel.SetAttr("value", e.sel.AttrOr("value", "")+value)
	return nil
}

// Find implements driver.Element. Only CSS queries are supported.
func (e *Element) Find(q driver.Query) ([]driver.Element, error) {
	if q.XPath != "" {
		return nil, fmt.Errorf("xpath %q: %w", q.XPath, driver.ErrUnsupported)
	}
	if q.CSS == "" {
		return nil, fmt.Errorf("empty query: %w", driver.ErrUnsupported)
	}

	matches := e.sel.Find(q.CSS)
	elements := make([]driver.Element, 0, matches.Length())
	matches.Each(func(_ int, s *goquery.Selection) {
		elements = append(elements, &Element{sel: s})
	})
	return elements, nil
}

// Selection exposes the underlying goquery selection.
func (e *Element) Selection() *goquery.Selection {
	return e.sel
}
