package surfer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/entrhq/surfer/pkg/driver"
	"github.com/entrhq/surfer/pkg/logging"
)

// DefaultRetryBackoff is the pause between navigation retries.
const DefaultRetryBackoff = time.Second

// sessionState is shared by reference between every view switched from one
// session: macro values and the navigation stack survive view changes.
type sessionState struct {
	macros map[string]any
	stack  [][]driver.Element

	backoff time.Duration
	allow   *Allowlist
	logger  *logging.Logger
}

func newSessionState(backoff time.Duration, allow *Allowlist, logger *logging.Logger) *sessionState {
	return &sessionState{
		macros:  map[string]any{MaxRetries.Name: DefaultMaxRetries},
		backoff: backoff,
		allow:   allow,
		logger:  logger,
	}
}

// Session is a navigable, driver-bound context. It starts bound to a bucket
// and becomes unbound exactly once, when released, quit, or evicted by a
// newer context binding the same bucket. An unbound session never rebinds.
//
// A Session is not safe for concurrent use.
type Session struct {
	bucket *Bucket
	state  *sessionState
}

// Flavor builds a typed robot view over a session.
type Flavor[V any] func(*Session) V

// Base is the flavor returning the session itself.
func Base(s *Session) *Session { return s }

func newSession(bucket *Bucket, state *sessionState) *Session {
	s := &Session{bucket: bucket, state: state}
	bucket.Bind(s)
	return s
}

func (s *Session) onUnbind() {
	s.state.logger.Debugf("session on bucket %s unbound", s.bucket.label)
	s.bucket = nil
}

// Parent implements Context. Sessions are always roots.
func (s *Session) Parent() Context {
	return nil
}

// Bound reports whether the session still holds its bucket.
func (s *Session) Bound() bool {
	return s.bucket != nil
}

// SessionID returns the id of the bound bucket, or "" when anonymous or unbound.
func (s *Session) SessionID() string {
	if s.bucket == nil {
		return ""
	}
	return s.bucket.SessionID()
}

// Macro returns a macro attribute.
func (s *Session) Macro(name string) (any, bool) {
	v, ok := s.state.macros[name]
	return v, ok
}

// SetMacro sets a macro attribute for this session and every view sharing it.
func (s *Session) SetMacro(name string, v any) {
	s.state.macros[name] = v
}

// MaxRetries returns the navigation retry budget, DefaultMaxRetries unless set.
func (s *Session) MaxRetries() int {
	return MaxRetries.Get(s)
}

// SetMaxRetries sets the retry budget for every view of the session.
func (s *Session) SetMaxRetries(n int) {
	MaxRetries.Set(s, n)
}

// Depth returns the number of nested Step scopes in effect.
func (s *Session) Depth() int {
	return len(s.state.stack)
}

// Driver returns the bound bucket's handle, rebuilding it when reset is true.
func (s *Session) Driver(ctx context.Context, reset bool) (driver.Handle, error) {
	if s.bucket == nil {
		return nil, ErrUnboundContext
	}
	return s.bucket.Driver(ctx, reset)
}

// SwitchTo returns a new view of s built by flavor. The view shares the
// bucket, macro attributes and navigation stack; binding it evicts s.
func SwitchTo[V any](s *Session, flavor Flavor[V]) (V, error) {
	var zero V
	if s.bucket == nil {
		return zero, ErrUnboundContext
	}
	if flavor == nil {
		return zero, fmt.Errorf("%w: invalid session flavor", ErrSetup)
	}
	return flavor(newSession(s.bucket, s.state)), nil
}

// Title returns the current page title.
func (s *Session) Title(ctx context.Context) (string, error) {
	h, err := s.Driver(ctx, false)
	if err != nil {
		return "", err
	}
	title, err := h.Title()
	if err != nil {
		return "", driverError(s, "title", err)
	}
	return title, nil
}

// URL returns the current page URL.
func (s *Session) URL(ctx context.Context) (string, error) {
	h, err := s.Driver(ctx, false)
	if err != nil {
		return "", err
	}
	current, err := h.URL()
	if err != nil {
		return "", driverError(s, "url", err)
	}
	return current, nil
}

// Cookies returns the cookies visible to the current page.
func (s *Session) Cookies(ctx context.Context) ([]driver.Cookie, error) {
	h, err := s.Driver(ctx, false)
	if err != nil {
		return nil, err
	}
	cookies, err := h.Cookies()
	if err != nil {
		return nil, driverError(s, "cookies", err)
	}
	return cookies, nil
}

// PageSource returns the current page source without starting a driver.
func (s *Session) PageSource() (string, error) {
	if s.bucket == nil {
		return "", ErrUnboundContext
	}
	h := s.bucket.current()
	if h == nil {
		return "", errors.New("no page loaded")
	}
	return h.PageSource()
}

// Navigate loads rawURL, appending params as a query string. Transient
// failures are retried up to MaxRetries times with a fresh driver handle and
// a fixed backoff between attempts. A successful load clears every Step scope.
func (s *Session) Navigate(ctx context.Context, rawURL string, params url.Values) error {
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL += sep + params.Encode()
	}

	if !s.state.allow.Allows(rawURL) {
		return fmt.Errorf("%w: %s is not in allowed_urls", ErrConfiguration, rawURL)
	}

	retries := 0
	for {
		h, err := s.Driver(ctx, retries > 0)
		if err == nil {
			err = h.Navigate(ctx, rawURL)
			if err == nil {
				s.state.stack = nil
				return nil
			}
		}

		if errors.Is(err, ErrUnboundContext) || !driver.IsTransient(err) || ctx.Err() != nil {
			return s.navigationError(rawURL, err)
		}

		s.state.logger.Warnf("error when opening %s (attempt %d): %v", rawURL, retries+1, err)
		if retries >= s.MaxRetries() {
			return s.navigationError(rawURL, err)
		}
		retries++

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.state.backoff):
		}
	}
}

func (s *Session) navigationError(rawURL string, err error) error {
	if errors.Is(err, ErrUnboundContext) || errors.Is(err, ErrConfiguration) {
		return err
	}
	return driverError(s, "navigate "+rawURL, err)
}

// scope resolves the effective search domain: the innermost Step scope, or
// the document root.
func (s *Session) scope(ctx context.Context) ([]driver.Element, error) {
	if s.bucket == nil {
		return nil, ErrUnboundContext
	}
	if n := len(s.state.stack); n > 0 {
		return s.state.stack[n-1], nil
	}

	h, err := s.Driver(ctx, false)
	if err != nil {
		return nil, err
	}
	root, err := h.Root()
	if err != nil {
		return nil, driverError(s, "root", err)
	}
	return []driver.Element{root}, nil
}

// Elements returns the effective search domain as an element set.
func (s *Session) Elements(ctx context.Context) (*ElementSet, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	return &ElementSet{elements: scope, parent: s}, nil
}

// Search queries the effective search domain.
func (s *Session) Search(ctx context.Context, q driver.Query) (*ElementSet, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	found, err := searchElements(scope, q)
	if err != nil {
		return nil, driverError(s, "search "+q.String(), err)
	}
	return &ElementSet{elements: found, parent: s}, nil
}

// Fill fills the first element of the effective search domain.
func (s *Session) Fill(ctx context.Context, value string) error {
	set, err := s.Elements(ctx)
	if err != nil {
		return err
	}
	return set.Fill(value)
}

// Step narrows the search domain to the matches of q while body runs. The
// scope is popped on every exit path, including panics, so the stack depth
// after Step always equals the depth before it.
func (s *Session) Step(ctx context.Context, q driver.Query, body func() error) error {
	scope, err := s.scope(ctx)
	if err != nil {
		return err
	}
	found, err := searchElements(scope, q)
	if err != nil {
		return driverError(s, "step "+q.String(), err)
	}

	depth := len(s.state.stack)
	s.state.stack = append(s.state.stack[:depth:depth], found)
	defer func() {
		if len(s.state.stack) > depth {
			s.state.stack = s.state.stack[:depth]
		}
	}()

	return body()
}

// Release unbinds the session and keeps the driver handle for reuse. It
// returns false when the session was already unbound.
func (s *Session) Release() bool {
	b := s.bucket
	if b == nil {
		return false
	}
	b.Unbind()
	return true
}

// Quit unbinds the session and discards the driver handle. It returns false
// when the session was already unbound.
func (s *Session) Quit() bool {
	b := s.bucket
	if b == nil {
		return false
	}
	b.Unbind()
	b.Reset()
	return true
}

// Reset discards the driver handle without releasing the session; the next
// operation starts a new one.
func (s *Session) Reset() bool {
	if s.bucket == nil {
		return false
	}
	s.bucket.Reset()
	return true
}
