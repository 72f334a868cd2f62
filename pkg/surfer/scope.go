package surfer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/surfer/pkg/driver"
	"github.com/entrhq/surfer/pkg/logging"
)

// ManagedOptions configures one managed window.
type ManagedOptions struct {
	// KeepSessions keeps named buckets and their live handles in the scope's
	// registry after a successful window so a later window can reuse them by
	// session id. When false the window uses a disposable registry.
	KeepSessions bool

	// NilSessions treats an empty session id as a regular registry key
	// instead of requesting an anonymous bucket.
	NilSessions bool
}

// ExitPolicy decides what WithSession does with the handle on exit.
type ExitPolicy int

const (
	// Release unbinds the session and keeps the handle for reuse in the window
	Release ExitPolicy = iota

	// Discard unbinds the session and closes the handle
	Discard
)

// SessionOption configures WithSession and With.
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	onExit ExitPolicy
}

// OnExit sets the exit policy used by WithSession.
func OnExit(policy ExitPolicy) SessionOption {
	return func(o *sessionOptions) {
		o.onExit = policy
	}
}

// Option configures a Scope.
type Option func(*Scope)

// WithLogger sets the logger for the scope and everything it creates.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Scope) {
		s.logger = logger
	}
}

// WithRetryBackoff sets the pause between navigation retries.
func WithRetryBackoff(d time.Duration) Option {
	return func(s *Scope) {
		s.backoff = d
	}
}

// WithAllowlist restricts navigation for every session of the scope.
func WithAllowlist(allow *Allowlist) Option {
	return func(s *Scope) {
		s.allow = allow
	}
}

// Scope hands out driver-bound sessions inside managed windows and guarantees
// that every bucket allocated in a window is unbound, and torn down when the
// window fails, by the time the window returns. Only one window may be
// active at a time.
type Scope struct {
	mu       sync.Mutex
	launcher driver.Launcher
	settings driver.Settings
	buckets  map[string]*Bucket
	window   *window

	backoff time.Duration
	allow   *Allowlist
	logger  *logging.Logger
}

// window is the state of the active managed window.
type window struct {
	opts     ManagedOptions
	registry map[string]*Bucket
	loaded   []*Bucket
}

// New creates a scope building handles with launcher and settings.
func New(launcher driver.Launcher, settings driver.Settings, opts ...Option) *Scope {
	s := &Scope{
		launcher: launcher,
		settings: settings,
		buckets:  make(map[string]*Bucket),
		backoff:  DefaultRetryBackoff,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Active reports whether a managed window is open.
func (s *Scope) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window != nil
}

// Managed runs body inside a managed window. Sessions may only be created
// while a window is open. On every exit path, error, panic or success, each
// bucket allocated during the window is unbound; it is also reset when body
// failed or KeepSessions is false. Nested windows fail with ErrSetup.
func (s *Scope) Managed(ctx context.Context, opts ManagedOptions, body func(ctx context.Context) error) (err error) {
	s.mu.Lock()
	if s.window != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot open a managed window inside another", ErrSetup)
	}

	registry := s.buckets
	if !opts.KeepSessions {
		registry = make(map[string]*Bucket)
	}
	w := &window{opts: opts, registry: registry}
	s.window = w
	s.mu.Unlock()

	completed := false
	defer func() {
		s.closeWindow(w, !completed || err != nil || !opts.KeepSessions)
	}()

	err = body(ctx)
	completed = true
	return err
}

func (s *Scope) closeWindow(w *window, forceReset bool) {
	s.mu.Lock()
	loaded := w.loaded
	w.loaded = nil
	s.window = nil
	s.mu.Unlock()

	for _, b := range loaded {
		b.Unbind()
		if forceReset {
			b.Reset()
		}
	}
	s.logger.Debugf("managed window closed: %d buckets released (reset=%v)", len(loaded), forceReset)
}

// NewSession binds a new session inside the active window. An empty id
// requests an anonymous, one-shot bucket unless the window set NilSessions.
// Named buckets are reused from the registry and must not be bound.
//
// The caller owns the session until it releases it or the window ends.
func (s *Scope) NewSession(ctx context.Context, id string) (*Session, error) {
	return Open(ctx, s, id, Base)
}

// Open is NewSession for a typed flavor.
func Open[V any](ctx context.Context, s *Scope, id string, flavor Flavor[V]) (V, error) {
	var zero V
	if flavor == nil {
		return zero, fmt.Errorf("%w: invalid session flavor", ErrSetup)
	}

	b, err := s.acquire(id)
	if err != nil {
		return zero, err
	}
	return flavor(newSession(b, newSessionState(s.backoff, s.allow, s.logger))), nil
}

func (s *Scope) acquire(id string) (*Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.window
	if w == nil {
		return nil, fmt.Errorf("%w: session requested outside a managed window", ErrSetup)
	}

	var b *Bucket
	if id == "" && !w.opts.NilSessions {
		b = newBucket("", true, "anon-"+uuid.NewString()[:8], s.launcher, s.settings, s.logger)
	} else {
		b = w.registry[id]
		if b == nil {
			b = newBucket(id, false, fmt.Sprintf("%q", id), s.launcher, s.settings, s.logger)
			w.registry[id] = b
		}
		if b.Bound() {
			return nil, fmt.Errorf("%w: session %q already bound", ErrSetup, id)
		}
	}

	w.loaded = append(w.loaded, b)
	s.logger.Debugf("bucket %s acquired", b.label)
	return b, nil
}

// WithSession binds a session, runs body with it and unbinds it on every
// exit path. With OnExit(Discard) the handle is closed as well.
func (s *Scope) WithSession(ctx context.Context, id string, body func(*Session) error, opts ...SessionOption) error {
	return With(ctx, s, id, Base, body, opts...)
}

// With is WithSession for a typed flavor.
func With[V any](ctx context.Context, s *Scope, id string, flavor Flavor[V], body func(V) error, opts ...SessionOption) error {
	if flavor == nil {
		return fmt.Errorf("%w: invalid session flavor", ErrSetup)
	}

	o := sessionOptions{onExit: Release}
	for _, opt := range opts {
		opt(&o)
	}

	var sess *Session
	view, err := Open(ctx, s, id, func(ss *Session) V {
		sess = ss
		return flavor(ss)
	})
	if err != nil {
		return err
	}

	b := sess.bucket
	defer func() {
		b.Unbind()
		if o.onExit == Discard {
			b.Reset()
		}
	}()

	return body(view)
}
