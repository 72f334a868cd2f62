package surfer

import (
	"context"
	"fmt"
	"sync"

	"github.com/entrhq/surfer/pkg/driver"
	"github.com/entrhq/surfer/pkg/logging"
)

// unbindNotifier is implemented by contexts that want to know when a bucket
// lets go of them.
type unbindNotifier interface {
	onUnbind()
}

// Bucket owns one lazily built driver handle and tracks which context is
// currently using it. Named buckets live in a scope's registry and may be
// reused across managed windows; anonymous buckets are one-shot.
type Bucket struct {
	mu        sync.Mutex
	sessionID string
	anonymous bool
	label     string
	handle    driver.Handle
	bound     any

	launcher driver.Launcher
	settings driver.Settings
	logger   *logging.Logger
}

func newBucket(sessionID string, anonymous bool, label string, launcher driver.Launcher, settings driver.Settings, logger *logging.Logger) *Bucket {
	return &Bucket{
		sessionID: sessionID,
		anonymous: anonymous,
		label:     label,
		launcher:  launcher,
		settings:  settings,
		logger:    logger,
	}
}

// SessionID returns the registry key, or "" for anonymous buckets.
func (b *Bucket) SessionID() string {
	return b.sessionID
}

// Anonymous reports whether the bucket is discarded on unbind.
func (b *Bucket) Anonymous() bool {
	return b.anonymous
}

// Driver returns the bucket's handle, building it on first use. When reset is
// true any existing handle is torn down first.
func (b *Bucket) Driver(ctx context.Context, reset bool) (driver.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if reset {
		b.resetLocked()
	}

	if b.handle == nil {
		if b.settings.Kind == "" {
			return nil, fmt.Errorf("%w: must provide a driver type", ErrConfiguration)
		}

		handle, err := b.launcher.Launch(ctx, b.settings)
		if err != nil {
			return nil, fmt.Errorf("failed to start %s driver: %w", b.settings.Kind, err)
		}
		b.logger.Debugf("bucket %s: started %s driver", b.label, b.settings.Kind)
		b.handle = handle
	}

	return b.handle, nil
}

// current returns the handle without building one.
func (b *Bucket) current() driver.Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handle
}

// HasHandle reports whether a live handle is held.
func (b *Bucket) HasHandle() bool {
	return b.current() != nil
}

// Reset discards the handle. Teardown failures are logged and ignored.
func (b *Bucket) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
}

func (b *Bucket) resetLocked() {
	if b.handle == nil {
		return
	}
	if err := b.handle.Close(); err != nil {
		b.logger.Warnf("bucket %s: ignoring teardown failure: %v", b.label, err)
	} else {
		b.logger.Debugf("bucket %s: driver closed", b.label)
	}
	b.handle = nil
}

// Bound reports whether a context currently occupies the bucket.
func (b *Bucket) Bound() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bound != nil
}

// Bind makes ctx the bucket's occupant. A different context already bound is
// notified and evicted first.
func (b *Bucket) Bind(ctx any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bound != nil && b.bound != ctx {
		notifyUnbind(b.bound)
	}
	b.bound = ctx
}

// Unbind releases the current occupant, if any. Anonymous buckets are reset
// afterwards so their handle is never reused.
func (b *Bucket) Unbind() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bound != nil {
		notifyUnbind(b.bound)
		b.bound = nil
	}
	if b.anonymous {
		b.resetLocked()
	}
}

func notifyUnbind(ctx any) {
	if n, ok := ctx.(unbindNotifier); ok {
		n.onUnbind()
	}
}
