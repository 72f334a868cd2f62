package surfer

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned when a required setting is missing or invalid.
	ErrConfiguration = errors.New("configuration error")

	// ErrSetup is returned when the scope contract is violated: nested managed
	// windows, sessions requested outside a window, reuse of a bound session
	// id or an invalid session flavor.
	ErrSetup = errors.New("setup error")

	// ErrUnboundContext is returned by driver operations on a released session.
	ErrUnboundContext = errors.New("context is not bound")

	// ErrEmptySet is returned by operations that need at least one element.
	ErrEmptySet = errors.New("empty element set")
)

// ContextError is an error raised while operating on a context. It carries
// the originating context and, when one could be taken, a snapshot of the
// page the root context was showing.
type ContextError struct {
	Kind    error
	Op      string
	Context Context
	Page    *Snapshot
}

func (e *ContextError) Error() string {
	if e.Op == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *ContextError) Unwrap() error {
	return e.Kind
}

// DriverError wraps a failure reported by the driver.
type DriverError struct {
	Original error
	Op       string
	Context  Context
	Page     *Snapshot
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Original)
}

func (e *DriverError) Unwrap() error {
	return e.Original
}

func emptySetError(ctx Context, op string) error {
	return &ContextError{
		Kind:    ErrEmptySet,
		Op:      op,
		Context: ctx,
		Page:    capturePage(ctx),
	}
}

func driverError(ctx Context, op string, err error) error {
	var de *DriverError
	if errors.As(err, &de) {
		return err
	}
	return &DriverError{
		Original: err,
		Op:       op,
		Context:  ctx,
		Page:     capturePage(ctx),
	}
}

// pageSourcer is implemented by contexts that can report the current page.
type pageSourcer interface {
	PageSource() (string, error)
}

// capturePage snapshots the root context's page. It never fails: any error
// or panic while capturing yields nil.
func capturePage(ctx Context) (snap *Snapshot) {
	defer func() {
		if recover() != nil {
			snap = nil
		}
	}()

	if ctx == nil {
		return nil
	}
	src, ok := RootContext(ctx).(pageSourcer)
	if !ok {
		return nil
	}
	raw, err := src.PageSource()
	if err != nil {
		return nil
	}
	snap, err = takeSnapshot(raw, DefaultSnapshotLength)
	if err != nil {
		return nil
	}
	return snap
}
