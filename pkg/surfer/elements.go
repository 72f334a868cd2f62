package surfer

import (
	"fmt"
	"iter"

	"github.com/entrhq/surfer/pkg/driver"
)

// Context is a node in the tree of search contexts. Sessions are roots;
// element sets point at the context they were searched from.
type Context interface {
	Parent() Context
}

// RootContext walks parent links up to the context with no parent.
func RootContext(ctx Context) Context {
	for ctx != nil {
		parent := ctx.Parent()
		if parent == nil {
			return ctx
		}
		ctx = parent
	}
	return nil
}

// Capability names an element operation that drivers may or may not offer.
type Capability string

// Capabilities checked by Responds and RespondsAll. Text, attribute, fill and
// find are offered by every driver; click, submit and hover are optional.
const (
	CapText      Capability = "text"
	CapAttribute Capability = "attribute"
	CapFill      Capability = "fill"
	CapFind      Capability = "find"
	CapClick     Capability = "click"
	CapSubmit    Capability = "submit"
	CapHover     Capability = "hover"
)

// supports reports whether el offers c.
func supports(el driver.Element, c Capability) bool {
	switch c {
	case CapText, CapAttribute, CapFill, CapFind:
		return true
	case CapClick:
		_, ok := el.(driver.Clicker)
		return ok
	case CapSubmit:
		_, ok := el.(driver.Submitter)
		return ok
	case CapHover:
		_, ok := el.(driver.Hoverer)
		return ok
	}
	return false
}

// ElementSet is an ordered, possibly empty, set of elements. Duplicates are
// kept and order is significant. The set itself is never modified after it
// is built.
type ElementSet struct {
	elements []driver.Element
	parent   Context
}

// NewElementSet wraps elements. parent may be nil for a root set.
func NewElementSet(elements []driver.Element, parent Context) *ElementSet {
	return &ElementSet{
		elements: append([]driver.Element(nil), elements...),
		parent:   parent,
	}
}

// Parent implements Context.
func (s *ElementSet) Parent() Context {
	return s.parent
}

// Len returns the number of elements.
func (s *ElementSet) Len() int {
	return len(s.elements)
}

// Empty reports whether the set has no elements.
func (s *ElementSet) Empty() bool {
	return len(s.elements) == 0
}

// At returns the i-th element. It panics when i is out of range, like a slice.
func (s *ElementSet) At(i int) driver.Element {
	return s.elements[i]
}

// First returns the first element, or nil for an empty set.
func (s *ElementSet) First() driver.Element {
	if len(s.elements) == 0 {
		return nil
	}
	return s.elements[0]
}

// Last returns the last element, or nil for an empty set.
func (s *ElementSet) Last() driver.Element {
	if len(s.elements) == 0 {
		return nil
	}
	return s.elements[len(s.elements)-1]
}

// All iterates the elements in order.
func (s *ElementSet) All() iter.Seq2[int, driver.Element] {
	return func(yield func(int, driver.Element) bool) {
		for i, el := range s.elements {
			if !yield(i, el) {
				return
			}
		}
	}
}

// Elements returns a copy of the underlying elements.
func (s *ElementSet) Elements() []driver.Element {
	return append([]driver.Element(nil), s.elements...)
}

// Explode returns a one-shot sequence of single-element child sets, one per
// element, each parented to s. Ranging over it a second time yields nothing.
func (s *ElementSet) Explode() iter.Seq[*ElementSet] {
	used := false
	return func(yield func(*ElementSet) bool) {
		if used {
			return
		}
		used = true
		for _, el := range s.elements {
			if !yield(&ElementSet{elements: []driver.Element{el}, parent: s}) {
				return
			}
		}
	}
}

// ExplodeEach calls fn with a single-element child set per element and stops
// at the first error.
func (s *ElementSet) ExplodeEach(fn func(*ElementSet) error) error {
	for child := range s.Explode() {
		if err := fn(child); err != nil {
			return err
		}
	}
	return nil
}

// Search queries every element for matching descendants and returns them as
// a child set, ordered per element then per match. Searching an empty set
// returns an empty set.
func (s *ElementSet) Search(q driver.Query) (*ElementSet, error) {
	found, err := searchElements(s.elements, q)
	if err != nil {
		return nil, driverError(s, "search "+q.String(), err)
	}
	return &ElementSet{elements: found, parent: s}, nil
}

func searchElements(scope []driver.Element, q driver.Query) ([]driver.Element, error) {
	var found []driver.Element
	for _, el := range scope {
		matches, err := el.Find(q)
		if err != nil {
			return nil, err
		}
		found = append(found, matches...)
	}
	return found, nil
}

// Fill clears the first element and types value into it.
func (s *ElementSet) Fill(value string) error {
	_, err := First(s, "fill", func(el driver.Element) (struct{}, error) {
		if err := el.Clear(); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, el.SendKeys(value)
	})
	return err
}

// Text returns the text of the first element.
func (s *ElementSet) Text() (string, error) {
	return First(s, "text", driver.Element.Text)
}

// TextAll returns the text of every element.
func (s *ElementSet) TextAll() ([]string, error) {
	return Each(s, "text", driver.Element.Text)
}

// Attribute returns an attribute of the first element.
func (s *ElementSet) Attribute(name string) (string, error) {
	return First(s, "attribute "+name, func(el driver.Element) (string, error) {
		return el.Attribute(name)
	})
}

// AttributeAll returns an attribute of every element.
func (s *ElementSet) AttributeAll(name string) ([]string, error) {
	return Each(s, "attribute "+name, func(el driver.Element) (string, error) {
		return el.Attribute(name)
	})
}

// Click clicks the first element.
func (s *ElementSet) Click() error {
	_, err := First(s, "click", click)
	return err
}

// ClickAll clicks every element in order.
func (s *ElementSet) ClickAll() error {
	_, err := Each(s, "click", click)
	return err
}

// Submit submits the form of the first element.
func (s *ElementSet) Submit() error {
	_, err := First(s, "submit", func(el driver.Element) (struct{}, error) {
		sub, ok := el.(driver.Submitter)
		if !ok {
			return struct{}{}, driver.ErrUnsupported
		}
		return struct{}{}, sub.Submit()
	})
	return err
}

// Hover moves the pointer over the first element.
func (s *ElementSet) Hover() error {
	_, err := First(s, "hover", func(el driver.Element) (struct{}, error) {
		h, ok := el.(driver.Hoverer)
		if !ok {
			return struct{}{}, driver.ErrUnsupported
		}
		return struct{}{}, h.Hover()
	})
	return err
}

func click(el driver.Element) (struct{}, error) {
	c, ok := el.(driver.Clicker)
	if !ok {
		return struct{}{}, driver.ErrUnsupported
	}
	return struct{}{}, c.Click()
}

// Responds reports whether the first element offers c. An empty set
// reports false.
func (s *ElementSet) Responds(c Capability) bool {
	if s.Empty() {
		return false
	}
	return supports(s.elements[0], c)
}

// RespondsAll reports whether c can be applied to every element. An empty
// set reports true since applying to it is a no-op.
func (s *ElementSet) RespondsAll(c Capability) bool {
	if s.Empty() {
		return true
	}
	return supports(s.elements[0], c)
}

// First applies op to the first element of set. An empty set yields an
// ErrEmptySet context error; driver failures are wrapped in a DriverError.
func First[T any](set *ElementSet, name string, op func(driver.Element) (T, error)) (T, error) {
	var zero T
	if set.Empty() {
		return zero, emptySetError(set, name)
	}
	v, err := op(set.elements[0])
	if err != nil {
		return zero, driverError(set, name, err)
	}
	return v, nil
}

// Each applies op to every element of set and collects the results in
// order. An empty set yields an empty result.
func Each[T any](set *ElementSet, name string, op func(driver.Element) (T, error)) ([]T, error) {
	results := make([]T, 0, set.Len())
	for i, el := range set.elements {
		v, err := op(el)
		if err != nil {
			return results, driverError(set, fmt.Sprintf("%s [%d]", name, i), err)
		}
		results = append(results, v)
	}
	return results, nil
}
