package surfer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/surfer/pkg/driver"
)

func TestElementSet_Basics(t *testing.T) {
	root := loadedRoot(t)
	set := NewElementSet([]driver.Element{root}, nil)

	items, err := set.Search(driver.CSS("li.item"))
	require.NoError(t, err)

	assert.Equal(t, 2, items.Len())
	assert.False(t, items.Empty())
	assert.Same(t, set, items.Parent())
	assert.NotNil(t, items.First())
	assert.NotNil(t, items.Last())
	assert.Equal(t, items.At(0), items.First())
	assert.Equal(t, items.At(1), items.Last())

	var seen []int
	for i := range items.All() {
		seen = append(seen, i)
	}
	assert.Equal(t, []int{0, 1}, seen)

	empty := NewElementSet(nil, nil)
	assert.True(t, empty.Empty())
	assert.Nil(t, empty.First())
	assert.Nil(t, empty.Last())
}

func TestElementSet_Elements(t *testing.T) {
	root := loadedRoot(t)
	set := NewElementSet([]driver.Element{root}, nil)

	els := set.Elements()
	els[0] = nil
	assert.NotNil(t, set.First(), "returned slice is a copy")
}

func TestElementSet_Search(t *testing.T) {
	root := loadedRoot(t)
	set := NewElementSet([]driver.Element{root}, nil)

	t.Run("orders per element then per match", func(t *testing.T) {
		items, err := set.Search(driver.CSS("li.item"))
		require.NoError(t, err)

		links, err := items.Search(driver.CSS("a"))
		require.NoError(t, err)

		texts, err := links.TextAll()
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "C"}, texts)
		assert.Same(t, items, links.Parent())
	})

	t.Run("no matches is an empty set", func(t *testing.T) {
		none, err := set.Search(driver.CSS("table"))
		require.NoError(t, err)
		assert.True(t, none.Empty())

		deeper, err := none.Search(driver.CSS("td"))
		require.NoError(t, err)
		assert.True(t, deeper.Empty())
	})

	t.Run("unsupported queries are driver errors", func(t *testing.T) {
		_, err := set.Search(driver.XPath("//a"))
		require.Error(t, err)

		var de *DriverError
		require.ErrorAs(t, err, &de)
		assert.ErrorIs(t, err, driver.ErrUnsupported)
		assert.Equal(t, "search xpath=//a", de.Op)
		assert.Same(t, set, de.Context)
	})
}

func TestElementSet_Explode(t *testing.T) {
	root := loadedRoot(t)
	items, err := NewElementSet([]driver.Element{root}, nil).Search(driver.CSS("li.item"))
	require.NoError(t, err)

	seq := items.Explode()

	var children []*ElementSet
	for child := range seq {
		children = append(children, child)
	}
	require.Len(t, children, 2)
	for i, child := range children {
		assert.Equal(t, 1, child.Len())
		assert.Same(t, items, child.Parent())
		assert.Equal(t, items.At(i), child.First())
	}

	count := 0
	for range seq {
		count++
	}
	assert.Zero(t, count, "an exploded sequence is single use")

	var texts []string
	err = items.ExplodeEach(func(child *ElementSet) error {
		links, err := child.Search(driver.CSS("a"))
		if err != nil {
			return err
		}
		text, err := links.Text()
		texts = append(texts, text)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, texts)

	stop := errors.New("stop")
	calls := 0
	err = items.ExplodeEach(func(*ElementSet) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestElementSet_Fill(t *testing.T) {
	root := loadedRoot(t)
	set := NewElementSet([]driver.Element{root}, nil)

	inputs, err := set.Search(driver.CSS("input"))
	require.NoError(t, err)
	require.Equal(t, 2, inputs.Len())

	require.NoError(t, inputs.Fill("alice"))

	values, err := inputs.AttributeAll("value")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", ""}, values, "only the first element is filled")

	require.NoError(t, inputs.Fill("bob"))
	value, err := inputs.Attribute("value")
	require.NoError(t, err)
	assert.Equal(t, "bob", value, "fill clears before typing")
}

func TestElementSet_EmptySetErrors(t *testing.T) {
	empty := NewElementSet(nil, nil)

	tests := []struct {
		name string
		op   string
		call func() error
	}{
		{name: "fill", op: "fill", call: func() error { return empty.Fill("x") }},
		{name: "text", op: "text", call: func() error { _, err := empty.Text(); return err }},
		{name: "attribute", op: "attribute href", call: func() error { _, err := empty.Attribute("href"); return err }},
		{name: "click", op: "click", call: func() error { return empty.Click() }},
		{name: "submit", op: "submit", call: func() error { return empty.Submit() }},
		{name: "hover", op: "hover", call: func() error { return empty.Hover() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrEmptySet)

			var ce *ContextError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.op, ce.Op)
			assert.Same(t, empty, ce.Context)
			assert.Nil(t, ce.Page, "a detached set has no page to capture")
		})
	}
}

func TestElementSet_EachOnEmpty(t *testing.T) {
	empty := NewElementSet(nil, nil)

	texts, err := empty.TextAll()
	require.NoError(t, err)
	assert.Empty(t, texts)

	require.NoError(t, empty.ClickAll())
}

func TestElementSet_Responds(t *testing.T) {
	root := loadedRoot(t)
	links, err := NewElementSet([]driver.Element{root}, nil).Search(driver.CSS("a"))
	require.NoError(t, err)
	empty := NewElementSet(nil, nil)

	tests := []struct {
		name    string
		set     *ElementSet
		cap     Capability
		want    bool
		wantAll bool
	}{
		{name: "text on elements", set: links, cap: CapText, want: true, wantAll: true},
		{name: "fill on elements", set: links, cap: CapFill, want: true, wantAll: true},
		{name: "click unsupported by static driver", set: links, cap: CapClick, want: false, wantAll: false},
		{name: "unknown capability", set: links, cap: Capability("teleport"), want: false, wantAll: false},
		{name: "empty set", set: empty, cap: CapText, want: false, wantAll: true},
		{name: "empty set unsupported", set: empty, cap: CapClick, want: false, wantAll: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.set.Responds(tt.cap))
			assert.Equal(t, tt.wantAll, tt.set.RespondsAll(tt.cap))
		})
	}
}

func TestElementSet_UnsupportedOperations(t *testing.T) {
	root := loadedRoot(t)
	links, err := NewElementSet([]driver.Element{root}, nil).Search(driver.CSS("a"))
	require.NoError(t, err)

	err = links.Click()
	assert.ErrorIs(t, err, driver.ErrUnsupported)

	var de *DriverError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "click", de.Op)

	err = links.ClickAll()
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "click [0]", de.Op)
}

func TestFirstAndEach(t *testing.T) {
	root := loadedRoot(t)
	links, err := NewElementSet([]driver.Element{root}, nil).Search(driver.CSS("a"))
	require.NoError(t, err)

	href := func(el driver.Element) (string, error) { return el.Attribute("href") }

	first, err := First(links, "href", href)
	require.NoError(t, err)
	assert.Equal(t, "/a", first)

	all, err := Each(links, "href", href)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/b", "/c"}, all)

	boom := errors.New("boom")
	calls := 0
	partial, err := Each(links, "fail", func(el driver.Element) (int, error) {
		calls++
		if calls == 2 {
			return 0, boom
		}
		return calls, nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1}, partial)
	assert.Equal(t, 2, calls, "each stops at the first failure")
}

func TestRootContext(t *testing.T) {
	root := NewElementSet(nil, nil)
	child := NewElementSet(nil, root)
	grandchild := NewElementSet(nil, child)

	assert.Same(t, root, RootContext(grandchild))
	assert.Same(t, root, RootContext(root))
	assert.Nil(t, RootContext(nil))
}
