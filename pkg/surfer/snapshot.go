package surfer

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// DefaultSnapshotLength caps the page source kept on diagnostic errors.
const DefaultSnapshotLength = 32 * 1024

// Snapshot is a cleaned copy of the page source taken when an error is built.
type Snapshot struct {
	Title     string
	HTML      string
	Truncated bool
}

// takeSnapshot strips scripts, styles and noise attributes from rawHTML and
// truncates the result to maxLength characters of output.
func takeSnapshot(rawHTML string, maxLength int) (*Snapshot, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	w := &snapshotWriter{max: maxLength}
	snap := &Snapshot{Title: findTitle(doc)}
	snap.Truncated = w.node(doc, 0)
	snap.HTML = w.b.String()
	return snap, nil
}

type snapshotWriter struct {
	b   strings.Builder
	n   int
	max int
}

// node writes n and reports whether output was truncated.
func (w *snapshotWriter) node(n *html.Node, depth int) bool {
	if w.n >= w.max {
		return true
	}

	switch n.Type {
	case html.CommentNode, html.DoctypeNode:
		return false
	case html.TextNode:
		return w.text(n.Data)
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if skippedTags[tag] {
			return false
		}
		return w.element(n, tag, depth)
	}
	return w.children(n, depth)
}

func (w *snapshotWriter) text(data string) bool {
	text := strings.TrimSpace(data)
	if text == "" {
		return false
	}
	if w.n+len(text) > w.max {
		w.b.WriteString(text[:w.max-w.n])
		w.b.WriteString("...")
		w.n = w.max
		return true
	}
	w.b.WriteString(text)
	w.n += len(text)
	return false
}

func (w *snapshotWriter) element(n *html.Node, tag string, depth int) bool {
	if depth > 0 {
		w.b.WriteString("\n")
		w.b.WriteString(strings.Repeat("  ", depth))
	}

	w.b.WriteString("<" + tag)
	for _, attr := range n.Attr {
		if keepAttribute(attr.Key) {
			fmt.Fprintf(&w.b, ` %s="%s"`, attr.Key, html.EscapeString(attr.Val))
		}
	}
	w.b.WriteString(">")
	w.n += len(tag) + 2

	truncated := w.children(n, depth+1)
	if !voidTags[tag] {
		w.b.WriteString("</" + tag + ">")
		w.n += len(tag) + 3
	}
	return truncated
}

func (w *snapshotWriter) children(n *html.Node, depth int) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if w.node(c, depth) {
			return true
		}
	}
	return false
}

var skippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"svg":      true,
	"iframe":   true,
	"object":   true,
	"embed":    true,
}

var voidTags = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// keepAttribute keeps attributes that help locate elements from a failure report.
func keepAttribute(name string) bool {
	name = strings.ToLower(name)
	switch name {
	case "id", "class", "name", "type", "role", "href", "action", "value", "placeholder", "aria-label":
		return true
	}
	return strings.HasPrefix(name, "data-")
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			return strings.TrimSpace(n.FirstChild.Data)
		}
		return ""
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if title := findTitle(c); title != "" {
			return title
		}
	}
	return ""
}
