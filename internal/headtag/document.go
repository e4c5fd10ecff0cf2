package headtag

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document wraps a parsed HTML page whose head is managed declaratively.
type Document struct {
	root *html.Node
	head *html.Node
}

// ParseDocument parses a full HTML page and locates its head element.
// The HTML parser synthesizes a head when the source omits one.
func ParseDocument(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	head := findElement(root, atom.Head)
	if head == nil {
		return nil, errors.New("document has no head element")
	}
	return &Document{root: root, head: head}, nil
}

// Head returns the document head element.
func (d *Document) Head() *html.Node {
	if d == nil {
		return nil
	}
	return d.head
}

// Root returns the document root node.
func (d *Document) Root() *html.Node {
	if d == nil {
		return nil
	}
	return d.root
}

// Manager returns a new tag manager bound to the document head.
func (d *Document) Manager() *Manager {
	if d == nil {
		return nil
	}
	manager, _ := NewManager(d.head)
	return manager
}

// Render serializes the document.
func (d *Document) Render(w io.Writer) error {
	if d == nil || d.root == nil {
		return errors.New("document is empty")
	}
	if err := html.Render(w, d.root); err != nil {
		return fmt.Errorf("render document: %w", err)
	}
	return nil
}

// findElement returns the first element with the given atom, depth first.
func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if found := findElement(child, a); found != nil {
			return found
		}
	}
	return nil
}
