// Package headtag declaratively manages single elements inside an HTML
// document head.
//
// A Manager owns one TagSpec bound to a document head. Whenever any spec
// field changes the manager reconciles the head: it locates the first
// element matching the spec selector, creates and appends one when none
// exists, then overlays the spec attributes and text content. Attributes
// absent from the spec are never removed, so repeated reconciles converge
// on the same element instead of duplicating it.
package headtag

import (
	"errors"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Attribute is one name/value pair applied to the managed element.
// Pairs with an empty name or an empty value are skipped.
type Attribute struct {
	Name  string
	Value string
}

// TagSpec describes the desired state of one managed head element.
type TagSpec struct {
	// TagName is the element type created when the selector matches nothing.
	TagName string
	// Selector locates the managed element inside the head.
	Selector string
	// Attributes are overlaid onto the element in order.
	Attributes []Attribute
	// InnerText replaces the element text content when non-empty.
	InnerText string
}

// Manager keeps one head element in sync with a TagSpec.
type Manager struct {
	head *html.Node
	spec TagSpec
}

// NewManager binds a manager to a document head element.
func NewManager(head *html.Node) (*Manager, error) {
	if head == nil {
		return nil, errors.New("head element is required")
	}
	return &Manager{head: head}, nil
}

// Spec returns a copy of the current tag spec.
func (m *Manager) Spec() TagSpec {
	if m == nil {
		return TagSpec{}
	}
	spec := m.spec
	spec.Attributes = append([]Attribute(nil), m.spec.Attributes...)
	return spec
}

// SetTagName updates the element type and reconciles the head.
func (m *Manager) SetTagName(name string) error {
	if m == nil {
		return errors.New("manager is nil")
	}
	m.spec.TagName = name
	return m.reconcile()
}

// SetSelector updates the element selector and reconciles the head.
func (m *Manager) SetSelector(selector string) error {
	if m == nil {
		return errors.New("manager is nil")
	}
	m.spec.Selector = selector
	return m.reconcile()
}

// SetAttributes updates the attribute list and reconciles the head.
func (m *Manager) SetAttributes(attributes []Attribute) error {
	if m == nil {
		return errors.New("manager is nil")
	}
	m.spec.Attributes = append([]Attribute(nil), attributes...)
	return m.reconcile()
}

// SetInnerText updates the text content and reconciles the head.
func (m *Manager) SetInnerText(text string) error {
	if m == nil {
		return errors.New("manager is nil")
	}
	m.spec.InnerText = text
	return m.reconcile()
}

// Apply replaces the whole spec and reconciles the head once.
func (m *Manager) Apply(spec TagSpec) error {
	if m == nil {
		return errors.New("manager is nil")
	}
	spec.Attributes = append([]Attribute(nil), spec.Attributes...)
	m.spec = spec
	return m.reconcile()
}

// reconcile synchronizes the head with the current spec. A spec without a
// tag name or selector is not an error; the head is left untouched until
// both are set.
func (m *Manager) reconcile() error {
	tagName := strings.TrimSpace(m.spec.TagName)
	selector := strings.TrimSpace(m.spec.Selector)
	if tagName == "" || selector == "" {
		return nil
	}

	sel, err := cascadia.Parse(selector)
	if err != nil {
		return err
	}

	target := cascadia.Query(m.head, sel)
	if target == nil {
		tag := strings.ToLower(tagName)
		target = &html.Node{
			Type:     html.ElementNode,
			Data:     tag,
			DataAtom: atom.Lookup([]byte(tag)),
		}
		m.head.AppendChild(target)
	}

	for _, attr := range m.spec.Attributes {
		if attr.Name == "" || attr.Value == "" {
			continue
		}
		setAttribute(target, attr.Name, attr.Value)
	}

	if m.spec.InnerText != "" {
		setTextContent(target, m.spec.InnerText)
	}
	return nil
}

// setAttribute overwrites an existing attribute value or appends a new one.
func setAttribute(n *html.Node, name, value string) {
	for i, attr := range n.Attr {
		if attr.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

// setTextContent replaces all children with a single text node.
func setTextContent(n *html.Node, text string) {
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
	n.AppendChild(&html.Node{
		Type: html.TextNode,
		Data: text,
	})
}
