package dom

import (
	"errors"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// ErrNotChild is returned when removing a node from a parent it does not belong to.
var ErrNotChild = errors.New("dom: node is not a child of this element")

// Element is a handle over one node of a Document. See the package
// documentation for how long a handle stays the same.
//
// Despite the name, an Element may wrap any node type (text, comment, or the
// document node itself); Type reports which.
type Element struct {
	doc  *Document
	node *html.Node

	// observers is guarded by doc.mu.
	observers []*registration

	lmu       sync.Mutex
	listeners map[string][]*listener
	nextID    int
}

// Document returns the document that owns the element.
func (e *Element) Document() *Document {
	return e.doc
}

// Node exposes the underlying html node. Writes made directly to it bypass
// locking and mutation observers.
func (e *Element) Node() *html.Node {
	return e.node
}

// Type returns the node type of the wrapped node.
func (e *Element) Type() html.NodeType {
	return e.node.Type
}

// IsElement reports whether the handle wraps an element node.
func (e *Element) IsElement() bool {
	return e.node.Type == html.ElementNode
}

// TagName returns the lower-case tag name, or "" for non-element nodes.
func (e *Element) TagName() string {
	if e.node.Type != html.ElementNode {
		return ""
	}
	return e.node.Data
}

// Attribute returns the value of the named attribute and whether it is present.
func (e *Element) Attribute(name string) (string, bool) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return attr(e.node, name)
}

// GetAttribute returns the value of the named attribute, or "" when absent.
func (e *Element) GetAttribute(name string) string {
	v, _ := e.Attribute(name)
	return v
}

// HasAttribute reports whether the named attribute is present.
func (e *Element) HasAttribute(name string) bool {
	_, ok := e.Attribute(name)
	return ok
}

// Attributes returns a copy of the element's attributes in document order.
func (e *Element) Attributes() []html.Attribute {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()

	out := make([]html.Attribute, len(e.node.Attr))
	copy(out, e.node.Attr)
	return out
}

// SetAttribute adds or replaces an attribute and queues a mutation record
// for interested observers.
func (e *Element) SetAttribute(name, value string) {
	name = strings.ToLower(name)

	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	old, had := attr(e.node, name)
	replaced := false
	for i := range e.node.Attr {
		if e.node.Attr[i].Namespace == "" && e.node.Attr[i].Key == name {
			e.node.Attr[i].Val = value
			replaced = true
			break
		}
	}
	if !replaced {
		e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
	}
	e.queueAttributeRecord(name, old, had)
}

// RemoveAttribute deletes an attribute. Removing an absent attribute is a no-op
// and produces no mutation record.
func (e *Element) RemoveAttribute(name string) {
	name = strings.ToLower(name)

	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	for i, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			e.node.Attr = append(e.node.Attr[:i], e.node.Attr[i+1:]...)
			e.queueAttributeRecord(name, a.Val, true)
			return
		}
	}
}

// Parent returns the parent node handle, or nil for detached or root nodes.
func (e *Element) Parent() *Element {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.doc.wrap(e.node.Parent)
}

// ChildNodes returns handles for all child nodes, including text nodes.
func (e *Element) ChildNodes() []*Element {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()

	var out []*Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, e.doc.wrap(c))
	}
	return out
}

// Children returns handles for the element children only.
func (e *Element) Children() []*Element {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()

	var out []*Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, e.doc.wrap(c))
		}
	}
	return out
}

// FirstChild returns the first child node, or nil.
func (e *Element) FirstChild() *Element {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.doc.wrap(e.node.FirstChild)
}

// HasChildNodes reports whether the element has any child nodes.
func (e *Element) HasChildNodes() bool {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.node.FirstChild != nil
}

// Contains reports whether other is e or one of its descendants.
func (e *Element) Contains(other *Element) bool {
	if other == nil {
		return false
	}

	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()

	for n := other.node; n != nil; n = n.Parent {
		if n == e.node {
			return true
		}
	}
	return false
}

// AppendChild moves child to the end of e's child list, detaching it from any
// previous parent first.
func (e *Element) AppendChild(child *Element) {
	e.doc.mu.Lock()
	if child.node.Parent != nil {
		child.node.Parent.RemoveChild(child.node)
	}
	e.node.AppendChild(child.node)
	e.doc.mu.Unlock()

	e.doc.retain([]*html.Node{child.node}, true)
}

// RemoveChild detaches child from e.
func (e *Element) RemoveChild(child *Element) error {
	e.doc.mu.Lock()
	if child.node.Parent != e.node {
		e.doc.mu.Unlock()
		return ErrNotChild
	}
	e.node.RemoveChild(child.node)
	e.doc.mu.Unlock()

	e.doc.notifyDetached([]*html.Node{child.node})
	return nil
}

// Clear removes every child node.
func (e *Element) Clear() {
	e.ReplaceChildren()
}

// ReplaceChildren removes every child node and appends children in order, as
// a single atomic step with respect to other document operations.
func (e *Element) ReplaceChildren(children ...*Element) {
	e.doc.mu.Lock()
	removed := detachChildren(e.node)
	added := make([]*html.Node, 0, len(children))
	for _, child := range children {
		if child.node.Parent != nil {
			child.node.Parent.RemoveChild(child.node)
		}
		e.node.AppendChild(child.node)
		added = append(added, child.node)
	}
	e.doc.mu.Unlock()

	// A child passed back in is not detached.
	e.doc.notifyDetached(removed)
	e.doc.retain(added, true)
}

// CloneNode copies the node, and its whole subtree when deep is set. The
// clone is detached and carries no listeners or observers.
func (e *Element) CloneNode(deep bool) *Element {
	e.doc.mu.RLock()
	clone := cloneNode(e.node, deep)
	e.doc.mu.RUnlock()
	return e.doc.wrap(clone)
}

// TextContent returns the concatenated text of the node and its descendants.
func (e *Element) TextContent() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()

	var sb strings.Builder
	walk(e.node, func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
	})
	return sb.String()
}

// SetTextContent replaces all children with a single text node.
func (e *Element) SetTextContent(text string) {
	if text == "" {
		e.ReplaceChildren()
		return
	}
	e.ReplaceChildren(e.doc.CreateTextNode(text))
}

// InnerHTML serializes the element's children.
func (e *Element) InnerHTML() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()

	var sb strings.Builder
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			return sb.String()
		}
	}
	return sb.String()
}

// SetInnerHTML parses markup as an inert fragment and replaces the children
// with the result.
func (e *Element) SetInnerHTML(markup string) error {
	nodes, err := e.doc.ParseFragment(markup)
	if err != nil {
		return err
	}
	e.ReplaceChildren(nodes...)
	return nil
}

// OuterHTML serializes the element including its own tag.
func (e *Element) OuterHTML() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()

	var sb strings.Builder
	if err := html.Render(&sb, e.node); err != nil {
		return ""
	}
	return sb.String()
}

// ClassList returns a view over the element's class attribute.
func (e *Element) ClassList() ClassList {
	return ClassList{el: e}
}

// Dataset returns a live view over the element's data-* attributes.
func (e *Element) Dataset() Dataset {
	return Dataset{el: e}
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// hasState reports whether the handle carries listeners or observers.
// Caller holds doc.mu.
func (e *Element) hasState() bool {
	if len(e.observers) > 0 {
		return true
	}
	e.lmu.Lock()
	defer e.lmu.Unlock()
	for _, list := range e.listeners {
		if len(list) > 0 {
			return true
		}
	}
	return false
}

// detachChildren unlinks every child of n and returns them. Caller holds the
// document write lock.
func detachChildren(n *html.Node) []*html.Node {
	var removed []*html.Node
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		removed = append(removed, c)
		c = next
	}
	return removed
}

func cloneNode(n *html.Node, deep bool) *html.Node {
	clone := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      make([]html.Attribute, len(n.Attr)),
	}
	copy(clone.Attr, n.Attr)

	if deep {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			clone.AppendChild(cloneNode(c, true))
		}
	}
	return clone
}
