package dom

import (
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"weak"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const emptyDocument = "<!DOCTYPE html><html><head></head><body></body></html>"

// DetachFunc is called for each element handle in a subtree that was removed
// from its parent.
type DetachFunc func(el *Element)

// Document is a mutable HTML tree shared by all components rendered into it.
type Document struct {
	mu   sync.RWMutex
	root *html.Node

	// elements maps nodes to their handles. Entries are weak: a handle
	// nobody references is collected and its entry removed. pinned keeps
	// handles that carry listeners or observers alive while their node is
	// in the tree. Both are guarded by emu so that handles can be created
	// while mu is only read-locked.
	emu      sync.Mutex
	elements map[*html.Node]weak.Pointer[Element]
	pinned   map[*html.Node]*Element

	dmu      sync.RWMutex
	detachID int
	detach   map[int]DetachFunc

	delivery *scheduler
}

// NewDocument returns an empty document with html, head, and body elements.
func NewDocument() *Document {
	doc, err := ParseString(emptyDocument)
	if err != nil {
		// The literal above always parses.
		panic(fmt.Sprintf("dom: parsing empty document: %v", err))
	}
	return doc
}

// Parse reads a full HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	return newDocument(root), nil
}

// ParseString parses a full HTML document held in a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

func newDocument(root *html.Node) *Document {
	d := &Document{
		root:     root,
		elements: make(map[*html.Node]weak.Pointer[Element]),
		pinned:   make(map[*html.Node]*Element),
		detach:   make(map[int]DetachFunc),
		delivery: newScheduler(),
	}
	go d.delivery.run()
	return d
}

// Close stops mutation observer delivery. Records queued after Close are
// dropped.
func (d *Document) Close() {
	d.delivery.stop()
}

// Root returns the handle of the document node itself.
func (d *Document) Root() *Element {
	return d.wrap(d.root)
}

// DocumentElement returns the <html> element, or the document node when the
// tree has none.
func (d *Document) DocumentElement() *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return d.wrap(c)
		}
	}
	return d.wrap(d.root)
}

// Body returns the <body> element, falling back to the document element.
func (d *Document) Body() *Element {
	d.mu.RLock()
	body := findFirst(d.root, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Body
	})
	d.mu.RUnlock()

	if body == nil {
		return d.DocumentElement()
	}
	return d.wrap(body)
}

// CreateElement returns a new detached element with the given tag name.
func (d *Document) CreateElement(tag string) *Element {
	tag = strings.ToLower(tag)
	return d.wrap(&html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	})
}

// CreateTextNode returns a new detached text node.
func (d *Document) CreateTextNode(text string) *Element {
	return d.wrap(&html.Node{Type: html.TextNode, Data: text})
}

// ParseFragment parses markup in an inert template context and returns the
// resulting top-level nodes, detached from any tree.
func (d *Document) ParseFragment(markup string) ([]*Element, error) {
	context := &html.Node{
		Type:     html.ElementNode,
		Data:     "template",
		DataAtom: atom.Template,
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil, fmt.Errorf("parsing fragment: %w", err)
	}

	result := make([]*Element, 0, len(nodes))
	for _, n := range nodes {
		result = append(result, d.wrap(n))
	}
	return result, nil
}

// Render serializes the whole document.
func (d *Document) Render(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return html.Render(w, d.root)
}

// String returns the serialized document.
func (d *Document) String() string {
	var sb strings.Builder
	if err := d.Render(&sb); err != nil {
		return ""
	}
	return sb.String()
}

// OnDetach registers fn to run for every element handle removed from the
// tree. The returned function unregisters it.
func (d *Document) OnDetach(fn DetachFunc) func() {
	d.dmu.Lock()
	defer d.dmu.Unlock()

	id := d.detachID
	d.detachID++
	d.detach[id] = fn

	return func() {
		d.dmu.Lock()
		defer d.dmu.Unlock()
		delete(d.detach, id)
	}
}

// notifyDetached runs detach callbacks for every known handle under the
// removed nodes that are still without a parent. Must be called without
// holding mu.
func (d *Document) notifyDetached(removed []*html.Node) {
	if len(removed) == 0 {
		return
	}

	var handles []*Element
	d.mu.RLock()
	d.emu.Lock()
	for _, n := range removed {
		// Re-appended or moved since it was unlinked.
		if n.Parent != nil {
			continue
		}
		walk(n, func(c *html.Node) {
			delete(d.pinned, c)
			if el := d.elements[c].Value(); el != nil {
				handles = append(handles, el)
			}
		})
	}
	d.emu.Unlock()
	d.mu.RUnlock()

	if len(handles) == 0 {
		return
	}

	d.dmu.RLock()
	callbacks := make([]DetachFunc, 0, len(d.detach))
	for _, fn := range d.detach {
		callbacks = append(callbacks, fn)
	}
	d.dmu.RUnlock()

	for _, el := range handles {
		for _, fn := range callbacks {
			fn(el)
		}
	}
}

// retain pins the handles under nodes that carry listeners or observers,
// for nodes in the tree. deep also visits descendants. Must be called
// without holding mu.
func (d *Document) retain(nodes []*html.Node, deep bool) {
	var keep []*Element
	d.mu.RLock()
	for _, n := range nodes {
		if !d.attached(n) {
			continue
		}
		visit := func(c *html.Node) {
			if el := d.lookup(c); el != nil && el.hasState() {
				keep = append(keep, el)
			}
		}
		if deep {
			walk(n, visit)
		} else {
			visit(n)
		}
	}
	d.mu.RUnlock()

	if len(keep) == 0 {
		return
	}
	d.emu.Lock()
	for _, el := range keep {
		d.pinned[el.node] = el
	}
	d.emu.Unlock()
}

// attached reports whether n is in the tree. Caller holds mu.
func (d *Document) attached(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == d.root {
			return true
		}
	}
	return false
}

type handleKey struct {
	node   *html.Node
	handle weak.Pointer[Element]
}

// wrap returns the handle for n, creating it when no live one exists.
func (d *Document) wrap(n *html.Node) *Element {
	if n == nil {
		return nil
	}

	d.emu.Lock()
	defer d.emu.Unlock()

	if el := d.elements[n].Value(); el != nil {
		return el
	}
	el := &Element{doc: d, node: n}
	wp := weak.Make(el)
	d.elements[n] = wp
	runtime.AddCleanup(el, d.dropHandle, handleKey{node: n, handle: wp})
	return el
}

// dropHandle removes the entry of a collected handle unless a newer handle
// replaced it.
func (d *Document) dropHandle(k handleKey) {
	d.emu.Lock()
	defer d.emu.Unlock()
	if d.elements[k.node] == k.handle {
		delete(d.elements, k.node)
	}
}

// lookup returns the existing handle for n without creating one.
func (d *Document) lookup(n *html.Node) *Element {
	d.emu.Lock()
	defer d.emu.Unlock()
	return d.elements[n].Value()
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}
