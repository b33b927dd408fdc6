// Package dom implements a small, in-memory HTML document for goja runtimes.
//
// It is not a browser DOM. It provides the subset that compiled Elm programs
// touch during start-up and rendering: node creation and tree mutation,
// attributes, text, inner/outer HTML, selector queries and listener
// registration, backed by [golang.org/x/net/html] nodes. Selector queries use
// [github.com/andybalholm/cascadia].
//
// A [Document] is bound to exactly one [goja.Runtime], and must only be used
// from the goroutine that owns that runtime.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

// Node types, as exposed through the nodeType property.
const (
	ElementNode  = 1
	TextNode     = 3
	CommentNode  = 8
	DocumentNode = 9
	DoctypeNode  = 10
	FragmentNode = 11
)

const blankDocument = `<!DOCTYPE html><html><head></head><body></body></html>`

// Viewport dimensions reported by the window.
const (
	InnerWidth  = 1024
	InnerHeight = 768
)

// Document is a DOM document and its window, as seen from JavaScript.
type Document struct {
	// OnListenerError is called with any exception thrown by an event
	// listener. Listener exceptions never propagate to dispatchEvent.
	OnListenerError func(err error)

	rt        *goja.Runtime
	root      *html.Node
	windowKey *html.Node
	document  *goja.Object
	window    *goja.Object
	objects   map[*html.Node]*goja.Object
	nodes     map[*goja.Object]*html.Node
	fragments map[*html.Node]struct{}
	listeners map[*html.Node]map[string][]goja.Value
}

// New builds an empty HTML document (doctype, html, head and body) bound to
// rt. Nothing is installed in the runtime's global object.
func New(rt *goja.Runtime) (*Document, error) {
	if rt == nil {
		return nil, fmt.Errorf("dom: runtime cannot be nil")
	}

	root, err := html.Parse(strings.NewReader(blankDocument))
	if err != nil {
		return nil, fmt.Errorf("dom: parse blank document: %w", err)
	}

	d := &Document{
		rt:        rt,
		root:      root,
		windowKey: &html.Node{},
		objects:   make(map[*html.Node]*goja.Object),
		nodes:     make(map[*goja.Object]*html.Node),
		fragments: make(map[*html.Node]struct{}),
		listeners: make(map[*html.Node]map[string][]goja.Value),
	}
	d.document = d.wrap(root)
	d.window = d.newWindow()

	return d, nil
}

// Object returns the JavaScript document object.
func (d *Document) Object() *goja.Object { return d.document }

// Window returns the JavaScript window object. Its document property is
// [Document.Object].
func (d *Document) Window() *goja.Object { return d.window }

// Root returns the underlying document node.
func (d *Document) Root() *html.Node { return d.root }

// Body returns the body element, or nil if scripts removed it.
func (d *Document) Body() *html.Node {
	return childElement(childElement(d.root, "html"), "body")
}

// Node returns the node behind a JavaScript value, or nil if v is not a
// node of this document.
func (d *Document) Node(v goja.Value) *html.Node {
	if obj, ok := v.(*goja.Object); ok {
		return d.nodes[obj]
	}
	return nil
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// Query returns the first descendant of the document matching a CSS
// selector, or nil.
func (d *Document) Query(selector string) (*html.Node, error) {
	sel, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, err
	}
	return cascadia.Query(d.root, sel), nil
}

func (d *Document) wrap(n *html.Node) *goja.Object {
	if obj, ok := d.objects[n]; ok {
		return obj
	}

	obj := d.rt.NewObject()
	d.objects[n] = obj
	d.nodes[obj] = n

	d.defineNode(obj, n)
	switch n.Type {
	case html.ElementNode:
		d.defineElement(obj, n)
	case html.DocumentNode:
		if !d.isFragment(n) {
			d.defineDocument(obj, n)
		}
		d.defineQueries(obj, n)
	case html.TextNode, html.CommentNode:
		d.defineCharacterData(obj, n)
	}

	return obj
}

func (d *Document) value(n *html.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	return d.wrap(n)
}

func (d *Document) array(nodes []*html.Node) goja.Value {
	values := make([]any, len(nodes))
	for i, n := range nodes {
		values[i] = d.wrap(n)
	}
	return d.rt.NewArray(values...)
}

func (d *Document) argNode(call goja.FunctionCall, i int) *html.Node {
	n := d.Node(call.Argument(i))
	if n == nil {
		panic(d.rt.NewTypeError("dom: argument %d is not a Node", i+1))
	}
	return n
}

func (d *Document) isFragment(n *html.Node) bool {
	_, ok := d.fragments[n]
	return ok
}

// throw raises a DOMException-like error with the given name.
func (d *Document) throw(name, format string, args ...any) {
	err := d.rt.NewGoError(fmt.Errorf("%s: %s", name, fmt.Sprintf(format, args...)))
	_ = err.Set("name", name)
	panic(err)
}

func (d *Document) getter(obj *goja.Object, name string, get func() goja.Value) {
	_ = obj.DefineAccessorProperty(
		name,
		d.rt.ToValue(func(goja.FunctionCall) goja.Value { return get() }),
		nil,
		goja.FLAG_TRUE,
		goja.FLAG_TRUE,
	)
}

func (d *Document) accessor(obj *goja.Object, name string, get func() goja.Value, set func(v goja.Value)) {
	_ = obj.DefineAccessorProperty(
		name,
		d.rt.ToValue(func(goja.FunctionCall) goja.Value { return get() }),
		d.rt.ToValue(func(call goja.FunctionCall) goja.Value {
			set(call.Argument(0))
			return goja.Undefined()
		}),
		goja.FLAG_TRUE,
		goja.FLAG_TRUE,
	)
}

func (d *Document) method(obj *goja.Object, name string, fn func(call goja.FunctionCall) goja.Value) {
	_ = obj.Set(name, fn)
}

func (d *Document) nodeType(n *html.Node) int {
	switch n.Type {
	case html.ElementNode:
		return ElementNode
	case html.TextNode:
		return TextNode
	case html.CommentNode:
		return CommentNode
	case html.DoctypeNode:
		return DoctypeNode
	case html.DocumentNode:
		if d.isFragment(n) {
			return FragmentNode
		}
		return DocumentNode
	default:
		return 0
	}
}

func (d *Document) nodeName(n *html.Node) string {
	switch n.Type {
	case html.ElementNode:
		return strings.ToUpper(n.Data)
	case html.TextNode:
		return "#text"
	case html.CommentNode:
		return "#comment"
	case html.DoctypeNode:
		return n.Data
	case html.DocumentNode:
		if d.isFragment(n) {
			return "#document-fragment"
		}
		return "#document"
	default:
		return ""
	}
}

func childElement(n *html.Node, tag string) *html.Node {
	if n == nil {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode || n.Type == html.CommentNode {
		return n.Data
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				b.WriteString(c.Data)
			case html.ElementNode:
				walk(c)
			}
		}
	}
	walk(n)
	return b.String()
}

func renderChildren(n *html.Node) string {
	var b bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&b, c)
	}
	return b.String()
}

func elementsByTagName(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				if tag == "*" || strings.EqualFold(c.Data, tag) {
					out = append(out, c)
				}
				walk(c)
			}
		}
	}
	walk(n)
	return out
}
