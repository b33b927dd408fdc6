package dom

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/dop251/goja"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func (d *Document) defineNode(obj *goja.Object, n *html.Node) {
	d.getter(obj, "nodeType", func() goja.Value { return d.rt.ToValue(d.nodeType(n)) })
	d.getter(obj, "nodeName", func() goja.Value { return d.rt.ToValue(d.nodeName(n)) })
	d.getter(obj, "parentNode", func() goja.Value { return d.value(n.Parent) })
	d.getter(obj, "parentElement", func() goja.Value {
		if n.Parent != nil && n.Parent.Type == html.ElementNode {
			return d.wrap(n.Parent)
		}
		return goja.Null()
	})
	d.getter(obj, "firstChild", func() goja.Value { return d.value(n.FirstChild) })
	d.getter(obj, "lastChild", func() goja.Value { return d.value(n.LastChild) })
	d.getter(obj, "nextSibling", func() goja.Value { return d.value(n.NextSibling) })
	d.getter(obj, "previousSibling", func() goja.Value { return d.value(n.PrevSibling) })
	d.getter(obj, "ownerDocument", func() goja.Value {
		if n == d.root {
			return goja.Null()
		}
		return d.document
	})
	d.getter(obj, "childNodes", func() goja.Value {
		var children []*html.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			children = append(children, c)
		}
		return d.array(children)
	})
	d.accessor(obj, "textContent",
		func() goja.Value {
			if n.Type == html.DocumentNode && !d.isFragment(n) {
				return goja.Null()
			}
			return d.rt.ToValue(textContent(n))
		},
		func(v goja.Value) {
			switch {
			case n.Type == html.TextNode || n.Type == html.CommentNode:
				n.Data = stringOrEmpty(v)
				return
			case n.Type == html.DocumentNode && !d.isFragment(n):
				return
			}
			d.replaceChildren(n)
			if s := stringOrEmpty(v); s != "" {
				n.AppendChild(&html.Node{Type: html.TextNode, Data: s})
			}
		},
	)

	d.method(obj, "appendChild", func(call goja.FunctionCall) goja.Value {
		child := d.argNode(call, 0)
		d.insert(n, child, nil)
		return call.Argument(0)
	})
	d.method(obj, "insertBefore", func(call goja.FunctionCall) goja.Value {
		child := d.argNode(call, 0)
		ref := d.Node(call.Argument(1))
		if ref == nil && !goja.IsNull(call.Argument(1)) && !goja.IsUndefined(call.Argument(1)) {
			panic(d.rt.NewTypeError("dom: argument 2 is not a Node"))
		}
		d.insert(n, child, ref)
		return call.Argument(0)
	})
	d.method(obj, "removeChild", func(call goja.FunctionCall) goja.Value {
		child := d.argNode(call, 0)
		if child.Parent != n {
			d.throw("NotFoundError", "the node to be removed is not a child of this node")
		}
		n.RemoveChild(child)
		return call.Argument(0)
	})
	d.method(obj, "replaceChild", func(call goja.FunctionCall) goja.Value {
		child := d.argNode(call, 0)
		old := d.argNode(call, 1)
		if old.Parent != n {
			d.throw("NotFoundError", "the node to be replaced is not a child of this node")
		}
		if isInclusiveAncestor(child, n) {
			d.throw("HierarchyRequestError", "the new child is an ancestor of the parent")
		}
		if child != old {
			ref := old.NextSibling
			if ref == child {
				ref = child.NextSibling
			}
			n.RemoveChild(old)
			d.insert(n, child, ref)
		}
		return call.Argument(1)
	})
	d.method(obj, "hasChildNodes", func(goja.FunctionCall) goja.Value {
		return d.rt.ToValue(n.FirstChild != nil)
	})
	d.method(obj, "contains", func(call goja.FunctionCall) goja.Value {
		other := d.Node(call.Argument(0))
		return d.rt.ToValue(other != nil && isInclusiveAncestor(n, other))
	})

	d.defineEvents(obj, n, func() []*goja.Object {
		var path []*goja.Object
		for p := n.Parent; p != nil; p = p.Parent {
			path = append(path, d.wrap(p))
		}
		if n == d.root || isInclusiveAncestor(d.root, n) {
			path = append(path, d.window)
		}
		return path
	})
}

func (d *Document) defineElement(obj *goja.Object, n *html.Node) {
	d.getter(obj, "tagName", func() goja.Value { return d.rt.ToValue(strings.ToUpper(n.Data)) })
	d.getter(obj, "localName", func() goja.Value { return d.rt.ToValue(n.Data) })
	d.accessor(obj, "id",
		func() goja.Value { return d.rt.ToValue(getAttr(n, "id")) },
		func(v goja.Value) { setAttr(n, "id", v.String()) },
	)
	d.accessor(obj, "className",
		func() goja.Value { return d.rt.ToValue(getAttr(n, "class")) },
		func(v goja.Value) { setAttr(n, "class", v.String()) },
	)
	d.accessor(obj, "innerHTML",
		func() goja.Value { return d.rt.ToValue(renderChildren(n)) },
		func(v goja.Value) {
			nodes, err := html.ParseFragment(strings.NewReader(stringOrEmpty(v)), n)
			if err != nil {
				d.throw("SyntaxError", "%v", err)
			}
			d.replaceChildren(n)
			for _, c := range nodes {
				n.AppendChild(c)
			}
		},
	)
	d.getter(obj, "outerHTML", func() goja.Value {
		var b strings.Builder
		_ = html.Render(&b, n)
		return d.rt.ToValue(b.String())
	})
	d.getter(obj, "children", func() goja.Value {
		var children []*html.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				children = append(children, c)
			}
		}
		return d.array(children)
	})
	_ = obj.Set("style", d.rt.NewObject())

	d.method(obj, "getAttribute", func(call goja.FunctionCall) goja.Value {
		key := strings.ToLower(call.Argument(0).String())
		for _, a := range n.Attr {
			if a.Namespace == "" && a.Key == key {
				return d.rt.ToValue(a.Val)
			}
		}
		return goja.Null()
	})
	d.method(obj, "setAttribute", func(call goja.FunctionCall) goja.Value {
		setAttr(n, strings.ToLower(call.Argument(0).String()), call.Argument(1).String())
		return goja.Undefined()
	})
	d.method(obj, "removeAttribute", func(call goja.FunctionCall) goja.Value {
		removeAttr(n, strings.ToLower(call.Argument(0).String()))
		return goja.Undefined()
	})
	d.method(obj, "hasAttribute", func(call goja.FunctionCall) goja.Value {
		key := strings.ToLower(call.Argument(0).String())
		for _, a := range n.Attr {
			if a.Namespace == "" && a.Key == key {
				return d.rt.ToValue(true)
			}
		}
		return d.rt.ToValue(false)
	})

	d.defineQueries(obj, n)
}

func (d *Document) defineDocument(obj *goja.Object, n *html.Node) {
	d.getter(obj, "documentElement", func() goja.Value { return d.value(childElement(n, "html")) })
	d.getter(obj, "head", func() goja.Value { return d.value(childElement(childElement(n, "html"), "head")) })
	d.getter(obj, "body", func() goja.Value { return d.value(d.Body()) })
	d.getter(obj, "defaultView", func() goja.Value { return d.window })

	d.method(obj, "createElement", func(call goja.FunctionCall) goja.Value {
		return d.wrap(newElement(strings.ToLower(call.Argument(0).String()), ""))
	})
	d.method(obj, "createElementNS", func(call goja.FunctionCall) goja.Value {
		return d.wrap(newElement(call.Argument(1).String(), stringOrEmpty(call.Argument(0))))
	})
	d.method(obj, "createTextNode", func(call goja.FunctionCall) goja.Value {
		return d.wrap(&html.Node{Type: html.TextNode, Data: call.Argument(0).String()})
	})
	d.method(obj, "createComment", func(call goja.FunctionCall) goja.Value {
		return d.wrap(&html.Node{Type: html.CommentNode, Data: call.Argument(0).String()})
	})
	d.method(obj, "createDocumentFragment", func(goja.FunctionCall) goja.Value {
		frag := &html.Node{Type: html.DocumentNode}
		d.fragments[frag] = struct{}{}
		return d.wrap(frag)
	})
}

func (d *Document) defineCharacterData(obj *goja.Object, n *html.Node) {
	get := func() goja.Value { return d.rt.ToValue(n.Data) }
	set := func(v goja.Value) { n.Data = stringOrEmpty(v) }
	d.accessor(obj, "data", get, set)
	d.accessor(obj, "nodeValue", get, set)
	d.getter(obj, "length", func() goja.Value { return d.rt.ToValue(len([]rune(n.Data))) })
}

func (d *Document) defineQueries(obj *goja.Object, n *html.Node) {
	d.method(obj, "querySelector", func(call goja.FunctionCall) goja.Value {
		return d.value(cascadia.Query(n, d.selector(call)))
	})
	d.method(obj, "querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return d.array(cascadia.QueryAll(n, d.selector(call)))
	})
	d.method(obj, "getElementsByTagName", func(call goja.FunctionCall) goja.Value {
		return d.array(elementsByTagName(n, call.Argument(0).String()))
	})
	d.method(obj, "getElementById", func(call goja.FunctionCall) goja.Value {
		id := call.Argument(0).String()
		for _, e := range elementsByTagName(n, "*") {
			if getAttr(e, "id") == id {
				return d.wrap(e)
			}
		}
		return goja.Null()
	})
}

func (d *Document) selector(call goja.FunctionCall) cascadia.Matcher {
	sel, err := cascadia.ParseGroup(call.Argument(0).String())
	if err != nil {
		d.throw("SyntaxError", "%v", err)
	}
	return sel
}

// insert moves child (or the children of a fragment) into parent, before
// ref, or at the end if ref is nil.
func (d *Document) insert(parent, child, ref *html.Node) {
	if isInclusiveAncestor(child, parent) {
		d.throw("HierarchyRequestError", "the new child is an ancestor of the parent")
	}
	if child == d.root || (child.Type == html.DocumentNode && !d.isFragment(child)) {
		d.throw("HierarchyRequestError", "a document cannot be inserted")
	}
	if ref != nil && ref.Parent != parent {
		d.throw("NotFoundError", "the reference node is not a child of this node")
	}

	if d.isFragment(child) {
		for c := child.FirstChild; c != nil; {
			next := c.NextSibling
			child.RemoveChild(c)
			parent.InsertBefore(c, ref)
			c = next
		}
		return
	}

	if ref == child {
		ref = child.NextSibling
	}
	if child.Parent != nil {
		child.Parent.RemoveChild(child)
	}
	parent.InsertBefore(child, ref)
}

func (d *Document) replaceChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

func newElement(tag, namespace string) *html.Node {
	return &html.Node{
		Type:      html.ElementNode,
		Data:      tag,
		DataAtom:  atom.Lookup([]byte(tag)),
		Namespace: namespaceName(namespace),
	}
}

// namespaceName maps namespace URIs to the short names x/net/html uses.
func namespaceName(uri string) string {
	switch uri {
	case "", "http://www.w3.org/1999/xhtml":
		return ""
	case "http://www.w3.org/2000/svg":
		return "svg"
	case "http://www.w3.org/1998/Math/MathML":
		return "math"
	default:
		return uri
	}
}

func isInclusiveAncestor(ancestor, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func stringOrEmpty(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}
