package dom

import (
	"slices"

	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

// defineEvents installs addEventListener, removeEventListener and
// dispatchEvent. The parents func returns the objects an event bubbles
// through after the target itself, nearest first.
//
// There is no capture phase and listener options are ignored. Propagation
// stops once cancelBubble is set.
func (d *Document) defineEvents(obj *goja.Object, key *html.Node, parents func() []*goja.Object) {
	d.method(obj, "addEventListener", func(call goja.FunctionCall) goja.Value {
		eventType := call.Argument(0).String()
		listener := call.Argument(1)
		if _, ok := goja.AssertFunction(listener); !ok {
			return goja.Undefined()
		}
		byType := d.listeners[key]
		if byType == nil {
			byType = make(map[string][]goja.Value)
			d.listeners[key] = byType
		}
		for _, existing := range byType[eventType] {
			if existing.SameAs(listener) {
				return goja.Undefined()
			}
		}
		byType[eventType] = append(byType[eventType], listener)
		return goja.Undefined()
	})

	d.method(obj, "removeEventListener", func(call goja.FunctionCall) goja.Value {
		eventType := call.Argument(0).String()
		listener := call.Argument(1)
		byType := d.listeners[key]
		if byType == nil {
			return goja.Undefined()
		}
		byType[eventType] = slices.DeleteFunc(byType[eventType], func(v goja.Value) bool {
			return v.SameAs(listener)
		})
		return goja.Undefined()
	})

	d.method(obj, "dispatchEvent", func(call goja.FunctionCall) goja.Value {
		event, ok := call.Argument(0).(*goja.Object)
		if !ok {
			panic(d.rt.NewTypeError("dom: dispatchEvent requires an event object"))
		}
		return d.rt.ToValue(d.dispatch(obj, event, parents))
	})
}

func (d *Document) dispatch(target *goja.Object, event *goja.Object, parents func() []*goja.Object) bool {
	eventType := event.Get("type").String()
	_ = event.Set("target", target)

	path := []*goja.Object{target}
	if bubbles := event.Get("bubbles"); bubbles != nil && bubbles.ToBoolean() {
		path = append(path, parents()...)
	}

	for _, current := range path {
		_ = event.Set("currentTarget", current)
		var key *html.Node
		if current == d.window {
			key = d.windowKey
		} else {
			key = d.nodes[current]
		}
		for _, listener := range slices.Clone(d.listeners[key][eventType]) {
			fn, _ := goja.AssertFunction(listener)
			if _, err := fn(current, event); err != nil && d.OnListenerError != nil {
				d.OnListenerError(err)
			}
		}
		if stop := event.Get("cancelBubble"); stop != nil && stop.ToBoolean() {
			break
		}
	}

	_ = event.Set("currentTarget", goja.Null())

	prevented := event.Get("defaultPrevented")
	return prevented == nil || !prevented.ToBoolean()
}

func (d *Document) newWindow() *goja.Object {
	w := d.rt.NewObject()
	_ = w.Set("document", d.document)
	_ = w.Set("window", w)
	_ = w.Set("self", w)
	_ = w.Set("innerWidth", InnerWidth)
	_ = w.Set("innerHeight", InnerHeight)

	location := d.rt.NewObject()
	_ = location.Set("href", "about:blank")
	_ = location.Set("protocol", "about:")
	_ = location.Set("pathname", "blank")
	_ = location.Set("search", "")
	_ = location.Set("hash", "")
	_ = w.Set("location", location)

	d.defineEvents(w, d.windowKey, func() []*goja.Object { return nil })
	return w
}
