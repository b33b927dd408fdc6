// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package gojaelm

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/logiface"
)

// PortInfo describes a port of a running module.
type PortInfo struct {
	Name string

	// Sendable ports accept values from the host, see [Bridge.SendToModule].
	Sendable bool

	// Subscribable ports deliver values to the host, see
	// [Bridge.OnFromModule].
	Subscribable bool
}

type port struct {
	self *goja.Object
	send goja.Callable
	info PortInfo
}

// Bridge connects the host to the ports of one running module.
//
// Values flow in two directions, each with its own verb:
//   - [Bridge.SendToModule] delivers arguments to the send function of a
//     port (host to module)
//   - [Bridge.OnFromModule] registers a handler for values the module
//     publishes on a port (module to host)
//
// Both accept any port name. Sending to a port that is missing or not
// sendable is a silent no-op, and a handler for a port that never publishes is
// never called.
//
// Bridge is safe for concurrent use. Handlers run on the event loop goroutine,
// in the order they were registered.
type Bridge struct {
	sandbox  *sandbox
	loop     *eventloop.Loop
	target   *eventloop.EventTarget
	logger   *logiface.Logger[logiface.Event]
	ports    map[string]*port
	stop     func() error
	done     chan struct{}
	closeErr error
	infos    []PortInfo
	once     sync.Once
	closed   atomic.Bool
}

// wrap subscribes to every subscribable port and indexes the sendable ones.
// The handlers of each port are registered before its subscribe function is
// called. Must be called on the loop goroutine, in the same task that
// instantiated the module.
func wrap(sb *sandbox, ports *goja.Object, handlers []portHandler) (*Bridge, error) {
	b := &Bridge{
		sandbox: sb,
		loop:    sb.loop,
		target:  eventloop.NewEventTarget(),
		logger:  sb.logger,
		ports:   make(map[string]*port),
		done:    make(chan struct{}),
	}
	if ports == nil {
		return b, nil
	}

	names := ports.Keys()
	slices.Sort(names)

	for _, name := range names {
		p := &port{info: PortInfo{Name: name}}
		b.ports[name] = p

		self, ok := ports.Get(name).(*goja.Object)
		if !ok {
			continue
		}
		p.self = self

		if send, ok := goja.AssertFunction(self.Get("send")); ok {
			p.send = send
			p.info.Sendable = true
		}

		if subscribe, ok := goja.AssertFunction(self.Get("subscribe")); ok {
			for _, h := range handlers {
				if h.port == "" || h.port == name {
					fn := h.fn
					b.listen(name, func(args ...any) { fn(name, args...) })
				}
			}
			if _, err := subscribe(self, sb.runtime.ToValue(b.inbound(name))); err != nil {
				return nil, fmt.Errorf("subscribe to port %q: %w", name, err)
			}
			p.info.Subscribable = true
		}

		b.logger.Debug().
			Str(`port`, name).
			Bool(`sendable`, p.info.Sendable).
			Bool(`subscribable`, p.info.Subscribable).
			Log(`port bridged`)
	}

	for _, name := range names {
		b.infos = append(b.infos, b.ports[name].info)
	}

	return b, nil
}

// inbound returns the callback given to a port's subscribe function. It
// re-dispatches every call, arguments in order, as an event named after the
// port.
func (b *Bridge) inbound(name string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if b.closed.Load() {
			return goja.Undefined()
		}
		event := eventloop.NewCustomEvent(name, fromJS(call.Arguments))
		b.target.DispatchEvent(event.EventPtr())
		return goja.Undefined()
	}
}

// Ports lists the module's ports, sorted by name.
func (b *Bridge) Ports() []PortInfo {
	return slices.Clone(b.infos)
}

// SendToModule delivers args to the send function of the named port. The
// call is scheduled on the event loop, and SendToModule returns without
// waiting for it.
//
// Arguments are converted the same way as initial values: scalars directly,
// anything else via JSON. An argument that cannot be encoded is an error.
// Exceptions thrown by the port are logged.
//
// A port that does not exist or is not sendable is ignored, and nil is
// returned. After [Bridge.Close], [ErrBridgeClosed] is returned.
func (b *Bridge) SendToModule(name string, args ...any) error {
	if b.closed.Load() {
		return ErrBridgeClosed
	}

	p := b.ports[name]
	if p == nil || p.send == nil {
		b.logger.Debug().
			Str(`port`, name).
			Log(`dropped message for port without send`)
		return nil
	}

	values, err := prepareAll(args)
	if err != nil {
		return fmt.Errorf("gojaelm: send to port %q: %w", name, err)
	}

	if err := b.loop.Submit(func() { b.send(p, values) }); err != nil {
		return errors.Join(ErrBridgeClosed, err)
	}

	return nil
}

func (b *Bridge) send(p *port, values []hostValue) {
	args := make([]goja.Value, len(values))
	for i, v := range values {
		arg, err := b.sandbox.toJS(v)
		if err != nil {
			b.logger.Err().
				Str(`port`, p.info.Name).
				Err(err).
				Log(`failed to convert argument`)
			return
		}
		args[i] = arg
	}
	if _, err := p.send(p.self, args...); err != nil {
		b.logger.Err().
			Str(`port`, p.info.Name).
			Err(err).
			Log(`port send threw`)
	}
}

// OnFromModule registers handler for values the module publishes on the
// named port. The handler receives the module's arguments, in order, as
// exported by goja (objects as map[string]any, arrays as []any, integers as
// int64). It runs on the event loop goroutine, and must not block.
//
// A panicking handler is logged, and does not prevent other handlers from
// running. The returned function removes the handler.
//
// Values published before OnFromModule is called are not delivered to
// handler. Use [WithHandler] to observe a module from its first turn.
func (b *Bridge) OnFromModule(name string, handler func(args ...any)) (unsubscribe func()) {
	if handler == nil {
		return func() {}
	}

	id := b.listen(name, handler)

	var once sync.Once
	return func() {
		once.Do(func() { b.target.RemoveEventListenerByID(name, id) })
	}
}

func (b *Bridge) listen(name string, handler func(args ...any)) eventloop.ListenerID {
	return b.target.AddEventListener(name, func(event *eventloop.Event) {
		args, _ := event.Detail().([]any)
		defer func() {
			if r := recover(); r != nil {
				b.logger.Err().
					Str(`port`, name).
					Any(`panic`, r).
					Log(`port handler panicked`)
			}
		}()
		handler(slices.Clone(args)...)
	})
}

// Done is closed once [Bridge.Close] has completed.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

// Close stops delivery in both directions, and shuts down the event loop if
// it was created by [Run]. It must not be called from a handler.
func (b *Bridge) Close() error {
	b.once.Do(func() {
		b.closed.Store(true)
		b.target.RemoveAllEventListeners("")
		if b.stop != nil {
			b.closeErr = b.stop()
		}
		close(b.done)
	})
	return b.closeErr
}

// runOnLoop submits fn to the loop and waits for it to finish, or for ctx.
func runOnLoop[T any](ctx context.Context, loop *eventloop.Loop, fn func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	ch := make(chan result, 1)
	if err := loop.Submit(func() {
		var r result
		defer func() {
			if v := recover(); v != nil {
				r.err = fmt.Errorf("gojaelm: panic on loop: %v", v)
			}
			ch <- r
		}()
		r.value, r.err = fn()
	}); err != nil {
		var zero T
		return zero, err
	}
	select {
	case r := <-ch:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
