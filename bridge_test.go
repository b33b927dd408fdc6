package gojaelm

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridge_Ports(t *testing.T) {
	b := runFixture(t, "Widget.elm", "widget.js", nil)

	assert.Equal(t, []PortInfo{
		{Name: "a", Sendable: true},
		{Name: "b", Subscribable: true},
		{Name: "c", Sendable: true, Subscribable: true},
		{Name: "d"},
	}, b.Ports())

	// the result is a copy
	ports := b.Ports()
	ports[0].Name = "z"
	assert.Equal(t, "a", b.Ports()[0].Name)
}

func TestBridge_SendToModule(t *testing.T) {
	b := runFixture(t, "Widget.elm", "widget.js", nil)

	require.NoError(t, b.SendToModule("a", 1, 2))
	settle(t, b)
	assert.Equal(t, []any{[]any{"a", int64(1), int64(2)}}, eval(t, b, `sent`))

	for _, name := range []string{"b", "d", "nope"} {
		require.NoError(t, b.SendToModule(name, 1))
	}
	settle(t, b)
	assert.Len(t, eval(t, b, `sent`), 1)
}

func TestBridge_SendToModule_structuredValues(t *testing.T) {
	b := runFixture(t, "Widget.elm", "widget.js", nil)

	type point struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	require.NoError(t, b.SendToModule("a", point{X: 1, Y: 2}, []string{"p", "q"}, nil))
	settle(t, b)

	assert.Equal(t, true, eval(t, b, `Array.isArray(sent[0][2])`))
	assert.Equal(t, `["a",{"x":1,"y":2},["p","q"],null]`, eval(t, b, `JSON.stringify(sent[0])`))
}

func TestBridge_SendToModule_unencodable(t *testing.T) {
	b := runFixture(t, "Widget.elm", "widget.js", nil)

	err := b.SendToModule("a", make(chan int))
	require.Error(t, err)
	settle(t, b)
	assert.Len(t, eval(t, b, `sent`), 0)
}

func TestBridge_OnFromModule(t *testing.T) {
	b := runFixture(t, "Widget.elm", "widget.js", nil)

	var (
		mu    sync.Mutex
		calls [][]any
	)
	b.OnFromModule("c", func(args ...any) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, args)
	})

	eval(t, b, `publish("c", "x", "y")`)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][]any{{"x", "y"}}, calls)
}

func TestBridge_OnFromModule_neither(t *testing.T) {
	b := runFixture(t, "Widget.elm", "widget.js", nil)

	var called atomic.Bool
	b.OnFromModule("d", func(args ...any) { called.Store(true) })
	b.OnFromModule("a", func(args ...any) { called.Store(true) })

	require.NoError(t, b.SendToModule("d", 1))
	require.NoError(t, b.SendToModule("a", 1))
	eval(t, b, `publish("b", 1)`)

	assert.False(t, called.Load())
}

func TestBridge_OnFromModule_orderAndUnsubscribe(t *testing.T) {
	b := runFixture(t, "Widget.elm", "widget.js", nil)

	var order []string
	b.OnFromModule("b", func(args ...any) { order = append(order, "first") })
	unsubscribe := b.OnFromModule("b", func(args ...any) { order = append(order, "second") })
	b.OnFromModule("b", func(args ...any) { order = append(order, "third") })

	eval(t, b, `publish("b")`)
	unsubscribe()
	unsubscribe()
	eval(t, b, `publish("b")`)

	assert.Equal(t, []string{"first", "second", "third", "first", "third"}, order)
}

func TestBridge_OnFromModule_panicIsContained(t *testing.T) {
	b := runFixture(t, "Widget.elm", "widget.js", nil)

	var count atomic.Int32
	b.OnFromModule("b", func(args ...any) { panic("boom") })
	b.OnFromModule("b", func(args ...any) { count.Add(1) })

	eval(t, b, `publish("b")`)
	eval(t, b, `publish("b")`)

	assert.Equal(t, int32(2), count.Load())
}

func TestBridge_OnFromModule_nilHandler(t *testing.T) {
	b := runFixture(t, "Widget.elm", "widget.js", nil)
	unsubscribe := b.OnFromModule("b", nil)
	require.NotNil(t, unsubscribe)
	unsubscribe()
	eval(t, b, `publish("b")`)
}

// Counter.elm starts from the flags, publishes on "increment" whenever it
// is clicked, and accepts a new count on "value".
func TestBridge_counter(t *testing.T) {
	b := runFixture(t, "Counter.elm", "counter.js", map[string]any{"start": 0})

	assert.Equal(t, []PortInfo{
		{Name: "increment", Subscribable: true},
		{Name: "value", Sendable: true},
	}, b.Ports())

	var increments atomic.Int32
	b.OnFromModule("increment", func(args ...any) {
		assert.Empty(t, args)
		increments.Add(1)
	})

	eval(t, b, `click(); click(); click()`)
	assert.EqualValues(t, 3, eval(t, b, `count()`))

	require.NoError(t, b.SendToModule("value", 3))
	settle(t, b)

	assert.Equal(t, int32(3), increments.Load())
	assert.Equal(t, []any{[]any{int64(3)}}, eval(t, b, `received`))
	assert.EqualValues(t, 3, eval(t, b, `count()`))
}

func TestBridge_independentRuns(t *testing.T) {
	first := runFixture(t, "Counter.elm", "counter.js", map[string]any{"start": 10})
	second := runFixture(t, "Counter.elm", "counter.js", map[string]any{"start": 20})

	var firstCount, secondCount atomic.Int32
	first.OnFromModule("increment", func(args ...any) { firstCount.Add(1) })
	second.OnFromModule("increment", func(args ...any) { secondCount.Add(1) })

	eval(t, first, `click()`)
	eval(t, second, `click(); click()`)

	require.NoError(t, first.SendToModule("value", 100))
	settle(t, first)

	assert.Equal(t, int32(1), firstCount.Load())
	assert.Equal(t, int32(2), secondCount.Load())
	assert.EqualValues(t, 100, eval(t, first, `count()`))
	assert.EqualValues(t, 22, eval(t, second, `count()`))
	assert.Len(t, eval(t, second, `received`), 0)
}

func TestBridge_timers(t *testing.T) {
	type event struct {
		label string
		value any
	}
	events := make(chan event, 4)
	b := runFixture(t, "Main.elm", "main.js", map[string]any{"start": 7}, WithHandler("ready", func(args ...any) {
		if len(args) != 2 {
			events <- event{label: "unexpected", value: args}
			return
		}
		label, _ := args[0].(string)
		events <- event{label: label, value: args[1]}
	}))

	select {
	case e := <-events:
		assert.Equal(t, "ready", e.label)
		flags, ok := e.value.(map[string]any)
		require.True(t, ok, "%T", e.value)
		assert.EqualValues(t, 7, flags["start"])
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for ready")
	}

	require.NoError(t, b.SendToModule("echo", "hi"))
	select {
	case e := <-events:
		assert.Equal(t, event{label: "echo", value: "hi"}, e)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for echo")
	}
}

// publishesOnFirstTurn schedules its first outbound value from init, the way
// an init command reaches a port.
const publishesOnFirstTurn = `var Elm = {Counter: {init: function (options) {
	var subscribers = [];
	setTimeout(function () {
		subscribers.forEach(function (fn) { fn('hello', options.flags.n) });
	}, 0);
	return {ports: {
		out: {subscribe: function (fn) { subscribers.push(fn) }},
		other: {subscribe: function (fn) { fn('sync') }}
	}};
}}}`

func TestBridge_WithHandler_firstTurn(t *testing.T) {
	const runs = 50
	for i := range runs {
		received := make(chan []any, 1)
		b := runFixture(t, "Counter.elm", publishesOnFirstTurn, map[string]any{"n": i}, WithHandler("out", func(args ...any) {
			received <- args
		}))

		select {
		case args := <-received:
			assert.Equal(t, []any{"hello", int64(i)}, args)
		case <-time.After(5 * time.Second):
			t.Fatalf("run %d: value published by init was not delivered", i)
		}
		require.NoError(t, b.Close())
	}
}

func TestBridge_WithPortHandler(t *testing.T) {
	type delivery struct {
		port string
		args []any
	}
	deliveries := make(chan delivery, 4)
	var named atomic.Int32

	runFixture(t, "Counter.elm", publishesOnFirstTurn, map[string]any{"n": 1},
		WithPortHandler(func(port string, args ...any) { deliveries <- delivery{port: port, args: args} }),
		WithHandler("out", func(args ...any) { named.Add(1) }),
	)

	// subscribe itself publishing is delivered too
	var got []delivery
	for len(got) < 2 {
		select {
		case d := <-deliveries:
			got = append(got, d)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out, got %v", got)
		}
	}
	assert.Equal(t, []delivery{
		{port: "other", args: []any{"sync"}},
		{port: "out", args: []any{"hello", int64(1)}},
	}, got)
	assert.Equal(t, int32(1), named.Load())
}

func TestBridge_Close(t *testing.T) {
	b := runFixture(t, "Widget.elm", "widget.js", nil)

	var called atomic.Bool
	b.OnFromModule("b", func(args ...any) { called.Store(true) })

	select {
	case <-b.Done():
		t.Fatal("done before close")
	default:
	}

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	select {
	case <-b.Done():
	default:
		t.Fatal("not done after close")
	}

	assert.ErrorIs(t, b.SendToModule("a", 1), ErrBridgeClosed)
	assert.False(t, called.Load())
}

func TestBridge_roundTrip(t *testing.T) {
	b := runFixture(t, "Echo.elm", `var Elm = {Echo: {init: function () {
		var subscribers = [];
		return {ports: {echo: {
			send: function () {
				var args = arguments;
				subscribers.forEach(function (fn) { fn.apply(null, args) });
			},
			subscribe: function (fn) { subscribers.push(fn) }
		}}};
	}}}`, nil)

	received := make(chan []any, 1)
	b.OnFromModule("echo", func(args ...any) { received <- args })

	require.NoError(t, b.SendToModule("echo", "first", 2, map[string]any{"k": []any{true, nil}}))

	select {
	case args := <-received:
		assert.Equal(t, []any{"first", int64(2), map[string]any{"k": []any{true, nil}}}, args)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for echo")
	}
}
