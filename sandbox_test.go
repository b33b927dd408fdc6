package gojaelm

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/joeycumines/go-eventloop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestSandbox returns a sandbox on a running loop, with a report(value)
// global that sends exported values to the returned channel.
func newTestSandbox(t *testing.T) (*sandbox, <-chan any) {
	t.Helper()

	loop, err := eventloop.New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	reports := make(chan any, 16)
	sb, err := runOnLoop(ctx, loop, func() (*sandbox, error) {
		sb, err := newSandbox(loop, nil)
		if err != nil {
			return nil, err
		}
		err = sb.runtime.Set("report", func(call goja.FunctionCall) goja.Value {
			reports <- call.Argument(0).Export()
			return goja.Undefined()
		})
		return sb, err
	})
	require.NoError(t, err)

	return sb, reports
}

func sandboxEval(t *testing.T, sb *sandbox, script string) any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := runOnLoop(ctx, sb.loop, func() (any, error) {
		v, err := sb.runtime.RunString(script)
		if err != nil {
			return nil, err
		}
		return v.Export(), nil
	})
	require.NoError(t, err)
	return v
}

func nextReport(t *testing.T, reports <-chan any) any {
	t.Helper()
	select {
	case v := <-reports:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for report")
		return nil
	}
}

func TestSandbox_globals(t *testing.T) {
	sb, _ := newTestSandbox(t)

	keys, ok := sandboxEval(t, sb, `Object.keys(globalThis).filter(k => k !== 'report').sort()`).([]any)
	require.True(t, ok)

	expected := slices.Clone(SandboxGlobals)
	slices.Sort(expected)
	actual := make([]string, len(keys))
	for i, k := range keys {
		actual[i] = k.(string)
	}
	assert.Equal(t, expected, actual)

	for _, name := range []string{"require", "process", "module", "exports", "console", "global", "fetch"} {
		assert.Equal(t, "undefined", sandboxEval(t, sb, `typeof `+name), name)
	}

	// ECMAScript built-ins remain
	assert.Equal(t, "function", sandboxEval(t, sb, `typeof JSON.parse`))
	assert.Equal(t, "function", sandboxEval(t, sb, `typeof Promise`))
}

func TestSandbox_window(t *testing.T) {
	sb, _ := newTestSandbox(t)

	assert.Equal(t, true, sandboxEval(t, sb, `window.document === document`))
	assert.Equal(t, true, sandboxEval(t, sb, `window.window === window && window.self === window`))
	for _, name := range []string{"setTimeout", "clearTimeout", "setInterval", "clearInterval"} {
		assert.Equal(t, true, sandboxEval(t, sb, `window.`+name+` === `+name), name)
	}
	assert.Equal(t, true, sandboxEval(t, sb, `document.defaultView === window`))
}

func TestSandbox_setTimeout(t *testing.T) {
	sb, reports := newTestSandbox(t)

	id := sandboxEval(t, sb, `setTimeout(function (a, b) { report(a + b) }, 1, 2, 3)`)
	assert.Positive(t, id)
	assert.EqualValues(t, 5, nextReport(t, reports))
}

func TestSandbox_setTimeout_order(t *testing.T) {
	sb, reports := newTestSandbox(t)

	sandboxEval(t, sb, `
		setTimeout(() => report('second'), 20);
		setTimeout(() => report('first'), -5);
	`)
	assert.Equal(t, "first", nextReport(t, reports))
	assert.Equal(t, "second", nextReport(t, reports))
}

func TestSandbox_clearTimeout(t *testing.T) {
	sb, reports := newTestSandbox(t)

	sandboxEval(t, sb, `
		const id = setTimeout(() => report('cleared'), 5);
		clearTimeout(id);
		clearTimeout(undefined);
		clearTimeout(-1);
		setTimeout(() => report('kept'), 20);
	`)
	assert.Equal(t, "kept", nextReport(t, reports))
}

func TestSandbox_setInterval(t *testing.T) {
	sb, reports := newTestSandbox(t)

	sandboxEval(t, sb, `
		let n = 0;
		const id = setInterval(() => {
			n++;
			report(n);
			if (n === 3) {
				clearInterval(id);
			}
		}, 1);
	`)
	for i := 1; i <= 3; i++ {
		assert.EqualValues(t, i, nextReport(t, reports))
	}

	select {
	case v := <-reports:
		t.Fatalf("unexpected report after clearInterval: %v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSandbox_timerRequiresFunction(t *testing.T) {
	sb, _ := newTestSandbox(t)

	assert.Equal(t, true, sandboxEval(t, sb, `
		try {
			setTimeout('report(1)', 1);
			false;
		} catch (e) {
			e instanceof TypeError;
		}
	`))
}

func TestSandbox_timerCallbackThrows(t *testing.T) {
	sb, reports := newTestSandbox(t)

	sandboxEval(t, sb, `
		setTimeout(() => { throw new Error('boom') }, 1);
		setTimeout(() => report('after'), 10);
	`)
	assert.Equal(t, "after", nextReport(t, reports))
}

func TestNewSandbox_nilLoop(t *testing.T) {
	_, err := newSandbox(nil, nil)
	require.Error(t, err)
}
