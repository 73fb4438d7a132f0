package sandbox

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSandbox(cfg Config) *Sandbox {
	return New(cfg, nil, zerolog.Nop())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 3*time.Second, cfg.TimeLimit)
	assert.Equal(t, EngineScript, cfg.Engine)
	assert.False(t, cfg.PersistGlobals)

	sb := newTestSandbox(Config{})
	assert.Equal(t, 3*time.Second, sb.Config().TimeLimit)
	assert.Equal(t, EngineScript, sb.Config().Engine)
}

func TestRunSuccess(t *testing.T) {
	var mirror bytes.Buffer
	sb := New(DefaultConfig(), &mirror, zerolog.Nop())

	res := sb.Run(context.Background(), "x = 2\nprint(x * 21)")
	require.NoError(t, res.Err)
	assert.False(t, res.TimedOut)
	assert.Equal(t, StatusSuccess, res.Status())
	assert.Equal(t, "42\n", res.Output)
	assert.Equal(t, "42\n", mirror.String())
	assert.NotEmpty(t, res.RunID)
}

func TestRunEmptySnippet(t *testing.T) {
	res := newTestSandbox(DefaultConfig()).Run(context.Background(), "")
	assert.Equal(t, StatusSuccess, res.Status())
}

func TestRunTimeLimit(t *testing.T) {
	sb := newTestSandbox(Config{TimeLimit: time.Second})

	start := time.Now()
	res := sb.Run(context.Background(), "while True: pass")
	elapsed := time.Since(start)

	assert.True(t, res.TimedOut)
	assert.Equal(t, StatusTimeout, res.Status())
	assert.ErrorIs(t, res.Err, ErrTimeout)
	assert.GreaterOrEqual(t, elapsed, 900*time.Millisecond)
	assert.Less(t, elapsed, 1500*time.Millisecond)
}

func TestRunBlockedCall(t *testing.T) {
	sb := newTestSandbox(DefaultConfig())

	res := sb.Run(context.Background(), "open('x')")
	require.Error(t, res.Err)
	assert.False(t, res.TimedOut)
	assert.True(t, strings.HasPrefix(res.Status(), StatusErrorPrefix))
	assert.Contains(t, res.Status(), "open")

	var perm *PermissionError
	require.True(t, errors.As(res.Err, &perm))
	assert.Equal(t, "open", perm.Name)
	assert.ErrorIs(t, res.Err, &PermissionError{})
	assert.ErrorIs(t, res.Err, &PermissionError{Name: "open"})
	assert.NotErrorIs(t, res.Err, &PermissionError{Name: "exec"})
}

func TestRunEveryBlockedName(t *testing.T) {
	sb := newTestSandbox(DefaultConfig())
	for _, name := range BlockList {
		t.Run(name, func(t *testing.T) {
			res := sb.Run(context.Background(), name+"()")
			assert.ErrorIs(t, res.Err, &PermissionError{Name: name})
		})
	}
}

func TestRunNamingBlockedIsAllowed(t *testing.T) {
	res := newTestSandbox(DefaultConfig()).Run(context.Background(), "f = open")
	assert.Equal(t, StatusSuccess, res.Status())
}

func TestRunUndefinedName(t *testing.T) {
	res := newTestSandbox(DefaultConfig()).Run(context.Background(), "print(os)")
	require.Error(t, res.Err)
	assert.Contains(t, res.Status(), "name 'os' is not defined")
}

func TestRunParseError(t *testing.T) {
	res := newTestSandbox(DefaultConfig()).Run(context.Background(), "x = (1 +")
	require.Error(t, res.Err)
	assert.False(t, res.TimedOut)
	assert.True(t, strings.HasPrefix(res.Status(), StatusErrorPrefix))
}

func TestRunLoops(t *testing.T) {
	src := `total = 0
for i in range(10) {
    if i == 7 {
        break
    }
    if i % 2 == 0 {
        continue
    }
    total += i
}
print(total)
n = 3
while n > 0: n -= 1
print(n)`
	res := newTestSandbox(DefaultConfig()).Run(context.Background(), src)
	require.NoError(t, res.Err)
	assert.Equal(t, "9\n0\n", res.Output)
}

func TestRunContainers(t *testing.T) {
	src := `xs = list(range(3))
xs[0] = 10
print(xs, len(xs), tuple(xs))
d = dict()
d["a"] = 1
print(d["a"], len(set([1, 1, 2])))
print(min(xs), max(3, 4), abs(-2))`
	res := newTestSandbox(DefaultConfig()).Run(context.Background(), src)
	require.NoError(t, res.Err)
	assert.Equal(t, "[10, 1, 2] 3 (10, 1, 2)\n1 2\n1 4 2\n", res.Output)
}

func TestRunBreakOutsideLoop(t *testing.T) {
	res := newTestSandbox(DefaultConfig()).Run(context.Background(), "break")
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "'break' outside loop")
}

func TestRunGlobalsFreshPerRun(t *testing.T) {
	sb := newTestSandbox(DefaultConfig())

	require.NoError(t, sb.Run(context.Background(), "x = 1").Err)
	res := sb.Run(context.Background(), "print(x)")
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "name 'x' is not defined")
}

func TestRunPersistGlobals(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PersistGlobals = true
	sb := newTestSandbox(cfg)

	require.NoError(t, sb.Run(context.Background(), "x = 1").Err)
	res := sb.Run(context.Background(), "x += 1\nprint(x)")
	require.NoError(t, res.Err)
	assert.Equal(t, "2\n", res.Output)
}

func TestRunNamespaceNotWritable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PersistGlobals = true
	sb := newTestSandbox(cfg)

	require.NoError(t, sb.Run(context.Background(), "len = 5").Err)
	_, ok := sb.Namespace().Lookup("len")
	require.True(t, ok)

	fresh := newTestSandbox(DefaultConfig())
	res := fresh.Run(context.Background(), "print(len([1, 2]))")
	require.NoError(t, res.Err)
	assert.Equal(t, "2\n", res.Output)
}

func TestRunOutputLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxOutput = 10
	res := newTestSandbox(cfg).Run(context.Background(), "for i in range(100): print(i)")

	assert.ErrorIs(t, res.Err, ErrOutputLimit)
	assert.Equal(t, "0\n1\n2\n3\n4\n", res.Output)
}

func TestRunParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newTestSandbox(DefaultConfig()).Run(ctx, "while True: pass")
	assert.False(t, res.TimedOut)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestRunUnknownEngine(t *testing.T) {
	res := newTestSandbox(Config{Engine: "lua"}).Run(context.Background(), "print(1)")
	assert.ErrorIs(t, res.Err, ErrUnknownEngine)
	assert.Contains(t, res.Status(), "lua")
}

func TestRunConcurrent(t *testing.T) {
	sb := newTestSandbox(DefaultConfig())
	results := make(chan Result, 8)
	for i := 0; i < 8; i++ {
		go func() { results <- sb.Run(context.Background(), "print(sum)") }()
	}
	for i := 0; i < 8; i++ {
		res := <-results
		assert.Contains(t, res.Status(), "name 'sum' is not defined")
	}
}

// ---- js engine ----

func jsConfig() Config {
	cfg := DefaultConfig()
	cfg.Engine = EngineJS
	return cfg
}

func TestJSRunSuccess(t *testing.T) {
	res := newTestSandbox(jsConfig()).Run(context.Background(), `
var total = 0;
for (var i of range(5)) { total += i; }
print("total", total, len([1, 2, 3]));`)
	require.NoError(t, res.Err)
	assert.Equal(t, "total 10 3\n", res.Output)
}

func TestJSRunTimeLimit(t *testing.T) {
	cfg := jsConfig()
	cfg.TimeLimit = time.Second

	start := time.Now()
	res := newTestSandbox(cfg).Run(context.Background(), "while (true) {}")
	assert.True(t, res.TimedOut)
	assert.Equal(t, StatusTimeout, res.Status())
	assert.Less(t, time.Since(start), 1500*time.Millisecond)
}

func TestJSRunBlockedCall(t *testing.T) {
	sb := newTestSandbox(jsConfig())

	res := sb.Run(context.Background(), "open('x')")
	require.Error(t, res.Err)
	assert.Contains(t, res.Status(), "open")
	assert.ErrorIs(t, res.Err, &PermissionError{Name: "open"})

	res = sb.Run(context.Background(), "Function('return 1')()")
	assert.ErrorIs(t, res.Err, &PermissionError{Name: "Function"})
}

func TestJSRunPersistGlobals(t *testing.T) {
	cfg := jsConfig()
	cfg.PersistGlobals = true
	sb := newTestSandbox(cfg)

	require.NoError(t, sb.Run(context.Background(), "var counter = 41;").Err)
	res := sb.Run(context.Background(), "counter++; print(counter);")
	require.NoError(t, res.Err)
	assert.Equal(t, "42\n", res.Output)
}

func TestJSRunRecoversAfterTimeout(t *testing.T) {
	cfg := jsConfig()
	cfg.PersistGlobals = true
	cfg.TimeLimit = 200 * time.Millisecond
	sb := newTestSandbox(cfg)

	assert.True(t, sb.Run(context.Background(), "for (;;) {}").TimedOut)
	res := sb.Run(context.Background(), "print('alive')")
	require.NoError(t, res.Err)
	assert.Equal(t, "alive\n", res.Output)
}

func TestJSRunLeavesNoPendingInterrupt(t *testing.T) {
	vm, err := newJSRuntime()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 20; i++ {
		_ = runJS(ctx, vm, "1 + 1", &bytes.Buffer{})

		// straight on the runtime, bypassing the clear at the start of runJS
		v, err := vm.RunString("2 + 2")
		require.NoError(t, err, "iteration %d", i)
		assert.Equal(t, int64(4), v.ToInteger())
	}
}

// ---- namespace ----

func TestNamespace(t *testing.T) {
	ns := NewNamespace()
	names := ns.Names()

	for _, name := range AllowList {
		assert.Contains(t, names, name)
		assert.False(t, ns.IsBlocked(name), name)
	}
	for _, name := range BlockList {
		assert.Contains(t, names, name)
		assert.True(t, ns.IsBlocked(name), name)
	}
	assert.Len(t, names, len(AllowList)+len(BlockList))

	_, ok := ns.Lookup("os")
	assert.False(t, ok)
}

func TestRangeRejectsZeroStep(t *testing.T) {
	res := newTestSandbox(DefaultConfig()).Run(context.Background(), "range(0, 5, 0)")
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "must not be zero")
}

func TestGatedWriterDropsAfterClose(t *testing.T) {
	var dst bytes.Buffer
	g := newGatedWriter(&dst, 0)

	_, err := g.Write([]byte("kept"))
	require.NoError(t, err)
	assert.Equal(t, "kept", g.close())

	_, err = g.Write([]byte("late"))
	assert.Error(t, err)
	assert.Equal(t, "kept", dst.String())
}
