package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCallsOnceAndOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.xpp")
	other := filepath.Join(dir, "other.xpp")
	require.NoError(t, os.WriteFile(path, []byte("print(1)\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, path, func() { calls.Add(1) }, WithDebounce(20*time.Millisecond))
	}()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(other, []byte("x"), 0644))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "changes to other files are ignored")

	require.NoError(t, os.WriteFile(path, []byte("print(2)\n"), 0644))
	require.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunDebouncesBursts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.xpp")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go func() { _ = Run(ctx, path, func() { calls.Add(1) }, WithDebounce(300*time.Millisecond)) }()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte('a' + i)}, 0644))
		time.Sleep(20 * time.Millisecond)
	}
	require.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRunMissingDirectory(t *testing.T) {
	err := Run(context.Background(), filepath.Join(t.TempDir(), "nope", "main.xpp"), func() {})
	assert.Error(t, err)
}
