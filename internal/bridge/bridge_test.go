package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xpp/internal/sandbox"
)

// startServer serves on an ephemeral port and returns its address.
func startServer(t *testing.T, cfg sandbox.Config) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	sb := sandbox.New(cfg, nil, zerolog.Nop())
	srv := NewServer("127.0.0.1", 0, sb, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return ln.Addr().String()
}

func call(t *testing.T, addr string, req Request) Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	resp, err := Call(ctx, addr, req)
	require.NoError(t, err)
	return resp
}

func TestBridgeAbout(t *testing.T) {
	addr := startServer(t, sandbox.DefaultConfig())
	resp := call(t, addr, Request{ID: "a1", Command: "about"})
	assert.Equal(t, "a1", resp.ID)
	assert.Equal(t, AboutText, resp.Result)
	assert.Empty(t, resp.Error)
}

func TestBridgeRun(t *testing.T) {
	addr := startServer(t, sandbox.DefaultConfig())
	resp := call(t, addr, Request{Command: "run", Code: "x = 2\nif x > 1 {\nprint(\"big\")\n}\nprint(x + 1)"})
	require.Empty(t, resp.Error)
	assert.Equal(t, "big\n3\n", resp.Result)
	assert.NotEmpty(t, resp.ID)
}

func TestBridgeRunError(t *testing.T) {
	addr := startServer(t, sandbox.DefaultConfig())
	resp := call(t, addr, Request{Command: "run", Code: "print(1)\nwhat is this"})
	assert.Contains(t, resp.Error, "invalid statement")
	assert.Equal(t, "1\n", resp.Output)
}

func TestBridgeEval(t *testing.T) {
	addr := startServer(t, sandbox.DefaultConfig())
	resp := call(t, addr, Request{Command: "eval", Code: "1 +"})
	assert.Contains(t, resp.Error, "expression evaluation failed")

	resp = call(t, addr, Request{Command: "eval", Code: "7 // 2"})
	require.Empty(t, resp.Error)
	assert.Equal(t, "3", resp.Result)
}

func TestBridgeSandbox(t *testing.T) {
	cfg := sandbox.DefaultConfig()
	cfg.TimeLimit = 300 * time.Millisecond
	addr := startServer(t, cfg)

	resp := call(t, addr, Request{Command: "sandbox", Code: "print('hi')"})
	assert.Equal(t, sandbox.StatusSuccess, resp.Result)
	assert.Equal(t, "hi\n", resp.Output)

	resp = call(t, addr, Request{Command: "sandbox", Code: "while True: pass"})
	assert.Equal(t, sandbox.StatusTimeout, resp.Error)

	resp = call(t, addr, Request{Command: "sandbox", Code: "open('x')"})
	assert.Contains(t, resp.Error, "open")
}

func TestBridgeUnknownCommand(t *testing.T) {
	addr := startServer(t, sandbox.DefaultConfig())
	resp := call(t, addr, Request{Command: "reboot"})
	assert.Equal(t, "Unknown command: reboot", resp.Result)
}

func TestBridgeRawProtocol(t *testing.T) {
	addr := startServer(t, sandbox.DefaultConfig())

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(`{"command": "about"}` + "\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)

	var raw map[string]string
	require.NoError(t, json.Unmarshal(line, &raw))
	assert.Equal(t, AboutText, raw["result"])
	assert.NotEmpty(t, raw["id"])
	_, hasErr := raw["error"]
	assert.False(t, hasErr)
}

func TestBridgeInvalidJSON(t *testing.T) {
	addr := startServer(t, sandbox.DefaultConfig())

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not json\n"))
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.NewDecoder(conn).Decode(&resp))
	assert.Contains(t, resp.Error, "invalid request")
}

func TestResponseWireShape(t *testing.T) {
	data, err := json.Marshal(Response{ID: "1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": "1", "result": ""}`, string(data))

	data, err = json.Marshal(Response{ID: "2", Error: "boom", Output: "partial"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": "2", "error": "boom", "output": "partial"}`, string(data))
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer("", 0, nil, zerolog.Nop()).Serve(ctx, ln) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}
