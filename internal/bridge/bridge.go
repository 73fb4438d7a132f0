// Package bridge serves X++ over a line-oriented TCP JSON protocol.
//
// Each connection carries one request and one reply:
//
//	-> {"id": "optional", "command": "run", "code": "x = 1\nprint(x)"}
//	<- {"id": "...", "result": "1\n"}
//
// Failures reply with an "error" field instead of "result".
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"xpp/internal/runtime"
	"xpp/internal/sandbox"
)

// Defaults for Server.
const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 50505

	maxRequestBytes = 1 << 20
	ioTimeout       = 10 * time.Second
)

// Command names understood by the server.
const (
	CmdAbout   = "about"
	CmdRun     = "run"
	CmdEval    = "eval"
	CmdSandbox = "sandbox"
)

// AboutText is the reply to the about command.
var AboutText = "X++ v" + runtime.Version + " - bridge OK"

// Request is one client call.
type Request struct {
	ID      string `json:"id,omitempty"`
	Command string `json:"command"`
	Code    string `json:"code,omitempty"`
}

// Response answers a Request. On the wire it carries "error" when Error is set and
// "result" otherwise.
type Response struct {
	ID     string `json:"id"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	Output string `json:"output,omitempty"`
}

// MarshalJSON keeps an empty result on the wire for successful replies.
func (r Response) MarshalJSON() ([]byte, error) {
	m := map[string]string{"id": r.ID}
	if r.Error != "" {
		m["error"] = r.Error
	} else {
		m["result"] = r.Result
	}
	if r.Output != "" {
		m["output"] = r.Output
	}
	return json.Marshal(m)
}

// Server accepts bridge connections.
type Server struct {
	Host    string
	Port    int
	Sandbox *sandbox.Sandbox
	Logger  zerolog.Logger
}

// NewServer creates a server. A nil sandbox gets one with default settings.
func NewServer(host string, port int, sb *sandbox.Sandbox, logger zerolog.Logger) *Server {
	if host == "" {
		host = DefaultHost
	}
	if sb == nil {
		sb = sandbox.New(sandbox.DefaultConfig(), nil, logger)
	}
	return &Server{Host: host, Port: port, Sandbox: sb, Logger: logger}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ListenAndServe listens on Addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("bridge: listen %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then closes ln and waits for
// in-flight requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.Logger.Info().Str("addr", ln.Addr().String()).Msg("bridge listening")

	defer ln.Close()
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("bridge: accept: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(ioTimeout + s.Sandbox.Config().TimeLimit))

	reqID := uuid.NewString()
	logger := s.Logger.With().Str("request_id", reqID).Str("remote", conn.RemoteAddr().String()).Logger()

	var req Request
	dec := json.NewDecoder(io.LimitReader(conn, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		logger.Warn().Err(err).Msg("bad request")
		s.reply(conn, logger, Response{ID: reqID, Error: "invalid request: " + err.Error()})
		return
	}
	if req.ID == "" {
		req.ID = reqID
	}

	start := time.Now()
	resp := s.Handle(ctx, req)
	logger.Info().
		Str("command", req.Command).
		Bool("ok", resp.Error == "").
		Dur("duration", time.Since(start)).
		Msg("bridge request")
	s.reply(conn, logger, resp)
}

func (s *Server) reply(conn net.Conn, logger zerolog.Logger, resp Response) {
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		logger.Warn().Err(err).Msg("write reply")
	}
}

// Handle executes one request.
func (s *Server) Handle(ctx context.Context, req Request) Response {
	resp := Response{ID: req.ID}
	switch strings.ToLower(strings.TrimSpace(req.Command)) {
	case CmdAbout:
		resp.Result = AboutText

	case CmdRun:
		var out bytes.Buffer
		interp := runtime.NewInterpreter(nil, &out)
		if err := interp.RunBlock(strings.Split(req.Code, "\n")); err != nil {
			resp.Error = err.Error()
			resp.Output = out.String()
			break
		}
		resp.Result = out.String()

	case CmdEval:
		v, err := runtime.NewInterpreter(nil, io.Discard).EvalExpr(req.Code)
		if err != nil {
			resp.Error = err.Error()
			break
		}
		resp.Result = v.String()

	case CmdSandbox:
		res := s.Sandbox.Run(ctx, req.Code)
		resp.Output = res.Output
		if res.TimedOut || res.Err != nil {
			resp.Error = res.Status()
			break
		}
		resp.Result = res.Status()

	default:
		resp.Result = "Unknown command: " + req.Command
	}
	return resp
}

// Call sends one request to addr and waits for the reply.
func Call(ctx context.Context, addr string, req Request) (Response, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Response{}, fmt.Errorf("bridge: dial %s: %w", addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("bridge: send: %w", err)
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("bridge: receive: %w", err)
	}
	return resp, nil
}
