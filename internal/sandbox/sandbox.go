// Package sandbox runs snippets against a restricted namespace under a wall-clock time limit.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"xpp/internal/runtime"
)

// Engine names.
const (
	EngineScript = "script"
	EngineJS     = "js"
)

// Status strings returned by Result.Status.
const (
	StatusSuccess     = "Sandbox executed successfully"
	StatusTimeout     = "Sandbox: Time Limit Exceeded"
	StatusErrorPrefix = "Sandbox Error: "
)

// MaxRangeLen bounds range() in both engines.
const MaxRangeLen = runtime.MaxSequenceLen

// Config holds configuration for a Sandbox.
type Config struct {
	// TimeLimit is the longest the caller waits for a snippet.
	TimeLimit time.Duration
	// Engine selects the snippet language: "script" (default) or "js".
	Engine string
	// PersistGlobals keeps variables between runs of one Sandbox; runs are then serialized.
	PersistGlobals bool
	// MaxOutput caps the bytes a run may print. Zero means no cap.
	MaxOutput int
}

// DefaultConfig returns the default sandbox configuration.
func DefaultConfig() Config {
	return Config{
		TimeLimit: 3 * time.Second,
		Engine:    EngineScript,
		MaxOutput: 64 * 1024,
	}
}

// Result is the outcome of one Run. A timed-out run carries ErrTimeout in Err.
type Result struct {
	RunID    string
	TimedOut bool
	Err      error
	Output   string
	Duration time.Duration
}

// Status renders the result as one of the three status strings.
func (r Result) Status() string {
	switch {
	case r.TimedOut:
		return StatusTimeout
	case r.Err != nil:
		return StatusErrorPrefix + r.Err.Error()
	default:
		return StatusSuccess
	}
}

// Sandbox executes snippets. A Sandbox is safe for concurrent use.
type Sandbox struct {
	cfg    Config
	ns     *Namespace
	out    io.Writer
	logger zerolog.Logger

	mu      sync.Mutex // held by a worker for the whole run when PersistGlobals is set
	globals runtime.MapScope
	vm      *goja.Runtime
}

// New creates a sandbox. Printed output is captured in each Result and also copied to out when non-nil.
func New(cfg Config, out io.Writer, logger zerolog.Logger) *Sandbox {
	def := DefaultConfig()
	if cfg.TimeLimit <= 0 {
		cfg.TimeLimit = def.TimeLimit
	}
	if cfg.Engine == "" {
		cfg.Engine = def.Engine
	}
	return &Sandbox{
		cfg:     cfg,
		ns:      NewNamespace(),
		out:     out,
		logger:  logger,
		globals: runtime.MapScope{},
	}
}

// Config returns the sandbox configuration.
func (s *Sandbox) Config() Config {
	return s.cfg
}

// Namespace returns the sandbox namespace.
func (s *Sandbox) Namespace() *Namespace {
	return s.ns
}

// Run executes code on its own goroutine and waits at most TimeLimit for it. On timeout
// the worker is cancelled and abandoned; anything it reports or prints afterwards is dropped.
func (s *Sandbox) Run(ctx context.Context, code string) Result {
	res := Result{RunID: uuid.NewString()}
	logger := s.logger.With().Str("run_id", res.RunID).Str("engine", s.cfg.Engine).Logger()
	logger.Debug().Int("bytes", len(code)).Msg("sandbox run started")

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.TimeLimit)
	defer cancel()

	out := newGatedWriter(s.out, s.cfg.MaxOutput)
	done := make(chan error, 1)
	start := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("sandbox panic: %v", r)
			}
		}()
		done <- s.execute(runCtx, code, out)
	}()

	select {
	case err := <-done:
		switch {
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			res.TimedOut, res.Err = true, ErrTimeout
		default:
			res.Err = err
		}
	case <-runCtx.Done():
		if ctx.Err() != nil {
			res.Err = ctx.Err()
		} else {
			res.TimedOut, res.Err = true, ErrTimeout
		}
	}
	res.Output = out.close()
	res.Duration = time.Since(start)

	switch {
	case res.TimedOut:
		logger.Warn().Dur("limit", s.cfg.TimeLimit).Msg("sandbox time limit exceeded")
	case res.Err != nil:
		logger.Debug().Err(res.Err).Dur("duration", res.Duration).Msg("sandbox run failed")
	default:
		logger.Debug().Dur("duration", res.Duration).Msg("sandbox run finished")
	}
	return res
}

// execute runs code with the configured engine.
func (s *Sandbox) execute(ctx context.Context, code string, w io.Writer) error {
	if s.cfg.PersistGlobals {
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	switch s.cfg.Engine {
	case EngineScript:
		prog, err := ParseScript(code)
		if err != nil {
			return err
		}
		globals := runtime.MapScope{}
		if s.cfg.PersistGlobals {
			globals = s.globals
		}
		return newExecutor(withOutput(ctx, w), globals, s.ns).run(prog)

	case EngineJS:
		vm := s.vm
		if vm == nil || !s.cfg.PersistGlobals {
			var err error
			if vm, err = newJSRuntime(); err != nil {
				return err
			}
			if s.cfg.PersistGlobals {
				s.vm = vm
			}
		}
		return runJS(ctx, vm, code, w)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownEngine, s.cfg.Engine)
	}
}

// ============================================================
// Output gate
// ============================================================

// gatedWriter captures a run's output, mirrors it to dst, and drops writes once closed.
type gatedWriter struct {
	mu     sync.Mutex
	dst    io.Writer
	buf    bytes.Buffer
	limit  int
	closed bool
}

func newGatedWriter(dst io.Writer, limit int) *gatedWriter {
	return &gatedWriter{dst: dst, limit: limit}
}

func (g *gatedWriter) Write(p []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return 0, io.ErrClosedPipe
	}
	var limitErr error
	if g.limit > 0 && g.buf.Len()+len(p) > g.limit {
		p = p[:g.limit-g.buf.Len()]
		limitErr = ErrOutputLimit
	}
	g.buf.Write(p)
	if g.dst != nil {
		g.dst.Write(p)
	}
	return len(p), limitErr
}

// close stops further writes and returns everything captured.
func (g *gatedWriter) close() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return g.buf.String()
}
