package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/newthinker/novaquant/internal/core"
	"go.uber.org/zap"
)

// DefaultReportTimeout bounds how long Submit waits for an order's fill.
const DefaultReportTimeout = 2 * time.Second

// reportBuffer is the number of unread reports kept before new ones are
// dropped.
const reportBuffer = 256

// Config describes how to launch the engine.
type Config struct {
	Command       string
	Args          []string
	Env           []string // appended to the parent environment
	ReportTimeout time.Duration
}

// Status is a point-in-time view of the engine process.
type Status struct {
	Alive bool   `json:"engine_alive"`
	Error string `json:"engine_error,omitempty"`
}

// Bridge owns the engine child process. Orders are submitted one at a time.
type Bridge struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	stdin    io.WriteCloser
	cmd      *exec.Cmd
	alive    bool
	lastErr  string
	done     chan struct{}
	onChange func(alive bool)

	submitMu sync.Mutex
	reports  chan Report
}

// NewBridge creates a bridge; the process is not started until Start.
func NewBridge(cfg Config, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ReportTimeout <= 0 {
		cfg.ReportTimeout = DefaultReportTimeout
	}
	return &Bridge{
		cfg:     cfg,
		logger:  logger,
		lastErr: "engine not started",
		reports: make(chan Report, reportBuffer),
	}
}

// OnStateChange registers fn to be called whenever the process starts or
// exits.
func (b *Bridge) OnStateChange(fn func(alive bool)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

// Start spawns the engine. A failure leaves the bridge down with the error
// recorded for Status; the caller may keep serving.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.alive {
		return nil
	}
	if b.cfg.Command == "" {
		return b.failLocked(fmt.Errorf("no engine command configured"))
	}

	cmd := exec.Command(b.cfg.Command, b.cfg.Args...)
	cmd.Env = append(os.Environ(), b.cfg.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return b.failLocked(err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return b.failLocked(err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return b.failLocked(err)
	}
	if err := cmd.Start(); err != nil {
		return b.failLocked(err)
	}

	b.cmd = cmd
	b.stdin = stdin
	b.alive = true
	b.lastErr = ""
	b.done = make(chan struct{})
	b.notifyLocked()

	b.logger.Info("engine started",
		zap.String("command", b.cfg.Command),
		zap.Strings("args", b.cfg.Args),
		zap.Int("pid", cmd.Process.Pid),
	)

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		b.readReports(stdout)
	}()
	go func() {
		defer readers.Done()
		b.readStderr(stderr)
	}()
	go b.wait(cmd, &readers, b.done)

	return nil
}

func (b *Bridge) failLocked(err error) error {
	b.alive = false
	b.lastErr = err.Error()
	b.notifyLocked()
	b.logger.Error("engine unavailable", zap.Error(err))
	return core.WrapError(core.ErrEngineUnavailable, err)
}

func (b *Bridge) notifyLocked() {
	if b.onChange != nil {
		b.onChange(b.alive)
	}
}

func (b *Bridge) wait(cmd *exec.Cmd, readers *sync.WaitGroup, done chan struct{}) {
	readers.Wait()
	err := cmd.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cmd == cmd {
		b.alive = false
		if err != nil {
			b.lastErr = fmt.Sprintf("engine exited: %v", err)
		} else {
			b.lastErr = "engine exited"
		}
		b.cmd = nil
		b.stdin = nil
		b.notifyLocked()
	}
	close(done)
	b.logger.Warn("engine stopped", zap.Error(err))
}

func (b *Bridge) readReports(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rep Report
		if err := json.Unmarshal(line, &rep); err != nil {
			b.logger.Warn("skipping malformed engine line", zap.ByteString("line", line), zap.Error(err))
			continue
		}
		select {
		case b.reports <- rep:
		default:
			b.logger.Warn("engine report buffer full, dropping report", zap.String("type", rep.Type))
		}
	}
}

func (b *Bridge) readStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		b.logger.Debug("engine stderr", zap.String("line", scanner.Text()))
	}
}

// Stop closes the engine's stdin and waits for it to exit, killing it after
// ctx is done.
func (b *Bridge) Stop(ctx context.Context) error {
	b.mu.Lock()
	cmd, stdin, done := b.cmd, b.stdin, b.done
	b.mu.Unlock()

	if cmd == nil {
		return nil
	}
	stdin.Close()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		if err := cmd.Process.Kill(); err != nil {
			return err
		}
		<-done
		return nil
	}
}

// Status reports whether the engine is running and, if not, why.
func (b *Bridge) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.alive {
		return Status{Alive: true}
	}
	return Status{Alive: false, Error: b.lastErr}
}

// Submit writes o to the engine and collects reports until o is filled or
// rejected, the report timeout elapses, or the engine exits.
func (b *Bridge) Submit(ctx context.Context, o Order) ([]Report, error) {
	b.submitMu.Lock()
	defer b.submitMu.Unlock()

	b.mu.Lock()
	alive, stdin, done, lastErr := b.alive, b.stdin, b.done, b.lastErr
	b.mu.Unlock()
	if !alive {
		return nil, core.Errorf(core.ErrEngineUnavailable, "%s", lastErr)
	}

	b.drain()

	line, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	if _, err := stdin.Write(append(line, '\n')); err != nil {
		return nil, core.WrapError(core.ErrEngineUnavailable, err)
	}

	timer := time.NewTimer(b.cfg.ReportTimeout)
	defer timer.Stop()

	reports := []Report{}
	for {
		select {
		case rep := <-b.reports:
			reports = append(reports, rep)
			if rep.Terminal(o.OrderID) {
				return reports, nil
			}
		case <-timer.C:
			b.logger.Warn("engine report timeout",
				zap.String("order_id", o.OrderID),
				zap.Int("reports", len(reports)),
				zap.Duration("timeout", b.cfg.ReportTimeout),
			)
			return reports, nil
		case <-done:
			// every line the engine wrote is buffered once done is closed
			for _, rep := range b.buffered() {
				reports = append(reports, rep)
				if rep.Terminal(o.OrderID) {
					return reports, nil
				}
			}
			return reports, core.Errorf(core.ErrEngineUnavailable, "engine exited while order %s was pending", o.OrderID)
		case <-ctx.Done():
			return reports, core.FromContext(ctx.Err())
		}
	}
}

// drain discards reports left over from earlier orders.
func (b *Bridge) drain() {
	for _, rep := range b.buffered() {
		b.logger.Debug("discarding stale engine report", zap.String("type", rep.Type), zap.String("order_id", rep.OrderID))
	}
}

func (b *Bridge) buffered() []Report {
	var out []Report
	for {
		select {
		case rep := <-b.reports:
			out = append(out, rep)
		default:
			return out
		}
	}
}
