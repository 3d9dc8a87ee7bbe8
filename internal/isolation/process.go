package isolation

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// maxMessageSize bounds one NDJSON line on the worker wire.
const maxMessageSize = 16 * 1024 * 1024

// Command describes how to start a worker process.
type Command struct {
	Path string
	Args []string
	Env  []string
	// Dir is the working directory; empty means the caller's.
	Dir string
}

// SelfCommand runs the current executable's worker subcommand.
func SelfCommand() (Command, error) {
	exe, err := os.Executable()
	if err != nil {
		return Command{}, fmt.Errorf("failed to locate executable: %w", err)
	}
	return Command{Path: exe, Args: []string{"worker"}}, nil
}

// ProcessPool runs each worker in a child process speaking newline-delimited
// JSON on stdin and stdout. A child that fails or is cancelled mid-request is
// killed and replaced on the next request.
type ProcessPool struct {
	cmd    Command
	logger *zap.Logger

	idle   chan *process
	stopCh chan struct{}

	mu        sync.Mutex
	busy      map[*process]struct{}
	closeOnce sync.Once
}

// NewProcessPool creates a pool of size worker slots. Processes start lazily.
func NewProcessPool(size int, cmd Command, logger *zap.Logger) *ProcessPool {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &ProcessPool{
		cmd:    cmd,
		logger: logger,
		idle:   make(chan *process, size),
		stopCh: make(chan struct{}),
		busy:   make(map[*process]struct{}),
	}
	for i := 0; i < size; i++ {
		p.idle <- nil
	}
	return p
}

// Request sends req to a free worker process and waits for its response.
func (p *ProcessPool) Request(ctx context.Context, req Request) (Response, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	var proc *process
	select {
	case proc = <-p.idle:
	case <-p.stopCh:
		return Response{}, ErrWorkerClosed
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}

	proc, err := p.acquire(proc)
	if err != nil {
		p.idle <- proc
		return Response{}, err
	}

	resp, err := proc.roundTrip(ctx, req)
	p.release(proc)
	if err != nil {
		p.logger.Debug("worker process failed", zap.Int("pid", proc.pid()), zap.Error(err))
		proc.kill()
		p.idle <- nil
		return Response{}, err
	}
	p.idle <- proc
	return check(req, resp)
}

// acquire marks proc busy, starting a process for an empty slot. It fails once
// the pool is closed, so Close sees every process that is mid-request.
func (p *ProcessPool) acquire(proc *process) (*process, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-p.stopCh:
		return proc, ErrWorkerClosed
	default:
	}

	if proc == nil {
		var err error
		if proc, err = startProcess(p.cmd); err != nil {
			return nil, err
		}
		p.logger.Debug("worker process started", zap.Int("pid", proc.pid()))
	}
	p.busy[proc] = struct{}{}
	return proc, nil
}

func (p *ProcessPool) release(proc *process) {
	p.mu.Lock()
	delete(p.busy, proc)
	p.mu.Unlock()
}

// Close stops every worker process. Processes mid-request are signalled and
// reaped by their request once its read has returned; Close waits for every
// slot before waiting on the idle processes.
func (p *ProcessPool) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		close(p.stopCh)
		for proc := range p.busy {
			proc.signal()
		}
		p.mu.Unlock()

		for i := 0; i < cap(p.idle); i++ {
			if proc := <-p.idle; proc != nil {
				err = multierr.Append(err, proc.close())
			}
		}
	})
	return err
}

type process struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	out   *bufio.Scanner
	enc   *json.Encoder
}

func startProcess(c Command) (*process, error) {
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	if c.Env != nil {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}

	out := bufio.NewScanner(stdout)
	out.Buffer(make([]byte, 64*1024), maxMessageSize)

	return &process{cmd: cmd, stdin: stdin, out: out, enc: json.NewEncoder(stdin)}, nil
}

func (p *process) pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// roundTrip writes one request and reads one response. Cancelling ctx kills
// the process; the caller reaps it.
func (p *process) roundTrip(ctx context.Context, req Request) (Response, error) {
	type result struct {
		resp Response
		err  error
	}
	done := make(chan result, 1)

	go func() {
		if err := p.enc.Encode(req); err != nil {
			done <- result{err: fmt.Errorf("failed to write request: %w", err)}
			return
		}
		if !p.out.Scan() {
			err := p.out.Err()
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			done <- result{err: fmt.Errorf("failed to read response: %w", err)}
			return
		}
		var resp Response
		if err := json.Unmarshal(p.out.Bytes(), &resp); err != nil {
			done <- result{err: fmt.Errorf("failed to decode response: %w", err)}
			return
		}
		done <- result{resp: resp}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-ctx.Done():
		p.signal()
		<-done
		return Response{}, ctx.Err()
	}
}

// signal kills the process without waiting for it. Reads in flight return
// with an error.
func (p *process) signal() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}

// kill signals the process and reaps it. No read may be in flight.
func (p *process) kill() {
	p.signal()
	_ = p.cmd.Wait()
}

// close ends the worker by closing its stdin and waits for it to exit.
func (p *process) close() error {
	if err := p.stdin.Close(); err != nil {
		p.kill()
		return err
	}
	if err := p.cmd.Wait(); err != nil {
		return fmt.Errorf("worker %d exited: %w", p.pid(), err)
	}
	return nil
}
