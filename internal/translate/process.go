package translate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// WorkerCommand is the sub-command name the binary answers to when run as a translation worker.
const WorkerCommand = "translate-worker"

// Process runs each translation in a child process so a hung call can be killed outright.
// The child reads the source text on stdin and writes the translation on stdout.
type Process struct {
	path    string
	args    []string
	timeout time.Duration
	env     []string
}

// NewProcess returns a translator that executes path with args for every call.
// Use SelfProcess to re-execute the running binary as a worker.
func NewProcess(path string, args []string, timeout time.Duration) *Process {
	return &Process{path: path, args: args, timeout: timeout}
}

// SelfProcess returns a Process that re-executes the current binary with the
// translate-worker sub-command and the given extra arguments.
func SelfProcess(timeout time.Duration, extraArgs ...string) (*Process, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate executable: %w", err)
	}
	args := append([]string{WorkerCommand}, extraArgs...)
	return NewProcess(exe, args, timeout), nil
}

// WithEnv sets extra environment variables for the child process.
func (p *Process) WithEnv(env ...string) *Process {
	p.env = append(p.env, env...)
	return p
}

// Translate starts the worker, feeds text, and waits up to the timeout.
// On deadline the child is killed and ErrTimeout is returned.
func (p *Process) Translate(ctx context.Context, text string) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.path, p.args...)
	cmd.Stdin = strings.NewReader(text)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 500 * time.Millisecond
	if len(p.env) > 0 {
		cmd.Env = append(os.Environ(), p.env...)
	}

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, p.timeout)
		}
		return "", ctxErr
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("translation worker failed: %w: %s", err, msg)
		}
		return "", fmt.Errorf("translation worker failed: %w", err)
	}
	return stdout.String(), nil
}

// RunWorker is the body of the worker process: it translates everything read from in and writes the result to out.
func RunWorker(ctx context.Context, t Translator, in io.Reader, out io.Writer) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	translated, err := t.Translate(ctx, string(data))
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, translated)
	return err
}
