package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// waitDelay bounds how long output of a finished or killed process is drained.
const waitDelay = 5 * time.Second

// Command is a single external program invocation. WorkingDir is relative to
// the base directory the command is run in.
type Command struct {
	Program    string   `yaml:"program"     validate:"required"`
	Args       []string `yaml:"args"`
	WorkingDir string   `yaml:"working_dir"`
}

func (c Command) String() string {
	return strings.TrimSpace(c.Program + " " + strings.Join(c.Args, " "))
}

type Runner struct {
	log *zap.SugaredLogger
}

func NewRunner(log *zap.SugaredLogger) *Runner {
	return &Runner{log: log}
}

// Run executes cmd in base joined with cmd.WorkingDir and returns its exit
// status. The error is only set when the process could not be run to
// completion, a non-zero exit is reported through the status alone.
func (r *Runner) Run(ctx context.Context, cmd Command, base string) (int, error) {
	dir := base
	if cmd.WorkingDir != "" {
		dir = filepath.Join(base, cmd.WorkingDir)
	}

	stdout := newLogWriter(r.log, cmd.Program, "stdout")
	stderr := newLogWriter(r.log, cmd.Program, "stderr")

	command := exec.CommandContext(ctx, cmd.Program, cmd.Args...)
	command.Dir = dir
	command.Stdout = stdout
	command.Stderr = stderr
	command.WaitDelay = waitDelay

	r.log.Infow("Executing command", "cmd", cmd.String(), "dir", dir)

	err := command.Run()
	stdout.Flush()
	stderr.Flush()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, fmt.Errorf("command %q interrupted: %w", cmd.String(), ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		r.log.Infow("Command exited", "cmd", cmd.String(), "status", exitErr.ExitCode())
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return -1, fmt.Errorf("err running command %q: %w", cmd.String(), err)
	}

	r.log.Infow("Command exited", "cmd", cmd.String(), "status", 0)
	return 0, nil
}

// logWriter forwards complete lines of process output to the logger.
type logWriter struct {
	log     *zap.SugaredLogger
	program string
	stream  string
	buf     bytes.Buffer
}

func newLogWriter(log *zap.SugaredLogger, program, stream string) *logWriter {
	return &logWriter{log: log, program: program, stream: stream}
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// incomplete line, keep it for the next write
			w.buf.Reset()
			w.buf.WriteString(line)
			return len(p), nil
		}
		w.emit(line)
	}
}

func (w *logWriter) Flush() {
	if w.buf.Len() > 0 {
		w.emit(w.buf.String())
		w.buf.Reset()
	}
}

func (w *logWriter) emit(line string) {
	w.log.Debugw(strings.TrimRight(line, "\r\n"), "program", w.program, "stream", w.stream)
}
