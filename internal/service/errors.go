package service

import (
	"errors"
	"fmt"
)

var (
	ErrQueueFull   = errors.New("dispatch queue is full")
	ErrQueueClosed = errors.New("dispatch queue is shut down")
)

// ProcessError is a command that ran but exited with a non-zero status.
type ProcessError struct {
	Command  string
	ExitCode int
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("`%s` exited with status %d", e.Command, e.ExitCode)
}

// StageError aborts a deployment pipeline.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
