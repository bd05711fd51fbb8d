package gol

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is returned by Coordinator.Initialize for parameters that prevent a run from starting.
	ErrConfig = errors.New("invalid run configuration")

	// ErrNotSquare is returned when grid rows do not form an N×N matrix.
	ErrNotSquare = errors.New("grid is not square")

	ErrInvalidSize    = errors.New("grid size must be positive")
	ErrInvalidWorkers = errors.New("worker count must be at least 1")

	// ErrProtocol marks a violation of the exchange protocol: a message of the
	// wrong size, a generation out of sequence or a worker that did not answer.
	ErrProtocol = errors.New("exchange protocol violation")

	// ErrMalformedInput is returned by the text loader.
	ErrMalformedInput = errors.New("malformed grid input")

	ErrNotFinished = errors.New("run has not completed all generations")
	ErrFinished    = errors.New("all generations already computed")
)

// Stage names the part of a generation in which a run failed.
type Stage string

const (
	StageSetup    Stage = "setup"
	StageSend     Stage = "send"
	StageReceive  Stage = "receive"
	StageAssemble Stage = "assemble"
)

// RunError is the single run-level failure surfaced to the coordinator's caller.
type RunError struct {
	Generation int
	Worker     int // -1 when the failure is not tied to one worker
	Stage      Stage
	Err        error
}

func (e *RunError) Error() string {
	if e.Worker < 0 {
		return fmt.Sprintf("generation %d: %s: %v", e.Generation, e.Stage, e.Err)
	}
	return fmt.Sprintf("generation %d: worker %d: %s: %v", e.Generation, e.Worker, e.Stage, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
