package gol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"uk.ac.bris.cs/distlife/internal/logging"
)

// Link is the coordinator's connection to one worker. Every message is a copy;
// nothing sent over a link is shared with the other side.
type Link interface {
	// Setup tells the worker its band before generation 0.
	Setup(ctx context.Context, args SetupArgs) error
	// Step sends a band buffer and blocks until the interior rows come back.
	Step(ctx context.Context, args StepArgs) (StepReply, error)
	Close() error
}

// Dialer opens the link to the worker serving band index.
type Dialer interface {
	Dial(ctx context.Context, index int) (Link, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, index int) (Link, error)

func (f DialerFunc) Dial(ctx context.Context, index int) (Link, error) {
	return f(ctx, index)
}

var errLinkClosed = errors.New("link closed")

// LocalDialer runs every worker as a goroutine in this process.
type LocalDialer struct {
	Logger *slog.Logger
}

func (d LocalDialer) Dial(_ context.Context, index int) (Link, error) {
	logger := d.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	link := &localLink{
		requests: make(chan localRequest),
		done:     make(chan struct{}),
	}
	go link.serve(NewWorker(logger.With("worker", index)))
	return link, nil
}

// Request delivered to a local worker routine
type localRequest struct {
	setup *SetupArgs
	step  *StepArgs
	reply chan localResponse
}

type localResponse struct {
	reply StepReply
	err   error
}

// localLink connects the coordinator to a worker routine through channels.
type localLink struct {
	requests chan localRequest
	done     chan struct{}
	once     sync.Once
}

// Worker routine: handles one request at a time until the link is closed
func (link *localLink) serve(worker *Worker) {
	defer worker.Close()
	for {
		select {
		case <-link.done:
			return
		case request := <-link.requests:
			var response localResponse
			if request.setup != nil {
				response.err = worker.Setup(*request.setup)
			} else {
				response.reply, response.err = worker.Step(*request.step)
			}
			request.reply <- response // buffered, never blocks
		}
	}
}

func (link *localLink) call(ctx context.Context, request localRequest) (StepReply, error) {
	request.reply = make(chan localResponse, 1)
	select {
	case link.requests <- request:
	case <-link.done:
		return StepReply{}, errLinkClosed
	case <-ctx.Done():
		return StepReply{}, ctx.Err()
	}
	select {
	case response := <-request.reply:
		return response.reply, response.err
	case <-ctx.Done():
		return StepReply{}, ctx.Err()
	}
}

func (link *localLink) Setup(ctx context.Context, args SetupArgs) error {
	_, err := link.call(ctx, localRequest{setup: &args})
	return err
}

func (link *localLink) Step(ctx context.Context, args StepArgs) (StepReply, error) {
	reply, err := link.call(ctx, localRequest{step: &args})
	if err != nil {
		return StepReply{}, fmt.Errorf("local worker %d: %w", args.Worker, err)
	}
	return reply, nil
}

func (link *localLink) Close() error {
	link.once.Do(func() { close(link.done) })
	return nil
}
