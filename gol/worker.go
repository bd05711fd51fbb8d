package gol

import (
	"fmt"
	"log/slog"
	"sync"

	"uk.ac.bris.cs/distlife/internal/logging"
)

type workerState uint8

// A worker moves through these states once per generation, in this order.
const (
	workerIdle workerState = iota
	workerReceived
	workerComputed
)

// Worker owns one band for the duration of a run. It never sees the global
// grid or another worker's band; all input arrives through ReceiveBand.
type Worker struct {
	logger *slog.Logger

	mutex      sync.Mutex // serialises setup and steps from concurrent callers
	params     SetupArgs
	ready      bool
	state      workerState
	generation int    // generation expected by the next ReceiveBand
	current    []bool // band buffer of the current generation
	next       []bool // band buffer the next generation is written to
	pool       *stripePool
}

func NewWorker(logger *slog.Logger) *Worker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Worker{logger: logger}
}

// Check that a band agrees with the rest of the setup parameters
func validateSetup(params SetupArgs) error {
	band := params.Band
	switch {
	case params.Size <= 0:
		return ErrInvalidSize
	case params.Workers < 1:
		return ErrInvalidWorkers
	case params.Generations < 0:
		return fmt.Errorf("%w: negative generation count %d", ErrConfig, params.Generations)
	case band.Index < 0 || band.Index >= params.Workers:
		return fmt.Errorf("%w: band index %d outside %d workers", ErrConfig, band.Index, params.Workers)
	case band.RowCount <= 0 || band.FirstRow < 0 || band.EndRow() > params.Size:
		return fmt.Errorf("%w: band rows [%d, %d) outside grid of %d rows",
			ErrConfig, band.FirstRow, band.EndRow(), params.Size)
	case band.TopGhost != (band.Index > 0) || band.BottomGhost != (band.Index < params.Workers-1):
		return fmt.Errorf("%w: ghost rows of band %d do not match its neighbours", ErrConfig, band.Index)
	}
	return nil
}

// Setup allocates the band buffer pair and the stripe routines.
// Calling Setup again abandons the previous run.
func (worker *Worker) Setup(params SetupArgs) error {
	if err := validateSetup(params); err != nil {
		return err
	}

	worker.mutex.Lock()
	defer worker.mutex.Unlock()

	// Cancel last task if not completed
	if worker.pool != nil {
		worker.pool.close()
	}

	band := params.Band
	worker.params = params
	worker.current = make([]bool, band.BufferLen(params.Size))
	worker.next = make([]bool, band.BufferLen(params.Size))
	worker.pool = newStripePool(band, params.Size, params.Threads)
	worker.generation = 0
	worker.state = workerIdle
	worker.ready = true

	worker.logger.Info("worker setup",
		"worker", band.Index,
		"size", params.Size,
		"generations", params.Generations,
		"first_row", band.FirstRow,
		"rows", band.RowCount,
		"stripes", len(worker.pool.stripes))
	return nil
}

// Band returns the band assigned at setup.
func (worker *Worker) Band() Band {
	worker.mutex.Lock()
	defer worker.mutex.Unlock()
	return worker.params.Band
}

// Generation returns the generation the worker expects to receive next.
func (worker *Worker) Generation() int {
	worker.mutex.Lock()
	defer worker.mutex.Unlock()
	return worker.generation
}

func (worker *Worker) checkReceive(generation int) error {
	if !worker.ready {
		panic("gol: ReceiveBand called before Setup")
	}
	if worker.state != workerIdle {
		panic("gol: ReceiveBand called before the previous generation was sent")
	}
	if generation != worker.generation {
		return fmt.Errorf("%w: worker %d received generation %d, expected %d",
			ErrProtocol, worker.params.Band.Index, generation, worker.generation)
	}
	if generation >= worker.params.Generations {
		return fmt.Errorf("%w: worker %d received generation %d of a %d generation run",
			ErrProtocol, worker.params.Band.Index, generation, worker.params.Generations)
	}
	return nil
}

// ReceiveBand copies the band buffer of a generation into the worker.
func (worker *Worker) ReceiveBand(generation int, cells []bool) error {
	worker.mutex.Lock()
	defer worker.mutex.Unlock()
	return worker.receiveBand(generation, cells)
}

func (worker *Worker) receiveBand(generation int, cells []bool) error {
	if err := worker.checkReceive(generation); err != nil {
		return err
	}
	if len(cells) != len(worker.current) {
		return fmt.Errorf("%w: worker %d received %d cells, expected %d",
			ErrProtocol, worker.params.Band.Index, len(cells), len(worker.current))
	}
	copy(worker.current, cells)
	worker.state = workerReceived
	return nil
}

func (worker *Worker) receivePacked(generation int, data []byte) error {
	if err := worker.checkReceive(generation); err != nil {
		return err
	}
	if err := unpackCellsTo(data, worker.current); err != nil {
		return fmt.Errorf("worker %d: %w", worker.params.Band.Index, err)
	}
	worker.state = workerReceived
	return nil
}

// ComputeNext evaluates the interior rows of the received band.
func (worker *Worker) ComputeNext() {
	worker.mutex.Lock()
	defer worker.mutex.Unlock()
	worker.computeNext()
}

func (worker *Worker) computeNext() {
	if worker.state != workerReceived {
		panic("gol: ComputeNext called before ReceiveBand")
	}
	worker.pool.run(worker.current, worker.next)
	worker.state = workerComputed
}

// Interior rows of the computed buffer, without ghosts
func (worker *Worker) interior() []bool {
	band := worker.params.Band
	width := worker.params.Size
	from := band.GhostTop() * width
	return worker.next[from : from+band.InteriorLen(width)]
}

// Swap current and next buffer and move on to the following generation
func (worker *Worker) finishGeneration() {
	worker.current, worker.next = worker.next, worker.current
	worker.generation++
	worker.state = workerIdle
}

// SendInterior returns a copy of the computed interior rows and completes the generation.
func (worker *Worker) SendInterior() []bool {
	worker.mutex.Lock()
	defer worker.mutex.Unlock()
	if worker.state != workerComputed {
		panic("gol: SendInterior called before ComputeNext")
	}
	interior := make([]bool, len(worker.interior()))
	copy(interior, worker.interior())
	worker.finishGeneration()
	return interior
}

// Step runs receive, compute and send for one message of the exchange protocol.
func (worker *Worker) Step(args StepArgs) (StepReply, error) {
	worker.mutex.Lock()
	defer worker.mutex.Unlock()

	if !worker.ready {
		return StepReply{}, fmt.Errorf("%w: step before setup", ErrProtocol)
	}
	if args.Worker != worker.params.Band.Index {
		return StepReply{}, fmt.Errorf("%w: message for worker %d delivered to worker %d",
			ErrProtocol, args.Worker, worker.params.Band.Index)
	}
	if err := worker.receivePacked(args.Generation, args.Cells); err != nil {
		return StepReply{}, err
	}
	worker.computeNext()
	reply := StepReply{
		Generation: args.Generation,
		Worker:     worker.params.Band.Index,
		Cells:      packCells(worker.interior()),
	}
	worker.finishGeneration()

	worker.logger.Debug("generation computed", "worker", reply.Worker, "generation", reply.Generation)
	return reply, nil
}

// Close stops the stripe routines.
func (worker *Worker) Close() {
	worker.mutex.Lock()
	defer worker.mutex.Unlock()
	if worker.pool != nil {
		worker.pool.close()
		worker.pool = nil
	}
	worker.ready = false
}
