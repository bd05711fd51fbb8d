package gol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"uk.ac.bris.cs/distlife/internal/logging"
)

// Coordinator owns the authoritative grid and drives the exchange protocol.
// Workers only ever receive copies of the rows they need.
type Coordinator struct {
	dialer      Dialer
	logger      *slog.Logger
	metrics     *Metrics
	threads     int
	stepTimeout time.Duration
	runTimeout  time.Duration
	observer    func(generation int, grid *Grid)

	grid        *Grid
	partition   Partition
	links       []Link
	generation  int // generations completed so far
	generations int // generations requested
	initialized bool
}

type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func WithMetrics(metrics *Metrics) Option {
	return func(c *Coordinator) { c.metrics = metrics }
}

// WithThreads sets the number of routines each worker evaluates its band with.
func WithThreads(threads int) Option {
	return func(c *Coordinator) { c.threads = threads }
}

// WithStepTimeout bounds a single exchange round.
func WithStepTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.stepTimeout = d }
}

// WithRunTimeout bounds the setup in Initialize and, separately, the whole of Run.
func WithRunTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.runTimeout = d }
}

// WithObserver is called with a copy of the grid after every generation.
func WithObserver(observer func(generation int, grid *Grid)) Option {
	return func(c *Coordinator) { c.observer = observer }
}

func NewCoordinator(dialer Dialer, opts ...Option) *Coordinator {
	c := &Coordinator{
		dialer:  dialer,
		logger:  logging.NewNop(),
		threads: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InitializeRows is Initialize for a grid given as rows.
func (c *Coordinator) InitializeRows(ctx context.Context, rows [][]bool, generations, workers int) error {
	grid, err := GridFromRows(rows)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return c.Initialize(ctx, grid, generations, workers)
}

// Initialize plans the partition, connects one worker per band and tells every
// worker its band before generation 0. The grid is copied.
func (c *Coordinator) Initialize(ctx context.Context, grid *Grid, generations, workers int) error {
	switch {
	case grid == nil || grid.Size() == 0:
		return fmt.Errorf("%w: %w", ErrConfig, ErrNotSquare)
	case generations < 0:
		return fmt.Errorf("%w: negative generation count %d", ErrConfig, generations)
	case workers < 1:
		return fmt.Errorf("%w: %w", ErrConfig, ErrInvalidWorkers)
	}

	partition, err := PlanPartition(grid.Size(), workers)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if c.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.runTimeout)
		defer cancel()
	}

	// Reset coordinator status
	if err := c.Close(); err != nil {
		c.logger.Warn("closing links of previous run", "error", err)
	}
	c.grid = grid.Clone()
	c.partition = partition
	c.generation = 0
	c.generations = generations
	c.initialized = false

	c.logger.Info("initialize",
		"size", grid.Size(),
		"generations", generations,
		"workers_requested", workers,
		"workers", len(partition),
		"threads", c.threads)

	// Connect workers
	links := make([]Link, 0, len(partition))
	for _, band := range partition {
		link, err := c.dialer.Dial(ctx, band.Index)
		if err != nil {
			closeLinks(links)
			return &RunError{Generation: 0, Worker: band.Index, Stage: StageSetup, Err: err}
		}
		links = append(links, link)
	}

	// Distribute band shapes
	group, groupCtx := errgroup.WithContext(ctx)
	for i, link := range links {
		link := link
		args := SetupArgs{
			Size:        grid.Size(),
			Generations: generations,
			Workers:     len(partition),
			Band:        partition[i],
			Threads:     c.threads,
		}
		group.Go(func() error {
			if err := link.Setup(groupCtx, args); err != nil {
				return &RunError{Generation: 0, Worker: args.Band.Index, Stage: StageSetup, Err: err}
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		closeLinks(links)
		return err
	}

	c.links = links
	c.initialized = true
	return nil
}

// Partition returns the bands planned by Initialize.
func (c *Coordinator) Partition() Partition {
	return c.partition
}

// Generation returns the number of generations completed.
func (c *Coordinator) Generation() int {
	return c.generation
}

// Build the message for a band from the current grid: interior rows plus ghosts
func (c *Coordinator) bandMessage(band Band) StepArgs {
	from := band.FirstRow - band.GhostTop()
	to := band.EndRow() + band.GhostBottom()
	return StepArgs{
		Generation: c.generation,
		Worker:     band.Index,
		Cells:      packCells(c.grid.span(from, to)),
	}
}

// Any failure of a link that is not a deadline is a protocol violation
func protocolError(err error) error {
	if errors.Is(err, ErrProtocol) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrProtocol, err)
}

// Check a reply against what the partition says the worker must return
func (c *Coordinator) checkReply(band Band, reply StepReply) error {
	if reply.Generation != c.generation || reply.Worker != band.Index {
		return fmt.Errorf("%w: reply for worker %d generation %d, expected worker %d generation %d",
			ErrProtocol, reply.Worker, reply.Generation, band.Index, c.generation)
	}
	want := packedLen(band.InteriorLen(c.grid.Size()))
	if len(reply.Cells) != want {
		return fmt.Errorf("%w: %d interior bytes, expected %d", ErrProtocol, len(reply.Cells), want)
	}
	return nil
}

// RunGeneration executes one round of the exchange protocol. It returns after
// every worker's interior rows have been received and written into the grid.
func (c *Coordinator) RunGeneration(ctx context.Context) error {
	if !c.initialized {
		return fmt.Errorf("%w: coordinator not initialized", ErrConfig)
	}
	if c.generation >= c.generations {
		return ErrFinished
	}
	if c.stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.stepTimeout)
		defer cancel()
	}
	timer := c.metrics.startGeneration()

	// Every message is built before any row of the grid changes
	messages := make([]StepArgs, len(c.partition))
	for i, band := range c.partition {
		messages[i] = c.bandMessage(band)
	}

	// Send bands and wait for all interiors (barrier)
	replies := make([]StepReply, len(c.partition))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, link := range c.links {
		i, link := i, link
		group.Go(func() error {
			reply, err := link.Step(groupCtx, messages[i])
			if err != nil {
				return &RunError{Generation: c.generation, Worker: i, Stage: StageSend, Err: protocolError(err)}
			}
			replies[i] = reply
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		c.metrics.stepFailed()
		c.logger.Error("generation failed", "generation", c.generation, "error", err)
		return err
	}

	for i, band := range c.partition {
		if err := c.checkReply(band, replies[i]); err != nil {
			c.metrics.stepFailed()
			c.logger.Error("generation failed", "generation", c.generation, "error", err)
			return &RunError{Generation: c.generation, Worker: i, Stage: StageReceive, Err: err}
		}
	}

	// Reassemble the grid from the interiors
	for i, band := range c.partition {
		if err := unpackCellsTo(replies[i].Cells, c.grid.span(band.FirstRow, band.EndRow())); err != nil {
			return &RunError{Generation: c.generation, Worker: i, Stage: StageAssemble, Err: err}
		}
		c.metrics.bandExchanged(len(messages[i].Cells), len(replies[i].Cells))
	}

	c.generation++
	timer.observe()
	c.metrics.generationDone(c.grid.AliveCount())
	c.logger.Debug("generation complete", "generation", c.generation)

	if c.observer != nil {
		c.observer(c.generation, c.grid.Clone())
	}
	return nil
}

// Run computes every remaining generation.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.runTimeout)
		defer cancel()
	}
	for c.generation < c.generations {
		if err := c.RunGeneration(ctx); err != nil {
			return err
		}
	}
	c.logger.Info("run complete", "generations", c.generation)
	return nil
}

// FinalGrid returns a copy of the grid once every requested generation has run.
func (c *Coordinator) FinalGrid() (*Grid, error) {
	if c.grid == nil || c.generation < c.generations {
		return nil, ErrNotFinished
	}
	return c.grid.Clone(), nil
}

// Close releases every worker link.
func (c *Coordinator) Close() error {
	err := closeLinks(c.links)
	c.links = nil
	c.initialized = false
	return err
}

func closeLinks(links []Link) error {
	var errs []error
	for _, link := range links {
		if err := link.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
