package gol

import "context"

// Params provides the details of how to run the Game of Life.
type Params struct {
	Generations int
	Workers     int
	Threads     int
}

// Run evolves grid for p.Generations through p.Workers workers reached via dialer
// and returns the final grid. The links are closed before Run returns.
func Run(ctx context.Context, grid *Grid, p Params, dialer Dialer, opts ...Option) (*Grid, error) {
	threads := p.Threads
	if threads < 1 {
		threads = 1
	}
	coordinator := NewCoordinator(dialer, append([]Option{WithThreads(threads)}, opts...)...)
	defer coordinator.Close()

	if err := coordinator.Initialize(ctx, grid, p.Generations, p.Workers); err != nil {
		return nil, err
	}
	if err := coordinator.Run(ctx); err != nil {
		return nil, err
	}
	return coordinator.FinalGrid()
}

// Evolve computes generations sequentially over the whole grid, without workers.
func Evolve(grid *Grid, generations int) *Grid {
	current := grid.Clone()
	for i := 0; i < generations; i++ {
		current = current.Next()
	}
	return current
}
