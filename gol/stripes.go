package gol

// Buffers a stripe routine reads from and writes to for one generation
type stripeTurn struct {
	src []bool
	dst []bool
}

// Rows of the band buffer evaluated by one routine
type stripe struct {
	from int
	to   int // not inclusive
}

// stripePool evaluates the interior of a band with a fixed set of long-lived
// routines. Each routine owns a disjoint set of rows of the destination buffer.
type stripePool struct {
	width   int
	stripes []stripe
	turns   []chan stripeTurn
	done    chan struct{}
}

// Divide the interior rows of a band between at most threads routines
func divideToStripes(band Band, threads int) []stripe {
	if threads < 1 {
		threads = 1
	}
	if threads > band.RowCount {
		threads = band.RowCount
	}
	offset := band.GhostTop()
	stripes := make([]stripe, threads)
	for i := 0; i != threads; i++ {
		stripes[i] = stripe{
			from: offset + i*band.RowCount/threads,
			to:   offset + (i+1)*band.RowCount/threads,
		}
	}
	return stripes
}

func newStripePool(band Band, width, threads int) *stripePool {
	pool := &stripePool{
		width:   width,
		stripes: divideToStripes(band, threads),
		done:    make(chan struct{}),
	}
	if len(pool.stripes) == 1 {
		// Evaluated inline by run
		return pool
	}
	pool.turns = make([]chan stripeTurn, len(pool.stripes))
	for i, s := range pool.stripes {
		pool.turns[i] = make(chan stripeTurn)
		go stripeRoutine(s, width, pool.turns[i], pool.done)
	}
	return pool
}

func stripeRoutine(s stripe, width int, turns <-chan stripeTurn, done chan<- struct{}) {
	for turn := range turns {
		Step(turn.src, turn.dst, width, s.from, s.to)
		done <- struct{}{}
	}
}

// run evaluates one generation and returns once every stripe has finished.
func (pool *stripePool) run(src, dst []bool) {
	if pool.turns == nil {
		s := pool.stripes[0]
		Step(src, dst, pool.width, s.from, s.to)
		return
	}
	for _, turns := range pool.turns {
		turns <- stripeTurn{src: src, dst: dst}
	}
	for range pool.turns {
		<-pool.done
	}
}

// close stops all stripe routines. The pool must not be used afterwards.
func (pool *stripePool) close() {
	for _, turns := range pool.turns {
		close(turns)
	}
	pool.turns = nil
}
