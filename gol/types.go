// Definitions of types that are shared across coordinator and workers

package gol

// Band is the contiguous range of rows owned by one worker for the whole run.
type Band struct {
	Index       int
	FirstRow    int  // First interior row in grid coordinates
	RowCount    int  // Number of interior rows the worker produces
	TopGhost    bool // False only for the first band
	BottomGhost bool // False only for the last band
}

// Partition is the ordered set of bands covering rows [0, N).
type Partition []Band

// GhostTop is 1 when the band receives a copy of its upper neighbour's last row.
func (b Band) GhostTop() int {
	if b.TopGhost {
		return 1
	}
	return 0
}

// GhostBottom is 1 when the band receives a copy of its lower neighbour's first row.
func (b Band) GhostBottom() int {
	if b.BottomGhost {
		return 1
	}
	return 0
}

// EndRow is the first grid row after the band's interior (not inclusive).
func (b Band) EndRow() int {
	return b.FirstRow + b.RowCount
}

// BufferRows is the number of rows in the band buffer, ghosts included.
func (b Band) BufferRows() int {
	return b.GhostTop() + b.RowCount + b.GhostBottom()
}

// BufferLen is the number of cells exchanged from coordinator to worker.
func (b Band) BufferLen(width int) int {
	return b.BufferRows() * width
}

// InteriorLen is the number of cells exchanged from worker to coordinator.
func (b Band) InteriorLen(width int) int {
	return b.RowCount * width
}

// Rows returns the total number of interior rows in the partition.
func (p Partition) Rows() int {
	rows := 0
	for _, band := range p {
		rows += band.RowCount
	}
	return rows
}

// Parameters every worker learns before generation 0
type SetupArgs struct {
	Size        int  // Grid width and height
	Generations int  // Number of generations in the run
	Workers     int  // Effective worker count after capping
	Band        Band // Band assigned to the receiving worker
	Threads     int  // Local goroutines used to evaluate the band
}

type SetupReply struct{}

// Message from coordinator to worker carrying the band buffer of one generation
type StepArgs struct {
	Generation int
	Worker     int
	Cells      []byte // Bit-packed band buffer, length derived from the partition
}

// Message from worker to coordinator carrying the computed interior rows
type StepReply struct {
	Generation int
	Worker     int
	Cells      []byte // Bit-packed interior rows
}
