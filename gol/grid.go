package gol

import (
	"fmt"
	"strings"
)

// Grid is a flat row-major N×N matrix of cells.
type Grid struct {
	size  int
	cells []bool
}

// Cell is the position of a single cell.
type Cell struct {
	X, Y int
}

// NewGrid makes an all-dead grid.
func NewGrid(size int) (*Grid, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	return &Grid{size: size, cells: make([]bool, size*size)}, nil
}

// GridFromRows copies rows into a new grid.
func GridFromRows(rows [][]bool) (*Grid, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrNotSquare)
	}
	grid := &Grid{size: len(rows), cells: make([]bool, len(rows)*len(rows))}
	for y, row := range rows {
		if len(row) != grid.size {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrNotSquare, y, len(row), grid.size)
		}
		copy(grid.cells[y*grid.size:], row)
	}
	return grid, nil
}

// Size is the number of rows, which is also the number of columns.
func (g *Grid) Size() int {
	return g.size
}

// Alive reports whether the cell in column x of row y is alive.
func (g *Grid) Alive(x, y int) bool {
	return g.cells[y*g.size+x]
}

// Set changes the state of the cell in column x of row y.
func (g *Grid) Set(x, y int, alive bool) {
	g.cells[y*g.size+x] = alive
}

// Row returns a view of row y; writes go through to the grid.
func (g *Grid) Row(y int) []bool {
	return g.cells[y*g.size : (y+1)*g.size]
}

// Rows returns a copy of the grid as a 2D slice.
func (g *Grid) Rows() [][]bool {
	rows := make([][]bool, g.size)
	for y := range rows {
		rows[y] = make([]bool, g.size)
		copy(rows[y], g.Row(y))
	}
	return rows
}

// span returns a view of rows [from, to).
func (g *Grid) span(from, to int) []bool {
	return g.cells[from*g.size : to*g.size]
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	cells := make([]bool, len(g.cells))
	copy(cells, g.cells)
	return &Grid{size: g.size, cells: cells}
}

// Equal reports whether both grids have the same size and cells.
func (g *Grid) Equal(other *Grid) bool {
	if other == nil || g.size != other.size {
		return false
	}
	for i := range g.cells {
		if g.cells[i] != other.cells[i] {
			return false
		}
	}
	return true
}

// AliveCount returns the number of alive cells.
func (g *Grid) AliveCount() int {
	count := 0
	for _, alive := range g.cells {
		if alive {
			count++
		}
	}
	return count
}

// AliveCells lists alive positions, top row first.
func (g *Grid) AliveCells() []Cell {
	cells := make([]Cell, 0, g.AliveCount())
	for i, alive := range g.cells {
		if alive {
			cells = append(cells, Cell{X: i % g.size, Y: i / g.size})
		}
	}
	return cells
}

// Next computes one generation over the whole grid without any partitioning.
func (g *Grid) Next() *Grid {
	next := &Grid{size: g.size, cells: make([]bool, len(g.cells))}
	Step(g.cells, next.cells, g.size, 0, g.size)
	return next
}

// String renders the grid in the display format.
func (g *Grid) String() string {
	var sb strings.Builder
	sb.Grow((g.size + 1) * g.size)
	for y := 0; y != g.size; y++ {
		for _, alive := range g.Row(y) {
			if alive {
				sb.WriteByte(AliveChar)
			} else {
				sb.WriteByte(DeadChar)
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
