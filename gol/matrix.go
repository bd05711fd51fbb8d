package gol

const (
	AliveChar = 'x'
	DeadChar  = ' '
)

// Count alive cells among the eight surrounding positions of (x, y).
// Positions outside the buffer are excluded, never wrapped.
func countSurrounding(cells []bool, width, height, x, y int) int {
	startY, endY := y-1, y+1
	if startY < 0 {
		startY = 0
	}
	if endY > height-1 {
		endY = height - 1
	}
	startX, endX := x-1, x+1
	if startX < 0 {
		startX = 0
	}
	if endX > width-1 {
		endX = width - 1
	}

	count := 0
	for j := startY; j <= endY; j++ {
		row := cells[j*width : (j+1)*width]
		for i := startX; i <= endX; i++ {
			if row[i] && (i != x || j != y) {
				count++
			}
		}
	}
	return count
}

// Decide the next state of a cell from its surrounding count
func nextState(alive bool, count int) bool {
	switch count {
	case 3:
		return true
	case 2:
		return alive
	default:
		return false
	}
}

// Step writes the next generation of rows [from, to) of src into dst.
// Both buffers hold len(src)/width rows of width cells; rows outside
// [from, to) are read as context only and dst keeps whatever it held there.
func Step(src, dst []bool, width, from, to int) {
	height := len(src) / width
	for y := from; y != to; y++ {
		for x := 0; x != width; x++ {
			count := countSurrounding(src, width, height, x, y)
			dst[y*width+x] = nextState(src[y*width+x], count)
		}
	}
}

// StepBand computes the interior rows of a band buffer.
func StepBand(band Band, src, dst []bool, width int) {
	from := band.GhostTop()
	Step(src, dst, width, from, from+band.RowCount)
}
