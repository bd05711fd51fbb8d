package gol

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Positions around the centre of a 3x3 buffer
var surroundingOffsets = [8]int{0, 1, 2, 3, 5, 6, 7, 8}

func TestStep_Rules(t *testing.T) {
	for count := 0; count <= 8; count++ {
		for _, alive := range []bool{false, true} {
			t.Run(fmt.Sprintf("%d-neighbours-alive-%v", count, alive), func(t *testing.T) {
				src := make([]bool, 9)
				for i := 0; i != count; i++ {
					src[surroundingOffsets[i]] = true
				}
				src[4] = alive
				dst := make([]bool, 9)

				Step(src, dst, 3, 1, 2)

				want := count == 3 || (count == 2 && alive)
				assert.Equal(t, want, dst[4])
			})
		}
	}
}

func TestStep_OnlyWritesRequestedRows(t *testing.T) {
	src := []bool{
		true, true, true,
		true, true, true,
		true, true, true,
	}
	dst := make([]bool, 9)
	dst[0], dst[8] = true, true

	Step(src, dst, 3, 1, 2)

	assert.Equal(t, []bool{
		true, false, false,
		false, false, false,
		false, false, true,
	}, dst)
}

func TestNext_AllAliveCornerSeesThreeNeighbours(t *testing.T) {
	grid := gridFromStrings(t, "xxx", "xxx", "xxx")

	assert.Equal(t, 3, countSurrounding(grid.cells, 3, 3, 0, 0))
	assert.Equal(t, 5, countSurrounding(grid.cells, 3, 3, 1, 0))
	assert.Equal(t, 8, countSurrounding(grid.cells, 3, 3, 1, 1))

	next := grid.Next()
	assert.Equal(t, render("x x", "   ", "x x"), next.String())
}

func TestNext_NoWraparound(t *testing.T) {
	// A vertical line on the right edge would give (0, 1) three neighbours on a torus
	grid := gridFromStrings(t,
		"   x",
		"   x",
		"   x",
		"    ")

	next := grid.Next()

	assert.False(t, next.Alive(0, 1))
	assert.Equal(t, render("    ", "  xx", "    ", "    "), next.String())
}

func TestNext_LeftNeighbourOfSecondColumn(t *testing.T) {
	grid := gridFromStrings(t,
		"x   ",
		"x   ",
		"x   ",
		"    ")

	next := grid.Next()

	// (1, 1) is born from the three cells in column 0
	assert.True(t, next.Alive(1, 1))
	assert.Equal(t, render("    ", "xx  ", "    ", "    "), next.String())
}

func TestStepBand_MissingGhostIsAbsent(t *testing.T) {
	// Last band of a grid: one top ghost, no bottom ghost
	band := Band{Index: 1, FirstRow: 2, RowCount: 2, TopGhost: true}
	src := []bool{
		false, false, false, // ghost
		true, true, false,
		true, false, false,
	}
	dst := make([]bool, len(src))

	StepBand(band, src, dst, 3)

	// Block corner: (1, 2) has 3 alive neighbours in the last row
	assert.Equal(t, []bool{
		false, false, false,
		true, true, false,
		true, true, false,
	}, dst)
}

func TestNext_Blinker(t *testing.T) {
	vertical := gridFromStrings(t, " x ", " x ", " x ")

	next := vertical.Next()
	assert.Equal(t, render("   ", "xxx", "   "), next.String())
	assert.True(t, next.Next().Equal(vertical))
}

func TestEvolve_MatchesRepeatedNext(t *testing.T) {
	glider := gridFromStrings(t,
		" x    ",
		"  x   ",
		"xxx   ",
		"      ",
		"      ",
		"      ")

	// A glider is displaced by one cell diagonally every four generations
	after := Evolve(glider, 4)
	assert.Equal(t, render(
		"      ",
		"  x   ",
		"   x  ",
		" xxx  ",
		"      ",
		"      "), after.String())
	assert.True(t, Evolve(glider, 0).Equal(glider))
}
