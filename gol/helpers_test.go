package gol

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Build a grid from rows written in the display format
func gridFromStrings(t testing.TB, rows ...string) *Grid {
	t.Helper()
	grid, err := NewGrid(len(rows))
	require.NoError(t, err)
	for y, row := range rows {
		copy(grid.Row(y), ParseRow(row, len(rows)))
	}
	return grid
}

func randomGrid(t testing.TB, rng *rand.Rand, size int, density float64) *Grid {
	t.Helper()
	grid, err := NewGrid(size)
	require.NoError(t, err)
	for y := 0; y != size; y++ {
		for x := 0; x != size; x++ {
			grid.Set(x, y, rng.Float64() < density)
		}
	}
	return grid
}

func render(rows ...string) string {
	return strings.Join(rows, "\n") + "\n"
}
