package gol

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanPartition_CoversRowsExactly(t *testing.T) {
	for size := 1; size <= 24; size++ {
		for workers := 1; workers <= size+2; workers++ {
			name := fmt.Sprintf("%dx%d-%dw", size, size, workers)
			partition, err := PlanPartition(size, workers)
			require.NoError(t, err, name)

			want := workers
			if want > size {
				want = size
			}
			require.Len(t, partition, want, name)
			assert.Equal(t, size, partition.Rows(), name)

			next := 0
			for i, band := range partition {
				assert.Equal(t, i, band.Index, name)
				assert.Equal(t, next, band.FirstRow, "%s: band %d leaves a gap or overlaps", name, i)
				assert.Positive(t, band.RowCount, "%s: band %d is empty", name, i)
				assert.Equal(t, i > 0, band.TopGhost, name)
				assert.Equal(t, i < len(partition)-1, band.BottomGhost, name)
				next = band.EndRow()
			}
			assert.Equal(t, size, next, name)
		}
	}
}

func TestPlanPartition_LastBandTakesRemainder(t *testing.T) {
	partition, err := PlanPartition(10, 3)
	require.NoError(t, err)

	assert.Equal(t, Partition{
		{Index: 0, FirstRow: 0, RowCount: 3, TopGhost: false, BottomGhost: true},
		{Index: 1, FirstRow: 3, RowCount: 3, TopGhost: true, BottomGhost: true},
		{Index: 2, FirstRow: 6, RowCount: 4, TopGhost: true, BottomGhost: false},
	}, partition)
}

func TestPlanPartition_SingleWorker(t *testing.T) {
	partition, err := PlanPartition(7, 1)
	require.NoError(t, err)
	require.Len(t, partition, 1)

	band := partition[0]
	assert.Equal(t, 0, band.FirstRow)
	assert.Equal(t, 7, band.RowCount)
	assert.False(t, band.TopGhost)
	assert.False(t, band.BottomGhost)
	assert.Equal(t, 7*7, band.BufferLen(7))
	assert.Equal(t, 7*7, band.InteriorLen(7))
}

func TestPlanPartition_OversubscribedIsCapped(t *testing.T) {
	partition, err := PlanPartition(3, 10)
	require.NoError(t, err)
	require.Len(t, partition, 3)
	for _, band := range partition {
		assert.Equal(t, 1, band.RowCount)
	}
}

func TestPlanPartition_Invalid(t *testing.T) {
	_, err := PlanPartition(0, 1)
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = PlanPartition(4, 0)
	assert.ErrorIs(t, err, ErrInvalidWorkers)
}

func TestBand_BufferShape(t *testing.T) {
	middle := Band{Index: 1, FirstRow: 4, RowCount: 4, TopGhost: true, BottomGhost: true}
	assert.Equal(t, 6, middle.BufferRows())
	assert.Equal(t, 6*16, middle.BufferLen(16))
	assert.Equal(t, 4*16, middle.InteriorLen(16))
	assert.Equal(t, 8, middle.EndRow())

	first := Band{Index: 0, FirstRow: 0, RowCount: 4, BottomGhost: true}
	assert.Equal(t, 0, first.GhostTop())
	assert.Equal(t, 1, first.GhostBottom())
	assert.Equal(t, 5, first.BufferRows())
}
