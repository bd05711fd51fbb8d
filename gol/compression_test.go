package gol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackCells_BitOrder(t *testing.T) {
	cells := []bool{true, false, false, true, false, false, false, false, true}

	packed := packCells(cells)

	assert.Equal(t, []byte{0b00001001, 0b00000001}, packed)

	unpacked, err := unpackCells(packed, len(cells))
	require.NoError(t, err)
	assert.Equal(t, cells, unpacked)
}

func TestUnpackCells_LengthDerivedFromPartition(t *testing.T) {
	_, err := unpackCells([]byte{0xff}, 9)
	assert.ErrorIs(t, err, ErrProtocol)

	_, err = unpackCells([]byte{0xff, 0x01, 0x00}, 9)
	assert.ErrorIs(t, err, ErrProtocol)

	cells, err := unpackCells(nil, 0)
	require.NoError(t, err)
	assert.Empty(t, cells)
}
