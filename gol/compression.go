package gol

import "fmt"

// Number of bytes needed to carry n cells, one bit each
func packedLen(n int) int {
	return (n + 7) / 8
}

// Compress cells into a bit slice, least significant bit first
func packCells(cells []bool) []byte {
	packed := make([]byte, packedLen(len(cells)))
	for i, alive := range cells {
		if alive {
			packed[i/8] |= 1 << (i % 8)
		}
	}
	return packed
}

// Decompress exactly n cells into dest, which must hold n cells.
// The length of data is checked against n since both ends derive n from the partition.
func unpackCellsTo(data []byte, dest []bool) error {
	if len(data) != packedLen(len(dest)) {
		return fmt.Errorf("%w: got %d bytes, want %d for %d cells",
			ErrProtocol, len(data), packedLen(len(dest)), len(dest))
	}
	for i := range dest {
		dest[i] = data[i/8]&(1<<(i%8)) != 0
	}
	return nil
}

func unpackCells(data []byte, n int) ([]bool, error) {
	cells := make([]bool, n)
	if err := unpackCellsTo(data, cells); err != nil {
		return nil, err
	}
	return cells, nil
}
