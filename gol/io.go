package gol

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseRow converts a text row into n cells: 'x' is alive, anything else is dead.
// Characters past n are ignored and a short row is padded with dead cells.
func ParseRow(line string, n int) []bool {
	row := make([]bool, n)
	for i := 0; i != n && i < len(line); i++ {
		row[i] = line[i] == AliveChar
	}
	return row
}

// ReadGrid reads the text format: a header "N G" followed by N rows.
// It returns the grid and the generation count from the header.
func ReadGrid(r io.Reader) (*Grid, int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, 0, fmt.Errorf("read header: %w", err)
		}
		return nil, 0, fmt.Errorf("%w: missing header", ErrMalformedInput)
	}
	fields := strings.Fields(scanner.Text())
	if len(fields) < 2 {
		return nil, 0, fmt.Errorf("%w: header %q must hold size and generation count", ErrMalformedInput, scanner.Text())
	}
	size, err := strconv.Atoi(fields[0])
	if err != nil || size <= 0 {
		return nil, 0, fmt.Errorf("%w: invalid size %q", ErrMalformedInput, fields[0])
	}
	generations, err := strconv.Atoi(fields[1])
	if err != nil || generations < 0 {
		return nil, 0, fmt.Errorf("%w: invalid generation count %q", ErrMalformedInput, fields[1])
	}

	grid, err := NewGrid(size)
	if err != nil {
		return nil, 0, err
	}
	for y := 0; y != size; y++ {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, 0, fmt.Errorf("read row %d: %w", y, err)
			}
			return nil, 0, fmt.Errorf("%w: expected %d rows, got %d", ErrMalformedInput, size, y)
		}
		line := strings.TrimRight(scanner.Text(), "\r")
		copy(grid.Row(y), ParseRow(line, size))
	}
	return grid, generations, nil
}

// WriteGrid renders the grid: one line per row, 'x' for alive, space for dead.
func WriteGrid(w io.Writer, grid *Grid) error {
	_, err := io.WriteString(w, grid.String())
	return err
}

// WriteHeader writes the "N G" line that ReadGrid expects.
func WriteHeader(w io.Writer, size, generations int) error {
	_, err := fmt.Fprintf(w, "%d %d\n", size, generations)
	return err
}
