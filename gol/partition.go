package gol

// PlanPartition divides an N×N grid into row bands, one per worker.
// Every band but the last gets size/workers rows; the last one also takes the
// remainder. More workers than rows are capped so that no band is empty.
func PlanPartition(size, workers int) (Partition, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	if workers < 1 {
		return nil, ErrInvalidWorkers
	}
	if workers > size {
		workers = size
	}

	lines := size / workers
	remainder := size % workers

	partition := make(Partition, workers)
	for i := 0; i != workers; i++ {
		rows := lines
		if i == workers-1 {
			rows += remainder
		}
		partition[i] = Band{
			Index:       i,
			FirstRow:    i * lines,
			RowCount:    rows,
			TopGhost:    i > 0,
			BottomGhost: i < workers-1,
		}
	}
	return partition, nil
}
