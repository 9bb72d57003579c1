package features

import (
	"errors"
	"sort"
)

// ErrInsufficientHistory is returned when no cell has enough surviving
// feature rows to support an evaluation.
var ErrInsufficientHistory = errors.New("features: no cell exceeds the minimum row threshold")

// DefaultMinRows is the minimum surviving row count a cell must exceed to be
// eligible for selection.
const DefaultMinRows = 500

// SelectCell picks the cell to forecast: among cells with strictly more than
// minRows surviving feature rows, the one with the largest count. Ties break
// toward the lower cell id, making selection deterministic for identical
// input.
func SelectCell(rows []Row, minRows int) (uint64, error) {
	counts := make(map[uint64]int)
	for _, r := range rows {
		counts[r.Cell]++
	}

	type candidate struct {
		cell  uint64
		count int
	}

	candidates := make([]candidate, 0, len(counts))
	for cell, count := range counts {
		if count > minRows {
			candidates = append(candidates, candidate{cell: cell, count: count})
		}
	}
	if len(candidates) == 0 {
		return 0, ErrInsufficientHistory
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].count != candidates[j].count {
			return candidates[i].count > candidates[j].count
		}
		return candidates[i].cell < candidates[j].cell
	})

	return candidates[0].cell, nil
}

// FilterCell returns the rows belonging to one cell, preserving order.
func FilterCell(rows []Row, cell uint64) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.Cell == cell {
			out = append(out, r)
		}
	}
	return out
}
