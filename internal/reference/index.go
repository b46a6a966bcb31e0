package reference

import (
	"fmt"

	"github.com/liteapi-travel/label-matcher-async/internal/similarity"
)

type entry struct {
	row        Row
	comparison string
}

// Index is an immutable, ordered set of reference rows. Replace it wholesale
// with a new Load rather than mutating it.
type Index struct {
	entries []entry
}

// Load validates rows and builds a new index. On error no index is returned,
// so a caller holding a previous index keeps it untouched.
func Load(rows []Row) (*Index, error) {
	entries := make([]entry, 0, len(rows))
	for i, row := range rows {
		if row.IsZero() {
			return nil, fmt.Errorf("row %d: %w", i+1, ErrEmptyRow)
		}
		entries = append(entries, entry{
			row:        Row{fields: row.Fields()},
			comparison: row.ComparisonText(),
		})
	}
	return &Index{entries: entries}, nil
}

// Len returns the number of rows held. A nil index is empty.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}

// Rows returns the loaded rows in load order.
func (idx *Index) Rows() []Row {
	if idx == nil {
		return nil
	}
	out := make([]Row, len(idx.entries))
	for i, e := range idx.entries {
		out[i] = e.row
	}
	return out
}

// BestMatch scores candidate against every row and returns the highest
// scoring one. Ties keep the earliest row. The boolean is false when the index
// is empty, in which case the zero Row and a score of 0 are returned.
func (idx *Index) BestMatch(candidate string) (Row, float64, bool) {
	if idx.Len() == 0 {
		return Row{}, 0, false
	}
	best := idx.entries[0]
	bestScore := similarity.Score(candidate, best.comparison)
	for _, e := range idx.entries[1:] {
		if score := similarity.Score(candidate, e.comparison); score > bestScore {
			best, bestScore = e, score
		}
	}
	return best.row, bestScore, true
}
