package dataset

import "github.com/JakeFAU/dwellist/internal/listing"

// MergeStats reports what Merge did with the incoming records.
type MergeStats struct {
	Added   int
	Skipped int
}

// Merge returns a new dataset holding existing's rows followed by the rows of
// records whose id is not already present. Records repeating an id earlier in
// the same batch are skipped too. existing is left untouched.
func Merge(existing *Dataset, records []listing.Record) (*Dataset, MergeStats) {
	out := &Dataset{
		rows:  make([]Row, 0, existing.Len()+len(records)),
		index: make(IDSet, existing.Len()+len(records)),
	}
	for _, row := range existing.Rows() {
		id, err := row.ID()
		if err != nil {
			continue
		}
		out.rows = append(out.rows, row)
		out.index.Add(id)
	}

	var stats MergeStats
	for _, rec := range records {
		if out.index.Has(rec.ID) {
			stats.Skipped++
			continue
		}
		out.rows = append(out.rows, Row(rec.Fields()))
		out.index.Add(rec.ID)
		stats.Added++
	}
	return out, stats
}
