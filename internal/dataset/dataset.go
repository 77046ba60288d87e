// Package dataset holds the persisted, id-unique collection of listing rows
// and the merge and column-ordering rules applied before every save.
package dataset

import (
	"fmt"

	"github.com/JakeFAU/dwellist/internal/listing"
)

// Row is one flattened record. Missing columns render as empty cells.
type Row map[string]string

// ID parses the row's id column.
func (r Row) ID() (listing.RecordID, error) {
	return listing.ParseRecordID(r[listing.ColumnID])
}

// IDSet is a set of record ids.
type IDSet map[listing.RecordID]struct{}

// Has reports whether id is in the set.
func (s IDSet) Has(id listing.RecordID) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id into the set.
func (s IDSet) Add(id listing.RecordID) { s[id] = struct{}{} }

// Dataset is an ordered collection of rows keyed by id. Insertion order is
// preserved; the zero value is not usable, call New.
type Dataset struct {
	rows  []Row
	index IDSet
}

// New returns an empty dataset.
func New() *Dataset {
	return &Dataset{index: make(IDSet)}
}

// Append adds row to the end of the dataset. It fails when the row has no
// valid id or the id is already present.
func (d *Dataset) Append(row Row) error {
	id, err := row.ID()
	if err != nil {
		return err
	}
	if d.index.Has(id) {
		return fmt.Errorf("duplicate record id %s", id)
	}
	cp := make(Row, len(row))
	for k, v := range row {
		cp[k] = v
	}
	d.rows = append(d.rows, cp)
	d.index.Add(id)
	return nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.rows)
}

// Rows returns the rows in insertion order. Callers must not mutate them.
func (d *Dataset) Rows() []Row {
	if d == nil {
		return nil
	}
	return d.rows
}

// Has reports whether a row with id exists.
func (d *Dataset) Has(id listing.RecordID) bool {
	return d != nil && d.index.Has(id)
}

// IDs returns a copy of the dataset's id set.
func (d *Dataset) IDs() IDSet {
	out := make(IDSet, d.Len())
	if d == nil {
		return out
	}
	for id := range d.index {
		out.Add(id)
	}
	return out
}

// Columns returns every observed column in the deterministic save order.
func (d *Dataset) Columns() []string {
	seen := make(map[string]struct{})
	for _, row := range d.Rows() {
		for col := range row {
			seen[col] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for col := range seen {
		cols = append(cols, col)
	}
	return OrderColumns(cols)
}

// Values returns row's cells aligned with columns.
func Values(row Row, columns []string) []string {
	out := make([]string, len(columns))
	for i, col := range columns {
		out[i] = row[col]
	}
	return out
}
