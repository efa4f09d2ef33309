package column

import "reifydb/internal/reifyerr"

// Column pairs a name (fragment-bearing for diagnostics) with typed data.
type Column struct {
	Name     string
	Fragment *reifyerr.Fragment
	Data     Data
}

// Columns is an ordered columnar batch plus an optional parallel
// row_numbers vector identifying the source row of each position. All
// columns in a Columns must have equal length (invariant (a) of §4.9);
// row_numbers, when present, must have the same length (invariant (b)).
type Columns struct {
	Cols       []Column
	RowNumbers []uint64
}

// Empty returns a zero-column, zero-row batch.
func Empty() *Columns { return &Columns{} }

// RowCount is the length of the first column; an empty batch has zero
// rows, matching §4.9.
func (c *Columns) RowCount() int {
	if len(c.Cols) == 0 {
		return 0
	}
	return c.Cols[0].Data.Len()
}

// Validate checks the batch's structural invariants.
func (c *Columns) Validate() error {
	n := c.RowCount()
	for _, col := range c.Cols {
		if col.Data.Len() != n {
			return reifyerr.Internal(reifyerr.CodeInternal, "column "+col.Name+" length does not match batch row count")
		}
	}
	if c.RowNumbers != nil && len(c.RowNumbers) != n {
		return reifyerr.Internal(reifyerr.CodeInternal, "row_numbers length does not match batch row count")
	}
	return nil
}

// ColumnByName finds a column by exact name, returning (col, true) or
// (zero, false).
func (c *Columns) ColumnByName(name string) (Column, bool) {
	for _, col := range c.Cols {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// Names returns the ordered list of column names.
func (c *Columns) Names() []string {
	names := make([]string, len(c.Cols))
	for i, col := range c.Cols {
		names[i] = col.Name
	}
	return names
}

// Row materializes row i as a slice of Values in column order. Used by
// operators that need a whole-row view (joins, sort comparators).
func (c *Columns) Row(i int) []Value {
	row := make([]Value, len(c.Cols))
	for j, col := range c.Cols {
		row[j] = col.Data.GetValue(i)
	}
	return row
}

// FromRows materializes a batch from row-major data, inferring each
// column's type as the union (first-defined-wins) across the rows it
// appears in; a column whose rows are all undefined stays Undefined.
func FromRows(names []string, rows [][]Value) (*Columns, error) {
	if len(rows) == 0 {
		cols := make([]Column, len(names))
		for i, n := range names {
			cols[i] = Column{Name: n, Data: NewUndefined()}
		}
		return &Columns{Cols: cols}, nil
	}
	width := len(names)
	kinds := make([]Kind, width)
	for i := range kinds {
		kinds[i] = KindUndefined
	}
	for _, row := range rows {
		for i := 0; i < width && i < len(row); i++ {
			if kinds[i] == KindUndefined && row[i].Defined {
				kinds[i] = row[i].Kind
			}
		}
	}
	cols := make([]Column, width)
	for i, n := range names {
		cols[i] = Column{Name: n, Data: NewByKind(kinds[i])}
	}
	batch := &Columns{Cols: cols}
	for _, row := range rows {
		for i := 0; i < width; i++ {
			var v Value
			if i < len(row) {
				v = row[i]
			} else {
				v = Undefined(kinds[i])
			}
			if !v.Defined {
				v = Undefined(kinds[i])
			}
			if err := cols[i].Data.PushValue(v); err != nil {
				return nil, err
			}
		}
	}
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	return batch, nil
}

// AppendRows extends an existing batch in place with further row-major
// data and row numbers, per §4.9's append_rows contract.
func (c *Columns) AppendRows(rows [][]Value, rowNumbers []uint64) error {
	for _, row := range rows {
		for i, col := range c.Cols {
			var v Value
			if i < len(row) {
				v = row[i]
			} else {
				v = Undefined(col.Data.Kind())
			}
			if err := col.Data.PushValue(v); err != nil {
				return err
			}
		}
	}
	if rowNumbers != nil {
		c.RowNumbers = append(c.RowNumbers, rowNumbers...)
	}
	return c.Validate()
}

// Slice returns a new Columns containing only rows [start, end), including
// the corresponding row_numbers slice when present. Used by Take and
// pagination-style operators.
func (c *Columns) Slice(start, end int) *Columns {
	out := &Columns{Cols: make([]Column, len(c.Cols))}
	for i, col := range c.Cols {
		clone := col.Data.Clone()
		sliced := NewByKind(col.Data.Kind())
		for r := start; r < end; r++ {
			_ = sliced.PushValue(clone.GetValue(r))
		}
		out.Cols[i] = Column{Name: col.Name, Fragment: col.Fragment, Data: sliced}
	}
	if c.RowNumbers != nil {
		out.RowNumbers = append([]uint64(nil), c.RowNumbers[start:end]...)
	}
	return out
}

// SelectRows returns a new Columns containing only the rows at indices,
// in the given order, including the corresponding row_numbers entries
// when present. Used by Filter/Distinct/Sort/Join to materialize a
// reordered or narrowed batch without mutating the source.
func (c *Columns) SelectRows(indices []int) *Columns {
	out := &Columns{Cols: make([]Column, len(c.Cols))}
	for i, col := range c.Cols {
		sel := NewByKind(col.Data.Kind())
		for _, r := range indices {
			_ = sel.PushValue(col.Data.GetValue(r))
		}
		out.Cols[i] = Column{Name: col.Name, Fragment: col.Fragment, Data: sel}
	}
	if c.RowNumbers != nil {
		nums := make([]uint64, len(indices))
		for i, r := range indices {
			nums[i] = c.RowNumbers[r]
		}
		out.RowNumbers = nums
	}
	return out
}
