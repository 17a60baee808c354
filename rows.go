package firebird

import (
	"database/sql/driver"
	"io"
	"sync/atomic"
)

// Rows adapts a materialized Result to the driver's row iterator. All
// rows are already in memory; Next only walks the stored tuples.
type Rows struct {
	res     *Result
	columns []string
	current int
	closed  int32
}

func newRows(res *Result) *Rows {
	n := res.ColumnCount()
	if n < 0 {
		n = 0
	}

	columns := make([]string, n)
	for i := range columns {
		columns[i] = res.FieldName(i)
	}

	return &Rows{res: res, columns: columns}
}

// Columns returns the column names, preferring aliases where set.
func (r *Rows) Columns() []string {
	return r.columns
}

// Close releases the stored result.
func (r *Rows) Close() error {
	if !atomic.CompareAndSwapInt32(&r.closed, 0, 1) {
		return nil
	}
	r.res.Clear()
	return nil
}

// Next copies the next stored row into dest. Values arrive in their
// display text form; NULL columns are nil.
func (r *Rows) Next(dest []driver.Value) error {
	if atomic.LoadInt32(&r.closed) != 0 {
		return io.EOF
	}
	if r.res.RowCount() <= 0 || r.current >= r.res.RowCount() {
		return io.EOF
	}

	for i := range dest {
		if r.res.IsNull(r.current, i) {
			dest[i] = nil
			continue
		}
		dest[i] = r.res.Value(r.current, i)
	}

	r.current++
	return nil
}

// ColumnTypeDatabaseTypeName returns the SQL name of a column's type.
func (r *Rows) ColumnTypeDatabaseTypeName(index int) string {
	return r.res.FieldType(index).String()
}
