package database

import (
	"database/sql"
	"io"

	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
	"github.com/tigerroll/lockxfer/pkg/batch/core/tx"
)

// RowsCursor adapts *sql.Rows to tx.Cursor, scanning each row into a model.Row.
type RowsCursor struct {
	rows    *sql.Rows
	columns []string
	closed  bool
}

var _ tx.Cursor = (*RowsCursor)(nil)

// NewRowsCursor takes ownership of rows. The rows are closed on error.
func NewRowsCursor(rows *sql.Rows) (*RowsCursor, error) {
	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}
	return &RowsCursor{rows: rows, columns: columns}, nil
}

// Next returns the next row, or io.EOF when the result set is exhausted. The rows
// are released as soon as the end is reached.
func (c *RowsCursor) Next() (model.Row, error) {
	if c.closed {
		return nil, io.EOF
	}
	if !c.rows.Next() {
		err := c.rows.Err()
		c.Close()
		if err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	values := make([]interface{}, len(c.columns))
	pointers := make([]interface{}, len(c.columns))
	for i := range values {
		pointers[i] = &values[i]
	}
	if err := c.rows.Scan(pointers...); err != nil {
		return nil, err
	}

	row := make(model.Row, len(c.columns))
	for i, col := range c.columns {
		row[col] = NormalizeValue(values[i])
	}
	return row, nil
}

// Close releases the rows. It is safe to call more than once.
func (c *RowsCursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.rows.Close()
}

// NormalizeValue converts driver byte slices to strings so that rows coming from
// different drivers compare and serialize the same way.
func NormalizeValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// NormalizeRow applies NormalizeValue to every column of m.
func NormalizeRow(m map[string]interface{}) model.Row {
	row := make(model.Row, len(m))
	for k, v := range m {
		row[k] = NormalizeValue(v)
	}
	return row
}
