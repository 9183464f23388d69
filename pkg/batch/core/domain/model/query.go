package model

import (
	"fmt"
	"reflect"
	"sort"
)

// Row is one record as column name to value.
type Row map[string]interface{}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Operator is a comparison supported in Where conditions.
type Operator string

const (
	OpEq      Operator = "="
	OpNe      Operator = "<>"
	OpNotNull Operator = "IS NOT NULL"
	OpIn      Operator = "IN"
)

// Cond is a non-equality condition on one column.
type Cond struct {
	Op    Operator
	Value interface{}
}

// Eq builds an equality condition; a plain value in a Where means the same.
func Eq(v interface{}) Cond { return Cond{Op: OpEq, Value: v} }

// Ne builds an inequality condition.
func Ne(v interface{}) Cond { return Cond{Op: OpNe, Value: v} }

// NotNull builds an "IS NOT NULL" condition.
func NotNull() Cond { return Cond{Op: OpNotNull} }

// In builds a membership condition. values must be a slice.
func In(values interface{}) Cond { return Cond{Op: OpIn, Value: values} }

// Where is a conjunction of column conditions. Values are plain values (equality) or Cond.
type Where map[string]interface{}

// Columns returns the condition columns in a stable order.
func (w Where) Columns() []string {
	cols := make([]string, 0, len(w))
	for k := range w {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// Cond returns the normalized condition for column.
func (w Where) Cond(column string) Cond {
	switch c := w[column].(type) {
	case Cond:
		return c
	case *Cond:
		return *c
	default:
		return Eq(c)
	}
}

// With returns a copy of w with one more condition.
func (w Where) With(column string, value interface{}) Where {
	out := make(Where, len(w)+1)
	for k, v := range w {
		out[k] = v
	}
	out[column] = value
	return out
}

// Match evaluates the conjunction against an in-memory row. Values are compared after
// normalizing integers and strings, so int64(5) matches int(5) and "5" matches []byte("5").
func (w Where) Match(row Row) bool {
	for _, col := range w.Columns() {
		c := w.Cond(col)
		val, present := row[col]
		switch c.Op {
		case OpNotNull:
			if !present || val == nil {
				return false
			}
		case OpNe:
			// SQL semantics: NULL <> x is unknown, hence not a match.
			if !present || val == nil || ValuesEqual(val, c.Value) {
				return false
			}
		case OpIn:
			if !present || !valueIn(val, c.Value) {
				return false
			}
		default:
			if !present || !ValuesEqual(val, c.Value) {
				return false
			}
		}
	}
	return true
}

func valueIn(val, list interface{}) bool {
	rv := reflect.ValueOf(list)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return ValuesEqual(val, list)
	}
	for i := 0; i < rv.Len(); i++ {
		if ValuesEqual(val, rv.Index(i).Interface()) {
			return true
		}
	}
	return false
}

// ValuesEqual compares two column values loosely.
func ValuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ai, ok := ToInt64(a); ok {
		if bi, ok := ToInt64(b); ok {
			return ai == bi
		}
	}
	return stringify(a) == stringify(b)
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

// SelectSpec describes a single-table query.
type SelectSpec struct {
	// Columns to return; empty selects all columns.
	Columns []string
	Where   Where
	// OrderBy is an optional ORDER BY expression.
	OrderBy string
	// CountAs, when set, turns the query into "SELECT count(*) AS <CountAs>".
	CountAs string
}
