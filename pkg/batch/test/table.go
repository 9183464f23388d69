package test

import (
	"fmt"
	"sort"

	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
)

// Tables is an in-memory set of tables keyed by name.
type Tables map[string][]model.Row

// Clone deep-copies every row.
func (t Tables) Clone() Tables {
	out := make(Tables, len(t))
	for name, rows := range t {
		cp := make([]model.Row, len(rows))
		for i, r := range rows {
			cp[i] = r.Clone()
		}
		out[name] = cp
	}
	return out
}

// ApplySelect evaluates spec against rows the way the SQL adapters do: filter,
// order, then either count into spec.CountAs or project spec.Columns.
func ApplySelect(rows []model.Row, spec model.SelectSpec) []model.Row {
	var matched []model.Row
	for _, r := range rows {
		if spec.Where.Match(r) {
			matched = append(matched, r)
		}
	}
	if spec.CountAs != "" {
		return []model.Row{{spec.CountAs: int64(len(matched))}}
	}
	if spec.OrderBy != "" {
		col := spec.OrderBy
		sort.SliceStable(matched, func(i, j int) bool {
			return fmt.Sprint(matched[i][col]) < fmt.Sprint(matched[j][col])
		})
	}
	out := make([]model.Row, 0, len(matched))
	for _, r := range matched {
		if len(spec.Columns) == 0 {
			out = append(out, r.Clone())
			continue
		}
		p := make(model.Row, len(spec.Columns))
		for _, c := range spec.Columns {
			p[c] = r[c]
		}
		out = append(out, p)
	}
	return out
}

// applyUpdate sets columns on every matching row and returns the affected count.
func applyUpdate(rows []model.Row, set model.Row, where model.Where) int64 {
	var n int64
	for _, r := range rows {
		if where.Match(r) {
			for k, v := range set {
				r[k] = v
			}
			n++
		}
	}
	return n
}
