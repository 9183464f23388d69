package gorm

import (
	"context"
	"fmt"
	"reflect"

	"github.com/tigerroll/lockxfer/pkg/batch/adapter/database"
	"github.com/tigerroll/lockxfer/pkg/batch/core/domain/model"
	"github.com/tigerroll/lockxfer/pkg/batch/core/tx"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// executor renders the table operations of tx.TxExecutor with GORM.
type executor struct {
	db *gorm.DB
}

// whereClause converts a model.Where into a GORM WHERE clause with quoted columns.
func whereClause(where model.Where) (clause.Where, error) {
	exprs := make([]clause.Expression, 0, len(where))
	for _, col := range where.Columns() {
		c := where.Cond(col)
		column := clause.Column{Name: col}
		switch c.Op {
		case model.OpEq:
			exprs = append(exprs, clause.Eq{Column: column, Value: c.Value})
		case model.OpNe:
			exprs = append(exprs, clause.Neq{Column: column, Value: c.Value})
		case model.OpNotNull:
			exprs = append(exprs, clause.Expr{SQL: "? IS NOT NULL", Vars: []interface{}{column}})
		case model.OpIn:
			values, err := toInterfaces(c.Value)
			if err != nil {
				return clause.Where{}, fmt.Errorf("column %s: %w", col, err)
			}
			exprs = append(exprs, clause.IN{Column: column, Values: values})
		default:
			return clause.Where{}, fmt.Errorf("column %s: unsupported operator %q", col, c.Op)
		}
	}
	return clause.Where{Exprs: exprs}, nil
}

func toInterfaces(list interface{}) ([]interface{}, error) {
	rv := reflect.ValueOf(list)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("IN expects a slice, got %T", list)
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

func (e *executor) query(ctx context.Context, table string, spec model.SelectSpec) (*gorm.DB, error) {
	where, err := whereClause(spec.Where)
	if err != nil {
		return nil, err
	}
	db := e.db.WithContext(ctx).Table(table)
	if len(where.Exprs) > 0 {
		db = db.Clauses(where)
	}
	if spec.CountAs != "" {
		return db, nil
	}
	if len(spec.Columns) > 0 {
		db = db.Select(spec.Columns)
	}
	if spec.OrderBy != "" {
		db = db.Order(spec.OrderBy)
	}
	return db, nil
}

// Select implements tx.TxExecutor.
func (e *executor) Select(ctx context.Context, table string, spec model.SelectSpec) ([]model.Row, error) {
	db, err := e.query(ctx, table, spec)
	if err != nil {
		return nil, err
	}
	if spec.CountAs != "" {
		var count int64
		if err := db.Count(&count).Error; err != nil {
			return nil, err
		}
		return []model.Row{{spec.CountAs: count}}, nil
	}

	var found []map[string]interface{}
	if err := db.Find(&found).Error; err != nil {
		return nil, err
	}
	rows := make([]model.Row, len(found))
	for i, m := range found {
		rows[i] = database.NormalizeRow(m)
	}
	return rows, nil
}

// Update implements tx.TxExecutor.
func (e *executor) Update(ctx context.Context, table string, set model.Row, where model.Where) (int64, error) {
	if len(where) == 0 {
		return 0, gorm.ErrMissingWhereClause
	}
	if len(set) == 0 {
		return 0, fmt.Errorf("update of %s without columns to set", table)
	}
	w, err := whereClause(where)
	if err != nil {
		return 0, err
	}
	result := e.db.WithContext(ctx).Table(table).Clauses(w).Updates(map[string]interface{}(set))
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Insert implements tx.TxExecutor.
func (e *executor) Insert(ctx context.Context, table string, rows []model.Row, batchSize int) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = len(rows)
	}
	values := make([]map[string]interface{}, len(rows))
	for i, r := range rows {
		values[i] = map[string]interface{}(r)
	}
	// The surrounding transaction already provides atomicity; skip GORM's nested savepoints.
	db := e.db.WithContext(ctx).Session(&gorm.Session{SkipDefaultTransaction: true})
	result := db.Table(table).CreateInBatches(values, batchSize)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Cursor implements tx.TxExecutor.
func (e *executor) Cursor(ctx context.Context, table string, spec model.SelectSpec) (tx.Cursor, error) {
	if spec.CountAs != "" {
		return nil, fmt.Errorf("count queries cannot be streamed")
	}
	db, err := e.query(ctx, table, spec)
	if err != nil {
		return nil, err
	}
	rows, err := db.Rows()
	if err != nil {
		return nil, err
	}
	return database.NewRowsCursor(rows)
}
