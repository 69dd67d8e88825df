// Package engine implements the row-level operations. The engine keeps no
// state between calls: every operation loads the target database, mutates an
// in-memory copy and saves it back. A per-database mutex is held for the
// whole load-mutate-save span of each write, so concurrent writers serialize
// instead of losing updates. Reads take no lock: a read racing a write may
// catch the file mid-rewrite and report it Corrupted.
package engine

import (
	"sync"

	"github.com/cabinetdb/cabinet/internal/dberr"
	"github.com/cabinetdb/cabinet/internal/schema"
	"github.com/cabinetdb/cabinet/internal/storage"
	"github.com/cabinetdb/cabinet/internal/value"
	"github.com/cabinetdb/cabinet/pkg"
)

type Engine struct {
	store *storage.Store

	mu    sync.Mutex
	locks pkg.Map[string, *sync.Mutex]
}

func New(store *storage.Store) *Engine {
	return &Engine{store: store, locks: pkg.Map[string, *sync.Mutex]{}}
}

func (e *Engine) Store() *storage.Store { return e.store }

func (e *Engine) lock(db string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.locks.Has(db) {
		e.locks.Set(db, &sync.Mutex{})
	}
	return e.locks.Get(db)
}

func (e *Engine) CreateDatabase(name string) error {
	return e.store.CreateDatabase(name)
}

func (e *Engine) HasDatabase(name string) bool { return e.store.HasDatabase(name) }
func (e *Engine) ListDatabases() []string      { return e.store.ListDatabases() }

func (e *Engine) CreateTable(db, table string) error {
	l := e.lock(db)
	l.Lock()
	defer l.Unlock()
	return e.store.CreateTable(db, table)
}

// CreateTableWithSchema declares a new table together with its schema.
func (e *Engine) CreateTableWithSchema(dbName, table string, s schema.Schema) error {
	l := e.lock(dbName)
	l.Lock()
	defer l.Unlock()

	db, err := e.store.LoadDatabase(dbName)
	if err != nil {
		return err
	}
	if db.HasTable(table) {
		return dberr.New(dberr.KindAlreadyExists, "table %s already exists in %s", table, dbName)
	}
	db.Tables.Set(table, storage.Table{})
	db.Schemas.Set(table, s)
	return e.store.SaveDatabase(dbName, db)
}

func (e *Engine) ListTables(db string) ([]string, error) {
	return e.store.ListTables(db)
}

func (e *Engine) GetSchema(dbName, table string) (schema.Schema, error) {
	db, err := e.store.LoadDatabase(dbName)
	if err != nil {
		return nil, err
	}
	if !db.HasTable(table) {
		return nil, dberr.New(dberr.KindNotFound, "no table named %s in %s", table, dbName)
	}
	return db.Schemas.Get(table), nil
}

// Get returns the rows matching the selector, projected to outCols. An empty
// selector matches every row; empty outCols keeps whole rows. Selector
// values may be lists, which match by membership.
func (e *Engine) Get(dbName, table string, selCols []string, selVals []value.Value, outCols []string) ([]storage.Row, error) {
	if err := pairCount(selCols, selVals); err != nil {
		return nil, err
	}
	db, err := e.store.LoadDatabase(dbName)
	if err != nil {
		return nil, err
	}
	rows, s, err := tableRows(db, dbName, table)
	if err != nil {
		return nil, err
	}
	if err := s.ValidateSelector(selCols, selVals); err != nil {
		return nil, err
	}
	if err := s.Validate(outCols, nil); err != nil {
		return nil, err
	}

	matched := pkg.Filter(rows, func(row storage.Row) bool {
		return matchRow(row, selCols, selVals)
	})

	if len(outCols) == 0 {
		return matched, nil
	}
	out := make([]storage.Row, 0, len(matched))
	for _, row := range matched {
		projected := storage.Row{}
		for _, col := range outCols {
			projected.Set(col, row.Get(col))
		}
		out = append(out, projected)
	}
	return out, nil
}

// Put updates every row matching the selector with the given data columns
// and returns the number of rows updated. Writing a unique column is
// rejected when more than one row matches, or when any row outside the
// matched set already holds the value.
func (e *Engine) Put(dbName, table string, selCols []string, selVals []value.Value, dataCols []string, dataVals []value.Value) (int, error) {
	if err := pairCount(selCols, selVals); err != nil {
		return 0, err
	}
	if err := pairCount(dataCols, dataVals); err != nil {
		return 0, err
	}
	l := e.lock(dbName)
	l.Lock()
	defer l.Unlock()

	db, err := e.store.LoadDatabase(dbName)
	if err != nil {
		return 0, err
	}
	rows, s, err := tableRows(db, dbName, table)
	if err != nil {
		return 0, err
	}
	if err := s.ValidateSelector(selCols, selVals); err != nil {
		return 0, err
	}
	if err := s.Validate(dataCols, dataVals); err != nil {
		return 0, err
	}

	matched := []int{}
	for i, row := range rows {
		if matchRow(row, selCols, selVals) {
			matched = append(matched, i)
		}
	}
	if len(matched) == 0 {
		return 0, nil
	}

	for i, col := range dataCols {
		if !s[col].Unique {
			continue
		}
		if len(matched) > 1 {
			return 0, dberr.New(dberr.KindDuplicateKey,
				"cannot set unique column %s on %d rows", col, len(matched))
		}
		if idx := findByValue(rows, col, dataVals[i]); idx >= 0 && idx != matched[0] {
			return 0, dberr.New(dberr.KindDuplicateKey,
				"value for unique column %s already exists", col)
		}
	}

	for _, idx := range matched {
		for i, col := range dataCols {
			rows[idx].Set(col, dataVals[i])
		}
	}
	if err := e.store.SaveDatabase(dbName, db); err != nil {
		return 0, err
	}
	return len(matched), nil
}

// Insert adds one row. Omitted columns get their default when one is
// declared; omitted not-nil columns without a default fail the insert.
func (e *Engine) Insert(dbName, table string, cols []string, vals []value.Value) error {
	if err := pairCount(cols, vals); err != nil {
		return err
	}
	l := e.lock(dbName)
	l.Lock()
	defer l.Unlock()

	db, err := e.store.LoadDatabase(dbName)
	if err != nil {
		return err
	}
	if !db.HasTable(table) {
		return dberr.New(dberr.KindNotFound, "no table named %s in %s", table, dbName)
	}

	s := db.Schemas.Get(table)
	if s == nil {
		// legacy table without schema: the first insert declares it
		row := storage.Row{}
		for i, col := range cols {
			row.Set(col, vals[i])
		}
		s = schema.Infer(row)
		db.Schemas.Set(table, s)
	}

	if err := s.Validate(cols, vals); err != nil {
		return err
	}

	row := storage.Row{}
	for i, col := range cols {
		if !vals[i].IsAbsent() {
			row.Set(col, vals[i])
		}
	}

	for col, def := range s {
		if row.Has(col) {
			continue
		}
		if def.Default != nil {
			row.Set(col, *def.Default)
			continue
		}
		if def.NotNil {
			return dberr.New(dberr.KindMissingRequiredColumn,
				"column %s is not nil but no value given", col)
		}
	}

	rows := db.Tables.Get(table)
	for col, def := range s {
		if !def.Unique || !row.Has(col) {
			continue
		}
		if findByValue(rows, col, row.Get(col)) >= 0 {
			return dberr.New(dberr.KindDuplicateKey,
				"value for unique column %s already exists", col)
		}
	}

	db.Tables.Set(table, append(rows, row))
	return e.store.SaveDatabase(dbName, db)
}

// Exists reports whether any row matches the selector by exact equality.
// Unlike Get, list selector values do not get membership semantics here.
func (e *Engine) Exists(dbName, table string, cols []string, vals []value.Value) (bool, error) {
	if err := pairCount(cols, vals); err != nil {
		return false, err
	}
	db, err := e.store.LoadDatabase(dbName)
	if err != nil {
		return false, err
	}
	rows, s, err := tableRows(db, dbName, table)
	if err != nil {
		return false, err
	}
	if err := s.ValidateSelector(cols, vals); err != nil {
		return false, err
	}
	for _, row := range rows {
		if matchRowExact(row, cols, vals) {
			return true, nil
		}
	}
	return false, nil
}

// Delete removes every row matching the selector and returns the count.
func (e *Engine) Delete(dbName, table string, selCols []string, selVals []value.Value) (int, error) {
	if err := pairCount(selCols, selVals); err != nil {
		return 0, err
	}
	l := e.lock(dbName)
	l.Lock()
	defer l.Unlock()

	db, err := e.store.LoadDatabase(dbName)
	if err != nil {
		return 0, err
	}
	rows, s, err := tableRows(db, dbName, table)
	if err != nil {
		return 0, err
	}
	if err := s.ValidateSelector(selCols, selVals); err != nil {
		return 0, err
	}

	kept := pkg.Filter(rows, func(row storage.Row) bool {
		return !matchRow(row, selCols, selVals)
	})
	deleted := len(rows) - len(kept)
	if deleted == 0 {
		return 0, nil
	}
	db.Tables.Set(table, kept)
	if err := e.store.SaveDatabase(dbName, db); err != nil {
		return 0, err
	}
	return deleted, nil
}

// pairCount rejects column/value slices of different lengths before any
// value is indexed. Structured wire requests can carry mismatched pairs.
func pairCount(cols []string, vals []value.Value) error {
	if len(cols) != len(vals) {
		return dberr.New(dberr.KindMalformedCommand,
			"%d columns but %d values", len(cols), len(vals))
	}
	return nil
}

func tableRows(db *storage.Database, dbName, table string) (storage.Table, schema.Schema, error) {
	if !db.HasTable(table) {
		return nil, nil, dberr.New(dberr.KindNotFound, "no table named %s in %s", table, dbName)
	}
	s := db.Schemas.Get(table)
	if s == nil {
		s = schema.Schema{}
	}
	return db.Tables.Get(table), s, nil
}

func matchRow(row storage.Row, cols []string, vals []value.Value) bool {
	for i, col := range cols {
		if !row.Get(col).Matches(vals[i]) {
			return false
		}
	}
	return true
}

func matchRowExact(row storage.Row, cols []string, vals []value.Value) bool {
	for i, col := range cols {
		if !row.Get(col).Equal(vals[i]) {
			return false
		}
	}
	return true
}

func findByValue(rows storage.Table, col string, v value.Value) int {
	for i, row := range rows {
		if row.Has(col) && row.Get(col).Equal(v) {
			return i
		}
	}
	return -1
}
