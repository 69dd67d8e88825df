package engine

import (
	"github.com/cabinetdb/cabinet/internal/dberr"
	"github.com/cabinetdb/cabinet/internal/schema"
)

// AlterAddColumn declares a new column on an existing table. Existing rows
// are back-filled with the default when one is declared; a not-nil column
// without a default cannot be added to a non-empty table.
func (e *Engine) AlterAddColumn(dbName, table, col string, def schema.ColumnDef) error {
	l := e.lock(dbName)
	l.Lock()
	defer l.Unlock()

	db, err := e.store.LoadDatabase(dbName)
	if err != nil {
		return err
	}
	rows, s, err := tableRows(db, dbName, table)
	if err != nil {
		return err
	}
	if _, ok := s[col]; ok {
		return dberr.New(dberr.KindAlreadyExists, "column %s already exists on %s", col, table)
	}
	if def.NotNil && def.Default == nil && len(rows) > 0 {
		return dberr.New(dberr.KindMissingRequiredColumn,
			"cannot add not nil column %s to non-empty table %s without a default", col, table)
	}

	s[col] = def
	db.Schemas.Set(table, s)
	if def.Default != nil {
		for _, row := range rows {
			row.Set(col, *def.Default)
		}
	}
	return e.store.SaveDatabase(dbName, db)
}

// AlterDropColumn removes a column from the schema and clears it from every
// row.
func (e *Engine) AlterDropColumn(dbName, table, col string) error {
	l := e.lock(dbName)
	l.Lock()
	defer l.Unlock()

	db, err := e.store.LoadDatabase(dbName)
	if err != nil {
		return err
	}
	rows, s, err := tableRows(db, dbName, table)
	if err != nil {
		return err
	}
	if _, ok := s[col]; !ok {
		return dberr.New(dberr.KindNotFound, "invalid column %s", col)
	}

	delete(s, col)
	db.Schemas.Set(table, s)
	for _, row := range rows {
		row.Delete(col)
	}
	return e.store.SaveDatabase(dbName, db)
}

// AlterModifyColumn replaces a column's definition. Every existing value
// must satisfy the new definition; rows missing the column get the new
// default when one is declared.
func (e *Engine) AlterModifyColumn(dbName, table, col string, def schema.ColumnDef) error {
	l := e.lock(dbName)
	l.Lock()
	defer l.Unlock()

	db, err := e.store.LoadDatabase(dbName)
	if err != nil {
		return err
	}
	rows, s, err := tableRows(db, dbName, table)
	if err != nil {
		return err
	}
	if _, ok := s[col]; !ok {
		return dberr.New(dberr.KindNotFound, "invalid column %s", col)
	}

	for _, row := range rows {
		if !row.Has(col) {
			if def.Default != nil {
				continue
			}
			if def.NotNil {
				return dberr.New(dberr.KindMissingRequiredColumn,
					"column %s is not nil but a row has no value", col)
			}
			continue
		}
		if !def.Type.Matches(row.Get(col)) {
			return dberr.New(dberr.KindTypeMismatch,
				"wrong type for column %s: expected %s, got %s", col, def.Type, row.Get(col).Kind())
		}
	}

	s[col] = def
	db.Schemas.Set(table, s)
	if def.Default != nil {
		for _, row := range rows {
			if !row.Has(col) {
				row.Set(col, *def.Default)
			}
		}
	}
	return e.store.SaveDatabase(dbName, db)
}
