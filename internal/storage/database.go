package storage

import (
	"github.com/cabinetdb/cabinet/internal/schema"
	"github.com/cabinetdb/cabinet/internal/value"
	"github.com/cabinetdb/cabinet/pkg"
)

// Row maps column names to cell values.
type Row = pkg.Map[string, value.Value]

// Table is an unordered collection of rows sharing one schema.
type Table []Row

// Database is the unit of persistence: every load and save moves the whole
// thing. Schemas is keyed by table name; a missing entry means the table has
// no declared schema yet.
type Database struct {
	Tables  pkg.Map[string, Table]         `json:"tables"`
	Schemas pkg.Map[string, schema.Schema] `json:"schemas"`
}

func NewDatabase() *Database {
	return &Database{
		Tables:  pkg.Map[string, Table]{},
		Schemas: pkg.Map[string, schema.Schema]{},
	}
}

func (db *Database) HasTable(name string) bool { return db.Tables.Has(name) }
