// Package storage persists databases as whole files under a root directory
// and keeps the server-wide index of known database names. The index file is
// the single source of truth for which databases exist.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	sorted "github.com/tobshub/go-sortedmap"

	"github.com/cabinetdb/cabinet/internal/dberr"
	"github.com/cabinetdb/cabinet/internal/schema"
	"github.com/cabinetdb/cabinet/pkg"
)

type indexEntry struct{ Name string }

type Store struct {
	root           string
	indexFile      string
	reservedPrefix string

	locker sync.RWMutex
	index  *sorted.SortedMap[string, *indexEntry]
}

// NewStore opens (or initializes) a store rooted at root. The index file is
// read eagerly; a missing index means an empty store.
func NewStore(root, indexFile, reservedPrefix string) (*Store, error) {
	s := &Store{
		root:           root,
		indexFile:      indexFile,
		reservedPrefix: reservedPrefix,
		index: sorted.New[string, *indexEntry](0, func(a, b *indexEntry) bool {
			return a.Name < b.Name
		}),
	}

	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, dberr.New(dberr.KindIoError, "create store root %s: %s", root, err)
	}

	buf, err := os.ReadFile(s.indexPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, dberr.New(dberr.KindIoError, "read index %s: %s", s.indexPath(), err)
	}

	var names []string
	if err := json.Unmarshal(buf, &names); err != nil {
		return nil, dberr.New(dberr.KindCorrupted, "index %s is unreadable: %s", s.indexPath(), err)
	}
	for _, name := range names {
		s.index.Insert(name, &indexEntry{name})
	}
	return s, nil
}

func (s *Store) ReservedPrefix() string { return s.reservedPrefix }

// Reserved reports whether a table name is reserved for internal use.
func (s *Store) Reserved(table string) bool {
	return s.reservedPrefix != "" && strings.HasPrefix(table, s.reservedPrefix)
}

func (s *Store) indexPath() string         { return filepath.Join(s.root, s.indexFile) }
func (s *Store) dbPath(name string) string { return filepath.Join(s.root, name+".db") }

func (s *Store) HasDatabase(name string) bool {
	s.locker.RLock()
	defer s.locker.RUnlock()
	_, ok := s.index.Get(name)
	return ok
}

// ListDatabases returns every known database name in lexical order.
func (s *Store) ListDatabases() []string {
	s.locker.RLock()
	defer s.locker.RUnlock()
	names := []string{}
	iter, err := s.index.IterCh()
	if err != nil {
		// empty index
		return names
	}
	defer iter.Close()
	for rec := range iter.Records() {
		names = append(names, rec.Key)
	}
	return names
}

// CreateDatabase registers the name in the index and writes an empty
// database file. The index is persisted before the database file so a crash
// in between leaves a known name with an empty (inferable) database.
func (s *Store) CreateDatabase(name string) error {
	s.locker.Lock()
	defer s.locker.Unlock()

	if _, ok := s.index.Get(name); ok {
		return dberr.New(dberr.KindAlreadyExists, "database %s already exists", name)
	}
	s.index.Insert(name, &indexEntry{name})
	if err := s.persistIndex(); err != nil {
		s.index.Delete(name)
		return err
	}
	return s.writeDatabase(name, NewDatabase())
}

// LoadDatabase reads a database by name. Databases absent from the index do
// not exist, whatever files may be on disk. Tables persisted without a
// schema get one inferred from their first row and are re-persisted.
func (s *Store) LoadDatabase(name string) (*Database, error) {
	s.locker.RLock()
	_, ok := s.index.Get(name)
	s.locker.RUnlock()
	if !ok {
		return nil, dberr.New(dberr.KindNotFound, "no database named %s", name)
	}

	buf, err := os.ReadFile(s.dbPath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// indexed but never written: treat as empty
			return NewDatabase(), nil
		}
		return nil, dberr.New(dberr.KindIoError, "read database %s: %s", name, err)
	}

	db := NewDatabase()
	if err := json.Unmarshal(buf, db); err != nil {
		return nil, dberr.New(dberr.KindCorrupted, "database %s is unreadable: %s", name, err)
	}
	if db.Tables == nil {
		db.Tables = pkg.Map[string, Table]{}
	}
	if db.Schemas == nil {
		db.Schemas = pkg.Map[string, schema.Schema]{}
	}

	if s.backfillSchemas(db) {
		if err := s.SaveDatabase(name, db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// backfillSchemas infers schemas for legacy tables that have rows but no
// declared schema. Reports whether anything changed.
func (s *Store) backfillSchemas(db *Database) bool {
	changed := false
	for name, table := range db.Tables {
		if db.Schemas.Has(name) || len(table) == 0 {
			continue
		}
		db.Schemas.Set(name, schema.Infer(table[0]))
		changed = true
	}
	return changed
}

// SaveDatabase rewrites the whole database file. There are no partial or
// append writes.
func (s *Store) SaveDatabase(name string, db *Database) error {
	s.locker.RLock()
	_, ok := s.index.Get(name)
	s.locker.RUnlock()
	if !ok {
		return dberr.New(dberr.KindNotFound, "no database named %s", name)
	}
	return s.writeDatabase(name, db)
}

func (s *Store) writeDatabase(name string, db *Database) error {
	buf, err := json.Marshal(db)
	if err != nil {
		return dberr.New(dberr.KindIoError, "encode database %s: %s", name, err)
	}
	if err := os.WriteFile(s.dbPath(name), buf, 0644); err != nil {
		return dberr.New(dberr.KindIoError, "write database %s: %s", name, err)
	}
	return nil
}

// CreateTable adds an empty table with no schema. The schema is declared
// later via CREATE TABLE statements or inferred from the first insert.
func (s *Store) CreateTable(dbName, table string) error {
	db, err := s.LoadDatabase(dbName)
	if err != nil {
		return err
	}
	if db.HasTable(table) {
		return dberr.New(dberr.KindAlreadyExists, "table %s already exists in %s", table, dbName)
	}
	db.Tables.Set(table, Table{})
	return s.SaveDatabase(dbName, db)
}

// ListTables returns the database's table names, reserved names excluded.
func (s *Store) ListTables(dbName string) ([]string, error) {
	db, err := s.LoadDatabase(dbName)
	if err != nil {
		return nil, err
	}
	names := []string{}
	for name := range db.Tables {
		if s.Reserved(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) persistIndex() error {
	names := []string{}
	iter, err := s.index.IterCh()
	if err == nil {
		for rec := range iter.Records() {
			names = append(names, rec.Key)
		}
		iter.Close()
	}
	buf, err := json.Marshal(names)
	if err != nil {
		return dberr.New(dberr.KindIoError, "encode index: %s", err)
	}
	if err := os.WriteFile(s.indexPath(), buf, 0644); err != nil {
		return dberr.New(dberr.KindIoError, "write index: %s", err)
	}
	return nil
}

func (s *Store) String() string {
	return fmt.Sprintf("Store(%s, %d databases)", s.root, len(s.ListDatabases()))
}
