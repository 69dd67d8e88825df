package engine_test

import (
	"testing"

	"github.com/cabinetdb/cabinet/internal/dberr"
	"github.com/cabinetdb/cabinet/internal/engine"
	"github.com/cabinetdb/cabinet/internal/schema"
	"github.com/cabinetdb/cabinet/internal/storage"
	"github.com/cabinetdb/cabinet/internal/value"
	"gotest.tools/assert"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	store, err := storage.NewStore(t.TempDir(), "index.json", "_")
	assert.NilError(t, err)
	return engine.New(store)
}

func itemsSchema() schema.Schema {
	return schema.Schema{
		"name":  {Type: schema.TypeString, Unique: true, NotNil: true},
		"price": {Type: schema.TypeNumber},
	}
}

func newShop(t *testing.T) *engine.Engine {
	t.Helper()
	e := newTestEngine(t)
	assert.NilError(t, e.CreateDatabase("shop"))
	assert.NilError(t, e.CreateTableWithSchema("shop", "items", itemsSchema()))
	return e
}

func insertItem(t *testing.T, e *engine.Engine, name string, price float64) {
	t.Helper()
	err := e.Insert("shop", "items", []string{"name", "price"},
		[]value.Value{value.String(name), value.Number(price)})
	assert.NilError(t, err)
}

func TestInsertAndGet(t *testing.T) {
	e := newShop(t)
	insertItem(t, e, "pen", 1)
	insertItem(t, e, "book", 5)

	t.Run("select all", func(t *testing.T) {
		rows, err := e.Get("shop", "items", nil, nil, nil)
		assert.NilError(t, err)
		assert.Equal(t, len(rows), 2)
	})

	t.Run("select by value", func(t *testing.T) {
		rows, err := e.Get("shop", "items",
			[]string{"name"}, []value.Value{value.String("pen")}, nil)
		assert.NilError(t, err)
		assert.Equal(t, len(rows), 1)
		assert.Assert(t, rows[0].Get("price").Equal(value.Number(1)))
	})

	t.Run("projection", func(t *testing.T) {
		rows, err := e.Get("shop", "items",
			[]string{"name"}, []value.Value{value.String("pen")}, []string{"price"})
		assert.NilError(t, err)
		assert.Equal(t, len(rows), 1)
		assert.Assert(t, !rows[0].Has("name"))
		assert.Assert(t, rows[0].Get("price").Equal(value.Number(1)))
	})

	t.Run("list selector matches by membership", func(t *testing.T) {
		sel := value.List(value.String("pen"), value.String("book"))
		rows, err := e.Get("shop", "items", []string{"name"}, []value.Value{sel}, nil)
		assert.NilError(t, err)
		assert.Equal(t, len(rows), 2)
	})

	t.Run("no match is empty not error", func(t *testing.T) {
		rows, err := e.Get("shop", "items",
			[]string{"name"}, []value.Value{value.String("car")}, nil)
		assert.NilError(t, err)
		assert.Equal(t, len(rows), 0)
	})

	t.Run("unknown table", func(t *testing.T) {
		_, err := e.Get("shop", "ghosts", nil, nil, nil)
		assert.Equal(t, dberr.KindOf(err), dberr.KindNotFound)
	})

	t.Run("unknown selector column", func(t *testing.T) {
		_, err := e.Get("shop", "items",
			[]string{"color"}, []value.Value{value.String("red")}, nil)
		assert.ErrorContains(t, err, "invalid column color")
	})
}

func TestInsertConstraints(t *testing.T) {
	t.Run("duplicate unique value", func(t *testing.T) {
		e := newShop(t)
		insertItem(t, e, "pen", 1)
		err := e.Insert("shop", "items", []string{"name", "price"},
			[]value.Value{value.String("pen"), value.Number(2)})
		assert.Equal(t, dberr.KindOf(err), dberr.KindDuplicateKey)

		// the failed insert left nothing behind
		rows, err2 := e.Get("shop", "items", nil, nil, nil)
		assert.NilError(t, err2)
		assert.Equal(t, len(rows), 1)
		assert.Assert(t, rows[0].Get("price").Equal(value.Number(1)))
	})

	t.Run("missing not nil column", func(t *testing.T) {
		e := newShop(t)
		err := e.Insert("shop", "items", []string{"price"}, []value.Value{value.Number(1)})
		assert.Equal(t, dberr.KindOf(err), dberr.KindMissingRequiredColumn)
	})

	t.Run("type mismatch", func(t *testing.T) {
		e := newShop(t)
		err := e.Insert("shop", "items", []string{"name", "price"},
			[]value.Value{value.String("pen"), value.String("cheap")})
		assert.Equal(t, dberr.KindOf(err), dberr.KindTypeMismatch)
	})

	t.Run("default fills omitted column", func(t *testing.T) {
		e := newTestEngine(t)
		assert.NilError(t, e.CreateDatabase("shop"))
		zero := value.Number(0)
		s := schema.Schema{
			"name":  {Type: schema.TypeString, NotNil: true},
			"price": {Type: schema.TypeNumber, Default: &zero},
		}
		assert.NilError(t, e.CreateTableWithSchema("shop", "items", s))
		assert.NilError(t, e.Insert("shop", "items",
			[]string{"name"}, []value.Value{value.String("pen")}))

		rows, err := e.Get("shop", "items", nil, nil, nil)
		assert.NilError(t, err)
		assert.Assert(t, rows[0].Get("price").Equal(zero))
	})

	t.Run("first insert declares a schemaless table", func(t *testing.T) {
		e := newTestEngine(t)
		assert.NilError(t, e.CreateDatabase("shop"))
		assert.NilError(t, e.CreateTable("shop", "notes"))
		assert.NilError(t, e.Insert("shop", "notes",
			[]string{"text"}, []value.Value{value.String("hi")}))

		err := e.Insert("shop", "notes", []string{"text"}, []value.Value{value.Number(5)})
		assert.Equal(t, dberr.KindOf(err), dberr.KindTypeMismatch)
	})
}

func TestPut(t *testing.T) {
	t.Run("updates all matching rows", func(t *testing.T) {
		e := newShop(t)
		insertItem(t, e, "pen", 1)
		insertItem(t, e, "pencil", 1)
		insertItem(t, e, "book", 5)

		count, err := e.Put("shop", "items",
			[]string{"price"}, []value.Value{value.Number(1)},
			[]string{"price"}, []value.Value{value.Number(2)})
		assert.NilError(t, err)
		assert.Equal(t, count, 2)

		rows, err := e.Get("shop", "items",
			[]string{"price"}, []value.Value{value.Number(2)}, nil)
		assert.NilError(t, err)
		assert.Equal(t, len(rows), 2)
	})

	t.Run("no match updates nothing", func(t *testing.T) {
		e := newShop(t)
		insertItem(t, e, "pen", 1)
		count, err := e.Put("shop", "items",
			[]string{"name"}, []value.Value{value.String("car")},
			[]string{"price"}, []value.Value{value.Number(9)})
		assert.NilError(t, err)
		assert.Equal(t, count, 0)
	})

	t.Run("unique column collision", func(t *testing.T) {
		e := newShop(t)
		insertItem(t, e, "pen", 1)
		insertItem(t, e, "book", 5)
		_, err := e.Put("shop", "items",
			[]string{"name"}, []value.Value{value.String("book")},
			[]string{"name"}, []value.Value{value.String("pen")})
		assert.Equal(t, dberr.KindOf(err), dberr.KindDuplicateKey)
	})

	t.Run("unique column over several rows", func(t *testing.T) {
		e := newShop(t)
		insertItem(t, e, "pen", 1)
		insertItem(t, e, "pencil", 1)
		_, err := e.Put("shop", "items",
			[]string{"price"}, []value.Value{value.Number(1)},
			[]string{"name"}, []value.Value{value.String("thing")})
		assert.Equal(t, dberr.KindOf(err), dberr.KindDuplicateKey)
	})

	t.Run("setting a row's unique value to itself is fine", func(t *testing.T) {
		e := newShop(t)
		insertItem(t, e, "pen", 1)
		count, err := e.Put("shop", "items",
			[]string{"name"}, []value.Value{value.String("pen")},
			[]string{"name"}, []value.Value{value.String("pen")})
		assert.NilError(t, err)
		assert.Equal(t, count, 1)
	})
}

func TestMismatchedColumnsAndValues(t *testing.T) {
	e := newShop(t)
	insertItem(t, e, "pen", 1)

	t.Run("insert", func(t *testing.T) {
		err := e.Insert("shop", "items", []string{"name", "price"},
			[]value.Value{value.String("pencil")})
		assert.Equal(t, dberr.KindOf(err), dberr.KindMalformedCommand)
		assert.ErrorContains(t, err, "2 columns but 1 values")
	})

	t.Run("get selector without values", func(t *testing.T) {
		_, err := e.Get("shop", "items", []string{"name"}, nil, nil)
		assert.Equal(t, dberr.KindOf(err), dberr.KindMalformedCommand)
		assert.ErrorContains(t, err, "1 columns but 0 values")
	})

	t.Run("put data without values", func(t *testing.T) {
		_, err := e.Put("shop", "items",
			[]string{"name"}, []value.Value{value.String("pen")},
			[]string{"price"}, nil)
		assert.Equal(t, dberr.KindOf(err), dberr.KindMalformedCommand)
	})

	t.Run("exists", func(t *testing.T) {
		_, err := e.Exists("shop", "items", []string{"name", "price"},
			[]value.Value{value.String("pen")})
		assert.Equal(t, dberr.KindOf(err), dberr.KindMalformedCommand)
	})

	t.Run("delete", func(t *testing.T) {
		_, err := e.Delete("shop", "items", []string{"name"}, nil)
		assert.Equal(t, dberr.KindOf(err), dberr.KindMalformedCommand)
	})

	// nothing above touched the table
	rows, err := e.Get("shop", "items", nil, nil, nil)
	assert.NilError(t, err)
	assert.Equal(t, len(rows), 1)
}

func TestExists(t *testing.T) {
	e := newShop(t)
	insertItem(t, e, "pen", 1)

	found, err := e.Exists("shop", "items",
		[]string{"name"}, []value.Value{value.String("pen")})
	assert.NilError(t, err)
	assert.Assert(t, found)

	found, err = e.Exists("shop", "items",
		[]string{"name", "price"},
		[]value.Value{value.String("pen"), value.Number(2)})
	assert.NilError(t, err)
	assert.Assert(t, !found)

	// exact equality: a list selector is not a membership test here
	sel := value.List(value.String("pen"), value.String("book"))
	found, err = e.Exists("shop", "items", []string{"name"}, []value.Value{sel})
	assert.NilError(t, err)
	assert.Assert(t, !found)
}

func TestDelete(t *testing.T) {
	e := newShop(t)
	insertItem(t, e, "pen", 1)
	insertItem(t, e, "pencil", 1)
	insertItem(t, e, "book", 5)

	count, err := e.Delete("shop", "items",
		[]string{"price"}, []value.Value{value.Number(1)})
	assert.NilError(t, err)
	assert.Equal(t, count, 2)

	found, err := e.Exists("shop", "items",
		[]string{"name"}, []value.Value{value.String("pen")})
	assert.NilError(t, err)
	assert.Assert(t, !found)

	count, err = e.Delete("shop", "items",
		[]string{"price"}, []value.Value{value.Number(1)})
	assert.NilError(t, err)
	assert.Equal(t, count, 0)
}

func TestPersistenceAcrossEngines(t *testing.T) {
	root := t.TempDir()
	store, err := storage.NewStore(root, "index.json", "_")
	assert.NilError(t, err)
	e := engine.New(store)
	assert.NilError(t, e.CreateDatabase("shop"))
	assert.NilError(t, e.CreateTableWithSchema("shop", "items", itemsSchema()))
	insertItem(t, e, "pen", 1)

	store2, err := storage.NewStore(root, "index.json", "_")
	assert.NilError(t, err)
	e2 := engine.New(store2)
	rows, err := e2.Get("shop", "items", nil, nil, nil)
	assert.NilError(t, err)
	assert.Equal(t, len(rows), 1)
	assert.Assert(t, rows[0].Get("name").Equal(value.String("pen")))
}
