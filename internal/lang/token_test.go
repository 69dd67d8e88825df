package lang_test

import (
	"testing"

	"github.com/cabinetdb/cabinet/internal/dberr"
	"github.com/cabinetdb/cabinet/internal/lang"
	"github.com/cabinetdb/cabinet/internal/value"
	"gotest.tools/assert"
)

func tokenizeOne(t *testing.T, input string) lang.Statement {
	t.Helper()
	statements, err := lang.Tokenize(input)
	assert.NilError(t, err)
	assert.Equal(t, len(statements), 1)
	return statements[0]
}

func TestTokenizeWords(t *testing.T) {
	stmt := tokenizeOne(t, "SHOW tables")
	assert.Equal(t, len(stmt), 2)
	assert.Equal(t, stmt[0].Text(), "SHOW")
	assert.Equal(t, stmt[1].Text(), "tables")
}

func TestTokenizeNumbers(t *testing.T) {
	stmt := tokenizeOne(t, "a 2 2.5 -3")
	assert.Equal(t, stmt[0].Value.Kind(), value.KindString)
	assert.Equal(t, stmt[1].Value.Num(), 2.0)
	assert.Equal(t, stmt[2].Value.Num(), 2.5)
	assert.Equal(t, stmt[3].Value.Num(), -3.0)
}

func TestTokenizeQuotedStrings(t *testing.T) {
	t.Run("spaces survive", func(t *testing.T) {
		stmt := tokenizeOne(t, `a "hello world" b`)
		assert.Equal(t, len(stmt), 3)
		assert.Equal(t, stmt[1].Text(), "hello world")
		assert.Assert(t, stmt[1].Quoted)
	})

	t.Run("separators survive", func(t *testing.T) {
		stmt := tokenizeOne(t, `a "x, (y); z="`)
		assert.Equal(t, len(stmt), 2)
		assert.Equal(t, stmt[1].Text(), "x, (y); z=")
	})

	t.Run("quoted number stays a string", func(t *testing.T) {
		stmt := tokenizeOne(t, `a "42"`)
		assert.Equal(t, stmt[1].Value.Kind(), value.KindString)
		assert.Equal(t, stmt[1].Text(), "42")
	})

	t.Run("unterminated", func(t *testing.T) {
		_, err := lang.Tokenize(`a "oops`)
		assert.ErrorContains(t, err, "unterminated string literal")
		assert.Equal(t, dberr.KindOf(err), dberr.KindMalformedCommand)
	})
}

func TestTokenizeCommaGrouping(t *testing.T) {
	// a comma pulls the surrounding tokens into one list argument
	stmt := tokenizeOne(t, "SELECT name, price FROM items")
	assert.Equal(t, len(stmt), 4)
	assert.Equal(t, stmt[1].Kind, lang.TokenList)
	assert.Equal(t, len(stmt[1].List), 2)
	assert.Equal(t, stmt[1].List[0].Text(), "name")
	assert.Equal(t, stmt[1].List[1].Text(), "price")
	assert.Equal(t, stmt[2].Text(), "FROM")
	assert.Equal(t, stmt[3].Text(), "items")
}

func TestTokenizeKeyValue(t *testing.T) {
	t.Run("bare value", func(t *testing.T) {
		stmt := tokenizeOne(t, "UPDATE items SET price=2 WHERE name=pen")
		assert.Equal(t, len(stmt), 6)
		assert.Equal(t, stmt[3].Kind, lang.TokenKV)
		assert.Equal(t, stmt[3].Key, "price")
		assert.Equal(t, stmt[3].Op, "=")
		assert.Equal(t, stmt[3].Val.Value.Num(), 2.0)
		assert.Equal(t, stmt[5].Key, "name")
		assert.Equal(t, stmt[5].Val.Text(), "pen")
	})

	t.Run("quoted value", func(t *testing.T) {
		stmt := tokenizeOne(t, `a name="blue pen"`)
		assert.Equal(t, stmt[1].Kind, lang.TokenKV)
		assert.Equal(t, stmt[1].Val.Text(), "blue pen")
		assert.Assert(t, stmt[1].Val.Quoted)
	})

	t.Run("only the first equals splits", func(t *testing.T) {
		stmt := tokenizeOne(t, "a expr=b=c")
		assert.Equal(t, stmt[1].Key, "expr")
		assert.Equal(t, stmt[1].Val.Text(), "b=c")
	})

	t.Run("pair list", func(t *testing.T) {
		stmt := tokenizeOne(t, "DELETE FROM items WHERE a=1, b=2")
		assert.Equal(t, len(stmt), 5)
		assert.Equal(t, stmt[4].Kind, lang.TokenList)
		assert.Equal(t, len(stmt[4].List), 2)
		assert.Equal(t, stmt[4].List[0].Key, "a")
		assert.Equal(t, stmt[4].List[1].Key, "b")
	})

	t.Run("missing value", func(t *testing.T) {
		_, err := lang.Tokenize("a col=")
		assert.ErrorContains(t, err, "missing value after col=")
	})
}

func TestTokenizeInOperator(t *testing.T) {
	t.Run("folds with a list", func(t *testing.T) {
		stmt := tokenizeOne(t, "SELECT * FROM t WHERE price IN (1, 2, 3)")
		assert.Equal(t, len(stmt), 6)
		kv := stmt[5]
		assert.Equal(t, kv.Kind, lang.TokenKV)
		assert.Equal(t, kv.Op, "IN")
		assert.Equal(t, kv.Key, "price")
		assert.Equal(t, kv.Val.Kind, lang.TokenList)
		assert.Equal(t, len(kv.Val.List), 3)
	})

	t.Run("bare in stays a word", func(t *testing.T) {
		stmt := tokenizeOne(t, "a in b")
		assert.Equal(t, len(stmt), 3)
		assert.Equal(t, stmt[1].Text(), "in")
	})
}

func TestTokenizeValueLists(t *testing.T) {
	t.Run("flat", func(t *testing.T) {
		stmt := tokenizeOne(t, `INSERT INTO t ( a, b ) VALUES ( "x", 2 )`)
		assert.Equal(t, len(stmt), 6)
		assert.Equal(t, stmt[3].Kind, lang.TokenList)
		assert.Equal(t, len(stmt[3].List), 2)
		assert.Equal(t, stmt[5].List[0].Text(), "x")
		assert.Equal(t, stmt[5].List[1].Value.Num(), 2.0)
	})

	t.Run("multi token items nest", func(t *testing.T) {
		stmt := tokenizeOne(t, "CREATE TABLE users ( name string UNIQUE, age number ) ;")
		assert.Equal(t, len(stmt), 4)
		cols := stmt[3]
		assert.Equal(t, cols.Kind, lang.TokenList)
		assert.Equal(t, len(cols.List), 2)

		first := cols.List[0]
		assert.Equal(t, first.Kind, lang.TokenList)
		assert.Equal(t, len(first.List), 3)
		assert.Equal(t, first.List[0].Text(), "name")
		assert.Equal(t, first.List[1].Text(), "string")
		assert.Equal(t, first.List[2].Text(), "UNIQUE")

		second := cols.List[1]
		assert.Equal(t, len(second.List), 2)
		assert.Equal(t, second.List[0].Text(), "age")
		assert.Equal(t, second.List[1].Text(), "number")
	})

	t.Run("nested defaults", func(t *testing.T) {
		stmt := tokenizeOne(t, "CREATE TABLE t ( price number def=0 )")
		item := stmt[3].List[0]
		assert.Equal(t, len(item.List), 3)
		assert.Equal(t, item.List[2].Kind, lang.TokenKV)
		assert.Equal(t, item.List[2].Key, "def")
	})

	t.Run("unbalanced open", func(t *testing.T) {
		_, err := lang.Tokenize("INSERT INTO t ( a, b")
		assert.ErrorContains(t, err, "unbalanced (")
	})

	t.Run("semicolon inside list", func(t *testing.T) {
		_, err := lang.Tokenize("a ( b; c )")
		assert.ErrorContains(t, err, "unexpected ; inside value list")
	})
}

func TestTokenizeStatements(t *testing.T) {
	t.Run("semicolon splits", func(t *testing.T) {
		statements, err := lang.Tokenize("SHOW tables; SELECT * FROM items")
		assert.NilError(t, err)
		assert.Equal(t, len(statements), 2)
		assert.Equal(t, statements[0][0].Text(), "SHOW")
		assert.Equal(t, statements[1][0].Text(), "SELECT")
	})

	t.Run("empty statements are dropped", func(t *testing.T) {
		statements, err := lang.Tokenize(" ;; SHOW tables ; ")
		assert.NilError(t, err)
		assert.Equal(t, len(statements), 1)
	})

	t.Run("stray close", func(t *testing.T) {
		_, err := lang.Tokenize("SELECT )")
		assert.ErrorContains(t, err, "unexpected ) outside value list")
	})

	t.Run("equals without key", func(t *testing.T) {
		_, err := lang.Tokenize("=5")
		assert.ErrorContains(t, err, "unexpected = without a key")
	})

	t.Run("leading comma", func(t *testing.T) {
		_, err := lang.Tokenize(", a")
		assert.ErrorContains(t, err, "unexpected , at start of statement")
	})
}

func TestFirstKeyword(t *testing.T) {
	assert.Equal(t, lang.FirstKeyword("SELECT * FROM items"), "select")
	assert.Equal(t, lang.FirstKeyword("show;"), "show")
	assert.Equal(t, lang.FirstKeyword("   "), "")
}
