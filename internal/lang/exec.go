package lang

import (
	"fmt"
	"strings"

	"github.com/cabinetdb/cabinet/internal/dberr"
	"github.com/cabinetdb/cabinet/internal/engine"
	"github.com/cabinetdb/cabinet/internal/schema"
	"github.com/cabinetdb/cabinet/internal/storage"
	"github.com/cabinetdb/cabinet/internal/value"
)

// Result carries whichever output a statement produces.
type Result struct {
	Rows    []storage.Row `json:"rows,omitempty"`
	Names   []string      `json:"names,omitempty"`
	Schema  schema.Schema `json:"schema,omitempty"`
	Count   int           `json:"count,omitempty"`
	Message string        `json:"message,omitempty"`
}

// Run tokenizes the input and executes every statement in order. Execution
// stops at the first failing statement; already-applied statements are not
// rolled back. The last statement's result is returned.
func Run(e *engine.Engine, db, input string) (*Result, error) {
	statements, err := Tokenize(input)
	if err != nil {
		return nil, err
	}
	if len(statements) == 0 {
		return nil, dberr.New(dberr.KindMalformedCommand, "empty command")
	}
	var res *Result
	for _, stmt := range statements {
		res, err = Exec(e, db, stmt)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Exec interprets one statement against the named database, dispatching on
// the leading keyword. Keyword matching is case-insensitive.
func Exec(e *engine.Engine, db string, stmt Statement) (*Result, error) {
	if len(stmt) == 0 {
		return nil, dberr.New(dberr.KindMalformedCommand, "empty statement")
	}
	head, err := identifier(stmt[0])
	if err != nil {
		return nil, dberr.New(dberr.KindMalformedCommand, "malformed statement: bad leading keyword")
	}

	switch strings.ToLower(head) {
	case "show":
		return execShow(e, db, stmt)
	case "get":
		return execGet(e, db, stmt)
	case "select":
		return execSelect(e, db, stmt)
	case "insert":
		return execInsert(e, db, stmt)
	case "update":
		return execUpdate(e, db, stmt)
	case "delete":
		return execDelete(e, db, stmt)
	case "create":
		return execCreate(e, db, stmt)
	case "alter":
		return execAlter(e, db, stmt)
	}
	return nil, dberr.New(dberr.KindMalformedCommand, "unknown action %s", head)
}

func execShow(e *engine.Engine, db string, stmt Statement) (*Result, error) {
	if len(stmt) < 2 {
		return nil, dberr.New(dberr.KindMalformedCommand, "malformed statement: SHOW needs a subject")
	}
	subject, err := identifier(stmt[1])
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(subject) {
	case "database", "databases":
		return &Result{Names: e.ListDatabases()}, nil
	case "tables":
		names, err := e.ListTables(db)
		if err != nil {
			return nil, err
		}
		return &Result{Names: names}, nil
	case "schema":
		if len(stmt) != 3 {
			return nil, dberr.New(dberr.KindMalformedCommand, "malformed statement: SHOW SCHEMA <table>")
		}
		table, err := identifier(stmt[2])
		if err != nil {
			return nil, err
		}
		s, err := e.GetSchema(db, table)
		if err != nil {
			return nil, err
		}
		return &Result{Schema: s}, nil
	}
	return nil, dberr.New(dberr.KindMalformedCommand, "unknown action SHOW %s", subject)
}

func execGet(e *engine.Engine, db string, stmt Statement) (*Result, error) {
	if len(stmt) < 2 {
		return nil, dberr.New(dberr.KindMalformedCommand, "malformed statement: GET needs a subject")
	}
	subject, err := identifier(stmt[1])
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(subject) {
	case "tables":
		names, err := e.ListTables(db)
		if err != nil {
			return nil, err
		}
		return &Result{Names: names}, nil
	case "schema":
		if len(stmt) != 3 {
			return nil, dberr.New(dberr.KindMalformedCommand, "malformed statement: GET SCHEMA <table>")
		}
		table, err := identifier(stmt[2])
		if err != nil {
			return nil, err
		}
		s, err := e.GetSchema(db, table)
		if err != nil {
			return nil, err
		}
		return &Result{Schema: s}, nil
	}
	return nil, dberr.New(dberr.KindMalformedCommand, "unknown action GET %s", subject)
}

// SELECT <cols|*> FROM <table> [WHERE <selector>]
func execSelect(e *engine.Engine, db string, stmt Statement) (*Result, error) {
	if len(stmt) != 4 && len(stmt) != 6 {
		return nil, dberr.New(dberr.KindMalformedCommand,
			"malformed statement: SELECT <cols> FROM <table> [WHERE <selector>]")
	}
	if err := expectKeyword(stmt[2], "from"); err != nil {
		return nil, err
	}
	table, err := identifier(stmt[3])
	if err != nil {
		return nil, err
	}

	var outCols []string
	if text := stmt[1].Text(); text != "*" {
		outCols, err = columnList(stmt[1])
		if err != nil {
			return nil, err
		}
	}

	var selCols []string
	var selVals []value.Value
	if len(stmt) == 6 {
		if err := expectKeyword(stmt[4], "where"); err != nil {
			return nil, err
		}
		selCols, selVals, err = kvPairs(stmt[5])
		if err != nil {
			return nil, err
		}
	}

	rows, err := e.Get(db, table, selCols, selVals, outCols)
	if err != nil {
		return nil, err
	}
	return &Result{Rows: rows, Count: len(rows)}, nil
}

// INSERT INTO <table> (cols) VALUES (vals)
func execInsert(e *engine.Engine, db string, stmt Statement) (*Result, error) {
	if len(stmt) != 6 {
		return nil, dberr.New(dberr.KindMalformedCommand,
			"malformed statement: INSERT INTO <table> (cols) VALUES (vals)")
	}
	if err := expectKeyword(stmt[1], "into"); err != nil {
		return nil, err
	}
	if err := expectKeyword(stmt[4], "values"); err != nil {
		return nil, err
	}
	table, err := identifier(stmt[2])
	if err != nil {
		return nil, err
	}
	cols, err := columnList(stmt[3])
	if err != nil {
		return nil, err
	}
	vals, err := valueList(stmt[5])
	if err != nil {
		return nil, err
	}
	if len(cols) != len(vals) {
		return nil, dberr.New(dberr.KindMalformedCommand,
			"malformed statement: %d columns but %d values", len(cols), len(vals))
	}
	if err := e.Insert(db, table, cols, vals); err != nil {
		return nil, err
	}
	return &Result{Count: 1, Message: fmt.Sprintf("inserted 1 row into %s", table)}, nil
}

// UPDATE <table> SET (col=val,...) WHERE (col=val,...)
func execUpdate(e *engine.Engine, db string, stmt Statement) (*Result, error) {
	if len(stmt) != 6 {
		return nil, dberr.New(dberr.KindMalformedCommand,
			"malformed statement: UPDATE <table> SET (data) WHERE (selector)")
	}
	if err := expectKeyword(stmt[2], "set"); err != nil {
		return nil, err
	}
	if err := expectKeyword(stmt[4], "where"); err != nil {
		return nil, err
	}
	table, err := identifier(stmt[1])
	if err != nil {
		return nil, err
	}
	dataCols, dataVals, err := kvPairs(stmt[3])
	if err != nil {
		return nil, err
	}
	selCols, selVals, err := kvPairs(stmt[5])
	if err != nil {
		return nil, err
	}
	count, err := e.Put(db, table, selCols, selVals, dataCols, dataVals)
	if err != nil {
		return nil, err
	}
	return &Result{Count: count, Message: fmt.Sprintf("updated %d rows in %s", count, table)}, nil
}

// DELETE FROM <table> WHERE (col=val,...)
func execDelete(e *engine.Engine, db string, stmt Statement) (*Result, error) {
	if len(stmt) != 5 {
		return nil, dberr.New(dberr.KindMalformedCommand,
			"malformed statement: DELETE FROM <table> WHERE (selector)")
	}
	if err := expectKeyword(stmt[1], "from"); err != nil {
		return nil, err
	}
	if err := expectKeyword(stmt[3], "where"); err != nil {
		return nil, err
	}
	table, err := identifier(stmt[2])
	if err != nil {
		return nil, err
	}
	selCols, selVals, err := kvPairs(stmt[4])
	if err != nil {
		return nil, err
	}
	count, err := e.Delete(db, table, selCols, selVals)
	if err != nil {
		return nil, err
	}
	return &Result{Count: count, Message: fmt.Sprintf("deleted %d rows from %s", count, table)}, nil
}

// CREATE TABLE <table> ( col type [props] [def=val], ... )
func execCreate(e *engine.Engine, db string, stmt Statement) (*Result, error) {
	if len(stmt) != 4 {
		return nil, dberr.New(dberr.KindMalformedCommand,
			"malformed statement: CREATE TABLE <table> (columns)")
	}
	if err := expectKeyword(stmt[1], "table"); err != nil {
		return nil, err
	}
	table, err := identifier(stmt[2])
	if err != nil {
		return nil, err
	}
	if e.Store().Reserved(table) {
		return nil, dberr.New(dberr.KindMalformedCommand,
			"table name %s uses the reserved prefix %s", table, e.Store().ReservedPrefix())
	}
	if stmt[3].Kind != TokenList {
		return nil, dberr.New(dberr.KindMalformedCommand,
			"malformed statement: CREATE TABLE needs a column list")
	}

	s := schema.Schema{}
	for _, item := range stmt[3].List {
		col, def, err := parseColumnItem(item)
		if err != nil {
			return nil, err
		}
		if _, ok := s[col]; ok {
			return nil, dberr.New(dberr.KindMalformedCommand, "duplicate column %s", col)
		}
		s[col] = def
	}
	if len(s) == 0 {
		return nil, dberr.New(dberr.KindMalformedCommand, "CREATE TABLE needs at least one column")
	}

	if err := e.CreateTableWithSchema(db, table, s); err != nil {
		return nil, err
	}
	return &Result{Message: fmt.Sprintf("created table %s", table)}, nil
}

// ALTER TABLE <table> ADD <col> <type> [props] | DROP <col> | MODIFY <col> <type> [props]
func execAlter(e *engine.Engine, db string, stmt Statement) (*Result, error) {
	if len(stmt) < 5 {
		return nil, dberr.New(dberr.KindMalformedCommand,
			"malformed statement: ALTER TABLE <table> ADD|DROP|MODIFY <col> ...")
	}
	if err := expectKeyword(stmt[1], "table"); err != nil {
		return nil, err
	}
	table, err := identifier(stmt[2])
	if err != nil {
		return nil, err
	}
	op, err := identifier(stmt[3])
	if err != nil {
		return nil, err
	}
	col, err := identifier(stmt[4])
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(op) {
	case "drop":
		if len(stmt) != 5 {
			return nil, dberr.New(dberr.KindMalformedCommand,
				"malformed statement: ALTER TABLE <table> DROP <col>")
		}
		if err := e.AlterDropColumn(db, table, col); err != nil {
			return nil, err
		}
		return &Result{Message: fmt.Sprintf("dropped column %s from %s", col, table)}, nil
	case "add", "modify":
		if len(stmt) < 6 {
			return nil, dberr.New(dberr.KindMalformedCommand,
				"malformed statement: ALTER TABLE %s %s <col> <type> [props]", table, strings.ToUpper(op))
		}
		typeName, err := identifier(stmt[5])
		if err != nil {
			return nil, err
		}
		props, defaultVal, err := columnProps(stmt[6:])
		if err != nil {
			return nil, err
		}
		def, err := schema.ParseColumn(col, typeName, props, defaultVal)
		if err != nil {
			return nil, err
		}
		if strings.ToLower(op) == "add" {
			err = e.AlterAddColumn(db, table, col, def)
		} else {
			err = e.AlterModifyColumn(db, table, col, def)
		}
		if err != nil {
			return nil, err
		}
		return &Result{Message: fmt.Sprintf("altered column %s on %s", col, table)}, nil
	}
	return nil, dberr.New(dberr.KindMalformedCommand, "unknown action ALTER TABLE %s", op)
}

// parseColumnItem handles one entry of a CREATE TABLE column list:
// <name> <type> [UNIQUE] [NOT_NIL] [PRIMARY_KEY] [def=<val>].
func parseColumnItem(item Token) (string, schema.ColumnDef, error) {
	if item.Kind != TokenList || len(item.List) < 2 {
		return "", schema.ColumnDef{}, dberr.New(dberr.KindMalformedCommand,
			"malformed column definition: need <name> <type>")
	}
	col, err := identifier(item.List[0])
	if err != nil {
		return "", schema.ColumnDef{}, err
	}
	typeName, err := identifier(item.List[1])
	if err != nil {
		return "", schema.ColumnDef{}, err
	}
	props, defaultVal, err := columnProps(item.List[2:])
	if err != nil {
		return "", schema.ColumnDef{}, err
	}
	def, err := schema.ParseColumn(col, typeName, props, defaultVal)
	if err != nil {
		return "", schema.ColumnDef{}, err
	}
	return col, def, nil
}

// columnProps splits constraint keywords from the def=<val> default marker.
func columnProps(toks []Token) ([]string, *value.Value, error) {
	props := []string{}
	var defaultVal *value.Value
	flat := []Token{}
	for _, t := range toks {
		if t.Kind == TokenList {
			flat = append(flat, t.List...)
			continue
		}
		flat = append(flat, t)
	}
	for _, t := range flat {
		switch t.Kind {
		case TokenKV:
			if !strings.EqualFold(t.Key, "def") {
				return nil, nil, dberr.New(dberr.KindMalformedCommand,
					"invalid column property %s", t.Key)
			}
			v, err := tokenValue(*t.Val)
			if err != nil {
				return nil, nil, err
			}
			defaultVal = &v
		case TokenValue:
			props = append(props, t.Text())
		default:
			return nil, nil, dberr.New(dberr.KindMalformedCommand, "malformed column property")
		}
	}
	return props, defaultVal, nil
}

// identifier expects a bare scalar token and returns its text.
func identifier(t Token) (string, error) {
	if t.Kind != TokenValue {
		return "", dberr.New(dberr.KindMalformedCommand, "malformed statement: expected a name")
	}
	return t.Text(), nil
}

func expectKeyword(t Token, word string) error {
	text, err := identifier(t)
	if err != nil || !strings.EqualFold(text, word) {
		return dberr.New(dberr.KindMalformedCommand,
			"malformed statement: expected %s", strings.ToUpper(word))
	}
	return nil
}

// tokenValue converts a token to the cell value it denotes. Bare true/false
// words become booleans; quoted ones stay strings.
func tokenValue(t Token) (value.Value, error) {
	switch t.Kind {
	case TokenValue:
		if !t.Quoted && t.Value.Kind() == value.KindString {
			switch t.Value.Str() {
			case "true":
				return value.Bool(true), nil
			case "false":
				return value.Bool(false), nil
			}
		}
		return t.Value, nil
	case TokenList:
		items := make([]value.Value, 0, len(t.List))
		for _, item := range t.List {
			v, err := tokenValue(item)
			if err != nil {
				return value.Absent(), err
			}
			items = append(items, v)
		}
		return value.ListOf(items), nil
	}
	return value.Absent(), dberr.New(dberr.KindMalformedCommand, "unexpected key-value pair in value position")
}

// columnList accepts a single name, a comma-joined group, or a
// parenthesized list of names.
func columnList(t Token) ([]string, error) {
	switch t.Kind {
	case TokenValue:
		return []string{t.Text()}, nil
	case TokenList:
		cols := make([]string, 0, len(t.List))
		for _, item := range t.List {
			col, err := identifier(item)
			if err != nil {
				return nil, err
			}
			cols = append(cols, col)
		}
		return cols, nil
	}
	return nil, dberr.New(dberr.KindMalformedCommand, "malformed statement: expected column names")
}

func valueList(t Token) ([]value.Value, error) {
	if t.Kind != TokenList {
		v, err := tokenValue(t)
		if err != nil {
			return nil, err
		}
		return []value.Value{v}, nil
	}
	vals := make([]value.Value, 0, len(t.List))
	for _, item := range t.List {
		v, err := tokenValue(item)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// kvPairs extracts selector or data pairs from a key-value token or a list
// of them.
func kvPairs(t Token) ([]string, []value.Value, error) {
	pairs := []Token{}
	switch t.Kind {
	case TokenKV:
		pairs = append(pairs, t)
	case TokenList:
		pairs = append(pairs, t.List...)
	default:
		return nil, nil, dberr.New(dberr.KindMalformedCommand,
			"malformed statement: expected col=val pairs")
	}

	cols := []string{}
	vals := []value.Value{}
	for _, pair := range pairs {
		if pair.Kind != TokenKV {
			return nil, nil, dberr.New(dberr.KindMalformedCommand,
				"malformed statement: expected col=val pairs")
		}
		v, err := tokenValue(*pair.Val)
		if err != nil {
			return nil, nil, err
		}
		cols = append(cols, pair.Key)
		vals = append(vals, v)
	}
	return cols, vals, nil
}
