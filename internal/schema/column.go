package schema

import (
	"strings"

	"github.com/cabinetdb/cabinet/internal/dberr"
	"github.com/cabinetdb/cabinet/internal/value"
)

// column def rules:
// - type must be one of string/number/boolean/table
// - PRIMARY_KEY is sugar for UNIQUE + NOT_NIL
// - def=<value> declares a default applied on insert when the column is omitted
// - a default must match the declared type

// ParseColumn builds a ColumnDef from the textual form used by CREATE TABLE
// and ALTER TABLE: <type> [UNIQUE] [NOT_NIL] [PRIMARY_KEY] [def=<value>].
// Property keywords match case-insensitively.
func ParseColumn(col, typeName string, props []string, defaultVal *value.Value) (ColumnDef, error) {
	t := ColumnType(strings.ToLower(typeName))
	if t == "list" {
		t = TypeTable
	}
	if !t.IsValid() {
		return ColumnDef{}, dberr.New(dberr.KindMalformedCommand,
			"invalid type %s for column %s", typeName, col)
	}

	def := ColumnDef{Type: t}
	for _, prop := range props {
		switch strings.ToLower(prop) {
		case "unique":
			def.Unique = true
		case "not_nil":
			def.NotNil = true
		case "primary_key":
			def.Unique = true
			def.NotNil = true
		default:
			return ColumnDef{}, dberr.New(dberr.KindMalformedCommand,
				"invalid property %s for column %s", prop, col)
		}
	}

	if defaultVal != nil {
		if !t.Matches(*defaultVal) {
			return ColumnDef{}, dberr.New(dberr.KindTypeMismatch,
				"wrong type for default of column %s: expected %s, got %s",
				col, t, defaultVal.Kind())
		}
		def.Default = defaultVal
	}
	return def, nil
}
