// Package schema holds per-table column declarations and the type checks
// the record engine runs before every write.
package schema

import (
	"sort"

	"github.com/cabinetdb/cabinet/internal/dberr"
	"github.com/cabinetdb/cabinet/internal/value"
)

type ColumnType string

const (
	TypeString ColumnType = "string"
	TypeNumber ColumnType = "number"
	TypeBool   ColumnType = "boolean"
	TypeTable  ColumnType = "table"
)

func (t ColumnType) IsValid() bool {
	switch t {
	case TypeString, TypeNumber, TypeBool, TypeTable:
		return true
	}
	return false
}

// Matches reports whether a non-absent value has the declared runtime type.
func (t ColumnType) Matches(v value.Value) bool {
	switch t {
	case TypeString:
		return v.Kind() == value.KindString
	case TypeNumber:
		return v.Kind() == value.KindNumber
	case TypeBool:
		return v.Kind() == value.KindBool
	case TypeTable:
		return v.Kind() == value.KindList
	}
	return false
}

type ColumnDef struct {
	Type    ColumnType   `json:"type"`
	Unique  bool         `json:"unique,omitempty"`
	NotNil  bool         `json:"not_nil,omitempty"`
	Default *value.Value `json:"default,omitempty"`
}

// Schema maps column names to their declarations. A nil Schema means the
// table has no declared schema yet (legacy tables before first insert).
type Schema map[string]ColumnDef

func (s Schema) Columns() []string {
	cols := make([]string, 0, len(s))
	for name := range s {
		cols = append(cols, name)
	}
	sort.Strings(cols)
	return cols
}

// Validate confirms every column exists and, when vals is non-nil, that each
// supplied value matches the declared type. An absent value is only an error
// for not-nil columns.
func (s Schema) Validate(cols []string, vals []value.Value) error {
	if vals != nil && len(cols) != len(vals) {
		return dberr.New(dberr.KindMalformedCommand,
			"%d columns but %d values", len(cols), len(vals))
	}
	for i, col := range cols {
		def, ok := s[col]
		if !ok {
			return dberr.New(dberr.KindNotFound, "invalid column %s", col)
		}
		if vals == nil {
			continue
		}
		v := vals[i]
		if v.IsAbsent() {
			if def.NotNil {
				return dberr.New(dberr.KindMissingRequiredColumn,
					"column %s is not nil but no value given", col)
			}
			continue
		}
		if !def.Type.Matches(v) {
			return dberr.New(dberr.KindTypeMismatch,
				"wrong type for column %s: expected %s, got %s", col, def.Type, v.Kind())
		}
	}
	return nil
}

// ValidateSelector is Validate for selector columns, where list values are
// legal against any column type (they express membership, not a cell value).
func (s Schema) ValidateSelector(cols []string, vals []value.Value) error {
	if vals != nil && len(cols) != len(vals) {
		return dberr.New(dberr.KindMalformedCommand,
			"%d columns but %d values", len(cols), len(vals))
	}
	for i, col := range cols {
		def, ok := s[col]
		if !ok {
			return dberr.New(dberr.KindNotFound, "invalid column %s", col)
		}
		if vals == nil {
			continue
		}
		v := vals[i]
		if v.IsAbsent() || v.Kind() == value.KindList {
			continue
		}
		if !def.Type.Matches(v) {
			return dberr.New(dberr.KindTypeMismatch,
				"wrong type for column %s: expected %s, got %s", col, def.Type, v.Kind())
		}
	}
	return nil
}

// Infer derives a schema from the first row of a legacy table. Inferred
// columns carry no constraints.
func Infer(row map[string]value.Value) Schema {
	s := Schema{}
	for col, v := range row {
		var t ColumnType
		switch v.Kind() {
		case value.KindString:
			t = TypeString
		case value.KindNumber:
			t = TypeNumber
		case value.KindBool:
			t = TypeBool
		case value.KindList:
			t = TypeTable
		default:
			t = TypeString
		}
		s[col] = ColumnDef{Type: t}
	}
	return s
}
