// Package value is the closed variant type every row cell flows through.
// Keeping the set of kinds closed makes schema type checks exhaustive
// instead of duck-typed any-switches.
package value

import (
	"encoding/json"
	"fmt"
	"strconv"
)

type Kind int

const (
	KindAbsent Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindList:
		return "table"
	}
	return "absent"
}

// Value is one of String, Number, Bool, List or Absent. The zero value is
// Absent. Numbers are float64-backed to round-trip through json unchanged.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	list []Value
}

func Absent() Value              { return Value{} }
func String(s string) Value      { return Value{kind: KindString, str: s} }
func Number(n float64) Value     { return Value{kind: KindNumber, num: n} }
func Bool(b bool) Value          { return Value{kind: KindBool, b: b} }
func List(items ...Value) Value  { return Value{kind: KindList, list: items} }
func ListOf(items []Value) Value { return Value{kind: KindList, list: items} }

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

func (v Value) Str() string    { return v.str }
func (v Value) Num() float64   { return v.num }
func (v Value) Boolean() bool  { return v.b }
func (v Value) Items() []Value { return v.list }

// FromAny converts a json-decoded value into a Value. nil maps to Absent.
func FromAny(in any) (Value, error) {
	switch in := in.(type) {
	case nil:
		return Absent(), nil
	case string:
		return String(in), nil
	case float64:
		return Number(in), nil
	case int:
		return Number(float64(in)), nil
	case bool:
		return Bool(in), nil
	case []any:
		items := make([]Value, 0, len(in))
		for _, item := range in {
			v, err := FromAny(item)
			if err != nil {
				return Absent(), err
			}
			items = append(items, v)
		}
		return ListOf(items), nil
	case Value:
		return in, nil
	}
	return Absent(), fmt.Errorf("unsupported value %v (%T)", in, in)
}

// Interface returns the native representation used in json replies and on
// disk. Absent maps back to nil.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindList:
		items := make([]any, 0, len(v.list))
		for _, item := range v.list {
			items = append(items, item.Interface())
		}
		return items
	}
	return nil
}

func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	}
	return true // both absent
}

// Matches implements selector semantics: a scalar selector matches by
// equality, a list selector matches when the cell equals any member.
func (v Value) Matches(sel Value) bool {
	if sel.kind == KindList && v.kind != KindList {
		for _, item := range sel.list {
			if v.Equal(item) {
				return true
			}
		}
		return false
	}
	return v.Equal(sel)
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindList:
		out := "("
		for i, item := range v.list {
			if i > 0 {
				out += ", "
			}
			out += item.String()
		}
		return out + ")"
	}
	return "<absent>"
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
