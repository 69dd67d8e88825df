// Package access holds the user/permission model and the gate every remote
// request passes before it reaches the command executor.
package access

import (
	"github.com/google/uuid"

	"github.com/cabinetdb/cabinet/internal/storage"
	"github.com/cabinetdb/cabinet/internal/value"
)

// Wildcard in any permission set means "all".
const Wildcard = "*"

// Set is a list of allowed values, or the wildcard.
type Set []string

func (s Set) Contains(v string) bool {
	for _, item := range s {
		if item == Wildcard || item == v {
			return true
		}
	}
	return false
}

func (s Set) values() []value.Value {
	items := make([]value.Value, 0, len(s))
	for _, item := range s {
		items = append(items, value.String(item))
	}
	return items
}

type User struct {
	Id     string
	Name   string
	Hash   string
	Access Set // database names
	Origin Set // remote origin identifiers
	Perms  Set // method names / command keywords
}

func NewUser(name, password string, h Hasher, access, origin, perms Set) *User {
	return &User{
		Id:     uuid.New().String(),
		Name:   name,
		Hash:   h.Hash(password),
		Access: access,
		Origin: origin,
		Perms:  perms,
	}
}

func (u *User) CanAccess(db string) bool         { return u.Access.Contains(db) }
func (u *User) ValidOrigin(origin string) bool   { return u.Origin.Contains(origin) }
func (u *User) HasPermission(method string) bool { return u.Perms.Contains(method) }

// Row converts the user into the column/value form stored in the internal
// users table.
func (u *User) Row() ([]string, []value.Value) {
	return []string{"id", "name", "hash", "access", "origin", "perms"},
		[]value.Value{
			value.String(u.Id),
			value.String(u.Name),
			value.String(u.Hash),
			value.ListOf(u.Access.values()),
			value.ListOf(u.Origin.values()),
			value.ListOf(u.Perms.values()),
		}
}

// UserFromRow rebuilds a user from its stored row.
func UserFromRow(row storage.Row) *User {
	return &User{
		Id:     row.Get("id").Str(),
		Name:   row.Get("name").Str(),
		Hash:   row.Get("hash").Str(),
		Access: setFromValue(row.Get("access")),
		Origin: setFromValue(row.Get("origin")),
		Perms:  setFromValue(row.Get("perms")),
	}
}

func setFromValue(v value.Value) Set {
	s := Set{}
	for _, item := range v.Items() {
		s = append(s, item.Str())
	}
	return s
}
