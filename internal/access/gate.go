package access

import (
	"github.com/cabinetdb/cabinet/internal/dberr"
	"github.com/cabinetdb/cabinet/internal/engine"
	"github.com/cabinetdb/cabinet/internal/schema"
	"github.com/cabinetdb/cabinet/internal/value"
	"github.com/cabinetdb/cabinet/pkg"
)

// UsersTable is the reserved table inside the internal database that holds
// user rows.
const UsersTable = "users"

// RootSeed is the password of the bootstrapped root user. Every fresh
// server starts with root/RootSeed until an operator changes it; the
// bootstrap logs a warning instead of silently hardening this.
const RootSeed = "root"

type Credentials struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Gate applies the four authorization checks, in order, before any engine
// call: credentials, database access, origin, method permission. When user
// control is disabled every request passes.
type Gate struct {
	Engine     *engine.Engine
	InternalDB string
	Hasher     Hasher
	Enabled    bool
}

func NewGate(e *engine.Engine, internalDB string, enabled bool) *Gate {
	return &Gate{Engine: e, InternalDB: internalDB, Hasher: Sha256Hasher{}, Enabled: enabled}
}

// Bootstrap creates the internal database, the users table, and the default
// root user on first start.
func (g *Gate) Bootstrap() error {
	if !g.Enabled {
		return nil
	}
	if !g.Engine.HasDatabase(g.InternalDB) {
		if err := g.Engine.CreateDatabase(g.InternalDB); err != nil {
			return err
		}
	}
	if _, err := g.Engine.GetSchema(g.InternalDB, UsersTable); err != nil {
		if dberr.KindOf(err) != dberr.KindNotFound {
			return err
		}
		if err := g.Engine.CreateTableWithSchema(g.InternalDB, UsersTable, userTableSchema()); err != nil {
			return err
		}
	}

	rows, err := g.Engine.Get(g.InternalDB, UsersTable, nil, nil, nil)
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		return nil
	}

	root := NewUser("root", RootSeed, g.Hasher, Set{Wildcard}, Set{Wildcard}, Set{Wildcard})
	cols, vals := root.Row()
	if err := g.Engine.Insert(g.InternalDB, UsersTable, cols, vals); err != nil {
		return err
	}
	pkg.WarnLog("created default root user with well-known password; change it before exposing the server")
	return nil
}

// AddUser stores a new user row.
func (g *Gate) AddUser(u *User) error {
	cols, vals := u.Row()
	return g.Engine.Insert(g.InternalDB, UsersTable, cols, vals)
}

func (g *Gate) lookup(name string) (*User, error) {
	rows, err := g.Engine.Get(g.InternalDB, UsersTable,
		[]string{"name"}, []value.Value{value.String(name)}, nil)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return UserFromRow(rows[0]), nil
}

// Authorize runs the full gate. A nil error means the request may proceed;
// the returned user is nil when user control is disabled.
func (g *Gate) Authorize(creds *Credentials, origin, db, method string) (*User, error) {
	if !g.Enabled {
		return nil, nil
	}
	if creds == nil || creds.Name == "" {
		return nil, dberr.New(dberr.KindUnauthorized, "user control is enabled: credentials required")
	}

	u, err := g.lookup(creds.Name)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, dberr.New(dberr.KindUnauthorized, "no user named %s", creds.Name)
	}
	if !g.Hasher.Verify(creds.Password, u.Hash) {
		return nil, dberr.New(dberr.KindUnauthorized, "wrong password for user %s", creds.Name)
	}
	if db != "" && !u.CanAccess(db) {
		return nil, dberr.New(dberr.KindUnauthorized,
			"user %s has no access to database %s", u.Name, db)
	}
	if !u.ValidOrigin(origin) {
		return nil, dberr.New(dberr.KindUnauthorized,
			"user %s may not connect from %s", u.Name, origin)
	}
	if !u.HasPermission(method) {
		return nil, dberr.New(dberr.KindUnauthorized,
			"user %s lacks the %s permission", u.Name, method)
	}
	return u, nil
}

func userTableSchema() schema.Schema {
	return schema.Schema{
		"id":     {Type: schema.TypeString, Unique: true, NotNil: true},
		"name":   {Type: schema.TypeString, Unique: true, NotNil: true},
		"hash":   {Type: schema.TypeString, NotNil: true},
		"access": {Type: schema.TypeTable},
		"origin": {Type: schema.TypeTable},
		"perms":  {Type: schema.TypeTable},
	}
}
