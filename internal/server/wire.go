package server

import (
	"github.com/cabinetdb/cabinet/internal/access"
	"github.com/cabinetdb/cabinet/internal/value"
)

// Wire schema: every request carries the same header fields; the body is
// method-dependent. Replies always use method "return".

const (
	RequestType  = "db-request"
	MethodReturn = "return"

	MethodPing   = "ping"
	MethodGet    = "get"
	MethodPut    = "put"
	MethodInsert = "insert"
	MethodExists = "exists"
	MethodRun    = "run"
)

type Header struct {
	Type   string `json:"type"`
	Method string `json:"method"`
	DB     string `json:"db,omitempty"`
}

// Pair carries parallel column/value slices for selectors and update data.
type Pair struct {
	Cols []string      `json:"cols"`
	Vals []value.Value `json:"vals"`
}

type GetRequest struct {
	Header
	Table string              `json:"table"`
	Sel   Pair                `json:"sel"`
	Cols  []string            `json:"cols"`
	User  *access.Credentials `json:"user,omitempty"`
}

type PutRequest struct {
	Header
	Table string              `json:"table"`
	Sel   Pair                `json:"sel"`
	Data  Pair                `json:"data"`
	User  *access.Credentials `json:"user,omitempty"`
}

type InsertRequest struct {
	Header
	Table string              `json:"table"`
	Cols  []string            `json:"cols"`
	Vals  []value.Value       `json:"vals"`
	User  *access.Credentials `json:"user,omitempty"`
}

type ExistsRequest struct {
	Header
	Table string              `json:"table"`
	Sel   Pair                `json:"sel"`
	User  *access.Credentials `json:"user,omitempty"`
}

type RunRequest struct {
	Header
	Cmd  string              `json:"cmd"`
	User *access.Credentials `json:"user,omitempty"`
}

type Response struct {
	Type    string `json:"type"`
	Method  string `json:"method"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func NewResponse(data any) Response {
	return Response{Type: RequestType, Method: MethodReturn, Success: true, Data: data}
}

func NewErrorResponse(err string) Response {
	return Response{Type: RequestType, Method: MethodReturn, Success: false, Error: err}
}
