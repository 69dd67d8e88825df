package server

import (
	"encoding/json"

	"github.com/cabinetdb/cabinet/internal/access"
	"github.com/cabinetdb/cabinet/internal/dberr"
	"github.com/cabinetdb/cabinet/internal/lang"
	"github.com/cabinetdb/cabinet/pkg"
)

// HandleMessage routes one inbound request. A malformed or crashing request
// must never take the server down, so panics during handling are converted
// into an IoError reply.
func (s *Server) HandleMessage(origin string, raw []byte) (res Response) {
	defer func() {
		if r := recover(); r != nil {
			pkg.ErrorLog("recovered while handling request:", r)
			res = NewErrorResponse(
				dberr.New(dberr.KindIoError, "internal failure while handling request").Error())
		}
	}()

	var hdr Header
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return NewErrorResponse("malformed request: " + err.Error())
	}
	if hdr.Type != RequestType {
		return NewErrorResponse("unknown request type " + hdr.Type)
	}

	switch hdr.Method {
	case MethodPing:
		return s.handlePing(origin, hdr, raw)
	case MethodGet:
		return s.handleGet(origin, hdr, raw)
	case MethodPut:
		return s.handlePut(origin, hdr, raw)
	case MethodInsert:
		return s.handleInsert(origin, hdr, raw)
	case MethodExists:
		return s.handleExists(origin, hdr, raw)
	case MethodRun:
		return s.handleRun(origin, hdr, raw)
	}
	return NewErrorResponse("unknown method " + hdr.Method)
}

func credentials(raw []byte) *access.Credentials {
	var body struct {
		User *access.Credentials `json:"user"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil
	}
	return body.User
}

func (s *Server) handlePing(origin string, hdr Header, raw []byte) Response {
	if _, err := s.gate.Authorize(credentials(raw), origin, hdr.DB, MethodPing); err != nil {
		return NewErrorResponse(err.Error())
	}
	return NewResponse("pong")
}

func (s *Server) handleGet(origin string, hdr Header, raw []byte) Response {
	var req GetRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse("malformed get request: " + err.Error())
	}
	if _, err := s.gate.Authorize(req.User, origin, hdr.DB, MethodGet); err != nil {
		return NewErrorResponse(err.Error())
	}
	rows, err := s.engine.Get(hdr.DB, req.Table, req.Sel.Cols, req.Sel.Vals, req.Cols)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return NewResponse(rows)
}

func (s *Server) handlePut(origin string, hdr Header, raw []byte) Response {
	var req PutRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse("malformed put request: " + err.Error())
	}
	if _, err := s.gate.Authorize(req.User, origin, hdr.DB, MethodPut); err != nil {
		return NewErrorResponse(err.Error())
	}
	count, err := s.engine.Put(hdr.DB, req.Table, req.Sel.Cols, req.Sel.Vals, req.Data.Cols, req.Data.Vals)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	s.touch()
	return NewResponse(count)
}

func (s *Server) handleInsert(origin string, hdr Header, raw []byte) Response {
	var req InsertRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse("malformed insert request: " + err.Error())
	}
	if _, err := s.gate.Authorize(req.User, origin, hdr.DB, MethodInsert); err != nil {
		return NewErrorResponse(err.Error())
	}
	if err := s.engine.Insert(hdr.DB, req.Table, req.Cols, req.Vals); err != nil {
		return NewErrorResponse(err.Error())
	}
	s.touch()
	return NewResponse(1)
}

func (s *Server) handleExists(origin string, hdr Header, raw []byte) Response {
	var req ExistsRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse("malformed exists request: " + err.Error())
	}
	if _, err := s.gate.Authorize(req.User, origin, hdr.DB, MethodExists); err != nil {
		return NewErrorResponse(err.Error())
	}
	found, err := s.engine.Exists(hdr.DB, req.Table, req.Sel.Cols, req.Sel.Vals)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return NewResponse(found)
}

// handleRun authorizes on the command's first keyword, so e.g. a raw SELECT
// needs the "select" permission rather than a blanket "run".
func (s *Server) handleRun(origin string, hdr Header, raw []byte) Response {
	var req RunRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse("malformed run request: " + err.Error())
	}
	perm := lang.FirstKeyword(req.Cmd)
	if perm == "" {
		return NewErrorResponse("empty command")
	}
	if _, err := s.gate.Authorize(req.User, origin, hdr.DB, perm); err != nil {
		return NewErrorResponse(err.Error())
	}
	result, err := lang.Run(s.engine, hdr.DB, req.Cmd)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	s.touch()
	return NewResponse(result)
}
