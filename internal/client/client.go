// Package client is the remote caller side of the protocol: a synchronous
// send-with-reply wrapper around one websocket connection. Transport
// failures surface as NetworkFailure, distinct from a well-formed error
// reply from the server.
package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/cabinetdb/cabinet/internal/access"
	"github.com/cabinetdb/cabinet/internal/dberr"
	"github.com/cabinetdb/cabinet/internal/server"
	"github.com/cabinetdb/cabinet/internal/value"
	"github.com/cabinetdb/cabinet/pkg"
)

type Config struct {
	Host string
	Port int
	DB   string
	// Credentials are optional; the server ignores them when user control
	// is disabled. The password travels in plaintext on the wire.
	User     string
	Password string
}

type Client struct {
	cfg  Config
	conn *websocket.Conn
	mu   sync.Mutex
}

func Dial(cfg Config) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Path: "/"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, dberr.New(dberr.KindNetworkFailure, "dial %s: %s", u.Host, err)
	}
	return &Client{cfg: cfg, conn: conn}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) credentials() *access.Credentials {
	if c.cfg.User == "" {
		return nil
	}
	return &access.Credentials{Name: c.cfg.User, Password: c.cfg.Password}
}

func (c *Client) header(method string) server.Header {
	return server.Header{Type: server.RequestType, Method: method, DB: c.cfg.DB}
}

// send performs one request/reply round trip. One request is in flight at a
// time; there is no streaming and no retry.
func (c *Client) send(req any) (*server.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.WriteJSON(req); err != nil {
		return nil, dberr.New(dberr.KindNetworkFailure, "send request: %s", err)
	}
	var res server.Response
	if err := c.conn.ReadJSON(&res); err != nil {
		return nil, dberr.New(dberr.KindNetworkFailure, "read reply: %s", err)
	}
	if !res.Success {
		return nil, fmt.Errorf("server error: %s", res.Error)
	}
	return &res, nil
}

func (c *Client) Ping() error {
	_, err := c.send(struct {
		server.Header
		User *access.Credentials `json:"user,omitempty"`
	}{c.header(server.MethodPing), c.credentials()})
	return err
}

func (c *Client) Get(table string, selCols []string, selVals []value.Value, outCols []string) ([]map[string]value.Value, error) {
	res, err := c.send(server.GetRequest{
		Header: c.header(server.MethodGet),
		Table:  table,
		Sel:    server.Pair{Cols: selCols, Vals: selVals},
		Cols:   outCols,
		User:   c.credentials(),
	})
	if err != nil {
		return nil, err
	}
	rows := []map[string]value.Value{}
	if err := redecode(res.Data, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) Put(table string, selCols []string, selVals []value.Value, dataCols []string, dataVals []value.Value) (int, error) {
	res, err := c.send(server.PutRequest{
		Header: c.header(server.MethodPut),
		Table:  table,
		Sel:    server.Pair{Cols: selCols, Vals: selVals},
		Data:   server.Pair{Cols: dataCols, Vals: dataVals},
		User:   c.credentials(),
	})
	if err != nil {
		return 0, err
	}
	// the count arrives as a json number, so float64
	return pkg.NumToInt(res.Data), nil
}

func (c *Client) Insert(table string, cols []string, vals []value.Value) error {
	_, err := c.send(server.InsertRequest{
		Header: c.header(server.MethodInsert),
		Table:  table,
		Cols:   cols,
		Vals:   vals,
		User:   c.credentials(),
	})
	return err
}

func (c *Client) Exists(table string, cols []string, vals []value.Value) (bool, error) {
	res, err := c.send(server.ExistsRequest{
		Header: c.header(server.MethodExists),
		Table:  table,
		Sel:    server.Pair{Cols: cols, Vals: vals},
		User:   c.credentials(),
	})
	if err != nil {
		return false, err
	}
	found := false
	if err := redecode(res.Data, &found); err != nil {
		return false, err
	}
	return found, nil
}

// Run submits a raw command string.
func (c *Client) Run(cmd string) (map[string]any, error) {
	res, err := c.send(server.RunRequest{
		Header: c.header(server.MethodRun),
		Cmd:    cmd,
		User:   c.credentials(),
	})
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := redecode(res.Data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// redecode converts the reply's generic json data into a concrete shape.
func redecode(data, into any) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return dberr.New(dberr.KindCorrupted, "re-encode reply data: %s", err)
	}
	if err := json.Unmarshal(buf, into); err != nil {
		return dberr.New(dberr.KindCorrupted, "decode reply data: %s", err)
	}
	return nil
}
