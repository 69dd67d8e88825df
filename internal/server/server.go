// Package server exposes the engine over the request/reply websocket
// protocol. Requests are synchronous: one inbound message yields exactly
// one reply on the same connection.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cabinetdb/cabinet/internal/access"
	"github.com/cabinetdb/cabinet/internal/engine"
	"github.com/cabinetdb/cabinet/pkg"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024 * 10,
	WriteBufferSize: 1024 * 10,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Server struct {
	engine *engine.Engine
	gate   *access.Gate
	port   int

	locker     sync.RWMutex
	lastChange time.Time
}

func New(e *engine.Engine, gate *access.Gate, port int) *Server {
	return &Server{engine: e, gate: gate, port: port, lastChange: time.Now()}
}

func (s *Server) GetLocker() *sync.RWMutex { return &s.locker }

func (s *Server) touch() {
	pkg.LockWrap(s, func() { s.lastChange = time.Now() })
}

func (s *Server) LastChange() (t time.Time) {
	pkg.RLockWrap(s, func() { t = s.lastChange })
	return t
}

// ListenAndServe blocks until SIGINT/SIGTERM.
func (s *Server) ListenAndServe() error {
	if err := s.gate.Bootstrap(); err != nil {
		return err
	}

	exit := make(chan os.Signal, 2)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/", s.handleConnection)

	hs := &http.Server{Addr: fmt.Sprintf(":%d", s.port), Handler: mux}
	errs := make(chan error, 1)
	go func() {
		err := hs.ListenAndServe()
		if err != http.ErrServerClosed {
			errs <- err
		}
	}()

	pkg.InfoLog("cabinet listening on port", s.port)
	select {
	case err := <-errs:
		return err
	case <-exit:
	}
	pkg.DebugLog("shutting down...")
	return hs.Shutdown(context.Background())
}

// handleConnection reads requests off one websocket connection until the
// peer goes away. The request origin is the peer's host, which the gate
// checks against each user's origin allowlist.
func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		pkg.ErrorLog("upgrade failed:", err)
		return
	}
	defer conn.Close()
	defer pkg.InfoLog("connection closed from", conn.RemoteAddr())

	origin := originOf(conn.RemoteAddr().String())
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				pkg.ErrorLog("conn read error:", err)
			}
			return
		}

		res := s.HandleMessage(origin, raw)
		if err := conn.WriteJSON(res); err != nil {
			pkg.ErrorLog("writing response:", err)
			return
		}
	}
}

func originOf(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
