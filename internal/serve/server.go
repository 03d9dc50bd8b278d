// Package serve exposes the live graph view over HTTP: JSON, SVG, an HTML
// page, and a websocket that pushes every refreshed view.
package serve

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/msalah0e/kgraph/internal/graph"
	"github.com/msalah0e/kgraph/internal/refresh"
	"github.com/msalah0e/kgraph/internal/render"
	"github.com/pkg/errors"
	"lukechampine.com/blake3"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 8
)

// ViewSource publishes views. *refresh.Poller satisfies it.
type ViewSource interface {
	View() refresh.View
	Subscribe(fn func(refresh.View)) (cancel func())
}

// Options configures a Server.
type Options struct {
	Title          string
	DisableReqLogs bool
	Logger         *slog.Logger
}

// Payload is the JSON body served at /api/v1/graph and pushed over /ws.
type Payload struct {
	refresh.View
	Readiness   float64 `json:"readiness"`
	Fingerprint string  `json:"fingerprint"`
	SVG         string  `json:"svg,omitempty"`
}

// Server serves the current view of a ViewSource.
type Server struct {
	opts     Options
	app      *echo.Echo
	source   ViewSource
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu          sync.Mutex
	clients     map[*client]struct{}
	closed      bool
	unsubscribe func()
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// New creates a server and subscribes it to source.
func New(source ViewSource, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		opts:    opts,
		app:     echo.New(),
		source:  source,
		logger:  logger,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // the page may be opened from another host name
			},
		},
	}
	s.setup()
	s.unsubscribe = source.Subscribe(s.broadcast)
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.HidePort = true

	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			LogMethod:  true,
			LogURI:     true,
			LogStatus:  true,
			LogLatency: true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				s.logger.Debug("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
				return nil
			},
		}))
	}
	s.app.Use(middleware.Recover())

	s.app.GET("/", s.page)
	s.app.GET("/health", health)
	s.app.GET("/graph.svg", s.svg)
	s.app.GET("/ws", s.stream)

	v1 := s.app.Group("/api/v1")
	v1.GET("/graph", s.graphJSON)
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	err := s.app.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return errors.Wrapf(err, "listening on %s", addr)
}

// Shutdown stops pushing views, disconnects websocket clients and stops the
// HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		s.unsubscribe()
		for c := range s.clients {
			c.close()
			delete(s.clients, c)
		}
	}
	s.mu.Unlock()

	return s.app.Shutdown(ctx)
}

// ServeHTTP lets the server be mounted or tested without listening.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

func health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// current returns the view with a snapshot guaranteed.
func (s *Server) current() refresh.View {
	v := s.source.View()
	if v.Snapshot == nil {
		v.Snapshot = graph.Empty("")
	}
	return v
}

func newPayload(v refresh.View, withSVG bool) Payload {
	if v.Snapshot == nil {
		v.Snapshot = graph.Empty("")
	}
	p := Payload{
		View:        v,
		Readiness:   render.Readiness(v.Snapshot.Nodes),
		Fingerprint: v.Snapshot.Fingerprint(),
	}
	if withSVG {
		p.SVG = render.SVG(v.Snapshot)
	}
	return p
}

func (s *Server) graphJSON(c echo.Context) error {
	data, err := encode(newPayload(s.current(), false))
	if err != nil {
		return err
	}

	etag := bodyTag(data)
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set("ETag", etag)
	if match := c.Request().Header.Get("If-None-Match"); match != "" && match == etag {
		return c.NoContent(http.StatusNotModified)
	}
	return c.JSONBlob(http.StatusOK, data)
}

// bodyTag is a strong ETag over the encoded payload, so state, notice and
// error changes invalidate it even when the snapshot is kept.
func bodyTag(data []byte) string {
	sum := blake3.Sum256(data)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

func (s *Server) svg(c echo.Context) error {
	return c.Blob(http.StatusOK, "image/svg+xml", []byte(render.SVG(s.current().Snapshot)))
}

func (s *Server) page(c echo.Context) error {
	v := s.current()
	body, err := render.HTML(v.Snapshot, render.PageOptions{
		Title:  s.opts.Title,
		Notice: v.Notice,
		Error:  v.Error,
		Live:   true,
	})
	if err != nil {
		return err
	}
	return c.HTMLBlob(http.StatusOK, body)
}

func (s *Server) stream(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return nil
	}

	cl := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	data, err := encode(newPayload(s.current(), true))
	if err != nil {
		conn.Close()
		return nil
	}
	cl.send <- data

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return nil
	}
	s.clients[cl] = struct{}{}
	count := len(s.clients)
	s.mu.Unlock()
	s.logger.Debug("websocket client connected", "clients", count)

	go s.writePump(cl)
	s.readPump(cl)
	return nil
}

// readPump discards incoming messages and unregisters the client once the
// connection closes.
func (s *Server) readPump(cl *client) {
	defer func() {
		s.drop(cl)
		cl.conn.Close()
	}()
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(cl *client) {
	defer cl.conn.Close()
	for data := range cl.send {
		cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.drop(cl)
			return
		}
	}
	cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
	cl.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) drop(cl *client) {
	s.mu.Lock()
	delete(s.clients, cl)
	s.mu.Unlock()
	cl.close()
}

// broadcast pushes v to every client. Clients that cannot keep up are dropped.
func (s *Server) broadcast(v refresh.View) {
	data, err := encode(newPayload(v, true))
	if err != nil {
		s.logger.Error("encoding view", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for cl := range s.clients {
		select {
		case cl.send <- data:
		default:
			s.logger.Warn("dropping slow websocket client")
			delete(s.clients, cl)
			cl.close()
		}
	}
}

func encode(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	return data, errors.Wrap(err, "encoding payload")
}
