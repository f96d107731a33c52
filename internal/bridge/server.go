package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/TheMichaelB/shelfkey/internal/events"
	"github.com/TheMichaelB/shelfkey/internal/models"
)

// Path is the HTTP path of the websocket endpoint.
const Path = "/bridge"

// Server serves the bridge over a loopback websocket.
type Server struct {
	bridge   *Bridge
	addr     string
	logger   *events.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	listener net.Listener

	pingInterval time.Duration
	pongTimeout  time.Duration
	writeTimeout time.Duration
}

// NewServer creates a server listening on addr.
func NewServer(b *Bridge, addr string, logger *events.Logger) *Server {
	s := &Server{
		bridge:       b,
		addr:         addr,
		logger:       logger.WithField("component", "ws_server"),
		pingInterval: 30 * time.Second,
		pongTimeout:  10 * time.Second,
		writeTimeout: 10 * time.Second,
	}
	s.upgrader = websocket.Upgrader{
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      loopbackOrigin,
	}
	return s
}

// Handler returns the HTTP handler serving Path.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handle)
	return mux
}

// Addr returns the bound address once listening, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ListenAndServe serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.logger.WithField("addr", "ws://"+ln.Addr().String()+Path).Info("Bridge listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.WithError(err).Warn("Bridge shutdown incomplete")
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	logger := s.logger.WithField("remote", r.RemoteAddr)
	logger.Debug("Client connected")

	s.serveConn(r.Context(), conn, logger)

	logger.Debug("Client disconnected")
}

// serveConn runs the read loop of one connection. Requests are dispatched on
// their own goroutines and a single writer serializes the replies.
func (s *Server) serveConn(ctx context.Context, conn *websocket.Conn, logger *events.Logger) {
	ctx, cancel := context.WithCancel(events.WithLogger(ctx, logger))
	defer cancel()

	out := make(chan Response, 16)
	var writerDone sync.WaitGroup
	writerDone.Add(1)
	go func() {
		defer writerDone.Done()
		s.writeLoop(conn, out, logger)
	}()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	go s.pingLoop(ctx, conn, logger)

	var inflight sync.WaitGroup
	defer func() {
		cancel()
		inflight.Wait()
		close(out)
		writerDone.Wait()
	}()

	_ = conn.SetReadDeadline(time.Now().Add(s.pongTimeout + s.pingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.pongTimeout + s.pingInterval))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				logger.WithError(err).Warn("WebSocket read error")
			}
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			logger.WithError(err).Debug("Malformed frame")
			out <- Response{Result: models.Fail[models.Void](fmt.Sprintf("malformed request: %v", err))}
			continue
		}

		reqCtx := events.WithRequestID(ctx, uuid.NewString())

		inflight.Add(1)
		go func() {
			defer inflight.Done()
			resp := s.bridge.Dispatch(reqCtx, req)
			select {
			case out <- resp:
			case <-ctx.Done():
			}
		}()
	}
}

func (s *Server) writeLoop(conn *websocket.Conn, out <-chan Response, logger *events.Logger) {
	broken := false
	for resp := range out {
		if broken {
			continue
		}
		data, err := json.Marshal(resp)
		if err != nil {
			logger.WithError(err).Error("Failed to encode response")
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.WithError(err).Debug("Write failed")
			broken = true
		}
	}
}

func (s *Server) pingLoop(ctx context.Context, conn *websocket.Conn, logger *events.Logger) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout)); err != nil {
				logger.WithError(err).Debug("Ping failed")
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// loopbackOrigin accepts requests without an Origin header and those whose
// origin host is a loopback name.
func loopbackOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
