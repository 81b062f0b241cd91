// Package gateway exposes the agent loop and its supporting services over a
// token-authenticated WebSocket RPC protocol.
package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"maps"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/agentloop/internal/agent"
	"github.com/soyeahso/agentloop/internal/channel"
	"github.com/soyeahso/agentloop/internal/config"
	"github.com/soyeahso/agentloop/internal/hooks"
	"github.com/soyeahso/agentloop/internal/llm"
	"github.com/soyeahso/agentloop/internal/logging"
	"github.com/soyeahso/agentloop/internal/storage"
	"github.com/soyeahso/agentloop/internal/store"
	"github.com/soyeahso/agentloop/internal/version"
)

var ErrClientClosed = errors.New("client connection closed")

const (
	maxPayload       = 4 * 1024 * 1024
	maxBufferedBytes = 16 * 1024 * 1024
	handshakeTimeout = 10 * time.Second
)

// Server is the agentloop gateway HTTP + WebSocket server.
type Server struct {
	cfg      config.Config
	auth     ResolvedAuth
	log      *logging.Logger
	clients  *ClientRegistry
	handlers map[string]RequestHandler
	version  string
	eventSeq atomic.Int64

	// Optional backends; a nil backend makes its methods answer "unavailable".
	loop      *agent.Loop
	generator *llm.TextGenerator
	storage   *storage.Inspector
	knowledge *store.KnowledgeStore
	hooks     *hooks.Manager
	channels  *channel.Registry

	startedAt   time.Time
	httpServer  *http.Server
	upgrader    websocket.Upgrader
	authLimiter *authRateLimiter
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithLoop sets the agent loop used by chat.send and tools.list.
func WithLoop(l *agent.Loop) ServerOption {
	return func(s *Server) { s.loop = l }
}

// WithGenerator sets the single-shot generator used by generate.text.
func WithGenerator(g *llm.TextGenerator) ServerOption {
	return func(s *Server) { s.generator = g }
}

// WithStorage sets the inspector behind storage.inspect and storage.clear.
func WithStorage(in *storage.Inspector) ServerOption {
	return func(s *Server) { s.storage = in }
}

// WithKnowledge sets the store behind knowledge.search.
func WithKnowledge(k *store.KnowledgeStore) ServerOption {
	return func(s *Server) { s.knowledge = k }
}

// WithHooks sets the hook manager for lifecycle events.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) { s.hooks = hm }
}

// WithChannels sets the chat channels reported by status.
func WithChannels(r *channel.Registry) ServerOption {
	return func(s *Server) { s.channels = r }
}

// New creates a new gateway server.
func New(cfg config.Config, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:         cfg,
		auth:        ResolveAuth(cfg.Gateway.Auth),
		log:         log.Sub("gateway"),
		clients:     NewClientRegistry(log.Sub("clients")),
		handlers:    make(map[string]RequestHandler),
		version:     version.Version,
		startedAt:   time.Now(),
		authLimiter: newAuthRateLimiter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.Gateway.AllowedOrigins),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRPCHandlers()
	return s
}

// checkWebSocketOrigin allows requests without an Origin header (non-browser
// clients) and browser requests whose origin is listed.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || isOriginAllowed(origin, allowed)
	}
}

// Handle registers an RPC method handler.
func (s *Server) Handle(method string, handler RequestHandler) {
	s.handlers[method] = handler
}

// Methods returns the registered RPC method names in sorted order.
func (s *Server) Methods() []string {
	return slices.Sorted(maps.Keys(s.handlers))
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	host := "127.0.0.1"
	switch cfg.Bind {
	case "lan", "auto":
		host = "0.0.0.0"
	case "custom":
		host = cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
	}
	return net.JoinHostPort(host, fmt.Sprint(cfg.Port))
}

// listen opens the gateway socket, wrapped in TLS when configured.
func (s *Server) listen(addr string) (net.Listener, error) {
	tc := s.cfg.Gateway.TLS
	if !tc.Enabled {
		if s.cfg.Gateway.Bind != "loopback" {
			s.log.Warn().Msg("TLS is not enabled, credentials travel in cleartext")
		}
		return net.Listen("tcp", addr)
	}

	cert, err := tls.LoadX509KeyPair(tc.CertPath, tc.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("loading TLS certificate: %w", err)
	}
	return tls.Listen("tcp", addr, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	})
}

// Start serves HTTP and WebSocket traffic until ctx is cancelled, then
// closes every client and shuts the listener down.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Gateway)
	ln, err := s.listen(addr)
	if err != nil {
		return fmt.Errorf("gateway listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     withMiddleware(mux, s.log, s.cfg.Gateway.AllowedOrigins),
		ReadTimeout: 30 * time.Second,
		// WebSocket writes carry their own deadlines.
		IdleTimeout: 120 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	s.startedAt = time.Now()

	stopLimiter := make(chan struct{})
	go s.authLimiter.run(stopLimiter)
	go func() {
		<-ctx.Done()
		close(stopLimiter)
		s.shutdown()
	}()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Gateway.Bind).
		Str("auth", s.auth.Mode).
		Bool("tls", s.cfg.Gateway.TLS.Enabled).
		Strs("methods", s.Methods()).
		Msg("gateway server ready")
	s.hooks.Emit(ctx, hooks.EventGatewayStart, map[string]any{"addr": ln.Addr().String()})

	if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) shutdown() {
	s.hooks.Emit(context.Background(), hooks.EventGatewayStop, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closed := s.clients.CloseAll()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Warn().Err(err).Msg("gateway shutdown incomplete")
	}
	s.log.Info().Int("clients", closed).Msg("gateway server stopped")
}

// Addr returns the configured listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

// handleWebSocket upgrades HTTP to WebSocket and runs the connection loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authLimiter.allow(r.RemoteAddr) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("rate limited after repeated auth failures")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxPayload)

	client, err := s.handshake(conn)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("handshake failed")
		s.authLimiter.recordFailure(r.RemoteAddr)
		conn.Close()
		return
	}

	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		client.Close()
	}()

	s.readLoop(r.Context(), client)
}

// handshakeError is a failed connect that the client is told about before
// the socket closes.
type handshakeError struct {
	code string
	msg  string
	err  error
}

func (e *handshakeError) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *handshakeError) Unwrap() error { return e.err }

// handshake sends a challenge, reads the connect request, checks protocol
// and credentials, and answers with hello-ok.
func (s *Server) handshake(conn *websocket.Conn) (*Client, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	challenge, err := NewEvent(EventConnectChallenge, map[string]any{
		"nonce": uuid.NewString(),
		"ts":    time.Now().UnixMilli(),
	}, 0)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(challenge); err != nil {
		return nil, fmt.Errorf("sending challenge: %w", err)
	}

	frame, params, auth, err := s.readConnect(conn)
	if err != nil {
		var he *handshakeError
		if errors.As(err, &he) {
			sendErrorAndClose(conn, frame.ID, he.code, he.msg)
		}
		return nil, err
	}
	conn.SetReadDeadline(time.Time{})

	client := NewClient(conn, params.Client, auth)
	resp, err := NewResponse(frame.ID, s.hello(client.ConnID))
	if err != nil {
		return nil, err
	}
	if err := conn.WriteJSON(resp); err != nil {
		return nil, fmt.Errorf("sending hello: %w", err)
	}

	s.log.Info().
		Str("connId", client.ConnID).
		Str("clientId", params.Client.ID).
		Str("clientVersion", params.Client.Version).
		Str("authMethod", auth.Method).
		Msg("client authenticated")
	return client, nil
}

// readConnect reads and vets the client's first frame. Failures the client
// should hear about are *handshakeError.
func (s *Server) readConnect(conn *websocket.Conn) (Frame, ConnectParams, AuthResult, error) {
	var params ConnectParams

	_, msg, err := conn.ReadMessage()
	if err != nil {
		return Frame{}, params, AuthResult{}, fmt.Errorf("reading connect: %w", err)
	}
	frame, err := ParseFrame(msg)
	if err != nil {
		return frame, params, AuthResult{}, &handshakeError{CodeProtocolError, "malformed connect frame", err}
	}
	if frame.Type != FrameTypeRequest || frame.Method != "connect" {
		return frame, params, AuthResult{}, &handshakeError{code: CodeProtocolError, msg: "expected connect request"}
	}
	if err := frame.DecodeParams(&params); err != nil {
		return frame, params, AuthResult{}, &handshakeError{CodeInvalidParams, "invalid connect params", err}
	}
	if !params.accepts(ProtocolVersion) {
		return frame, params, AuthResult{}, &handshakeError{code: CodeProtocolError, msg: "unsupported protocol version"}
	}

	auth := Authorize(s.auth, params.Auth)
	if !auth.OK {
		return frame, params, auth, &handshakeError{code: CodeUnauthorized, msg: auth.Reason}
	}
	return frame, params, auth, nil
}

func (s *Server) hello(connID string) HelloOK {
	return HelloOK{
		Protocol: ProtocolVersion,
		Server: ServerInfo{
			Version: s.version,
			Commit:  version.Get().Commit,
			ConnID:  connID,
		},
		Features: Features{
			Methods: s.Methods(),
			Events:  []string{EventConnectChallenge, EventChatRender},
		},
		Policy: ServerPolicy{
			MaxPayload:       maxPayload,
			MaxBufferedBytes: maxBufferedBytes,
			MaxRounds:        s.maxRounds(),
		},
	}
}

// readLoop processes request frames from an authenticated client. Requests
// are handled one at a time, so events for a request always precede its
// response.
func (s *Server) readLoop(ctx context.Context, client *Client) {
	for {
		frame, err := client.ReadFrame()
		switch {
		case errors.Is(err, ErrMalformedFrame):
			s.log.Debug().Err(err).Str("connId", client.ConnID).Msg("rejecting frame")
			client.RespondError(frame.ID, ErrorShape{Code: CodeProtocolError, Message: err.Error()})
			continue
		case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
			s.log.Debug().Str("connId", client.ConnID).Msg("client closed connection")
			return
		case err != nil:
			s.log.Warn().Err(err).Str("connId", client.ConnID).Msg("read error")
			return
		}
		if frame.Type != FrameTypeRequest {
			s.log.Debug().Str("type", frame.Type).Msg("ignoring non-request frame")
			continue
		}
		s.dispatch(ctx, client, frame)
	}
}

func (s *Server) dispatch(ctx context.Context, client *Client, frame Frame) {
	handler, ok := s.handlers[frame.Method]
	if !ok {
		client.RespondError(frame.ID, ErrorShape{
			Code:    CodeMethodNotFound,
			Message: "unknown method: " + frame.Method,
		})
		return
	}
	handler(&RequestContext{Context: ctx, Client: client, Frame: frame, Server: s})
}

// nextSeq returns the next event sequence number.
func (s *Server) nextSeq() int64 { return s.eventSeq.Add(1) }

func sendErrorAndClose(conn *websocket.Conn, reqID, code, message string) {
	conn.WriteJSON(NewErrorResponse(reqID, ErrorShape{Code: code, Message: message}))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, message))
}
