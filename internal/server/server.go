// Package server exposes the repositories over HTTP.
//
// Each /ws/{kind} WebSocket streams the active identity's records: one
// snapshot message on connect and another after every change. Writes go
// through a small REST API. Sync events are broadcast to every connected
// stream.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goalcoach/goalcoach/internal/cloudsync"
	"github.com/goalcoach/goalcoach/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MessageType is the type of a stream message.
type MessageType string

const (
	// MessageTypeSnapshot carries the full current list of one kind.
	MessageTypeSnapshot MessageType = "snapshot"

	// MessageTypeSyncComplete reports a finished pull.
	MessageTypeSyncComplete MessageType = "sync_complete"
)

// Message is one stream message.
type Message struct {
	Type      MessageType     `json:"type"`
	Kind      string          `json:"kind,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// SyncCompleteData describes a finished pull.
type SyncCompleteData struct {
	Owner    string            `json:"owner"`
	Applied  map[string]int    `json:"applied"`
	Errors   map[string]string `json:"errors,omitempty"`
	Duration time.Duration     `json:"duration"`
}

// Repos are the repositories served.
type Repos struct {
	Goals   *repository.GoalRepository
	Journal *repository.JournalRepository
	Places  *repository.PlaceRepository
}

// SyncState reports the pull coordinator's state.
type SyncState interface {
	State() cloudsync.State
}

// Config holds server configuration.
type Config struct {
	// Port to listen on. Zero picks a free port.
	Port int

	// Gatherer serves /metrics. Nil serves the default registry.
	Gatherer prometheus.Gatherer

	// Sync, if set, is reported by /health.
	Sync SyncState

	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:   8080,
		Logger: log.New(os.Stderr, "[server] ", log.LstdFlags),
	}
}

// Server serves the record streams and the REST API.
type Server struct {
	repos  Repos
	config *Config
	addr   string

	listener net.Listener
	server   *http.Server

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// NewServer creates a server for repos.
func NewServer(repos Repos, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		repos:     repos,
		config:    config,
		addr:      fmt.Sprintf(":%d", config.Port),
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metricsHandler())

	r.Route("/ws", func(r chi.Router) {
		r.Get("/goals", stream(s, s.repos.Goals.Kind().Name, s.repos.Goals.Observe))
		r.Get("/journal", stream(s, s.repos.Journal.Kind().Name, s.repos.Journal.Observe))
		r.Get("/places", stream(s, s.repos.Places.Kind().Name, s.repos.Places.Observe))
		r.Get("/insights/confidence", stream(s, "confidence", s.observeConfidence))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.SetHeader("Content-Type", "application/json"))

		r.Get("/goals", list(s.repos.Goals.Repository))
		r.Put("/goals/{id}", put(s.repos.Goals.Repository))
		r.Delete("/goals/{id}", remove(s.repos.Goals.Repository))
		r.Post("/goals/{id}/progress", s.handleGoalProgress)

		r.Get("/journal", list(s.repos.Journal.Repository))
		r.Put("/journal/{id}", put(s.repos.Journal.Repository))
		r.Delete("/journal/{id}", remove(s.repos.Journal.Repository))

		r.Get("/places", list(s.repos.Places.Repository))
		r.Put("/places/{id}", put(s.repos.Places.Repository))
		r.Delete("/places/{id}", remove(s.repos.Places.Repository))
		r.Delete("/places", s.handleClearPlaces)
	})
	return r
}

func (s *Server) metricsHandler() http.Handler {
	if s.config.Gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})
}

// Start begins listening.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop closes every stream and shuts the server down.
func (s *Server) Stop() error {
	s.logger.Println("Stopping server")
	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "Server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	s.wg.Wait()
	s.logger.Println("Server stopped")
	return nil
}

// Broadcast queues msg for every connected stream. Messages are dropped
// when the queue is full.
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Println("WARNING: Broadcast queue full, dropping message")
	}
}

// BroadcastPull reports a finished pull to every connected stream.
func (s *Server) BroadcastPull(res cloudsync.PullResult) {
	data := SyncCompleteData{
		Owner:    res.Owner,
		Applied:  res.Applied,
		Duration: res.Duration,
	}
	if len(res.Errors) > 0 {
		data.Errors = make(map[string]string, len(res.Errors))
		for kind, err := range res.Errors {
			data.Errors[kind] = err.Error()
		}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		s.logger.Printf("Failed to marshal pull result: %v", err)
		return
	}
	s.Broadcast(Message{Type: MessageTypeSyncComplete, Data: raw})
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now().UTC()
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range clients {
				if err := s.write(conn, msg); err != nil {
					s.logger.Printf("Failed to send to client: %v", err)
					s.removeClient(conn)
				}
			}
		}
	}
}

func (s *Server) write(conn *websocket.Conn, msg Message) error {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}

// accept upgrades the request and registers the client. The returned
// context ends when the client goes away or the server stops.
func (s *Server) accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, context.Context, context.CancelFunc, bool) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return nil, nil, nil, false
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	count := len(s.clients)
	s.clientsMu.Unlock()
	s.logger.Printf("Client connected (total: %d)", count)

	// Clients send nothing; CloseRead handles control frames and cancels
	// the context once the connection closes.
	ctx, cancel := context.WithCancel(conn.CloseRead(context.Background()))
	stop := context.AfterFunc(s.ctx, cancel)
	return conn, ctx, func() {
		stop()
		cancel()
	}, true
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, ok := s.clients[conn]; !ok {
		s.clientsMu.Unlock()
		return
	}
	delete(s.clients, conn)
	count := len(s.clients)
	s.clientsMu.Unlock()

	_ = conn.Close(websocket.StatusNormalClosure, "")
	s.logger.Printf("Client disconnected (total: %d)", count)
}

// GetAddr returns the listening address.
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the number of connected streams.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
