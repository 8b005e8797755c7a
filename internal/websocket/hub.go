// Package websocket pushes surface updates to connected browsers.
package websocket

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	json "github.com/goccy/go-json"

	"github.com/conneroisu/courseview/internal/logging"
)

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string    `json:"type"`
	Target    string    `json:"target,omitempty"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// OriginValidator interface for WebSocket origin validation
type OriginValidator interface {
	IsAllowedOrigin(origin string) bool
}

// AllowedOrigins accepts the listed hosts, with or without scheme. An empty
// list accepts only loopback origins.
type AllowedOrigins []string

// IsAllowedOrigin implements OriginValidator.
func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if len(a) == 0 {
		host := u.Hostname()
		if host == "localhost" {
			return true
		}
		ip := net.ParseIP(host)
		return ip != nil && ip.IsLoopback()
	}
	for _, allowed := range a {
		if strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, u.Host) {
			return true
		}
	}
	return false
}

// Client represents a WebSocket client connection
type Client struct {
	conn *websocket.Conn
	ip   string
	send chan []byte
}

// Hub owns the set of connected clients and fans updates out to them.
// A single goroutine handles registration, removal and broadcast.
type Hub struct {
	clients      map[*websocket.Conn]*Client
	clientsMutex sync.RWMutex
	perIP        map[string]int

	broadcast  chan []byte
	register   chan *Client
	unregister chan *websocket.Conn

	originValidator OriginValidator
	maxPerIP        int
	logger          logging.Logger

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	done         chan struct{}
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithMaxClientsPerIP caps simultaneous connections from one address.
// Zero disables the cap.
func WithMaxClientsPerIP(n int) HubOption {
	return func(h *Hub) { h.maxPerIP = n }
}

// WithLogger sets the hub logger.
func WithLogger(l logging.Logger) HubOption {
	return func(h *Hub) { h.logger = l.WithComponent("websocket") }
}

// NewHub creates a hub and starts its loop. originValidator is required.
func NewHub(originValidator OriginValidator, opts ...HubOption) *Hub {
	if originValidator == nil {
		panic("websocket: originValidator cannot be nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:         make(map[*websocket.Conn]*Client),
		perIP:           make(map[string]int),
		broadcast:       make(chan []byte, 256),
		register:        make(chan *Client, 32),
		unregister:      make(chan *websocket.Conn, 32),
		originValidator: originValidator,
		maxPerIP:        20,
		logger:          logging.Discard(),
		ctx:             ctx,
		cancel:          cancel,
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	go h.run()
	return h
}

// ServeHTTP upgrades the request and registers the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.ctx.Err() != nil {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	if origin := r.Header.Get("Origin"); origin != "" && !h.originValidator.IsAllowedOrigin(origin) {
		h.logger.Warn(r.Context(), nil, "WebSocket connection rejected: invalid origin", "origin", origin)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	ip := clientIP(r)
	if !h.admit(ip) {
		h.logger.Warn(r.Context(), nil, "WebSocket connection rejected: too many connections", "ip", ip)
		http.Error(w, "Too many connections", http.StatusTooManyRequests)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Origins were validated above.
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionDisabled,
	})
	if err != nil {
		h.release(ip)
		h.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "ip", ip)
		return
	}

	client := &Client{
		conn: conn,
		ip:   ip,
		send: make(chan []byte, 64),
	}

	select {
	case h.register <- client:
	case <-h.ctx.Done():
		h.release(ip)
		_ = conn.Close(websocket.StatusServiceRestart, "Server shutting down")
		return
	}

	go h.writePump(client)
	h.readPump(client)
}

// admit reserves a connection slot for ip.
func (h *Hub) admit(ip string) bool {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	if h.maxPerIP > 0 && h.perIP[ip] >= h.maxPerIP {
		return false
	}
	h.perIP[ip]++
	return true
}

func (h *Hub) release(ip string) {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()
	if h.perIP[ip] <= 1 {
		delete(h.perIP, ip)
		return
	}
	h.perIP[ip]--
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.clientsMutex.Lock()
			h.clients[client.conn] = client
			total := len(h.clients)
			h.clientsMutex.Unlock()
			h.logger.Debug(h.ctx, "WebSocket client connected", "ip", client.ip, "clients", total)

		case conn := <-h.unregister:
			h.remove(conn)

		case message := <-h.broadcast:
			h.clientsMutex.RLock()
			for _, client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client; drop it rather than block everyone.
					go func(c *websocket.Conn) {
						select {
						case h.unregister <- c:
						case <-h.ctx.Done():
						}
					}(client.conn)
				}
			}
			h.clientsMutex.RUnlock()

		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.clientsMutex.Lock()
	client, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
		close(client.send)
		if h.perIP[client.ip] <= 1 {
			delete(h.perIP, client.ip)
		} else {
			h.perIP[client.ip]--
		}
	}
	total := len(h.clients)
	h.clientsMutex.Unlock()

	if ok {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		h.logger.Debug(h.ctx, "WebSocket client disconnected", "ip", client.ip, "clients", total)
	}
}

// readPump discards client messages; it exists to notice disconnects.
func (h *Hub) readPump(client *Client) {
	defer func() {
		select {
		case h.unregister <- client.conn:
		case <-h.ctx.Done():
		}
	}()

	for {
		if _, _, err := client.conn.Read(h.ctx); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(h.ctx, 10*time.Second)
			err := client.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(h.ctx, 10*time.Second)
			err := client.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}

		case <-h.ctx.Done():
			return
		}
	}
}

// Broadcast queues msg for every connected client. It never blocks; when the
// queue is full the message is dropped.
func (h *Hub) Broadcast(msg UpdateMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error(h.ctx, err, "Failed to marshal broadcast message")
		return
	}

	select {
	case h.broadcast <- data:
	case <-h.ctx.Done():
	default:
		h.logger.Warn(h.ctx, nil, "Broadcast channel full, dropping message", "type", msg.Type)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}

// Shutdown closes every connection and stops the hub loop.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(func() {
		h.cancel()

		h.clientsMutex.Lock()
		for conn, client := range h.clients {
			close(client.send)
			_ = conn.Close(websocket.StatusGoingAway, "Server shutdown")
		}
		h.clients = make(map[*websocket.Conn]*Client)
		h.perIP = make(map[string]int)
		h.clientsMutex.Unlock()
	})

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
