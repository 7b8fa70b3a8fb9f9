// Package remote streams spoken announcements to caregiver clients over
// WebSocket. Clients connect to /ws and receive each announcement as JSON
// the moment it is spoken.
package remote

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Rajvardhan-Desai/vision-aid/internal/alert"
)

const (
	// wsPingInterval is the interval between ping frames sent to the client.
	wsPingInterval = 30 * time.Second
	// wsPongTimeout is how long to wait for a pong response before closing.
	wsPongTimeout = 10 * time.Second
	// wsWriteTimeout is the deadline for writing a message to the client.
	wsWriteTimeout = 5 * time.Second
	// subBuffer is the per-client buffer; a stalled client drops messages
	// rather than blocking the dispatcher.
	subBuffer = 16
)

// announcement is the wire format for one spoken event.
type announcement struct {
	Ts       string `json:"ts"`
	Category string `json:"category"`
	Priority int    `json:"priority"`
	Text     string `json:"text"`
}

// Feed is the WebSocket announcement server.
type Feed struct {
	addr     string
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu     sync.RWMutex
	subs   map[chan announcement]struct{}
	server *http.Server
}

// NewFeed creates a feed listening on addr (for example "127.0.0.1:7180").
func NewFeed(addr string, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Caregiver clients are trusted local-network apps.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
		subs:   make(map[chan announcement]struct{}),
	}
}

// Start begins serving in a background goroutine.
func (f *Feed) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", f.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	f.mu.Lock()
	f.server = &http.Server{Addr: f.addr, Handler: mux}
	srv := f.server
	f.mu.Unlock()

	go func() {
		f.logger.Info("remote feed listening", "addr", f.addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			f.logger.Error("remote feed server error", "error", err)
		}
	}()
}

// Stop shuts the server down and closes all client subscriptions.
func (f *Feed) Stop() {
	f.mu.Lock()
	srv := f.server
	f.server = nil
	for sub := range f.subs {
		close(sub)
	}
	f.subs = make(map[chan announcement]struct{})
	f.mu.Unlock()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		f.logger.Info("remote feed stopped")
	}
}

// Publish fans a spoken event out to all connected clients. Never blocks:
// clients that cannot keep up miss messages.
func (f *Feed) Publish(ev alert.Event) {
	msg := announcement{
		Ts:       time.Now().Format("15:04:05"),
		Category: string(ev.Category),
		Priority: ev.Priority,
		Text:     ev.Text,
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for sub := range f.subs {
		select {
		case sub <- msg:
		default:
		}
	}
}

// ClientCount returns the number of connected clients.
func (f *Feed) ClientCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

func (f *Feed) subscribe() chan announcement {
	ch := make(chan announcement, subBuffer)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

func (f *Feed) unsubscribe(ch chan announcement) {
	f.mu.Lock()
	if _, ok := f.subs[ch]; ok {
		delete(f.subs, ch)
		close(ch)
	}
	f.mu.Unlock()
}

// handleWS upgrades the connection and streams announcements until the
// client disconnects.
func (f *Feed) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Error("feed WS upgrade error", "error", err)
		return
	}

	f.logger.Info("remote client connected", "remote", r.RemoteAddr)
	sub := f.subscribe()
	defer f.unsubscribe(sub)

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongTimeout))
	})
	_ = conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongTimeout))

	// Read pump: drain client messages (none expected) and detect disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
					f.logger.Warn("feed WS read error", "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-sub:
			if !ok {
				_ = conn.Close()
				return
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				f.logger.Debug("feed WS write error", "error", err)
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		case <-done:
			_ = conn.Close()
			return
		}
	}
}
