package realtime

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type HubConfig struct {
	// Authorize rejects the connection when it returns an error.
	Authorize func(r *http.Request) error
	// AllowedOrigins lists browser origins allowed to connect; empty allows any.
	AllowedOrigins []string
}

// Hub serves the websocket endpoint. Each connection subscribes to the
// broker, optionally narrowed with ?topics=app,system, and receives every
// matching event as a JSON frame.
type Hub struct {
	broker   *Broker
	log      *zap.Logger
	cfg      HubConfig
	upgrader websocket.Upgrader
}

func NewHub(broker *Broker, log *zap.Logger, cfg HubConfig) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{broker: broker, log: log, cfg: cfg}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, o := range h.cfg.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func parseTopics(raw string) []string {
	var topics []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Authorize != nil {
		if err := h.cfg.Authorize(r); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	topics := parseTopics(r.URL.Query().Get("topics"))
	events := h.broker.Subscribe(ctx, topics...)
	h.log.Debug("realtime client connected",
		zap.String("remote", r.RemoteAddr),
		zap.Strings("topics", topics))

	// Clients never send anything meaningful; reading keeps pongs flowing
	// and notices disconnects.
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-ctx.Done():
			h.log.Debug("realtime client disconnected", zap.String("remote", r.RemoteAddr))
			return
		}
	}
}
