package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ashureev/dailycase/internal/domain"
	"github.com/ashureev/dailycase/internal/generator"
	"github.com/ashureev/dailycase/internal/identity"
	"github.com/ashureev/dailycase/internal/store"
	"github.com/coder/websocket"
)

// Message is one frame sent to the client.
type Message struct {
	Type      string            `json:"type"`
	Event     *generator.Event  `json:"event,omitempty"`
	Challenge *domain.Challenge `json:"challenge,omitempty"`
	Error     string            `json:"error,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
}

// request is one frame read from the client.
type request struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
}

// Limiter decides whether a user may start another generation.
type Limiter interface {
	Allow(key string) bool
}

// Handler serves /ws/challenge. On connect it obtains the challenge for the
// "offset" query parameter; afterwards the client may send
// {"type":"obtain","offset":N} to navigate and {"type":"ping"}.
type Handler struct {
	store         store.Store
	gen           *generator.Service
	hub           *Hub
	limiter       Limiter
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a live challenge handler. limiter is consulted for
// every "obtain" frame; the upgrade request itself is expected to be limited
// by middleware. A nil limiter allows everything.
func NewHandler(st store.Store, gen *generator.Service, hub *Hub, limiter Limiter, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		store:         st,
		gen:           gen,
		hub:           hub,
		limiter:       limiter,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}
	offset, err := parseOffset(r.URL.Query().Get("offset"))
	if err != nil {
		http.Error(w, "invalid offset", http.StatusBadRequest)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "done"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	id := h.hub.Register(userID, ws)
	defer h.hub.Unregister(userID, id)

	ctx := r.Context()
	kv := store.Scope(h.store, userID)
	h.obtain(ctx, ws, kv, offset)

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else if !errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var req request
		if err := json.Unmarshal(data, &req); err != nil {
			h.reply(ws, Message{Type: "error", Error: "invalid message"})
			continue
		}
		switch req.Type {
		case "obtain":
			if h.limiter != nil && !h.limiter.Allow(userID) {
				h.reply(ws, Message{Type: "error", Error: "rate limit exceeded", Retryable: true})
				continue
			}
			h.obtain(ctx, ws, kv, req.Offset)
		case "ping":
			h.reply(ws, Message{Type: "pong"})
		default:
			h.reply(ws, Message{Type: "error", Error: "unknown message type"})
		}
	}
}

// obtain runs one generation and streams its events to every socket of the
// user. The final challenge or error goes only to the requesting socket.
func (h *Handler) obtain(ctx context.Context, ws *websocket.Conn, kv store.KV, offset int) {
	credential, ok, err := kv.Get(ctx, store.CredentialKey)
	if err != nil {
		slog.Error("Failed to read credential", "error", err, "user_id", kv.Namespace())
		h.reply(ws, Message{Type: "error", Error: "storage unavailable"})
		return
	}
	if !ok || credential == "" {
		h.reply(ws, Message{Type: "error", Error: "missing_credential"})
		return
	}

	ch, err := h.gen.ObtainWithEvents(ctx, kv, offset, credential, func(e generator.Event) {
		h.hub.Broadcast(kv.Namespace(), Message{Type: "event", Event: &e})
	})
	if err != nil {
		var failed *generator.GenerationFailed
		if errors.As(err, &failed) {
			h.reply(ws, Message{Type: "error", Error: failed.Message(), Retryable: true})
			return
		}
		h.reply(ws, Message{Type: "error", Error: err.Error()})
		return
	}
	h.reply(ws, Message{Type: "challenge", Challenge: ch})
}

func (h *Handler) reply(ws *websocket.Conn, m Message) {
	data, err := json.Marshal(m)
	if err != nil {
		slog.Error("Failed to encode live message", "error", err)
		return
	}
	if err := write(ws, data); err != nil {
		slog.Debug("Live reply write failed", "error", err)
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func parseOffset(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
