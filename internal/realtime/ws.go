package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/uma-arai/sbcntr-homeservice/internal/auth"
	"github.com/uma-arai/sbcntr-homeservice/internal/model"
	"golang.org/x/net/websocket"
)

const (
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultWriteTimeout     = 10 * time.Second

	// EventConnected は接続確立直後に一度だけ送られます
	EventConnected = "connected"
)

type identityContextKey struct{}

// Frame はクライアントへ送るJSONフレームです
type Frame struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Handler はwebsocket接続を認証してRegistryに登録します
type Handler struct {
	registry         *Registry
	verifier         auth.TokenVerifier
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	ws               websocket.Server
}

// NewHandler は新しいHandlerを作成します
func NewHandler(registry *Registry, verifier auth.TokenVerifier, handshakeTimeout, writeTimeout time.Duration) *Handler {
	if handshakeTimeout <= 0 {
		handshakeTimeout = DefaultHandshakeTimeout
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	h := &Handler{
		registry:         registry,
		verifier:         verifier,
		handshakeTimeout: handshakeTimeout,
		writeTimeout:     writeTimeout,
	}
	h.ws = websocket.Server{Handler: h.serveConn, Handshake: acceptAnyOrigin}
	return h
}

// ServeHTTP はアップグレード前にトークンを検証します
// 検証に失敗した場合やタイムアウトした場合は401を返し、接続しません
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := tokenFromRequest(r)
	if token == "" {
		log.Printf("realtime: websocket unauthorized: missing token remote=%s", r.RemoteAddr)
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	identity, err := auth.VerifyWithTimeout(r.Context(), h.verifier, token, h.handshakeTimeout)
	if err != nil {
		log.Printf("realtime: websocket unauthorized: remote=%s err=%v", r.RemoteAddr, err)
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
	h.ws.ServeHTTP(w, r.WithContext(ctx))
}

func (h *Handler) serveConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	identity, ok := conn.Request().Context().Value(identityContextKey{}).(model.Identity)
	if !ok {
		return
	}

	ch := newWSChannel(conn, h.writeTimeout)
	unregister := h.registry.Register(identity.UserID, ch)
	defer unregister()

	if err := ch.Send(EventConnected, map[string]string{"userId": identity.UserID}); err != nil {
		return
	}

	// クライアントからのフレームは使わないため、切断まで読み捨てる
	_, _ = io.Copy(io.Discard, conn)
}

// acceptAnyOrigin はOriginヘッダーがなくても接続を受け付けます
func acceptAnyOrigin(config *websocket.Config, r *http.Request) error {
	if origin, err := websocket.Origin(config, r); err == nil {
		config.Origin = origin
	}
	return nil
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

type wsChannel struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	encoder      *json.Encoder
	writeTimeout time.Duration
}

func newWSChannel(conn *websocket.Conn, writeTimeout time.Duration) *wsChannel {
	return &wsChannel{
		conn:         conn,
		encoder:      json.NewEncoder(conn),
		writeTimeout: writeTimeout,
	}
}

// Send は書き込み期限付きでフレームを送ります
func (c *wsChannel) Send(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.encoder.Encode(Frame{Event: event, Payload: payload})
}

// Close は接続を閉じます。読み込みループが終わり、クライアントは再接続します
func (c *wsChannel) Close() error {
	return c.conn.Close()
}
