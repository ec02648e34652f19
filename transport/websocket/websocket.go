// Package websocket adapts WebSocket connections to the relay's subscriber
// registry. It is a thin transport shim: the core never sees sockets, only
// registry.Conn handles.
package websocket

import (
	"net/http"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"

	idspkg "github.com/visiona/vlmrelay/internal/relay/ids"
	jsoncodec "github.com/visiona/vlmrelay/internal/relay/jsoncodec"
	loggingpkg "github.com/visiona/vlmrelay/internal/relay/logging"
	registrypkg "github.com/visiona/vlmrelay/internal/relay/registry"
)

const (
	defaultWriteTimeout = 10 * time.Second
	greetingMessage     = "Connected to VLM stream"
)

// inbound keepalive and control frames sent by clients.
type inboundFrame struct {
	Type string `json:"type"`
}

type outboundControlFrame struct {
	Type     string `json:"type"`
	Message  string `json:"message,omitempty"`
	ClientID string `json:"client_id,omitempty"`
}

// Handler upgrades HTTP requests to WebSocket connections and manages each
// subscriber's lifecycle against the registry: add on accept, greeting frame,
// ping/pong keepalives, remove on disconnect.
type Handler struct {
	registry     *registrypkg.Registry
	log          loggingpkg.ServiceLogger
	upgrader     gws.Upgrader
	writeTimeout time.Duration
}

// NewHandler builds the WebSocket endpoint handler. Origin checks are
// disabled; the status API applies the service's CORS policy and the relay
// carries no credentials.
func NewHandler(registry *registrypkg.Registry, log loggingpkg.ServiceLogger) *Handler {
	return &Handler{
		registry: registry,
		log:      log,
		upgrader: gws.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		writeTimeout: defaultWriteTimeout,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", err, loggingpkg.LogFields{"remote": r.RemoteAddr})
		return
	}

	clientID := idspkg.CreateULID()
	conn := &wsConn{socket: socket, writeTimeout: h.writeTimeout}
	h.registry.Add(registrypkg.NewSubscriber(clientID, conn))
	defer func() {
		h.registry.Remove(clientID)
		_ = socket.Close()
	}()

	if err := h.sendControl(conn, outboundControlFrame{
		Type:     "connection",
		Message:  greetingMessage,
		ClientID: clientID,
	}); err != nil {
		h.log.Error("failed to send greeting", err, loggingpkg.LogFields{"client_id": clientID})
		return
	}

	h.readLoop(conn, clientID)
}

// readLoop keeps the connection alive, answering ping frames and ignoring
// anything malformed, until the client disconnects or a read fails.
func (h *Handler) readLoop(conn *wsConn, clientID string) {
	for {
		_, data, err := conn.socket.ReadMessage()
		if err != nil {
			if !gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway) {
				h.log.Debug("websocket read ended", loggingpkg.LogFields{"client_id": clientID, "error": err})
			}
			return
		}

		var frame inboundFrame
		if err := jsoncodec.Unmarshal(data, &frame); err != nil {
			// Malformed frames are ignored without closing the connection.
			continue
		}
		if frame.Type == "ping" {
			if err := h.sendControl(conn, outboundControlFrame{Type: "pong"}); err != nil {
				h.log.Debug("failed to send pong", loggingpkg.LogFields{"client_id": clientID, "error": err})
				return
			}
		}
	}
}

func (h *Handler) sendControl(conn *wsConn, frame outboundControlFrame) error {
	payload, err := jsoncodec.MarshalString(frame)
	if err != nil {
		return err
	}
	return conn.WriteText(payload)
}

// wsConn serializes writes to one gorilla connection. The broadcast goroutine
// and the connection's keepalive replies both write through it.
type wsConn struct {
	mu           sync.Mutex
	socket       *gws.Conn
	writeTimeout time.Duration
}

func (c *wsConn) WriteText(payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.socket.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.socket.WriteMessage(gws.TextMessage, []byte(payload))
}

func (c *wsConn) Close() error {
	return c.socket.Close()
}
