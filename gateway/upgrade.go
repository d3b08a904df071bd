package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"market-chat/auth"
)

// UpgradeHandler intercepts HTTP upgrade requests on the chat endpoint,
// authenticates the caller and performs the protocol switch. Browser
// WebSocket clients cannot set arbitrary headers, so the bearer token is
// read from the query string.
type UpgradeHandler struct {
	log        *slog.Logger
	pathPrefix string
	verifier   auth.Verifier
	registry   *Registry
	router     *Router
}

func NewUpgradeHandler(log *slog.Logger, pathPrefix string, verifier auth.Verifier, registry *Registry, router *Router) *UpgradeHandler {
	return &UpgradeHandler{
		log:        log,
		pathPrefix: pathPrefix,
		verifier:   verifier,
		registry:   registry,
		router:     router,
	}
}

func (h *UpgradeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Anything outside the chat endpoint is closed without a reply.
	if !strings.HasPrefix(r.URL.Path, h.pathPrefix) {
		h.closeSilently(w)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	userID, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		h.log.Debug("Upgrade rejected", "error", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	clientKey, err := validateUpgrade(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	sock, rw, err := hijacker.Hijack()
	if err != nil {
		h.log.Error("Hijack failed", "error", err)
		return
	}

	response := fmt.Sprintf(
		"HTTP/1.1 101 Switching Protocols\r\n"+
			"Upgrade: websocket\r\n"+
			"Connection: Upgrade\r\n"+
			"Sec-WebSocket-Accept: %s\r\n\r\n",
		computeAccept(clientKey),
	)
	if _, err = sock.Write([]byte(response)); err != nil {
		_ = sock.Close()
		return
	}

	conn := NewConn(userID, sock)
	h.registry.Add(conn)
	h.log.Info("Connection opened", "user", userID, "remote", sock.RemoteAddr())

	if err = conn.WriteEvent(Event{Type: EventConnected, Payload: connectedPayload{UserID: userID}}); err != nil {
		conn.Close()
		h.registry.Remove(conn)
		return
	}

	// Bytes the HTTP layer buffered past the handshake belong to the frame
	// stream; hand them to the read loop.
	var initial []byte
	if buffered := rw.Reader.Buffered(); buffered > 0 {
		initial, _ = rw.Reader.Peek(buffered)
	}
	go h.router.Serve(context.Background(), conn, initial)
}

// closeSilently drops the connection without writing a response line.
func (h *UpgradeHandler) closeSilently(w http.ResponseWriter) {
	if hijacker, ok := w.(http.Hijacker); ok {
		if sock, _, err := hijacker.Hijack(); err == nil {
			_ = sock.Close()
			return
		}
	}
	panic(http.ErrAbortHandler)
}
