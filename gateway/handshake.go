package gateway

import (
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"strings"

	apperrors "market-chat/errors"
)

const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// computeAccept derives the Sec-WebSocket-Accept value from the client's
// handshake key, per RFC 6455.
func computeAccept(clientKey string) string {
	digest := sha1.Sum([]byte(clientKey + websocketGUID))
	return base64.StdEncoding.EncodeToString(digest[:])
}

// validateUpgrade checks the headers that make the request a WebSocket
// handshake and returns the client's key.
func validateUpgrade(r *http.Request) (string, error) {
	if !headerContainsToken(r.Header, "Connection", "Upgrade") ||
		!headerContainsToken(r.Header, "Upgrade", "websocket") {
		return "", apperrors.ErrUpgradeHeaders
	}
	key := r.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		return "", apperrors.ErrUpgradeHeaders
	}
	return key, nil
}

func headerContainsToken(h http.Header, name, token string) bool {
	for _, value := range h.Values(name) {
		for _, part := range strings.Split(value, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}
