package gateway

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "market-chat/errors"

	"github.com/stretchr/testify/require"
)

type stubVerifier struct {
	userID string
	err    error
}

func (s stubVerifier) Verify(context.Context, string) (string, error) {
	return s.userID, s.err
}

func newUpgradeServer(t *testing.T, verifier stubVerifier) (*httptest.Server, *Registry) {
	t.Helper()
	log := slog.Default()
	registry := NewRegistry()
	router := NewRouter(log, registry, NewFanout(log, registry), &fakeConversationService{})
	handler := NewUpgradeHandler(log, "/ws/chat", verifier, registry, router)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, registry
}

// RFC 6455 sample handshake vector.
func Test_ComputeAccept_Known_Vector(t *testing.T) {
	require.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", computeAccept("dGhlIHNhbXBsZSBub25jZQ=="))
}

func Test_Upgrade_Missing_Token_Is_401(t *testing.T) {
	req := require.New(t)
	server, registry := newUpgradeServer(t, stubVerifier{userID: "u1"})

	resp, err := http.Get(server.URL + "/ws/chat")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	req.Zero(registry.Len())
}

func Test_Upgrade_Invalid_Token_Is_401(t *testing.T) {
	req := require.New(t)
	server, registry := newUpgradeServer(t, stubVerifier{err: apperrors.ErrUnauthenticated})

	resp, err := http.Get(server.URL + "/ws/chat?token=bad")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	req.Zero(registry.Len())
}

func Test_Upgrade_Wrong_Path_Is_Closed_Without_Reply(t *testing.T) {
	req := require.New(t)
	server, _ := newUpgradeServer(t, stubVerifier{userID: "u1"})

	conn, err := net.Dial("tcp", strings.TrimPrefix(server.URL, "http://"))
	req.NoError(err)
	defer conn.Close()

	request := "GET /elsewhere?token=abc HTTP/1.1\r\nHost: gateway\r\n\r\n"
	_, err = conn.Write([]byte(request))
	req.NoError(err)

	req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	req.Error(err, "the socket must be closed with no reply")
}

func Test_Upgrade_Wrong_Path_Without_Hijacker_Sends_No_Reply(t *testing.T) {
	req := require.New(t)
	log := slog.Default()
	registry := NewRegistry()
	router := NewRouter(log, registry, NewFanout(log, registry), &fakeConversationService{})
	handler := NewUpgradeHandler(log, "/ws/chat", stubVerifier{userID: "u1"}, registry, router)

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/elsewhere?token=abc", nil)
	req.PanicsWithValue(http.ErrAbortHandler, func() { handler.ServeHTTP(recorder, request) })
	req.Empty(recorder.Body.String())
}

// The chat endpoint is a path prefix: sub-paths upgrade the same way as the
// exact path.
func Test_Upgrade_Accepts_Sub_Paths(t *testing.T) {
	req := require.New(t)
	server, registry := newUpgradeServer(t, stubVerifier{userID: "u1"})

	resp, err := http.Get(server.URL + "/ws/chat/anything")
	req.NoError(err)
	defer resp.Body.Close()
	// No token on a matching sub-path: the prefix check passed and auth ran.
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
	req.Zero(registry.Len())
}

func Test_Upgrade_Handshake_And_Connected_Event(t *testing.T) {
	req := require.New(t)
	server, registry := newUpgradeServer(t, stubVerifier{userID: "u1"})

	conn, err := net.Dial("tcp", strings.TrimPrefix(server.URL, "http://"))
	req.NoError(err)
	defer conn.Close()

	request := fmt.Sprintf(
		"GET /ws/chat?token=valid HTTP/1.1\r\n"+
			"Host: gateway\r\n"+
			"Upgrade: websocket\r\n"+
			"Connection: Upgrade\r\n"+
			"Sec-WebSocket-Key: %s\r\n"+
			"Sec-WebSocket-Version: 13\r\n\r\n",
		"dGhlIHNhbXBsZSBub25jZQ==",
	)
	_, err = conn.Write([]byte(request))
	req.NoError(err)

	req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	reader := bufio.NewReader(conn)

	status, err := reader.ReadString('\n')
	req.NoError(err)
	req.Contains(status, "101 Switching Protocols")

	var acceptHeader string
	for {
		line, err := reader.ReadString('\n')
		req.NoError(err)
		if line == "\r\n" {
			break
		}
		if strings.HasPrefix(line, "Sec-WebSocket-Accept:") {
			acceptHeader = strings.TrimSpace(strings.TrimPrefix(line, "Sec-WebSocket-Accept:"))
		}
	}
	req.Equal("s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", acceptHeader)

	// First application event announces the bound identity.
	var buf []byte
	chunk := make([]byte, 1024)
	for {
		opcode, payload, consumed := decodeServerFrame(t, buf)
		if consumed > 0 {
			req.Equal(OpcodeText, opcode)
			req.JSONEq(`{"type":"connected","payload":{"userId":"u1"}}`, string(payload))
			break
		}
		n, err := reader.Read(chunk)
		req.NoError(err)
		buf = append(buf, chunk[:n]...)
	}

	req.Eventually(func() bool { return registry.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
}
