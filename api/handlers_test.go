package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "market-chat/errors"
	"market-chat/repositories"
	"market-chat/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

// tokenMapVerifier resolves "token-<user>" style bearer tokens, standing in
// for the identity collaborator.
type tokenMapVerifier map[string]string

func (v tokenMapVerifier) Verify(_ context.Context, token string) (string, error) {
	if userID, ok := v[token]; ok {
		return userID, nil
	}
	return "", apperrors.ErrUnauthenticated
}

type apiFixture struct {
	server   *httptest.Server
	products repositories.ProductRepository
	service  *services.ConversationService
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	products := repositories.NewProductRepository(db)
	service := services.NewConversationService(
		log,
		products,
		repositories.NewConversationRepository(db, log),
		repositories.NewMessageRepository(db, log),
		repositories.NewReadReceiptRepository(db),
	)

	verifier := tokenMapVerifier{"token-u1": "u1", "token-u2": "u2", "token-u3": "u3"}
	server := httptest.NewServer(NewRouter(log, verifier, service, []string{"*"}))
	t.Cleanup(server.Close)

	return &apiFixture{server: server, products: products, service: service}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	request, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	response, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	t.Cleanup(func() { _ = response.Body.Close() })
	return response
}

func (f *apiFixture) seedProduct(t *testing.T, id, sellerID string) {
	t.Helper()
	require.NoError(t, f.products.Put(repositories.DiskProduct{
		ID:        id,
		SellerID:  sellerID,
		Title:     "reading lamp",
		CreatedAt: time.Now().UTC(),
	}))
}

func Test_API_Requires_Bearer_Token(t *testing.T) {
	req := require.New(t)
	fixture := newAPIFixture(t)

	response := fixture.do(t, http.MethodGet, "/conversations", "", nil)
	req.Equal(http.StatusUnauthorized, response.StatusCode)

	response = fixture.do(t, http.MethodGet, "/conversations", "token-unknown", nil)
	req.Equal(http.StatusUnauthorized, response.StatusCode)
}

func Test_API_Start_Conversation(t *testing.T) {
	req := require.New(t)
	fixture := newAPIFixture(t)
	fixture.seedProduct(t, "p1", "u2")

	response := fixture.do(t, http.MethodPost, "/conversations", "token-u1",
		map[string]string{"productId": "p1", "sellerId": "u2"})
	req.Equal(http.StatusOK, response.StatusCode)

	var conversation struct {
		ID             string `json:"id"`
		ParticipantAID string `json:"participantAId"`
		ParticipantBID string `json:"participantBId"`
	}
	req.NoError(json.NewDecoder(response.Body).Decode(&conversation))
	req.NotEmpty(conversation.ID)
	req.Equal("u1", conversation.ParticipantAID)
	req.Equal("u2", conversation.ParticipantBID)
}

func Test_API_Start_Conversation_Validation(t *testing.T) {
	req := require.New(t)
	fixture := newAPIFixture(t)

	response := fixture.do(t, http.MethodPost, "/conversations", "token-u1",
		map[string]string{"productId": "p1"})
	req.Equal(http.StatusBadRequest, response.StatusCode)
}

func Test_API_Error_Kind_Translation(t *testing.T) {
	req := require.New(t)
	fixture := newAPIFixture(t)
	fixture.seedProduct(t, "p1", "u2")

	// NotFound: unknown product.
	response := fixture.do(t, http.MethodPost, "/conversations", "token-u1",
		map[string]string{"productId": "ghost", "sellerId": "u2"})
	req.Equal(http.StatusNotFound, response.StatusCode)

	// BadRequest: seller is not the owner.
	response = fixture.do(t, http.MethodPost, "/conversations", "token-u1",
		map[string]string{"productId": "p1", "sellerId": "u3"})
	req.Equal(http.StatusBadRequest, response.StatusCode)

	// Forbidden: outsider reads someone else's thread.
	conversation, err := fixture.service.GetOrCreate(context.Background(), "p1", "u1", "u2")
	req.NoError(err)
	response = fixture.do(t, http.MethodGet, fmt.Sprintf("/conversations/%s/messages", conversation.ID), "token-u3", nil)
	req.Equal(http.StatusForbidden, response.StatusCode)

	// NotFound: unknown conversation.
	response = fixture.do(t, http.MethodGet, "/conversations/ghost/messages", "token-u1", nil)
	req.Equal(http.StatusNotFound, response.StatusCode)
}

func Test_API_List_And_Messages(t *testing.T) {
	req := require.New(t)
	fixture := newAPIFixture(t)
	fixture.seedProduct(t, "p1", "u2")

	conversation, err := fixture.service.GetOrCreate(context.Background(), "p1", "u1", "u2")
	req.NoError(err)
	_, _, err = fixture.service.Send(context.Background(), conversation.ID, "u1", "hello")
	req.NoError(err)

	response := fixture.do(t, http.MethodGet, "/conversations", "token-u2", nil)
	req.Equal(http.StatusOK, response.StatusCode)
	var summaries []struct {
		ID          string `json:"id"`
		LastMessage *struct {
			Content string `json:"content"`
		} `json:"lastMessage"`
	}
	req.NoError(json.NewDecoder(response.Body).Decode(&summaries))
	req.Len(summaries, 1)
	req.Equal(conversation.ID, summaries[0].ID)
	req.NotNil(summaries[0].LastMessage)
	req.Equal("hello", summaries[0].LastMessage.Content)

	response = fixture.do(t, http.MethodGet, fmt.Sprintf("/conversations/%s/messages", conversation.ID), "token-u2", nil)
	req.Equal(http.StatusOK, response.StatusCode)
	var messages []struct {
		Content  string `json:"content"`
		SenderID string `json:"senderId"`
	}
	req.NoError(json.NewDecoder(response.Body).Decode(&messages))
	req.Len(messages, 1)
	req.Equal("hello", messages[0].Content)
	req.Equal("u1", messages[0].SenderID)
}

func Test_API_MarkRead(t *testing.T) {
	req := require.New(t)
	fixture := newAPIFixture(t)
	fixture.seedProduct(t, "p1", "u2")

	conversation, err := fixture.service.GetOrCreate(context.Background(), "p1", "u1", "u2")
	req.NoError(err)
	message, _, err := fixture.service.Send(context.Background(), conversation.ID, "u1", "hello")
	req.NoError(err)

	// A future seenAt comes back clamped to the latest message timestamp.
	farFuture := message.CreatedAt.Add(48 * time.Hour).Format(time.RFC3339Nano)
	response := fixture.do(t, http.MethodPost, fmt.Sprintf("/conversations/%s/read", conversation.ID), "token-u2",
		map[string]string{"seenAt": farFuture})
	req.Equal(http.StatusOK, response.StatusCode)

	var result struct {
		LastReadAt time.Time `json:"lastReadAt"`
	}
	req.NoError(json.NewDecoder(response.Body).Decode(&result))
	req.True(result.LastReadAt.Equal(message.CreatedAt))

	// Unparsable timestamps are a BadRequest.
	response = fixture.do(t, http.MethodPost, fmt.Sprintf("/conversations/%s/read", conversation.ID), "token-u2",
		map[string]string{"seenAt": "yesterday-ish"})
	req.Equal(http.StatusBadRequest, response.StatusCode)
}
