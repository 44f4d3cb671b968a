package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultClientConfig("test-token")
	cfg.BaseURL = srv.URL
	return NewClient(cfg)
}

func TestClient_SendHTML(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		fmt.Fprint(w, `{"ok":true,"result":{"message_id":42,"chat":{"id":-100123,"type":"supergroup"},"date":1756700000}}`)
	})

	msg, err := client.SendHTML(context.Background(), -100123, "<b>Напоминание</b>")
	require.NoError(t, err)

	assert.Equal(t, int64(42), msg.MessageID)
	assert.Equal(t, int64(-100123), msg.Chat.ID)

	assert.Equal(t, "/bottest-token/sendMessage", gotPath)
	assert.Equal(t, "HTML", gotBody["parse_mode"])
	assert.Equal(t, true, gotBody["disable_web_page_preview"])
	assert.Equal(t, "<b>Напоминание</b>", gotBody["text"])
}

func TestClient_SendMessage_RateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 7","parameters":{"retry_after":7}}`)
	})

	_, err := client.SendMessage(context.Background(), SendMessageParams{ChatID: 1, Text: "hi"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 429, apiErr.Code)
	assert.Equal(t, 7, apiErr.RetryAfter)
	assert.True(t, IsRetryable(err))
}

func TestClient_SendMessage_ChatNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
	})

	_, err := client.SendMessage(context.Background(), SendMessageParams{ChatID: 1, Text: "hi"})
	require.Error(t, err)

	assert.True(t, IsChatNotFound(err))
	assert.False(t, IsRetryable(err))
}

func TestClient_GetMe(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottest-token/getMe", r.URL.Path)
		fmt.Fprint(w, `{"ok":true,"result":{"id":7,"is_bot":true,"username":"bilim_schedule_bot"}}`)
	})

	user, err := client.GetMe(context.Background())
	require.NoError(t, err)
	assert.True(t, user.IsBot)
	assert.Equal(t, "bilim_schedule_bot", user.Username)

	assert.True(t, client.IsHealthy(context.Background()))
	assert.NoError(t, client.HealthCheck(context.Background()))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", &APIError{Code: 429}, true},
		{"server error", &APIError{Code: 502}, true},
		{"bot blocked", &APIError{Code: 403, Description: "Forbidden: bot was blocked by the user"}, false},
		{"bad request", &APIError{Code: 400, Description: "Bad Request: message is too long"}, false},
		{"network timeout", errors.New("http request: dial tcp: i/o timeout"), true},
		{"connection refused", errors.New("http request: connection refused"), true},
		{"other", errors.New("marshal body: unsupported type"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsBotBlocked(t *testing.T) {
	assert.True(t, IsBotBlocked(&APIError{Code: 403, Description: "Forbidden"}))
	assert.True(t, IsBotBlocked(&APIError{Code: 400, Description: "bot was blocked by the user"}))
	assert.False(t, IsBotBlocked(&APIError{Code: 429, Description: "Too Many Requests"}))
	assert.False(t, IsBotBlocked(errors.New("plain error")))
}
