package agents

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/shivamkumar9811/NoteRex/internal/errors"
)

func testClient(baseURL string) *Client {
	return &Client{
		apiKey:         "test-key",
		baseURL:        baseURL,
		endpointID:     "predefined-openai-gpt4.1-nano",
		sessionTimeout: 5 * time.Second,
		queryTimeout:   5 * time.Second,
		httpClient:     &http.Client{},
	}
}

func TestCreateSessionAndSubmitQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("apikey"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		switch r.URL.Path {
		case "/chat/v1/sessions":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "user-42", body["externalUserId"])

			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]string{"id": "sess-123"},
			})
		case "/chat/v1/sessions/sess-123/query":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "predefined-openai-gpt4.1-nano", body["endpointId"])
			assert.Equal(t, "sync", body["responseMode"])
			assert.Equal(t, "summarize this", body["query"])

			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]string{"answer": "the summary"},
			})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := testClient(srv.URL)

	sessionID, err := c.CreateSession(context.Background(), "user-42")
	require.NoError(t, err)
	assert.Equal(t, "sess-123", sessionID)

	answer, err := c.SubmitQuery(context.Background(), sessionID, "summarize this")
	require.NoError(t, err)
	assert.Equal(t, "the summary", answer)
}

func TestCreateSessionDefaultsExternalUserID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotEmpty(t, body["externalUserId"])

		_ = json.NewEncoder(w).Encode(map[string]string{"sessionId": "top-level"})
	}))
	defer srv.Close()

	sessionID, err := testClient(srv.URL).CreateSession(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "top-level", sessionID)
}

func TestSubmitQueryAnswerShapes(t *testing.T) {
	for name, body := range map[string]string{
		"nested":   `{"data":{"answer":"hi"}}`,
		"topLevel": `{"answer":"hi"}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			answer, err := testClient(srv.URL).SubmitQuery(context.Background(), "s1", "q")
			require.NoError(t, err)
			assert.Equal(t, "hi", answer)
		})
	}
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		status     int
		retryAfter string
		wantCode   apperrors.ErrorCode
	}{
		{status: http.StatusBadRequest, wantCode: apperrors.ErrBadRequest},
		{status: http.StatusUnauthorized, wantCode: apperrors.ErrUnauthorized},
		{status: http.StatusForbidden, wantCode: apperrors.ErrForbidden},
		{status: http.StatusNotFound, wantCode: apperrors.ErrNotFound},
		{status: http.StatusTooManyRequests, retryAfter: "30", wantCode: apperrors.ErrRateLimited},
		{status: http.StatusConflict, wantCode: "CLIENT_ERROR_409"},
		{status: http.StatusInternalServerError, wantCode: "SERVER_ERROR_500"},
		{status: http.StatusServiceUnavailable, wantCode: "SERVER_ERROR_503"},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tc.retryAfter != "" {
				w.Header().Set("Retry-After", tc.retryAfter)
			}
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"message":"remote says no"}`))
		}))

		_, err := testClient(srv.URL).CreateSession(context.Background(), "u")
		srv.Close()

		require.Error(t, err, "status %d", tc.status)
		assert.True(t, apperrors.Is(err, tc.wantCode), "status %d: got %v", tc.status, err)

		if tc.status == http.StatusTooManyRequests {
			var pErr *apperrors.PipelineError
			require.ErrorAs(t, err, &pErr)
			assert.Equal(t, "30", pErr.Details["retry_after"])
		}
	}
}

func TestSessionIDMissingIsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).CreateSession(context.Background(), "u")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, "SERVER_ERROR_200"))
}
