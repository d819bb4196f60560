// Package agents talks to the on-demand.io chat API: every agent call is a
// two-step remote session protocol (create session, then submit the query
// against it), authenticated with a static apikey header.
package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/shivamkumar9811/NoteRex/internal/config"
	apperrors "github.com/shivamkumar9811/NoteRex/internal/errors"
)

type Client struct {
	apiKey         string
	baseURL        string
	endpointID     string
	sessionTimeout time.Duration
	queryTimeout   time.Duration
	httpClient     *http.Client
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		apiKey:         cfg.OnDemandAPIKey,
		baseURL:        cfg.OnDemandAPIURL,
		endpointID:     cfg.OnDemandEndpointID,
		sessionTimeout: cfg.SessionTimeout,
		queryTimeout:   cfg.QueryTimeout,
		httpClient:     &http.Client{},
	}
}

// CreateSession obtains a fresh chat session handle. The remote requires
// session ids minted through this endpoint; custom ids are rejected.
func (c *Client) CreateSession(ctx context.Context, externalUserID string) (string, error) {
	if externalUserID == "" {
		externalUserID = fmt.Sprintf("user_%d", time.Now().UnixMilli())
	}

	body, err := json.Marshal(map[string]string{"externalUserId": externalUserID})
	if err != nil {
		return "", fmt.Errorf("encode session request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.sessionTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/v1/sessions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create session request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransport(err)
	}
	defer resp.Body.Close()

	raw, status, header := readResponse(resp)
	if status < 200 || status >= 300 {
		return "", classifyStatus(status, raw, header)
	}

	sessionID := extractSessionID(raw)
	if sessionID == "" {
		return "", apperrors.NewServerError(status, "session id not found in session creation response")
	}

	return sessionID, nil
}

// SubmitQuery runs one stage's instruction against an open session and
// returns the answer text. This call does the actual AI work, so it gets a
// longer timeout than session creation.
func (c *Client) SubmitQuery(ctx context.Context, sessionID, query string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"endpointId":   c.endpointID,
		"query":        query,
		"responseMode": "sync",
	})
	if err != nil {
		return "", fmt.Errorf("encode query request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/chat/v1/sessions/%s/query", c.baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create query request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransport(err)
	}
	defer resp.Body.Close()

	raw, status, header := readResponse(resp)
	if status < 200 || status >= 300 {
		return "", classifyStatus(status, raw, header)
	}

	return extractAnswer(raw), nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	// The remote authenticates via a static apikey header, not a bearer token.
	req.Header.Set("apikey", c.apiKey)
}

func readResponse(resp *http.Response) ([]byte, int, http.Header) {
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return buf.Bytes(), resp.StatusCode, resp.Header
}

// classifyTransport splits a failed round trip into a connect-phase timeout
// and a response-phase one, so error messages can be specific.
func classifyTransport(err error) error {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return apperrors.NewConnectTimeout(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.NewRequestTimeout(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewRequestTimeout(err)
	}

	return apperrors.NewServerError(500, "network error: could not reach the agent service")
}

// classifyStatus maps the remote's HTTP status codes onto the typed failure
// taxonomy. 500 and 503 differ in message only, not in handling.
func classifyStatus(status int, body []byte, header http.Header) error {
	msg := remoteMessage(body)

	switch {
	case status == http.StatusBadRequest:
		return apperrors.NewBadRequest(msg)
	case status == http.StatusUnauthorized:
		return apperrors.NewUnauthorized(msg)
	case status == http.StatusForbidden:
		return apperrors.NewForbidden(msg)
	case status == http.StatusNotFound:
		return apperrors.NewNotFound(msg)
	case status == http.StatusTooManyRequests:
		return apperrors.NewRateLimited(msg, header.Get("Retry-After"))
	case status >= 400 && status < 500:
		return apperrors.NewClientError(status, msg)
	default:
		return apperrors.NewServerError(status, msg)
	}
}

// remoteMessage pulls a short human message out of an error body; raw bodies
// never propagate to callers.
func remoteMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	return ""
}

func extractSessionID(raw []byte) string {
	var parsed struct {
		Data struct {
			SessionID string `json:"sessionId"`
			ID        string `json:"id"`
		} `json:"data"`
		SessionID string `json:"sessionId"`
		ID        string `json:"id"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return ""
	}
	for _, candidate := range []string{parsed.Data.SessionID, parsed.Data.ID, parsed.SessionID, parsed.ID} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

func extractAnswer(raw []byte) string {
	var parsed struct {
		Data struct {
			Answer string `json:"answer"`
		} `json:"data"`
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return ""
	}
	if parsed.Data.Answer != "" {
		return parsed.Data.Answer
	}
	return parsed.Answer
}
