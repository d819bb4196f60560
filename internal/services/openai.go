package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/shivamkumar9811/NoteRex/internal/config"
	"github.com/shivamkumar9811/NoteRex/internal/domain"
	apperrors "github.com/shivamkumar9811/NoteRex/internal/errors"
)

const (
	defaultOpenAIBaseURL  = "https://api.openai.com"
	transcriptionPath     = "/v1/audio/transcriptions"
	summaryPath           = "/v1/chat/completions"
	requestTimeout        = 10 * time.Minute
	maxTranscribeAttempts = 3
	maxSummaryInputChars  = 8000
)

const summarySystemPrompt = "You are a study assistant. Respond with valid JSON only."

const summaryPromptTemplate = `Analyze the following text and provide 4 types of summaries. Return ONLY valid JSON (no markdown):
{
  "bulletPoints": "Bullet-point summary",
  "topics": "Topic-wise breakdown",
  "keyTakeaways": "Key insights",
  "qa": [{"question":"Q1","answer":"A1"}]
}

Text:
%s`

// SummaryBundle is the synthesizer's output: the three persisted summary
// shapes plus the revision Q&A, which the caller may surface but must not
// persist.
type SummaryBundle struct {
	Formats    domain.SummaryFormats
	RevisionQA []domain.QAPair
}

type OpenAIService struct {
	apiKey          string
	baseURL         string
	reqTimeout      time.Duration
	retryBaseDelay  time.Duration
	transcribeModel string
	summaryModel    string
	httpClient      *http.Client
}

func NewOpenAIService(cfg config.Config) *OpenAIService {
	return &OpenAIService{
		apiKey:          cfg.OpenAIAPIKey,
		baseURL:         defaultOpenAIBaseURL,
		reqTimeout:      requestTimeout,
		retryBaseDelay:  time.Second,
		transcribeModel: cfg.OpenAIModelTranscribe,
		summaryModel:    cfg.OpenAIModelSummary,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// Transcribe converts audio bytes to text. Transient connection failures are
// retried up to three times with 2^attempt seconds of backoff; all other
// failures, and exhausted retries, surface as TRANSCRIPTION_FAILED with the
// last underlying cause. No partial output is ever returned.
func (s *OpenAIService) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if err := s.ensureAPIKey(); err != nil {
		return "", apperrors.NewTranscriptionFailed(err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxTranscribeAttempts; attempt++ {
		text, err := s.transcribeOnce(ctx, audio, filename)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if attempt == maxTranscribeAttempts || !isRetryableTransport(err) {
			break
		}

		select {
		case <-time.After(time.Duration(1<<attempt) * s.retryBaseDelay):
		case <-ctx.Done():
			return "", apperrors.NewTranscriptionFailed(ctx.Err())
		}
	}

	return "", apperrors.NewTranscriptionFailed(lastErr)
}

func (s *OpenAIService) transcribeOnce(ctx context.Context, audio []byte, filename string) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create multipart file: %w", err)
	}

	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("copy audio data: %w", err)
	}

	if err := writer.WriteField("model", s.transcribeModel); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}

	if err := writer.WriteField("language", "en"); err != nil {
		return "", fmt.Errorf("write language field: %w", err)
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+transcriptionPath, body)
	if err != nil {
		return "", fmt.Errorf("create transcription request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", s.decodeAPIError(resp)
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}

	return strings.TrimSpace(payload.Text), nil
}

// isRetryableTransport matches the narrow class of transient streaming
// failures worth retrying: connection resets and generic connection errors.
func isRetryableTransport(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "ECONNRESET") ||
		strings.Contains(msg, "Connection error") ||
		strings.Contains(msg, "connection error")
}

// Summarize sends text to the chat model and parses the four-field summary
// JSON. Malformed model output never fails: it degrades to a structure where
// every field carries the raw text. Network errors are not retried here.
func (s *OpenAIService) Summarize(ctx context.Context, text string) (SummaryBundle, error) {
	if err := s.ensureAPIKey(); err != nil {
		return SummaryBundle{}, err
	}

	if len(text) > maxSummaryInputChars {
		text = text[:maxSummaryInputChars]
	}

	raw, err := s.chatCompletion(ctx, summarySystemPrompt, fmt.Sprintf(summaryPromptTemplate, text))
	if err != nil {
		return SummaryBundle{}, err
	}

	return parseSummaryResponse(raw), nil
}

// Chat runs a single chat completion with the given system instruction.
func (s *OpenAIService) Chat(ctx context.Context, system, user string) (string, error) {
	if err := s.ensureAPIKey(); err != nil {
		return "", err
	}
	return s.chatCompletion(ctx, system, user)
}

func (s *OpenAIService) chatCompletion(ctx context.Context, system, user string) (string, error) {
	payload := map[string]any{
		"model": s.summaryModel,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"temperature": 0.7,
		"max_tokens":  2000,
	}

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return "", fmt.Errorf("encode chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+summaryPath, buf)
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", s.decodeAPIError(resp)
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", errors.New("no completion returned")
	}

	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

// parseSummaryResponse turns raw model output into a SummaryBundle. Markdown
// code fences are stripped before the strict parse; a parse failure degrades
// to all fields holding the raw text.
func parseSummaryResponse(raw string) SummaryBundle {
	raw = stripCodeFences(raw)

	var parsed struct {
		BulletPoints json.RawMessage `json:"bulletPoints"`
		Topics       json.RawMessage `json:"topics"`
		KeyTakeaways json.RawMessage `json:"keyTakeaways"`
		QA           json.RawMessage `json:"qa"`
	}

	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		lines := splitNonEmptyLines(raw)
		return SummaryBundle{
			Formats: domain.SummaryFormats{
				BulletNotes:  lines,
				TopicWise:    lines,
				KeyTakeaways: lines,
			},
		}
	}

	return SummaryBundle{
		Formats: domain.SummaryFormats{
			BulletNotes:  coerceStringList(parsed.BulletPoints),
			TopicWise:    coerceStringList(parsed.Topics),
			KeyTakeaways: coerceStringList(parsed.KeyTakeaways),
		},
		RevisionQA: coerceQAList(parsed.QA),
	}
}

func stripCodeFences(raw string) string {
	raw = strings.ReplaceAll(raw, "```json", "")
	raw = strings.ReplaceAll(raw, "```", "")
	return strings.TrimSpace(raw)
}

func splitNonEmptyLines(text string) []string {
	out := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// coerceStringList accepts an array of strings or a newline-joined string;
// anything else becomes empty.
func coerceStringList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}

	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil {
		out := []string{}
		for _, item := range arr {
			if strings.TrimSpace(item) != "" {
				out = append(out, item)
			}
		}
		return out
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return splitNonEmptyLines(s)
	}

	return []string{}
}

// coerceQAList accepts a Q&A array, or a JSON string wrapping one. Items
// under the legacy short keys "q"/"a" are accepted too.
func coerceQAList(raw json.RawMessage) []domain.QAPair {
	if len(raw) == 0 {
		return nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		raw = json.RawMessage(s)
	}

	var items []struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
		Q        string `json:"q"`
		A        string `json:"a"`
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	out := []domain.QAPair{}
	for _, item := range items {
		pair := domain.QAPair{Question: item.Question, Answer: item.Answer}
		if pair.Question == "" {
			pair.Question = item.Q
		}
		if pair.Answer == "" {
			pair.Answer = item.A
		}
		if pair.Question != "" {
			out = append(out, pair)
		}
	}
	return out
}

func (s *OpenAIService) do(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(req.Context(), s.reqTimeout)
	req = req.WithContext(ctx)

	resp, err := s.httpClient.Do(req)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}

	return resp, nil
}

func (s *OpenAIService) decodeAPIError(resp *http.Response) error {
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    any    `json:"code"`
		} `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)

	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("openai api error: status %d type %s message %s", resp.StatusCode, apiErr.Error.Type, apiErr.Error.Message)
	}

	return fmt.Errorf("openai api error: status %d", resp.StatusCode)
}

func (s *OpenAIService) ensureAPIKey() error {
	if strings.TrimSpace(s.apiKey) == "" {
		return errors.New("openai api key is not configured")
	}
	return nil
}
