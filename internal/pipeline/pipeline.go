// Package pipeline drives the six-stage agent chain that turns heterogeneous
// input (text, file upload, video URL) into a normalized, persisted study
// note.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shivamkumar9811/NoteRex/internal/domain"
	apperrors "github.com/shivamkumar9811/NoteRex/internal/errors"
	"github.com/shivamkumar9811/NoteRex/internal/services"
)

const notesPromptTemplate = `Generate structured study notes from the following content. Return ONLY valid JSON, no markdown or explanations.

{
  "summaryFormats": {
    "bulletNotes": ["bullet point 1", "bullet point 2"],
    "topicWise": ["topic 1", "topic 2"],
    "keyTakeaways": ["takeaway 1", "takeaway 2"]
  },
  "revisionQA": [
    { "question": "Question 1", "answer": "Answer 1" },
    { "question": "Question 2", "answer": "Answer 2" }
  ]
}

Content to analyze:
%s`

const maxStageContentChars = 8000

// AgentClient is the two-step remote session protocol each stage runs over.
type AgentClient interface {
	CreateSession(ctx context.Context, externalUserID string) (string, error)
	SubmitQuery(ctx context.Context, sessionID, query string) (string, error)
}

// VideoExtractor turns a video-hosting URL into transcribed text.
type VideoExtractor interface {
	Extract(ctx context.Context, url string) (services.ExtractedContent, error)
}

// DocumentExtractor turns document bytes into plain text.
type DocumentExtractor interface {
	ExtractText(data []byte) (string, error)
}

// NoteSaver persists a normalized note.
type NoteSaver interface {
	Save(ctx context.Context, note domain.Note) (domain.Note, error)
}

// ProgressSink receives a stage-transition event on entry to each stage.
type ProgressSink interface {
	StageStarted(stage int, label string)
}

type nopSink struct{}

func (nopSink) StageStarted(int, string) {}

// Result is the tagged outcome of one pipeline run. Failures carry a short
// human message and a stable code so callers can render "transcription
// failed" vs "rate limited" without inspecting anything deeper.
type Result struct {
	Success    bool         `json:"success"`
	Data       *domain.Note `json:"data,omitempty"`
	NoteID     string       `json:"noteId,omitempty"`
	SessionID  string       `json:"sessionId"`
	Warning    string       `json:"warning,omitempty"`
	Error      string       `json:"error,omitempty"`
	ErrorCode  string       `json:"error_code,omitempty"`
	RetryAfter string       `json:"retry_after,omitempty"`
}

type Orchestrator struct {
	agents     AgentClient
	video      VideoExtractor
	docs       DocumentExtractor
	store      NoteSaver
	normalizer *Normalizer
	sink       ProgressSink
}

// NewOrchestrator wires the pipeline's collaborators. A nil sink means the
// caller does not care about progress.
func NewOrchestrator(agents AgentClient, video VideoExtractor, docs DocumentExtractor, store NoteSaver, sink ProgressSink) *Orchestrator {
	if sink == nil {
		sink = nopSink{}
	}
	return &Orchestrator{
		agents:     agents,
		video:      video,
		docs:       docs,
		store:      store,
		normalizer: NewNormalizer(),
		sink:       sink,
	}
}

// Run executes the full chain for one payload. Any stage failure aborts the
// run with no partial persistence. A store write failure after a successful
// run does not discard the note: it is returned with a warning instead.
func (o *Orchestrator) Run(ctx context.Context, p Payload) Result {
	p.SessionID = newRunID()

	// Downstream stages only understand text, so URL and PDF payloads are
	// extracted and transcribed before any remote stage sees them.
	if err := o.ensureExtracted(ctx, &p); err != nil {
		return failure(p.SessionID, err)
	}

	for stage := StageValidate; stage <= StageSave; stage++ {
		o.sink.StageStarted(int(stage), stage.Label())

		sessionID, err := o.agents.CreateSession(ctx, p.UserID)
		if err != nil {
			return failure(p.SessionID, err)
		}

		answer, err := o.agents.SubmitQuery(ctx, sessionID, buildQuery(stage, p))
		if err != nil {
			return failure(p.SessionID, err)
		}

		p.apply(stage, answer)
	}

	note, err := o.normalizer.Normalize(p)
	if err != nil {
		return failure(p.SessionID, err)
	}

	saved, err := o.store.Save(ctx, note)
	if err != nil {
		return Result{
			Success:   true,
			Data:      &note,
			SessionID: p.SessionID,
			Warning:   "note processed but save to database failed",
		}
	}

	return Result{
		Success:   true,
		Data:      &saved,
		NoteID:    saved.ID,
		SessionID: p.SessionID,
	}
}

// ensureExtracted performs the eager extraction rule: a YouTube/video URL or
// a PDF byte payload with no transcript yet is run through the matching
// adapter, and an adapter failure aborts the whole orchestration.
func (o *Orchestrator) ensureExtracted(ctx context.Context, p *Payload) error {
	if p.Transcript != "" || p.TextContent != "" {
		return nil
	}

	if (p.InputType == domain.SourceYouTube || p.InputType == domain.SourceVideo) &&
		(p.YouTubeURL != "" || p.SourceURL != "") {
		url := p.YouTubeURL
		if url == "" {
			url = p.SourceURL
		}

		content, err := o.video.Extract(ctx, url)
		if err != nil {
			return err
		}
		if strings.TrimSpace(content.Text) == "" {
			return apperrors.NewSourceExtractionFailed(errors.New("no transcript content generated"))
		}

		p.Transcript = content.Text
		p.TextContent = content.Text
		if p.Title == "" {
			p.Title = content.SourceTitle
		}
		p.VideoID = content.VideoID
		p.YouTubeURL = url
		return nil
	}

	if p.InputType == domain.SourcePDF && len(p.FileData) > 0 {
		text, err := o.docs.ExtractText(p.FileData)
		if err != nil {
			return err
		}
		p.Transcript = text
		p.TextContent = text
	}

	return nil
}

// buildQuery synthesizes the stage's instruction. The notes-generation stage
// gets the strict JSON envelope prompt because its output feeds persisted
// structure.
func buildQuery(stage Stage, p Payload) string {
	content := p.Transcript
	if content == "" {
		content = p.TextContent
	}

	if stage == StageGenerate && content != "" {
		if len(content) > maxStageContentChars {
			content = content[:maxStageContentChars]
		}
		return fmt.Sprintf(notesPromptTemplate, content)
	}

	if p.Query != "" {
		return p.Query
	}
	if content != "" {
		return content
	}
	if p.SourceURL != "" {
		return fmt.Sprintf("Process this %s: %s", inputTypeOr(p, "content"), p.SourceURL)
	}
	if len(p.FileData) > 0 && p.InputType != domain.SourcePDF {
		return fmt.Sprintf("Process this %s: %s", inputTypeOr(p, "file"), fileNameOr(p))
	}

	summary, _ := json.Marshal(map[string]string{
		"inputType": p.InputType,
		"fileName":  p.FileName,
		"sessionId": p.SessionID,
	})
	return string(summary)
}

func inputTypeOr(p Payload, fallback string) string {
	if p.InputType != "" {
		return p.InputType
	}
	return fallback
}

func fileNameOr(p Payload) string {
	if p.FileName != "" {
		return p.FileName
	}
	return "file"
}

func newRunID() string {
	return fmt.Sprintf("session_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

func failure(sessionID string, err error) Result {
	pErr := apperrors.From(err)
	result := Result{
		SessionID: sessionID,
		Error:     pErr.Message,
		ErrorCode: string(pErr.Code),
	}
	if retryAfter, ok := pErr.Details["retry_after"].(string); ok {
		result.RetryAfter = retryAfter
	}
	return result
}
