package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivamkumar9811/NoteRex/internal/domain"
	apperrors "github.com/shivamkumar9811/NoteRex/internal/errors"
	"github.com/shivamkumar9811/NoteRex/internal/services"
)

// scriptedAgent answers every query in order and records what it was asked.
type scriptedAgent struct {
	answers  []string
	failAt   int // 1-based query index to fail on, 0 for never
	failWith error
	sessions int
	queries  []string
}

func (a *scriptedAgent) CreateSession(ctx context.Context, externalUserID string) (string, error) {
	a.sessions++
	return fmt.Sprintf("sess-%d", a.sessions), nil
}

func (a *scriptedAgent) SubmitQuery(ctx context.Context, sessionID, query string) (string, error) {
	a.queries = append(a.queries, query)
	if a.failAt > 0 && len(a.queries) == a.failAt {
		return "", a.failWith
	}
	idx := len(a.queries) - 1
	if idx < len(a.answers) {
		return a.answers[idx], nil
	}
	return "ok", nil
}

type stubVideo struct {
	content services.ExtractedContent
	err     error
	calls   int
}

func (s *stubVideo) Extract(ctx context.Context, url string) (services.ExtractedContent, error) {
	s.calls++
	return s.content, s.err
}

type stubDocs struct {
	text  string
	err   error
	calls int
}

func (s *stubDocs) ExtractText(data []byte) (string, error) {
	s.calls++
	return s.text, s.err
}

type recordingStore struct {
	saved []domain.Note
	err   error
}

func (s *recordingStore) Save(ctx context.Context, note domain.Note) (domain.Note, error) {
	if s.err != nil {
		return domain.Note{}, s.err
	}
	note.ID = "note-1"
	s.saved = append(s.saved, note)
	return note, nil
}

type recordingSink struct {
	stages []int
	labels []string
}

func (s *recordingSink) StageStarted(stage int, label string) {
	s.stages = append(s.stages, stage)
	s.labels = append(s.labels, label)
}

const notesAnswer = `{"summaryFormats":{"bulletNotes":["b1"],"topicWise":["t1"],"keyTakeaways":["k1"]},"revisionQA":[{"question":"Q","answer":"A"}]}`

func notesAtStageFive() []string {
	return []string{"validated", "extracted", "fused", "analyzed", notesAnswer, "saved"}
}

func TestRunTextInputEndToEnd(t *testing.T) {
	agent := &scriptedAgent{answers: notesAtStageFive()}
	store := &recordingStore{}
	sink := &recordingSink{}

	o := NewOrchestrator(agent, &stubVideo{}, &stubDocs{}, store, sink)
	result := o.Run(context.Background(), Payload{
		UserID:      "u1",
		InputType:   domain.SourceText,
		TextContent: "Mitochondria produce ATP.",
	})

	require.True(t, result.Success, "run failed: %s", result.Error)
	assert.Equal(t, "note-1", result.NoteID)
	assert.True(t, strings.HasPrefix(result.SessionID, "session_"))

	// One fresh remote session per stage, six stages total.
	assert.Equal(t, 6, agent.sessions)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, sink.stages)
	assert.Equal(t, []string{
		"Validating input…",
		"Extracting content…",
		"Processing extracted data…",
		"Validating processed data…",
		"Refining with notes & topics…",
		"Generating final output…",
	}, sink.labels)

	require.Len(t, store.saved, 1)
	note := store.saved[0]
	assert.Equal(t, "Mitochondria produce ATP.", note.Transcript)
	assert.Equal(t, domain.SourceText, note.SourceType)
	assert.Equal(t, []string{"b1"}, note.SummaryFormats.BulletNotes)
	assert.Empty(t, note.RevisionQA, "revision q&a is never persisted")

	// The notes-generation stage receives the structured prompt.
	assert.Contains(t, agent.queries[4], "summaryFormats")
	assert.Contains(t, agent.queries[4], "Mitochondria produce ATP.")
}

func TestRunExtractsVideoBeforeStages(t *testing.T) {
	agent := &scriptedAgent{answers: notesAtStageFive()}
	video := &stubVideo{content: services.ExtractedContent{
		Text:        "lecture transcript",
		SourceTitle: "Intro to Cells",
		VideoID:     "abc123",
		SourceURL:   "https://www.youtube.com/watch?v=abc123",
	}}
	store := &recordingStore{}

	o := NewOrchestrator(agent, video, &stubDocs{}, store, nil)
	result := o.Run(context.Background(), Payload{
		InputType:  domain.SourceYouTube,
		YouTubeURL: "https://www.youtube.com/watch?v=abc123",
	})

	require.True(t, result.Success, "run failed: %s", result.Error)
	assert.Equal(t, 1, video.calls)

	require.Len(t, store.saved, 1)
	note := store.saved[0]
	assert.Equal(t, "Intro to Cells", note.Title)
	assert.Equal(t, domain.SourceYouTube, note.SourceType)
	assert.Equal(t, "abc123", note.VideoID)
	assert.Equal(t, "lecture transcript", note.Transcript)
}

func TestRunAbortsOnExtractionFailureWithoutAgentCalls(t *testing.T) {
	agent := &scriptedAgent{}
	docs := &stubDocs{err: apperrors.NewExtractionFallback()}
	store := &recordingStore{}

	o := NewOrchestrator(agent, &stubVideo{}, docs, store, nil)
	result := o.Run(context.Background(), Payload{
		InputType: domain.SourcePDF,
		FileName:  "slides.pdf",
		FileData:  []byte("%PDF"),
	})

	assert.False(t, result.Success)
	assert.Equal(t, string(apperrors.ErrExtractionFallback), result.ErrorCode)
	assert.Zero(t, agent.sessions, "no remote session before extraction succeeds")
	assert.Empty(t, store.saved, "nothing is persisted on failure")
}

func TestRunAbortsOnEmptyVideoTranscript(t *testing.T) {
	agent := &scriptedAgent{}
	video := &stubVideo{content: services.ExtractedContent{Text: "   "}}

	o := NewOrchestrator(agent, video, &stubDocs{}, &recordingStore{}, nil)
	result := o.Run(context.Background(), Payload{
		InputType:  domain.SourceYouTube,
		YouTubeURL: "https://youtu.be/abc123",
	})

	assert.False(t, result.Success)
	assert.Equal(t, string(apperrors.ErrSourceExtractionFailed), result.ErrorCode)
	assert.Zero(t, agent.sessions)
}

func TestRunStopsAtFirstStageFailure(t *testing.T) {
	agent := &scriptedAgent{
		failAt:   1,
		failWith: apperrors.NewRateLimited("", "30"),
	}
	store := &recordingStore{}

	o := NewOrchestrator(agent, &stubVideo{}, &stubDocs{}, store, nil)
	result := o.Run(context.Background(), Payload{
		InputType:   domain.SourceText,
		TextContent: "content",
	})

	assert.False(t, result.Success)
	assert.Equal(t, string(apperrors.ErrRateLimited), result.ErrorCode)
	assert.Equal(t, "30", result.RetryAfter)
	assert.Len(t, agent.queries, 1, "no stage runs after a failure")
	assert.Empty(t, store.saved)
}

func TestRunSaveFailureDegradesToWarning(t *testing.T) {
	agent := &scriptedAgent{answers: notesAtStageFive()}
	store := &recordingStore{err: errors.New("disk full")}

	o := NewOrchestrator(agent, &stubVideo{}, &stubDocs{}, store, nil)
	result := o.Run(context.Background(), Payload{
		InputType:   domain.SourceText,
		TextContent: "content worth keeping",
	})

	assert.True(t, result.Success, "save failure must not discard the note")
	assert.Equal(t, "note processed but save to database failed", result.Warning)
	require.NotNil(t, result.Data)
	assert.Equal(t, "content worth keeping", result.Data.Transcript)
	assert.Empty(t, result.NoteID)
}

func TestBuildQueryFallbacks(t *testing.T) {
	p := Payload{InputType: domain.SourceYouTube, SourceURL: "https://youtu.be/x"}
	assert.Equal(t, "Process this youtube: https://youtu.be/x", buildQuery(StageValidate, p))

	p = Payload{Query: "explicit instruction", TextContent: "content"}
	assert.Equal(t, "explicit instruction", buildQuery(StageValidate, p))

	p = Payload{InputType: domain.SourceAudio, FileName: "clip.mp3", FileData: []byte("x")}
	assert.Equal(t, "Process this audio: clip.mp3", buildQuery(StageValidate, p))

	p = Payload{InputType: domain.SourceText, FileName: "notes.txt", SessionID: "s1"}
	q := buildQuery(StageValidate, p)
	assert.Contains(t, q, `"inputType":"text"`)
	assert.Contains(t, q, `"sessionId":"s1"`)
}

func TestBuildQueryTruncatesNotesContent(t *testing.T) {
	p := Payload{Transcript: strings.Repeat("a", 20000)}
	q := buildQuery(StageGenerate, p)
	assert.Less(t, len(q), 10000)
	assert.Contains(t, q, "summaryFormats")
}

func TestStageLabels(t *testing.T) {
	assert.Equal(t, "Validating input…", StageValidate.Label())
	assert.Equal(t, "Generating final output…", StageSave.Label())
	assert.Equal(t, "Processing…", Stage(0).Label())
	assert.Equal(t, "Processing…", Stage(99).Label())
}
