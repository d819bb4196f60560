package pipeline

import (
	"encoding/json"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/shivamkumar9811/NoteRex/internal/domain"
	apperrors "github.com/shivamkumar9811/NoteRex/internal/errors"
	"github.com/shivamkumar9811/NoteRex/internal/sanitize"
)

const titleMaxChars = 50

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*\\})\\s*```")

// Normalizer deterministically derives the persistable note from a run's
// accumulated payload.
type Normalizer struct {
	detector *sanitize.Detector
	now      func() time.Time
}

func NewNormalizer() *Normalizer {
	return &Normalizer{
		detector: sanitize.NewDetector(),
		now:      time.Now,
	}
}

// Normalize shapes the final note: source-type inference, title derivation,
// transcript sanitization and structured-summary extraction, in that order.
// Revision Q&A is never extracted here, by design.
func (n *Normalizer) Normalize(p Payload) (domain.Note, error) {
	sourceType := inferSourceType(p)
	title := n.deriveTitle(p)

	transcript, err := n.sanitizeTranscript(p, sourceType)
	if err != nil {
		return domain.Note{}, err
	}

	userID := p.UserID
	if userID == "" {
		userID = domain.AnonymousUser
	}

	return domain.Note{
		Title:          title,
		SourceType:     sourceType,
		Transcript:     transcript,
		SummaryFormats: n.extractSummaryFormats(p),
		VideoID:        p.VideoID,
		YouTubeURL:     p.YouTubeURL,
		UserID:         userID,
	}, nil
}

// inferSourceType prefers the declared type and otherwise requires explicit
// evidence before classifying as video content: a bare "youtube" declaration
// without a URL is re-inferred rather than trusted.
func inferSourceType(p Payload) string {
	if p.InputType != "" && p.InputType != domain.SourceYouTube {
		return p.InputType
	}
	if p.YouTubeURL != "" {
		return domain.SourceYouTube
	}
	if p.FileName != "" {
		switch strings.ToLower(strings.TrimPrefix(filepath.Ext(p.FileName), ".")) {
		case "pdf":
			return domain.SourcePDF
		case "mp4", "mov", "avi", "mkv":
			return domain.SourceVideo
		case "mp3", "wav", "aac", "m4a":
			return domain.SourceAudio
		default:
			return domain.SourceText
		}
	}
	return domain.SourceText
}

// deriveTitle never returns a literal placeholder. Extracted video titles
// arrive in p.Title during eager extraction, so the explicit-title check
// covers them.
func (n *Normalizer) deriveTitle(p Payload) string {
	if t := strings.TrimSpace(p.Title); t != "" && t != "Untitled Note" {
		return t
	}
	if p.FileName != "" {
		return strings.TrimSuffix(p.FileName, filepath.Ext(p.FileName))
	}
	if p.TextContent != "" {
		firstLine := strings.TrimSpace(strings.SplitN(p.TextContent, "\n", 2)[0])
		if len(firstLine) > titleMaxChars {
			firstLine = firstLine[:titleMaxChars]
		}
		if firstLine != "" {
			return firstLine
		}
		return "Generated Note"
	}
	return "Note " + n.now().Format("1/2/2006")
}

// sanitizeTranscript strips residual refusal fragments out of non-YouTube
// transcripts, then discards any transcript that still matches a refusal
// pattern, and hard-fails PDF notes left without content.
func (n *Normalizer) sanitizeTranscript(p Payload, sourceType string) (string, error) {
	transcript := p.Transcript
	if transcript == "" {
		transcript = p.TextContent
	}
	if transcript == "" {
		transcript = p.Answer
	}

	if sourceType != domain.SourceYouTube && transcript != "" {
		transcript = sanitize.StripResidual(transcript)
	}
	if n.detector.Match(transcript) {
		transcript = ""
	}

	if sourceType == domain.SourcePDF && strings.TrimSpace(transcript) == "" {
		return "", apperrors.NewTranscriptExtractionFailed()
	}

	return transcript, nil
}

// extractSummaryFormats searches the notes-generation output and the latest
// answer for a structured summary object, falling back to newline-splitting
// the legacy string fields. Revision Q&A is never pulled out.
func (n *Normalizer) extractSummaryFormats(p Payload) domain.SummaryFormats {
	notesOutput := p.StageOutputs[StageGenerate]
	if notesOutput == "" {
		notesOutput = p.Answer
	}

	formats := tryParseSummaryJSON(notesOutput)
	if formats == nil {
		formats = tryParseSummaryJSON(p.Answer)
	}
	if formats == nil {
		formats = &domain.SummaryFormats{
			BulletNotes:  []string{},
			TopicWise:    []string{},
			KeyTakeaways: []string{},
		}
	}

	if len(formats.BulletNotes) == 0 && p.Legacy != nil {
		if p.Legacy.BulletPoints != "" {
			formats.BulletNotes = splitNonEmpty(p.Legacy.BulletPoints)
		}
		if p.Legacy.Topics != "" {
			formats.TopicWise = splitNonEmpty(p.Legacy.Topics)
		}
		if p.Legacy.KeyTakeaways != "" {
			formats.KeyTakeaways = splitNonEmpty(p.Legacy.KeyTakeaways)
		}
	}

	formats.BulletNotes = n.detector.Array(formats.BulletNotes)
	formats.TopicWise = n.detector.Array(formats.TopicWise)
	formats.KeyTakeaways = n.detector.Array(formats.KeyTakeaways)

	return *formats
}

// tryParseSummaryJSON attempts a strict parse, then a parse of a JSON object
// wrapped in a markdown code fence.
func tryParseSummaryJSON(text string) *domain.SummaryFormats {
	if text == "" {
		return nil
	}
	if formats := parseSummaryFormats([]byte(text)); formats != nil {
		return formats
	}
	if m := fencedJSON.FindStringSubmatch(text); len(m) > 1 {
		return parseSummaryFormats([]byte(m[1]))
	}
	return nil
}

func parseSummaryFormats(raw []byte) *domain.SummaryFormats {
	var parsed struct {
		SummaryFormats *struct {
			BulletNotes  json.RawMessage `json:"bulletNotes"`
			TopicWise    json.RawMessage `json:"topicWise"`
			KeyTakeaways json.RawMessage `json:"keyTakeaways"`
		} `json:"summaryFormats"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.SummaryFormats == nil {
		return nil
	}

	return &domain.SummaryFormats{
		BulletNotes:  coerceArray(parsed.SummaryFormats.BulletNotes),
		TopicWise:    coerceArray(parsed.SummaryFormats.TopicWise),
		KeyTakeaways: coerceArray(parsed.SummaryFormats.KeyTakeaways),
	}
}

// coerceArray keeps string arrays and coerces anything else to empty.
func coerceArray(raw json.RawMessage) []string {
	var arr []string
	if err := json.Unmarshal(raw, &arr); err != nil {
		return []string{}
	}
	out := []string{}
	for _, item := range arr {
		if strings.TrimSpace(item) != "" {
			out = append(out, item)
		}
	}
	return out
}

func splitNonEmpty(text string) []string {
	out := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
