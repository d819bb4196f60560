package services

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"

	apperrors "github.com/shivamkumar9811/NoteRex/internal/errors"
	"github.com/shivamkumar9811/NoteRex/internal/sanitize"
)

// PDFExtractor converts PDF bytes into plain text and refuses to return an
// AI fallback message as content. The upstream summarizer, when fed a file it
// cannot read, sometimes echoes a refusal sentence; that must never be
// mistaken for a real transcript.
type PDFExtractor struct {
	detector *sanitize.Detector
}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{detector: sanitize.NewPDFDetector()}
}

// NewPDFExtractorWith builds an extractor over a caller-supplied detector.
func NewPDFExtractorWith(detector *sanitize.Detector) *PDFExtractor {
	return &PDFExtractor{detector: detector}
}

// ExtractText parses the document and returns its trimmed plain text.
func (e *PDFExtractor) ExtractText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", apperrors.NewSourceExtractionFailed(err)
	}

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", apperrors.NewSourceExtractionFailed(err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(textReader); err != nil {
		return "", apperrors.NewSourceExtractionFailed(err)
	}

	return e.vetExtracted(buf.String())
}

// vetExtracted enforces the extraction invariants on raw extractor output.
func (e *PDFExtractor) vetExtracted(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.NewExtractionEmpty()
	}
	if e.detector.Match(text) {
		return "", apperrors.NewExtractionFallback()
	}
	return text, nil
}
