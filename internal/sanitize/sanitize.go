// Package sanitize classifies AI output as real content or a canned
// refusal ("I don't have the capability..."). The pattern set is injectable
// so new refusal phrasings can be added without touching pipeline logic.
package sanitize

import (
	"regexp"
	"strings"
)

// Patterns the upstream models emit instead of real content. Never surface
// text matching any of these to a client.
var fallbackPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)I can't process PDFs`),
	regexp.MustCompile(`(?i)don't have the capability to directly process or view PDF files`),
	regexp.MustCompile(`(?i)I don't have the capability`),
	regexp.MustCompile(`(?i)cannot directly.*PDF`),
	regexp.MustCompile(`(?i)The provided link is a YouTube video`),
	regexp.MustCompile(`(?i)Please specify what information you need`),
}

// PDF-specific subset used by the document-text adapter.
var pdfFallbackPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)don't have the capability to directly process or view PDF files`),
	regexp.MustCompile(`(?i)I don't have the capability`),
	regexp.MustCompile(`(?i)cannot directly.*PDF`),
}

// Residual sentence fragments stripped from otherwise valid transcripts.
var residualPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)The provided link is a YouTube video[^.]*\.`),
	regexp.MustCompile(`(?i)Please specify what information you need[^.]*\.`),
}

// Detector decides whether a piece of text is a refusal rather than content.
type Detector struct {
	patterns []*regexp.Regexp
}

// NewDetector returns a detector over the full fallback pattern list.
func NewDetector() *Detector {
	return &Detector{patterns: fallbackPatterns}
}

// NewPDFDetector returns a detector over the PDF refusal subset.
func NewPDFDetector() *Detector {
	return &Detector{patterns: pdfFallbackPatterns}
}

// NewDetectorWith builds a detector over a caller-supplied pattern set.
func NewDetectorWith(patterns ...*regexp.Regexp) *Detector {
	return &Detector{patterns: patterns}
}

// Match reports whether text contains any refusal pattern.
func (d *Detector) Match(text string) bool {
	for _, p := range d.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// Text returns text unchanged, or the empty string if it matches a refusal
// pattern.
func (d *Detector) Text(text string) string {
	if d.Match(text) {
		return ""
	}
	return text
}

// Array filters out empty items and items matching a refusal pattern.
func (d *Detector) Array(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" || d.Match(item) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// StripResidual removes refusal sentence fragments that contaminate the
// prefix or suffix of an otherwise valid transcript.
func StripResidual(text string) string {
	for _, p := range residualPatterns {
		text = strings.TrimSpace(p.ReplaceAllString(text, ""))
	}
	return text
}
