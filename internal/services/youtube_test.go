package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/shivamkumar9811/NoteRex/internal/errors"
)

func TestExtractVideoID(t *testing.T) {
	cases := map[string]string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ":            "dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ":                           "dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ":              "dQw4w9WgXcQ",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s":      "dQw4w9WgXcQ",
		"https://www.youtube.com/watch?list=PL123&v=dQw4w9WgXcQ": "dQw4w9WgXcQ",
		"https://example.com/watch?v=abc":                        "",
		"not a url at all":                                       "",
		"":                                                       "",
	}

	for url, want := range cases {
		assert.Equal(t, want, ExtractVideoID(url), "url %q", url)
	}
}

type panicTranscriber struct{}

func (panicTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	panic("transcriber must not be reached")
}

func TestExtractRejectsInvalidURLBeforeAnyWork(t *testing.T) {
	y := NewYouTubeExtractor(panicTranscriber{})

	_, err := y.Extract(context.Background(), "https://example.com/video/123")
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidSourceURL))
}
