package services

import (
	"context"
	"errors"
	"io"
	"regexp"

	"github.com/kkdai/youtube/v2"

	apperrors "github.com/shivamkumar9811/NoteRex/internal/errors"
)

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([^&\n?#]+)`),
	regexp.MustCompile(`youtube\.com/watch\?.*v=([^&\n?#]+)`),
}

// ExtractVideoID pulls the canonical video id out of a YouTube URL, or
// returns the empty string if the URL has no recognizable form.
func ExtractVideoID(url string) string {
	for _, p := range videoIDPatterns {
		if m := p.FindStringSubmatch(url); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}

// ExtractedContent is what a URL adapter hands to the rest of the pipeline:
// transcribed text plus source metadata.
type ExtractedContent struct {
	Text        string
	SourceTitle string
	VideoID     string
	SourceURL   string
}

// Transcriber is the audio-to-text collaborator the URL adapter hands its
// downloaded audio to.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// YouTubeExtractor downloads a video's audio track fully into memory and
// transcribes it. Downstream agent stages only understand text, so this runs
// before any of them see the URL.
type YouTubeExtractor struct {
	client      *youtube.Client
	transcriber Transcriber
}

func NewYouTubeExtractor(transcriber Transcriber) *YouTubeExtractor {
	return &YouTubeExtractor{
		client:      &youtube.Client{},
		transcriber: transcriber,
	}
}

// Extract validates the URL, fetches metadata, downloads the audio track and
// transcribes it. URL format failures are INVALID_SOURCE_URL and happen
// before any network call; everything else wraps as SOURCE_EXTRACTION_FAILED
// with the cause preserved.
func (y *YouTubeExtractor) Extract(ctx context.Context, url string) (ExtractedContent, error) {
	videoID := ExtractVideoID(url)
	if videoID == "" {
		return ExtractedContent{}, apperrors.NewInvalidSourceURL(url)
	}

	video, err := y.client.GetVideoContext(ctx, url)
	if err != nil {
		return ExtractedContent{}, apperrors.NewSourceExtractionFailed(err)
	}

	audio, err := y.downloadAudio(ctx, video)
	if err != nil {
		return ExtractedContent{}, apperrors.NewSourceExtractionFailed(err)
	}

	text, err := y.transcriber.Transcribe(ctx, audio, "youtube-audio.mp3")
	if err != nil {
		return ExtractedContent{}, err
	}

	return ExtractedContent{
		Text:        text,
		SourceTitle: video.Title,
		VideoID:     videoID,
		SourceURL:   url,
	}, nil
}

func (y *YouTubeExtractor) downloadAudio(ctx context.Context, video *youtube.Video) ([]byte, error) {
	formats := video.Formats.Type("audio")
	if len(formats) == 0 {
		formats = video.Formats.WithAudioChannels()
	}
	if len(formats) == 0 {
		return nil, errors.New("no audio format available")
	}
	formats.Sort()

	stream, _, err := y.client.GetStreamContext(ctx, video, &formats[0])
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	return io.ReadAll(stream)
}
