package storage

import (
	"context"
	"errors"

	"github.com/shivamkumar9811/NoteRex/internal/domain"
	"github.com/shivamkumar9811/NoteRex/internal/sanitize"
)

// ErrNoteNotFound distinguishes a missing note from a transport failure.
var ErrNoteNotFound = errors.New("note not found")

// NoteStore persists and serves normalized notes. Every read path
// re-sanitizes stored text so historically contaminated records never leak
// fallback phrases to a client, and revision Q&A never leaves the store.
type NoteStore interface {
	Save(ctx context.Context, note domain.Note) (domain.Note, error)
	Get(ctx context.Context, id string) (domain.Note, error)
	List(ctx context.Context, userID, search string) ([]domain.Note, error)
	Delete(ctx context.Context, id string) error
}

// sanitizeForRead applies the read-path invariants to a stored record.
func sanitizeForRead(detector *sanitize.Detector, note domain.Note) domain.Note {
	note.Transcript = detector.Text(note.Transcript)
	note.SummaryFormats.BulletNotes = detector.Array(note.SummaryFormats.BulletNotes)
	note.SummaryFormats.TopicWise = detector.Array(note.SummaryFormats.TopicWise)
	note.SummaryFormats.KeyTakeaways = detector.Array(note.SummaryFormats.KeyTakeaways)
	note.RevisionQA = []domain.QAPair{}
	return note
}
