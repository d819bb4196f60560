package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivamkumar9811/NoteRex/internal/domain"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	store := newTestStore(t)

	saved, err := store.Save(context.Background(), domain.Note{
		Title:      "Photosynthesis",
		SourceType: domain.SourceText,
		Transcript: "Plants convert Light.",
		SummaryFormats: domain.SummaryFormats{
			BulletNotes:  []string{"light in, sugar out"},
			TopicWise:    []string{"energy"},
			KeyTakeaways: []string{"chlorophyll matters"},
		},
		UserID: "u1",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "photosynthesis plants convert light.", saved.SearchableText)
	assert.False(t, saved.CreatedAt.IsZero())
	assert.False(t, saved.UpdatedAt.IsZero())

	got, err := store.Get(context.Background(), saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.Title, got.Title)
	assert.Equal(t, saved.Transcript, got.Transcript)
	assert.Equal(t, saved.SummaryFormats.BulletNotes, got.SummaryFormats.BulletNotes)
	assert.Equal(t, "u1", got.UserID)
}

func TestSaveDefaultsAnonymousUser(t *testing.T) {
	store := newTestStore(t)

	saved, err := store.Save(context.Background(), domain.Note{Title: "No owner"})
	require.NoError(t, err)
	assert.Equal(t, domain.AnonymousUser, saved.UserID)
}

func TestListNewestFirstAndFiltering(t *testing.T) {
	store := newTestStore(t)

	older, err := store.Save(context.Background(), domain.Note{
		Title:     "Algebra",
		UserID:    "u1",
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	})
	require.NoError(t, err)

	newer, err := store.Save(context.Background(), domain.Note{
		Title:      "Biology",
		Transcript: "cells and mitosis",
		UserID:     "u1",
	})
	require.NoError(t, err)

	_, err = store.Save(context.Background(), domain.Note{Title: "Other user", UserID: "u2"})
	require.NoError(t, err)

	notes, err := store.List(context.Background(), "u1", "")
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, newer.ID, notes[0].ID, "newest note first")
	assert.Equal(t, older.ID, notes[1].ID)

	// Search goes through the derived lowercase field.
	notes, err = store.List(context.Background(), "u1", "MITOSIS")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, newer.ID, notes[0].ID)

	// Anonymous listing sees everything.
	notes, err = store.List(context.Background(), domain.AnonymousUser, "")
	require.NoError(t, err)
	assert.Len(t, notes, 3)
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)

	saved, err := store.Save(context.Background(), domain.Note{Title: "Doomed"})
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), saved.ID))

	_, err = store.Get(context.Background(), saved.ID)
	assert.ErrorIs(t, err, ErrNoteNotFound)

	assert.ErrorIs(t, store.Delete(context.Background(), saved.ID), ErrNoteNotFound)
}

func TestReadPathStripsContaminatedFields(t *testing.T) {
	// Seed a notes file with a legacy record carrying refusal text and a
	// persisted Q&A list, simulating data written before the current rules.
	dir := t.TempDir()
	legacy := map[string]any{
		"notes": map[string]any{
			"legacy-1": map[string]any{
				"id":         "legacy-1",
				"title":      "Old Note",
				"sourceType": "text",
				"transcript": "I don't have the capability to process that.",
				"summaryFormats": map[string]any{
					"bulletNotes":  []string{"fine", "I can't process PDFs here"},
					"topicWise":    []string{""},
					"keyTakeaways": []string{"kept"},
				},
				"revisionQA": []map[string]string{
					{"question": "Q", "answer": "A"},
				},
				"userId":         "u1",
				"searchableText": "old note i don't have the capability to process that.",
				"createdAt":      time.Now().UTC().Format(time.RFC3339),
				"updatedAt":      time.Now().UTC().Format(time.RFC3339),
			},
		},
	}
	raw, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.json"), raw, 0o644))

	store, err := NewFileStore(dir)
	require.NoError(t, err)

	got, err := store.Get(context.Background(), "legacy-1")
	require.NoError(t, err)

	assert.Equal(t, "", got.Transcript, "refusal transcript is emptied on read")
	assert.Equal(t, []string{"fine"}, got.SummaryFormats.BulletNotes)
	assert.Equal(t, []string{}, got.SummaryFormats.TopicWise)
	assert.Equal(t, []string{"kept"}, got.SummaryFormats.KeyTakeaways)
	assert.Empty(t, got.RevisionQA, "persisted q&a never survives a read")
}

func TestStoreSurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	store, err := NewFileStore(dir)
	require.NoError(t, err)

	saved, err := store.Save(context.Background(), domain.Note{Title: "Persistent"})
	require.NoError(t, err)

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)

	got, err := reopened.Get(context.Background(), saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Persistent", got.Title)
}
