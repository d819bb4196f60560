package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shivamkumar9811/NoteRex/internal/domain"
	"github.com/shivamkumar9811/NoteRex/internal/sanitize"
)

type fileData struct {
	Notes map[string]domain.Note `json:"notes"`
}

// FileStore keeps notes in a single JSON file, rewritten atomically on every
// mutation. It backs deployments without a MongoDB and the test suite.
type FileStore struct {
	mu       sync.RWMutex
	path     string
	detector *sanitize.Detector
	data     fileData
}

func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	store := &FileStore{
		path:     filepath.Join(baseDir, "notes.json"),
		detector: sanitize.NewDetector(),
	}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *FileStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = fileData{Notes: map[string]domain.Note{}}

	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("open notes file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&s.data); err != nil {
		if errors.Is(err, io.EOF) {
			return s.saveLocked()
		}
		return fmt.Errorf("decode notes file: %w", err)
	}

	if s.data.Notes == nil {
		s.data.Notes = map[string]domain.Note{}
	}
	return nil
}

func (s *FileStore) Save(ctx context.Context, note domain.Note) (domain.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prepareForSave(&note)
	s.data.Notes[note.ID] = note

	if err := s.saveLocked(); err != nil {
		return domain.Note{}, err
	}

	return note, nil
}

func (s *FileStore) Get(ctx context.Context, id string) (domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	note, ok := s.data.Notes[id]
	if !ok {
		return domain.Note{}, ErrNoteNotFound
	}
	return sanitizeForRead(s.detector, note), nil
}

func (s *FileStore) List(ctx context.Context, userID, search string) ([]domain.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search = strings.ToLower(search)

	notes := make([]domain.Note, 0, len(s.data.Notes))
	for _, note := range s.data.Notes {
		if userID != "" && userID != domain.AnonymousUser && note.UserID != userID {
			continue
		}
		if search != "" && !strings.Contains(note.SearchableText, search) {
			continue
		}
		notes = append(notes, sanitizeForRead(s.detector, note))
	}

	sort.Slice(notes, func(i, j int) bool {
		return notes[i].CreatedAt.After(notes[j].CreatedAt)
	})

	return notes, nil
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Notes[id]; !ok {
		return ErrNoteNotFound
	}

	delete(s.data.Notes, id)
	return s.saveLocked()
}

func (s *FileStore) saveLocked() error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "notes-*.json")
	if err != nil {
		return fmt.Errorf("create temp notes file: %w", err)
	}

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s.data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode notes: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp notes file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace notes file: %w", err)
	}

	return nil
}

// prepareForSave assigns an id when absent, recomputes the derived search
// field and stamps timestamps. Notes are replaced whole; there are no
// partial updates.
func prepareForSave(note *domain.Note) {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.UserID == "" {
		note.UserID = domain.AnonymousUser
	}
	note.SearchableText = note.ComputeSearchableText()

	now := time.Now().UTC()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	note.UpdatedAt = now
}
