package memory

import (
	"context"
	"sync"

	"github.com/mcallaghan/moira/internal/store"
)

// memoryDocument is the on-disk shape of the conversation memory file.
type memoryDocument struct {
	Conversations []Turn `json:"conversations"`
}

// FileStore keeps the whole conversation log in a single JSON document and
// rewrites it on every append. The mutex serializes each load-mutate-save
// cycle so concurrent turns cannot lose updates.
type FileStore struct {
	mu      sync.Mutex
	records *store.Store
}

func NewFileStore(records *store.Store) *FileStore {
	return &FileStore{records: records}
}

func (s *FileStore) AppendTurn(_ context.Context, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load()
	doc.Conversations = append(doc.Conversations, turn)
	return s.records.Save(s.records.Paths().MemoryFile, doc)
}

func (s *FileStore) Recent(_ context.Context, limit int) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load()
	turns := doc.Conversations
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *FileStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records.Save(s.records.Paths().MemoryFile, memoryDocument{Conversations: []Turn{}})
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) load() memoryDocument {
	doc := memoryDocument{Conversations: []Turn{}}
	s.records.Load("memory", s.records.Paths().MemoryFile, &doc)
	return doc
}
