package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements TranscriptStore in memory. It backs tests and the
// database-disabled development mode. The error fields inject write failures
// so callers can exercise partial-failure behavior.
type MemoryStore struct {
	mu          sync.RWMutex
	transcripts map[string]*Transcript
	calls       map[string]CallMetrics

	SaveAnalysisErr error
	UpdateCallErr   error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transcripts: make(map[string]*Transcript),
		calls:       make(map[string]CallMetrics),
	}
}

// AddTranscript inserts a transcript record, assigning IDs when absent, and
// returns the stored copy.
func (s *MemoryStore) AddTranscript(t Transcript) *Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CallID == "" {
		t.CallID = uuid.New().String()
	}
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	stored := t
	s.transcripts[t.ID] = &stored
	return &stored
}

func (s *MemoryStore) GetTranscript(_ context.Context, id string) (*Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transcripts[id]
	if !ok {
		return nil, nil
	}
	clone := *t
	return &clone, nil
}

func (s *MemoryStore) SaveAnalysis(_ context.Context, id string, update AnalysisUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SaveAnalysisErr != nil {
		return s.SaveAnalysisErr
	}

	t, ok := s.transcripts[id]
	if !ok {
		return nil
	}
	score := update.CallScore
	sentiment := update.Sentiment
	t.CallScore = &score
	t.Sentiment = &sentiment
	t.Keywords = update.Keywords
	t.KeyPhrases = update.KeyPhrases
	t.Segments = update.SegmentsJSON
	t.Metadata = update.MetadataJSON
	t.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) UpdateCallMetrics(_ context.Context, callID string, metrics CallMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.UpdateCallErr != nil {
		return s.UpdateCallErr
	}
	s.calls[callID] = metrics
	return nil
}

// CallMetrics returns the stored metrics for a call, if any.
func (s *MemoryStore) CallMetrics(callID string) (CallMetrics, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.calls[callID]
	return m, ok
}
