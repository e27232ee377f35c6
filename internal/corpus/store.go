package corpus

import (
	"context"
	"net/http"
	"slices"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/quiz-answer-matcher/pkg/errors"
)

// Store persists the ordered record list. Indexes are positions in List.
type Store interface {
	List(ctx context.Context) ([]QARecord, error)
	Append(ctx context.Context, rec QARecord) (int, error)
	Update(ctx context.Context, index int, rec QARecord) error
	Delete(ctx context.Context, index int) error
	Replace(ctx context.Context, records []QARecord) error
	Count(ctx context.Context) (int, error)
}

// MemoryStore keeps the corpus in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records []QARecord
}

func NewMemoryStore(records ...QARecord) *MemoryStore {
	return &MemoryStore{records: slices.Clone(records)}
}

func (m *MemoryStore) List(ctx context.Context) ([]QARecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Clone(m.records)
	if out == nil {
		out = []QARecord{}
	}
	return out, nil
}

func (m *MemoryStore) Append(ctx context.Context, rec QARecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return len(m.records) - 1, nil
}

func (m *MemoryStore) Update(ctx context.Context, index int, rec QARecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.records) {
		return notFound(index)
	}
	m.records[index] = rec
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.records) {
		return notFound(index)
	}
	m.records = slices.Delete(m.records, index, index+1)
	return nil
}

func (m *MemoryStore) Replace(ctx context.Context, records []QARecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = slices.Clone(records)
	return nil
}

func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func notFound(index int) error {
	return apperrors.Newf(apperrors.ErrRecordNotFound, http.StatusNotFound, "no record at index %d", index)
}
