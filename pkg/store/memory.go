package store

import (
	"context"
	"sort"
	"sync"

	"github.com/xhad/mmrag/internal/models"
)

type memoryEntry struct {
	seq   int
	chunk models.Chunk
}

// Memory keeps chunks in process. It has no prefix delete, so callers go
// through the Get and Delete scan path.
type Memory struct {
	mu      sync.RWMutex
	nextSeq int
	entries map[string]*memoryEntry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*memoryEntry)}
}

func (m *Memory) Upsert(_ context.Context, chunks []models.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		c.Embedding = append([]float32(nil), c.Embedding...)
		if e, ok := m.entries[c.ID]; ok {
			e.chunk = c
			continue
		}
		m.entries[c.ID] = &memoryEntry{seq: m.nextSeq, chunk: c}
		m.nextSeq++
	}
	return nil
}

func (m *Memory) Query(_ context.Context, embedding []float32, topK int, where models.Where) ([]models.SearchHit, error) {
	if topK <= 0 || len(embedding) == 0 {
		return nil, nil
	}
	type scored struct {
		score float64
		entry *memoryEntry
	}
	m.mu.RLock()
	var candidates []scored
	for _, e := range m.sorted() {
		if !where.Match(e.chunk.Metadata) {
			continue
		}
		candidates = append(candidates, scored{score: cosine(embedding, e.chunk.Embedding), entry: e})
	}
	m.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	hits := make([]models.SearchHit, 0, len(candidates))
	for _, c := range candidates {
		hits = append(hits, models.SearchHit{Text: c.entry.chunk.Text, Metadata: c.entry.chunk.Metadata})
	}
	return hits, nil
}

func (m *Memory) Get(_ context.Context, where models.Where) ([]models.StoredChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.StoredChunk
	for _, e := range m.sorted() {
		if where.Match(e.chunk.Metadata) {
			out = append(out, models.StoredChunk{ID: e.chunk.ID, Metadata: e.chunk.Metadata})
		}
	}
	return out, nil
}

func (m *Memory) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.entries, id)
	}
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) Close() {}

// sorted returns entries in insertion order. Callers hold the lock.
func (m *Memory) sorted() []*memoryEntry {
	out := make([]*memoryEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}
