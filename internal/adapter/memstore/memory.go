// Package memstore holds in-memory implementations of the index ports, used
// for tests and for one-shot runs over a corpus that is never persisted.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"lexrag/internal/domain"
	"lexrag/internal/port"
)

type MemoryStore struct {
	mu        sync.RWMutex
	docs      map[string]domain.Document
	chunks    map[string]domain.Chunk
	docChunks map[string][]string
	postings  map[string][]domain.Posting
	stats     domain.Stats
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:      make(map[string]domain.Document),
		chunks:    make(map[string]domain.Chunk),
		docChunks: make(map[string][]string),
		postings:  make(map[string][]domain.Posting),
	}
}

func (s *MemoryStore) GetDoc(id string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return domain.Document{}, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return doc, nil
}

func (s *MemoryStore) ListDocs() ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *MemoryStore) GetChunk(id string) (domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunk, ok := s.chunks[id]
	if !ok {
		return domain.Chunk{}, fmt.Errorf("chunk %s: %w", id, domain.ErrNotFound)
	}
	return chunk, nil
}

func (s *MemoryStore) GetChunks(ctx context.Context, ids []string) (map[string]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Chunk, len(ids))
	for _, id := range ids {
		if chunk, ok := s.chunks[id]; ok {
			out[id] = chunk
		}
	}
	return out, nil
}

func (s *MemoryStore) GetChunksByDoc(docID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunkIDs := s.docChunks[docID]
	chunks := make([]domain.Chunk, 0, len(chunkIDs))
	for _, id := range chunkIDs {
		if chunk, ok := s.chunks[id]; ok {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}

func (s *MemoryStore) GetPostings(term string) ([]domain.Posting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Posting(nil), s.postings[term]...), nil
}

func (s *MemoryStore) GetStats() (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats, nil
}

func (s *MemoryStore) ReplaceDocument(file port.IndexedFile) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[file.Doc.ID]; !ok {
		s.stats.TotalDocs++
	}
	removed := s.removeChunks(file.Doc.ID)
	s.docs[file.Doc.ID] = file.Doc

	ids := make([]string, 0, len(file.Chunks))
	for _, chunk := range file.Chunks {
		s.chunks[chunk.ID] = chunk
		ids = append(ids, chunk.ID)
		s.stats.TotalChunks++
		s.stats.TotalTokens += len(chunk.Tokens)
	}
	s.docChunks[file.Doc.ID] = ids

	for term, chunkPostings := range file.Postings {
		for chunkID, tf := range chunkPostings {
			s.postings[term] = append(s.postings[term], domain.Posting{ChunkID: chunkID, TF: tf})
		}
	}
	s.updateAvg()
	return removed, nil
}

func (s *MemoryStore) DeleteDocument(id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return nil, nil
	}
	removed := s.removeChunks(id)
	delete(s.docs, id)
	delete(s.docChunks, id)
	s.stats.TotalDocs--
	s.updateAvg()
	return removed, nil
}

func (s *MemoryStore) removeChunks(docID string) []string {
	ids := s.docChunks[docID]
	for _, id := range ids {
		chunk, ok := s.chunks[id]
		if !ok {
			continue
		}
		for _, term := range chunk.Tokens {
			filtered := s.postings[term][:0]
			for _, p := range s.postings[term] {
				if p.ChunkID != id {
					filtered = append(filtered, p)
				}
			}
			if len(filtered) == 0 {
				delete(s.postings, term)
			} else {
				s.postings[term] = filtered
			}
		}
		delete(s.chunks, id)
		s.stats.TotalChunks--
		s.stats.TotalTokens -= len(chunk.Tokens)
	}
	return ids
}

func (s *MemoryStore) updateAvg() {
	if s.stats.TotalChunks > 0 {
		s.stats.AvgChunkLen = float64(s.stats.TotalTokens) / float64(s.stats.TotalChunks)
	} else {
		s.stats.AvgChunkLen = 0
	}
}

func (s *MemoryStore) Close() error {
	return nil
}
