package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"lexrag/internal/domain"
	"lexrag/internal/port"
)

var (
	bucketDocs      = []byte("docs")
	bucketChunks    = []byte("chunks")
	bucketBlobs     = []byte("blobs")
	bucketTerms     = []byte("terms")
	bucketStats     = []byte("stats")
	bucketDocChunks = []byte("doc_chunks")
	keyStats        = []byte("corpus_stats")
)

var allBuckets = [][]byte{bucketDocs, bucketChunks, bucketBlobs, bucketTerms, bucketStats, bucketDocChunks}

// BoltStore keeps documents, chunks and keyword postings. Every document
// replacement runs in a single write transaction, so readers observe either
// the old or the new chunk set of a document, never a mix.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

type docMeta struct {
	Path       string `json:"path"`
	Title      string `json:"title,omitempty"`
	Category   string `json:"category"`
	Department string `json:"department,omitempty"`
	Status     string `json:"status"`
	Revision   string `json:"revision"`
	ModTime    int64  `json:"mod_time"`
}

type chunkMeta struct {
	DocID           string                  `json:"doc_id"`
	ArticleID       string                  `json:"article_id,omitempty"`
	Hierarchy       []domain.HierarchyLevel `json:"hierarchy,omitempty"`
	Source          string                  `json:"source"`
	Category        string                  `json:"category"`
	Status          string                  `json:"status"`
	ChunkType       string                  `json:"chunk_type"`
	FragmentIndex   *int                    `json:"fragment_index,omitempty"`
	ParentArticleID string                  `json:"parent_article_id,omitempty"`
	RevocationNote  string                  `json:"revocation_note,omitempty"`
	Tokens          []string                `json:"tokens"`
}

func newDocMeta(doc domain.Document) docMeta {
	return docMeta{
		Path:       doc.Path,
		Title:      doc.Title,
		Category:   string(doc.Category),
		Department: doc.Department,
		Status:     string(doc.Status),
		Revision:   doc.Revision,
		ModTime:    doc.ModTime.Unix(),
	}
}

func (m docMeta) document(id string) domain.Document {
	return domain.Document{
		ID:         id,
		Path:       m.Path,
		Title:      m.Title,
		Category:   domain.Category(m.Category),
		Department: m.Department,
		Status:     domain.Status(m.Status),
		Revision:   m.Revision,
		ModTime:    time.Unix(m.ModTime, 0),
	}
}

func newChunkMeta(c domain.Chunk) chunkMeta {
	return chunkMeta{
		DocID:           c.DocID,
		ArticleID:       c.ArticleID,
		Hierarchy:       c.Hierarchy,
		Source:          c.Source,
		Category:        string(c.Category),
		Status:          string(c.Status),
		ChunkType:       string(c.ChunkType),
		FragmentIndex:   c.FragmentIndex,
		ParentArticleID: c.ParentArticleID,
		RevocationNote:  c.RevocationNote,
		Tokens:          c.Tokens,
	}
}

func (m chunkMeta) chunk(id string, content []byte) domain.Chunk {
	return domain.Chunk{
		ID:              id,
		DocID:           m.DocID,
		Content:         string(content),
		ArticleID:       m.ArticleID,
		Hierarchy:       m.Hierarchy,
		Source:          m.Source,
		Category:        domain.Category(m.Category),
		Status:          domain.Status(m.Status),
		ChunkType:       domain.ChunkType(m.ChunkType),
		FragmentIndex:   m.FragmentIndex,
		ParentArticleID: m.ParentArticleID,
		RevocationNote:  m.RevocationNote,
		Tokens:          m.Tokens,
	}
}

func (s *BoltStore) GetDoc(id string) (domain.Document, error) {
	var doc domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocs).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
		}
		var meta docMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}
		doc = meta.document(id)
		return nil
	})
	return doc, err
}

func (s *BoltStore) ListDocs() ([]domain.Document, error) {
	var docs []domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocs)
		return b.ForEach(func(k, v []byte) error {
			var meta docMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return err
			}
			docs = append(docs, meta.document(string(k)))
			return nil
		})
	})
	return docs, err
}

func getChunk(tx *bbolt.Tx, id string) (domain.Chunk, bool, error) {
	data := tx.Bucket(bucketChunks).Get([]byte(id))
	if data == nil {
		return domain.Chunk{}, false, nil
	}
	var meta chunkMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return domain.Chunk{}, false, fmt.Errorf("decode chunk %s: %w", id, err)
	}
	return meta.chunk(id, tx.Bucket(bucketBlobs).Get([]byte(id))), true, nil
}

func (s *BoltStore) GetChunk(id string) (domain.Chunk, error) {
	var chunk domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		c, ok, err := getChunk(tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("chunk %s: %w", id, domain.ErrNotFound)
		}
		chunk = c
		return nil
	})
	return chunk, err
}

// GetChunks hydrates ids from one read transaction. Ids that no longer
// exist (replaced by a concurrent re-ingestion) are left out.
func (s *BoltStore) GetChunks(ctx context.Context, ids []string) (map[string]domain.Chunk, error) {
	out := make(map[string]domain.Chunk, len(ids))
	err := s.db.View(func(tx *bbolt.Tx) error {
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return err
			}
			c, ok, err := getChunk(tx, id)
			if err != nil {
				return err
			}
			if ok {
				out[id] = c
			}
		}
		return nil
	})
	return out, err
}

func (s *BoltStore) GetChunksByDoc(docID string) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		ids, err := docChunkIDs(tx, docID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			c, ok, err := getChunk(tx, id)
			if err != nil {
				return err
			}
			if ok {
				chunks = append(chunks, c)
			}
		}
		return nil
	})
	return chunks, err
}

func docChunkIDs(tx *bbolt.Tx, docID string) ([]string, error) {
	data := tx.Bucket(bucketDocChunks).Get([]byte(docID))
	if data == nil {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *BoltStore) GetPostings(term string) ([]domain.Posting, error) {
	var postings []domain.Posting
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketTerms).Get([]byte(term))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &postings)
	})
	return postings, err
}

func (s *BoltStore) GetStats() (domain.Stats, error) {
	var stats domain.Stats
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		stats, err = readStats(tx)
		return err
	})
	return stats, err
}

func readStats(tx *bbolt.Tx) (domain.Stats, error) {
	var stats domain.Stats
	data := tx.Bucket(bucketStats).Get(keyStats)
	if data == nil {
		return stats, nil
	}
	err := json.Unmarshal(data, &stats)
	return stats, err
}

func writeStats(tx *bbolt.Tx, stats domain.Stats) error {
	if stats.TotalChunks > 0 {
		stats.AvgChunkLen = float64(stats.TotalTokens) / float64(stats.TotalChunks)
	} else {
		stats.AvgChunkLen = 0
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketStats).Put(keyStats, data)
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// ReplaceDocument swaps the document's chunk set, postings and corpus
// statistics in one transaction and returns the ids it removed.
func (s *BoltStore) ReplaceDocument(file port.IndexedFile) ([]string, error) {
	var removed []string
	err := s.db.Update(func(tx *bbolt.Tx) error {
		stats, err := readStats(tx)
		if err != nil {
			return err
		}

		existed := tx.Bucket(bucketDocs).Get([]byte(file.Doc.ID)) != nil
		removed, err = removeDocChunks(tx, file.Doc.ID, &stats)
		if err != nil {
			return err
		}
		if !existed {
			stats.TotalDocs++
		}

		data, err := json.Marshal(newDocMeta(file.Doc))
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketDocs).Put([]byte(file.Doc.ID), data); err != nil {
			return err
		}

		chunksBucket := tx.Bucket(bucketChunks)
		blobsBucket := tx.Bucket(bucketBlobs)
		chunkIDs := make([]string, 0, len(file.Chunks))
		for _, chunk := range file.Chunks {
			data, err := json.Marshal(newChunkMeta(chunk))
			if err != nil {
				return err
			}
			if err := chunksBucket.Put([]byte(chunk.ID), data); err != nil {
				return err
			}
			if err := blobsBucket.Put([]byte(chunk.ID), []byte(chunk.Content)); err != nil {
				return err
			}
			chunkIDs = append(chunkIDs, chunk.ID)
			stats.TotalChunks++
			stats.TotalTokens += len(chunk.Tokens)
		}

		idsData, err := json.Marshal(chunkIDs)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketDocChunks).Put([]byte(file.Doc.ID), idsData); err != nil {
			return err
		}

		if err := addPostings(tx, file.Postings); err != nil {
			return err
		}
		return writeStats(tx, stats)
	})
	return removed, err
}

// DeleteDocument removes a document that disappeared from the corpus.
func (s *BoltStore) DeleteDocument(id string) ([]string, error) {
	var removed []string
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketDocs).Get([]byte(id)) == nil {
			return nil
		}
		stats, err := readStats(tx)
		if err != nil {
			return err
		}
		removed, err = removeDocChunks(tx, id, &stats)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketDocs).Delete([]byte(id)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketDocChunks).Delete([]byte(id)); err != nil {
			return err
		}
		stats.TotalDocs--
		return writeStats(tx, stats)
	})
	return removed, err
}

func removeDocChunks(tx *bbolt.Tx, docID string, stats *domain.Stats) ([]string, error) {
	ids, err := docChunkIDs(tx, docID)
	if err != nil {
		return nil, err
	}

	chunksBucket := tx.Bucket(bucketChunks)
	blobsBucket := tx.Bucket(bucketBlobs)
	stale := make(map[string]map[string]struct{})

	for _, id := range ids {
		c, ok, err := getChunk(tx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for _, term := range c.Tokens {
			if stale[term] == nil {
				stale[term] = make(map[string]struct{})
			}
			stale[term][id] = struct{}{}
		}
		if err := chunksBucket.Delete([]byte(id)); err != nil {
			return nil, err
		}
		if err := blobsBucket.Delete([]byte(id)); err != nil {
			return nil, err
		}
		stats.TotalChunks--
		stats.TotalTokens -= len(c.Tokens)
	}

	return ids, removePostings(tx, stale)
}

func removePostings(tx *bbolt.Tx, stale map[string]map[string]struct{}) error {
	b := tx.Bucket(bucketTerms)
	for term, chunkIDs := range stale {
		data := b.Get([]byte(term))
		if data == nil {
			continue
		}
		var postings []domain.Posting
		if err := json.Unmarshal(data, &postings); err != nil {
			return err
		}

		filtered := make([]domain.Posting, 0, len(postings))
		for _, p := range postings {
			if _, drop := chunkIDs[p.ChunkID]; !drop {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) == 0 {
			if err := b.Delete([]byte(term)); err != nil {
				return err
			}
			continue
		}
		data, err := json.Marshal(filtered)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(term), data); err != nil {
			return err
		}
	}
	return nil
}

func addPostings(tx *bbolt.Tx, postings map[string]map[string]int) error {
	b := tx.Bucket(bucketTerms)
	for term, chunkTFs := range postings {
		var existing []domain.Posting
		if data := b.Get([]byte(term)); data != nil {
			if err := json.Unmarshal(data, &existing); err != nil {
				return err
			}
		}
		for chunkID, tf := range chunkTFs {
			existing = append(existing, domain.Posting{ChunkID: chunkID, TF: tf})
		}
		data, err := json.Marshal(existing)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(term), data); err != nil {
			return err
		}
	}
	return nil
}
