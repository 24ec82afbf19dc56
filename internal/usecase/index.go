package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"lexrag/internal/domain"
	"lexrag/internal/logging"
	"lexrag/internal/port"
)

// DocumentSource discovers corpus files and turns them into documents.
type DocumentSource interface {
	Discover(root string) ([]port.FileInfo, error)
	Load(root string, f port.FileInfo) (domain.Document, error)
}

// Invalidator is notified whenever the indexed corpus changes.
type Invalidator interface {
	Invalidate()
}

// IndexOptions carries the optional collaborators of IndexUseCase. A nil
// Keyword writer means postings live in the chunk store only; a nil Vectors
// or Embedder disables the dense index.
type IndexOptions struct {
	Keyword   port.KeywordWriter
	Vectors   port.VectorIndex
	Embedder  port.Embedder
	Cache     Invalidator
	Workers   int
	BatchSize int
	Logger    *slog.Logger
	// Progress is called once per discovered file, from any worker.
	Progress func(processed, total int, path string)
}

// IndexUseCase ingests a corpus: segmentation, revocation annotation and
// the writes to the chunk store, keyword index and vector index.
type IndexUseCase struct {
	store     port.IndexStore
	source    DocumentSource
	segmenter port.Segmenter
	annotator port.Annotator
	opts      IndexOptions
	logger    *slog.Logger

	// writes serializes every index mutation.
	writes sync.Mutex
}

func NewIndexUseCase(
	store port.IndexStore,
	source DocumentSource,
	segmenter port.Segmenter,
	annotator port.Annotator,
	opts IndexOptions,
) *IndexUseCase {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}
	if opts.Vectors == nil || opts.Embedder == nil {
		opts.Vectors, opts.Embedder = nil, nil
	}
	return &IndexUseCase{
		store:     store,
		source:    source,
		segmenter: segmenter,
		annotator: annotator,
		opts:      opts,
		logger:    logging.OrDefault(opts.Logger),
	}
}

// IndexResult contains the results of an indexing operation.
type IndexResult struct {
	FilesIndexed  int
	FilesSkipped  int
	FilesDeleted  int
	ChunksCreated int
	Vectors       int
	// Fallbacks counts documents segmented by paragraphs; Issues counts
	// every recorded ambiguity, possibly several per document.
	Fallbacks     int
	Issues        int
	Errors        []string
}

type indexState struct {
	mu     sync.Mutex
	result IndexResult
}

func (s *indexState) update(fn func(r *IndexResult)) {
	s.mu.Lock()
	fn(&s.result)
	s.mu.Unlock()
}

func (s *indexState) fail(path string, err error) {
	s.update(func(r *IndexResult) {
		r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", path, err))
	})
}

// Index brings the indexes in line with the corpus under root. Documents
// whose revision is unchanged are skipped, changed ones are replaced and
// vanished ones deleted. Per-file failures are collected in the result; only
// cancellation and listing failures abort the run.
func (u *IndexUseCase) Index(ctx context.Context, root string) (*IndexResult, error) {
	files, err := u.source.Discover(root)
	if err != nil {
		return nil, fmt.Errorf("walk corpus: %w", err)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	existingDocs, err := u.store.ListDocs()
	if err != nil {
		return nil, fmt.Errorf("list indexed documents: %w", err)
	}
	existing := make(map[string]domain.Document, len(existingDocs))
	for _, doc := range existingDocs {
		existing[doc.Path] = doc
	}

	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if rel, err := filepath.Rel(absRoot, f.Path); err == nil {
			seen[filepath.ToSlash(rel)] = true
		}
	}

	state := &indexState{}
	var processed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.opts.Workers)

	for _, f := range files {
		g.Go(func() error {
			if u.opts.Progress != nil {
				defer func() {
					u.opts.Progress(int(processed.Add(1)), len(files), f.Path)
				}()
			}
			if err := gctx.Err(); err != nil {
				return err
			}
			return u.indexFile(gctx, absRoot, f, existing, state)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for path, doc := range existing {
		if seen[path] {
			continue
		}
		if err := u.Delete(ctx, doc.ID); err != nil {
			state.fail(path, err)
			continue
		}
		state.result.FilesDeleted++
	}

	if u.opts.Cache != nil && (state.result.FilesIndexed > 0 || state.result.FilesDeleted > 0) {
		u.opts.Cache.Invalidate()
	}
	return &state.result, nil
}

func (u *IndexUseCase) indexFile(ctx context.Context, root string, f port.FileInfo, existing map[string]domain.Document, state *indexState) error {
	doc, err := u.source.Load(root, f)
	if err != nil {
		state.fail(f.Path, err)
		return nil
	}
	if prev, ok := existing[doc.Path]; ok && prev.Revision == doc.Revision {
		state.update(func(r *IndexResult) { r.FilesSkipped++ })
		return nil
	}

	seg := Segment(u.segmenter, u.annotator, doc, u.logger)
	file := port.IndexedFile{
		Doc:      doc,
		Chunks:   seg.Chunks,
		Postings: Postings(seg.Chunks),
	}

	items, err := u.embed(ctx, seg.Chunks)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		state.fail(f.Path, err)
		return nil
	}

	if err := u.write(ctx, file, items); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		state.fail(f.Path, err)
		return nil
	}

	state.update(func(r *IndexResult) {
		r.FilesIndexed++
		r.ChunksCreated += len(seg.Chunks)
		r.Vectors += len(items)
		r.Issues += len(seg.Issues)
		if seg.Fallback {
			r.Fallbacks++
		}
	})
	return nil
}

func (u *IndexUseCase) embed(ctx context.Context, chunks []domain.Chunk) ([]port.VectorItem, error) {
	if u.opts.Embedder == nil || len(chunks) == 0 {
		return nil, nil
	}
	items := make([]port.VectorItem, 0, len(chunks))
	for start := 0; start < len(chunks); start += u.opts.BatchSize {
		end := min(start+u.opts.BatchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Content)
		}
		vecs, err := u.opts.Embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunks: %w", err)
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("embed chunks: got %d vectors for %d texts", len(vecs), len(texts))
		}
		for i, c := range chunks[start:end] {
			items = append(items, port.VectorItem{
				ID:       c.ID,
				Vector:   vecs[i],
				Metadata: port.ChunkMetadata(c),
			})
		}
	}
	return items, nil
}

// write replaces the document in every index. If a secondary index rejects
// the write the document is dropped from the chunk store, so the next run
// sees it as new and retries.
func (u *IndexUseCase) write(ctx context.Context, file port.IndexedFile, items []port.VectorItem) error {
	u.writes.Lock()
	defer u.writes.Unlock()

	removed, err := u.store.ReplaceDocument(file)
	if err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}

	err = u.writeSecondary(ctx, file, items, removed)
	if err == nil {
		return nil
	}
	u.logger.Warn("secondary index write failed, rolling back document",
		slog.String("doc", file.Doc.ID),
		slog.String("error", err.Error()),
	)
	if _, rbErr := u.store.DeleteDocument(file.Doc.ID); rbErr != nil {
		err = errors.Join(err, fmt.Errorf("roll back: %w", rbErr))
	}
	return err
}

func (u *IndexUseCase) writeSecondary(ctx context.Context, file port.IndexedFile, items []port.VectorItem, removed []string) error {
	if u.opts.Keyword != nil {
		if err := u.opts.Keyword.ReplaceDocument(ctx, file.Doc.ID, file.Chunks); err != nil {
			return fmt.Errorf("keyword index: %w", err)
		}
	}
	if u.opts.Vectors == nil {
		return nil
	}
	if len(items) > 0 {
		if err := u.opts.Vectors.Upsert(ctx, items); err != nil {
			return fmt.Errorf("vector index: %w", err)
		}
	}

	current := make(map[string]struct{}, len(file.Chunks))
	for _, c := range file.Chunks {
		current[c.ID] = struct{}{}
	}
	var stale []string
	for _, id := range removed {
		if _, ok := current[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := u.opts.Vectors.Delete(ctx, stale); err != nil {
			return fmt.Errorf("vector index: %w", err)
		}
	}
	return nil
}

// Delete removes a document from every index.
func (u *IndexUseCase) Delete(ctx context.Context, docID string) error {
	u.writes.Lock()
	defer u.writes.Unlock()

	removed, err := u.store.DeleteDocument(docID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", docID, err)
	}
	if u.opts.Keyword != nil {
		if err := u.opts.Keyword.DeleteDocument(ctx, docID); err != nil {
			return fmt.Errorf("delete %s from keyword index: %w", docID, err)
		}
	}
	if u.opts.Vectors != nil && len(removed) > 0 {
		if err := u.opts.Vectors.Delete(ctx, removed); err != nil {
			return fmt.Errorf("delete %s from vector index: %w", docID, err)
		}
	}
	return nil
}

// Reset deletes every indexed document, ahead of a full rebuild.
func (u *IndexUseCase) Reset(ctx context.Context) error {
	docs, err := u.store.ListDocs()
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := u.Delete(ctx, doc.ID); err != nil {
			return err
		}
	}
	if u.opts.Cache != nil {
		u.opts.Cache.Invalidate()
	}
	return nil
}

// Segment runs the segmenter and the revocation annotator over one document
// and logs every recorded ambiguity.
func Segment(segmenter port.Segmenter, annotator port.Annotator, doc domain.Document, logger *slog.Logger) domain.Segmentation {
	seg := segmenter.Segment(doc)
	for _, issue := range seg.Issues {
		logging.OrDefault(logger).Warn("segmentation fell back to paragraphs",
			slog.String("doc", issue.DocID),
			slog.Int("line", issue.Line),
			slog.String("reason", issue.Reason),
		)
	}
	if annotator != nil {
		seg.Chunks = annotator.Annotate(doc, seg.Chunks)
	}
	return seg
}

// Postings builds the term -> chunk -> frequency map of a chunk set.
func Postings(chunks []domain.Chunk) map[string]map[string]int {
	postings := make(map[string]map[string]int)
	for _, c := range chunks {
		for _, token := range c.Tokens {
			if postings[token] == nil {
				postings[token] = make(map[string]int)
			}
			postings[token][c.ID]++
		}
	}
	return postings
}
