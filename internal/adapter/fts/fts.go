// Package fts is the SQLite FTS5 keyword index backend. Chunk text is indexed
// with the unicode61 tokenizer (diacritics removed) and queried with
// prefix matches on the stems produced by the analyzer.
package fts

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"lexrag/internal/domain"
	"lexrag/internal/port"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
    rowid    INTEGER PRIMARY KEY,
    chunk_id TEXT NOT NULL UNIQUE,
    doc_id   TEXT NOT NULL,
    status   TEXT NOT NULL,
    category TEXT NOT NULL,
    source   TEXT NOT NULL,
    content  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks(doc_id);

CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
    content, content='chunks', content_rowid='rowid',
    tokenize='unicode61 remove_diacritics 2'
);

CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
    INSERT INTO chunks_fts(rowid, content) VALUES (new.rowid, new.content);
END;
CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
    INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES('delete', old.rowid, old.content);
END;
`

// Index implements port.KeywordIndex and port.KeywordWriter.
type Index struct {
	db        *sql.DB
	tokenizer port.Tokenizer
}

func Open(path string, tokenizer port.Tokenizer) (*Index, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening keyword index: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating keyword schema: %w", err)
	}
	return &Index{db: db, tokenizer: tokenizer}, nil
}

func (ix *Index) Close() error {
	return ix.db.Close()
}

// ReplaceDocument swaps the indexed chunks of a document in one transaction.
func (ix *Index) ReplaceDocument(ctx context.Context, docID string, chunks []domain.Chunk) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", docID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (chunk_id, doc_id, status, category, source, content) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, docID, string(c.Status), string(c.Category), c.Source, c.Content); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

func (ix *Index) DeleteDocument(ctx context.Context, docID string) error {
	_, err := ix.db.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID)
	return err
}

// Search ranks chunks by FTS5 bm25. Scores are negated so higher is better;
// equal scores are ordered by chunk id.
func (ix *Index) Search(ctx context.Context, query string, k int, filter domain.Filters) ([]domain.Hit, error) {
	match := matchExpr(ix.tokenizer.Tokenize(query))
	if match == "" || k <= 0 {
		return nil, nil
	}

	var where []string
	args := []any{match}
	if !filter.IncludeRevoked {
		where = append(where, "c.status != ?")
		args = append(args, string(domain.StatusRevoked))
	}
	if len(filter.Categories) > 0 {
		where = append(where, "c.category IN ("+placeholders(len(filter.Categories))+")")
		for _, cat := range filter.Categories {
			args = append(args, string(cat))
		}
	}
	if len(filter.Sources) > 0 {
		where = append(where, "c.source IN ("+placeholders(len(filter.Sources))+")")
		for _, src := range filter.Sources {
			args = append(args, src)
		}
	}
	args = append(args, k)

	q := `SELECT c.chunk_id, bm25(chunks_fts) AS score
		FROM chunks_fts f
		JOIN chunks c ON c.rowid = f.rowid
		WHERE chunks_fts MATCH ?`
	for _, w := range where {
		q += " AND " + w
	}
	q += ` ORDER BY score, c.chunk_id LIMIT ?`

	rows, err := ix.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var hits []domain.Hit
	for rows.Next() {
		var h domain.Hit
		var score float64
		if err := rows.Scan(&h.ChunkID, &score); err != nil {
			return nil, fmt.Errorf("scan keyword hit: %w", err)
		}
		h.Score = -score
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// matchExpr ORs prefix queries over the distinct stems. Stems are folded
// letters and digits, quoting keeps FTS5 operators out of user input.
func matchExpr(stems []string) string {
	seen := make(map[string]struct{}, len(stems))
	terms := make([]string, 0, len(stems))
	for _, s := range stems {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		terms = append(terms, `"`+strings.ReplaceAll(s, `"`, `""`)+`"*`)
	}
	return strings.Join(terms, " OR ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
