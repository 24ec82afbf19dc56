package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrParseAmbiguity marks a document whose structure could not be
	// recognised. It never aborts ingestion; the document is chunked by
	// paragraphs instead.
	ErrParseAmbiguity = errors.New("ambiguous legal structure")

	// ErrIndexUnavailable means no retrieval leg could answer.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrLegFailure means one retrieval leg failed and the other carried the query.
	ErrLegFailure = errors.New("retrieval leg failed")

	ErrRerankerUnavailable = errors.New("reranker unavailable")

	ErrEmptyQuery = errors.New("empty query")
)
