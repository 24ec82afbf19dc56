package port

import "lexrag/internal/domain"

// Segmenter splits a legal document into ordered chunks. It never fails:
// unrecognised structure is reported through Segmentation.Issues.
type Segmenter interface {
	Segment(doc domain.Document) domain.Segmentation
}

// Annotator assigns the validity status of each chunk.
type Annotator interface {
	Annotate(doc domain.Document, chunks []domain.Chunk) []domain.Chunk
}
