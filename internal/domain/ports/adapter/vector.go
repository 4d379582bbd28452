package adapter

import "context"

// Document is one unit of content persisted for similarity search.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// Match is a search hit with its cosine similarity.
type Match struct {
	Document   Document
	Similarity float64
}

// VectorStore is the port for the similarity-storage backend.
type VectorStore interface {
	// AddDocuments embeds and stores the documents, returning their IDs.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)
	SearchSimilar(ctx context.Context, query string, limit int) ([]Match, error)
	DeleteBySketch(ctx context.Context, sketchID string) error
}
