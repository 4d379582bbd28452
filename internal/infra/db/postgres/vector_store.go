package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"bidforge/internal/domain/ports/adapter"
	"bidforge/internal/infra/metrics"
)

const uniqueViolation = "23505"

var _ adapter.VectorStore = (*VectorStore)(nil)

// VectorStore persists embedding documents in a pgvector table and serves
// cosine-similarity search over them.
type VectorStore struct {
	pool     *pgxpool.Pool
	embedder adapter.Embedder
	table    string
	dims     int
	log      *zerolog.Logger
}

func NewVectorStore(pool *pgxpool.Pool, embedder adapter.Embedder, table string, dims int, log *zerolog.Logger) *VectorStore {
	if table == "" {
		table = "sketch_vectors"
	}
	return &VectorStore{pool: pool, embedder: embedder, table: table, dims: dims, log: log}
}

// EnsureSchema creates the extension and table if missing. Idempotent.
func (s *VectorStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id         TEXT PRIMARY KEY,
  content    TEXT NOT NULL,
  metadata   JSONB NOT NULL DEFAULT '{}',
  embedding  vector(%d),
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table, s.dims),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_sketch_idx ON %s ((metadata->>'sketch_id'))`, s.table, s.table),
	}
	for _, q := range stmts {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("ensure vector schema: %w", err)
		}
	}
	return nil
}

func (s *VectorStore) AddDocuments(ctx context.Context, docs []adapter.Document) (ids []string, err error) {
	defer func() { metrics.IncVectorOp("add", err) }()

	if len(docs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	const q = `INSERT INTO %s (id, content, metadata, embedding) VALUES ($1, $2, $3, $4::vector)`
	insert := fmt.Sprintf(q, s.table)

	ids = make([]string, 0, len(docs))
	for i, d := range docs {
		id := d.ID
		if id == "" {
			id = uuid.NewString()
		}
		meta, err := json.Marshal(d.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		if _, err := s.pool.Exec(ctx, insert, id, d.Content, meta, vectorLiteral(vectors[i])); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				s.log.Warn().Str("doc_id", id).Msg("duplicate vector document skipped")
				continue
			}
			return nil, fmt.Errorf("insert vector document: %w", err)
		}
		ids = append(ids, id)
	}
	metrics.AddVectorDocuments(len(ids))
	return ids, nil
}

func (s *VectorStore) SearchSimilar(ctx context.Context, query string, limit int) (out []adapter.Match, err error) {
	defer func() { metrics.IncVectorOp("search", err) }()

	if limit <= 0 {
		limit = 5
	}
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	q := fmt.Sprintf(`
SELECT id, content, metadata, 1 - (embedding <=> $1::vector) AS similarity
FROM %s
ORDER BY embedding <=> $1::vector
LIMIT $2`, s.table)

	rows, err := s.pool.Query(ctx, q, vectorLiteral(vectors[0]), limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			doc  adapter.Document
			meta []byte
			sim  float64
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &meta, &sim); err != nil {
			return nil, fmt.Errorf("scan vector row: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &doc.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		out = append(out, adapter.Match{Document: doc, Similarity: sim})
	}
	return out, rows.Err()
}

func (s *VectorStore) DeleteBySketch(ctx context.Context, sketchID string) (err error) {
	defer func() { metrics.IncVectorOp("delete", err) }()

	q := fmt.Sprintf(`DELETE FROM %s WHERE metadata->>'sketch_id' = $1`, s.table)
	_, err = s.pool.Exec(ctx, q, sketchID)
	return err
}

// vectorLiteral renders a pgvector input literal: [0.1,0.2,...]
func vectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
