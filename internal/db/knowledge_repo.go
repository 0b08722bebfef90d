package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"agroia/internal/knowledge"
	"agroia/internal/types"
)

// KnowledgeRepository stores agronomy manual chunks and answers lexical
// queries with Postgres full-text search (portuguese configuration). It
// satisfies knowledge.Retriever.
type KnowledgeRepository struct {
	db DBTX
}

// NewKnowledgeRepository creates a new KnowledgeRepository backed by the given
// database connection.
func NewKnowledgeRepository(db DBTX) *KnowledgeRepository {
	return &KnowledgeRepository{db: db}
}

// Search returns up to k chunk texts ordered by rank. An empty topic searches
// the whole base. Chunks that match none of the query terms still rank (at
// zero) so the caller always receives the nearest available text.
func (r *KnowledgeRepository) Search(ctx context.Context, query, topic string, k int) ([]string, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT content
		 FROM knowledge_chunks
		 WHERE ($2 = '' OR topic = $2)
		 ORDER BY ts_rank(search_vector, plainto_tsquery('portuguese', $1)) DESC, id
		 LIMIT $3`,
		strings.TrimSpace(query), topic, k)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamKnowledge, "failed to query knowledge base", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, types.NewAppError(types.ErrCodeUpstreamKnowledge, "failed to scan knowledge chunk", err)
		}
		out = append(out, content)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamKnowledge, "error iterating knowledge chunks", err)
	}
	return out, nil
}

// Import bulk-loads documents with COPY.
func (r *KnowledgeRepository) Import(ctx context.Context, cp Copier, docs []knowledge.Document) (int64, error) {
	n, err := cp.CopyFrom(ctx, pgx.Identifier{"knowledge_chunks"}, []string{"doc_id", "topic", "content"},
		pgx.CopyFromSlice(len(docs), func(i int) ([]any, error) {
			return []any{docs[i].ID, docs[i].Topic, docs[i].Text}, nil
		}))
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to import knowledge chunks", err)
	}
	return n, nil
}

// Count returns the number of stored chunks.
func (r *KnowledgeRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM knowledge_chunks`).Scan(&n); err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count knowledge chunks", err)
	}
	return n, nil
}
