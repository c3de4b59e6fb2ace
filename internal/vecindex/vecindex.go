// Package vecindex is the direct PostgreSQL adapter for the embeddings
// table. It speaks pgvector: cosine nearest-neighbor queries use the <=>
// operator so they hit the ivfflat index built with vector_cosine_ops.
package vecindex

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/coachai/coachai/internal/knowledge"
)

// DB is the subset of pgxpool.Pool the index needs.
// Defined here, on the consumer side, so tests can substitute a pool
// talking to a throwaway container or any compatible connection.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Index performs embedding writes and vector search against PostgreSQL.
// It implements knowledge.VectorIndex.
// Safe for concurrent use; all state lives in the connection pool.
type Index struct {
	db     DB
	logger *slog.Logger
}

// New creates an Index. A nil logger falls back to slog.Default().
func New(db DB, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		db:     db,
		logger: logger,
	}
}

// Insert stores one embedding row for the given source entity and returns
// the assigned embedding id.
func (ix *Index) Insert(ctx context.Context, sourceTable, sourceID string, vec []float32, metadata map[string]string) (string, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("marshaling embedding metadata: %w", err)
	}

	var id string
	err = ix.db.QueryRow(ctx,
		`INSERT INTO embeddings (source_table, source_id, embedding, metadata)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id::text`,
		sourceTable, sourceID, pgvector.NewVector(vec), metadataJSON,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("inserting embedding for %s/%s: %w", sourceTable, sourceID, err)
	}

	ix.logger.Debug("embedding inserted",
		"source_table", sourceTable, "source_id", sourceID, "embedding_id", id)
	return id, nil
}

// DeleteBySource removes all embeddings owned by the given source entity.
// Returns whether any row was deleted.
func (ix *Index) DeleteBySource(ctx context.Context, sourceTable, sourceID string) (bool, error) {
	tag, err := ix.db.Exec(ctx,
		`DELETE FROM embeddings WHERE source_table = $1 AND source_id = $2`,
		sourceTable, sourceID,
	)
	if err != nil {
		return false, fmt.Errorf("deleting embeddings for %s/%s: %w", sourceTable, sourceID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Search returns up to topK matches for the query vector within one
// source table, ordered by cosine distance ascending.
func (ix *Index) Search(ctx context.Context, vec []float32, sourceTable string, topK int) ([]knowledge.Match, error) {
	if topK < 1 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	rows, err := ix.db.Query(ctx,
		`SELECT source_id::text, metadata, embedding <=> $1 AS distance
		 FROM embeddings
		 WHERE source_table = $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		pgvector.NewVector(vec), sourceTable, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("vector search in %s: %w", sourceTable, err)
	}
	defer rows.Close()

	var matches []knowledge.Match
	for rows.Next() {
		var (
			m        knowledge.Match
			metaJSON []byte
		)
		if err := rows.Scan(&m.SourceID, &metaJSON, &m.Distance); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &m.Metadata); err != nil {
				ix.logger.Warn("failed to parse embedding metadata",
					"source_id", m.SourceID, "error", err)
				m.Metadata = map[string]string{}
			}
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search rows: %w", err)
	}

	return matches, nil
}
