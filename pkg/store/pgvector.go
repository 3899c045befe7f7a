package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/mmrag/internal/models"
	"github.com/xhad/mmrag/pkg/processor"
)

type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*VectorStore, error) {
	if config.Collection == "" {
		config.Collection = "documents"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768 // Default for Gemini text-embedding-004
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	// Enable pgvector extension
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			doc_id TEXT NOT NULL,
			source TEXT,
			type TEXT,
			chunk_index INTEGER,
			content TEXT,
			embedding vector(%d),
			metadata JSONB
		)`, vs.config.Collection, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		vs.config.Collection, vs.config.Collection)

	_, err = vs.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	createDocIndex := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_doc_idx ON %s (doc_id)`,
		vs.config.Collection, vs.config.Collection)
	if _, err := vs.pool.Exec(ctx, createDocIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

func (vs *VectorStore) Upsert(ctx context.Context, chunks []models.Chunk) error {
	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, doc_id, source, type, chunk_index, content, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			doc_id = EXCLUDED.doc_id,
			source = EXCLUDED.source,
			type = EXCLUDED.type,
			chunk_index = EXCLUDED.chunk_index,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`,
		vs.config.Collection)

	// Insert chunks in batches, one transaction per batch
	for start := 0; start < len(chunks); start += vs.config.BatchSize {
		end := start + vs.config.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		batch := &pgx.Batch{}
		for _, c := range chunks[start:end] {
			meta, err := json.Marshal(c.Metadata)
			if err != nil {
				return fmt.Errorf("failed to encode metadata: %w", err)
			}
			batch.Queue(stmt,
				c.ID,
				c.Metadata.DocID,
				c.Metadata.Source,
				c.Metadata.Type,
				c.Index,
				processor.SanitizeUTF8(c.Text),
				pgvector.NewVector(c.Embedding),
				meta,
			)
		}

		tx, err := vs.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("failed to upsert chunks: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
	}

	return nil
}

const pgWhere = `($1::text = '' OR source = $1::text) AND ($2::text = '' OR type = $2::text) AND ($3::text = '' OR doc_id = $3::text)`

func (vs *VectorStore) Query(ctx context.Context, queryEmbedding []float32, topK int, where models.Where) ([]models.SearchHit, error) {
	if topK <= 0 || len(queryEmbedding) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT content, metadata
		FROM %s
		WHERE %s
		ORDER BY embedding <=> $4
		LIMIT $5`,
		vs.config.Collection, pgWhere)

	rows, err := vs.pool.Query(ctx, query,
		where.Source, where.Type, where.DocID, pgvector.NewVector(queryEmbedding), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var hits []models.SearchHit
	for rows.Next() {
		var hit models.SearchHit
		var meta []byte
		if err := rows.Scan(&hit.Text, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal(meta, &hit.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
		hits = append(hits, hit)
	}

	return hits, rows.Err()
}

func (vs *VectorStore) Get(ctx context.Context, where models.Where) ([]models.StoredChunk, error) {
	query := fmt.Sprintf(`SELECT id, metadata FROM %s WHERE %s ORDER BY doc_id, chunk_index`,
		vs.config.Collection, pgWhere)
	rows, err := vs.pool.Query(ctx, query, where.Source, where.Type, where.DocID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var out []models.StoredChunk
	for rows.Next() {
		var sc models.StoredChunk
		var meta []byte
		if err := rows.Scan(&sc.ID, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal(meta, &sc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (vs *VectorStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, vs.config.Collection)
	if _, err := vs.pool.Exec(ctx, stmt, ids); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

func (vs *VectorStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE id LIKE $1 ESCAPE '\'`, vs.config.Collection)
	tag, err := vs.pool.Exec(ctx, stmt, escapeLike(prefix)+"%")
	if err != nil {
		return 0, fmt.Errorf("failed to delete prefix %s: %w", prefix, err)
	}
	return int(tag.RowsAffected()), nil
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}
