package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/xhad/mmrag/internal/models"
	"github.com/xhad/mmrag/pkg/processor"
)

// SQLite is the default persistent store. Filters run in SQL and cosine
// ranking is computed in process, ties broken by insertion order.
type SQLite struct {
	db    *sql.DB
	table string
	path  string
}

func NewSQLite(config VectorStoreConfig) (*SQLite, error) {
	if config.Dir == "" {
		config.Dir = filepath.Join("data", "store")
	}
	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(config.Dir, "chunks.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLite{db: db, table: config.Collection, path: dbPath}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) initialize() error {
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			doc_id TEXT NOT NULL,
			source TEXT,
			type TEXT,
			chunk_index INTEGER,
			content TEXT,
			metadata TEXT,
			embedding BLOB
		)`, s.table)
	if _, err := s.db.Exec(createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	createIndex := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_doc_idx ON %s (doc_id)`, s.table, s.table)
	if _, err := s.db.Exec(createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

func (s *SQLite) Path() string {
	return s.path
}

func (s *SQLite) Upsert(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, doc_id, source, type, chunk_index, content, metadata, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			doc_id = excluded.doc_id,
			source = excluded.source,
			type = excluded.type,
			chunk_index = excluded.chunk_index,
			content = excluded.content,
			metadata = excluded.metadata,
			embedding = excluded.embedding`, s.table)

	for _, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		_, err = tx.ExecContext(ctx, stmt,
			c.ID,
			c.Metadata.DocID,
			c.Metadata.Source,
			c.Metadata.Type,
			c.Index,
			processor.SanitizeUTF8(c.Text),
			string(meta),
			float32SliceToBytes(c.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func whereSQL(where models.Where) (string, []any) {
	var conds []string
	var args []any
	if where.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, where.Source)
	}
	if where.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, where.Type)
	}
	if where.DocID != "" {
		conds = append(conds, "doc_id = ?")
		args = append(args, where.DocID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *SQLite) Query(ctx context.Context, embedding []float32, topK int, where models.Where) ([]models.SearchHit, error) {
	if topK <= 0 || len(embedding) == 0 {
		return nil, nil
	}
	clause, args := whereSQL(where)
	query := fmt.Sprintf(`SELECT content, metadata, embedding FROM %s%s ORDER BY rowid`, s.table, clause)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	type scored struct {
		score float64
		hit   models.SearchHit
	}
	var candidates []scored
	for rows.Next() {
		var content, meta string
		var blob []byte
		if err := rows.Scan(&content, &meta, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		hit := models.SearchHit{Text: content}
		if err := json.Unmarshal([]byte(meta), &hit.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
		candidates = append(candidates, scored{score: cosine(embedding, bytesToFloat32Slice(blob)), hit: hit})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	hits := make([]models.SearchHit, 0, len(candidates))
	for _, c := range candidates {
		hits = append(hits, c.hit)
	}
	return hits, nil
}

func (s *SQLite) Get(ctx context.Context, where models.Where) ([]models.StoredChunk, error) {
	clause, args := whereSQL(where)
	query := fmt.Sprintf(`SELECT id, metadata FROM %s%s ORDER BY rowid`, s.table, clause)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var out []models.StoredChunk
	for rows.Next() {
		var sc models.StoredChunk
		var meta string
		if err := rows.Scan(&sc.ID, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &sc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *SQLite) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.table)
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to delete chunk %s: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	// LIKE ignores ASCII case in SQLite, so compare the leading characters.
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE substr(id, 1, ?) = ?`, s.table)
	res, err := s.db.ExecContext(ctx, stmt, utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return 0, fmt.Errorf("failed to delete prefix %s: %w", prefix, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLite) Close() {
	if s.db != nil {
		s.db.Close()
	}
}
