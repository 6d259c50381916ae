// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/docent-dev/docent/internal/store"
	docerr "github.com/docent-dev/docent/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ store.EmbeddingStore = (*EmbeddingStore)(nil)

// EmbeddingStore implements store.EmbeddingStore backed by a single SQLite
// table. The implicit rowid is the insertion sequence.
type EmbeddingStore struct {
	db         *sql.DB
	dimensions int
	vecVersion string
}

// NewEmbeddingStore opens (or creates) a SQLite database at dbPath and
// ensures the embeddings table exists.
func NewEmbeddingStore(dbPath string, dimensions int) (*EmbeddingStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, docerr.Wrap(err, docerr.CodeStoreDatabaseFailure, "opening sqlite db", docerr.FieldPath(dbPath))
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, docerr.Wrap(err, docerr.CodeStoreDatabaseFailure, "pinging sqlite db", docerr.FieldPath(dbPath))
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, docerr.Wrap(err, docerr.CodeStoreDatabaseFailure, "migrating embeddings table")
	}

	var version string
	if err := db.QueryRow(`SELECT vec_version()`).Scan(&version); err != nil {
		_ = db.Close()
		return nil, docerr.Wrap(err, docerr.CodeStoreDatabaseFailure, "sqlite-vec extension not loaded")
	}

	return &EmbeddingStore{db: db, dimensions: dimensions, vecVersion: version}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS embeddings (
	id         TEXT PRIMARY KEY,
	doc_id     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	page_num   INTEGER,
	text       TEXT NOT NULL,
	embedding  BLOB NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL
)`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("creating embeddings table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_embeddings_doc ON embeddings(doc_id)`); err != nil {
		return fmt.Errorf("creating embeddings index: %w", err)
	}
	return nil
}

// VecVersion reports the loaded sqlite-vec extension version.
func (s *EmbeddingStore) VecVersion() string { return s.vecVersion }

// Append inserts a record. Seq is set from the generated rowid.
func (s *EmbeddingStore) Append(ctx context.Context, rec *store.EmbeddingRecord) error {
	if err := rec.Validate(s.dimensions); err != nil {
		return err
	}

	blob, err := sqlite_vec.SerializeFloat32(rec.Vector)
	if err != nil {
		return docerr.Wrap(err, docerr.CodeStoreInvalidInput, "serializing embedding")
	}

	metaJSON := []byte("{}")
	if len(rec.Metadata) > 0 {
		metaJSON, err = json.Marshal(rec.Metadata)
		if err != nil {
			return docerr.Wrap(err, docerr.CodeStoreInvalidInput, "marshalling metadata")
		}
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	var pageNum sql.NullInt64
	if rec.PageNum != nil {
		pageNum = sql.NullInt64{Int64: int64(*rec.PageNum), Valid: true}
	}

	const q = `INSERT INTO embeddings(id, doc_id, kind, page_num, text, embedding, metadata, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q,
		rec.ID, rec.DocID, string(rec.Kind), pageNum, rec.Text, blob, string(metaJSON),
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return docerr.Wrap(err, docerr.CodeStoreDatabaseFailure, "inserting embedding", docerr.FieldDocID(rec.DocID))
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return docerr.Wrap(err, docerr.CodeStoreDatabaseFailure, "reading rowid")
	}
	rec.Seq = seq
	return nil
}

// ListByDoc returns the document's records ordered by rowid.
func (s *EmbeddingStore) ListByDoc(ctx context.Context, docID string) ([]*store.EmbeddingRecord, error) {
	const q = `SELECT rowid, id, doc_id, kind, page_num, text, embedding, metadata, created_at
FROM embeddings WHERE doc_id = ? ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, q, docID)
	if err != nil {
		return nil, docerr.Wrap(err, docerr.CodeStoreDatabaseFailure, "querying embeddings", docerr.FieldDocID(docID))
	}
	defer func() { _ = rows.Close() }()

	var out []*store.EmbeddingRecord
	for rows.Next() {
		var (
			r         store.EmbeddingRecord
			kind      string
			pageNum   sql.NullInt64
			blob      []byte
			metaStr   string
			createdAt string
		)
		if err := rows.Scan(&r.Seq, &r.ID, &r.DocID, &kind, &pageNum, &r.Text, &blob, &metaStr, &createdAt); err != nil {
			return nil, docerr.Wrap(err, docerr.CodeStoreDatabaseFailure, "scanning embedding")
		}

		r.Kind = store.RecordKind(kind)
		if pageNum.Valid {
			n := int(pageNum.Int64)
			r.PageNum = &n
		}
		if r.Vector, err = store.DecodeVector(blob); err != nil {
			return nil, docerr.With(err, docerr.FieldDocID(docID))
		}
		if metaStr != "" && metaStr != "{}" {
			if err := json.Unmarshal([]byte(metaStr), &r.Metadata); err != nil {
				return nil, docerr.Wrap(err, docerr.CodeStoreRecordDecodeFailed, "unmarshalling metadata")
			}
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			r.CreatedAt = t
		}

		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, docerr.Wrap(err, docerr.CodeStoreDatabaseFailure, "iterating embeddings")
	}

	return out, nil
}

func (s *EmbeddingStore) CountByDoc(ctx context.Context, docID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings WHERE doc_id = ?`, docID).Scan(&n); err != nil {
		return 0, docerr.Wrap(err, docerr.CodeStoreDatabaseFailure, "counting embeddings", docerr.FieldDocID(docID))
	}
	return n, nil
}

// Close closes the underlying database connection.
func (s *EmbeddingStore) Close() error {
	return s.db.Close()
}
