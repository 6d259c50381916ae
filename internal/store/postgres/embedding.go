// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

// Package postgres is an EmbeddingStore backend on PostgreSQL via pgx.
package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docent-dev/docent/internal/store"
	docerr "github.com/docent-dev/docent/pkg/errors"
)

const connectTimeout = 10 * time.Second

func init() {
	store.RegisterBackend("postgres", func(cfg *store.StorageConfig) (store.EmbeddingStore, error) {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		return NewEmbeddingStore(ctx, cfg.DSN, cfg.Dimensions())
	})
}

var _ store.EmbeddingStore = (*EmbeddingStore)(nil)

// EmbeddingStore persists embedded fragments in a PostgreSQL table. The
// BIGSERIAL seq column is the insertion sequence.
type EmbeddingStore struct {
	pool       *pgxpool.Pool
	dimensions int
}

func NewEmbeddingStore(ctx context.Context, dsn string, dimensions int) (*EmbeddingStore, error) {
	if dsn == "" {
		return nil, docerr.New(docerr.CodeConfigValidateInvalidValue, "postgres backend requires storage.dsn")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, docerr.Wrap(err, docerr.CodeStoreDatabaseFailure, "connect postgres")
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &EmbeddingStore{pool: pool, dimensions: dimensions}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS embeddings (
			seq BIGSERIAL UNIQUE,
			id TEXT PRIMARY KEY,
			doc_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			page_num INTEGER,
			text TEXT NOT NULL,
			embedding BYTEA NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_embeddings_doc_seq ON embeddings (doc_id, seq);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return docerr.Wrapf(err, docerr.CodeStoreDatabaseFailure, "init schema failed on %q", stmt)
		}
	}
	return nil
}

func (s *EmbeddingStore) Append(ctx context.Context, rec *store.EmbeddingRecord) error {
	if err := rec.Validate(s.dimensions); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	meta := rec.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return docerr.Wrap(err, docerr.CodeStoreInvalidInput, "marshalling metadata")
	}

	var pageNum *int32
	if rec.PageNum != nil {
		n := int32(*rec.PageNum)
		pageNum = &n
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO embeddings (id, doc_id, kind, page_num, text, embedding, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING seq`,
		rec.ID,
		rec.DocID,
		string(rec.Kind),
		pageNum,
		rec.Text,
		store.EncodeVector(rec.Vector),
		metaJSON,
		rec.CreatedAt,
	).Scan(&rec.Seq)
	if err != nil {
		return docerr.Wrap(err, docerr.CodeStoreDatabaseFailure, "insert embedding", docerr.FieldDocID(rec.DocID))
	}
	return nil
}

func (s *EmbeddingStore) ListByDoc(ctx context.Context, docID string) ([]*store.EmbeddingRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT seq, id, doc_id, kind, page_num, text, embedding, metadata, created_at
		 FROM embeddings WHERE doc_id=$1 ORDER BY seq`,
		docID,
	)
	if err != nil {
		return nil, docerr.Wrap(err, docerr.CodeStoreDatabaseFailure, "query embeddings", docerr.FieldDocID(docID))
	}
	defer rows.Close()

	var out []*store.EmbeddingRecord
	for rows.Next() {
		var (
			r       store.EmbeddingRecord
			kind    string
			pageNum *int32
			blob    []byte
			meta    []byte
		)
		if err := rows.Scan(&r.Seq, &r.ID, &r.DocID, &kind, &pageNum, &r.Text, &blob, &meta, &r.CreatedAt); err != nil {
			return nil, docerr.Wrap(err, docerr.CodeStoreDatabaseFailure, "scan embedding row")
		}
		r.Kind = store.RecordKind(kind)
		if pageNum != nil {
			n := int(*pageNum)
			r.PageNum = &n
		}
		if r.Vector, err = store.DecodeVector(blob); err != nil {
			return nil, docerr.With(err, docerr.FieldDocID(docID))
		}
		if len(meta) > 0 && string(meta) != "{}" {
			if err := json.Unmarshal(meta, &r.Metadata); err != nil {
				return nil, docerr.Wrap(err, docerr.CodeStoreRecordDecodeFailed, "unmarshalling metadata")
			}
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, docerr.Wrap(err, docerr.CodeStoreDatabaseFailure, "iterate embedding rows")
	}
	return out, nil
}

func (s *EmbeddingStore) CountByDoc(ctx context.Context, docID string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM embeddings WHERE doc_id=$1`, docID).Scan(&n); err != nil {
		return 0, docerr.Wrap(err, docerr.CodeStoreDatabaseFailure, "count embeddings", docerr.FieldDocID(docID))
	}
	return n, nil
}

func (s *EmbeddingStore) Close() error {
	s.pool.Close()
	return nil
}
