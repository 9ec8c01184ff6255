package postgres

import (
	"context"
	"errors"

	"github.com/applypilot/applypilot/internal/docstore"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DocumentRepository reads the documents table owned by the upload pipeline.
type DocumentRepository struct {
	pool *pgxpool.Pool
}

func (r *DocumentRepository) GetDocument(ctx context.Context, id string) (*docstore.Document, error) {
	var doc docstore.Document
	err := r.pool.QueryRow(ctx,
		`SELECT id, file_name, file_type, extracted_text FROM documents WHERE id = $1`,
		id,
	).Scan(&doc.ID, &doc.FileName, &doc.FileType, &doc.Text)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &doc, nil
}
