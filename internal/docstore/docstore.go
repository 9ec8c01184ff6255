// Package docstore exposes read access to the document store owned by the
// upload pipeline. This subsystem never mutates its schema.
package docstore

import (
	"context"
	"errors"
)

const (
	FileTypeCV       = "cv"
	FileTypeJobOffer = "job_offer"
	FileTypeGeneric  = "document"
)

var ErrNotFound = errors.New("document not found")

// Document is the stored shape: extracted text plus a coarse, possibly
// wrong, file type tag.
type Document struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
	Text     string `json:"text"`
}

type Store interface {
	GetDocument(ctx context.Context, id string) (*Document, error)
}
