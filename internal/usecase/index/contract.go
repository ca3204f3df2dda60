package index

import (
	"context"

	"github.com/kailas-cloud/castrank/internal/db"
	"github.com/kailas-cloud/castrank/internal/repository/passage"
)

// PassageWriter stores passages and exposes the key prefix the index covers.
type PassageWriter interface {
	Put(ctx context.Context, passages []passage.Passage) error
	KeyPrefix() string
}

// IndexManager manages the FT index lifecycle.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	IndexSize(ctx context.Context, name string) (int, error)
}
