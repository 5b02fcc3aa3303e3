// Package repository implements a small generic gorm-backed store shared by
// the ledger services for their read paths. Writes that must be transactional
// go through WithTrx so the whole submit commits or rolls back as one.
package repository

import (
	"context"

	"github.com/gridsettle/tributary/pkg/db/option"
	"gorm.io/gorm"
)

type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	Count(ctx context.Context, query *T) (int64, error)
	BatchCreate(ctx context.Context, resources []*T) error
}
