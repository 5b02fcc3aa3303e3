// Package option provides composable query options for the generic repository.
package option

import "gorm.io/gorm"

type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type orderBy struct {
	clause string
}

func (o orderBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Order(o.clause)
}

// WithOrderBy orders the result set, e.g. WithOrderBy("ordinal ASC").
func WithOrderBy(clause string) QueryOption {
	return orderBy{clause: clause}
}

type limit struct {
	n int
}

func (l limit) Apply(db *gorm.DB) *gorm.DB {
	return db.Limit(l.n)
}

func WithLimit(n int) QueryOption {
	return limit{n: n}
}

type offset struct {
	n int
}

func (o offset) Apply(db *gorm.DB) *gorm.DB {
	return db.Offset(o.n)
}

func WithOffset(n int) QueryOption {
	return offset{n: n}
}
