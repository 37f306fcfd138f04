package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context carries the request context plus an optional transaction.
// Repos fall back to the shared pool when Tx is nil.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}
