package repo

import (
	"context"

	"github.com/angelmondragon/user-directory/pkg/db"
	"gorm.io/gorm"
)

// Base provides a shared foundation for domain repositories. Statements run
// on a context detached from the caller's cancellation: once issued, a store
// call completes and the caller decides whether to use the result.
type Base struct {
	gw db.Gateway
}

// NewBase constructs a Base repository backed by the provided gateway.
func NewBase(gw db.Gateway) Base {
	return Base{gw: gw}
}

// Raw runs a row-returning statement.
func (b Base) Raw(ctx context.Context, query string, args ...any) *gorm.DB {
	return b.gw.Raw(detach(ctx), query, args...)
}

// Exec runs a statement that returns no rows.
func (b Base) Exec(ctx context.Context, query string, args ...any) *gorm.DB {
	return b.gw.Exec(detach(ctx), query, args...)
}

func detach(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
