package repo

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type recordingGateway struct {
	conn    *gorm.DB
	lastCtx context.Context
}

func (g *recordingGateway) Raw(ctx context.Context, query string, args ...any) *gorm.DB {
	g.lastCtx = ctx
	return g.conn.WithContext(ctx).Raw(query, args...)
}

func (g *recordingGateway) Exec(ctx context.Context, query string, args ...any) *gorm.DB {
	g.lastCtx = ctx
	return g.conn.WithContext(ctx).Exec(query, args...)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	return conn
}

type ctxKey struct{}

func TestBaseRaw_DetachesCancellation(t *testing.T) {
	gw := &recordingGateway{conn: newTestDB(t)}
	base := NewBase(gw)

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "value"))
	cancel()

	var one int
	if err := base.Raw(ctx, "SELECT 1").Scan(&one).Error; err != nil {
		t.Fatalf("expected query to run despite cancelled caller: %v", err)
	}
	if one != 1 {
		t.Fatalf("expected 1, got %d", one)
	}
	if gw.lastCtx.Err() != nil {
		t.Fatalf("expected detached context, got err %v", gw.lastCtx.Err())
	}
	if gw.lastCtx.Value(ctxKey{}) != "value" {
		t.Fatal("expected context values to flow through")
	}
}

func TestBaseExec_NilContext(t *testing.T) {
	gw := &recordingGateway{conn: newTestDB(t)}
	base := NewBase(gw)

	if err := base.Exec(nil, "CREATE TABLE t (id INTEGER)").Error; err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	if gw.lastCtx == nil {
		t.Fatal("expected background context for nil caller context")
	}
}
