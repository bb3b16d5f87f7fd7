package pgstore

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/workmatch/api/internal/db"
	"github.com/workmatch/api/internal/store/storetest"
)

// Set WORKMATCH_TEST_PG_DSN to a disposable database to run these.
func TestStore(t *testing.T) {
	dsn := os.Getenv("WORKMATCH_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("WORKMATCH_TEST_PG_DSN not set")
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := db.Migrate(dsn, logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	pool, err := db.ConnectPostgres(context.Background(), dsn, logger)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	s := New(pool)
	t.Cleanup(func() { s.Close() })

	storetest.Run(t, s)
}
