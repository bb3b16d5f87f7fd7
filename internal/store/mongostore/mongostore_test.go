package mongostore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/workmatch/api/internal/db"
	"github.com/workmatch/api/internal/store/storetest"
)

// Set WORKMATCH_TEST_MONGO_URI to a replica set to run these. Each run
// writes to its own database and drops it afterwards.
func TestStore(t *testing.T) {
	uri := os.Getenv("WORKMATCH_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("WORKMATCH_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	client, err := db.ConnectMongo(ctx, uri, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	name := fmt.Sprintf("workmatch_test_%d", time.Now().UnixNano())
	s := New(client, name)
	t.Cleanup(func() {
		_ = client.Database(name).Drop(context.Background())
		s.Close()
	})
	if err := s.EnsureIndexes(ctx); err != nil {
		t.Fatalf("indexes: %v", err)
	}

	storetest.Run(t, s)
}
