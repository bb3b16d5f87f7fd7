package store

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/workmatch/api/internal/config"
	"github.com/workmatch/api/internal/store/memstore"
)

func TestOpen(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.Default()
	s, err := Open(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("Open(memory): %v", err)
	}
	if _, ok := s.(*memstore.Store); !ok {
		t.Errorf("Open(memory) = %T", s)
	}

	cfg.Store.Driver = "sqlite"
	if _, err := Open(context.Background(), cfg, logger); err == nil {
		t.Error("expected error for unknown driver")
	}
}
