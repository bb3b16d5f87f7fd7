package memstore

import (
	"testing"

	"github.com/workmatch/api/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, New())
}
