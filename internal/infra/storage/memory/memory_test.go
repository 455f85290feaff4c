package memory

import (
	"testing"

	"github.com/vietddude/newsfeed/internal/infra/storage/storagetest"
)

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()
	storagetest.Run(t, s)

	if s.Len() == 0 {
		t.Errorf("expected keys to remain after the suite")
	}
}
