package store

import (
	"testing"
)

// Compile-time checks that the interfaces are importable and usable.
func TestPoolStoreInterfaceExists(t *testing.T) {
	_ = ErrNotFound
	_ = ErrConcurrentModification
	_ = QueueFilter{}

	var _ PoolStore
	var _ Tx
	var _ Reader
}

func TestTxEmbedsReader(t *testing.T) {
	var tx Tx
	var r Reader = tx
	if r != nil {
		t.Fatal("expected nil reader from nil tx")
	}
}
