package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/lncworks/casebilling/internal/store"
	"github.com/lncworks/casebilling/internal/store/storetest"
)

func makeSQLiteStore(t *testing.T) store.Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "billing.db"))
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := EnsureSchema(db); err != nil {
		t.Fatalf("sqlite schema: %v", err)
	}
	return New(db)
}

func TestSQLiteStore_Compliance(t *testing.T) {
	storetest.Run(t, makeSQLiteStore)
}
