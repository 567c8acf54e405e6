package store

import (
	"database/sql"
	"testing"

	"github.com/dukerupert/kidpoints/internal/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestFamilyCRUD(t *testing.T) {
	fs := NewFamilyStore(setupTestDB(t))

	f, err := fs.Create("Lovelace", "owner-1")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	if f.Name != "Lovelace" || f.OwnerUID != "owner-1" {
		t.Errorf("family = %+v", f)
	}
	if f.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}

	updated, err := fs.Update(f.ID, "Byron")
	if err != nil {
		t.Fatalf("update family: %v", err)
	}
	if updated.Name != "Byron" {
		t.Errorf("name = %q, want %q", updated.Name, "Byron")
	}

	if _, err := fs.Create("Second", "owner-2"); err != nil {
		t.Fatalf("create second family: %v", err)
	}
	all, err := fs.List()
	if err != nil {
		t.Fatalf("list families: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}
	if all[0].ID != f.ID {
		t.Errorf("first family = %d, want %d", all[0].ID, f.ID)
	}

	if err := fs.Delete(f.ID); err != nil {
		t.Fatalf("delete family: %v", err)
	}
	got, err := fs.GetByID(f.ID)
	if err != nil {
		t.Fatalf("get deleted family: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestFamilyTokenHash(t *testing.T) {
	fs := NewFamilyStore(setupTestDB(t))

	f, err := fs.Create("Lovelace", "")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}

	hash, err := fs.GetTokenHash(f.ID)
	if err != nil {
		t.Fatalf("get token hash: %v", err)
	}
	if hash != "" {
		t.Errorf("hash = %q, want empty", hash)
	}

	if err := fs.SetTokenHash(f.ID, "$2a$10$abc"); err != nil {
		t.Fatalf("set token hash: %v", err)
	}
	hash, err = fs.GetTokenHash(f.ID)
	if err != nil {
		t.Fatalf("get token hash: %v", err)
	}
	if hash != "$2a$10$abc" {
		t.Errorf("hash = %q", hash)
	}

	hash, err = fs.GetTokenHash(9999)
	if err != nil {
		t.Fatalf("get token hash for missing family: %v", err)
	}
	if hash != "" {
		t.Errorf("missing family hash = %q, want empty", hash)
	}
}
