package blob

import (
	"errors"
	"testing"
)

func openTestStore(t *testing.T, dir string) *Store {
	t.Helper()
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open(%q) error: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() error: %v", err)
		}
	})
	return store
}

func TestStore_RoundTrip(t *testing.T) {
	store := openTestStore(t, t.TempDir())

	if _, ok, err := store.Get("missing"); err != nil || ok {
		t.Errorf("Get(missing) = ok=%v, err=%v; want absent", ok, err)
	}

	if err := store.Set("k", []byte("v1")); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	got, ok, err := store.Get("k")
	if err != nil || !ok {
		t.Fatalf("Get() = ok=%v, err=%v", ok, err)
	}
	if string(got) != "v1" {
		t.Errorf("Get() = %q, want %q", got, "v1")
	}

	// Overwrite replaces the value.
	if err := store.Set("k", []byte("v2")); err != nil {
		t.Fatalf("Set(overwrite) error: %v", err)
	}
	got, _, _ = store.Get("k")
	if string(got) != "v2" {
		t.Errorf("Get() after overwrite = %q, want %q", got, "v2")
	}

	if err := store.Delete("k"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, ok, _ := store.Get("k"); ok {
		t.Error("key present after delete")
	}

	// Deleting an absent key is not an error.
	if err := store.Delete("k"); err != nil {
		t.Errorf("Delete(absent) error: %v", err)
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := store.Set("k", []byte("survives")); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	reopened := openTestStore(t, dir)
	got, ok, err := reopened.Get("k")
	if err != nil || !ok {
		t.Fatalf("Get() after reopen = ok=%v, err=%v", ok, err)
	}
	if string(got) != "survives" {
		t.Errorf("Get() = %q", got)
	}
}

func TestOpen_SecondInstanceFails(t *testing.T) {
	dir := t.TempDir()
	openTestStore(t, dir)

	_, err := Open(dir)
	if !errors.Is(err, ErrLocked) {
		t.Errorf("second Open() error = %v, want ErrLocked", err)
	}
}
