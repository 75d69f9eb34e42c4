package persistence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/trconf"
)

func TestJournalStore(t *testing.T) {
	t.Run("LoadNonExistent", func(t *testing.T) {
		store := NewJournalStore(filepath.Join(t.TempDir(), "nonexistent.json"))

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got != nil {
			t.Errorf("Load() = %v, want nil for non-existent file", got)
		}
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		store := NewJournalStore(filepath.Join(t.TempDir(), "sub", "frc.json"))
		params := uint8(0x07)
		created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		if err := store.Save(&trconf.Unwind{Session: "s-1", Created: created, DisableFrc: true, FrcParams: &params}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got == nil {
			t.Fatal("Load() = nil")
		}
		if got.Session != "s-1" || !got.DisableFrc || !got.Created.Equal(created) {
			t.Errorf("Load() = %+v", got)
		}
		if got.FrcParams == nil || *got.FrcParams != 0x07 {
			t.Errorf("FrcParams = %v, want 7", got.FrcParams)
		}
		if _, err := os.Stat(store.Path() + ".tmp"); !os.IsNotExist(err) {
			t.Errorf("temp file left behind: %v", err)
		}
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		store := NewJournalStore(filepath.Join(t.TempDir(), "frc.json"))
		params := uint8(3)
		if err := store.Save(&trconf.Unwind{DisableFrc: true, FrcParams: &params}); err != nil {
			t.Fatal(err)
		}
		if err := store.Save(&trconf.Unwind{DisableFrc: true}); err != nil {
			t.Fatal(err)
		}
		got, err := store.Load()
		if err != nil {
			t.Fatal(err)
		}
		if got.FrcParams != nil {
			t.Errorf("FrcParams = %v, want nil", *got.FrcParams)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		store := NewJournalStore(filepath.Join(t.TempDir(), "frc.json"))
		if err := store.Save(&trconf.Unwind{DisableFrc: true}); err != nil {
			t.Fatal(err)
		}
		if err := store.Clear(); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		got, err := store.Load()
		if err != nil || got != nil {
			t.Errorf("Load() after Clear = %v, %v", got, err)
		}
		if err := store.Clear(); err != nil {
			t.Errorf("second Clear() error = %v", err)
		}
	})

	t.Run("Corrupt", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "frc.json")
		if err := os.WriteFile(path, []byte("{"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := NewJournalStore(path).Load(); err == nil {
			t.Error("Load() of corrupt journal succeeded")
		}
	})
}
