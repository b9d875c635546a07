package upload

import (
	"testing"

	"github.com/spf13/afero"
)

func TestTempSet_ReleaseRemovesAllFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewTempStore(fs, testDir)
	set := store.NewSet()

	for _, ext := range []string{".png", ".pdf", ""} {
		f, err := set.Create(ext)
		if err != nil {
			t.Fatalf("Create(%q): %v", ext, err)
		}
		f.Write([]byte("data"))
		f.Close()
	}

	if n := countFiles(t, fs); n != 3 {
		t.Fatalf("files = %d, want 3", n)
	}

	if err := set.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if n := countFiles(t, fs); n != 0 {
		t.Errorf("files after release = %d, want 0", n)
	}
}

func TestTempSet_ReleaseIsIdempotent(t *testing.T) {
	fs := afero.NewMemMapFs()
	set := NewTempStore(fs, testDir).NewSet()

	f, err := set.Create(".png")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.Close()

	if err := set.Release(); err != nil {
		t.Fatalf("first Release: %v", err)
	}
	if err := set.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
}

func TestTempSet_ReleaseIgnoresAlreadyRemovedFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	set := NewTempStore(fs, testDir).NewSet()

	f, err := set.Create(".pdf")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.Close()
	fs.Remove(f.Name())

	if err := set.Release(); err != nil {
		t.Errorf("Release: %v, want nil", err)
	}
}

func TestTempSet_CreateAfterReleaseFails(t *testing.T) {
	set := NewTempStore(afero.NewMemMapFs(), testDir).NewSet()
	set.Release()

	if _, err := set.Create(".png"); err == nil {
		t.Fatal("Create after Release should fail")
	}
}

func TestTempSet_ReleaseRemovesFromOsFs(t *testing.T) {
	dir := t.TempDir()
	fs := afero.NewOsFs()
	set := NewTempStore(fs, dir).NewSet()

	f, err := set.Create(".jpg")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.Close()

	set.Release()

	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries after release = %d, want 0", len(entries))
	}
}
