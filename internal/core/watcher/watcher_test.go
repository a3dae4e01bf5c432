package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitFor(t *testing.T, changes <-chan []string, want string, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case paths := <-changes:
			for _, p := range paths {
				if p == want {
					return
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for change of %s", want)
		}
	}
}

func TestNew_RejectsNilCallback(t *testing.T) {
	w, err := New(100*time.Millisecond, nil, nil, nil, nil)
	if err == nil {
		t.Fatal("expected error for nil callback")
	}
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when callback is invalid")
	}
}

func TestWatcher(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 16)
	w, err := New(100*time.Millisecond, []string{"vendor"}, []string{"*.generated.php"}, []string{"php"}, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir, filepath.Join(tmpDir, "missing")}); err != nil {
		t.Fatal(err)
	}

	testFile := filepath.Join(tmpDir, "Controller.php")
	if err := os.WriteFile(testFile, []byte("<?php\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, testFile, 2*time.Second)

	// Excluded names and other extensions stay silent.
	for _, name := range []string{"Model.generated.php", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	select {
	case paths := <-changedFiles:
		t.Errorf("excluded files triggered a change: %v", paths)
	case <-time.After(500 * time.Millisecond):
	}

	// New directories are watched recursively after creation.
	subdir := filepath.Join(tmpDir, "Http")
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		t.Fatal(err)
	}
	subFile := filepath.Join(subdir, "Kernel.php")
	if err := os.WriteFile(subFile, []byte("<?php\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, subFile, 2*time.Second)
}

func TestWatcher_RenameTriggersChange(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 16)
	w, err := New(100*time.Millisecond, nil, nil, nil, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	oldPath := filepath.Join(tmpDir, "Old.php")
	newPath := filepath.Join(tmpDir, "New.php")
	if err := os.WriteFile(oldPath, []byte("<?php\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, newPath, 2*time.Second)
}

func TestWatcher_Filters(t *testing.T) {
	w, err := New(10*time.Millisecond, []string{"vendor", ".git"}, []string{"*.tmp.php"}, []string{".PHP", "inc"}, func([]string) {})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	cases := []struct {
		path     string
		excluded bool
	}{
		{path: "src/User.php", excluded: false},
		{path: "src/User.PHP", excluded: false},
		{path: "src/legacy.inc", excluded: false},
		{path: "src/main.py", excluded: true},
		{path: "src/cache.tmp.php", excluded: true},
	}
	for _, tc := range cases {
		if got := w.shouldExcludeFile(tc.path); got != tc.excluded {
			t.Errorf("shouldExcludeFile(%q) = %v, want %v", tc.path, got, tc.excluded)
		}
	}
	if !w.shouldExcludeDir("/project/vendor") {
		t.Error("expected vendor to be excluded")
	}
	if w.shouldExcludeDir("/project/src") {
		t.Error("expected src to be watched")
	}
}

func TestWatcher_BatchesAreSorted(t *testing.T) {
	changes := make(chan []string, 1)
	w, err := New(20*time.Millisecond, nil, nil, nil, func(paths []string) { changes <- paths })
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	w.scheduleChange("/b.php")
	w.scheduleChange("/a.php")
	w.scheduleChange("/b.php")

	select {
	case paths := <-changes:
		if len(paths) != 2 || paths[0] != "/a.php" || paths[1] != "/b.php" {
			t.Fatalf("unexpected batch %v", paths)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for debounced batch")
	}
}
