package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

func exerciseFileSystem(t *testing.T, fsys FileSystem, root string) {
	t.Helper()
	dir := filepath.Join(root, "cameras", "0")
	file := filepath.Join(dir, "camera_matrix.json")

	if fsys.Exists(file) {
		t.Fatal("file exists before it was written")
	}
	if _, err := fsys.ReadFile(file); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("ReadFile on missing file: got %v, want ErrNotExist", err)
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if !fsys.Exists(dir) {
		t.Error("directory missing after MkdirAll")
	}
	if err := fsys.WriteFile(file, []byte(`[[1,0,0],[0,1,0],[0,0,1]]`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := fsys.ReadFile(file)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != `[[1,0,0],[0,1,0],[0,0,1]]` {
		t.Errorf("ReadFile = %q", got)
	}

	if err := fsys.RemoveAll(filepath.Join(root, "cameras")); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if fsys.Exists(file) || fsys.Exists(dir) {
		t.Error("RemoveAll left entries behind")
	}
	if err := fsys.RemoveAll(filepath.Join(root, "cameras")); err != nil {
		t.Errorf("RemoveAll on missing path: %v", err)
	}
}

func TestOSFileSystem(t *testing.T) {
	exerciseFileSystem(t, OSFileSystem{}, t.TempDir())
}

func TestMemoryFileSystem(t *testing.T) {
	exerciseFileSystem(t, NewMemoryFileSystem(), "calibration")
}

func TestMemoryFileSystemCopiesData(t *testing.T) {
	m := NewMemoryFileSystem()
	data := []byte("abc")
	if err := m.WriteFile("f", data, 0o644); err != nil {
		t.Fatal(err)
	}
	data[0] = 'x'
	got, _ := m.ReadFile("f")
	got[1] = 'y'
	again, _ := m.ReadFile("f")
	if string(again) != "abc" {
		t.Errorf("stored data was aliased: %q", again)
	}
}

func TestMemoryFileSystemSiblingPrefix(t *testing.T) {
	m := NewMemoryFileSystem()
	_ = m.WriteFile(filepath.Join("cal", "1", "a"), nil, 0o644)
	_ = m.WriteFile(filepath.Join("cal", "10", "a"), nil, 0o644)
	_ = m.RemoveAll(filepath.Join("cal", "1"))
	if !m.Exists(filepath.Join("cal", "10", "a")) {
		t.Error("RemoveAll removed a sibling sharing a name prefix")
	}
}
