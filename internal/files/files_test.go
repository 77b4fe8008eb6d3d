package files

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func touch(t *testing.T, root string, rel ...string) {
	t.Helper()
	for _, r := range rel {
		p := filepath.Join(root, r)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestFindFiles_WalksDirectory(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"a.jpg",
		"notes.txt",
		"sub/b.PNG",
		"sub/deep/c.mp4",
		".hidden/d.jpg",
		".e.jpg",
		"scan.nii.gz",
	)

	got, err := FindFiles([]string{root}, nil)
	if err != nil {
		t.Fatalf("FindFiles() error = %v", err)
	}
	want := []string{
		filepath.Join(root, "a.jpg"),
		filepath.Join(root, "scan.nii.gz"),
		filepath.Join(root, "sub", "b.PNG"),
		filepath.Join(root, "sub", "deep", "c.mp4"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FindFiles() = %v, want %v", got, want)
	}
}

func TestFindFiles_Exclude(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "a.jpg", "b.png", "skip/c.jpg", "keep/d.jpg")

	got, err := FindFiles([]string{root}, []string{"*.png", filepath.Join(root, "skip")})
	if err != nil {
		t.Fatalf("FindFiles() error = %v", err)
	}
	want := []string{
		filepath.Join(root, "a.jpg"),
		filepath.Join(root, "keep", "d.jpg"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("FindFiles() = %v, want %v", got, want)
	}
}

func TestFindFiles_ExplicitFile(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "a.jpg", "readme.md")

	got, err := FindFiles([]string{filepath.Join(root, "a.jpg"), root}, nil)
	if err != nil {
		t.Fatalf("FindFiles() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected duplicates to collapse, got %v", got)
	}

	_, err = FindFiles([]string{filepath.Join(root, "readme.md")}, nil)
	var unsupported *UnsupportedFileError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedFileError, got %v", err)
	}
}

func TestFindFiles_MissingRoot(t *testing.T) {
	if _, err := FindFiles([]string{filepath.Join(t.TempDir(), "missing")}, nil); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestIsRelativeTo(t *testing.T) {
	tests := []struct {
		path, root string
		want       bool
	}{
		{"/a/b/c.jpg", "/a", true},
		{"/a", "/a", true},
		{"/ab/c.jpg", "/a", false},
		{"/x/c.jpg", "/a", false},
		{"/a/..b/c.jpg", "/a", true},
	}
	for _, tt := range tests {
		if got := IsRelativeTo(tt.path, tt.root); got != tt.want {
			t.Errorf("IsRelativeTo(%q, %q) = %v, want %v", tt.path, tt.root, got, tt.want)
		}
	}
}
