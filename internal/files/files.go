// Package files expands local paths into the set of uploadable files.
package files

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// SupportedExtensions lists the file types the remote service accepts.
var SupportedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".svs": true,
	".tif": true, ".tiff": true, ".webp": true, ".jfif": true,
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".bpm": true,
	".dcm": true, ".pdf": true, ".nii": true, ".nii.gz": true, ".ndpi": true,
}

// UnsupportedFileError is returned when a file named explicitly has an
// extension outside SupportedExtensions.
type UnsupportedFileError struct {
	Path string
}

func (e *UnsupportedFileError) Error() string {
	return fmt.Sprintf("unsupported file type: %s", e.Path)
}

// IsSupported reports whether name has a supported extension.
func IsSupported(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".nii.gz") {
		return true
	}
	return SupportedExtensions[filepath.Ext(lower)]
}

// FindFiles expands roots into files. Directories are walked recursively,
// skipping hidden entries and unsupported extensions. Anything matching
// exclude is left out: an exclude entry matches the path itself, any path
// beneath it, or a base-name glob such as "*.png". The result keeps the
// order of roots and has no duplicates.
func FindFiles(roots []string, exclude []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)

	add := func(p string) {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if seen[abs] || excluded(abs, exclude) {
			return
		}
		seen[abs] = true
		out = append(out, p)
	}

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}

		if !info.IsDir() {
			if !IsSupported(root) {
				return nil, &UnsupportedFileError{Path: root}
			}
			add(root)
			continue
		}

		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if p != root && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !IsSupported(d.Name()) {
				return nil
			}
			add(p)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}
	return out, nil
}

func excluded(abs string, exclude []string) bool {
	base := filepath.Base(abs)
	for _, ex := range exclude {
		if ex == "" {
			continue
		}
		if ok, _ := filepath.Match(ex, base); ok {
			return true
		}
		exAbs, err := filepath.Abs(ex)
		if err != nil {
			continue
		}
		if IsRelativeTo(abs, exAbs) {
			return true
		}
	}
	return false
}

// IsRelativeTo reports whether path equals root or lies beneath it.
func IsRelativeTo(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
