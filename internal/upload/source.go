package upload

import (
	"path"
	"path/filepath"
	"strings"
)

// Source is one entry of a push request: either a Path to scan or a fully
// specified LocalFile. The set of implementations is closed.
type Source interface {
	uploadSource()
}

// Path is a local file or folder to expand by scanning.
type Path string

func (Path) uploadSource() {}

// LocalFile is a local file together with its own upload options.
type LocalFile struct {
	LocalPath string
	// Name overrides the remote item name; the base name of LocalPath by default.
	Name string
	// Path is the remote folder; "/" when empty.
	Path     string
	FPS      float64
	AsFrames bool
}

func (LocalFile) uploadSource() {}

func NewLocalFile(localPath string) LocalFile {
	return LocalFile{LocalPath: localPath}
}

func (f LocalFile) RemoteName() string {
	if f.Name != "" {
		return f.Name
	}
	return filepath.Base(f.LocalPath)
}

// RemotePath returns the remote folder in canonical "/a/b" form.
func (f LocalFile) RemotePath() string {
	p := strings.TrimSpace(filepath.ToSlash(f.Path))
	if p == "" || p == "." {
		return "/"
	}
	return path.Clean("/" + p)
}

// key identifies the file within one registration batch.
func (f LocalFile) key() string {
	return registrationKey(f.RemotePath(), f.RemoteName())
}

func registrationKey(remotePath, name string) string {
	return path.Join(path.Clean("/"+remotePath), name)
}
