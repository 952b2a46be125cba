// Package artifact resolves, decodes and caches the pre-trained budget models.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ErrArtifactNotFound is returned when no model exists for an area type.
var ErrArtifactNotFound = errors.New("model artifact not found")

// Info describes one stored artifact.
type Info struct {
	// Name is relative to the source root, e.g. "rural_model.json".
	Name string
	// Location is the fully qualified path or s3:// URL.
	Location string
	Size     int64
	ModTime  time.Time
	// ETag is empty for local files.
	ETag string
}

// sameVersion reports whether two infos describe the same artifact contents.
func (i Info) sameVersion(o Info) bool {
	return i.Location == o.Location &&
		i.Size == o.Size &&
		i.ModTime.Equal(o.ModTime) &&
		i.ETag == o.ETag
}

// Source is a place artifacts are read from.
type Source interface {
	// Stat returns ErrArtifactNotFound when name does not exist.
	Stat(ctx context.Context, name string) (Info, error)
	// Open returns a reader the caller must close.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// List returns every object directly under the root.
	List(ctx context.Context) ([]Info, error)
	String() string
}

// FileSource reads artifacts from a directory on local disk.
type FileSource struct {
	Root string
}

// NewFileSource returns a source rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{Root: dir}
}

func (s *FileSource) path(name string) string {
	return filepath.Join(s.Root, filepath.Base(name))
}

// Stat implements Source.
func (s *FileSource) Stat(_ context.Context, name string) (Info, error) {
	p := s.path(name)
	fi, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return Info{}, fmt.Errorf("%w: %s", ErrArtifactNotFound, p)
		}
		return Info{}, fmt.Errorf("stat %s: %w", p, err)
	}
	if fi.IsDir() {
		return Info{}, fmt.Errorf("%w: %s is a directory", ErrArtifactNotFound, p)
	}
	return fileInfo(p, fi), nil
}

// Open implements Source.
func (s *FileSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	p := s.path(name)
	f, err := os.Open(p) //nolint:gosec // path is confined to the model directory
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, p)
		}
		return nil, fmt.Errorf("opening %s: %w", p, err)
	}
	return f, nil
}

// List implements Source.
func (s *FileSource) List(_ context.Context) ([]Info, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", s.Root, err)
	}

	var out []Info
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, fileInfo(filepath.Join(s.Root, e.Name()), fi))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *FileSource) String() string {
	return s.Root
}

func fileInfo(path string, fi os.FileInfo) Info {
	return Info{
		Name:     filepath.Base(path),
		Location: path,
		Size:     fi.Size(),
		ModTime:  fi.ModTime(),
	}
}
