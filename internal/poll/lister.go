package poll

import (
	"context"
	"os"
	"path/filepath"

	apperrors "github.com/splatpipe/splatpipe/internal/errors"
)

// Entry is one directory entry seen by a Lister.
type Entry struct {
	// Name is the base name of the entry.
	Name string
	// Path is the entry's full path in the lister's namespace.
	Path string
	// Size is the file size in bytes, or -1 when the namespace does not report sizes.
	Size int64
}

// Lister enumerates a directory's entries in enumeration order.
type Lister interface {
	// List returns the current entries. An absent directory is an empty listing.
	List(ctx context.Context) ([]Entry, error)
	// Dir returns the directory being listed, for logs and errors.
	Dir() string
}

// Watchable is implemented by listers whose directory is on the local file
// system and can be watched for change events.
type Watchable interface {
	WatchDir() string
}

// DirLister lists a local directory, skipping subdirectories.
type DirLister struct {
	dir string
}

// NewDirLister creates a Lister for a local directory.
func NewDirLister(dir string) *DirLister {
	return &DirLister{dir: dir}
}

// Dir returns the listed directory.
func (l *DirLister) Dir() string {
	return l.dir
}

// WatchDir returns the directory to watch for events.
func (l *DirLister) WatchDir() string {
	return l.dir
}

// List reads the directory. Entries that vanish between the read and the
// stat are skipped.
func (l *DirLister) List(_ context.Context) ([]Entry, error) {
	dirEntries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.NewIOError("list", l.dir, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Name: de.Name(),
			Path: filepath.Join(l.dir, de.Name()),
			Size: info.Size(),
		})
	}
	return entries, nil
}
