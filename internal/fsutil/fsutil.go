// Package fsutil holds the file operations shared by the pipeline stages.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Exists reports whether name exists.
func Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// SameFile reports whether a and b name the same existing file.
func SameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

// CopyFile copies src to dst with src's permission bits. The copy is
// written to a temporary file next to dst and renamed over it, so an
// existing dst is replaced even when it is read-only.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		os.Remove(tmpName)
		return err
	}
	return ReplaceFile(tmpName, dst)
}

// MoveFile renames src to dst, falling back to copy and remove when the
// rename fails (for example across volumes). dst must not exist.
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	if err := CopyFile(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

// ForceRemove makes name writable and removes it. A missing file is not an error.
func ForceRemove(name string) error {
	if _, err := os.Lstat(name); os.IsNotExist(err) {
		return nil
	}
	// Read-only files cannot be removed on Windows
	_ = os.Chmod(name, 0777)
	return os.Remove(name)
}

// WriteFileAtomic writes data to a temporary file next to name and renames
// it into place, replacing any existing file.
func WriteFileAtomic(name string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(name), "."+filepath.Base(name)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	return ReplaceFile(tmpName, name)
}

// ReplaceFile renames src over dst. Windows refuses to rename over a
// read-only file, so dst is removed and the rename retried once.
func ReplaceFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := ForceRemove(dst); err != nil {
		os.Remove(src)
		return err
	}
	if err := os.Rename(src, dst); err != nil {
		os.Remove(src)
		return err
	}
	return nil
}
