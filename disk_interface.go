package main

import (
	"errors"
	"os"
)

// errNotFound marks a path that none of the include directories contain.
var errNotFound = errors.New("not found in any include directory")

// DiskInterface abstracts the filesystem operations the tangler performs
// so tests can run against an in-memory tree and dry runs can rehearse
// emission without touching disk.
type DiskInterface interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	StatFile(path string) (os.FileInfo, error)
	MakeDirs(path string) error
	Rename(oldPath, newPath string) error
	Remove(path string) error
}

// RealDiskInterface is the production implementation backed by the OS.
type RealDiskInterface struct{}

func (RealDiskInterface) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (RealDiskInterface) WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func (RealDiskInterface) StatFile(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

func (RealDiskInterface) MakeDirs(path string) error {
	return os.MkdirAll(path, 0o755)
}

func (RealDiskInterface) Rename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

// Remove deletes path if it exists; a missing file is not an error.
func (RealDiskInterface) Remove(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
