// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

//go:generate mockgen -source file.go -destination file_mocks.go -package utils

// OsFile interface represents the positional subset of the methods of the
// build-in os.File struct used by fixed-layout storage files. This interface
// is provided to enable mocking.
type OsFile interface {
	ReadAt(b []byte, off int64) (n int, err error)
	WriteAt(b []byte, off int64) (n int, err error)
	Stat() (os.FileInfo, error)
	Truncate(size int64) error
	Sync() error
	Close() error
}

// fileDescriptor is implemented by OsFile instances backed by an OS file
// handle, enabling cheaper data-only synchronization.
type fileDescriptor interface {
	Fd() uintptr
}

// WriteFileAtomically replaces the content of the file at the given path
// such that a crash leaves either the old or the new content behind. The data
// is written to a temporary file, synced, and renamed to the target path;
// finally the parent directory is synced to make the rename durable.
func WriteFileAtomically(path string, data []byte) error {
	tmp := path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	n, err := file.Write(data)
	if err == nil && n != len(data) {
		err = fmt.Errorf("failed to write sufficient bytes to file, wanted %d, got %d", len(data), n)
	}
	if err == nil {
		err = file.Sync()
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return SyncDirectory(filepath.Dir(path))
}

// SyncDirectory flushes the directory entry table of the given directory,
// making file creations, renames and removals within it durable.
func SyncDirectory(path string) error {
	dir, err := os.Open(path)
	if err != nil {
		return err
	}
	if err := dir.Sync(); err != nil {
		dir.Close()
		return err
	}
	return dir.Close()
}
