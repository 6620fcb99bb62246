// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"errors"
	"fmt"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// LockFileName is the name of the file marking exclusive ownership of a
// storage directory.
const LockFileName = "LOCK"

// LockFile is an inter-process synchronization primitive facilitating mutual
// exclusion of operations between processes. Internally, the lock holds an
// exclusive advisory lock on a file in the file system. The file itself is
// left in place when the lock is released.
//
// Note: the lock is held by the operating system on behalf of the owning
// process and is dropped automatically if the process ends without releasing
// it. A file left behind by a crashed process does not block new owners.
type LockFile interface {
	// Release releases the exclusive lock ownership provided by a valid
	// instance of this type. Each lock may only be released once.
	// Subsequent calls produce errors.
	Release() error
	// Valid checks whether this lock still owns the underlying resource
	// or whether it has already been released.
	Valid() bool
}

type lockFile struct {
	path           string
	fileDescriptor int
	held           bool
}

// CreateLockFile opens or creates a file with the given path and acquires an
// exclusive lock on it. The operation fails if the lock is currently held by
// another owner.
func CreateLockFile(path string) (LockFile, error) {
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR|unix.O_CLOEXEC, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return nil, errors.Join(
			fmt.Errorf("failed to acquire file lock %s: %w", path, err),
			unix.Close(fd),
		)
	}
	return &lockFile{path: path, fileDescriptor: fd, held: true}, nil
}

// LockDirectory acquires the lock file of the given storage directory.
func LockDirectory(directory string) (LockFile, error) {
	return CreateLockFile(filepath.Join(directory, LockFileName))
}

func (f *lockFile) Valid() bool {
	return f.held
}

func (f *lockFile) Release() error {
	if !f.held {
		return fmt.Errorf("unable to release invalid lock")
	}
	f.held = false
	err := errors.Join(
		unix.Flock(f.fileDescriptor, unix.LOCK_UN),
		unix.Close(f.fileDescriptor),
	)
	if err != nil {
		return fmt.Errorf("failed to release file lock %s: %w", f.path, err)
	}
	return nil
}
