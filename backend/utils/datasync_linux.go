// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

//go:build linux

package utils

import "golang.org/x/sys/unix"

// Datasync forces the data of the given file to stable storage. On Linux,
// files backed by a descriptor are synced using fdatasync, skipping metadata
// updates that are not needed to read the data back.
func Datasync(f OsFile) error {
	if fd, ok := f.(fileDescriptor); ok {
		for {
			err := unix.Fdatasync(int(fd.Fd()))
			if err != unix.EINTR {
				return err
			}
		}
	}
	return f.Sync()
}
