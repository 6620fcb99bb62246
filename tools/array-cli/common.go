// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/Fantom-foundation/Carmen-array/go/backend/array/arrayfile"
	"github.com/Fantom-foundation/Carmen-array/go/backend/array/recoverable"
	"github.com/Fantom-foundation/Carmen-array/go/backend/array/redolog"
	"github.com/Fantom-foundation/Carmen-array/go/common"
	"github.com/urfave/cli/v2"
)

var (
	dirFlag = cli.StringFlag{
		Name:     "dir",
		Usage:    "the targeted array directory",
		Required: true,
	}
)

// storage bundles the persistent parts of an array directory. The typed
// in-memory image is not loaded; elements are handled as raw bytes.
type storage struct {
	directory string
	variant   recoverable.LogVariant
	lock      common.LockFile
	file      *arrayfile.ArrayFile
	log       redolog.Log
}

func openStorage(dir string) (*storage, error) {
	lock, err := common.LockDirectory(dir)
	if err != nil {
		return nil, fmt.Errorf("array directory %s is in use or inaccessible: %w", dir, err)
	}
	file, err := arrayfile.OpenExisting(filepath.Join(dir, recoverable.ArrayFileName))
	if err != nil {
		return nil, errors.Join(err, lock.Release())
	}
	variant := recoverable.DetectLogVariant(dir)
	log, err := recoverable.OpenLog(dir, variant)
	if err != nil {
		return nil, errors.Join(err, file.Close(), lock.Release())
	}
	return &storage{
		directory: dir,
		variant:   variant,
		lock:      lock,
		file:      file,
		log:       log,
	}, nil
}

func (s *storage) Close() error {
	return errors.Join(
		s.log.Close(),
		s.file.Close(),
		s.lock.Release(),
	)
}

// withStorage runs the given operation on the storage of the directory
// selected by the command line flags.
func withStorage(ctx *cli.Context, op func(*storage) error) (err error) {
	s, err := openStorage(ctx.String(dirFlag.Name))
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.Close())
	}()
	return op(s)
}
