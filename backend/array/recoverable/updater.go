// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package recoverable

import (
	"github.com/Fantom-foundation/Carmen-array/go/backend/array/arrayfile"
)

//go:generate mockgen -source updater.go -destination updater_mocks.go -package recoverable

// ArrayFileUpdater is the channel through which an EntryManager modifies
// the persisted array. All writes to the array file and its watermarks are
// funneled through it.
type ArrayFileUpdater interface {
	// UpdateArrayFile applies the given batches in SCN order, raising the
	// low-water-mark of the file after each batch.
	UpdateArrayFile(batches []arrayfile.Batch) error

	// SetHwmScn durably records that all values up to the given SCN have
	// been written to the redo log.
	SetHwmScn(scn int64) error

	// FlushArrayFile forces the array file to stable storage.
	FlushArrayFile() error
}

type fileUpdater struct {
	*arrayfile.ArrayFile
}

// NewFileUpdater creates an updater writing directly to the given array file.
func NewFileUpdater(file *arrayfile.ArrayFile) ArrayFileUpdater {
	return fileUpdater{file}
}

func (u fileUpdater) UpdateArrayFile(batches []arrayfile.Batch) error {
	return u.Update(batches)
}

func (u fileUpdater) FlushArrayFile() error {
	return u.Flush()
}
