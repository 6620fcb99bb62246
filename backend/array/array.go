// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package array

import (
	"github.com/Fantom-foundation/Carmen-array/go/common"
)

// RecoverableArray is a fixed-length array of fixed-size elements whose
// updates are recorded in a redo log before being applied to the array file.
// Every update is assigned a sequence number (SCN); after a crash, the array
// is restored by replaying all logged updates not yet reflected in the file.
type RecoverableArray[V any] interface {
	// Length returns the number of elements of the array.
	Length() int

	// HasIndex tests whether the given index is within the array bounds.
	HasIndex(index int) bool

	// Get returns the current value of the given element.
	Get(index int) (V, error)

	// Set updates the given element and returns the SCN assigned to the
	// update. The update becomes durable with the entry it is part of or
	// with the next Sync or Persist call. If the update was logged but
	// could not be applied, its SCN is returned together with the error;
	// the value is visible and is recovered when the array is reopened.
	Set(index int, value V) (int64, error)

	// Sync applies all logged updates to the array file. Writers are
	// blocked until all entries are applied.
	Sync() error

	// Persist is Sync followed by a durability barrier on the array file.
	Persist() error

	// GetHWMark returns the highest SCN durably recorded in the redo log.
	GetHWMark() int64

	// GetLWMark returns the highest SCN reflected in the array file.
	GetLWMark() int64

	// GetDirectory returns the home directory of the array.
	GetDirectory() string

	// Also, arrays need to be flush and closable.
	common.FlushAndCloser
}
