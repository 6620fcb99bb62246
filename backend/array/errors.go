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

import "github.com/Fantom-foundation/Carmen-array/go/common"

const (
	// ErrIO is reported for read, write, and sync failures on the array file
	// or the redo log. Failures are never retried internally.
	ErrIO = common.ConstError("array i/o failure")

	// ErrCorruption is reported if persisted data violates an invariant of
	// the array, for instance if the low-water-mark exceeds the
	// high-water-mark or a log segment fails its checksum.
	ErrCorruption = common.ConstError("array data corrupted")

	// ErrInitialization wraps any failure occurring while opening and
	// recovering an array.
	ErrInitialization = common.ConstError("array initialization failed")

	// ErrIndexOutOfRange is reported for accesses beyond the array length.
	ErrIndexOutOfRange = common.ConstError("array index out of range")

	// ErrNotReady is reported for operations on an array or entry manager
	// that has not been initialized or whose recovery failed.
	ErrNotReady = common.ConstError("array not ready")
)
