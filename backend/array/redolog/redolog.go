// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package redolog defines the storage of the redo log of a recoverable array.
// The log is a collection of segments, each holding one encoded entry and
// identified by the range of sequence numbers (SCNs) it covers.
package redolog

import (
	"fmt"

	"github.com/Fantom-foundation/Carmen-array/go/backend/array"
	"github.com/Fantom-foundation/Carmen-array/go/common"
	"golang.org/x/exp/slices"
)

//go:generate mockgen -source redolog.go -destination redolog_mocks.go -package redolog

// SegmentId identifies a segment by the SCN range [MinScn, MaxScn] of the
// values it contains.
type SegmentId struct {
	MinScn int64
	MaxScn int64
}

func (id SegmentId) String() string {
	return fmt.Sprintf("[%d,%d]", id.MinScn, id.MaxScn)
}

// Segment is an encoded entry together with its identifier.
type Segment struct {
	Id   SegmentId
	Data []byte
}

// Log is the persistent store of redo log segments. Implementations need to
// make written segments durable before Write returns.
type Log interface {
	// Write stores the given segment. Segments with equal ids are replaced.
	Write(Segment) error

	// ListAll returns the ids of all stored segments ordered by increasing
	// MinScn.
	ListAll() ([]SegmentId, error)

	// Read fetches the data of the given segment.
	Read(SegmentId) ([]byte, error)

	// Remove deletes the given segment. Removing missing segments is a no-op.
	Remove(SegmentId) error

	// Also, logs need to be flush and closable.
	common.FlushAndCloser
}

// SortSegments orders segment ids by increasing SCN ranges.
func SortSegments(ids []SegmentId) {
	slices.SortFunc(ids, func(a, b SegmentId) int {
		switch {
		case a.MinScn < b.MinScn:
			return -1
		case a.MinScn > b.MinScn:
			return 1
		case a.MaxScn < b.MaxScn:
			return -1
		case a.MaxScn > b.MaxScn:
			return 1
		}
		return 0
	})
}

// CheckContinuity verifies that the given sorted segments cover the SCN range
// (after, upTo] without gaps or overlaps. The first segment may start at or
// before after, all segments must end within the range. Violations are
// reported as array.ErrCorruption.
func CheckContinuity(ids []SegmentId, after, upTo int64) error {
	next := after + 1
	for i, id := range ids {
		if id.MaxScn > upTo {
			return fmt.Errorf("%w: log segment %v exceeds scn %d", array.ErrCorruption, id, upTo)
		}
		if id.MinScn > next || (i > 0 && id.MinScn != next) || id.MaxScn < next {
			return fmt.Errorf("%w: log segment %v does not continue at scn %d", array.ErrCorruption, id, next)
		}
		next = id.MaxScn + 1
	}
	if next != upTo+1 {
		return fmt.Errorf("%w: log segments cover scns up to %d, expected up to %d", array.ErrCorruption, next-1, upTo)
	}
	return nil
}
