// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package entry implements the batches of updates recorded in the redo log
// of a recoverable array. An Entry collects up to a fixed number of Values,
// each describing the assignment of a value to an array index at a given
// sequence number (SCN). Sealed entries are encoded into log segments and
// later applied to the array file.
package entry

import (
	"fmt"

	"github.com/Fantom-foundation/Carmen-array/go/common"
	"golang.org/x/exp/slices"
)

// ErrCapacityExceeded is returned when adding values to a full or sealed
// entry. It is an internal signal handled by rotating to a new entry.
const ErrCapacityExceeded = common.ConstError("entry capacity exceeded")

// Value is a single durable fact: index Index holds Value as of Scn.
type Value[V any] struct {
	Index int
	Value V
	Scn   int64
}

// Entry is a bounded, ordered batch of values. Values are kept in insertion
// order, which is required to be the order of increasing SCNs. Entries are
// not thread safe; synchronization is the responsibility of the owner.
type Entry[V any] struct {
	serializer common.Serializer[V]
	capacity   int
	values     []Value[V]
	sealed     bool
}

func newEntry[V any](serializer common.Serializer[V], capacity int) *Entry[V] {
	return &Entry[V]{
		serializer: serializer,
		capacity:   capacity,
		values:     make([]Value[V], 0, capacity),
	}
}

// Add appends a value to this entry. It fails with ErrCapacityExceeded if the
// entry is full or sealed. SCNs must be strictly increasing.
func (e *Entry[V]) Add(index int, value V, scn int64) error {
	if e.sealed || len(e.values) >= e.capacity {
		return ErrCapacityExceeded
	}
	if len(e.values) > 0 && scn <= e.MaxScn() {
		return fmt.Errorf("non-increasing scn %d after %d", scn, e.MaxScn())
	}
	e.values = append(e.values, Value[V]{Index: index, Value: value, Scn: scn})
	return nil
}

func (e *Entry[V]) IsFull() bool {
	return len(e.values) >= e.capacity
}

func (e *Entry[V]) IsEmpty() bool {
	return len(e.values) == 0
}

func (e *Entry[V]) Size() int {
	return len(e.values)
}

func (e *Entry[V]) Capacity() int {
	return e.capacity
}

// MinScn returns the SCN of the first value, or 0 for an empty entry.
func (e *Entry[V]) MinScn() int64 {
	if len(e.values) == 0 {
		return 0
	}
	return e.values[0].Scn
}

// MaxScn returns the SCN of the last value, or 0 for an empty entry.
func (e *Entry[V]) MaxScn() int64 {
	if len(e.values) == 0 {
		return 0
	}
	return e.values[len(e.values)-1].Scn
}

// Values returns a copy of the values of this entry in SCN order.
func (e *Entry[V]) Values() []Value[V] {
	return slices.Clone(e.values)
}

// Seal turns the entry read-only. Sealing is idempotent.
func (e *Entry[V]) Seal() {
	e.sealed = true
}

func (e *Entry[V]) IsSealed() bool {
	return e.sealed
}

// After returns a sealed entry holding the values of this entry with an SCN
// greater than the given one. If all values qualify, the entry itself is
// returned.
func (e *Entry[V]) After(scn int64) *Entry[V] {
	pos, _ := slices.BinarySearchFunc(e.values, scn+1, func(v Value[V], target int64) int {
		switch {
		case v.Scn < target:
			return -1
		case v.Scn > target:
			return 1
		}
		return 0
	})
	if pos == 0 {
		e.Seal()
		return e
	}
	res := newEntry[V](e.serializer, e.capacity)
	res.values = append(res.values, e.values[pos:]...)
	res.sealed = true
	return res
}

// ForEachEncoded visits the values of this entry in SCN order, providing the
// encoded form of each value.
func (e *Entry[V]) ForEachEncoded(visit func(index int, data []byte, scn int64) error) error {
	buffer := make([]byte, e.serializer.Size())
	for _, v := range e.values {
		e.serializer.CopyBytes(v.Value, buffer)
		if err := visit(v.Index, buffer, v.Scn); err != nil {
			return err
		}
	}
	return nil
}

func (e *Entry[V]) String() string {
	return fmt.Sprintf("Entry[%d..%d, %d/%d values, sealed=%t]", e.MinScn(), e.MaxScn(), len(e.values), e.capacity, e.sealed)
}
