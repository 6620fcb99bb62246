// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package entry

import (
	"encoding/binary"
	"fmt"

	"github.com/Fantom-foundation/Carmen-array/go/backend/array"
	"github.com/Fantom-foundation/Carmen-array/go/common"
	"github.com/cespare/xxhash/v2"
)

// Factory creates entries of a fixed capacity for values of type V and
// restores entries from their encoded form.
type Factory[V any] struct {
	serializer common.Serializer[V]
	capacity   int
}

// NewFactory creates a factory producing entries holding up to capacity
// values encoded by the given serializer.
func NewFactory[V any](serializer common.Serializer[V], capacity int) (*Factory[V], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("entry capacity must be positive, got %d", capacity)
	}
	if serializer.Size() < 1 {
		return nil, fmt.Errorf("element size must be positive, got %d", serializer.Size())
	}
	return &Factory[V]{serializer: serializer, capacity: capacity}, nil
}

// NewEntry creates a new, empty entry.
func (f *Factory[V]) NewEntry() *Entry[V] {
	return newEntry[V](f.serializer, f.capacity)
}

func (f *Factory[V]) Capacity() int {
	return f.capacity
}

func (f *Factory[V]) ElementSize() int {
	return f.serializer.Size()
}

// The encoding of an entry is
//
//	header  := magic [4]byte | version uint32 | elementSize uint32 | count uint32 | minScn int64 | maxScn int64
//	record  := index uint32 | scn int64 | value [elementSize]byte
//	trailer := xxhash64 of header and records
//
// with all integers in little endian order.
const (
	headerSize   = 32
	trailerSize  = 8
	recordPrefix = 4 + 8

	formatVersion = 1
)

var magic = [4]byte{'R', 'E', 'N', 'T'}

// Encode produces the binary form of the given entry, as stored in the redo
// log.
func (f *Factory[V]) Encode(e *Entry[V]) []byte {
	elementSize := f.serializer.Size()
	res := make([]byte, headerSize+len(e.values)*(recordPrefix+elementSize)+trailerSize)
	copy(res[0:4], magic[:])
	binary.LittleEndian.PutUint32(res[4:], formatVersion)
	binary.LittleEndian.PutUint32(res[8:], uint32(elementSize))
	binary.LittleEndian.PutUint32(res[12:], uint32(len(e.values)))
	binary.LittleEndian.PutUint64(res[16:], uint64(e.MinScn()))
	binary.LittleEndian.PutUint64(res[24:], uint64(e.MaxScn()))
	pos := headerSize
	for _, v := range e.values {
		binary.LittleEndian.PutUint32(res[pos:], uint32(v.Index))
		binary.LittleEndian.PutUint64(res[pos+4:], uint64(v.Scn))
		f.serializer.CopyBytes(v.Value, res[pos+recordPrefix:pos+recordPrefix+elementSize])
		pos += recordPrefix + elementSize
	}
	binary.LittleEndian.PutUint64(res[pos:], xxhash.Sum64(res[:pos]))
	return res
}

// Decode restores a sealed entry from its binary form. Any inconsistency in
// the data is reported as an array.ErrCorruption.
func (f *Factory[V]) Decode(data []byte) (*Entry[V], error) {
	if len(data) < headerSize+trailerSize {
		return nil, fmt.Errorf("%w: entry data too short, got %d bytes", array.ErrCorruption, len(data))
	}
	body := data[:len(data)-trailerSize]
	if want, got := binary.LittleEndian.Uint64(data[len(body):]), xxhash.Sum64(body); want != got {
		return nil, fmt.Errorf("%w: entry checksum mismatch, wanted %x, got %x", array.ErrCorruption, want, got)
	}
	if [4]byte(data[0:4]) != magic {
		return nil, fmt.Errorf("%w: invalid entry magic %q", array.ErrCorruption, data[0:4])
	}
	if version := binary.LittleEndian.Uint32(data[4:]); version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported entry format version %d", array.ErrCorruption, version)
	}
	elementSize := f.serializer.Size()
	if got := int(binary.LittleEndian.Uint32(data[8:])); got != elementSize {
		return nil, fmt.Errorf("%w: invalid element size in entry, wanted %d, got %d", array.ErrCorruption, elementSize, got)
	}
	count := int(binary.LittleEndian.Uint32(data[12:]))
	if count == 0 {
		return nil, fmt.Errorf("%w: empty entry", array.ErrCorruption)
	}
	if want, got := headerSize+count*(recordPrefix+elementSize)+trailerSize, len(data); want != got {
		return nil, fmt.Errorf("%w: invalid entry length for %d values, wanted %d, got %d", array.ErrCorruption, count, want, got)
	}

	capacity := f.capacity
	if count > capacity {
		capacity = count
	}
	res := newEntry[V](f.serializer, capacity)
	pos := headerSize
	for i := 0; i < count; i++ {
		index := int(binary.LittleEndian.Uint32(data[pos:]))
		scn := int64(binary.LittleEndian.Uint64(data[pos+4:]))
		value := f.serializer.FromBytes(data[pos+recordPrefix : pos+recordPrefix+elementSize])
		if err := res.Add(index, value, scn); err != nil {
			return nil, fmt.Errorf("%w: %v", array.ErrCorruption, err)
		}
		pos += recordPrefix + elementSize
	}

	minScn := int64(binary.LittleEndian.Uint64(data[16:]))
	maxScn := int64(binary.LittleEndian.Uint64(data[24:]))
	if minScn != res.MinScn() || maxScn != res.MaxScn() {
		return nil, fmt.Errorf("%w: entry scn range [%d,%d] does not match values [%d,%d]", array.ErrCorruption, minScn, maxScn, res.MinScn(), res.MaxScn())
	}
	res.Seal()
	return res, nil
}

// ReadRange extracts the SCN range recorded in the header of an encoded
// entry without decoding its values.
func ReadRange(data []byte) (minScn, maxScn int64, err error) {
	if len(data) < headerSize || [4]byte(data[0:4]) != magic {
		return 0, 0, fmt.Errorf("%w: invalid entry header", array.ErrCorruption)
	}
	return int64(binary.LittleEndian.Uint64(data[16:])), int64(binary.LittleEndian.Uint64(data[24:])), nil
}
