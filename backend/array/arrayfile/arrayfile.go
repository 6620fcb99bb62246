// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package arrayfile implements the persistent image of a recoverable array:
// a file holding a fixed number of fixed-size elements, preceded by a header
// recording the array dimensions and the range of sequence numbers (SCNs)
// reflected in the file.
package arrayfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/Fantom-foundation/Carmen-array/go/backend/array"
	"github.com/Fantom-foundation/Carmen-array/go/backend/utils"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/sha3"
)

// The file starts with a header of HeaderSize bytes:
//
//	magic [4]byte | version uint32 | elementSize uint32 | reserved uint32 |
//	length uint64 | lwmScn int64 | hwmScn int64 | checksum uint64 | reserved [16]byte
//
// where checksum is the xxhash64 of the preceding header bytes. Element i is
// stored at offset HeaderSize + i*elementSize.
const (
	HeaderSize = 64

	formatVersion  = 1
	checksumOffset = 40
)

var magic = [4]byte{'R', 'A', 'R', 'R'}

// Batch is a sequence of encoded element updates in increasing SCN order, as
// provided by redo log entries.
type Batch interface {
	MinScn() int64
	MaxScn() int64
	ForEachEncoded(visit func(index int, data []byte, scn int64) error) error
}

// ArrayFile provides access to the persistent array image. Writes of single
// elements are positional writes of the full element width; reads and writes
// may be issued concurrently, while updates of the watermarks are serialized.
type ArrayFile struct {
	path        string
	file        utils.OsFile
	isNew       bool
	length      int
	elementSize int

	mu     sync.Mutex // protects the watermarks and the header
	lwmScn int64
	hwmScn int64
}

// Open opens the array file at the given path or creates it if it does not
// exist. New files hold initialLength zero-valued elements and zero
// watermarks. Existing files retain their recorded length, which may differ
// from initialLength; their element size has to match.
func Open(path string, initialLength, elementSize int) (*ArrayFile, error) {
	if initialLength < 0 || initialLength > math.MaxUint32 {
		return nil, fmt.Errorf("invalid array length %d", initialLength)
	}
	if elementSize < 1 {
		return nil, fmt.Errorf("invalid element size %d", elementSize)
	}
	// Files without content are left behind by crashes during creation.
	isNew := false
	if stats, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		isNew = true
	} else if err != nil {
		return nil, fmt.Errorf("%w: %w", array.ErrIO, err)
	} else {
		isNew = stats.Size() == 0
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", array.ErrIO, err)
	}
	res, err := open(path, file, isNew, initialLength, elementSize)
	if err != nil {
		file.Close()
		return nil, err
	}
	return res, nil
}

// OpenExisting opens an existing array file, taking the element size from
// its header. It is intended for tooling lacking knowledge of the element type.
func OpenExisting(path string) (*ArrayFile, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", array.ErrIO, err)
	}
	var prefix [12]byte
	if _, err := file.ReadAt(prefix[:], 0); err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: unable to read header of %s: %v", array.ErrCorruption, path, err)
	}
	elementSize := int(binary.LittleEndian.Uint32(prefix[8:]))
	if elementSize < 1 {
		file.Close()
		return nil, fmt.Errorf("%w: invalid element size %d in %s", array.ErrCorruption, elementSize, path)
	}
	res, err := open(path, file, false, 0, elementSize)
	if err != nil {
		file.Close()
		return nil, err
	}
	return res, nil
}

func open(path string, file utils.OsFile, isNew bool, initialLength, elementSize int) (*ArrayFile, error) {
	res := &ArrayFile{
		path:        path,
		file:        file,
		isNew:       isNew,
		length:      initialLength,
		elementSize: elementSize,
	}
	if isNew {
		if err := res.create(); err != nil {
			return nil, err
		}
		return res, nil
	}
	if err := res.readHeader(); err != nil {
		return nil, err
	}
	return res, nil
}

func (f *ArrayFile) create() error {
	size := int64(HeaderSize) + int64(f.length)*int64(f.elementSize)
	if err := f.file.Truncate(size); err != nil {
		return fmt.Errorf("%w: failed to size array file: %w", array.ErrIO, err)
	}
	if err := f.writeHeader(); err != nil {
		return err
	}
	return f.Flush()
}

func (f *ArrayFile) readHeader() error {
	var header [HeaderSize]byte
	if _, err := f.file.ReadAt(header[:], 0); err != nil {
		return fmt.Errorf("%w: unable to read header of %s: %v", array.ErrCorruption, f.path, err)
	}
	if [4]byte(header[0:4]) != magic {
		return fmt.Errorf("%w: %s is not an array file", array.ErrCorruption, f.path)
	}
	if want, got := binary.LittleEndian.Uint64(header[checksumOffset:]), xxhash.Sum64(header[:checksumOffset]); want != got {
		return fmt.Errorf("%w: header checksum mismatch in %s", array.ErrCorruption, f.path)
	}
	if version := binary.LittleEndian.Uint32(header[4:]); version != formatVersion {
		return fmt.Errorf("%w: unsupported array file version %d", array.ErrCorruption, version)
	}
	if got := int(binary.LittleEndian.Uint32(header[8:])); got != f.elementSize {
		return fmt.Errorf("%w: invalid element size in %s, expected %d byte, found %d", array.ErrCorruption, f.path, f.elementSize, got)
	}
	length := binary.LittleEndian.Uint64(header[16:])
	if length > math.MaxUint32 {
		return fmt.Errorf("%w: invalid array length %d", array.ErrCorruption, length)
	}
	lwm := int64(binary.LittleEndian.Uint64(header[24:]))
	hwm := int64(binary.LittleEndian.Uint64(header[32:]))
	if lwm < 0 || hwm < lwm {
		return fmt.Errorf("%w: %s has invalid watermarks: lwmScn=%d hwmScn=%d", array.ErrCorruption, f.path, lwm, hwm)
	}

	stats, err := f.file.Stat()
	if err != nil {
		return fmt.Errorf("%w: %w", array.ErrIO, err)
	}
	if want, got := int64(HeaderSize)+int64(length)*int64(f.elementSize), stats.Size(); got < want {
		return fmt.Errorf("%w: invalid array file size, wanted %d, got %d", array.ErrCorruption, want, got)
	}

	f.length = int(length)
	f.lwmScn = lwm
	f.hwmScn = hwm
	return nil
}

// writeHeader must be called with mu held or before the file is shared.
func (f *ArrayFile) writeHeader() error {
	var header [HeaderSize]byte
	copy(header[0:4], magic[:])
	binary.LittleEndian.PutUint32(header[4:], formatVersion)
	binary.LittleEndian.PutUint32(header[8:], uint32(f.elementSize))
	binary.LittleEndian.PutUint64(header[16:], uint64(f.length))
	binary.LittleEndian.PutUint64(header[24:], uint64(f.lwmScn))
	binary.LittleEndian.PutUint64(header[32:], uint64(f.hwmScn))
	binary.LittleEndian.PutUint64(header[checksumOffset:], xxhash.Sum64(header[:checksumOffset]))
	if err := f.write(header[:], 0); err != nil {
		return fmt.Errorf("%w: failed to write header: %w", array.ErrIO, err)
	}
	return nil
}

func (f *ArrayFile) write(data []byte, offset int64) error {
	n, err := f.file.WriteAt(data, offset)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("failed to write sufficient bytes to file, wanted %d, got %d", len(data), n)
	}
	return nil
}

// IsNew reports whether the file was created when it was opened.
func (f *ArrayFile) IsNew() bool {
	return f.isNew
}

func (f *ArrayFile) GetPath() string {
	return f.path
}

// GetArrayLength returns the number of elements recorded in the file.
func (f *ArrayFile) GetArrayLength() int {
	return f.length
}

func (f *ArrayFile) GetElementSize() int {
	return f.elementSize
}

func (f *ArrayFile) GetLwmScn() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lwmScn
}

func (f *ArrayFile) GetHwmScn() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hwmScn
}

func (f *ArrayFile) offset(index int) (int64, error) {
	if index < 0 || index >= f.length {
		return 0, fmt.Errorf("%w: index %d, length %d", array.ErrIndexOutOfRange, index, f.length)
	}
	return int64(HeaderSize) + int64(index)*int64(f.elementSize), nil
}

// Read fills dst, which must be of element size, with the element stored at
// the given index.
func (f *ArrayFile) Read(index int, dst []byte) error {
	if len(dst) != f.elementSize {
		return fmt.Errorf("invalid buffer size, wanted %d, got %d", f.elementSize, len(dst))
	}
	offset, err := f.offset(index)
	if err != nil {
		return err
	}
	if _, err := f.file.ReadAt(dst, offset); err != nil {
		return fmt.Errorf("%w: failed to read element %d: %w", array.ErrIO, index, err)
	}
	return nil
}

// ForEach visits all elements of the file in index order. The data slice is
// only valid during the call of the visitor.
func (f *ArrayFile) ForEach(visit func(index int, data []byte) error) error {
	const chunkElements = 1 << 12
	buffer := make([]byte, chunkElements*f.elementSize)
	for start := 0; start < f.length; start += chunkElements {
		count := chunkElements
		if start+count > f.length {
			count = f.length - start
		}
		chunk := buffer[:count*f.elementSize]
		if _, err := f.file.ReadAt(chunk, int64(HeaderSize)+int64(start)*int64(f.elementSize)); err != nil {
			return fmt.Errorf("%w: failed to read elements at %d: %w", array.ErrIO, start, err)
		}
		for i := 0; i < count; i++ {
			if err := visit(start+i, chunk[i*f.elementSize:(i+1)*f.elementSize]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Update applies the given batches in order. For each batch, all values are
// written, the data is synced, and only then the low-water-mark is raised to
// the batch's maximum SCN. A crash while applying a batch thus leaves the
// low-water-mark unchanged, causing the batch to be re-applied on recovery.
func (f *ArrayFile) Update(batches []Batch) error {
	for _, batch := range batches {
		err := batch.ForEachEncoded(func(index int, data []byte, scn int64) error {
			if len(data) != f.elementSize {
				return fmt.Errorf("invalid value size for index %d, wanted %d, got %d", index, f.elementSize, len(data))
			}
			offset, err := f.offset(index)
			if err != nil {
				return err
			}
			if err := f.write(data, offset); err != nil {
				return fmt.Errorf("%w: failed to write element %d: %w", array.ErrIO, index, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		if err := utils.Datasync(f.file); err != nil {
			return fmt.Errorf("%w: %w", array.ErrIO, err)
		}
		if err := f.raiseLwmScn(batch.MaxScn()); err != nil {
			return err
		}
	}
	return nil
}

func (f *ArrayFile) raiseLwmScn(scn int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if scn <= f.lwmScn {
		return nil
	}
	f.lwmScn = scn
	if f.hwmScn < scn {
		f.hwmScn = scn
	}
	return f.writeHeader()
}

// SetHwmScn raises the high-water-mark to the given SCN and makes the header
// durable. Lower values are ignored.
func (f *ArrayFile) SetHwmScn(scn int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if scn <= f.hwmScn {
		return nil
	}
	f.hwmScn = scn
	if err := f.writeHeader(); err != nil {
		return err
	}
	if err := utils.Datasync(f.file); err != nil {
		return fmt.Errorf("%w: %w", array.ErrIO, err)
	}
	return nil
}

// SetWaterMarks overrides both watermarks. It is intended for administrative
// tooling only; the watermarks must satisfy 0 <= lwmScn <= hwmScn.
func (f *ArrayFile) SetWaterMarks(lwmScn, hwmScn int64) error {
	if lwmScn < 0 || hwmScn < lwmScn {
		return fmt.Errorf("invalid watermarks: lwmScn=%d hwmScn=%d", lwmScn, hwmScn)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lwmScn = lwmScn
	f.hwmScn = hwmScn
	return f.writeHeader()
}

// Hash computes the SHA3-256 digest of the element region of the file. Two
// files with equal digests hold identical elements.
func (f *ArrayFile) Hash() ([32]byte, error) {
	var res [32]byte
	hasher := sha3.New256()
	err := f.ForEach(func(_ int, data []byte) error {
		_, err := hasher.Write(data)
		return err
	})
	if err != nil {
		return res, err
	}
	copy(res[:], hasher.Sum(nil))
	return res, nil
}

// Flush forces all written data and the header to stable storage.
func (f *ArrayFile) Flush() error {
	if err := f.file.Sync(); err != nil {
		return fmt.Errorf("%w: %w", array.ErrIO, err)
	}
	return nil
}

// Close flushes and closes the file.
func (f *ArrayFile) Close() error {
	// Flush is executed before the closing of the file since
	// in Go the evaluation order of arguments is fixed.
	return errors.Join(
		f.Flush(),
		f.file.Close(),
	)
}
