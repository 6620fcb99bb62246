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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"github.com/Fantom-foundation/Carmen-array/go/backend/array"
	"github.com/Fantom-foundation/Carmen-array/go/backend/array/arrayfile"
	"github.com/Fantom-foundation/Carmen-array/go/backend/array/entry"
	"github.com/Fantom-foundation/Carmen-array/go/backend/array/redolog"
	"github.com/Fantom-foundation/Carmen-array/go/backend/array/redolog/file"
	"github.com/Fantom-foundation/Carmen-array/go/backend/array/redolog/ldb"
	"github.com/Fantom-foundation/Carmen-array/go/common"
)

// ArrayFileName is the name of the array file within the array directory.
const ArrayFileName = "indexes.dat"

// Array is a recoverable array keeping an image of all elements in memory.
// Reads are served from the image; updates are recorded in the redo log and
// applied to the array file by the entry manager.
type Array[V any] struct {
	directory  string
	serializer common.Serializer[V]
	logger     common.Logger
	lock       common.LockFile
	file       *arrayfile.ArrayFile
	log        redolog.Log
	manager    *EntryManager[V]
	created    bool

	writeMu sync.Mutex   // serializes updates
	mu      sync.RWMutex // protects values
	values  []V
}

// NewArray opens the recoverable array in the configured directory, creating
// it if it does not exist. The length of an existing array is retained. All
// logged updates not yet reflected in the array file are replayed before the
// array is returned.
func NewArray[V any](params Parameters, serializer common.Serializer[V]) (*Array[V], error) {
	params, err := params.withDefaults()
	if err != nil {
		return nil, err
	}
	res := &Array[V]{
		directory:  params.Directory,
		serializer: serializer,
		logger:     params.Logger,
	}
	if err := res.open(params); err != nil {
		res.logger.Error("failed to open recoverable array", "directory", params.Directory, "length", params.Length, "error", err)
		if res.manager != nil {
			res.manager.Clear()
		}
		return nil, errors.Join(
			fmt.Errorf("%w: %w", array.ErrInitialization, err),
			res.closeResources(),
		)
	}
	res.logger.Info("opened recoverable array", "directory", params.Directory, "length", len(res.values),
		"created", res.created, "lwmScn", res.GetLWMark(), "hwmScn", res.GetHWMark())
	return res, nil
}

func (a *Array[V]) open(params Parameters) error {
	if err := os.MkdirAll(params.Directory, 0700); err != nil {
		return fmt.Errorf("%w: %w", array.ErrIO, err)
	}
	lock, err := common.LockDirectory(params.Directory)
	if err != nil {
		return err
	}
	a.lock = lock

	a.file, err = arrayfile.Open(filepath.Join(params.Directory, ArrayFileName), params.Length, a.serializer.Size())
	if err != nil {
		return err
	}
	a.created = a.file.IsNew()
	if length := a.file.GetArrayLength(); length != params.Length {
		a.logger.Warn("array length retained from existing file", "requested", params.Length, "length", length)
	}

	a.log, err = OpenLog(params.Directory, params.LogVariant)
	if err != nil {
		return err
	}
	factory, err := entry.NewFactory(a.serializer, params.EntrySize)
	if err != nil {
		return err
	}
	a.manager, err = NewEntryManager[V](a, a.log, factory, params.MaxEntries, params.RetainEntries, a.logger)
	if err != nil {
		return err
	}
	if err := a.manager.Init(a.file.GetLwmScn(), a.file.GetHwmScn()); err != nil {
		return err
	}
	return a.loadValues()
}

// OpenLog opens the redo log of the given variant within an array directory.
func OpenLog(directory string, variant LogVariant) (redolog.Log, error) {
	switch variant {
	case FileLog:
		return file.OpenLog(filepath.Join(directory, file.DirectoryName))
	case LevelDbLog:
		return ldb.OpenLog(filepath.Join(directory, ldb.DirectoryName))
	}
	return nil, fmt.Errorf("%w: unknown log variant %q", UnsupportedConfiguration, variant)
}

// DetectLogVariant determines the variant of the redo log present in an
// array directory. If there is none, the default variant is reported.
func DetectLogVariant(directory string) LogVariant {
	if stat, err := os.Stat(filepath.Join(directory, ldb.DirectoryName)); err == nil && stat.IsDir() {
		return LevelDbLog
	}
	return FileLog
}

func (a *Array[V]) loadValues() error {
	validator, _ := a.serializer.(common.Validator)
	values := make([]V, a.file.GetArrayLength())
	err := a.file.ForEach(func(index int, data []byte) error {
		if validator != nil {
			if err := validator.Validate(data); err != nil {
				return fmt.Errorf("%w: invalid element %d: %w", array.ErrCorruption, index, err)
			}
		}
		values[index] = a.serializer.FromBytes(data)
		return nil
	})
	if err != nil {
		return err
	}
	a.values = values
	return nil
}

func (a *Array[V]) closeResources() error {
	var errs []error
	if a.log != nil {
		errs = append(errs, a.log.Close())
		a.log = nil
	}
	if a.file != nil {
		errs = append(errs, a.file.Close())
		a.file = nil
	}
	if a.lock != nil {
		errs = append(errs, a.lock.Release())
		a.lock = nil
	}
	return errors.Join(errs...)
}

func (a *Array[V]) Length() int {
	return len(a.values)
}

func (a *Array[V]) HasIndex(index int) bool {
	return index >= 0 && index < len(a.values)
}

func (a *Array[V]) Get(index int) (V, error) {
	if !a.HasIndex(index) {
		var zero V
		return zero, fmt.Errorf("%w: index %d, length %d", array.ErrIndexOutOfRange, index, len(a.values))
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.values[index], nil
}

func (a *Array[V]) Set(index int, value V) (int64, error) {
	if !a.HasIndex(index) {
		return 0, fmt.Errorf("%w: index %d, length %d", array.ErrIndexOutOfRange, index, len(a.values))
	}
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	scn, err := a.manager.Append(index, value)
	if scn == 0 {
		return 0, err
	}
	a.mu.Lock()
	a.values[index] = value
	a.mu.Unlock()
	if err != nil {
		a.logger.Error("logged update could not be applied", "directory", a.directory, "index", index, "scn", scn, "error", err)
	}
	return scn, err
}

func (a *Array[V]) Sync() error {
	if err := a.manager.Sync(); err != nil {
		a.logger.Error("failed to sync recoverable array", "directory", a.directory, "length", len(a.values), "error", err)
		return err
	}
	a.logger.Info("synced recoverable array", "directory", a.directory, "length", len(a.values), "lwmScn", a.GetLWMark())
	return nil
}

func (a *Array[V]) Persist() error {
	if err := a.manager.Persist(); err != nil {
		a.logger.Error("failed to persist recoverable array", "directory", a.directory, "length", len(a.values), "error", err)
		return err
	}
	a.logger.Info("persisted recoverable array", "directory", a.directory, "length", len(a.values), "lwmScn", a.GetLWMark())
	return nil
}

func (a *Array[V]) GetHWMark() int64 {
	return a.manager.GetHWMark()
}

func (a *Array[V]) GetLWMark() int64 {
	return a.manager.GetLWMark()
}

func (a *Array[V]) GetDirectory() string {
	return a.directory
}

// UpdateArrayFile applies the given batches to the array file.
func (a *Array[V]) UpdateArrayFile(batches []arrayfile.Batch) error {
	return a.file.Update(batches)
}

func (a *Array[V]) SetHwmScn(scn int64) error {
	return a.file.SetHwmScn(scn)
}

func (a *Array[V]) FlushArrayFile() error {
	return a.file.Flush()
}

func (a *Array[V]) Flush() error {
	return a.Persist()
}

// Close persists all updates and releases the array directory. The array
// may not be used afterwards.
func (a *Array[V]) Close() error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.manager.Close()
	if err != nil {
		a.logger.Error("failed to persist recoverable array on close", "directory", a.directory, "error", err)
	}
	return errors.Join(err, a.closeResources())
}

// GetMemoryFootprint provides the memory consumed by the in-memory image and
// the buffered log entries.
func (a *Array[V]) GetMemoryFootprint() *common.MemoryFootprint {
	var value V
	mf := common.NewMemoryFootprint(unsafe.Sizeof(*a))
	mf.AddChild("values", common.NewMemoryFootprint(uintptr(len(a.values))*unsafe.Sizeof(value)))
	mf.AddChild("entryManager", a.manager.GetMemoryFootprint())
	return mf
}

var _ array.RecoverableArray[uint64] = (*Array[uint64])(nil)
var _ ArrayFileUpdater = (*Array[uint64])(nil)
