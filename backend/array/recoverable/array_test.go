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
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Fantom-foundation/Carmen-array/go/backend/array"
	"github.com/Fantom-foundation/Carmen-array/go/backend/array/arrayfile"
	"github.com/Fantom-foundation/Carmen-array/go/backend/array/entry"
	"github.com/Fantom-foundation/Carmen-array/go/backend/utils"
	"github.com/Fantom-foundation/Carmen-array/go/common"
	"github.com/cespare/xxhash/v2"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var logVariants = []LogVariant{FileLog, LevelDbLog}

func openTestArray(t *testing.T, params Parameters) *Array[uint64] {
	t.Helper()
	a, err := NewArray[uint64](params, common.Uint64Serializer{})
	if err != nil {
		t.Fatalf("failed to open array: %v", err)
	}
	return a
}

func closeTestArray(t *testing.T, a *Array[uint64]) {
	t.Helper()
	if err := a.Close(); err != nil {
		t.Fatalf("failed to close array: %v", err)
	}
}

// crash drops all buffered updates and releases the resources of the array
// in-process, the way the operating system does for a process that dies.
// TestArray_UpdatesAreRecoveredAfterProcessDies covers an actual process exit.
func crash(t *testing.T, a *Array[uint64]) {
	t.Helper()
	a.manager.Clear()
	if err := a.closeResources(); err != nil {
		t.Fatalf("failed to release array resources: %v", err)
	}
}

func TestArray_SetValuesAreVisibleAfterSync(t *testing.T) {
	for _, variant := range logVariants {
		t.Run(string(variant), func(t *testing.T) {
			a := openTestArray(t, Parameters{Directory: t.TempDir(), Length: 100, LogVariant: variant})
			defer closeTestArray(t, a)

			scn, err := a.Set(5, 0xAA)
			if err != nil || scn != 1 {
				t.Fatalf("unexpected result of first update, wanted scn 1, got %d, %v", scn, err)
			}
			scn, err = a.Set(5, 0xBB)
			if err != nil || scn != 2 {
				t.Fatalf("unexpected result of second update, wanted scn 2, got %d, %v", scn, err)
			}
			if err := a.Sync(); err != nil {
				t.Fatalf("failed to sync: %v", err)
			}
			value, err := a.Get(5)
			if err != nil {
				t.Fatalf("failed to read value: %v", err)
			}
			if want := uint64(0xBB); value != want {
				t.Errorf("unexpected value, wanted %x, got %x", want, value)
			}
			if got, want := a.GetLWMark(), int64(2); got != want {
				t.Errorf("unexpected lwm, wanted %d, got %d", want, got)
			}
			if got, want := a.GetHWMark(), int64(2); got != want {
				t.Errorf("unexpected hwm, wanted %d, got %d", want, got)
			}
		})
	}
}

func TestArray_NewArrayIsZeroInitialized(t *testing.T) {
	dir := t.TempDir()
	a := openTestArray(t, Parameters{Directory: dir, Length: 10})
	defer closeTestArray(t, a)
	if got, want := a.Length(), 10; got != want {
		t.Errorf("unexpected length, wanted %d, got %d", want, got)
	}
	if got := a.GetDirectory(); got != dir {
		t.Errorf("unexpected directory, wanted %s, got %s", dir, got)
	}
	for i := 0; i < a.Length(); i++ {
		if value, err := a.Get(i); err != nil || value != 0 {
			t.Errorf("unexpected value at index %d: %d, %v", i, value, err)
		}
	}
	for _, name := range []string{ArrayFileName, common.LockFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing file %s: %v", name, err)
		}
	}
}

func TestArray_AccessesOutOfRangeAreRejected(t *testing.T) {
	a := openTestArray(t, Parameters{Directory: t.TempDir(), Length: 10})
	defer closeTestArray(t, a)
	for _, index := range []int{-1, 10, 11} {
		if a.HasIndex(index) {
			t.Errorf("index %d should not be within the array", index)
		}
		if _, err := a.Get(index); !errors.Is(err, array.ErrIndexOutOfRange) {
			t.Errorf("unexpected error reading index %d: %v", index, err)
		}
		if _, err := a.Set(index, 1); !errors.Is(err, array.ErrIndexOutOfRange) {
			t.Errorf("unexpected error updating index %d: %v", index, err)
		}
	}
	if got := a.GetHWMark(); got != 0 {
		t.Errorf("rejected updates should not consume scns, got hwm %d", got)
	}
}

func TestArray_ValuesSurviveReopening(t *testing.T) {
	for _, variant := range logVariants {
		t.Run(string(variant), func(t *testing.T) {
			params := Parameters{Directory: t.TempDir(), Length: 50, EntrySize: 7, MaxEntries: 3, LogVariant: variant}
			a := openTestArray(t, params)
			for i := 0; i < 120; i++ {
				if _, err := a.Set(i%50, uint64(i)); err != nil {
					t.Fatalf("failed to set value: %v", err)
				}
			}
			closeTestArray(t, a)

			a = openTestArray(t, params)
			defer closeTestArray(t, a)
			for i := 0; i < 50; i++ {
				want := uint64(100 + i)
				if i >= 20 {
					want = uint64(50 + i)
				}
				if got, err := a.Get(i); err != nil || got != want {
					t.Errorf("unexpected value at index %d, wanted %d, got %d, %v", i, want, got, err)
				}
			}
			if got, want := a.GetHWMark(), int64(120); got != want {
				t.Errorf("unexpected hwm, wanted %d, got %d", want, got)
			}
			scn, err := a.Set(0, 1)
			if err != nil {
				t.Fatalf("failed to set value: %v", err)
			}
			if scn != 121 {
				t.Errorf("scns should continue after reopening, wanted 121, got %d", scn)
			}
		})
	}
}

func TestArray_LoggedUpdatesAreRecoveredAfterCrash(t *testing.T) {
	for _, variant := range logVariants {
		t.Run(string(variant), func(t *testing.T) {
			params := Parameters{Directory: t.TempDir(), Length: 20, EntrySize: 4, MaxEntries: 100, LogVariant: variant}
			a := openTestArray(t, params)
			for i := 0; i < 10; i++ {
				if _, err := a.Set(i, uint64(i+1)); err != nil {
					t.Fatalf("failed to set value: %v", err)
				}
			}
			if got := a.GetLWMark(); got != 0 {
				t.Fatalf("no update should be applied yet, got lwm %d", got)
			}
			crash(t, a)

			a = openTestArray(t, params)
			defer closeTestArray(t, a)
			for i := 0; i < 10; i++ {
				want := uint64(i + 1)
				if i >= 8 {
					want = 0 // lost with the unsealed entry
				}
				if got, err := a.Get(i); err != nil || got != want {
					t.Errorf("unexpected value at index %d, wanted %d, got %d, %v", i, want, got, err)
				}
			}
			if got, want := a.GetLWMark(), int64(8); got != want {
				t.Errorf("unexpected lwm, wanted %d, got %d", want, got)
			}
		})
	}
}

const crashingProcessDirEnv = "CARMEN_ARRAY_CRASH_DIR"

func TestArray_UpdatesAreRecoveredAfterProcessDies(t *testing.T) {
	params := Parameters{Length: 16, EntrySize: 4, MaxEntries: 100}
	if dir := os.Getenv(crashingProcessDirEnv); dir != "" {
		params.Directory = dir
		a, err := NewArray[uint64](params, common.Uint64Serializer{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open array: %v\n", err)
			os.Exit(1)
		}
		for i := 0; i < 8; i++ {
			if _, err := a.Set(i, uint64(i+1)); err != nil {
				fmt.Fprintf(os.Stderr, "failed to set value: %v\n", err)
				os.Exit(1)
			}
		}
		os.Exit(0) // ends without closing the array
	}

	params.Directory = t.TempDir()
	cmd := exec.Command(os.Args[0], "-test.run=^TestArray_UpdatesAreRecoveredAfterProcessDies$")
	cmd.Env = append(os.Environ(), crashingProcessDirEnv+"="+params.Directory)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("updating process failed: %v\n%s", err, out)
	}
	if _, err := os.Stat(filepath.Join(params.Directory, common.LockFileName)); err != nil {
		t.Fatalf("lock file should be left behind: %v", err)
	}

	a := openTestArray(t, params)
	defer closeTestArray(t, a)
	for i := 0; i < 8; i++ {
		if got, err := a.Get(i); err != nil || got != uint64(i+1) {
			t.Errorf("unexpected value at index %d, wanted %d, got %d, %v", i, i+1, got, err)
		}
	}
	if got, want := a.GetLWMark(), int64(8); got != want {
		t.Errorf("unexpected lwm, wanted %d, got %d", want, got)
	}
	if got, want := a.GetHWMark(), int64(8); got != want {
		t.Errorf("unexpected hwm, wanted %d, got %d", want, got)
	}
}

func TestArray_LoggedUpdateRemainsVisibleIfApplyFails(t *testing.T) {
	params := Parameters{Directory: t.TempDir(), Length: 10}
	a := openTestArray(t, params)

	ctrl := gomock.NewController(t)
	updater := NewMockArrayFileUpdater(ctrl)
	updater.EXPECT().SetHwmScn(gomock.Any()).DoAndReturn(a.SetHwmScn)
	updater.EXPECT().UpdateArrayFile(gomock.Any()).Return(array.ErrIO)
	factory, err := entry.NewFactory[uint64](common.Uint64Serializer{}, 1)
	if err != nil {
		t.Fatalf("failed to create factory: %v", err)
	}
	manager, err := NewEntryManager[uint64](updater, a.log, factory, 1, 0, nil)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	if err := manager.Init(a.GetLWMark(), a.GetHWMark()); err != nil {
		t.Fatalf("failed to init manager: %v", err)
	}
	a.manager = manager

	scn, err := a.Set(3, 7)
	if scn != 1 || !errors.Is(err, array.ErrIO) {
		t.Errorf("unexpected result of update, wanted scn 1 and failed apply, got %d, %v", scn, err)
	}
	if got, err := a.Get(3); err != nil || got != 7 {
		t.Errorf("logged value should be visible, got %d, %v", got, err)
	}
	if _, err := a.Set(4, 8); !errors.Is(err, array.ErrNotReady) {
		t.Errorf("updates should be rejected after failure, got %v", err)
	}
	closeTestArray(t, a)

	a = openTestArray(t, params)
	defer closeTestArray(t, a)
	if got, err := a.Get(3); err != nil || got != 7 {
		t.Errorf("logged value should be recovered, got %d, %v", got, err)
	}
	if got, want := a.GetLWMark(), int64(1); got != want {
		t.Errorf("unexpected lwm, wanted %d, got %d", want, got)
	}
}

func TestArray_SyncAndPersistAreLogged(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	a := openTestArray(t, Parameters{Directory: t.TempDir(), Length: 12, Logger: common.NewZapLogger(zap.New(core))})
	defer closeTestArray(t, a)
	if _, err := a.Set(1, 2); err != nil {
		t.Fatalf("failed to set value: %v", err)
	}
	if err := a.Sync(); err != nil {
		t.Fatalf("failed to sync: %v", err)
	}
	if err := a.Persist(); err != nil {
		t.Fatalf("failed to persist: %v", err)
	}
	for _, message := range []string{"synced recoverable array", "persisted recoverable array"} {
		entries := logs.FilterMessage(message).All()
		if len(entries) != 1 {
			t.Fatalf("expected one %q log entry, got %v", message, entries)
		}
		if got, want := entries[0].ContextMap()["length"], int64(12); got != want {
			t.Errorf("unexpected length in %q, wanted %v, got %v", message, want, got)
		}
	}
}

func TestArray_RecoveryMatchesSyncedState(t *testing.T) {
	params := Parameters{Length: 32, EntrySize: 5, MaxEntries: 100}
	update := func(a *Array[uint64], count int) {
		for i := 0; i < count; i++ {
			if _, err := a.Set((i*7)%32, uint64(i*i)); err != nil {
				t.Fatalf("failed to set value: %v", err)
			}
		}
	}

	params.Directory = t.TempDir()
	crashed := openTestArray(t, params)
	update(crashed, 43)
	crash(t, crashed)
	crashed = openTestArray(t, params)
	defer closeTestArray(t, crashed)

	params.Directory = t.TempDir()
	synced := openTestArray(t, params)
	defer closeTestArray(t, synced)
	update(synced, 40)
	if err := synced.Sync(); err != nil {
		t.Fatalf("failed to sync: %v", err)
	}

	want, err := synced.file.Hash()
	if err != nil {
		t.Fatalf("failed to hash array: %v", err)
	}
	got, err := crashed.file.Hash()
	if err != nil {
		t.Fatalf("failed to hash array: %v", err)
	}
	if got != want {
		t.Errorf("recovered array differs from synced array, wanted %x, got %x", want, got)
	}
	for i := 0; i < 32; i++ {
		a, _ := synced.Get(i)
		b, _ := crashed.Get(i)
		if a != b {
			t.Errorf("unexpected value at index %d, wanted %d, got %d", i, a, b)
		}
	}
}

func TestArray_UpdatesOfSameIndexKeepLastValue(t *testing.T) {
	params := Parameters{Directory: t.TempDir(), Length: 4, EntrySize: 3, MaxEntries: 2}
	a := openTestArray(t, params)
	for i := 1; i <= 30; i++ {
		if _, err := a.Set(2, uint64(i)); err != nil {
			t.Fatalf("failed to set value: %v", err)
		}
		if got, _ := a.Get(2); got != uint64(i) {
			t.Fatalf("unexpected value, wanted %d, got %d", i, got)
		}
	}
	crash(t, a)

	a = openTestArray(t, params)
	defer closeTestArray(t, a)
	if got, want := a.GetLWMark(), int64(30); got != want {
		t.Errorf("unexpected lwm, wanted %d, got %d", want, got)
	}
	if got, _ := a.Get(2); got != 30 {
		t.Errorf("unexpected value, wanted 30, got %d", got)
	}
}

func TestArray_EntrySizeBoundary(t *testing.T) {
	a := openTestArray(t, Parameters{Directory: t.TempDir(), Length: 10, EntrySize: 4, MaxEntries: 5})
	defer closeTestArray(t, a)
	for i := 0; i < 4; i++ {
		if _, err := a.Set(i, 1); err != nil {
			t.Fatalf("failed to set value: %v", err)
		}
	}
	if got, want := a.GetHWMark(), int64(4); got != want {
		t.Errorf("full entry should be logged, wanted hwm %d, got %d", want, got)
	}
	if _, err := a.Set(4, 1); err != nil {
		t.Fatalf("failed to set value: %v", err)
	}
	if got, want := a.GetHWMark(), int64(4); got != want {
		t.Errorf("new entry should not be logged, wanted hwm %d, got %d", want, got)
	}
	if got := a.GetLWMark(); got != 0 {
		t.Errorf("no entry should be applied, got lwm %d", got)
	}
}

func TestArray_PersistAppliesAllUpdates(t *testing.T) {
	params := Parameters{Directory: t.TempDir(), Length: 10, EntrySize: 4, RetainEntries: 1}
	a := openTestArray(t, params)
	defer closeTestArray(t, a)
	for i := 0; i < 10; i++ {
		if _, err := a.Set(i, uint64(i)); err != nil {
			t.Fatalf("failed to set value: %v", err)
		}
	}
	if err := a.Flush(); err != nil {
		t.Fatalf("failed to persist: %v", err)
	}
	if got, want := a.GetLWMark(), int64(10); got != want {
		t.Errorf("unexpected lwm, wanted %d, got %d", want, got)
	}
	ids, err := a.log.ListAll()
	if err != nil {
		t.Fatalf("failed to list segments: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("only one segment should be retained, got %v", ids)
	}
}

func writeWatermarks(t *testing.T, path string, lwm, hwm int64) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_RDWR, 0600)
	if err != nil {
		t.Fatalf("failed to open file: %v", err)
	}
	defer f.Close()
	header := make([]byte, arrayfile.HeaderSize)
	if _, err := f.ReadAt(header, 0); err != nil {
		t.Fatalf("failed to read header: %v", err)
	}
	binary.LittleEndian.PutUint64(header[24:], uint64(lwm))
	binary.LittleEndian.PutUint64(header[32:], uint64(hwm))
	binary.LittleEndian.PutUint64(header[40:], xxhash.Sum64(header[:40]))
	if _, err := f.WriteAt(header, 0); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
}

func TestArray_CorruptedWatermarksAreDetected(t *testing.T) {
	params := Parameters{Directory: t.TempDir(), Length: 10}
	closeTestArray(t, openTestArray(t, params))
	writeWatermarks(t, filepath.Join(params.Directory, ArrayFileName), 8, 5)

	_, err := NewArray[uint64](params, common.Uint64Serializer{})
	if !errors.Is(err, array.ErrInitialization) || !errors.Is(err, array.ErrCorruption) {
		t.Errorf("corrupted watermarks should be reported, got %v", err)
	}
	// A failed open must release the directory.
	lock, err := common.LockDirectory(params.Directory)
	if err != nil {
		t.Fatalf("directory should be released, got %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Errorf("failed to release directory: %v", err)
	}
}

func TestArray_MissingLogSegmentsAreDetected(t *testing.T) {
	params := Parameters{Directory: t.TempDir(), Length: 10}
	closeTestArray(t, openTestArray(t, params))
	writeWatermarks(t, filepath.Join(params.Directory, ArrayFileName), 0, 5)

	if _, err := NewArray[uint64](params, common.Uint64Serializer{}); !errors.Is(err, array.ErrCorruption) {
		t.Errorf("missing log segments should be reported, got %v", err)
	}
}

// interval is an array element that is only valid if From <= To.
type interval struct {
	From, To uint32
}

type intervalSerializer struct{}

func (s intervalSerializer) ToBytes(value interval) []byte {
	res := make([]byte, s.Size())
	s.CopyBytes(value, res)
	return res
}
func (intervalSerializer) CopyBytes(value interval, out []byte) {
	binary.LittleEndian.PutUint32(out[0:4], value.From)
	binary.LittleEndian.PutUint32(out[4:8], value.To)
}
func (intervalSerializer) FromBytes(bytes []byte) interval {
	return interval{
		From: binary.LittleEndian.Uint32(bytes[0:4]),
		To:   binary.LittleEndian.Uint32(bytes[4:8]),
	}
}
func (intervalSerializer) Size() int {
	return 8
}
func (s intervalSerializer) Validate(bytes []byte) error {
	if value := s.FromBytes(bytes); value.From > value.To {
		return fmt.Errorf("invalid interval [%d,%d]", value.From, value.To)
	}
	return nil
}

func TestArray_InvalidElementsAreDetected(t *testing.T) {
	params := Parameters{Directory: t.TempDir(), Length: 4}
	a, err := NewArray[interval](params, intervalSerializer{})
	if err != nil {
		t.Fatalf("failed to open array: %v", err)
	}
	if _, err := a.Set(1, interval{From: 2, To: 5}); err != nil {
		t.Fatalf("failed to set value: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("failed to close array: %v", err)
	}

	f, err := os.OpenFile(filepath.Join(params.Directory, ArrayFileName), os.O_RDWR, 0600)
	if err != nil {
		t.Fatalf("failed to open file: %v", err)
	}
	if _, err := f.WriteAt([]byte{5, 0, 0, 0, 0, 0, 0, 0}, arrayfile.HeaderSize+2*8); err != nil {
		t.Fatalf("failed to write element: %v", err)
	}
	f.Close()

	if _, err := NewArray[interval](params, intervalSerializer{}); !errors.Is(err, array.ErrCorruption) {
		t.Errorf("invalid element should be reported, got %v", err)
	}
}

func TestArray_ElementSizeMismatchIsDetected(t *testing.T) {
	params := Parameters{Directory: t.TempDir(), Length: 4}
	closeTestArray(t, openTestArray(t, params))
	if _, err := NewArray[uint32](params, common.Uint32Serializer{}); !errors.Is(err, array.ErrCorruption) {
		t.Errorf("element size mismatch should be reported, got %v", err)
	}
}

func TestArray_ExistingLengthIsRetained(t *testing.T) {
	dir := t.TempDir()
	closeTestArray(t, openTestArray(t, Parameters{Directory: dir, Length: 10}))

	core, logs := observer.New(zapcore.InfoLevel)
	a := openTestArray(t, Parameters{Directory: dir, Length: 20, Logger: common.NewZapLogger(zap.New(core))})
	defer closeTestArray(t, a)
	if got, want := a.Length(), 10; got != want {
		t.Errorf("unexpected length, wanted %d, got %d", want, got)
	}
	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	if len(warnings) != 1 {
		t.Fatalf("expected a warning on the length mismatch, got %v", warnings)
	}
	fields := warnings[0].ContextMap()
	if fields["requested"] != int64(20) || fields["length"] != int64(10) {
		t.Errorf("unexpected fields of warning: %v", fields)
	}
}

func TestArray_DirectoryCanOnlyBeOpenedOnce(t *testing.T) {
	params := Parameters{Directory: t.TempDir(), Length: 10}
	a := openTestArray(t, params)
	if _, err := NewArray[uint64](params, common.Uint64Serializer{}); !errors.Is(err, array.ErrInitialization) {
		t.Errorf("opening a locked directory should fail, got %v", err)
	}
	closeTestArray(t, a)
	closeTestArray(t, openTestArray(t, params))
}

func TestArray_OperationsFailAfterClose(t *testing.T) {
	a := openTestArray(t, Parameters{Directory: t.TempDir(), Length: 10})
	closeTestArray(t, a)
	if _, err := a.Set(1, 1); !errors.Is(err, array.ErrNotReady) {
		t.Errorf("updates after close should fail, got %v", err)
	}
	if err := a.Sync(); !errors.Is(err, array.ErrNotReady) {
		t.Errorf("sync after close should fail, got %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("closing twice should be a no-op, got %v", err)
	}
}

func TestArray_InvalidParametersAreRejected(t *testing.T) {
	tests := map[string]Parameters{
		"no directory":    {Length: 10},
		"negative length": {Directory: t.TempDir(), Length: -1},
		"unknown log":     {Directory: t.TempDir(), Length: 10, LogVariant: "tape"},
		"negative limits": {Directory: t.TempDir(), Length: 10, MaxEntries: -1},
	}
	for name, params := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := NewArray[uint64](params, common.Uint64Serializer{}); !errors.Is(err, UnsupportedConfiguration) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestParameters_DefaultsAreEnforced(t *testing.T) {
	params, err := Parameters{Directory: "dir"}.withDefaults()
	if err != nil {
		t.Fatalf("failed to apply defaults: %v", err)
	}
	if params.EntrySize != DefaultEntrySize || params.MaxEntries != DefaultMaxEntries || params.RetainEntries != DefaultRetainEntries {
		t.Errorf("unexpected entry limits: %+v", params)
	}
	if params.LogVariant != FileLog {
		t.Errorf("unexpected log variant %q", params.LogVariant)
	}
	if params.Logger == nil {
		t.Errorf("missing default logger")
	}
}

func TestParameters_CanBeLoadedFromJson(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.json")
	want := Parameters{Directory: "/data/array", Length: 1000, EntrySize: 50, MaxEntries: 3, RetainEntries: 2, LogVariant: LevelDbLog}
	if err := utils.WriteJsonFile(path, want); err != nil {
		t.Fatalf("failed to write parameters: %v", err)
	}
	got, err := LoadParameters(path)
	if err != nil {
		t.Fatalf("failed to load parameters: %v", err)
	}
	if got != want {
		t.Errorf("unexpected parameters, wanted %+v, got %+v", want, got)
	}
	if _, err := LoadParameters(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Errorf("loading missing parameters should fail")
	}
}

func TestArray_ConcurrentReadersObserveUpdates(t *testing.T) {
	const length = 64
	a := openTestArray(t, Parameters{Directory: t.TempDir(), Length: length, EntrySize: 16, MaxEntries: 2})
	defer closeTestArray(t, a)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				index := (w*length/4 + i) % length
				if _, err := a.Set(index, uint64(w+1)); err != nil {
					errs <- err
					return
				}
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				value, err := a.Get(i % length)
				if err != nil {
					errs <- err
					return
				}
				if value > 4 {
					errs <- fmt.Errorf("unexpected value %d", value)
					return
				}
				a.GetLWMark()
				a.GetHWMark()
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 5; i++ {
			if err := a.Sync(); err != nil {
				errs <- err
				return
			}
		}
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent access failed: %v", err)
	}

	if err := a.Sync(); err != nil {
		t.Fatalf("failed to sync: %v", err)
	}
	if got, want := a.GetLWMark(), int64(800); got != want {
		t.Errorf("unexpected lwm, wanted %d, got %d", want, got)
	}
	buffer := make([]byte, 8)
	for i := 0; i < length; i++ {
		if err := a.file.Read(i, buffer); err != nil {
			t.Fatalf("failed to read element: %v", err)
		}
		value, _ := a.Get(i)
		if got := (common.Uint64Serializer{}).FromBytes(buffer); got != value {
			t.Errorf("file and memory disagree at index %d, file %d, memory %d", i, got, value)
		}
	}
}

func TestArray_MemoryFootprintCoversValues(t *testing.T) {
	a := openTestArray(t, Parameters{Directory: t.TempDir(), Length: 1000})
	defer closeTestArray(t, a)
	mf := a.GetMemoryFootprint()
	if got, want := mf.GetChild("values").Value(), uintptr(8000); got != want {
		t.Errorf("unexpected footprint of values, wanted %d, got %d", want, got)
	}
	if mf.GetChild("entryManager") == nil {
		t.Errorf("missing entry manager footprint")
	}
}

func TestDetectLogVariant_ReportsVariantInUse(t *testing.T) {
	for _, variant := range logVariants {
		t.Run(string(variant), func(t *testing.T) {
			dir := t.TempDir()
			if got := DetectLogVariant(dir); got != FileLog {
				t.Errorf("empty directory should report default variant, got %v", got)
			}
			closeTestArray(t, openTestArray(t, Parameters{Directory: dir, Length: 1, LogVariant: variant}))
			if got := DetectLogVariant(dir); got != variant {
				t.Errorf("unexpected variant, wanted %v, got %v", variant, got)
			}
		})
	}
}
