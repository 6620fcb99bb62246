// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package recoverable implements fixed-length arrays whose updates survive
// crashes. Updates are batched into entries, written to a redo log, and
// periodically applied to the array file; on start-up, logged but not yet
// applied entries are replayed.
package recoverable

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/Fantom-foundation/Carmen-array/go/backend/array"
	"github.com/Fantom-foundation/Carmen-array/go/backend/array/arrayfile"
	"github.com/Fantom-foundation/Carmen-array/go/backend/array/entry"
	"github.com/Fantom-foundation/Carmen-array/go/backend/array/redolog"
	"github.com/Fantom-foundation/Carmen-array/go/common"
)

type managerState int

const (
	uninitialized managerState = iota
	ready
	failed
	closed
)

func (s managerState) String() string {
	switch s {
	case uninitialized:
		return "uninitialized"
	case ready:
		return "ready"
	case failed:
		return "failed"
	case closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// EntryManager assigns SCNs to updates, collects them in entries, writes
// full entries to the redo log and applies logged entries to the array file
// through an ArrayFileUpdater.
//
// The high-water-mark (HWM) is the highest SCN durably written to the log,
// the low-water-mark (LWM) the highest SCN applied to the array file. Both
// can be read without blocking concurrent writers.
type EntryManager[V any] struct {
	updater       ArrayFileUpdater
	log           redolog.Log
	factory       *entry.Factory[V]
	maxEntries    int
	retainEntries int
	logger        common.Logger

	mu      sync.Mutex
	state   managerState
	lastScn int64               // last SCN handed out
	current *entry.Entry[V]     // entry receiving new values
	pending []*entry.Entry[V]   // sealed, logged, not yet applied
	applied []redolog.SegmentId // applied segments still in the log

	hwm atomic.Int64
	lwm atomic.Int64
}

// NewEntryManager creates a manager in the uninitialized state. Init must be
// called before any values can be appended. Once maxEntries sealed entries
// are pending, they are applied to the array file. Up to retainEntries
// applied segments are kept in the log.
func NewEntryManager[V any](
	updater ArrayFileUpdater,
	log redolog.Log,
	factory *entry.Factory[V],
	maxEntries int,
	retainEntries int,
	logger common.Logger,
) (*EntryManager[V], error) {
	if maxEntries < 1 {
		return nil, fmt.Errorf("max entries must be positive, got %d", maxEntries)
	}
	if retainEntries < 0 {
		return nil, fmt.Errorf("retained entries must not be negative, got %d", retainEntries)
	}
	if logger == nil {
		logger = common.NopLogger{}
	}
	return &EntryManager[V]{
		updater:       updater,
		log:           log,
		factory:       factory,
		maxEntries:    maxEntries,
		retainEntries: retainEntries,
		logger:        logger,
		current:       factory.NewEntry(),
	}, nil
}

// Init restores the manager's state from the watermarks persisted in the
// array file. Segments covering (lwmScn, hwmScn] are replayed into the array
// file; values with an SCN not exceeding lwmScn are skipped, making replay
// idempotent. Segments beyond hwmScn were never acknowledged and are removed.
// On failure, all in-memory state is dropped and the manager is unusable.
func (m *EntryManager[V]) Init(lwmScn, hwmScn int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != uninitialized {
		return fmt.Errorf("entry manager can not be initialized in state %v", m.state)
	}
	if err := m.init(lwmScn, hwmScn); err != nil {
		m.fail()
		return err
	}
	m.state = ready
	return nil
}

func (m *EntryManager[V]) init(lwmScn, hwmScn int64) error {
	if lwmScn < 0 || hwmScn < lwmScn {
		return fmt.Errorf("%w: invalid watermarks lwmScn=%d hwmScn=%d", array.ErrCorruption, lwmScn, hwmScn)
	}
	ids, err := m.log.ListAll()
	if err != nil {
		return err
	}

	var replay []redolog.SegmentId
	m.applied = m.applied[:0]
	for _, id := range ids {
		switch {
		case id.MinScn > hwmScn:
			m.logger.Warn("removing unacknowledged log segment", "segment", id.String(), "hwmScn", hwmScn)
			if err := m.log.Remove(id); err != nil {
				return err
			}
		case id.MaxScn > hwmScn:
			return fmt.Errorf("%w: log segment %v exceeds hwmScn %d", array.ErrCorruption, id, hwmScn)
		case id.MaxScn <= lwmScn:
			m.applied = append(m.applied, id)
		default:
			replay = append(replay, id)
		}
	}

	if err := redolog.CheckContinuity(replay, lwmScn, hwmScn); err != nil {
		return err
	}

	batches := make([]arrayfile.Batch, 0, len(replay))
	for _, id := range replay {
		data, err := m.log.Read(id)
		if err != nil {
			return err
		}
		e, err := m.factory.Decode(data)
		if err != nil {
			return fmt.Errorf("invalid log segment %v: %w", id, err)
		}
		if e.MinScn() != id.MinScn || e.MaxScn() != id.MaxScn {
			return fmt.Errorf("%w: log segment %v holds scns [%d,%d]", array.ErrCorruption, id, e.MinScn(), e.MaxScn())
		}
		batches = append(batches, e.After(lwmScn))
	}
	if len(batches) > 0 {
		m.logger.Info("replaying log segments", "segments", len(batches), "lwmScn", lwmScn, "hwmScn", hwmScn)
		if err := m.updater.UpdateArrayFile(batches); err != nil {
			return err
		}
		m.applied = append(m.applied, replay...)
	}

	m.lastScn = hwmScn
	m.hwm.Store(hwmScn)
	m.lwm.Store(hwmScn)
	m.current = m.factory.NewEntry()
	m.pending = nil
	return m.release()
}

// Append records the assignment of value to the given index and returns the
// SCN assigned to the update. Full entries are sealed and written to the log
// transparently; once maxEntries sealed entries are pending, they are applied
// to the array file before Append returns. If that apply fails, the update is
// already logged and its SCN is returned along with the error.
func (m *EntryManager[V]) Append(index int, value V) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != ready {
		return 0, m.notReady()
	}
	scn := m.lastScn + 1
	if err := m.current.Add(index, value, scn); err != nil {
		return 0, err
	}
	m.lastScn = scn
	if !m.current.IsFull() {
		return scn, nil
	}
	if err := m.seal(); err != nil {
		m.fail()
		return 0, err
	}
	if len(m.pending) >= m.maxEntries {
		if err := m.persist(); err != nil {
			m.fail()
			return scn, err
		}
	}
	return scn, nil
}

// seal closes the current entry, writes it to the log and raises the HWM.
func (m *EntryManager[V]) seal() error {
	e := m.current
	e.Seal()
	id := redolog.SegmentId{MinScn: e.MinScn(), MaxScn: e.MaxScn()}
	if err := m.log.Write(redolog.Segment{Id: id, Data: m.factory.Encode(e)}); err != nil {
		return err
	}
	if err := m.updater.SetHwmScn(id.MaxScn); err != nil {
		return err
	}
	m.hwm.Store(id.MaxScn)
	m.pending = append(m.pending, e)
	m.current = m.factory.NewEntry()
	return nil
}

// apply writes all pending entries to the array file and raises the LWM.
func (m *EntryManager[V]) apply() error {
	if len(m.pending) == 0 {
		return nil
	}
	batches := make([]arrayfile.Batch, 0, len(m.pending))
	for _, e := range m.pending {
		batches = append(batches, e)
	}
	if err := m.updater.UpdateArrayFile(batches); err != nil {
		return err
	}
	for _, e := range m.pending {
		m.applied = append(m.applied, redolog.SegmentId{MinScn: e.MinScn(), MaxScn: e.MaxScn()})
	}
	m.lwm.Store(m.pending[len(m.pending)-1].MaxScn())
	m.pending = m.pending[:0]
	return nil
}

// persist applies pending entries, flushes the array file and the log, and
// releases applied segments outside the retained window.
func (m *EntryManager[V]) persist() error {
	if err := m.apply(); err != nil {
		return err
	}
	if err := m.updater.FlushArrayFile(); err != nil {
		return err
	}
	if err := m.log.Flush(); err != nil {
		return err
	}
	return m.release()
}

func (m *EntryManager[V]) release() error {
	if len(m.applied) <= m.retainEntries {
		return nil
	}
	obsolete := m.applied[:len(m.applied)-m.retainEntries]
	for _, id := range obsolete {
		if err := m.log.Remove(id); err != nil {
			return err
		}
	}
	m.applied = append(m.applied[:0], m.applied[len(obsolete):]...)
	return m.log.Flush()
}

func (m *EntryManager[V]) sync() error {
	if !m.current.IsEmpty() {
		if err := m.seal(); err != nil {
			return err
		}
	}
	return m.apply()
}

// Sync seals and logs the current entry, if it holds any values, and applies
// all pending entries to the array file. On return, LWM equals HWM.
func (m *EntryManager[V]) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != ready {
		return m.notReady()
	}
	if err := m.sync(); err != nil {
		m.fail()
		return err
	}
	return nil
}

// Persist is Sync followed by flushing the array file and the log. Applied
// segments outside the retained window are removed from the log.
func (m *EntryManager[V]) Persist() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != ready {
		return m.notReady()
	}
	err := m.sync()
	if err == nil {
		err = m.persist()
	}
	if err != nil {
		m.fail()
		return err
	}
	return nil
}

// GetHWMark returns the highest SCN durably written to the log.
func (m *EntryManager[V]) GetHWMark() int64 {
	return m.hwm.Load()
}

// GetLWMark returns the highest SCN applied to the array file.
func (m *EntryManager[V]) GetLWMark() int64 {
	return m.lwm.Load()
}

// Clear drops all entries held in memory. Persisted state is not modified.
func (m *EntryManager[V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clear()
}

func (m *EntryManager[V]) clear() {
	m.current = m.factory.NewEntry()
	m.pending = nil
	m.applied = nil
}

func (m *EntryManager[V]) fail() {
	m.clear()
	m.state = failed
}

// Close persists all pending updates and disables the manager. Closing a
// manager that is not ready only disables it.
func (m *EntryManager[V]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var err error
	if m.state == ready {
		err = m.sync()
		if err == nil {
			err = m.persist()
		}
	}
	m.clear()
	m.state = closed
	return err
}

func (m *EntryManager[V]) notReady() error {
	return fmt.Errorf("%w: entry manager is %v", array.ErrNotReady, m.state)
}

// GetMemoryFootprint provides the memory consumed by the buffered entries.
func (m *EntryManager[V]) GetMemoryFootprint() *common.MemoryFootprint {
	m.mu.Lock()
	defer m.mu.Unlock()
	var value entry.Value[V]
	valueSize := unsafe.Sizeof(value)
	pending := 0
	for _, e := range m.pending {
		pending += e.Capacity()
	}
	mf := common.NewMemoryFootprint(unsafe.Sizeof(*m))
	mf.AddChild("current", common.NewMemoryFootprint(uintptr(m.current.Capacity())*valueSize))
	mf.AddChild("pending", common.NewMemoryFootprint(uintptr(pending)*valueSize))
	mf.AddChild("segments", common.NewMemoryFootprint(uintptr(cap(m.applied))*unsafe.Sizeof(redolog.SegmentId{})))
	return mf
}
