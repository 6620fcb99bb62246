// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package ldb implements a redo log storing segments in a LevelDB instance.
package ldb

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Fantom-foundation/Carmen-array/go/backend/array"
	"github.com/Fantom-foundation/Carmen-array/go/backend/array/redolog"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// DirectoryName is the name of the LevelDB directory within an array
// directory.
const DirectoryName = "entries.ldb"

// segmentKeyPrefix is the table space of segments; keys are the prefix
// followed by the big-endian MinScn and MaxScn, so key order is SCN order.
const segmentKeyPrefix = 's'

const keySize = 1 + 8 + 8

type ldbLog struct {
	db *leveldb.DB
}

// OpenLog opens or creates a LevelDB based segment log in the given directory.
func OpenLog(directory string) (redolog.Log, error) {
	db, err := leveldb.OpenFile(directory, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open segment database: %w", array.ErrIO, err)
	}
	return &ldbLog{db: db}, nil
}

func segmentKey(id redolog.SegmentId) []byte {
	key := make([]byte, keySize)
	key[0] = segmentKeyPrefix
	binary.BigEndian.PutUint64(key[1:], uint64(id.MinScn))
	binary.BigEndian.PutUint64(key[9:], uint64(id.MaxScn))
	return key
}

func parseSegmentKey(key []byte) (redolog.SegmentId, error) {
	if len(key) != keySize || key[0] != segmentKeyPrefix {
		return redolog.SegmentId{}, fmt.Errorf("%w: invalid segment key %x", array.ErrCorruption, key)
	}
	return redolog.SegmentId{
		MinScn: int64(binary.BigEndian.Uint64(key[1:])),
		MaxScn: int64(binary.BigEndian.Uint64(key[9:])),
	}, nil
}

func (l *ldbLog) Write(segment redolog.Segment) error {
	if err := l.db.Put(segmentKey(segment.Id), segment.Data, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("%w: failed to write segment %v: %w", array.ErrIO, segment.Id, err)
	}
	return nil
}

func (l *ldbLog) ListAll() ([]redolog.SegmentId, error) {
	iter := l.db.NewIterator(&util.Range{Start: []byte{segmentKeyPrefix}, Limit: []byte{segmentKeyPrefix + 1}}, nil)
	defer iter.Release()
	var res []redolog.SegmentId
	for iter.Next() {
		id, err := parseSegmentKey(iter.Key())
		if err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", array.ErrIO, err)
	}
	return res, nil
}

func (l *ldbLog) Read(id redolog.SegmentId) ([]byte, error) {
	data, err := l.db.Get(segmentKey(id), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, fmt.Errorf("%w: segment %v not found", array.ErrIO, id)
		}
		return nil, fmt.Errorf("%w: failed to read segment %v: %w", array.ErrIO, id, err)
	}
	return data, nil
}

func (l *ldbLog) Remove(id redolog.SegmentId) error {
	if err := l.db.Delete(segmentKey(id), nil); err != nil {
		return fmt.Errorf("%w: failed to remove segment %v: %w", array.ErrIO, id, err)
	}
	return nil
}

// Flush makes all preceding removals durable by issuing an empty synced
// write, which forces the LevelDB journal to disk.
func (l *ldbLog) Flush() error {
	if err := l.db.Write(new(leveldb.Batch), &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("%w: %w", array.ErrIO, err)
	}
	return nil
}

func (l *ldbLog) Close() error {
	return errors.Join(
		l.Flush(),
		l.db.Close(),
	)
}
