// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package file implements a redo log keeping each segment in a file of its
// own within a log directory.
package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Fantom-foundation/Carmen-array/go/backend/array"
	"github.com/Fantom-foundation/Carmen-array/go/backend/array/redolog"
	"github.com/Fantom-foundation/Carmen-array/go/backend/utils"
)

// DirectoryName is the name of the log directory within an array directory.
const DirectoryName = "entries"

const (
	segmentPrefix = "entry_"
	segmentSuffix = ".log"
)

type fileLog struct {
	directory string
}

// OpenLog opens the segment log stored in the given directory, creating the
// directory if needed. Left-over temporary files of interrupted writes are
// removed.
func OpenLog(directory string) (redolog.Log, error) {
	if err := os.MkdirAll(directory, 0700); err != nil {
		return nil, fmt.Errorf("%w: %w", array.ErrIO, err)
	}
	files, err := os.ReadDir(directory)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", array.ErrIO, err)
	}
	for _, file := range files {
		if strings.HasSuffix(file.Name(), ".tmp") {
			if err := os.Remove(filepath.Join(directory, file.Name())); err != nil {
				return nil, fmt.Errorf("%w: %w", array.ErrIO, err)
			}
		}
	}
	return &fileLog{directory: directory}, nil
}

func segmentName(id redolog.SegmentId) string {
	return fmt.Sprintf("%s%020d_%020d%s", segmentPrefix, id.MinScn, id.MaxScn, segmentSuffix)
}

func parseSegmentName(name string) (redolog.SegmentId, bool) {
	if !strings.HasPrefix(name, segmentPrefix) || !strings.HasSuffix(name, segmentSuffix) {
		return redolog.SegmentId{}, false
	}
	parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(name, segmentPrefix), segmentSuffix), "_")
	if len(parts) != 2 {
		return redolog.SegmentId{}, false
	}
	minScn, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return redolog.SegmentId{}, false
	}
	maxScn, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || maxScn < minScn {
		return redolog.SegmentId{}, false
	}
	return redolog.SegmentId{MinScn: minScn, MaxScn: maxScn}, true
}

func (l *fileLog) Write(segment redolog.Segment) error {
	if err := utils.WriteFileAtomically(filepath.Join(l.directory, segmentName(segment.Id)), segment.Data); err != nil {
		return fmt.Errorf("%w: failed to write segment %v: %w", array.ErrIO, segment.Id, err)
	}
	return nil
}

func (l *fileLog) ListAll() ([]redolog.SegmentId, error) {
	files, err := os.ReadDir(l.directory)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", array.ErrIO, err)
	}
	res := make([]redolog.SegmentId, 0, len(files))
	for _, file := range files {
		if id, ok := parseSegmentName(file.Name()); ok && file.Type().IsRegular() {
			res = append(res, id)
		}
	}
	redolog.SortSegments(res)
	return res, nil
}

func (l *fileLog) Read(id redolog.SegmentId) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(l.directory, segmentName(id)))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read segment %v: %w", array.ErrIO, id, err)
	}
	return data, nil
}

func (l *fileLog) Remove(id redolog.SegmentId) error {
	err := os.Remove(filepath.Join(l.directory, segmentName(id)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: failed to remove segment %v: %w", array.ErrIO, id, err)
	}
	return nil
}

// Flush makes removals of segments durable. Written segments are durable
// as soon as Write returns.
func (l *fileLog) Flush() error {
	if err := utils.SyncDirectory(l.directory); err != nil {
		return fmt.Errorf("%w: %w", array.ErrIO, err)
	}
	return nil
}

func (l *fileLog) Close() error {
	return l.Flush()
}
