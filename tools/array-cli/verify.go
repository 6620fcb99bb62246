// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"fmt"

	"github.com/Fantom-foundation/Carmen-array/go/backend/array/entry"
	"github.com/Fantom-foundation/Carmen-array/go/backend/array/redolog"
	"github.com/Fantom-foundation/Carmen-array/go/common"
	"github.com/urfave/cli/v2"
)

var verifyCommand = cli.Command{
	Action: verify,
	Name:   "verify",
	Usage:  "checks the consistency of the array file and its redo log",
	Flags: []cli.Flag{
		&dirFlag,
	},
}

func verify(ctx *cli.Context) error {
	return withStorage(ctx, func(s *storage) error {
		problems, err := verifyStorage(s)
		if err != nil {
			return err
		}
		w := ctx.App.Writer
		for _, problem := range problems {
			fmt.Fprintf(w, "Problem: %v\n", problem)
		}
		if len(problems) > 0 {
			return fmt.Errorf("found %d problem(s) in %s", len(problems), s.directory)
		}
		fmt.Fprintf(w, "Array in %s is consistent\n", s.directory)
		return nil
	})
}

// verifyStorage checks every log segment and the coverage of the watermark
// range. Header problems are detected when opening the storage. Inconsistencies
// are reported as problems, failures to access the data as errors.
func verifyStorage(s *storage) ([]error, error) {
	factory, err := entry.NewFactory[[]byte](common.RawSerializer{ElementSize: s.file.GetElementSize()}, 1)
	if err != nil {
		return nil, err
	}
	ids, err := s.log.ListAll()
	if err != nil {
		return nil, err
	}
	lwm, hwm := s.file.GetLwmScn(), s.file.GetHwmScn()

	var problems []error
	var pending []redolog.SegmentId
	for _, id := range ids {
		data, err := s.log.Read(id)
		if err != nil {
			return nil, err
		}
		if minScn, maxScn, err := entry.ReadRange(data); err == nil && (minScn != id.MinScn || maxScn != id.MaxScn) {
			problems = append(problems, fmt.Errorf("segment %v is labeled with scns [%d,%d]", id, minScn, maxScn))
		}
		e, err := factory.Decode(data)
		if err != nil {
			problems = append(problems, fmt.Errorf("segment %v: %w", id, err))
			continue
		}
		if e.MinScn() != id.MinScn || e.MaxScn() != id.MaxScn {
			problems = append(problems, fmt.Errorf("segment %v holds scns [%d,%d]", id, e.MinScn(), e.MaxScn()))
		}
		for _, value := range e.Values() {
			if value.Index < 0 || value.Index >= s.file.GetArrayLength() {
				problems = append(problems, fmt.Errorf("segment %v updates index %d beyond length %d", id, value.Index, s.file.GetArrayLength()))
				break
			}
		}
		if id.MaxScn > lwm && id.MinScn <= hwm {
			pending = append(pending, id)
		}
	}
	if err := redolog.CheckContinuity(pending, lwm, hwm); err != nil {
		problems = append(problems, err)
	}
	return problems, nil
}
