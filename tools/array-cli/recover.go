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
	"errors"
	"fmt"

	"github.com/Fantom-foundation/Carmen-array/go/backend/array/entry"
	"github.com/Fantom-foundation/Carmen-array/go/backend/array/recoverable"
	"github.com/Fantom-foundation/Carmen-array/go/common"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var recoverCommand = cli.Command{
	Action: recoverArray,
	Name:   "recover",
	Usage:  "replays pending redo log segments into the array file",
	Flags: []cli.Flag{
		&dirFlag,
	},
}

func recoverArray(ctx *cli.Context) error {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer logger.Sync()

	return withStorage(ctx, func(s *storage) error {
		lwm, hwm := s.file.GetLwmScn(), s.file.GetHwmScn()
		factory, err := entry.NewFactory[[]byte](common.RawSerializer{ElementSize: s.file.GetElementSize()}, recoverable.DefaultEntrySize)
		if err != nil {
			return err
		}
		manager, err := recoverable.NewEntryManager[[]byte](
			recoverable.NewFileUpdater(s.file),
			s.log,
			factory,
			recoverable.DefaultMaxEntries,
			recoverable.DefaultRetainEntries,
			common.NewZapLogger(logger),
		)
		if err != nil {
			return err
		}
		if err := manager.Init(lwm, hwm); err != nil {
			return errors.Join(err, manager.Close())
		}
		if err := manager.Close(); err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "Recovered %s: LWM SCN %d -> %d, HWM SCN %d\n", s.directory, lwm, s.file.GetLwmScn(), s.file.GetHwmScn())
		return nil
	})
}
