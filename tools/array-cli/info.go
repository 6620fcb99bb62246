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

	"github.com/urfave/cli/v2"
)

var infoCommand = cli.Command{
	Action: getInfo,
	Name:   "info",
	Usage:  "prints summary information about an array directory",
	Flags: []cli.Flag{
		&dirFlag,
	},
}

func getInfo(ctx *cli.Context) error {
	return withStorage(ctx, func(s *storage) error {
		ids, err := s.log.ListAll()
		if err != nil {
			return err
		}
		pending := 0
		for _, id := range ids {
			if id.MaxScn > s.file.GetLwmScn() {
				pending++
			}
		}
		w := ctx.App.Writer
		fmt.Fprintf(w, "Directory:    %s\n", s.directory)
		fmt.Fprintf(w, "Array file:   %s\n", s.file.GetPath())
		fmt.Fprintf(w, "Length:       %d\n", s.file.GetArrayLength())
		fmt.Fprintf(w, "Element size: %d\n", s.file.GetElementSize())
		fmt.Fprintf(w, "LWM SCN:      %d\n", s.file.GetLwmScn())
		fmt.Fprintf(w, "HWM SCN:      %d\n", s.file.GetHwmScn())
		fmt.Fprintf(w, "Log variant:  %s\n", s.variant)
		fmt.Fprintf(w, "Segments:     %d (%d pending)\n", len(ids), pending)
		if len(ids) > 0 {
			fmt.Fprintf(w, "Segment SCNs: %d..%d\n", ids[0].MinScn, ids[len(ids)-1].MaxScn)
		}
		return nil
	})
}
