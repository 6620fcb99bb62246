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

var hashCommand = cli.Command{
	Action: getHash,
	Name:   "hash",
	Usage:  "prints the SHA3-256 digest of the elements of an array",
	Flags: []cli.Flag{
		&dirFlag,
	},
}

func getHash(ctx *cli.Context) error {
	return withStorage(ctx, func(s *storage) error {
		hash, err := s.file.Hash()
		if err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "%x\n", hash)
		return nil
	})
}
