// Copyright (c) The go-uefi authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/usbarmory/go-uefi/uefi"
)

func newGUIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "guid <registry format GUID>",
		Short: "Show the EFI_GUID memory layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			guid, err := uefi.ParseGUID(args[0])

			if err != nil {
				return fmt.Errorf("invalid GUID, %v", err)
			}

			w := cmd.OutOrStdout()

			fmt.Fprintf(w, "GUID ....: %s\n", guid)
			fmt.Fprintf(w, "Bytes ...: % x\n", guid[:])

			return nil
		},
	}
}
