// Copyright (c) The go-uefi authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd(v *viper.Viper) *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "efidump",
		Short: "UEFI data decoder",
		Long: `efidump decodes data structures captured from UEFI firmware,
such as EFI_GUID values and EFI_BOOT_SERVICES.GetMemoryMap() buffers.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "configuration file (default ./efidump.yaml)")

	root.AddCommand(
		newGUIDCmd(),
		newMemmapCmd(v, &configFile),
	)

	return root
}
