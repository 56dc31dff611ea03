// Copyright (c) The go-uefi authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/usbarmory/go-uefi/uefi"
)

func newMemmapCmd(v *viper.Viper, configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memmap <file>",
		Short: "Decode a raw EFI memory map buffer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(v, *configFile)

			if err != nil {
				return fmt.Errorf("could not load configuration, %v", err)
			}

			buf, err := os.ReadFile(args[0])

			if err != nil {
				return err
			}

			m, err := uefi.ParseMemoryMap(buf, c.DescriptorSize)

			if err != nil {
				return err
			}

			if c.E820 {
				return printE820(cmd.OutOrStdout(), m)
			}

			return printMemoryMap(cmd.OutOrStdout(), m)
		},
	}

	cmd.Flags().Int("descriptor-size", defaultDescriptorSize, "EFI_MEMORY_DESCRIPTOR stride")
	cmd.Flags().Bool("e820", false, "convert to E820 entries")

	v.BindPFlag("descriptor_size", cmd.Flags().Lookup("descriptor-size"))
	v.BindPFlag("e820", cmd.Flags().Lookup("e820"))

	return cmd
}

func printMemoryMap(w io.Writer, m *uefi.MemoryMap) error {
	t := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)

	fmt.Fprintf(t, "Type\tStart\tEnd\tPages\tAttributes\n")

	for _, d := range m.All() {
		fmt.Fprintf(t, "%s\t%016x\t%016x\t%d\t%016x\n",
			uefi.MemoryTypeName(d.Type), d.PhysicalStart, d.PhysicalEnd()-1, d.NumberOfPages, d.Attribute)
	}

	fmt.Fprintf(t, "%d descriptor(s)\n", m.Len())

	return t.Flush()
}

func printE820(w io.Writer, m *uefi.MemoryMap) error {
	entries, err := m.E820()

	if err != nil {
		return err
	}

	t := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)

	fmt.Fprintf(t, "Type\tStart\tSize\n")

	for _, e := range entries {
		fmt.Fprintf(t, "%d\t%016x\t%x\n", e.MemType, e.Addr, e.Size)
	}

	return t.Flush()
}
