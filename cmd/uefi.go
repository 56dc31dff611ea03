// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package cmd implements the interactive shell commands exercising the UEFI
// services.
package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"time"

	"github.com/usbarmory/go-uefi/shell"
	"github.com/usbarmory/go-uefi/uefi"
)

// UEFI represents the services instance used by all commands.
var UEFI *uefi.Services

// ErrNoServices is returned by commands when no UEFI services instance is
// available.
var ErrNoServices = errors.New("EFI services unavailable")

const guidPattern = `([[:xdigit:]]{8}-[[:xdigit:]]{4}-[[:xdigit:]]{4}-[[:xdigit:]]{4}-[[:xdigit:]]{12})`

func init() {
	shell.Add(shell.Cmd{
		Name: "uefi",
		Help: "UEFI information",
		Fn:   uefiCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "protocol",
		Args:    1,
		Pattern: regexp.MustCompile(`^protocol ` + guidPattern + `$`),
		Syntax:  "<registry format GUID>",
		Help:    "EFI_BOOT_SERVICES.LocateProtocol()",
		Fn:      locateCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "handles",
		Args:    1,
		Pattern: regexp.MustCompile(`^handles ` + guidPattern + `$`),
		Syntax:  "<registry format GUID>",
		Help:    "EFI_BOOT_SERVICES.LocateHandle()",
		Fn:      handlesCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "memmap",
		Args:    1,
		Pattern: regexp.MustCompile(`^memmap(?: (e820))?$`),
		Syntax:  "(e820)?",
		Help:    "EFI_BOOT_SERVICES.GetMemoryMap()",
		Fn:      memmapCmd,
	})

	shell.Add(shell.Cmd{
		Name: "time",
		Help: "EFI_RUNTIME_SERVICES.GetTime()",
		Fn:   timeCmd,
	})

	shell.Add(shell.Cmd{
		Name: "vars",
		Help: "EFI_RUNTIME_SERVICES.GetNextVariableName()",
		Fn:   varsCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "wdog",
		Args:    1,
		Pattern: regexp.MustCompile(`^wdog (\d+)$`),
		Syntax:  "<seconds>",
		Help:    "EFI_BOOT_SERVICES.SetWatchdogTimer()",
		Fn:      wdogCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "reset",
		Args:    1,
		Pattern: regexp.MustCompile(`^reset(?: (cold|warm))?$`),
		Help:    "EFI_RUNTIME_SERVICES.ResetSystem()",
		Syntax:  "(cold|warm)?",
		Fn:      resetCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "halt, shutdown",
		Args:    1,
		Pattern: regexp.MustCompile(`^(halt|shutdown)$`),
		Help:    "shutdown system",
		Fn:      shutdownCmd,
	})

	shell.Add(shell.Cmd{
		Name: "exit",
		Help: "EFI_BOOT_SERVICES.Exit()",
		Fn:   exitCmd,
	})
}

func services() (*uefi.Services, error) {
	if UEFI == nil || UEFI.Boot == nil {
		return nil, ErrNoServices
	}

	return UEFI, nil
}

func parseGUID(s string) (uefi.GUID, error) {
	guid, err := uefi.ParseGUID(s)

	if err != nil {
		return guid, fmt.Errorf("invalid GUID, %v", err)
	}

	return guid, nil
}

func uefiCmd(_ *shell.Interface, _ []string) (res string, err error) {
	var buf bytes.Buffer

	s, err := services()

	if err != nil {
		return
	}

	t := s.SystemTable.Inner()
	vendor, _ := s.FirmwareVendor()

	fmt.Fprintf(&buf, "UEFI Revision ......: %d.%d\n", s.SystemTable.Revision>>16, s.SystemTable.Revision&0xffff)
	fmt.Fprintf(&buf, "Firmware Vendor ....: %s\n", vendor)
	fmt.Fprintf(&buf, "Firmware Revision ..: %#x\n", t.FirmwareRevision)
	fmt.Fprintf(&buf, "Runtime Services  ..: %#x\n", t.RuntimeServices)
	fmt.Fprintf(&buf, "Boot Services ......: %#x\n", t.BootServices)

	if gop, err := s.Boot.GetGraphicsOutput(); err == nil {
		if info, err := gop.ModeInformation(); err == nil {
			fmt.Fprintf(&buf, "Graphics Output ....: %dx%d\n", info.HorizontalResolution, info.VerticalResolution)
		}
	}

	fmt.Fprintf(&buf, "Configuration Tables: %#x\n", t.ConfigurationTable)

	if c, err := s.ConfigurationTables(); err == nil {
		for _, t := range c {
			fmt.Fprintf(&buf, "  %s (%#x)\n", t.GUID, t.VendorTable)
		}
	}

	return buf.String(), nil
}

func locateCmd(_ *shell.Interface, arg []string) (res string, err error) {
	s, err := services()

	if err != nil {
		return
	}

	guid, err := parseGUID(arg[0])

	if err != nil {
		return
	}

	addr, err := s.Boot.LocateProtocol(guid)

	return fmt.Sprintf("%s: %#08x", guid, addr), err
}

func handlesCmd(_ *shell.Interface, arg []string) (res string, err error) {
	var buf bytes.Buffer

	s, err := services()

	if err != nil {
		return
	}

	guid, err := parseGUID(arg[0])

	if err != nil {
		return
	}

	handles, err := s.Boot.LocateHandle(guid)

	if err != nil {
		return
	}

	for _, h := range handles {
		fmt.Fprintf(&buf, "%#016x\n", h)
	}

	fmt.Fprintf(&buf, "%d handle(s)", len(handles))

	return buf.String(), nil
}

func memmapCmd(_ *shell.Interface, arg []string) (res string, err error) {
	var buf bytes.Buffer
	var memoryMap *uefi.MemoryMap

	s, err := services()

	if err != nil {
		return
	}

	if memoryMap, err = s.Boot.GetMemoryMap(); err != nil {
		return
	}

	if arg[0] == "e820" {
		return formatE820(memoryMap)
	}

	fmt.Fprintf(&buf, "Type                Start            End              Pages            Attributes\n")

	for _, desc := range memoryMap.All() {
		fmt.Fprintf(&buf, "%-19s %016x %016x %016x %016x\n",
			uefi.MemoryTypeName(desc.Type), desc.PhysicalStart, desc.PhysicalEnd()-1, desc.NumberOfPages, desc.Attribute)
	}

	return buf.String(), err
}

func timeCmd(_ *shell.Interface, _ []string) (res string, err error) {
	s, err := services()

	if err != nil {
		return
	}

	t, err := s.Runtime.GetTime()

	if err != nil {
		return
	}

	return t.Format(time.RFC3339), nil
}

func varsCmd(_ *shell.Interface, _ []string) (res string, err error) {
	var buf bytes.Buffer

	s, err := services()

	if err != nil {
		return
	}

	names, err := s.Runtime.Variables()

	for _, v := range names {
		fmt.Fprintf(&buf, "%s %s\n", v.GUID, v.Name)
	}

	return buf.String(), err
}

func wdogCmd(_ *shell.Interface, arg []string) (res string, err error) {
	s, err := services()

	if err != nil {
		return
	}

	timeout, err := strconv.ParseUint(arg[0], 10, 32)

	if err != nil {
		return "", fmt.Errorf("invalid timeout, %v", err)
	}

	err = s.Boot.SetWatchdogTimer(time.Duration(timeout) * time.Second)

	return
}

func resetCmd(_ *shell.Interface, arg []string) (_ string, err error) {
	var resetType int

	s, err := services()

	if err != nil {
		return
	}

	switch arg[0] {
	case "cold":
		resetType = uefi.EfiResetCold
	case "warm", "":
		resetType = uefi.EfiResetWarm
	case "shutdown":
		resetType = uefi.EfiResetShutdown
	default:
		return "", fmt.Errorf("invalid reset type %q", arg[0])
	}

	log.Printf("performing system reset type %d", resetType)
	err = s.Runtime.ResetSystem(resetType)

	return
}

func shutdownCmd(_ *shell.Interface, _ []string) (_ string, err error) {
	return resetCmd(nil, []string{"shutdown"})
}

func exitCmd(_ *shell.Interface, _ []string) (_ string, err error) {
	s, err := services()

	if err != nil {
		return
	}

	log.Printf("exiting to firmware")

	return "", s.Boot.Exit(0)
}
