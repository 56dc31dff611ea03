// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && amd64

package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime"

	_ "github.com/usbarmory/go-uefi/cmd"
	"github.com/usbarmory/go-uefi/shell"
	"github.com/usbarmory/go-uefi/uefi/x64"
)

func init() {
	log.SetFlags(0)
}

func main() {
	logFile, _ := os.OpenFile("/runtime.log", os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	log.SetOutput(io.MultiWriter(os.Stdout, logFile))

	banner := fmt.Sprintf("%s/%s (%s) • UEFI", runtime.GOOS, runtime.GOARCH, runtime.Version())

	if x64.UEFI.Boot != nil {
		if vendor, err := x64.UEFI.FirmwareVendor(); err == nil {
			banner += " • " + vendor
		}
	}

	iface := &shell.Interface{
		Banner:     banner,
		Log:        logFile,
		ReadWriter: x64.Console,
	}

	iface.Start()

	if x64.UEFI.Boot != nil {
		log.Print("exiting to firmware")

		if err := x64.UEFI.Boot.Exit(0); err != nil {
			log.Printf("could not exit, %v", err)
		}
	}

	runtime.Exit(0)
}
