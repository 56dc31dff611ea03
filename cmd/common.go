// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"runtime/pprof"

	"github.com/usbarmory/go-uefi/shell"
)

func init() {
	shell.Add(shell.Cmd{
		Name: "build",
		Help: "build information",
		Fn:   buildInfoCmd,
	})

	shell.Add(shell.Cmd{
		Name: "quit",
		Help: "close session",
		Fn:   quitCmd,
	})

	shell.Add(shell.Cmd{
		Name: "stack",
		Help: "goroutine stack trace (current)",
		Fn:   stackCmd,
	})

	shell.Add(shell.Cmd{
		Name: "stackall",
		Help: "goroutine stack trace (all)",
		Fn:   stackallCmd,
	})
}

func buildInfoCmd(_ *shell.Interface, _ []string) (string, error) {
	bi, ok := debug.ReadBuildInfo()

	if !ok {
		return "no build information", nil
	}

	return bi.String(), nil
}

func quitCmd(iface *shell.Interface, _ []string) (string, error) {
	if iface != nil && iface.Terminal != nil {
		fmt.Fprintf(iface.Terminal, "Goodbye from %s/%s\n", runtime.GOOS, runtime.GOARCH)
	}

	return "logout", io.EOF
}

func stackCmd(_ *shell.Interface, _ []string) (string, error) {
	return string(debug.Stack()), nil
}

func stackallCmd(_ *shell.Interface, _ []string) (string, error) {
	buf := new(bytes.Buffer)
	pprof.Lookup("goroutine").WriteTo(buf, 1)

	return buf.String(), nil
}
