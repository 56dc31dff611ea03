// Copyright (c) The go-uefi authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"

	"github.com/usbarmory/go-uefi/shell"
	"github.com/usbarmory/go-uefi/uefi"
)

var pixelFormats = []string{
	"RGBX 8bpp",
	"BGRX 8bpp",
	"bitmask",
	"Blt only",
}

func init() {
	shell.Add(shell.Cmd{
		Name: "gop",
		Help: "EFI_GRAPHICS_OUTPUT_PROTOCOL information",
		Fn:   gopCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "mode",
		Args:    1,
		Pattern: regexp.MustCompile(`^mode (\d+)$`),
		Syntax:  "<n>",
		Help:    "EFI_GRAPHICS_OUTPUT_PROTOCOL.SetMode()",
		Fn:      modeCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "fill",
		Args:    5,
		Pattern: regexp.MustCompile(`^fill ([[:xdigit:]]{6}) (\d+) (\d+) (\d+) (\d+)$`),
		Syntax:  "<rgb> <x> <y> <width> <height>",
		Help:    "EFI_GRAPHICS_OUTPUT_PROTOCOL.Blt() video fill",
		Fn:      fillCmd,
	})
}

func graphicsOutput() (*uefi.GraphicsOutput, error) {
	s, err := services()

	if err != nil {
		return nil, err
	}

	return s.Boot.GetGraphicsOutput()
}

func pixelFormat(f uint32) string {
	if int(f) < len(pixelFormats) {
		return pixelFormats[f]
	}

	return fmt.Sprintf("%d", f)
}

func gopCmd(_ *shell.Interface, _ []string) (res string, err error) {
	var buf bytes.Buffer

	gop, err := graphicsOutput()

	if err != nil {
		return
	}

	pm, err := gop.Mode()

	if err != nil {
		return
	}

	fmt.Fprintf(&buf, "Mode ...............: %d/%d\n", pm.Mode, pm.MaxMode)

	if fb, err := gop.Framebuffer(); err == nil {
		fmt.Fprintf(&buf, "Frame Buffer .......: %#x (%d bytes, stride %d)\n", pm.FrameBufferBase, pm.FrameBufferSize, fb.Stride())
		fb.Release()
	}

	for n := range int(pm.MaxMode) {
		info, err := gop.QueryMode(n)

		if err != nil {
			continue
		}

		fmt.Fprintf(&buf, "  %2d: %4dx%-4d %s\n", n,
			info.HorizontalResolution, info.VerticalResolution, pixelFormat(info.PixelFormat))
	}

	return buf.String(), nil
}

func modeCmd(_ *shell.Interface, arg []string) (res string, err error) {
	n, err := strconv.Atoi(arg[0])

	if err != nil {
		return "", fmt.Errorf("invalid mode, %v", err)
	}

	gop, err := graphicsOutput()

	if err != nil {
		return
	}

	return "", gop.SetMode(n)
}

func fillCmd(_ *shell.Interface, arg []string) (res string, err error) {
	var dim [4]int

	rgb, err := strconv.ParseUint(arg[0], 16, 32)

	if err != nil {
		return "", fmt.Errorf("invalid color, %v", err)
	}

	for i := range dim {
		if dim[i], err = strconv.Atoi(arg[i+1]); err != nil {
			return "", fmt.Errorf("invalid coordinates, %v", err)
		}
	}

	gop, err := graphicsOutput()

	if err != nil {
		return
	}

	return "", gop.Fill(uefi.RGB(uint32(rgb)), dim[0], dim[1], dim[2], dim[3])
}
