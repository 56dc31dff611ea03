// Copyright (c) The go-uefi authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/usbarmory/go-uefi/shell"
	"github.com/usbarmory/go-uefi/uapi"
	"github.com/usbarmory/go-uefi/uefi"
)

// maximum file size displayed by `cat`
const maxCatSize = 64 * 1024

func init() {
	shell.Add(shell.Cmd{
		Name:    "ls",
		Args:    1,
		Pattern: regexp.MustCompile(`^ls(?: (.*))?$`),
		Syntax:  "(path)?",
		Help:    "list directory contents of the image volume",
		Fn:      lsCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "cat",
		Args:    1,
		Pattern: regexp.MustCompile(`^cat (.+)$`),
		Syntax:  "<path>",
		Help:    "show file contents of the image volume",
		Fn:      catCmd,
	})

	shell.Add(shell.Cmd{
		Name:    "stat",
		Args:    1,
		Pattern: regexp.MustCompile(`^stat (.+)$`),
		Syntax:  "<path>",
		Help:    "show file information of the image volume",
		Fn:      statCmd,
	})

	shell.Add(shell.Cmd{
		Name: "entries",
		Help: "list boot loader entries of the image volume",
		Fn:   entriesCmd,
	})
}

// cleanPath converts a shell path, with either separator, to an [fs.FS] one.
func cleanPath(p string) string {
	p = strings.ReplaceAll(strings.TrimSpace(p), `\`, "/")
	p = strings.TrimPrefix(path.Clean("/"+p), "/")

	if p == "" {
		return "."
	}

	return p
}

func root() (*uefi.FS, error) {
	s, err := services()

	if err != nil {
		return nil, err
	}

	return s.Root()
}

func formatInfo(info fs.FileInfo) string {
	return fmt.Sprintf("%s %10d %s %s",
		info.Mode(), info.Size(), info.ModTime().Format(time.DateTime), info.Name())
}

func lsCmd(_ *shell.Interface, arg []string) (res string, err error) {
	var buf bytes.Buffer

	fsys, err := root()

	if err != nil {
		return
	}

	entries, err := fs.ReadDir(fsys, cleanPath(arg[0]))

	if err != nil {
		return
	}

	for _, e := range entries {
		info, err := e.Info()

		if err != nil {
			return "", err
		}

		fmt.Fprintln(&buf, formatInfo(info))
	}

	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func catCmd(_ *shell.Interface, arg []string) (res string, err error) {
	fsys, err := root()

	if err != nil {
		return
	}

	name := cleanPath(arg[0])
	info, err := fs.Stat(fsys, name)

	if err != nil {
		return
	}

	if info.Size() > maxCatSize {
		return "", fmt.Errorf("file too large (%d bytes)", info.Size())
	}

	b, err := fs.ReadFile(fsys, name)

	return string(b), err
}

func statCmd(_ *shell.Interface, arg []string) (res string, err error) {
	fsys, err := root()

	if err != nil {
		return
	}

	info, err := fs.Stat(fsys, cleanPath(arg[0]))

	if err != nil {
		return
	}

	return formatInfo(info), nil
}

func entriesCmd(_ *shell.Interface, _ []string) (res string, err error) {
	var buf bytes.Buffer

	fsys, err := root()

	if err != nil {
		return
	}

	entries, errs := uapi.Entries(fsys)

	for _, e := range entries {
		fmt.Fprintf(&buf, "%s: %s %s\n", e.Name, e.Title, e.Version)

		if e.Linux != nil {
			fmt.Fprintf(&buf, "  linux .....: %s (%d bytes)\n", e.Linux.Path, e.Linux.Size)
		}

		if e.EFI != nil {
			fmt.Fprintf(&buf, "  efi .......: %s (%d bytes)\n", e.EFI.Path, e.EFI.Size)
		}

		for _, f := range e.Initrd {
			fmt.Fprintf(&buf, "  initrd ....: %s (%d bytes)\n", f.Path, f.Size)
		}

		fmt.Fprintf(&buf, "  options ...: %s\n", e.Options)

		for _, f := range e.Missing() {
			fmt.Fprintf(&buf, "  WARNING: %s not found\n", f.Path)
		}
	}

	for _, err := range errs {
		fmt.Fprintf(&buf, "invalid entry, %v\n", err)
	}

	if len(entries) == 0 && len(errs) == 0 {
		return "no entries found in " + uapi.EntriesDir, nil
	}

	return strings.TrimSuffix(buf.String(), "\n"), nil
}
