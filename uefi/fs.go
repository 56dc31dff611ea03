// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

var EFI_SIMPLE_FILE_SYSTEM_PROTOCOL_GUID = MustParseGUID("964e5b22-6459-11d2-8e39-00a0c969723b")

const EFI_SIMPLE_FILE_SYSTEM_PROTOCOL_REVISION = 0x00010000

// EFI Simple File System Protocol offsets
const (
	openVolume = 0x08
)

// simpleFileSystem represents the EFI Simple File System Protocol layout.
type simpleFileSystem struct {
	Revision   uint64
	OpenVolume uint64
}

// SimpleFileSystem represents an EFI Simple File System Protocol instance.
type SimpleFileSystem struct {
	addr uint64
	boot *BootServices
}

// GUID returns the EFI Simple File System Protocol GUID.
func (sfs *SimpleFileSystem) GUID() GUID {
	return EFI_SIMPLE_FILE_SYSTEM_PROTOCOL_GUID
}

func (sfs *SimpleFileSystem) bind(s *BootServices, addr uint64) (err error) {
	var d simpleFileSystem

	if err = decode(s.fw, &d, addr); err != nil {
		return
	}

	if d.Revision != EFI_SIMPLE_FILE_SYSTEM_PROTOCOL_REVISION {
		return fmt.Errorf("invalid protocol revision (%#x)", d.Revision)
	}

	sfs.addr = addr
	sfs.boot = s

	return
}

// OpenVolume calls EFI_SIMPLE_FILE_SYSTEM_PROTOCOL.OpenVolume() to return
// the volume root directory.
func (sfs *SimpleFileSystem) OpenVolume() (root *File, err error) {
	var addr uint64

	status := sfs.boot.fw.Call(sfs.addr+openVolume,
		[]uint64{
			sfs.addr,
			ptrval(&addr),
		},
	)

	if err = parseStatus(status); err != nil {
		return
	}

	if root, err = sfs.boot.openFile("\\", addr); err != nil {
		return
	}

	root.dir = true

	return
}

// FS implements the [fs.FS] interface for an EFI Simple File System volume.
type FS struct {
	volume *File
}

// NewFS returns an [fs.FS] over the argument EFI Simple File System volume.
func NewFS(sfs *SimpleFileSystem) (root *FS, err error) {
	root = &FS{}

	if root.volume, err = sfs.OpenVolume(); err != nil {
		return nil, err
	}

	return
}

// Volume returns the volume root directory.
func (root *FS) Volume() *File {
	return root.volume
}

// Open opens the named file, [File.Close] must be called to release any
// associated resources.
func (root *FS) Open(name string) (fs.File, error) {
	if root.volume == nil {
		return nil, errors.New("invalid file system instance")
	}

	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	path := "\\"

	if name != "." {
		path += strings.ReplaceAll(name, "/", "\\")
	}

	f, err := root.volume.Open(path)

	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: errors.Unwrap(err)}
	}

	f.name = name

	return f, nil
}

// Root returns an EFI Simple File System instance for the current EFI image
// root volume.
func (s *Services) Root() (root *FS, err error) {
	image, err := s.LoadedImage()

	if err != nil {
		return
	}

	sfs, err := Resolve[SimpleFileSystem](s.Boot, image.DeviceHandle)

	if err != nil {
		return
	}

	return NewFS(sfs)
}
