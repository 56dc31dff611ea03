// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"runtime"
)

var EFI_FILE_INFO_ID = MustParseGUID("09576e92-6d3f-11d2-8e39-00a0c969723b")

const (
	EFI_FILE_PROTOCOL_REVISION  = 0x00010000
	EFI_FILE_PROTOCOL_REVISION2 = 0x00020000
)

// EFI File Protocol offsets
const (
	fileOpen        = 0x08
	fileClose       = 0x10
	fileRead        = 0x20
	fileGetPosition = 0x30
	fileSetPosition = 0x38
	fileGetInfo     = 0x40
)

// EFI File Protocol open modes
const (
	EFI_FILE_MODE_READ   = 0x0000000000000001
	EFI_FILE_MODE_WRITE  = 0x0000000000000002
	EFI_FILE_MODE_CREATE = 0x8000000000000000
)

// EFI File Protocol attributes
const (
	EFI_FILE_READ_ONLY  = 0x0000000000000001
	EFI_FILE_HIDDEN     = 0x0000000000000002
	EFI_FILE_SYSTEM     = 0x0000000000000004
	EFI_FILE_RESERVED   = 0x0000000000000008
	EFI_FILE_DIRECTORY  = 0x0000000000000010
	EFI_FILE_ARCHIVE    = 0x0000000000000020
	EFI_FILE_VALID_ATTR = 0x0000000000000037
)

// MaxFileName represents the maximum file name length, in UTF-16 code units,
// which fits the initial EFI_FILE_INFO buffer.
const MaxFileName = 256

// ErrIsDirectory is returned when reading data from a directory.
var ErrIsDirectory = errors.New("is a directory")

// File represents an open EFI File Protocol instance, either a plain file or
// a directory, it implements the [fs.File] and [fs.ReadDirFile] interfaces.
type File struct {
	name string
	addr uint64
	dir  bool
	boot *BootServices
}

func (f *File) call(fn uint64, args ...uint64) uint64 {
	return f.boot.fw.Call(f.addr+fn, append([]uint64{f.addr}, args...))
}

// openFile binds a File to an EFI File Protocol instance.
func (s *BootServices) openFile(name string, addr uint64) (f *File, err error) {
	var revision uint64

	if err = decode(s.fw, &revision, addr); err != nil {
		return
	}

	if revision != EFI_FILE_PROTOCOL_REVISION && revision != EFI_FILE_PROTOCOL_REVISION2 {
		return nil, fmt.Errorf("invalid protocol revision (%#x)", revision)
	}

	f = &File{
		name: name,
		addr: addr,
		boot: s,
	}

	return
}

// Name returns the name of the file as passed to Open.
func (f *File) Name() string {
	return f.name
}

// Address returns the EFI File Protocol instance address.
func (f *File) Address() uint64 {
	return f.addr
}

// IsDir reports whether the file is a directory.
func (f *File) IsDir() bool {
	return f.dir
}

// Open calls EFI_FILE_PROTOCOL.Open() to open an existing file, for reading,
// relative to the argument directory. The file is then classified as
// directory or plain file according to its metadata.
//
// Open errors are returned as [*fs.PathError] wrapping the EFI status, a
// failure to retrieve metadata of a successfully opened file is
// unrecoverable.
func (f *File) Open(name string) (file *File, err error) {
	var addr uint64

	path := toUTF16(name)

	status := f.call(fileOpen,
		ptrval(&addr),
		ptrval(&path[0]),
		EFI_FILE_MODE_READ,
		0,
	)
	runtime.KeepAlive(path)

	if err = parseStatus(status); err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}

	if file, err = f.boot.openFile(name, addr); err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}

	info, err := file.GetInfo()

	if err != nil {
		f.boot.die(fmt.Errorf("could not get %s metadata, %v", name, err))
		return nil, err
	}

	file.dir = info.IsDir()

	return
}

// Close calls EFI_FILE_PROTOCOL.Close().
func (f *File) Close() error {
	return parseStatus(f.call(fileClose))
}

func (f *File) read(p []byte) (n int, err error) {
	size := uint64(len(p))

	status := f.call(fileRead,
		ptrval(&size),
		ptrval(&p[0]),
	)

	return int(size), parseStatus(status)
}

// Read calls EFI_FILE_PROTOCOL.Read(), reading zero bytes indicates that the
// end of file has been reached and returns [io.EOF].
func (f *File) Read(p []byte) (n int, err error) {
	if f.dir {
		return 0, &fs.PathError{Op: "read", Path: f.name, Err: ErrIsDirectory}
	}

	if len(p) == 0 {
		return
	}

	if n, err = f.read(p); err != nil {
		return 0, err
	}

	if n == 0 {
		return 0, io.EOF
	}

	return min(n, len(p)), nil
}

// Tell calls EFI_FILE_PROTOCOL.GetPosition().
func (f *File) Tell() (pos int64, err error) {
	var p uint64

	status := f.call(fileGetPosition,
		ptrval(&p),
	)

	return int64(p), parseStatus(status)
}

// SetPosition calls EFI_FILE_PROTOCOL.SetPosition(), the 0xffffffffffffffff
// position seeks to the end of file.
func (f *File) SetPosition(pos uint64) error {
	return parseStatus(f.call(fileSetPosition, pos))
}

// Seek implements the [io.Seeker] interface, seeking relative to the end of
// file requires a metadata query while seeking relative to the current
// position requires a position query.
func (f *File) Seek(offset int64, whence int) (pos int64, err error) {
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekEnd:
		var info *FileInfo

		if info, err = f.GetInfo(); err != nil {
			return
		}

		pos = int64(info.FileSize) + offset
	case io.SeekCurrent:
		if pos, err = f.Tell(); err != nil {
			return
		}

		pos += offset
	default:
		return 0, fmt.Errorf("invalid whence (%d)", whence)
	}

	if pos < 0 {
		return 0, fmt.Errorf("invalid offset (%d)", pos)
	}

	if err = f.SetPosition(uint64(pos)); err != nil {
		return 0, err
	}

	return
}

// GetInfo calls EFI_FILE_PROTOCOL.GetInfo() to return the file metadata.
func (f *File) GetInfo() (info *FileInfo, err error) {
	guid := EFI_FILE_INFO_ID
	buf := make([]byte, fileInfoSize+MaxFileName*2)

	for {
		size := uint64(len(buf))

		status := f.call(fileGetInfo,
			ptrval(&guid),
			ptrval(&size),
			ptrval(&buf[0]),
		)
		runtime.KeepAlive(&guid)

		if isStatus(status, EFI_BUFFER_TOO_SMALL) && size > uint64(len(buf)) && size <= maxFileInfoSize {
			buf = make([]byte, size)
			continue
		}

		if err = parseStatus(status); err != nil {
			return
		}

		return parseFileInfo(buf[:min(size, uint64(len(buf)))])
	}
}

// Size returns the file size, a failure to retrieve the file metadata is
// unrecoverable.
func (f *File) Size() int64 {
	info, err := f.GetInfo()

	if err != nil {
		f.boot.die(fmt.Errorf("could not get %s metadata, %v", f.name, err))
		return 0
	}

	return int64(info.FileSize)
}

// Stat returns the [fs.FileInfo] structure describing the file.
func (f *File) Stat() (fs.FileInfo, error) {
	info, err := f.GetInfo()

	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: f.name, Err: err}
	}

	return info, nil
}
