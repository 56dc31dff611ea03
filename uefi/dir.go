// Copyright (c) The go-uefi authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"
)

const (
	// EFI_FILE_INFO size without file name
	fileInfoSize = 80
	// maximum EFI_FILE_INFO size
	maxFileInfoSize = fileInfoSize + 4096*2
)

// fileInfo represents the EFI_FILE_INFO fixed size fields.
type fileInfo struct {
	Size             uint64
	FileSize         uint64
	PhysicalSize     uint64
	CreateTime       Time
	LastAccessTime   Time
	ModificationTime Time
	Attribute        uint64
}

// FileInfo represents an EFI_FILE_INFO instance, it implements the
// [fs.FileInfo] interface.
type FileInfo struct {
	FileSize         uint64
	PhysicalSize     uint64
	CreateTime       Time
	LastAccessTime   Time
	ModificationTime Time
	Attribute        uint64
	FileName         string
}

func parseFileInfo(buf []byte) (info *FileInfo, err error) {
	var d fileInfo

	if len(buf) < fileInfoSize {
		return nil, fmt.Errorf("invalid file information size (%d)", len(buf))
	}

	if err = unmarshalBinary(buf[:fileInfoSize], &d); err != nil {
		return
	}

	end := min(int(d.Size), len(buf))

	if end < fileInfoSize {
		return nil, fmt.Errorf("invalid file information size (%d)", d.Size)
	}

	info = &FileInfo{
		FileSize:         d.FileSize,
		PhysicalSize:     d.PhysicalSize,
		CreateTime:       d.CreateTime,
		LastAccessTime:   d.LastAccessTime,
		ModificationTime: d.ModificationTime,
		Attribute:        d.Attribute,
		FileName:         fromUTF16(bytesToUTF16(buf[fileInfoSize:end])),
	}

	return
}

// Name returns the base name of the file.
func (fi *FileInfo) Name() string {
	return fi.FileName
}

// Size returns the length in bytes.
func (fi *FileInfo) Size() int64 {
	return int64(fi.FileSize)
}

// Mode returns the file mode bits.
func (fi *FileInfo) Mode() (mode fs.FileMode) {
	mode = 0444

	if fi.Attribute&EFI_FILE_READ_ONLY == 0 {
		mode |= 0200
	}

	if fi.IsDir() {
		mode |= fs.ModeDir | 0111
	}

	return
}

// ModTime returns the modification time.
func (fi *FileInfo) ModTime() time.Time {
	return fi.ModificationTime.Time()
}

// IsDir reports whether the EFI_FILE_DIRECTORY attribute is set.
func (fi *FileInfo) IsDir() bool {
	return fi.Attribute&EFI_FILE_DIRECTORY != 0
}

// Sys returns the underlying EFI_FILE_INFO instance.
func (fi *FileInfo) Sys() any {
	return fi
}

// readEntry reads the next directory entry, a nil entry is returned at the
// end of the directory.
func (f *File) readEntry() (info *FileInfo, err error) {
	buf := make([]byte, fileInfoSize+MaxFileName*2)

	for {
		n, err := f.read(buf)

		if errors.Is(err, ErrEfiBufferTooSmall) && n > len(buf) && n <= maxFileInfoSize {
			buf = make([]byte, n)
			continue
		}

		if err != nil {
			return nil, err
		}

		if n == 0 {
			return nil, nil
		}

		return parseFileInfo(buf[:min(n, len(buf))])
	}
}

// ReadDir reads the contents of the directory and returns a slice of up to n
// DirEntry values in directory order, as described in [fs.ReadDirFile].
// Subsequent calls on the same file will yield further DirEntry values.
func (f *File) ReadDir(n int) (entries []fs.DirEntry, err error) {
	if !f.dir {
		return nil, &fs.PathError{Op: "readdir", Path: f.name, Err: errors.New("not a directory")}
	}

	for n <= 0 || len(entries) < n {
		info, err := f.readEntry()

		if err != nil {
			return entries, &fs.PathError{Op: "readdir", Path: f.name, Err: err}
		}

		if info == nil {
			break
		}

		if info.FileName == "." || info.FileName == ".." {
			continue
		}

		entries = append(entries, fs.FileInfoToDirEntry(info))
	}

	if n > 0 && len(entries) == 0 {
		return nil, io.EOF
	}

	return
}
