// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package uapi implements Boot Loader Entries parsing
// following the specifications at:
//
//	https://uapi-group.org/specifications/specs/boot_loader_specification/
package uapi

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// EntriesDir is the Type #1 entries directory relative to the volume root.
const EntriesDir = "loader/entries"

// File represents a file referenced by a boot loader entry key.
type File struct {
	// Path is the volume path, in [fs.FS] form
	Path string
	// Size is the file size, -1 when the file could not be found
	Size int64
}

// Entry represents the parsed contents of Type #1 Boot Loader Entry Keys.
type Entry struct {
	// Name is the entry file name without extension
	Name string

	Title   string
	Version string
	Linux   *File
	EFI     *File
	Initrd  []*File
	Options string

	parsed  string
	ignored string
}

func resolve(fsys fs.FS, p string) *File {
	p = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(p, `\`, "/")), "/")
	f := &File{Path: p, Size: -1}

	if info, err := fs.Stat(fsys, p); err == nil {
		f.Size = info.Size()
	}

	return f
}

func (e *Entry) parseKey(fsys fs.FS, line string) {
	kv := strings.Fields(line)

	if len(kv) < 2 || strings.HasPrefix(kv[0], "#") {
		return
	}

	k := kv[0]
	v := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), k))

	switch k {
	case "title":
		e.Title = v
	case "version":
		e.Version = v
	case "linux":
		e.Linux = resolve(fsys, v)
	case "efi":
		e.EFI = resolve(fsys, v)
	case "initrd":
		e.Initrd = append(e.Initrd, resolve(fsys, v))
	case "options":
		if len(e.Options) > 0 {
			e.Options += " "
		}

		e.Options += v
	default:
		e.ignored += line
		return
	}

	e.parsed += line
}

// String returns the lines successfully parsed.
func (e *Entry) String() string {
	return e.parsed
}

// Ignored returns the lines ignored during parsing.
func (e *Entry) Ignored() string {
	return e.ignored
}

// Missing returns the referenced files which could not be found.
func (e *Entry) Missing() (files []*File) {
	for _, f := range append([]*File{e.Linux, e.EFI}, e.Initrd...) {
		if f != nil && f.Size < 0 {
			files = append(files, f)
		}
	}

	return
}

// LoadEntry parses Type #1 Boot Loader Specification Entries from the argument
// file, referenced files are looked up on the argument file system.
func LoadEntry(fsys fs.FS, p string) (e *Entry, err error) {
	entry, err := fs.ReadFile(fsys, p)

	if err != nil {
		return
	}

	e = &Entry{
		Name: strings.TrimSuffix(path.Base(p), ".conf"),
	}

	for line := range strings.Lines(string(entry)) {
		e.parseKey(fsys, line)
	}

	if e.Linux == nil && e.EFI == nil {
		return nil, fmt.Errorf("%s: missing linux or efi key", p)
	}

	return
}

// Entries loads all Type #1 entries found on the argument file system, sorted
// by file name. Entries which cannot be parsed are returned in errs.
func Entries(fsys fs.FS) (entries []*Entry, errs []error) {
	matches, err := fs.Glob(fsys, EntriesDir+"/*.conf")

	if err != nil {
		return nil, []error{err}
	}

	for _, p := range matches {
		e, err := LoadEntry(fsys, p)

		if err != nil {
			errs = append(errs, err)
			continue
		}

		entries = append(entries, e)
	}

	return
}
