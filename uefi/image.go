// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"fmt"
)

var EFI_LOADED_IMAGE_PROTOCOL_GUID = MustParseGUID("5b1b31a1-9562-11d2-8e3f-00a0c969723b")

const EFI_LOADED_IMAGE_PROTOCOL_REVISION = 0x00001000

// maximum load options size
const maxLoadOptionsSize = 4096

// loadedImage represents the EFI Loaded Image Protocol layout.
type loadedImage struct {
	Revision        uint32
	_               uint32
	ParentHandle    uint64
	SystemTable     uint64
	DeviceHandle    uint64
	FilePath        uint64
	_               uint64
	LoadOptionsSize uint32
	_               uint32
	LoadOptions     uint64
	ImageBase       uint64
	ImageSize       uint64
	ImageCodeType   uint32
	ImageDataType   uint32
	Unload          uint64
}

// LoadedImage represents an EFI Loaded Image Protocol instance.
type LoadedImage struct {
	Revision        uint32
	ParentHandle    Handle
	SystemTable     uint64
	DeviceHandle    Handle
	FilePath        uint64
	LoadOptionsSize uint32
	LoadOptions     uint64
	ImageBase       uint64
	ImageSize       uint64
	ImageCodeType   uint32
	ImageDataType   uint32

	fw Firmware
}

// GUID returns the EFI Loaded Image Protocol GUID.
func (image *LoadedImage) GUID() GUID {
	return EFI_LOADED_IMAGE_PROTOCOL_GUID
}

func (image *LoadedImage) bind(s *BootServices, addr uint64) (err error) {
	var d loadedImage

	if err = decode(s.fw, &d, addr); err != nil {
		return
	}

	if d.Revision != EFI_LOADED_IMAGE_PROTOCOL_REVISION {
		return fmt.Errorf("invalid protocol revision (%#x)", d.Revision)
	}

	*image = LoadedImage{
		Revision:        d.Revision,
		ParentHandle:    Handle(d.ParentHandle),
		SystemTable:     d.SystemTable,
		DeviceHandle:    Handle(d.DeviceHandle),
		FilePath:        d.FilePath,
		LoadOptionsSize: d.LoadOptionsSize,
		LoadOptions:     d.LoadOptions,
		ImageBase:       d.ImageBase,
		ImageSize:       d.ImageSize,
		ImageCodeType:   d.ImageCodeType,
		ImageDataType:   d.ImageDataType,
		fw:              s.fw,
	}

	return
}

// Options returns the image load options as a string, the options are
// assumed to be UTF-16 encoded as set by the EFI Shell and boot managers.
func (image *LoadedImage) Options() (string, error) {
	if image.LoadOptions == 0 || image.LoadOptionsSize == 0 {
		return "", nil
	}

	size := int(min(image.LoadOptionsSize, maxLoadOptionsSize))
	buf, err := image.fw.Memory(image.LoadOptions, size)

	if err != nil {
		return "", err
	}

	return fromUTF16(bytesToUTF16(buf)), nil
}

// LoadedImage returns the EFI Loaded Image Protocol instance of the running
// image.
func (s *Services) LoadedImage() (*LoadedImage, error) {
	return Resolve[LoadedImage](s.Boot, s.imageHandle)
}
