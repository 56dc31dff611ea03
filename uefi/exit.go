// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
)

// EFI Boot Services offsets
const (
	exit             = 0xd8
	exitBootServices = 0xe8
)

// Exit calls EFI_BOOT_SERVICES.Exit().
func (s *BootServices) Exit(code int) (err error) {
	status := s.fw.Call(s.base+exit,
		[]uint64{
			uint64(s.imageHandle),
			uint64(code),
			0,
			0,
		},
	)

	return parseStatus(status)
}

// ExitBootServicesWithKey calls EFI_BOOT_SERVICES.ExitBootServices() with
// the argument memory map key.
func (s *BootServices) ExitBootServicesWithKey(mapKey uint64) (err error) {
	status := s.fw.Call(s.base+exitBootServices,
		[]uint64{
			uint64(s.imageHandle),
			mapKey,
		},
	)

	return parseStatus(status)
}

// ExitBootServices takes a fresh memory map snapshot and immediately calls
// EFI_BOOT_SERVICES.ExitBootServices() with its key, the final memory map is
// returned on success.
//
// As the memory map key can be invalidated by firmware activity between the
// two calls, the sequence is repeated once when the key is rejected.
func (s *BootServices) ExitBootServices() (m *MemoryMap, err error) {
	for range 2 {
		if m, err = s.GetMemoryMap(); err != nil {
			return
		}

		if err = s.ExitBootServicesWithKey(m.MapKey); !errors.Is(err, ErrEfiInvalidParameter) {
			break
		}
	}

	if err != nil {
		return nil, err
	}

	return
}
