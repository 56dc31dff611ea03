// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"time"
)

const (
	// EFI Boot Services offset for SetWatchdogTimer
	setWatchdogTimer = 0x100
	watchdogCode     = 0xba3e5e7a1
)

// SetWatchdogTimer calls EFI_BOOT_SERVICES.SetWatchdogTimer(), a zero timeout
// disables the watchdog.
func (s *BootServices) SetWatchdogTimer(timeout time.Duration) (err error) {
	status := s.fw.Call(s.base+setWatchdogTimer,
		[]uint64{
			uint64(timeout / time.Second),
			watchdogCode,
			0,
			0,
		},
	)

	return parseStatus(status)
}
