// Copyright (c) The go-uefi authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"runtime"
	"time"
)

// EFI Boot Services offsets
const (
	raiseTPL              = 0x18
	restoreTPL            = 0x20
	createEvent           = 0x50
	setTimer              = 0x58
	waitForEvent          = 0x60
	signalEvent           = 0x68
	closeEvent            = 0x70
	checkEvent            = 0x78
	getNextMonotonicCount = 0xf0
	stall                 = 0xf8
)

// EFI_TPL
const (
	TPL_APPLICATION = 4
	TPL_CALLBACK    = 8
	TPL_NOTIFY      = 16
	TPL_HIGH_LEVEL  = 31
)

// EFI Event types
const (
	EVT_TIMER                         = 0x80000000
	EVT_RUNTIME                       = 0x40000000
	EVT_NOTIFY_WAIT                   = 0x00000100
	EVT_NOTIFY_SIGNAL                 = 0x00000200
	EVT_SIGNAL_EXIT_BOOT_SERVICES     = 0x00000201
	EVT_SIGNAL_VIRTUAL_ADDRESS_CHANGE = 0x60000202
)

// EFI_TIMER_DELAY
const (
	TimerCancel = iota
	TimerPeriodic
	TimerRelative
)

// Event represents an opaque EFI_EVENT.
type Event uint64

// RaiseTPL calls EFI_BOOT_SERVICES.RaiseTPL() and returns the previous task
// priority level.
func (s *BootServices) RaiseTPL(tpl int) int {
	return int(s.fw.Call(s.base+raiseTPL, []uint64{uint64(tpl)}))
}

// RestoreTPL calls EFI_BOOT_SERVICES.RestoreTPL().
func (s *BootServices) RestoreTPL(tpl int) {
	s.fw.Call(s.base+restoreTPL, []uint64{uint64(tpl)})
}

// CreateEvent calls EFI_BOOT_SERVICES.CreateEvent(), notification functions
// are not supported.
func (s *BootServices) CreateEvent(eventType uint32, tpl int) (event Event, err error) {
	var e uint64

	status := s.fw.Call(s.base+createEvent,
		[]uint64{
			uint64(eventType),
			uint64(tpl),
			0,
			0,
			ptrval(&e),
		},
	)

	return Event(e), parseStatus(status)
}

// SetTimer calls EFI_BOOT_SERVICES.SetTimer(), the trigger time has a 100ns
// resolution.
func (s *BootServices) SetTimer(event Event, timerType int, trigger time.Duration) error {
	status := s.fw.Call(s.base+setTimer,
		[]uint64{
			uint64(event),
			uint64(timerType),
			uint64(trigger / 100),
		},
	)

	return parseStatus(status)
}

// WaitForEvent calls EFI_BOOT_SERVICES.WaitForEvent() and returns the index
// of the signaled event.
func (s *BootServices) WaitForEvent(events ...Event) (index int, err error) {
	var i uint64

	if len(events) == 0 {
		return 0, ErrEfiInvalidParameter
	}

	e := make([]uint64, len(events))

	for n, event := range events {
		e[n] = uint64(event)
	}

	status := s.fw.Call(s.base+waitForEvent,
		[]uint64{
			uint64(len(e)),
			ptrval(&e[0]),
			ptrval(&i),
		},
	)
	runtime.KeepAlive(e)

	return int(i), parseStatus(status)
}

// SignalEvent calls EFI_BOOT_SERVICES.SignalEvent().
func (s *BootServices) SignalEvent(event Event) error {
	return parseStatus(s.fw.Call(s.base+signalEvent, []uint64{uint64(event)}))
}

// CloseEvent calls EFI_BOOT_SERVICES.CloseEvent().
func (s *BootServices) CloseEvent(event Event) error {
	return parseStatus(s.fw.Call(s.base+closeEvent, []uint64{uint64(event)}))
}

// CheckEvent calls EFI_BOOT_SERVICES.CheckEvent() and reports whether the
// event is in the signaled state.
func (s *BootServices) CheckEvent(event Event) (signaled bool, err error) {
	status := s.fw.Call(s.base+checkEvent, []uint64{uint64(event)})

	if isStatus(status, EFI_NOT_READY) {
		return false, nil
	}

	if err = parseStatus(status); err != nil {
		return
	}

	return true, nil
}

// GetNextMonotonicCount calls EFI_BOOT_SERVICES.GetNextMonotonicCount().
func (s *BootServices) GetNextMonotonicCount() (count uint64, err error) {
	status := s.fw.Call(s.base+getNextMonotonicCount,
		[]uint64{
			ptrval(&count),
		},
	)

	return count, parseStatus(status)
}

// Stall calls EFI_BOOT_SERVICES.Stall().
func (s *BootServices) Stall(d time.Duration) error {
	return parseStatus(s.fw.Call(s.base+stall, []uint64{uint64(d.Microseconds())}))
}
