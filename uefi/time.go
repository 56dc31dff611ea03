// Copyright (c) The go-uefi authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"time"
)

// EFI Runtime Services offset for GetTime
const getTime = 0x18

// EFI_UNSPECIFIED_TIMEZONE
const unspecifiedTimezone = 0x07ff

// Time represents an EFI_TIME instance.
type Time struct {
	Year       uint16
	Month      uint8
	Day        uint8
	Hour       uint8
	Minute     uint8
	Second     uint8
	_          uint8
	Nanosecond uint32
	TimeZone   int16
	Daylight   uint8
	_          uint8
}

// Time converts the EFI time to [time.Time], an unspecified time zone is
// interpreted as UTC.
func (t *Time) Time() time.Time {
	loc := time.UTC

	if t.TimeZone != unspecifiedTimezone && t.TimeZone != 0 {
		// EFI_TIME TimeZone is the offset in minutes from local time to UTC
		loc = time.FixedZone("", -int(t.TimeZone)*60)
	}

	return time.Date(int(t.Year), time.Month(t.Month), int(t.Day),
		int(t.Hour), int(t.Minute), int(t.Second), int(t.Nanosecond), loc)
}

// GetTime calls EFI_RUNTIME_SERVICES.GetTime().
func (s *RuntimeServices) GetTime() (t time.Time, err error) {
	buf := make([]byte, 16)

	status := s.fw.Call(s.base+getTime,
		[]uint64{
			ptrval(&buf[0]),
			0,
		},
	)

	if err = parseStatus(status); err != nil {
		return
	}

	efiTime := &Time{}

	if err = unmarshalBinary(buf, efiTime); err != nil {
		return
	}

	return efiTime.Time(), nil
}
