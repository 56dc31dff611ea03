// Copyright (c) The go-uefi authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"encoding/binary"
	"unicode/utf16"
)

// toUTF16 converts a string to a null terminated UTF-16 one.
func toUTF16(s string) []uint16 {
	return append(utf16.Encode([]rune(s)), 0x00)
}

// fromUTF16 converts a UTF-16 string, stopping at the first null character.
func fromUTF16(s []uint16) string {
	for i, c := range s {
		if c == 0x00 {
			s = s[:i]
			break
		}
	}

	return string(utf16.Decode(s))
}

// bytesToUTF16 converts a little-endian byte buffer to UTF-16 code units.
func bytesToUTF16(buf []byte) (s []uint16) {
	s = make([]uint16, len(buf)/2)

	for i := range s {
		s[i] = binary.LittleEndian.Uint16(buf[i*2:])
	}

	return
}
