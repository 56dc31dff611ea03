// Copyright (c) The go-uefi authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"fmt"
	"io"
	"io/fs"
)

// errorBit represents the EFI_STATUS high bit which marks error codes.
const errorBit = 1 << 63

// EFI Status Codes
const (
	EFI_SUCCESS = iota
	EFI_LOAD_ERROR
	EFI_INVALID_PARAMETER
	EFI_UNSUPPORTED
	EFI_BAD_BUFFER_SIZE
	EFI_BUFFER_TOO_SMALL
	EFI_NOT_READY
	EFI_DEVICE_ERROR
	EFI_WRITE_PROTECTED
	EFI_OUT_OF_RESOURCES
	EFI_VOLUME_CORRUPTED
	EFI_VOLUME_FULL
	EFI_NO_MEDIA
	EFI_MEDIA_CHANGED
	EFI_NOT_FOUND
	EFI_ACCESS_DENIED
	EFI_NO_RESPONSE
	EFI_NO_MAPPING
	EFI_TIMEOUT
	EFI_NOT_STARTED
	EFI_ALREADY_STARTED
	EFI_ABORTED
	EFI_ICMP_ERROR
	EFI_TFTP_ERROR
	EFI_PROTOCOL_ERROR
	EFI_INCOMPATIBLE_VERSION
	EFI_SECURITY_VIOLATION
	EFI_CRC_ERROR
	EFI_END_OF_MEDIA
	_
	_
	EFI_END_OF_FILE
	EFI_INVALID_LANGUAGE
	EFI_COMPROMISED_DATA
	EFI_IP_ADDRESS_CONFLICT
	EFI_HTTP_ERROR
)

// EFI Warning Codes
const (
	EFI_WARN_UNKNOWN_GLYPH = iota + 1
	EFI_WARN_DELETE_FAILURE
	EFI_WARN_WRITE_FAILURE
	EFI_WARN_BUFFER_TOO_SMALL
	EFI_WARN_STALE_DATA
	EFI_WARN_FILE_SYSTEM
	EFI_WARN_RESET_REQUIRED
)

var statusNames = map[uint64]string{
	EFI_SUCCESS:              "EFI_SUCCESS",
	EFI_LOAD_ERROR:           "EFI_LOAD_ERROR",
	EFI_INVALID_PARAMETER:    "EFI_INVALID_PARAMETER",
	EFI_UNSUPPORTED:          "EFI_UNSUPPORTED",
	EFI_BAD_BUFFER_SIZE:      "EFI_BAD_BUFFER_SIZE",
	EFI_BUFFER_TOO_SMALL:     "EFI_BUFFER_TOO_SMALL",
	EFI_NOT_READY:            "EFI_NOT_READY",
	EFI_DEVICE_ERROR:         "EFI_DEVICE_ERROR",
	EFI_WRITE_PROTECTED:      "EFI_WRITE_PROTECTED",
	EFI_OUT_OF_RESOURCES:     "EFI_OUT_OF_RESOURCES",
	EFI_VOLUME_CORRUPTED:     "EFI_VOLUME_CORRUPTED",
	EFI_VOLUME_FULL:          "EFI_VOLUME_FULL",
	EFI_NO_MEDIA:             "EFI_NO_MEDIA",
	EFI_MEDIA_CHANGED:        "EFI_MEDIA_CHANGED",
	EFI_NOT_FOUND:            "EFI_NOT_FOUND",
	EFI_ACCESS_DENIED:        "EFI_ACCESS_DENIED",
	EFI_NO_RESPONSE:          "EFI_NO_RESPONSE",
	EFI_NO_MAPPING:           "EFI_NO_MAPPING",
	EFI_TIMEOUT:              "EFI_TIMEOUT",
	EFI_NOT_STARTED:          "EFI_NOT_STARTED",
	EFI_ALREADY_STARTED:      "EFI_ALREADY_STARTED",
	EFI_ABORTED:              "EFI_ABORTED",
	EFI_ICMP_ERROR:           "EFI_ICMP_ERROR",
	EFI_TFTP_ERROR:           "EFI_TFTP_ERROR",
	EFI_PROTOCOL_ERROR:       "EFI_PROTOCOL_ERROR",
	EFI_INCOMPATIBLE_VERSION: "EFI_INCOMPATIBLE_VERSION",
	EFI_SECURITY_VIOLATION:   "EFI_SECURITY_VIOLATION",
	EFI_CRC_ERROR:            "EFI_CRC_ERROR",
	EFI_END_OF_MEDIA:         "EFI_END_OF_MEDIA",
	EFI_END_OF_FILE:          "EFI_END_OF_FILE",
	EFI_INVALID_LANGUAGE:     "EFI_INVALID_LANGUAGE",
	EFI_COMPROMISED_DATA:     "EFI_COMPROMISED_DATA",
	EFI_IP_ADDRESS_CONFLICT:  "EFI_IP_ADDRESS_CONFLICT",
	EFI_HTTP_ERROR:           "EFI_HTTP_ERROR",
}

// Status represents an EFI_STATUS error code.
type Status uint64

// Errors for the most commonly tested EFI_STATUS error codes.
var (
	ErrEfiInvalidParameter = Status(errorBit | EFI_INVALID_PARAMETER)
	ErrEfiUnsupported      = Status(errorBit | EFI_UNSUPPORTED)
	ErrEfiBufferTooSmall   = Status(errorBit | EFI_BUFFER_TOO_SMALL)
	ErrEfiNotReady         = Status(errorBit | EFI_NOT_READY)
	ErrEfiDeviceError      = Status(errorBit | EFI_DEVICE_ERROR)
	ErrEfiOutOfResources   = Status(errorBit | EFI_OUT_OF_RESOURCES)
	ErrEfiNotFound         = Status(errorBit | EFI_NOT_FOUND)
	ErrEfiAccessDenied     = Status(errorBit | EFI_ACCESS_DENIED)
	ErrEfiEndOfFile        = Status(errorBit | EFI_END_OF_FILE)
)

// Code returns the status code without the error bit.
func (s Status) Code() uint64 {
	return uint64(s) &^ errorBit
}

// IsError reports whether the status represents an error.
func (s Status) IsError() bool {
	return uint64(s)&errorBit != 0
}

// Error implements the error interface.
func (s Status) Error() string {
	if !s.IsError() {
		return fmt.Sprintf("EFI_STATUS warning %#x (%d)", uint64(s), s.Code())
	}

	if name, ok := statusNames[s.Code()]; ok {
		return name
	}

	return fmt.Sprintf("EFI_STATUS error %#x (%d)", uint64(s), s.Code())
}

// Is allows [errors.Is] to match a Status against its generic error
// equivalents, providing a simplified view over the full EFI_STATUS space.
func (s Status) Is(target error) bool {
	switch target {
	case fs.ErrNotExist:
		return s.IsError() && s.Code() == EFI_NOT_FOUND
	case fs.ErrPermission:
		switch s.Code() {
		case EFI_ACCESS_DENIED, EFI_WRITE_PROTECTED, EFI_SECURITY_VIOLATION:
			return s.IsError()
		}
	case io.EOF:
		return s.IsError() && s.Code() == EFI_END_OF_FILE
	}

	return false
}

// parseStatus converts an EFI_STATUS to an error, warnings are not
// considered errors.
func parseStatus(status uint64) (err error) {
	if status&errorBit == 0 {
		return nil
	}

	return Status(status)
}

// isStatus reports whether the argument EFI_STATUS is an error with the
// given code.
func isStatus(status uint64, code uint64) bool {
	return status&errorBit != 0 && status&0xff == code
}
