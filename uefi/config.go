// Copyright (c) The go-uefi authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package uefi

import (
	"errors"
	"fmt"
)

// Well known EFI Configuration Table GUIDs
var (
	ACPI_TABLE_GUID       = MustParseGUID("eb9d2d30-2d88-11d3-9a16-0090273fc14d")
	ACPI_20_TABLE_GUID    = MustParseGUID("8868e871-e4f1-11d3-bc22-0080c73c8881")
	SMBIOS_TABLE_GUID     = MustParseGUID("eb9d2d31-2d88-11d3-9a16-0090273fc14d")
	SMBIOS3_TABLE_GUID    = MustParseGUID("f2fd1544-9794-4a2c-992e-e5bbcf20e394")
	EFI_DXE_SERVICES_GUID = MustParseGUID("05ad34ba-6f02-4214-952e-4da0398e2bb9")
)

// maximum number of configuration table entries
const maxConfigurationTables = 1024

// ConfigurationTable represents an EFI Configuration Table entry.
type ConfigurationTable struct {
	GUID        GUID
	VendorTable uint64
}

// configurationTableSize represents the size of an EFI Configuration Table
// entry.
const configurationTableSize = 24

// ConfigurationTables returns a snapshot of the EFI Configuration Tables.
func (s *Services) ConfigurationTables() (c []*ConfigurationTable, err error) {
	sys := s.SystemTable.Inner()
	n := int(sys.NumberOfTableEntries)

	if n == 0 || sys.ConfigurationTable == 0 {
		return nil, errors.New("EFI Configuration Table is invalid")
	}

	if n > maxConfigurationTables {
		return nil, fmt.Errorf("EFI Configuration Table has too many entries (%d)", n)
	}

	buf, err := s.fw.Memory(sys.ConfigurationTable, n*configurationTableSize)

	if err != nil {
		return
	}

	for i := 0; i < len(buf); i += configurationTableSize {
		t := &ConfigurationTable{}

		if err = unmarshalBinary(buf[i:i+configurationTableSize], t); err != nil {
			return
		}

		c = append(c, t)
	}

	return
}

// ConfigurationTable returns the i-th EFI Configuration Table entry.
func (s *Services) ConfigurationTable(i int) (t *ConfigurationTable, err error) {
	sys := s.SystemTable.Inner()

	if i < 0 || uint64(i) >= sys.NumberOfTableEntries {
		return nil, fmt.Errorf("configuration table index out of range (%d/%d)", i, sys.NumberOfTableEntries)
	}

	t = &ConfigurationTable{}
	err = decode(s.fw, t, sys.ConfigurationTable+uint64(i*configurationTableSize))

	return
}

// LocateConfiguration locates an EFI Configuration Table.
func (s *Services) LocateConfiguration(guid GUID) (t *ConfigurationTable, err error) {
	var c []*ConfigurationTable

	if c, err = s.ConfigurationTables(); err != nil {
		return
	}

	for _, t := range c {
		if t.GUID == guid {
			return t, nil
		}
	}

	return nil, errors.New("could not find configuration table")
}
