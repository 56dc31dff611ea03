// Copyright (c) The go-uefi authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usbarmory/go-uefi/uefi"
)

var testDescriptors = []uefi.MemoryDescriptor{
	{Type: uefi.EfiConventionalMemory, PhysicalStart: 0x0, NumberOfPages: 0x9f},
	{Type: uefi.EfiReservedMemoryType, PhysicalStart: 0x9f000, NumberOfPages: 0x61},
	{Type: uefi.EfiLoaderCode, PhysicalStart: 0x100000, NumberOfPages: 0x700},
}

// writeMemoryMap stores the test descriptors with the argument stride.
func writeMemoryMap(t *testing.T, stride int) string {
	var buf []byte

	for _, d := range testDescriptors {
		b, err := binary.Append(nil, binary.LittleEndian, &d)
		require.NoError(t, err)

		buf = append(buf, b...)
		buf = append(buf, make([]byte, stride-len(b))...)
	}

	path := filepath.Join(t.TempDir(), "memmap.bin")
	require.NoError(t, os.WriteFile(path, buf, 0600))

	return path
}

func run(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer

	root := newRootCmd(viper.New())
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.Execute()

	return out.String(), err
}

func TestGUID(t *testing.T) {
	out, err := run(t, "guid", "9042A9DE-23DC-4A38-96FB-7ADED080516A")
	require.NoError(t, err)

	assert.Contains(t, out, "GUID ....: 9042a9de-23dc-4a38-96fb-7aded080516a\n")
	assert.Contains(t, out, "Bytes ...: de a9 42 90 dc 23 38 4a 96 fb 7a de d0 80 51 6a\n")

	_, err = run(t, "guid", "invalid")
	assert.Error(t, err)
}

func TestMemmap(t *testing.T) {
	path := writeMemoryMap(t, defaultDescriptorSize)

	out, err := run(t, "memmap", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, len(testDescriptors)+2)

	assert.True(t, strings.HasPrefix(lines[1], "Conventional "))
	assert.Contains(t, lines[2], "00000000000fffff")
	assert.True(t, strings.HasPrefix(lines[3], "LoaderCode "))
	assert.Equal(t, "3 descriptor(s)", lines[4])
}

func TestMemmapE820(t *testing.T) {
	path := writeMemoryMap(t, defaultDescriptorSize)

	out, err := run(t, "memmap", "--e820", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, len(testDescriptors)+1)

	assert.Equal(t, []string{"1", "0000000000000000", "9f000"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"2", "000000000009f000", "61000"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"1", "0000000000100000", "700000"}, strings.Fields(lines[3]))
}

func TestMemmapDescriptorSize(t *testing.T) {
	path := writeMemoryMap(t, 56)

	out, err := run(t, "memmap", "--descriptor-size", "56", path)
	require.NoError(t, err)
	assert.Contains(t, out, "3 descriptor(s)")

	// stride below the descriptor size
	_, err = run(t, "memmap", "--descriptor-size", "16", path)
	assert.Error(t, err)
}

func TestMemmapEnvironment(t *testing.T) {
	path := writeMemoryMap(t, 56)

	t.Setenv("EFIDUMP_DESCRIPTOR_SIZE", "56")

	out, err := run(t, "memmap", path)
	require.NoError(t, err)
	assert.Contains(t, out, "3 descriptor(s)")

	// flags take precedence over the environment
	out, err = run(t, "memmap", "--descriptor-size", "64", path)
	require.NoError(t, err)
	assert.Contains(t, out, "2 descriptor(s)")
}

func TestMemmapConfigFile(t *testing.T) {
	path := writeMemoryMap(t, 56)

	conf := filepath.Join(t.TempDir(), "efidump.yaml")
	require.NoError(t, os.WriteFile(conf, []byte("descriptor_size: 56\ne820: true\n"), 0600))

	out, err := run(t, "--config", conf, "memmap", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, len(testDescriptors)+1)
	assert.Equal(t, "Type Start            Size", lines[0])

	_, err = run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "memmap", path)
	assert.Error(t, err)
}

func TestMemmapMissingFile(t *testing.T) {
	_, err := run(t, "memmap", filepath.Join(t.TempDir(), "missing.bin"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
