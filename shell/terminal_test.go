// Copyright (c) The go-uefi authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package shell

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type readWriter struct {
	io.Reader
	io.Writer
}

var echoes int

func init() {
	Add(Cmd{
		Name:    "echo",
		Args:    1,
		Pattern: regexp.MustCompile(`^echo (.*)$`),
		Syntax:  "<text>",
		Help:    "print text",
		Fn: func(_ *Interface, arg []string) (string, error) {
			echoes++
			return arg[0], nil
		},
	})

	Add(Cmd{
		Name: "fail",
		Help: "always fails",
		Fn: func(_ *Interface, _ []string) (string, error) {
			return "", errors.New("failed on purpose")
		},
	})

	Add(Cmd{
		Name:    "quit, q",
		Args:    1,
		Pattern: regexp.MustCompile(`^(quit|q)$`),
		Help:    "close session",
		Fn: func(_ *Interface, _ []string) (string, error) {
			return "", io.EOF
		},
	})
}

func TestHandleLine(t *testing.T) {
	var buf bytes.Buffer

	iface := &Interface{}

	require.NoError(t, iface.handleLine("echo hello world", &buf))
	assert.Equal(t, "hello world\n", buf.String())

	// blank lines are ignored
	buf.Reset()
	require.NoError(t, iface.handleLine("   ", &buf))
	assert.Empty(t, buf.String())

	err := iface.handleLine("unknown", &buf)
	assert.ErrorContains(t, err, "unknown command")

	err = iface.handleLine("fail", &buf)
	assert.ErrorContains(t, err, "failed on purpose")

	err = iface.handleLine("q", &buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestHelp(t *testing.T) {
	iface := &Interface{}

	help, err := iface.Help(nil)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(help), "\n")
	require.GreaterOrEqual(t, len(lines), 3)

	assert.True(t, strings.HasPrefix(lines[0], "echo"))
	assert.Contains(t, lines[0], "<text>")
	assert.Contains(t, lines[0], "# print text")
	assert.True(t, strings.HasPrefix(lines[1], "fail"))
}

func TestStart(t *testing.T) {
	var out bytes.Buffer

	echoes = 0

	iface := &Interface{
		Banner: "test banner",
		ReadWriter: &readWriter{
			Reader: strings.NewReader("echo one\rfail\rquit\recho two\r"),
			Writer: &out,
		},
	}

	iface.Start()

	assert.Equal(t, 1, echoes)
	assert.NotNil(t, iface.Terminal)

	s := out.String()
	assert.Contains(t, s, "test banner")
	assert.Contains(t, s, "one\n")
	assert.Contains(t, s, "command error, failed on purpose")
}

func TestLookup(t *testing.T) {
	cmd, ok := Lookup("echo")
	require.True(t, ok)
	assert.Equal(t, "<text>", cmd.Syntax)

	// the returned command is a copy
	cmd.Syntax = ""
	cmd, _ = Lookup("echo")
	assert.Equal(t, "<text>", cmd.Syntax)

	_, ok = Lookup("missing")
	assert.False(t, ok)
}
