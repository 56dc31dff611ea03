// Copyright (c) WithSecure Corporation
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package shell

import (
	"bytes"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"text/tabwriter"
)

var cmds = make(map[string]*Cmd)

// CmdFn represents a command handler.
type CmdFn func(iface *Interface, arg []string) (res string, err error)

// Cmd represents a shell command.
type Cmd struct {
	// Name is the command name, also used to match argument-less
	// commands when Pattern is nil
	Name string
	// Args is the number of Pattern submatches
	Args int
	// Pattern is the regular expression matching the command line
	Pattern *regexp.Regexp
	// Syntax describes the command arguments
	Syntax string
	// Help is the command description
	Help string
	// Fn is the command handler
	Fn CmdFn
}

// Add registers a terminal interface command, an existing command with the
// same name is replaced.
func Add(cmd Cmd) {
	cmds[cmd.Name] = &cmd
}

// Lookup returns the registered command with the argument name.
func Lookup(name string) (cmd Cmd, ok bool) {
	c, ok := cmds[name]

	if ok {
		cmd = *c
	}

	return
}

// Help returns the list of registered commands.
func (iface *Interface) Help(_ []string) (string, error) {
	var buf bytes.Buffer

	t := tabwriter.NewWriter(&buf, 16, 8, 0, '\t', tabwriter.TabIndent)

	for _, name := range slices.Sorted(maps.Keys(cmds)) {
		cmd := cmds[name]
		fmt.Fprintf(t, "%s\t%s\t # %s\n", cmd.Name, cmd.Syntax, cmd.Help)
	}

	t.Flush()

	return buf.String(), nil
}

func helpCmd(iface *Interface, arg []string) (string, error) {
	return iface.Help(arg)
}
