package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	root := newRootCmd()

	want := map[string]bool{
		"version": false,
		"serve":   false,
		"sample":  false,
		"config":  false,
	}

	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}

	for name, found := range want {
		assert.True(t, found, "subcommand %q not registered", name)
	}
}

func TestRootCommand_ConfigFlag(t *testing.T) {
	root := newRootCmd()
	flag := root.PersistentFlags().Lookup("config")
	require.NotNil(t, flag, "--config flag not registered")
	assert.Empty(t, flag.DefValue)
	assert.Equal(t, "c", flag.Shorthand)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "Plexcord v"+version+"\n", out.String())
}

func TestConfigCommand_Subcommands(t *testing.T) {
	cmd := newConfigCmd()
	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"validate", "show"}, names)
}

func TestSampleCommand_TestChannelFlag(t *testing.T) {
	cmd := newSampleCmd()
	flag := cmd.Flags().Lookup("test-channel")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}
