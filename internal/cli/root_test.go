package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "bluescan", cmd.Use)
	assert.Contains(t, cmd.Long, "scene file")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{
		"ping", "discover", "list", "create", "delete", "mode", "snapshot",
		"ground", "template", "monitor", "goto", "resolve", "render", "watch",
	}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	backendFlag := cmd.PersistentFlags().Lookup("backend")
	require.NotNil(t, backendFlag)
	assert.Equal(t, "", backendFlag.DefValue)
}

func TestRenderCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	renderCmd, _, err := cmd.Find([]string{"render"})
	require.NoError(t, err)

	for _, name := range []string{"scene", "artworks", "out", "pin"} {
		assert.NotNil(t, renderCmd.Flags().Lookup(name), name)
	}

	watchCmd, _, err := cmd.Find([]string{"watch"})
	require.NoError(t, err)
	durationFlag := watchCmd.Flags().Lookup("duration")
	require.NotNil(t, durationFlag)
	assert.Equal(t, "0s", durationFlag.DefValue)
}

func TestInvalidFormatRejected(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "xml", "ping"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestParseInts(t *testing.T) {
	got, err := parseInts(" 10, -20 ", 2)
	require.NoError(t, err)
	assert.Equal(t, []int{10, -20}, got)

	_, err = parseInts("1,2,3", 2)
	assert.ErrorIs(t, err, errBadInput)
	_, err = parseInts("1,a", 2)
	assert.ErrorIs(t, err, errBadInput)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "x", errBadInput)))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
}
