package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"ingest", "process", "rate", "brief", "prepare", "run", "sweep", "schedule", "profiles", "migrate"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "briefing-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	feed := rootCmd.PersistentFlags().Lookup("feed")
	require.NotNil(t, feed)
	assert.Equal(t, "default", feed.DefValue)

	require.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}

func TestRunCommand_Flags(t *testing.T) {
	flag := runCmd.Flags().Lookup("all-profiles")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestSweepCommand_Flags(t *testing.T) {
	live := sweepCmd.Flags().Lookup("live")
	require.NotNil(t, live)
	assert.Equal(t, "false", live.DefValue)
	require.NotNil(t, sweepCmd.Flags().Lookup("all-profiles"))
}
