package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"migrate", "correlate", "detect", "eras", "communities", "runs"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "game-analytics", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestCorrelateCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"format", "era", "side", "min-appearances", "min-lift", "window", "parallel", "dry-run"} {
		flag := correlateCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "correlate should have --%s flag", flagName)
	}
}

func TestDetectCommand_Flags(t *testing.T) {
	for _, flagName := range []string{
		"strategy", "min-lift", "min-together", "resolution", "retention",
		"epsilon", "clique-size", "anchors-per-culture", "anchor-min-lift",
		"anchor-similarity-ceiling", "anchor-degree-ceiling", "degree-ceiling",
		"min-community-size", "min-membership", "seed", "no-flex", "dry-run",
	} {
		flag := detectCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "detect should have --%s flag", flagName)
	}
}

func TestErasCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range erasCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["add"])

	flag := erasAddCmd.Flags().Lookup("starts")
	require.NotNil(t, flag, "eras add should have --starts flag")
}

func TestCommunitiesCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range communitiesCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{
		"list", "show", "rename", "validate", "invalidate", "note",
		"delete", "add-card", "remove-card", "move-card",
	}
	for _, name := range expected {
		assert.True(t, names[name], "communities should have subcommand %q", name)
	}
}
