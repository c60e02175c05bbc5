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

	expected := []string{"estimate", "match", "validate", "kb", "costs", "runs", "serve", "monitor"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "bidquote", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "log-level"} {
		f := rootCmd.PersistentFlags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, "", f.DefValue)
	}
	assert.True(t, rootCmd.SilenceUsage)
}

func TestEstimateCommand_Flags(t *testing.T) {
	tests := []struct {
		name string
		def  string
	}{
		{"spec", ""},
		{"items", ""},
		{"kb", ""},
		{"out", "quote.xlsx"},
		{"json", ""},
		{"floor-area", "0"},
		{"building-type", ""},
		{"discipline", "[]"},
		{"no-llm", "false"},
		{"auto-correct", "false"},
		{"no-store", "false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := estimateCmd.Flags().Lookup(tt.name)
			require.NotNil(t, flag, "estimate command should have --%s flag", tt.name)
			assert.Equal(t, tt.def, flag.DefValue)
		})
	}
}

func TestMatchCommand_Flags(t *testing.T) {
	for _, name := range []string{"items", "kb", "out", "json", "floor-area", "building-type", "auto-correct"} {
		assert.NotNil(t, matchCmd.Flags().Lookup(name), "match command should have --%s flag", name)
	}
}

func TestValidateCommand_Flags(t *testing.T) {
	for _, name := range []string{"items", "json", "floor-area", "building-type"} {
		assert.NotNil(t, validateCmd.Flags().Lookup(name), "validate command should have --%s flag", name)
	}
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestKBCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range kbCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"import", "list", "export", "extract"} {
		assert.True(t, names[name], "expected kb subcommand %q not found", name)
	}
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["show"])

	flag := runsListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "20", flag.DefValue)
	assert.NotNil(t, runsShowCmd.Flags().Lookup("json"))
}

func TestCostsCommand_Flags(t *testing.T) {
	assert.NotNil(t, costsCmd.Flags().Lookup("session"))
	assert.NotNil(t, costsCmd.Flags().Lookup("json"))
}

func TestMonitorCommand_Flags(t *testing.T) {
	flag := monitorCmd.Flags().Lookup("hours")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
	assert.NotNil(t, monitorCmd.Flags().Lookup("send"))
}
