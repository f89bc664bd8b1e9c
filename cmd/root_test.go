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

	for _, name := range []string{"match", "reverse", "batch", "migrate", "seed"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "debtlink", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestMatchCommand_Flags(t *testing.T) {
	company := matchCmd.Flags().Lookup("company")
	require.NotNil(t, company)
	assert.Equal(t, []string{"true"}, company.Annotations["cobra_annotation_bash_completion_one_required_flag"])

	for _, name := range []string{"mode", "persist", "xlsx", "json"} {
		assert.NotNil(t, matchCmd.Flags().Lookup(name), "match should have --%s", name)
	}
}

func TestReverseCommand_Flags(t *testing.T) {
	require.NotNil(t, reverseCmd.Flags().Lookup("company"))
	assert.NotNil(t, reverseCmd.Flags().Lookup("persist"))
}

func TestBatchCommand_Flags(t *testing.T) {
	company := batchCmd.Flags().Lookup("company")
	require.NotNil(t, company)
	assert.Equal(t, "int64Slice", company.Value.Type())
	assert.Equal(t, "[]", company.DefValue)

	for _, name := range []string{"persist", "retry-failed", "xlsx"} {
		assert.NotNil(t, batchCmd.Flags().Lookup(name), "batch should have --%s", name)
	}
}

func TestSeedCommand_Args(t *testing.T) {
	assert.Error(t, seedCmd.Args(seedCmd, nil))
	assert.NoError(t, seedCmd.Args(seedCmd, []string{"data.yaml"}))
}
