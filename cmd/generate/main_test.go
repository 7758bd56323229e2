package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/story-forge/internal/pipeline"
)

func TestRootCmd_RegistersEveryCommand(t *testing.T) {
	root := newRootCmd()
	for _, name := range pipeline.Commands {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	for _, flag := range []string{"model", "check-model", "check-only", "debug", "settings"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestRootCmd_RejectsExtraArgs(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{pipeline.CommandLog, "extra"})
	root.SetOut(new(nopWriter))
	root.SetErr(new(nopWriter))
	assert.Error(t, root.Execute())
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
