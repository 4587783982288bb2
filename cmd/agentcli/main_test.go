package main

import (
	"bytes"
	"strings"
	"testing"

	"agentcli/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	root := newRootCmd(config.Default())

	assert.Equal(t, "agentcli", root.Use)
	assert.NotEmpty(t, root.Short)
	assert.NotEmpty(t, root.Long)
	assert.True(t, root.SilenceUsage)

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"run", "health", "history", "setup"})
}

func TestRootVersion(t *testing.T) {
	root := newRootCmd(config.Default())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--version"})

	require.NoError(t, root.Execute())
	assert.True(t, strings.Contains(out.String(), version))
}
