package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModulesCommand_ListsBuiltins(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	cmd := NewModulesCommand()
	cmd.SetOut(&out)
	cmd.SetArgs(nil)

	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "kvstats")
	assert.Contains(t, out.String(), "tsvstats")
}
