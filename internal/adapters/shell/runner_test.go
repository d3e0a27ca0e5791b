package shell

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melih/lighthouse-panel/internal/core/ports"
)

func TestRunCapturesOutput(t *testing.T) {
	r := NewRunner(nil, []string{"echo"})
	res, err := r.Run(context.Background(), ports.Command{Name: "echo", Args: []string{"hello", "; rm -rf /"}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	// Arguments are not interpreted by a shell.
	assert.Equal(t, "hello ; rm -rf /\n", res.Output)
}

func TestRunReportsExitCode(t *testing.T) {
	r := NewRunner(nil, []string{"ls"})
	res, err := r.Run(context.Background(), ports.Command{Name: "ls", Args: []string{"/definitely/not/here"}})
	require.NoError(t, err)
	assert.NotEqual(t, 0, res.ExitCode)
	assert.NotEmpty(t, res.Stderr)
}

func TestRunRejectsUnlistedProgram(t *testing.T) {
	r := NewRunner(nil, DefaultPrograms)
	_, err := r.Run(context.Background(), ports.Command{Name: "sh", Args: []string{"-c", "true"}})
	assert.ErrorContains(t, err, "not allowed")
}

func TestRunMissingBinary(t *testing.T) {
	r := NewRunner(nil, []string{"lighthouse-no-such-binary"})
	_, err := r.Run(context.Background(), ports.Command{Name: "lighthouse-no-such-binary"})
	assert.Error(t, err)
}
