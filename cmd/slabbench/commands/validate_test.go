package commands

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

func writeWorkloadFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "workload.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestValidateCommand_ValidFile(t *testing.T) {
	t.Parallel()

	path := writeWorkloadFile(t, testWorkloadYAML)

	command := NewValidateCommand()

	var out bytes.Buffer
	command.SetOut(&out)
	command.SetErr(io.Discard)
	command.SetArgs([]string{path})

	err := command.Execute()
	require.NoError(t, err)
	require.Contains(t, out.String(), "workload is valid")
}

func TestValidateCommand_InvalidFile_ReturnsSentinel(t *testing.T) {
	t.Parallel()

	path := writeWorkloadFile(t, `policy: lru
phases:
  - kind: insert
    ops: 100
`)

	command := NewValidateCommand()

	var out bytes.Buffer
	command.SetOut(&out)
	command.SetErr(io.Discard)
	command.SetArgs([]string{path})

	err := command.Execute()
	require.ErrorIs(t, err, ErrWorkloadInvalid)
	require.Contains(t, out.String(), "workload validation failed")
	require.Contains(t, out.String(), "policy")
}

func TestValidateCommand_MissingFile_NotValidationFailure(t *testing.T) {
	t.Parallel()

	command := NewValidateCommand()
	command.SetOut(io.Discard)
	command.SetErr(io.Discard)
	command.SetArgs([]string{"/nonexistent/workload.yaml"})

	err := command.Execute()
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrWorkloadInvalid)
}

func TestValidateCommand_RequiresArgument(t *testing.T) {
	t.Parallel()

	command := NewValidateCommand()
	command.SetOut(io.Discard)
	command.SetErr(io.Discard)
	command.SetArgs([]string{})

	err := command.Execute()
	require.Error(t, err)
}

// Not parallel: --no-color mutates the color package global.
func TestValidateCommand_NoColorFlag(t *testing.T) {
	prev := color.NoColor

	t.Cleanup(func() { color.NoColor = prev })

	path := writeWorkloadFile(t, testWorkloadYAML)

	command := NewValidateCommand()

	var out bytes.Buffer
	command.SetOut(&out)
	command.SetErr(io.Discard)
	command.SetArgs([]string{"--no-color", path})

	err := command.Execute()
	require.NoError(t, err)
	require.True(t, color.NoColor)
	require.Contains(t, out.String(), "workload is valid")
	require.NotContains(t, out.String(), "\x1b[")
}
