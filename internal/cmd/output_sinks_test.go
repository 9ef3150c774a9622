package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adpilot/adpilot/internal/output"
)

func newOutputCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "test"}
	addOutputFlags(c, "table, json, markdown")
	require.NoError(t, c.ParseFlags(args))
	return c
}

func TestWriteOutputToDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	c := newOutputCmd(t, "--output-format", "json", "--out-dir", dir)

	err := writeOutput(c, "abtest.Spring Sale", func(format output.Format, _ output.Formatter) (string, error) {
		assert.Equal(t, output.FormatJSON, format)
		return "{}\n\n", nil
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "abtest.spring-sale.json"))
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(data))
}

func TestWriteOutputToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "limits.txt")
	c := newOutputCmd(t, "--out", path)

	require.NoError(t, writeOutput(c, "limits", func(output.Format, output.Formatter) (string, error) {
		return "meta 4", nil
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "meta 4\n", string(data))
}

func TestReadOutputTargetRejectsBothDestinations(t *testing.T) {
	c := newOutputCmd(t, "--out", "a.json", "--out-dir", "reports")

	_, err := readOutputTarget(c)
	assert.ErrorIs(t, err, errOutConflict)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "cost.totals", sanitizeFilename("Cost.Totals"))
	assert.Equal(t, "abtest.acme-q3", sanitizeFilename(" abtest.ACME / Q3 "))
	assert.Equal(t, "output", sanitizeFilename("..."))
}
