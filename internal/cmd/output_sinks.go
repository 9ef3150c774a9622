package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adpilot/adpilot/internal/output"
)

var errOutConflict = errors.New("--out and --out-dir are mutually exclusive")

var unsafeFilenameChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// outputTarget is the parsed --output-format, --out and --out-dir flags.
type outputTarget struct {
	format output.Format
	file   string
	dir    string
}

func addOutputFlags(cmd *cobra.Command, formats string) {
	cmd.Flags().String("output-format", string(output.FormatTable), "Output format: "+formats)
	cmd.Flags().String("out", "", "Write output to a file (default stdout)")
	cmd.Flags().String("out-dir", "", "Write output to a directory")
}

func resolveOutputFormat(cmd *cobra.Command) (output.Format, error) {
	value, err := cmd.Flags().GetString("output-format")
	if err != nil {
		return "", err
	}
	return output.ParseFormat(value)
}

func readOutputTarget(cmd *cobra.Command) (outputTarget, error) {
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return outputTarget{}, err
	}

	flags := cmd.Flags()
	file, err := flags.GetString("out")
	if err != nil {
		return outputTarget{}, err
	}
	dir, err := flags.GetString("out-dir")
	if err != nil {
		return outputTarget{}, err
	}

	target := outputTarget{format: format, file: strings.TrimSpace(file), dir: strings.TrimSpace(dir)}
	if target.file != "" && target.dir != "" {
		return outputTarget{}, errOutConflict
	}
	return target, nil
}

// path resolves where baseName is written. Empty or "-" means stdout.
func (o outputTarget) path(baseName string) string {
	if o.dir == "" {
		return o.file
	}
	dir := o.dir
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return filepath.Join(dir, sanitizeFilename(baseName)+"."+extensionFor(o.format))
}

func extensionFor(format output.Format) string {
	switch format {
	case output.FormatJSON:
		return "json"
	case output.FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}

func sanitizeFilename(value string) string {
	clean := unsafeFilenameChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), "-")
	clean = strings.Trim(clean, "-.")
	if clean == "" {
		return "output"
	}
	return clean
}

// createSink opens path for writing, creating parent directories.
func createSink(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return os.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// writeOutput renders with the flag-selected formatter and writes the result
// to stdout, --out, or <out-dir>/<baseName>.<ext>.
func writeOutput(cmd *cobra.Command, baseName string, render func(output.Format, output.Formatter) (string, error)) error {
	target, err := readOutputTarget(cmd)
	if err != nil {
		return err
	}

	rendered, err := render(target.format, output.NewFormatter(target.format))
	if err != nil {
		return err
	}

	sink, err := createSink(target.path(baseName))
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(sink, strings.TrimRight(rendered, "\n")); err != nil {
		_ = sink.Close()
		return err
	}
	return sink.Close()
}
