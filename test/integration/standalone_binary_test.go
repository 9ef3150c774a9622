package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// buildOutsideRepo compiles cmd/adpilot and copies the binary into a temp
// dir with no go.mod above it, so the embedded identity and defaults are
// what the binary runs on.
func buildOutsideRepo(t *testing.T) (binary string, workDir string) {
	t.Helper()

	goMod, err := exec.Command("go", "env", "GOMOD").Output()
	if err != nil {
		t.Fatalf("go env GOMOD: %v", err)
	}
	repoRoot := filepath.Dir(strings.TrimSpace(string(goMod)))
	if repoRoot == "." {
		t.Fatalf("go env GOMOD returned empty")
	}

	built := filepath.Join(t.TempDir(), "adpilot")
	build := exec.Command("go", "build", "-o", built, "./cmd/adpilot")
	build.Dir = repoRoot
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("go build: %v\n%s", err, out)
	}

	workDir = t.TempDir()
	binary = filepath.Join(workDir, "adpilot")
	data, err := os.ReadFile(built)
	if err != nil {
		t.Fatalf("read built binary: %v", err)
	}
	if err := os.WriteFile(binary, data, 0o755); err != nil {
		t.Fatalf("copy binary: %v", err)
	}
	return binary, workDir
}

func runIn(t *testing.T, dir, binary string, args ...string) string {
	t.Helper()

	cmd := exec.Command(binary, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "ADPILOT_METRICS_ENABLED=false")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("%s %s: %v\n%s", filepath.Base(binary), strings.Join(args, " "), err, out)
	}
	return string(out)
}

func TestStandaloneBinaryRunsOutsideRepo(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix-only exec test")
	}
	binary, dir := buildOutsideRepo(t)

	runIn(t, dir, binary, "version")
	runIn(t, dir, binary, "--help")

	variants := `kpi: roas
variants:
  - {name: A, impressions: 5000, conversions: 50, roas: 2.5}
  - {name: B, impressions: 5000, conversions: 45, roas: 1.2}
`
	if err := os.WriteFile(filepath.Join(dir, "variants.yaml"), []byte(variants), 0o644); err != nil {
		t.Fatalf("write variants: %v", err)
	}

	out := runIn(t, dir, binary, "abtest", "evaluate", "--file", "variants.yaml", "--output-format", "json")
	if !strings.Contains(out, `"winner_name": "A"`) {
		t.Fatalf("expected variant A to win, got:\n%s", out)
	}
}
