package appid

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fulmenhq/gofulmen/appidentity"

	appidentityassets "github.com/adpilot/adpilot/internal/assets/appidentity"
)

// resetIdentity clears the gofulmen process cache and re-registers the
// embedded identity for the duration of a test.
func resetIdentity(t *testing.T) {
	t.Helper()

	appidentity.Reset()
	if err := appidentity.RegisterEmbeddedIdentityYAML(appidentityassets.YAML); err != nil {
		t.Fatalf("RegisterEmbeddedIdentityYAML: %v", err)
	}
	t.Cleanup(func() { appidentity.Reset() })
}

func chdirOutsideRepo(t *testing.T) {
	t.Helper()

	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldWD) })

	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
}

func TestGetFallsBackToEmbeddedIdentity(t *testing.T) {
	resetIdentity(t)
	t.Setenv(appidentity.EnvIdentityPath, "")
	chdirOutsideRepo(t)

	identity, err := Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if identity.BinaryName != "adpilot" {
		t.Fatalf("expected binary name adpilot, got %q", identity.BinaryName)
	}
	if identity.EnvPrefix != "ADPILOT_" {
		t.Fatalf("expected env prefix ADPILOT_, got %q", identity.EnvPrefix)
	}
	if identity.ConfigName != "adpilot" {
		t.Fatalf("expected config name adpilot, got %q", identity.ConfigName)
	}
}

func TestGetHonorsExplicitIdentityPath(t *testing.T) {
	resetIdentity(t)

	missing := filepath.Join(t.TempDir(), "missing-app.yaml")
	t.Setenv(appidentity.EnvIdentityPath, missing)

	_, err := Get(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}

	var notFound *appidentity.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %T: %v", err, err)
	}
}

func TestEnvPrefix(t *testing.T) {
	resetIdentity(t)
	t.Setenv(appidentity.EnvIdentityPath, "")
	chdirOutsideRepo(t)

	if got := EnvPrefix(context.Background()); got != "ADPILOT_" {
		t.Fatalf("expected ADPILOT_, got %q", got)
	}

	appidentity.Reset()
	t.Setenv(appidentity.EnvIdentityPath, filepath.Join(t.TempDir(), "missing.yaml"))
	if got := EnvPrefix(context.Background()); got != DefaultEnvPrefix {
		t.Fatalf("expected default prefix, got %q", got)
	}
}
