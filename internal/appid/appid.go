// Package appid resolves the adpilot app identity (binary name, env prefix,
// config name) with an embedded fallback for binaries run outside the repo.
package appid

import (
	"context"

	"github.com/fulmenhq/gofulmen/appidentity"

	appidentityassets "github.com/adpilot/adpilot/internal/assets/appidentity"
)

// DefaultEnvPrefix is used when no identity can be loaded.
const DefaultEnvPrefix = "ADPILOT_"

func init() {
	// An explicit FULMEN_APP_IDENTITY_PATH or .fulmen/app.yaml still wins;
	// the embedded copy only answers when neither is found.
	_ = appidentity.RegisterEmbeddedIdentityYAML(appidentityassets.YAML)
}

// Get returns the process-wide identity.
func Get(ctx context.Context) (*appidentity.Identity, error) {
	return appidentity.Get(ctx)
}

// EnvPrefix returns the identity env prefix, or DefaultEnvPrefix when the
// identity is unavailable.
func EnvPrefix(ctx context.Context) string {
	identity, err := Get(ctx)
	if err != nil || identity == nil || identity.EnvPrefix == "" {
		return DefaultEnvPrefix
	}
	return identity.EnvPrefix
}
