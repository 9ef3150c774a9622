package appidentityassets

import _ "embed"

// YAML mirrors .fulmen/app.yaml so a copied adpilot binary still knows its
// name, env prefix and config name. Edit both files together.
//
//go:embed app.yaml
var YAML []byte
