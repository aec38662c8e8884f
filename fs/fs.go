// Package appfs embeds the static files shipped with the binaries.
package appfs

import "embed"

//go:embed migrations all:templates assets
var FS embed.FS
