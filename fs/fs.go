// Package appfs embeds the database migrations and static assets into the binaries.
package appfs

import "embed"

//go:embed migrations all:assets
var FS embed.FS
