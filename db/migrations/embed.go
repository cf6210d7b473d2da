// Package migrations embeds the SQL schema of the sqlite key/value store.
package migrations

import "embed"

// Files exposes the compiled-in migration SQL files.
//
//go:embed *.sql
var Files embed.FS
