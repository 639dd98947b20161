// Package migrations embeds the SQL schema applied at startup by goose.
package migrations

import "embed"

// FS holds the goose migration files.
//
//go:embed *.sql
var FS embed.FS
