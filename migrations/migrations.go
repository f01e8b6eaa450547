// Package migrations embeds the SQL schema migrations for the ordering service.
package migrations

import "embed"

// FS contains all .up.sql migration files, applied in filename order.
//
//go:embed *.sql
var FS embed.FS
