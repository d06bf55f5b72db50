// Package migrations ships the postgres record store schema with the binary.
package migrations

import "embed"

// FS holds the NNN_name.sql files in version order by name.
//
//go:embed *.sql
var FS embed.FS
