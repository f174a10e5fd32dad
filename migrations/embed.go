// Package migrations holds the embedded schema migrations applied by the
// migrate command.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
