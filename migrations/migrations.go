// Package migrations holds the versioned schema scripts shared by cmd/migrate
// and the server's startup bootstrap.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
