// Package migrations embeds the goose migrations for the client-local
// database. The schema version is bumped by adding a new numbered file.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
