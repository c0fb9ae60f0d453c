// Package migrations embeds the SQL schema files so the migrate binary does
// not depend on a working directory layout.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
