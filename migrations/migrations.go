// Package migrations embeds the SQL schema for the Postgres event store.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS
