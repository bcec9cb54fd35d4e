package migrations

import "embed"

// SQLite holds the golang-migrate files applied when the sqlite backend opens.
//
//go:embed sqlite/*.sql
var SQLite embed.FS

// Postgres holds plain ordered .sql files applied by cmd/migrate.
//
//go:embed postgres/*.sql
var Postgres embed.FS
