// Package migrations holds the embedded schema for both storage backends.
// Migrations are idempotent (CREATE ... IF NOT EXISTS) and applied in
// lexical filename order at startup.
package migrations

import "embed"

// PostgresFS embeds all PostgreSQL migration files.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds all ClickHouse migration files.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
