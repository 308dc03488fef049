// Package db holds the billing schema migrations.
package db

import "embed"

// Migrations contains the goose SQL migrations, applied in version order
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that goose reads from
const MigrationsDir = "migrations"
