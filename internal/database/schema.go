package database

import _ "embed"

// Schema is the full store schema, generated from the migrations.
// Tests apply it directly instead of running migrations.
//
//go:embed sqlc/schema.sql
var Schema string
