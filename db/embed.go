// Package db embeds the marketplace database schema.
package db

import _ "embed"

// Schema holds the DDL for vendors, products, orders, order items,
// notifications and API keys. It is applied idempotently on startup.
//
//go:embed migrations/001_schema.sql
var Schema string
