// Package migrations embeds the postgresql schema for the videos table.
package migrations

import "embed"

// FS contains all migration SQL files.
//
//go:embed *.sql
var FS embed.FS
