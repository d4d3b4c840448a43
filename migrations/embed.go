// Package migrations embeds the golang-migrate SQL files applied at startup
// and by integration tests.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
