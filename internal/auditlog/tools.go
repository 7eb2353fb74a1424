//go:build tools

// This file pins github.com/pressly/goose/v3 as a direct dependency ahead
// of moving the hand-rolled migrations in this package onto goose.
package auditlog

import _ "github.com/pressly/goose/v3"
