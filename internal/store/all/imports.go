// Package all wires all built-in store backends into the store factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) causes the init functions of each concrete backend to run, which in
// turn register their factories with the store package.
//
// In other words, importing this package makes the following store kinds
// available at runtime:
//
//   - "sqlite"   (unionsheets/internal/store/sqlite)
//   - "postgres" (unionsheets/internal/store/postgres)
//   - "mysql"    (unionsheets/internal/store/mysql)
//   - "mssql"    (unionsheets/internal/store/mssql)
//
// Typical usage (in cmd/unionsheets/main.go or a similar wiring layer):
//
//	import (
//	    _ "unionsheets/internal/store/all" // enable all built-in backends
//
//	    "unionsheets/internal/store"
//	)
//
//	st, err := store.Open(ctx, store.Config{Kind: "sqlite", DSN: "union.db"})
package all

import (
	_ "unionsheets/internal/store/mssql"
	_ "unionsheets/internal/store/mysql"
	_ "unionsheets/internal/store/postgres"
	_ "unionsheets/internal/store/sqlite"
)
