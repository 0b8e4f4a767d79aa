// Package migrations holds the goose Go migrations for the generation history
// schema. Column types depend on the driver, so the schema is built in Go
// rather than in a single SQL file.
package migrations

import "fmt"

var dialect = "sqlite3"

// SetDialect selects the DDL flavour used by the migrations. It must be called
// before goose.Up.
func SetDialect(d string) error {
	switch d {
	case "sqlite3", "postgres", "mysql":
		dialect = d
		return nil
	default:
		return fmt.Errorf("unsupported migration dialect %q", d)
	}
}
