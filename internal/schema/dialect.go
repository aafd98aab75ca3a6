package schema

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/pressly/goose/v3"
)

// Dialect describes how SQL is written for one relational engine.
type Dialect struct {
	Name        string
	DriverName  string
	Placeholder sq.PlaceholderFormat
	goose       goose.Dialect
}

var (
	SQLite = Dialect{
		Name:        "sqlite",
		DriverName:  "sqlite",
		Placeholder: sq.Question,
		goose:       goose.DialectSQLite3,
	}
	Postgres = Dialect{
		Name:        "postgres",
		DriverName:  "pgx",
		Placeholder: sq.Dollar,
		goose:       goose.DialectPostgres,
	}
)

// DialectFor maps a configured driver name to a Dialect.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case SQLite.Name:
		return SQLite, nil
	case Postgres.Name:
		return Postgres, nil
	}
	return Dialect{}, fmt.Errorf("unknown dialect %q", driver)
}

// Rebind rewrites ?-style placeholders for the dialect.
func (d Dialect) Rebind(query string) string {
	out, err := d.Placeholder.ReplacePlaceholders(query)
	if err != nil {
		// only malformed escapes fail; queries are static strings
		panic(fmt.Sprintf("rebind %q: %v", query, err))
	}
	return out
}

// Builder returns a squirrel statement builder bound to the dialect's placeholders.
func (d Dialect) Builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(d.Placeholder)
}

func (d Dialect) isPostgres() bool {
	return d.Name == Postgres.Name
}

func (d Dialect) typeName(t ColumnType) string {
	switch t {
	case Integer:
		if d.isPostgres() {
			return "BIGINT"
		}
		return "INTEGER"
	case Real:
		if d.isPostgres() {
			return "DOUBLE PRECISION"
		}
		return "REAL"
	default:
		return "TEXT"
	}
}

func (d Dialect) autoIDDefinition(name string) string {
	if d.isPostgres() {
		return name + " BIGSERIAL PRIMARY KEY"
	}
	return name + " INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL"
}
