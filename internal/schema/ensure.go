package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/languagebuddy/buddy/internal/model"
)

// ErrIncompatibleColumn is returned when an existing column has a different
// storage family than the declared one.
var ErrIncompatibleColumn = errors.New("incompatible column type")

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ColumnInfo describes a column found in the live database.
type ColumnInfo struct {
	Name         string
	DeclaredType string
	Type         ColumnType
	Known        bool // false when the declared type maps to no family
}

// EnsureLatest brings every table to the declared shape. It only creates
// tables, adds columns and creates indexes, so running it again is a no-op.
func EnsureLatest(ctx context.Context, q Querier, d Dialect) error {
	for _, t := range Tables {
		if err := ensureTable(ctx, q, d, t); err != nil {
			return fmt.Errorf("ensure table %s: %w", t.Name, err)
		}
	}
	if err := backfillAccountIDs(ctx, q, d); err != nil {
		return fmt.Errorf("backfill account ids: %w", err)
	}
	return nil
}

// backfillAccountIDs derives account_id for rows that predate the column
// and were given the 0 default.
func backfillAccountIDs(ctx context.Context, q Querier, d Dialect) error {
	rows, err := q.QueryContext(ctx, `SELECT email FROM accounts WHERE account_id = 0`)
	if err != nil {
		return fmt.Errorf("select unassigned: %w", err)
	}

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan email: %w", err)
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("iterate emails: %w", err)
	}
	_ = rows.Close()

	update := d.Rebind(`UPDATE accounts SET account_id = ? WHERE email = ? AND account_id = 0`)
	for _, email := range emails {
		if _, err := q.ExecContext(ctx, update, model.AccountIDFor(email), email); err != nil {
			return fmt.Errorf("assign %s: %w", email, err)
		}
	}
	return nil
}

func ensureTable(ctx context.Context, q Querier, d Dialect, t Table) error {
	if _, err := q.ExecContext(ctx, CreateTableSQL(d, t)); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	existing, err := Inspect(ctx, q, d, t.Name)
	if err != nil {
		return err
	}

	byName := make(map[string]ColumnInfo, len(existing))
	for _, c := range existing {
		byName[c.Name] = c
	}

	for _, col := range t.Columns {
		if info, ok := byName[col.Name]; ok {
			if info.Known && info.Type != col.Type {
				return fmt.Errorf("%w: %s.%s is %q, want %s",
					ErrIncompatibleColumn, t.Name, col.Name, info.DeclaredType, col.Type)
			}
			continue
		}

		if _, err := q.ExecContext(ctx, AddColumnSQL(d, t.Name, col)); err != nil {
			return fmt.Errorf("add column %s: %w", col.Name, err)
		}

		if col.Legacy == "" {
			continue
		}
		if _, ok := byName[col.Legacy]; ok {
			copySQL := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s = ''",
				t.Name, col.Name, col.Legacy, col.Name)
			if _, err := q.ExecContext(ctx, copySQL); err != nil {
				return fmt.Errorf("copy %s into %s: %w", col.Legacy, col.Name, err)
			}
		}
	}

	for _, idx := range t.Indexes {
		if _, err := q.ExecContext(ctx, CreateIndexSQL(t.Name, idx)); err != nil {
			return fmt.Errorf("create index %s: %w", idx.Name, err)
		}
	}

	return nil
}

// Inspect lists the columns a table currently has. A missing table yields no columns.
func Inspect(ctx context.Context, q Querier, d Dialect, table string) ([]ColumnInfo, error) {
	if d.isPostgres() {
		return inspectPostgres(ctx, q, table)
	}
	return inspectSQLite(ctx, q, table)
}

func inspectSQLite(ctx context.Context, q Querier, table string) ([]ColumnInfo, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var (
			cid      int
			name     string
			declared string
			notNull  int
			dflt     sql.NullString
			pk       int
		)
		if err := rows.Scan(&cid, &name, &declared, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		cols = append(cols, columnInfo(name, declared))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table info: %w", err)
	}

	return cols, nil
}

func inspectPostgres(ctx context.Context, q Querier, table string) ([]ColumnInfo, error) {
	query := `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position
	`

	rows, err := q.QueryContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var name, declared string
		if err := rows.Scan(&name, &declared); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols = append(cols, columnInfo(name, declared))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	return cols, nil
}

func columnInfo(name, declared string) ColumnInfo {
	t, known := typeFamily(declared)
	return ColumnInfo{Name: name, DeclaredType: declared, Type: t, Known: known}
}

// typeFamily follows SQLite's affinity rules, which also cover the
// information_schema names Postgres reports.
func typeFamily(declared string) (ColumnType, bool) {
	upper := strings.ToUpper(declared)
	switch {
	case strings.Contains(upper, "INT"):
		return Integer, true
	case strings.Contains(upper, "CHAR"), strings.Contains(upper, "CLOB"), strings.Contains(upper, "TEXT"):
		return Text, true
	case strings.Contains(upper, "REAL"), strings.Contains(upper, "FLOA"), strings.Contains(upper, "DOUB"),
		strings.Contains(upper, "NUMERIC"), strings.Contains(upper, "DECIMAL"):
		return Real, true
	}
	return Text, false
}

// CreateTableSQL renders the declared table for the dialect.
func CreateTableSQL(d Dialect, t Table) string {
	defs := make([]string, 0, len(t.Columns)+2)
	if t.AutoID != "" {
		defs = append(defs, d.autoIDDefinition(t.AutoID))
	}
	for _, c := range t.Columns {
		defs = append(defs, columnDefinition(d, c, false))
	}
	if len(t.PrimaryKey) > 0 {
		defs = append(defs, "PRIMARY KEY ("+strings.Join(t.PrimaryKey, ", ")+")")
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", t.Name, strings.Join(defs, ",\n\t"))
}

// AddColumnSQL renders an ALTER TABLE for a missing column. NOT NULL columns
// always get a default so existing rows stay valid.
func AddColumnSQL(d Dialect, table string, c Column) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, columnDefinition(d, c, true))
}

// CreateIndexSQL renders an idempotent index statement.
func CreateIndexSQL(table string, idx Index) string {
	kind := "INDEX"
	if idx.Unique {
		kind = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s)",
		kind, idx.Name, table, strings.Join(idx.Columns, ", "))
}

func columnDefinition(d Dialect, c Column, forAlter bool) string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte(' ')
	b.WriteString(d.typeName(c.Type))

	def := c.Default
	if forAlter && c.NotNull && def == "" {
		def = zeroDefault(c.Type)
	}
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if def != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(def)
	}
	return b.String()
}

func zeroDefault(t ColumnType) string {
	if t == Text {
		return "''"
	}
	return "0"
}
