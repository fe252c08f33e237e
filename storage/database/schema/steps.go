// Package schema describes the database schema as an ordered list of idempotent steps.
// Every step runs in its own transaction and re-running one that was already applied is a no-op.
package schema

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

type Kind string

const (
	KindCreateTable   Kind = "create_table"
	KindAddConstraint Kind = "add_constraint"
	KindCreateIndex   Kind = "create_index"
	KindSeedData      Kind = "seed_data"
)

type Statement struct {
	Query string
	Args  []interface{}
}

type Step interface {
	Kind() Kind
	Name() string
	Up() []Statement
	Down() []Statement
}

type CreateTable struct {
	Table   string
	Columns []string
}

func (s CreateTable) Kind() Kind   { return KindCreateTable }
func (s CreateTable) Name() string { return s.Table }

func (s CreateTable) Up() []Statement {
	return []Statement{{Query: fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		pq.QuoteIdentifier(s.Table), strings.Join(s.Columns, ",\n\t"),
	)}}
}

func (s CreateTable) Down() []Statement {
	return []Statement{{Query: "DROP TABLE IF EXISTS " + pq.QuoteIdentifier(s.Table)}}
}

// AddConstraint adds a named table constraint unless pg_constraint already knows it.
type AddConstraint struct {
	Table      string
	Constraint string
	Definition string // e.g. UNIQUE (student_id, date)
}

func (s AddConstraint) Kind() Kind   { return KindAddConstraint }
func (s AddConstraint) Name() string { return s.Constraint }

func (s AddConstraint) Up() []Statement {
	return []Statement{{Query: fmt.Sprintf(`DO $$
BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = %s) THEN
		ALTER TABLE %s ADD CONSTRAINT %s %s;
	END IF;
END
$$`, pq.QuoteLiteral(s.Constraint), pq.QuoteIdentifier(s.Table), pq.QuoteIdentifier(s.Constraint), s.Definition)}}
}

func (s AddConstraint) Down() []Statement {
	return []Statement{{Query: fmt.Sprintf(
		"ALTER TABLE IF EXISTS %s DROP CONSTRAINT IF EXISTS %s",
		pq.QuoteIdentifier(s.Table), pq.QuoteIdentifier(s.Constraint),
	)}}
}

type CreateIndex struct {
	Index   string
	Table   string
	Columns []string
	Unique  bool
}

func (s CreateIndex) Kind() Kind   { return KindCreateIndex }
func (s CreateIndex) Name() string { return s.Index }

func (s CreateIndex) Up() []Statement {
	unique := ""
	if s.Unique {
		unique = "UNIQUE "
	}
	return []Statement{{Query: fmt.Sprintf(
		"CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
		unique, pq.QuoteIdentifier(s.Index), pq.QuoteIdentifier(s.Table), strings.Join(s.Columns, ", "),
	)}}
}

func (s CreateIndex) Down() []Statement {
	return []Statement{{Query: "DROP INDEX IF EXISTS " + pq.QuoteIdentifier(s.Index)}}
}

// SeedData inserts rows keyed on their first column, leaving rows that already exist untouched.
type SeedData struct {
	Label   string
	Table   string
	Columns []string
	Rows    [][]interface{}
}

func (s SeedData) Kind() Kind   { return KindSeedData }
func (s SeedData) Name() string { return s.Label }

func (s SeedData) Up() []Statement {
	cols := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		cols = append(cols, pq.QuoteIdentifier(c))
	}
	placeholders := make([]string, 0, len(s.Columns))
	for i := range s.Columns {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
		pq.QuoteIdentifier(s.Table), strings.Join(cols, ", "), strings.Join(placeholders, ", "),
	)

	stmts := make([]Statement, 0, len(s.Rows))
	for _, row := range s.Rows {
		stmts = append(stmts, Statement{Query: query, Args: row})
	}
	return stmts
}

func (s SeedData) Down() []Statement {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", pq.QuoteIdentifier(s.Table), pq.QuoteIdentifier(s.Columns[0]))
	stmts := make([]Statement, 0, len(s.Rows))
	for _, row := range s.Rows {
		stmts = append(stmts, Statement{Query: query, Args: row[:1]})
	}
	return stmts
}

// Filename is the goose migration name of the step at position i (1-based).
func Filename(i int, step Step) string {
	return fmt.Sprintf("%05d_%s_%s.go", i, step.Kind(), step.Name())
}

func apply(stmts []Statement) func(tx *sql.Tx) error {
	return func(tx *sql.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.Exec(stmt.Query, stmt.Args...); err != nil {
				return errors.Wrapf(err, "executing %q", firstLine(stmt.Query))
			}
		}
		return nil
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
