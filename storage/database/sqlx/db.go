// Package sqlxrepos implements the repositories with squirrel-built queries scanned by sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
)

var (
	psql   = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	mapper = reflectx.NewMapperFunc("db", strings.ToLower)
)

type baseRepository struct {
	exec core.DBExecutor
}

func (repo baseRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func query(ctx context.Context, exec core.DBExecutor, q sq.Sqlizer) (*sqlx.Rows, error) {
	stmt, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	rows, err := exec.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	return &sqlx.Rows{Rows: rows, Mapper: mapper}, nil
}

// selectAll scans every row into dest, a pointer to a slice of structs.
func selectAll(ctx context.Context, exec core.DBExecutor, dest interface{}, q sq.Sqlizer) error {
	rows, err := query(ctx, exec, q)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	return sqlx.StructScan(rows, dest)
}

// selectOne scans the first row into dest; sql.ErrNoRows when there is none.
func selectOne(ctx context.Context, exec core.DBExecutor, dest interface{}, q sq.Sqlizer) error {
	rows, err := query(ctx, exec, q)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return err
		}
		return sql.ErrNoRows
	}
	return rows.StructScan(dest)
}

func execute(ctx context.Context, exec core.DBExecutor, q sq.Sqlizer) (int64, error) {
	stmt, args, err := q.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := exec.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func orderBy(ordering []core.DBOrdering, allowed []string, def ...string) []string {
	ordering = core.FilterOrderings(ordering, allowed...)
	if len(ordering) == 0 {
		return def
	}
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		clauses = append(clauses, ord.String())
	}
	return clauses
}

func joinColumns(cols []string) string {
	return strings.Join(cols, ", ")
}

func ilike(val string) string {
	return "%" + strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(val) + "%"
}
