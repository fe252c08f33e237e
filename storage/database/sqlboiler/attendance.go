// Package boiledrepos runs the attendance queries through sqlboiler's query builder.
package boiledrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/drivers"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/storage/database"
)

const recordsTable = "attendance_records"

var (
	dialect = drivers.Dialect{
		LQ:                   '"',
		RQ:                   '"',
		UseIndexPlaceholders: true,
		UseDefaultKeyword:    true,
	}

	recordColumns = []string{"id", "student_id", "class_id", "date", "status", "marked_by", "remarks", "marked_at"}
)

const (
	lockPreviousQuery = `SELECT status FROM attendance_records WHERE student_id = $1 AND date = $2 FOR UPDATE`

	upsertQuery = `INSERT INTO attendance_records (id, student_id, class_id, date, status, marked_by, remarks, marked_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT ON CONSTRAINT attendance_records_student_date_key DO UPDATE SET
	class_id = EXCLUDED.class_id,
	status = EXCLUDED.status,
	marked_by = EXCLUDED.marked_by,
	remarks = EXCLUDED.remarks,
	marked_at = EXCLUDED.marked_at
RETURNING id, student_id, class_id, date, status, marked_by, remarks, marked_at`
)

type recordRow struct {
	ID        string      `boil:"id"`
	StudentID string      `boil:"student_id"`
	ClassID   string      `boil:"class_id"`
	Date      core.Date   `boil:"date"`
	Status    string      `boil:"status"`
	MarkedBy  null.String `boil:"marked_by"`
	Remarks   null.String `boil:"remarks"`
	MarkedAt  time.Time   `boil:"marked_at"`
}

func (r recordRow) record() attendance.Record {
	return attendance.Record{
		ID:        r.ID,
		StudentID: r.StudentID,
		ClassID:   r.ClassID,
		Date:      r.Date,
		Status:    attendance.Status(r.Status),
		MarkedBy:  r.MarkedBy.String,
		Remarks:   r.Remarks.Ptr(),
		MarkedAt:  r.MarkedAt.UTC(),
	}
}

func newQuery(mods ...qm.QueryMod) *queries.Query {
	q := &queries.Query{}
	queries.SetDialect(q, &dialect)
	qm.Apply(q, mods...)
	return q
}

type attendanceRepository struct {
	db core.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db core.DB) *attendanceRepository {
	vala.BeginValidation().Validate(
		vala.IsNotNil(db, "db"),
	).CheckAndPanic()

	return &attendanceRepository{db: db}
}

func (repo attendanceRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.db
}

// UpsertRecords runs in the caller's transaction when one is given, in its own otherwise.
func (repo attendanceRepository) UpsertRecords(
	ctx context.Context,
	records []attendance.Record,
	exec ...core.DBExecutor,
) ([]attendance.Upserted, error) {
	if len(exec) > 0 && exec[0] != nil {
		return repo.upsert(ctx, exec[0], records)
	}

	var upserted []attendance.Upserted
	err := core.RunInTx(ctx, repo.db, func(tx core.DBExecutor) error {
		var err error
		upserted, err = repo.upsert(ctx, tx, records)
		return err
	})
	if err != nil {
		return nil, err
	}
	return upserted, nil
}

func (repo attendanceRepository) upsert(
	ctx context.Context,
	exec core.DBExecutor,
	records []attendance.Record,
) ([]attendance.Upserted, error) {
	upserted := make([]attendance.Upserted, 0, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			rec.ID = core.NewID()
		}

		var prev struct {
			Status string `boil:"status"`
		}
		up := attendance.Upserted{}
		err := queries.Raw(lockPreviousQuery, rec.StudentID, rec.Date).Bind(ctx, exec, &prev)
		switch {
		case err == nil:
			status := attendance.Status(prev.Status)
			up.Previous = &status
		case errors.Cause(err) != sql.ErrNoRows:
			return nil, database.TrapError(err, nil, "locking attendance record")
		}

		var row recordRow
		err = queries.Raw(
			upsertQuery,
			rec.ID,
			rec.StudentID,
			rec.ClassID,
			rec.Date,
			string(rec.Status),
			null.NewString(rec.MarkedBy, rec.MarkedBy != ""),
			null.StringFromPtr(rec.Remarks),
			rec.MarkedAt.UTC(),
		).Bind(ctx, exec, &row)
		if err != nil {
			return nil, database.TrapError(err, nil, "upserting attendance record")
		}
		up.Record = row.record()
		upserted = append(upserted, up)
	}
	return upserted, nil
}

func (repo attendanceRepository) GetRecord(ctx context.Context, id string, exec ...core.DBExecutor) (attendance.Record, error) {
	if !core.IsID(id) {
		return attendance.Record{}, attendance.ErrRecordNotFound
	}
	q := newQuery(
		qm.Select(recordColumns...),
		qm.From(recordsTable),
		qm.Where("id = ?", id),
	)

	var row recordRow
	if err := q.Bind(ctx, repo.getExec(exec), &row); err != nil {
		return attendance.Record{}, database.TrapError(err, attendance.ErrRecordNotFound, "finding attendance record")
	}
	return row.record(), nil
}

func (repo attendanceRepository) QueryRecords(
	ctx context.Context,
	filter attendance.RecordFilter,
	exec ...core.DBExecutor,
) ([]attendance.Record, error) {
	mods := []qm.QueryMod{
		qm.Select(recordColumns...),
		qm.From(recordsTable),
		qm.OrderBy("date ASC, student_id ASC"),
	}
	if len(filter.StudentIDs) > 0 {
		ids := make([]interface{}, 0, len(filter.StudentIDs))
		for _, id := range filter.StudentIDs {
			if core.IsID(id) {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return []attendance.Record{}, nil
		}
		mods = append(mods, qm.WhereIn("student_id IN ?", ids...))
	}
	if filter.ClassID != "" {
		if !core.IsID(filter.ClassID) {
			return []attendance.Record{}, nil
		}
		mods = append(mods, qm.Where("class_id = ?", filter.ClassID))
	}
	if !filter.From.IsZero() {
		mods = append(mods, qm.Where("date >= ?", filter.From))
	}
	if !filter.To.IsZero() {
		mods = append(mods, qm.Where("date <= ?", filter.To))
	}

	var rows []recordRow
	if err := newQuery(mods...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, database.TrapError(err, nil, "querying attendance records")
	}
	records := make([]attendance.Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.record())
	}
	return records, nil
}

func (repo attendanceRepository) DeleteRecord(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !core.IsID(id) {
		return attendance.ErrRecordNotFound
	}
	res, err := queries.Raw("DELETE FROM attendance_records WHERE id = $1", id).ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return database.TrapError(err, nil, "deleting attendance record")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting attendance record")
	}
	if cnt == 0 {
		return attendance.ErrRecordNotFound
	}
	return nil
}
