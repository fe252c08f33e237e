package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/roster"
	"github.com/trezcool/mahudhurio/storage/database"
)

const (
	classesTable  = "classes"
	studentsTable = "students"
	settingsTable = "attendance_settings"
)

var (
	classColumns    = []string{"id", "name", "grade", "section", "capacity", "teacher_id", "school_id", "created_at", "updated_at"}
	studentColumns  = []string{"id", "name", "roll_number", "class_id", "parent_id", "is_active", "created_at", "updated_at"}
	settingsColumns = []string{
		"school_id", "auto_mark_absent_after", "late_threshold_minutes", "summary_notification_time", "notify_parents", "updated_at",
	}
)

type classRow struct {
	ID        string      `db:"id"`
	Name      string      `db:"name"`
	Grade     string      `db:"grade"`
	Section   string      `db:"section"`
	Capacity  int         `db:"capacity"`
	TeacherID null.String `db:"teacher_id"`
	SchoolID  string      `db:"school_id"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

func toClassRow(c roster.Class) classRow {
	return classRow{
		ID:        c.ID,
		Name:      c.Name,
		Grade:     c.Grade,
		Section:   c.Section,
		Capacity:  c.Capacity,
		TeacherID: null.StringFromPtr(c.TeacherID),
		SchoolID:  c.SchoolID,
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
	}
}

func (r classRow) class() roster.Class {
	return roster.Class{
		ID:        r.ID,
		Name:      r.Name,
		Grade:     r.Grade,
		Section:   r.Section,
		Capacity:  r.Capacity,
		TeacherID: r.TeacherID.Ptr(),
		SchoolID:  r.SchoolID,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type studentRow struct {
	ID         string      `db:"id"`
	Name       string      `db:"name"`
	RollNumber string      `db:"roll_number"`
	ClassID    string      `db:"class_id"`
	ParentID   null.String `db:"parent_id"`
	IsActive   bool        `db:"is_active"`
	CreatedAt  time.Time   `db:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at"`
}

func toStudentRow(s roster.Student) studentRow {
	return studentRow{
		ID:         s.ID,
		Name:       s.Name,
		RollNumber: s.RollNumber,
		ClassID:    s.ClassID,
		ParentID:   null.StringFromPtr(s.ParentID),
		IsActive:   s.IsActive,
		CreatedAt:  s.CreatedAt.UTC(),
		UpdatedAt:  s.UpdatedAt.UTC(),
	}
}

func (r studentRow) student() roster.Student {
	return roster.Student{
		ID:         r.ID,
		Name:       r.Name,
		RollNumber: r.RollNumber,
		ClassID:    r.ClassID,
		ParentID:   r.ParentID.Ptr(),
		IsActive:   r.IsActive,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

type settingsRow struct {
	SchoolID                string    `db:"school_id"`
	AutoMarkAbsentAfter     string    `db:"auto_mark_absent_after"`
	LateThresholdMinutes    int       `db:"late_threshold_minutes"`
	SummaryNotificationTime string    `db:"summary_notification_time"`
	NotifyParents           bool      `db:"notify_parents"`
	UpdatedAt               time.Time `db:"updated_at"`
}

func (r settingsRow) settings() roster.Settings {
	return roster.Settings{
		SchoolID:                r.SchoolID,
		AutoMarkAbsentAfter:     r.AutoMarkAbsentAfter,
		LateThresholdMinutes:    r.LateThresholdMinutes,
		SummaryNotificationTime: r.SummaryNotificationTime,
		NotifyParents:           r.NotifyParents,
		UpdatedAt:               r.UpdatedAt.UTC(),
	}
}

type rosterRepository struct {
	baseRepository
}

var _ roster.Repository = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(exec core.DBExecutor) *rosterRepository {
	return &rosterRepository{baseRepository{exec: exec}}
}

// Classes

func (repo rosterRepository) CreateClass(ctx context.Context, class roster.Class, exec ...core.DBExecutor) (roster.Class, error) {
	if class.ID == "" {
		class.ID = core.NewID()
	}
	row := toClassRow(class)
	q := psql.Insert(classesTable).
		Columns(classColumns...).
		Values(row.ID, row.Name, row.Grade, row.Section, row.Capacity, row.TeacherID, row.SchoolID, row.CreatedAt, row.UpdatedAt).
		Suffix("RETURNING " + joinColumns(classColumns))

	var created classRow
	if err := selectOne(ctx, repo.getExec(exec), &created, q); err != nil {
		return roster.Class{}, database.TrapError(err, roster.ErrClassNotFound, "inserting class")
	}
	return created.class(), nil
}

func (repo rosterRepository) GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (roster.Class, error) {
	if !core.IsID(id) {
		return roster.Class{}, roster.ErrClassNotFound
	}
	q := psql.Select(classColumns...).From(classesTable).Where(sq.Eq{"id": id})

	var row classRow
	if err := selectOne(ctx, repo.getExec(exec), &row, q); err != nil {
		return roster.Class{}, database.TrapError(err, roster.ErrClassNotFound, "finding class")
	}
	return row.class(), nil
}

func (repo rosterRepository) QueryClasses(
	ctx context.Context,
	filter *roster.ClassFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]roster.Class, error) {
	q := psql.Select(classColumns...).From(classesTable)

	if filter != nil {
		if filter.Search != "" {
			val := ilike(filter.Search)
			q = q.Where(sq.Or{sq.ILike{"name": val}, sq.ILike{"grade": val}, sq.ILike{"section": val}})
		}
		if filter.Grade != "" {
			q = q.Where(sq.Eq{"grade": filter.Grade})
		}
		if filter.TeacherID != "" {
			if !core.IsID(filter.TeacherID) {
				return []roster.Class{}, nil
			}
			q = q.Where(sq.Eq{"teacher_id": filter.TeacherID})
		}
	}
	q = q.OrderBy(orderBy(ordering, []string{"name", "grade", "created_at"}, "name ASC")...)

	var rows []classRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, q); err != nil {
		return nil, database.TrapError(err, nil, "querying classes")
	}
	classes := make([]roster.Class, 0, len(rows))
	for _, r := range rows {
		classes = append(classes, r.class())
	}
	return classes, nil
}

func (repo rosterRepository) UpdateClass(ctx context.Context, class roster.Class, exec ...core.DBExecutor) (roster.Class, error) {
	row := toClassRow(class)
	q := psql.Update(classesTable).
		SetMap(map[string]interface{}{
			"name":       row.Name,
			"grade":      row.Grade,
			"section":    row.Section,
			"capacity":   row.Capacity,
			"teacher_id": row.TeacherID,
			"updated_at": row.UpdatedAt,
		}).
		Where(sq.Eq{"id": class.ID}).
		Suffix("RETURNING " + joinColumns(classColumns))

	var updated classRow
	if err := selectOne(ctx, repo.getExec(exec), &updated, q); err != nil {
		return roster.Class{}, database.TrapError(err, roster.ErrClassNotFound, "updating class")
	}
	return updated.class(), nil
}

// Students

func (repo rosterRepository) CreateStudent(ctx context.Context, student roster.Student, exec ...core.DBExecutor) (roster.Student, error) {
	if student.ID == "" {
		student.ID = core.NewID()
	}
	row := toStudentRow(student)
	q := psql.Insert(studentsTable).
		Columns(studentColumns...).
		Values(row.ID, row.Name, row.RollNumber, row.ClassID, row.ParentID, row.IsActive, row.CreatedAt, row.UpdatedAt).
		Suffix("RETURNING " + joinColumns(studentColumns))

	var created studentRow
	if err := selectOne(ctx, repo.getExec(exec), &created, q); err != nil {
		return roster.Student{}, database.TrapError(err, roster.ErrStudentNotFound, "inserting student")
	}
	return created.student(), nil
}

func (repo rosterRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (roster.Student, error) {
	if !core.IsID(id) {
		return roster.Student{}, roster.ErrStudentNotFound
	}
	q := psql.Select(studentColumns...).From(studentsTable).Where(sq.Eq{"id": id})

	var row studentRow
	if err := selectOne(ctx, repo.getExec(exec), &row, q); err != nil {
		return roster.Student{}, database.TrapError(err, roster.ErrStudentNotFound, "finding student")
	}
	return row.student(), nil
}

// studentConditions returns false when the filter cannot match any row.
func studentConditions(filter *roster.StudentFilter) (sq.And, bool) {
	conds := sq.And{}
	if filter == nil {
		return conds, true
	}
	if filter.Search != "" {
		val := ilike(filter.Search)
		conds = append(conds, sq.Or{sq.ILike{"name": val}, sq.ILike{"roll_number": val}})
	}
	if filter.ClassID != "" {
		if !core.IsID(filter.ClassID) {
			return nil, false
		}
		conds = append(conds, sq.Eq{"class_id": filter.ClassID})
	}
	if filter.ParentID != "" {
		if !core.IsID(filter.ParentID) {
			return nil, false
		}
		conds = append(conds, sq.Eq{"parent_id": filter.ParentID})
	}
	if filter.RollNumber != "" {
		conds = append(conds, sq.Eq{"roll_number": filter.RollNumber})
	}
	if filter.IsActive != nil {
		conds = append(conds, sq.Eq{"is_active": *filter.IsActive})
	}
	if filter.IDs != nil {
		ids := make([]string, 0, len(filter.IDs))
		for _, id := range filter.IDs {
			if core.IsID(id) {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return nil, false
		}
		conds = append(conds, sq.Eq{"id": ids})
	}
	return conds, true
}

func (repo rosterRepository) QueryStudents(
	ctx context.Context,
	filter *roster.StudentFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]roster.Student, error) {
	conds, ok := studentConditions(filter)
	if !ok {
		return []roster.Student{}, nil
	}
	q := psql.Select(studentColumns...).From(studentsTable).
		OrderBy(orderBy(ordering, []string{"name", "roll_number", "created_at"}, "roll_number ASC")...)
	if len(conds) > 0 {
		q = q.Where(conds)
	}

	var rows []studentRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, q); err != nil {
		return nil, database.TrapError(err, nil, "querying students")
	}
	students := make([]roster.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.student())
	}
	return students, nil
}

func (repo rosterRepository) CountStudents(ctx context.Context, filter *roster.StudentFilter, exec ...core.DBExecutor) (int, error) {
	conds, ok := studentConditions(filter)
	if !ok {
		return 0, nil
	}
	q := psql.Select("COUNT(*) AS count").From(studentsTable)
	if len(conds) > 0 {
		q = q.Where(conds)
	}

	var res struct {
		Count int `db:"count"`
	}
	if err := selectOne(ctx, repo.getExec(exec), &res, q); err != nil {
		return 0, database.TrapError(err, nil, "counting students")
	}
	return res.Count, nil
}

func (repo rosterRepository) UpdateStudent(ctx context.Context, student roster.Student, exec ...core.DBExecutor) (roster.Student, error) {
	row := toStudentRow(student)
	q := psql.Update(studentsTable).
		SetMap(map[string]interface{}{
			"name":        row.Name,
			"roll_number": row.RollNumber,
			"class_id":    row.ClassID,
			"parent_id":   row.ParentID,
			"is_active":   row.IsActive,
			"updated_at":  row.UpdatedAt,
		}).
		Where(sq.Eq{"id": student.ID}).
		Suffix("RETURNING " + joinColumns(studentColumns))

	var updated studentRow
	if err := selectOne(ctx, repo.getExec(exec), &updated, q); err != nil {
		return roster.Student{}, database.TrapError(err, roster.ErrStudentNotFound, "updating student")
	}
	return updated.student(), nil
}

// Settings

func (repo rosterRepository) GetSettings(ctx context.Context, schoolID string, exec ...core.DBExecutor) (roster.Settings, error) {
	if !core.IsID(schoolID) {
		return roster.Settings{}, roster.ErrSettingsNotFound
	}
	q := psql.Select(settingsColumns...).From(settingsTable).Where(sq.Eq{"school_id": schoolID})

	var row settingsRow
	if err := selectOne(ctx, repo.getExec(exec), &row, q); err != nil {
		return roster.Settings{}, database.TrapError(err, roster.ErrSettingsNotFound, "finding settings")
	}
	return row.settings(), nil
}

func (repo rosterRepository) SaveSettings(ctx context.Context, s roster.Settings, exec ...core.DBExecutor) (roster.Settings, error) {
	q := psql.Insert(settingsTable).
		Columns(settingsColumns...).
		Values(s.SchoolID, s.AutoMarkAbsentAfter, s.LateThresholdMinutes, s.SummaryNotificationTime, s.NotifyParents, s.UpdatedAt.UTC()).
		Suffix(`ON CONFLICT (school_id) DO UPDATE SET
			auto_mark_absent_after = EXCLUDED.auto_mark_absent_after,
			late_threshold_minutes = EXCLUDED.late_threshold_minutes,
			summary_notification_time = EXCLUDED.summary_notification_time,
			notify_parents = EXCLUDED.notify_parents,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + joinColumns(settingsColumns))

	var saved settingsRow
	if err := selectOne(ctx, repo.getExec(exec), &saved, q); err != nil {
		return roster.Settings{}, database.TrapError(err, roster.ErrSettingsNotFound, "saving settings")
	}
	return saved.settings(), nil
}
