package attendance_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/roster"
	"github.com/trezcool/mahudhurio/core/user"
	"github.com/trezcool/mahudhurio/storage/database/inmem"
	"github.com/trezcool/mahudhurio/testutil"
)

type recorder struct {
	mu      sync.Mutex
	changes []attendance.Change
	err     error
}

func (r *recorder) Publish(_ context.Context, change attendance.Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
	return r.err
}

func (r *recorder) reset() []attendance.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	changes := r.changes
	r.changes = nil
	return changes
}

type fixture struct {
	svc       *attendance.Service
	rosterSvc *roster.Service
	rstrRepo  roster.Repository
	events    *recorder
	class     roster.Class
	students  []roster.Student // A, B, C
	teacherID string
}

func setup(t *testing.T) *fixture {
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	rstrRepo := inmemdb.NewRosterRepository(db)
	conf := testutil.NewConfig()

	usrSvc := user.NewService(usrRepo, nopMailer{}, conf)
	rosterSvc := roster.NewService(rstrRepo, usrSvc, conf)
	events := &recorder{}
	svc := attendance.NewService(inmemdb.NewAttendanceRepository(db), rosterSvc, events, testutil.NopLogger{}, conf)

	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@mahudhurio.io", "", []string{user.RoleTeacher}, true)
	class := testutil.CreateClass(t, rstrRepo, "Grade 1")
	return &fixture{
		svc:       svc,
		rosterSvc: rosterSvc,
		rstrRepo:  rstrRepo,
		events:    events,
		class:     class,
		teacherID: teacher.ID,
		students: []roster.Student{
			testutil.CreateStudent(t, rstrRepo, class.ID, "Alice", "001"),
			testutil.CreateStudent(t, rstrRepo, class.ID, "Bob", "002"),
			testutil.CreateStudent(t, rstrRepo, class.ID, "Carol", "003"),
		},
	}
}

type nopMailer struct{}

func (nopMailer) SendMessages(...*core.EmailMessage) {}

func (f *fixture) mark(t *testing.T, date string, entries ...attendance.Entry) attendance.MarkResult {
	res, err := f.svc.Mark(context.Background(), attendance.MarkRequest{
		ClassID:  f.class.ID,
		Date:     core.MustParseDate(date),
		MarkedBy: f.teacherID,
		Entries:  entries,
	})
	require.NoError(t, err)
	return res
}

func entry(s roster.Student, status attendance.Status) attendance.Entry {
	return attendance.Entry{StudentID: s.ID, Status: string(status)}
}

func statusPtr(s attendance.Status) *attendance.Status { return &s }

func TestService_scenarios(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	a, b, c := f.students[0], f.students[1], f.students[2]
	day := core.MustParseDate("2024-03-01")

	// nothing marked yet
	rows, err := f.svc.ClassDay(ctx, f.class.ID, day)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Nil(t, row.Status)
		assert.Nil(t, row.RecordID)
	}

	res := f.mark(t, "2024-03-01", entry(a, attendance.StatusPresent), entry(b, attendance.StatusAbsent), entry(c, attendance.StatusLate))
	assert.Equal(t, 3, res.Updated)
	assert.Len(t, f.events.reset(), 3)

	rows, err = f.svc.ClassDay(ctx, f.class.ID, day)
	require.NoError(t, err)
	got := map[string]attendance.Status{}
	for _, row := range rows {
		require.NotNil(t, row.Status)
		got[row.Student.ID] = *row.Status
	}
	assert.Equal(t, map[string]attendance.Status{
		a.ID: attendance.StatusPresent,
		b.ID: attendance.StatusAbsent,
		c.ID: attendance.StatusLate,
	}, got)

	sum, err := f.svc.SummarizeClass(ctx, f.class.ID, day, day)
	require.NoError(t, err)
	require.Len(t, sum.PerDay, 1)
	assert.Equal(t, attendance.DayCounts{Date: day, Present: 1, Absent: 1, Late: 1}, sum.PerDay[0])
	assert.Equal(t, 66.7, sum.Overall.AttendanceRate)

	// re-mark A absent
	res = f.mark(t, "2024-03-01", entry(a, attendance.StatusAbsent))
	assert.Equal(t, 1, res.Updated)
	changes := f.events.reset()
	require.Len(t, changes, 1)
	assert.Equal(t, a.ID, changes[0].StudentID)
	assert.Equal(t, day, changes[0].Date)
	assert.Equal(t, statusPtr(attendance.StatusPresent), changes[0].OldStatus)
	assert.Equal(t, attendance.StatusAbsent, changes[0].NewStatus)

	sum, err = f.svc.SummarizeClass(ctx, f.class.ID, day, day)
	require.NoError(t, err)
	assert.Equal(t, attendance.DayCounts{Date: day, Absent: 2, Late: 1}, sum.PerDay[0])
	assert.Equal(t, 33.3, sum.Overall.AttendanceRate)
}

func TestService_SummarizeStudent_unmarkedDaysExcluded(t *testing.T) {
	f := setup(t)
	d := f.students[0]
	start := core.MustParseDate("2024-03-01")
	for i := 0; i < 10; i += 2 {
		f.mark(t, start.AddDays(i).String(), entry(d, attendance.StatusPresent))
	}

	sum, err := f.svc.SummarizeStudent(context.Background(), d.ID, start, start.AddDays(9))
	require.NoError(t, err)
	assert.Equal(t, 5, sum.TotalDays)
	assert.Equal(t, 5, sum.PresentDays)
	assert.Equal(t, 100.0, sum.AttendancePercentage)
}

func TestService_Mark_uniquenessAndIdempotence(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	a := f.students[0]
	day := core.MustParseDate("2024-03-04")

	sequence := []attendance.Status{
		attendance.StatusPresent, attendance.StatusLate, attendance.StatusLate, attendance.StatusExcused, attendance.StatusAbsent,
	}
	wantEvents := []int{1, 1, 0, 1, 1}
	for i, status := range sequence {
		f.mark(t, day.String(), entry(a, status))
		assert.Len(t, f.events.reset(), wantEvents[i], "submission %d (%s)", i, status)

		history, err := f.svc.History(ctx, a.ID, day, day)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, status, history[0].Status)
	}
}

func TestService_Mark_defaultStatusAndRemarks(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	a := f.students[0]
	day := core.MustParseDate("2024-03-04")

	f.mark(t, day.String(), attendance.Entry{StudentID: a.ID, Remarks: "  sick  "})
	history, err := f.svc.History(ctx, a.ID, day, day)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, attendance.DefaultStatus, history[0].Status)
	require.NotNil(t, history[0].Remarks)
	assert.Equal(t, "sick", *history[0].Remarks)
	assert.Equal(t, f.teacherID, history[0].MarkedBy)
	assert.Equal(t, f.class.ID, history[0].ClassID)
}

func TestService_Mark_rejected(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	a, b := f.students[0], f.students[1]

	otherClass := testutil.CreateClass(t, f.rstrRepo, "Grade 2")
	outsider := testutil.CreateStudent(t, f.rstrRepo, otherClass.ID, "Dan", "004")
	tomorrow := core.Today(time.Now(), time.UTC).AddDays(1)

	tests := []struct {
		name       string
		req        attendance.MarkRequest
		wantFields []string
		notFound   bool
	}{
		{
			name:       "future date",
			req:        attendance.MarkRequest{ClassID: f.class.ID, Date: tomorrow, Entries: []attendance.Entry{entry(a, attendance.StatusPresent)}},
			wantFields: []string{"date"},
		},
		{
			name:       "missing date",
			req:        attendance.MarkRequest{ClassID: f.class.ID, Entries: []attendance.Entry{entry(a, attendance.StatusPresent)}},
			wantFields: []string{"date"},
		},
		{
			name:       "no entries",
			req:        attendance.MarkRequest{ClassID: f.class.ID, Date: core.MustParseDate("2024-03-01")},
			wantFields: []string{"entries"},
		},
		{
			name:     "unknown class",
			req:      attendance.MarkRequest{ClassID: core.NewID(), Date: core.MustParseDate("2024-03-01"), Entries: []attendance.Entry{entry(a, attendance.StatusPresent)}},
			notFound: true,
		},
		{
			name: "one bad entry rejects the batch",
			req: attendance.MarkRequest{ClassID: f.class.ID, Date: core.MustParseDate("2024-03-01"), Entries: []attendance.Entry{
				entry(a, attendance.StatusPresent),
				{StudentID: b.ID, Status: "HERE"},
				entry(outsider, attendance.StatusPresent),
				entry(a, attendance.StatusAbsent),
			}},
			wantFields: []string{"entries.1.status", "entries.2.student_id", "entries.3.student_id"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Mark(ctx, tt.req)
			require.Error(t, err)
			if tt.notFound {
				assert.True(t, core.IsNotFound(err), "got %v", err)
				return
			}

			verr, ok := errors.Cause(err).(*core.ValidationError)
			require.True(t, ok, "got %v", err)
			var fields []string
			for _, fe := range verr.Fields {
				fields = append(fields, fe.Field)
			}
			assert.Equal(t, tt.wantFields, fields)
		})
	}

	// nothing got written
	history, err := f.svc.History(ctx, a.ID, core.MustParseDate("2024-03-01"), core.MustParseDate("2024-03-01"))
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Empty(t, f.events.reset())
}

func TestService_Mark_rejectionNamesTheStudent(t *testing.T) {
	f := setup(t)
	stranger := core.NewID()
	_, err := f.svc.Mark(context.Background(), attendance.MarkRequest{
		ClassID: f.class.ID,
		Date:    core.MustParseDate("2024-03-01"),
		Entries: []attendance.Entry{{StudentID: stranger, Status: "PRESENT"}},
	})
	require.Error(t, err)
	verr := errors.Cause(err).(*core.ValidationError)
	require.Len(t, verr.Fields, 1)
	assert.Contains(t, verr.Fields[0].Error, stranger)
}

func TestService_Mark_inactiveStudent(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	a := f.students[0]

	_, err := f.rosterSvc.Deactivate(ctx, a.ID)
	require.NoError(t, err)

	_, err = f.svc.Mark(ctx, attendance.MarkRequest{
		ClassID: f.class.ID,
		Date:    core.MustParseDate("2024-03-01"),
		Entries: []attendance.Entry{entry(a, attendance.StatusPresent)},
	})
	assert.True(t, core.IsValidationError(err), "got %v", err)

	rows, err := f.svc.ClassDay(ctx, f.class.ID, core.MustParseDate("2024-03-01"))
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestService_ClassDay_projectionCompleteness(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	day := core.MustParseDate("2024-03-05")

	for marked := 0; marked <= len(f.students); marked++ {
		if marked > 0 {
			f.mark(t, day.String(), entry(f.students[marked-1], attendance.StatusPresent))
		}
		rows, err := f.svc.ClassDay(ctx, f.class.ID, day)
		require.NoError(t, err)
		require.Len(t, rows, len(f.students))

		n := 0
		for i, row := range rows {
			assert.Equal(t, f.students[i].ID, row.Student.ID, "ordered by roll number")
			if row.Status != nil {
				n++
			}
		}
		assert.Equal(t, marked, n)
	}

	_, err := f.svc.ClassDay(ctx, core.NewID(), day)
	assert.True(t, core.IsNotFound(err))
}

func TestService_transferKeepsHistory(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	a := f.students[0]
	day := core.MustParseDate("2024-03-01")
	f.mark(t, day.String(), entry(a, attendance.StatusPresent))

	newClass := testutil.CreateClass(t, f.rstrRepo, "Grade 3")
	_, err := f.rosterSvc.Transfer(ctx, a.ID, newClass.ID)
	require.NoError(t, err)

	oldSum, err := f.svc.SummarizeClass(ctx, f.class.ID, day, day)
	require.NoError(t, err)
	assert.Equal(t, 1, oldSum.PerDay[0].Present)
	assert.Equal(t, 2, oldSum.TotalStudents)
	assert.Equal(t, 1, oldSum.PerDay[0].Unmarked)

	newSum, err := f.svc.SummarizeClass(ctx, newClass.ID, day, day)
	require.NoError(t, err)
	assert.Zero(t, newSum.PerDay[0].Present)
	assert.Equal(t, 1, newSum.PerDay[0].Unmarked)

	// re-marking from the new class moves the record along
	_, err = f.svc.Mark(ctx, attendance.MarkRequest{
		ClassID: newClass.ID,
		Date:    day,
		Entries: []attendance.Entry{entry(a, attendance.StatusPresent)},
	})
	require.NoError(t, err)

	oldSum, err = f.svc.SummarizeClass(ctx, f.class.ID, day, day)
	require.NoError(t, err)
	assert.Zero(t, oldSum.PerDay[0].Present)
	newSum, err = f.svc.SummarizeClass(ctx, newClass.ID, day, day)
	require.NoError(t, err)
	assert.Equal(t, 1, newSum.PerDay[0].Present)
}

func TestService_rangeRejection(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	start, end := core.MustParseDate("2024-03-10"), core.MustParseDate("2024-03-01")

	_, err := f.svc.SummarizeStudent(ctx, f.students[0].ID, start, end)
	assert.True(t, core.IsValidationError(err), "student: %v", err)
	_, err = f.svc.SummarizeClass(ctx, f.class.ID, start, end)
	assert.True(t, core.IsValidationError(err), "class: %v", err)
	_, err = f.svc.SummarizeSchool(ctx, start, end)
	assert.True(t, core.IsValidationError(err), "school: %v", err)
	_, err = f.svc.History(ctx, f.students[0].ID, start, end)
	assert.True(t, core.IsValidationError(err), "history: %v", err)

	_, err = f.svc.SummarizeSchool(ctx, end, end.AddDays(400))
	assert.True(t, core.IsValidationError(err), "too long: %v", err)
	_, err = f.svc.SummarizeSchool(ctx, core.Date{}, end)
	assert.True(t, core.IsValidationError(err), "missing start: %v", err)
}

func TestService_SummarizeSchool(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	day := core.MustParseDate("2024-03-01")
	f.mark(t, day.String(), entry(f.students[0], attendance.StatusPresent), entry(f.students[1], attendance.StatusAbsent))

	other := testutil.CreateClass(t, f.rstrRepo, "Grade 2")
	testutil.CreateStudent(t, f.rstrRepo, other.ID, "Dan", "004")

	sum, err := f.svc.SummarizeSchool(ctx, day, day.AddDays(1))
	require.NoError(t, err)
	require.Len(t, sum.ClassSummaries, 2)
	assert.Equal(t, "Grade 1", sum.ClassSummaries[0].ClassName)
	assert.Equal(t, "Grade 2", sum.ClassSummaries[1].ClassName)
	assert.Equal(t, attendance.SchoolStats{TotalClasses: 2, TotalStudents: 4, OverallAttendanceRate: 50}, sum.OverallStats)

	for _, cs := range sum.ClassSummaries {
		assert.GreaterOrEqual(t, cs.Overall.AttendanceRate, 0.0)
		assert.LessOrEqual(t, cs.Overall.AttendanceRate, 100.0)
	}
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	a := f.students[0]
	day := core.MustParseDate("2024-03-01")
	f.mark(t, day.String(), entry(a, attendance.StatusPresent))

	history, err := f.svc.History(ctx, a.ID, day, day)
	require.NoError(t, err)
	require.Len(t, history, 1)

	require.NoError(t, f.svc.Delete(ctx, history[0].ID))
	assert.True(t, core.IsNotFound(f.svc.Delete(ctx, history[0].ID)))
	assert.True(t, core.IsNotFound(f.svc.Delete(ctx, "nope")))

	// the day can be marked again from scratch
	f.events.reset()
	f.mark(t, day.String(), entry(a, attendance.StatusPresent))
	changes := f.events.reset()
	require.Len(t, changes, 1)
	assert.Nil(t, changes[0].OldStatus)
}

func TestService_publisherFailureDoesNotFailMark(t *testing.T) {
	f := setup(t)
	f.events.err = errors.New("broker down")
	res := f.mark(t, "2024-03-01", entry(f.students[0], attendance.StatusPresent))
	assert.Equal(t, 1, res.Updated)
	assert.Len(t, res.Changes, 1)
}

func TestService_Mark_concurrent(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	day := core.MustParseDate("2024-03-01")
	statuses := attendance.Statuses

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var entries []attendance.Entry
			for _, s := range f.students {
				entries = append(entries, entry(s, statuses[i%len(statuses)]))
			}
			_, err := f.svc.Mark(ctx, attendance.MarkRequest{ClassID: f.class.ID, Date: day, Entries: entries})
			assert.NoError(t, err, fmt.Sprintf("goroutine %d", i))
		}(i)
	}
	wg.Wait()

	rows, err := f.svc.ClassDay(ctx, f.class.ID, day)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, s := range f.students {
		history, err := f.svc.History(ctx, s.ID, day, day)
		require.NoError(t, err)
		assert.Len(t, history, 1)
	}
}
