package echoapi_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/notification"
)

const markDate = "2024-03-04"

func markBody(date string, entries ...attendance.Entry) map[string]interface{} {
	return map[string]interface{}{"date": date, "entries": entries}
}

func (f *fixture) classPath(suffix string) string {
	return fmt.Sprintf("/v1/classes/%s%s", f.class.ID, suffix)
}

func (f *fixture) markAll(t *testing.T, alice, bob, carol attendance.Status) {
	rec := f.do(t, http.MethodPost, f.classPath("/attendance"), f.token(t, f.teacher), markBody(markDate,
		attendance.Entry{StudentID: f.students[0].ID, Status: string(alice)},
		attendance.Entry{StudentID: f.students[1].ID, Status: string(bob)},
		attendance.Entry{StudentID: f.students[2].ID, Status: string(carol), Remarks: "sick"},
	))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"updated":3}`, rec.Body.String())
}

func TestAttendanceApi_Mark(t *testing.T) {
	f := setup(t)
	alice := f.students[0].ID

	f.run(t, []httpTest{
		{
			name:     "missing token",
			method:   http.MethodPost,
			path:     f.classPath("/attendance"),
			body:     markBody(markDate, attendance.Entry{StudentID: alice}),
			wantCode: http.StatusUnauthorized,
			wantData: errMissingToken,
		},
		{
			name:     "parent cannot mark",
			method:   http.MethodPost,
			path:     f.classPath("/attendance"),
			body:     markBody(markDate, attendance.Entry{StudentID: alice, Status: "PRESENT"}),
			token:    f.token(t, f.parent),
			wantCode: http.StatusForbidden,
			wantData: httpErr{Error: "permission denied"},
		},
		{
			name:     "user without role",
			method:   http.MethodPost,
			path:     f.classPath("/attendance"),
			body:     markBody(markDate, attendance.Entry{StudentID: alice, Status: "PRESENT"}),
			token:    f.token(t, f.outsider),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "unknown class",
			method:   http.MethodPost,
			path:     "/v1/classes/not-a-class/attendance",
			body:     markBody(markDate, attendance.Entry{StudentID: alice, Status: "PRESENT"}),
			token:    f.token(t, f.teacher),
			wantCode: http.StatusNotFound,
			wantData: httpErr{Error: "class not found"},
		},
		{
			name:     "invalid status",
			method:   http.MethodPost,
			path:     f.classPath("/attendance"),
			body:     markBody(markDate, attendance.Entry{StudentID: alice, Status: "SLEEPING"}),
			token:    f.token(t, f.teacher),
			wantCode: http.StatusBadRequest,
			wantData: map[string]string{
				"entries.0.status": `invalid status "SLEEPING", expected one of PRESENT, ABSENT, LATE, EXCUSED`,
			},
		},
		{
			name:     "no entries",
			method:   http.MethodPost,
			path:     f.classPath("/attendance"),
			body:     markBody(markDate),
			token:    f.token(t, f.teacher),
			wantCode: http.StatusBadRequest,
			wantData: map[string]string{"entries": "at least one entry is required"},
		},
		{
			name:     "future date",
			method:   http.MethodPost,
			path:     f.classPath("/attendance"),
			body:     markBody("2999-01-01", attendance.Entry{StudentID: alice, Status: "PRESENT"}),
			token:    f.token(t, f.teacher),
			wantCode: http.StatusBadRequest,
			wantData: map[string]string{"date": "date cannot be in the future"},
		},
	})

	t.Run("nothing written after a rejected batch", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, f.classPath("/attendance?date="+markDate), f.token(t, f.teacher), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var rows []attendance.ClassDayRow
		decode(t, rec, &rows)
		require.Len(t, rows, 3)
		for _, row := range rows {
			assert.Nil(t, row.Status)
			assert.Nil(t, row.RecordID)
		}
	})
}

func TestAttendanceApi_MarkAndSummarize(t *testing.T) {
	f := setup(t)
	teacherToken := f.token(t, f.teacher)
	summaryPath := f.classPath(fmt.Sprintf("/summary?start_date=%s&end_date=%s", markDate, markDate))

	f.markAll(t, attendance.StatusPresent, attendance.StatusLate, attendance.StatusAbsent)

	classSummary := func(t *testing.T) attendance.ClassSummary {
		rec := f.do(t, http.MethodGet, summaryPath, teacherToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var sum attendance.ClassSummary
		decode(t, rec, &sum)
		return sum
	}

	sum := classSummary(t)
	assert.Equal(t, 3, sum.TotalStudents)
	assert.Equal(t, 3, sum.Overall.MarkedStudentDays)
	assert.Equal(t, 2, sum.Overall.AttendedStudentDays)
	assert.Equal(t, 66.7, sum.Overall.AttendanceRate)
	require.Len(t, sum.PerDay, 1)
	assert.Equal(t, 0, sum.PerDay[0].Unmarked)

	// re-marking overwrites in place
	f.markAll(t, attendance.StatusPresent, attendance.StatusAbsent, attendance.StatusAbsent)
	sum = classSummary(t)
	assert.Equal(t, 3, sum.Overall.MarkedStudentDays)
	assert.Equal(t, 33.3, sum.Overall.AttendanceRate)

	t.Run("class day", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, f.classPath("/attendance?date="+markDate), teacherToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var rows []attendance.ClassDayRow
		decode(t, rec, &rows)
		require.Len(t, rows, 3)
		statuses := make(map[string]attendance.Status, len(rows))
		for _, row := range rows {
			require.NotNil(t, row.Status)
			statuses[row.Student.ID] = *row.Status
		}
		assert.Equal(t, attendance.StatusPresent, statuses[f.students[0].ID])
		assert.Equal(t, attendance.StatusAbsent, statuses[f.students[1].ID])
	})

	t.Run("invalid class day date", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, f.classPath("/attendance?date=yesterday"), teacherToken, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("home", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestReportApi(t *testing.T) {
	f := setup(t)
	f.markAll(t, attendance.StatusPresent, attendance.StatusLate, attendance.StatusAbsent)

	alice, bob := f.students[0].ID, f.students[1].ID
	rng := fmt.Sprintf("?start_date=%s&end_date=%s", markDate, markDate)
	parentToken := f.token(t, f.parent)

	f.run(t, []httpTest{
		{
			name:  "parent reads own child",
			path:  "/v1/students/" + alice + "/summary" + rng,
			token: parentToken,
			wantData: attendance.StudentSummary{
				StudentID:            alice,
				StartDate:            core.MustParseDate(markDate),
				EndDate:              core.MustParseDate(markDate),
				TotalDays:            1,
				PresentDays:          1,
				AttendancePercentage: 100,
			},
		},
		{
			name:     "parent cannot read another child",
			path:     "/v1/students/" + bob + "/summary" + rng,
			token:    parentToken,
			wantCode: http.StatusNotFound,
			wantData: httpErr{Error: "not found"},
		},
		{
			name:     "parent cannot read class summary",
			path:     f.classPath("/summary" + rng),
			token:    parentToken,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "start after end",
			path:     fmt.Sprintf("/v1/students/%s/summary?start_date=2024-03-05&end_date=2024-03-04", alice),
			token:    parentToken,
			wantCode: http.StatusBadRequest,
			wantData: map[string]string{"start_date": "start_date cannot be after end_date"},
		},
		{
			name:     "missing range",
			path:     "/v1/reports/school",
			token:    f.token(t, f.teacher),
			wantCode: http.StatusBadRequest,
			wantData: map[string]string{"start_date": "date is required", "end_date": "date is required"},
		},
		{
			name:     "range too long",
			path:     "/v1/reports/school?start_date=2023-01-01&end_date=2024-03-04",
			token:    f.token(t, f.teacher),
			wantCode: http.StatusBadRequest,
			wantData: map[string]string{"end_date": "date range cannot exceed 366 days"},
		},
	})

	t.Run("school report", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/v1/reports/school"+rng, f.token(t, f.admin), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var sum attendance.SchoolSummary
		decode(t, rec, &sum)
		assert.Equal(t, 1, sum.OverallStats.TotalClasses)
		assert.Equal(t, 3, sum.OverallStats.TotalStudents)
		assert.Equal(t, 66.7, sum.OverallStats.OverallAttendanceRate)
		require.Len(t, sum.ClassSummaries, 1)
		assert.Equal(t, "Grade 1", sum.ClassSummaries[0].ClassName)
	})

	t.Run("history", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/v1/students/"+alice+"/attendance"+rng, parentToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var records []attendance.Record
		decode(t, rec, &records)
		require.Len(t, records, 1)
		assert.Equal(t, attendance.StatusPresent, records[0].Status)
		assert.Equal(t, f.teacher.ID, records[0].MarkedBy)
	})
}

func TestAttendanceApi_RetrieveAndDelete(t *testing.T) {
	f := setup(t)
	f.markAll(t, attendance.StatusPresent, attendance.StatusLate, attendance.StatusAbsent)

	rng := fmt.Sprintf("?start_date=%s&end_date=%s", markDate, markDate)
	history := func(t *testing.T, studentID string) []attendance.Record {
		rec := f.do(t, http.MethodGet, "/v1/students/"+studentID+"/attendance"+rng, f.token(t, f.admin), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var records []attendance.Record
		decode(t, rec, &records)
		return records
	}
	aliceRec := history(t, f.students[0].ID)[0]
	bobRec := history(t, f.students[1].ID)[0]

	f.run(t, []httpTest{
		{
			name:  "parent retrieves own child's record",
			path:  "/v1/attendance/" + aliceRec.ID,
			token: f.token(t, f.parent),
		},
		{
			name:     "parent cannot retrieve another child's record",
			path:     "/v1/attendance/" + bobRec.ID,
			token:    f.token(t, f.parent),
			wantCode: http.StatusNotFound,
		},
		{
			name:     "teacher cannot delete",
			method:   http.MethodDelete,
			path:     "/v1/attendance/" + bobRec.ID,
			token:    f.token(t, f.teacher),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "admin deletes",
			method:   http.MethodDelete,
			path:     "/v1/attendance/" + bobRec.ID,
			token:    f.token(t, f.admin),
			wantCode: http.StatusNoContent,
		},
		{
			name:     "already deleted",
			method:   http.MethodDelete,
			path:     "/v1/attendance/" + bobRec.ID,
			token:    f.token(t, f.admin),
			wantCode: http.StatusNotFound,
			wantData: httpErr{Error: "attendance record not found"},
		},
	})

	assert.Empty(t, history(t, f.students[1].ID))
}

func TestNotificationApi(t *testing.T) {
	f := setup(t)
	f.markAll(t, attendance.StatusAbsent, attendance.StatusPresent, attendance.StatusPresent)

	parentToken := f.token(t, f.parent)
	list := func(t *testing.T, query string) []notification.Notification {
		rec := f.do(t, http.MethodGet, "/v1/notifications"+query, parentToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var notifs []notification.Notification
		decode(t, rec, &notifs)
		return notifs
	}

	notifs := list(t, "")
	require.Len(t, notifs, 1)
	n := notifs[0]
	assert.Equal(t, notification.KindAttendanceChanged, n.Kind)
	assert.Equal(t, "Alice was marked ABSENT", n.Title)
	require.NotNil(t, n.StudentID)
	assert.Equal(t, f.students[0].ID, *n.StudentID)
	assert.False(t, n.IsRead())

	// same status again: no new notification
	f.markAll(t, attendance.StatusAbsent, attendance.StatusPresent, attendance.StatusPresent)
	assert.Len(t, list(t, ""), 1)

	f.run(t, []httpTest{
		{
			name:     "someone else's notification",
			method:   http.MethodPost,
			path:     "/v1/notifications/" + n.ID + "/read",
			token:    f.token(t, f.teacher),
			wantCode: http.StatusNotFound,
		},
		{
			name:   "mark read",
			method: http.MethodPost,
			path:   "/v1/notifications/" + n.ID + "/read",
			token:  parentToken,
		},
	})

	assert.Empty(t, list(t, "?unread=true"))
	assert.Len(t, list(t, ""), 1)
	assert.Empty(t, f.doList(t, f.token(t, f.teacher)))
}

func (f *fixture) doList(t *testing.T, token string) []notification.Notification {
	rec := f.do(t, http.MethodGet, "/v1/notifications", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var notifs []notification.Notification
	decode(t, rec, &notifs)
	return notifs
}
