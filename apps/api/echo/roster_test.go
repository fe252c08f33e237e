package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core/roster"
)

func TestRosterApi_Classes(t *testing.T) {
	f := setup(t)
	adminToken := f.token(t, f.admin)

	f.run(t, []httpTest{
		{
			name:     "teacher cannot create",
			method:   http.MethodPost,
			path:     "/v1/classes",
			body:     roster.NewClass{Name: "Grade 2", Grade: "2"},
			token:    f.token(t, f.teacher),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "name required",
			method:   http.MethodPost,
			path:     "/v1/classes",
			body:     roster.NewClass{Grade: "2"},
			token:    adminToken,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "parent cannot list",
			path:     "/v1/classes",
			token:    f.token(t, f.parent),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "unknown class",
			path:     "/v1/classes/c6b7b0c4-0000-4000-8000-000000000000",
			token:    adminToken,
			wantCode: http.StatusNotFound,
			wantData: httpErr{Error: "class not found"},
		},
	})

	rec := f.do(t, http.MethodPost, "/v1/classes", adminToken, roster.NewClass{Name: "Grade 2", Grade: "2", Section: "B"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var class roster.Class
	decode(t, rec, &class)
	assert.Equal(t, "Grade 2", class.Name)
	assert.Equal(t, f.conf.SchoolID, class.SchoolID)

	rec = f.do(t, http.MethodGet, "/v1/classes", f.token(t, f.teacher), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var classes []roster.Class
	decode(t, rec, &classes)
	assert.Len(t, classes, 2)

	rec = f.do(t, http.MethodGet, f.classPath("/students"), f.token(t, f.teacher), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var students []roster.Student
	decode(t, rec, &students)
	assert.Len(t, students, 3)
}

func TestRosterApi_Students(t *testing.T) {
	f := setup(t)
	adminToken := f.token(t, f.admin)

	t.Run("duplicate roll number", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/students", adminToken, roster.NewStudent{
			Name: "Dave", RollNumber: "001", ClassID: f.class.ID,
		})
		assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
		var body map[string]string
		decode(t, rec, &body)
		assert.Contains(t, body, "roll_number")
	})

	t.Run("parent sees own children only", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/v1/students", f.token(t, f.parent), nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var students []roster.Student
		decode(t, rec, &students)
		require.Len(t, students, 1)
		assert.Equal(t, "Alice", students[0].Name)
	})

	t.Run("parent cannot read another child", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/v1/students/"+f.students[1].ID, f.token(t, f.parent), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	})

	t.Run("deactivated students leave the class list", func(t *testing.T) {
		rec := f.do(t, http.MethodDelete, "/v1/students/"+f.students[2].ID, adminToken, nil)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		rec = f.do(t, http.MethodGet, f.classPath("/students"), adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var students []roster.Student
		decode(t, rec, &students)
		assert.Len(t, students, 2)
	})

	t.Run("transfer", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/v1/classes", adminToken, roster.NewClass{Name: "Grade 2", Grade: "2"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var class roster.Class
		decode(t, rec, &class)

		rec = f.do(t, http.MethodPost, "/v1/students/"+f.students[1].ID+"/transfer", adminToken,
			roster.TransferStudent{ClassID: class.ID})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var student roster.Student
		decode(t, rec, &student)
		assert.Equal(t, class.ID, student.ClassID)
	})
}

func TestRosterApi_Settings(t *testing.T) {
	f := setup(t)

	rec := f.do(t, http.MethodGet, "/v1/settings", f.token(t, f.teacher), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var settings roster.Settings
	decode(t, rec, &settings)
	assert.Equal(t, "17:00", settings.SummaryNotificationTime)
	assert.True(t, settings.NotifyParents)

	settings.SummaryNotificationTime = "18:30"
	settings.NotifyParents = false

	f.run(t, []httpTest{
		{
			name:     "teacher cannot update",
			method:   http.MethodPut,
			path:     "/v1/settings",
			body:     settings,
			token:    f.token(t, f.teacher),
			wantCode: http.StatusForbidden,
		},
		{
			name:   "bad time",
			method: http.MethodPut,
			path:   "/v1/settings",
			body: roster.Settings{
				AutoMarkAbsentAfter:     "25:00",
				SummaryNotificationTime: "18:30",
			},
			token:    f.token(t, f.admin),
			wantCode: http.StatusBadRequest,
		},
		{
			name:   "admin updates",
			method: http.MethodPut,
			path:   "/v1/settings",
			body:   settings,
			token:  f.token(t, f.admin),
		},
	})

	rec = f.do(t, http.MethodGet, "/v1/settings", f.token(t, f.admin), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &settings)
	assert.Equal(t, "18:30", settings.SummaryNotificationTime)
	assert.False(t, settings.NotifyParents)
}
