package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/notification"
	"github.com/trezcool/mahudhurio/core/roster"
	"github.com/trezcool/mahudhurio/core/user"
	emailsvc "github.com/trezcool/mahudhurio/services/email"
	metricsvc "github.com/trezcool/mahudhurio/services/metrics"
	"github.com/trezcool/mahudhurio/storage/database/inmem"
	"github.com/trezcool/mahudhurio/testutil"
)

const testPassword = "Tr0ub4dor&3-horse"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     interface{}
	token    string
	wantCode int
	wantData interface{} // compared as JSON when set
}

type fixture struct {
	srv     *echoapi.Server
	conf    *core.Config
	usrRepo user.Repository
	mailSvc *emailsvc.ConsoleService
	metrics *metricsvc.Metrics

	admin, teacher, parent, outsider user.User
	class                            roster.Class
	students                         []roster.Student // Alice (child of parent), Bob, Carol
}

func setup(t *testing.T) *fixture {
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	rstrRepo := inmemdb.NewRosterRepository(db)
	conf := testutil.NewConfig()
	logger := testutil.NopLogger{}
	core.ParseEmailTemplates(conf, logger)

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)

	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	rosterSvc := roster.NewService(rstrRepo, usrSvc, conf)
	notifSvc := notification.NewService(inmemdb.NewNotificationRepository(db), rosterSvc, usrSvc, mailSvc, logger)
	metrics := metricsvc.New()
	attSvc := attendance.NewService(
		inmemdb.NewAttendanceRepository(db), rosterSvc, metrics.Publisher(notifSvc), logger, conf,
	)

	f := &fixture{
		conf:    conf,
		usrRepo: usrRepo,
		mailSvc: mailSvc,
		metrics: metrics,
		srv: echoapi.NewServer(echoapi.ServerDeps{
			Conf:            conf,
			Logger:          logger,
			Validate:        validate,
			Translator:      translator,
			UserSvc:         usrSvc,
			RosterSvc:       rosterSvc,
			AttendanceSvc:   attSvc,
			NotificationSvc: notifSvc,
			Metrics:         metrics,
		}),
	}

	f.admin = testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@mahudhurio.io", testPassword, []string{user.RoleAdmin}, true)
	f.teacher = testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@mahudhurio.io", testPassword, []string{user.RoleTeacher}, true)
	f.parent = testutil.CreateUser(t, usrRepo, "Parent", "parent", "parent@mahudhurio.io", testPassword, []string{user.RoleParent}, true)
	f.outsider = testutil.CreateUser(t, usrRepo, "Nobody", "nobody", "nobody@mahudhurio.io", testPassword, nil, true)

	f.class = testutil.CreateClass(t, rstrRepo, "Grade 1", f.teacher.ID)
	f.students = []roster.Student{
		testutil.CreateStudent(t, rstrRepo, f.class.ID, "Alice", "001", f.parent.ID),
		testutil.CreateStudent(t, rstrRepo, f.class.ID, "Bob", "002"),
		testutil.CreateStudent(t, rstrRepo, f.class.ID, "Carol", "003"),
	}
	return f
}

func (f *fixture) token(t *testing.T, usr user.User) string {
	token, err := echoapi.GenerateToken(f.conf, echoapi.GetUserClaims(f.conf, usr))
	require.NoError(t, err)
	return token
}

func (f *fixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := f.do(t, method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	assert.Equal(t, wantCode, rec.Code, rec.Body.String())
	if tt.wantData != nil {
		assert.JSONEq(t, string(marshalObj(t, tt.wantData)), rec.Body.String())
	}
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), rec.Body.String())
}
