package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/mahudhurio/apps/api/echo"
	"github.com/trezcool/mahudhurio/core/user"
)

func TestUserApi_Login(t *testing.T) {
	f := setup(t)

	f.run(t, []httpTest{
		{
			name:     "missing password",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     echoapi.LoginRequest{Username: "teacher"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "wrong password",
			method:   http.MethodPost,
			path:     "/v1/users/login",
			body:     echoapi.LoginRequest{Username: "teacher", Password: "nope"},
			wantCode: http.StatusBadRequest,
			wantData: httpErr{Error: "authentication failed"},
		},
		{
			name:     "me without token",
			path:     "/v1/users/me",
			wantCode: http.StatusUnauthorized,
			wantData: errMissingToken,
		},
	})

	rec := f.do(t, http.MethodPost, "/v1/users/login", "", echoapi.LoginRequest{Username: "teacher", Password: testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login echoapi.LoginResponse
	decode(t, rec, &login)
	require.NotEmpty(t, login.Token)

	rec = f.do(t, http.MethodGet, "/v1/users/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var me user.User
	decode(t, rec, &me)
	assert.Equal(t, f.teacher.ID, me.ID)
	assert.True(t, me.IsTeacher())
}

func TestUserApi_DeactivatedAccount(t *testing.T) {
	f := setup(t)
	token := f.token(t, f.teacher)

	f.teacher.SetActive(false)
	_, err := f.usrRepo.UpdateUser(context.Background(), f.teacher)
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, f.classPath("/attendance?date="+markDate), token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"error":"account deactivated"}`, rec.Body.String())
}
