package user

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func Test_checkPassword(t *testing.T) {
	LoadCommonPasswords(nopLogger{})

	tests := []struct {
		name    string
		pwd     string
		usrName string
		uname   string
		email   string
		want    string
	}{
		{name: "too short", pwd: "Ab1!", want: pwdMinLenTag},
		{name: "whitespace", pwd: "Abcd 1234!", want: pwdNoSpaceTag},
		{name: "all numeric", pwd: "1234567890", want: pwdNotAllNumTag},
		{name: "no special", pwd: "Abcdefg123", want: pwdComplexityTag},
		{name: "no upper", pwd: "abcdefg1!", want: pwdComplexityTag},
		{name: "similar to username", pwd: "Baraka2024!", uname: "baraka2024", want: pwdAttrSimTag},
		{name: "common", pwd: "Password1!", want: pwdNoCommonTag},
		{name: "valid", pwd: "Kx7!mq2Lzp", usrName: "Baraka", uname: "baraka", email: "baraka@school.test"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checkPassword(tt.pwd, tt.usrName, tt.uname, tt.email))
		})
	}
}

func Test_userStructValidation(t *testing.T) {
	LoadCommonPasswords(nopLogger{})
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	InitValidators(validate, translator)

	nu := NewUser{Name: "Mzazi", Password: "Kx7!mq2Lzp", PasswordConfirm: "Kx7!mq2Lzp", Roles: []string{RoleParent}}
	err := validate.Struct(nu)
	require.Error(t, err, "username or email is required")

	fields := make(map[string]string)
	for _, fe := range err.(validator.ValidationErrors) {
		fields[fe.Field()] = fe.Translate(translator)
	}
	assert.Equal(t, map[string]string{
		"username": usernameOrEmailText,
		"email":    usernameOrEmailText,
	}, fields)

	nu.Email = "mzazi@school.test"
	assert.NoError(t, validate.Struct(nu))

	nu.Roles = []string{"student:"}
	assert.Error(t, validate.Struct(nu), "unknown role")

	rp := ResetUserPassword{Token: "t", UID: "u", Password: "12345678", PasswordConfirm: "12345678"}
	assert.Error(t, rp.Validate(validate))
}
