package user

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spist/campus/core"
)

type testLogger struct{}

func (testLogger) Debug(string, ...interface{}) {}
func (testLogger) Info(string, ...interface{})  {}
func (testLogger) Warn(string, ...interface{})  {}
func (testLogger) Error(string, ...interface{}) {}
func (testLogger) Fatal(string, ...interface{}) {}

func newValidator(t *testing.T) *validator.Validate {
	t.Helper()
	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	LoadCommonPasswords(testLogger{})
	return validate
}

func TestUserRoles(t *testing.T) {
	admin := User{Roles: []string{RoleAdminOwner}}
	teacher := User{Roles: []string{RoleTeacher}}
	student := User{Roles: []string{RoleStudent}}

	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.IsStaff())
	assert.False(t, admin.IsStudent())
	assert.True(t, teacher.IsTeacher())
	assert.True(t, teacher.IsStaff())
	assert.True(t, student.IsStudent())
	assert.False(t, student.IsStaff())

	assert.Equal(t, 30, MaxRolePriority([]string{RoleStudent, RoleAdminOwner}))
	assert.Equal(t, 0, MaxRolePriority(nil))
}

func TestUserNames(t *testing.T) {
	assert.Equal(t, "Jane Doe", User{Name: "Jane Doe"}.FullName())
	assert.Equal(t, "Jane Doe", User{FirstName: "Jane", LastName: "Doe"}.FullName())
	assert.Equal(t, "jdoe", User{Username: "jdoe"}.FullName())

	first, last := User{Name: "Mary Jane Doe"}.SplitName()
	assert.Equal(t, "Mary Jane", first)
	assert.Equal(t, "Doe", last)

	assert.Equal(t, "Graduate", YearLevelLabel(YearGraduate))
	assert.Equal(t, "2nd Year", StudentProfile{YearLevel: YearSecond}.YearLevelLabel())
}

func TestUserPassword(t *testing.T) {
	var usr User
	require.NoError(t, usr.SetPassword("Secret-123"))
	assert.NoError(t, usr.CheckPassword("Secret-123"))
	assert.Error(t, usr.CheckPassword("secret-123"))
}

func TestPasswordPolicy(t *testing.T) {
	_ = newValidator(t)

	tests := []struct {
		name  string
		pwd   string
		uname string
		want  string
	}{
		{name: "too short", pwd: "Ab1!", want: pwdMinLenTag},
		{name: "whitespace", pwd: "Abc 123!x", want: pwdNoSpaceTag},
		{name: "all numeric", pwd: "1234567890", want: pwdNotAllNumTag},
		{name: "no special char", pwd: "Abcdefg123", want: pwdComplexityTag},
		{name: "no upper case", pwd: "abcdefg1!", want: pwdComplexityTag},
		{name: "similar to username", pwd: "Johndoe1!", uname: "johndoe1", want: pwdAttrSimTag},
		{name: "common", pwd: "P@ssw0rd", want: pwdNoCommonTag},
		{name: "valid", pwd: "Gr8-Lakes-Fall"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checkPassword(tt.pwd, "", tt.uname, ""))
		})
	}
}

func TestNewUserValidation(t *testing.T) {
	validate := newValidator(t)

	tests := []struct {
		name    string
		data    NewUser
		wantErr bool
	}{
		{
			name:    "username or email required",
			data:    NewUser{Name: "Jane", Password: "Gr8-Lakes-Fall", PasswordConfirm: "Gr8-Lakes-Fall"},
			wantErr: true,
		},
		{
			name:    "passwords mismatch",
			data:    NewUser{Name: "Jane", Username: "jane", Password: "Gr8-Lakes-Fall", PasswordConfirm: "Gr8-Lakes-Falls"},
			wantErr: true,
		},
		{
			name: "invalid role",
			data: NewUser{
				Name: "Jane", Username: "jane", Password: "Gr8-Lakes-Fall", PasswordConfirm: "Gr8-Lakes-Fall",
				Roles: []string{"janitor"},
			},
			wantErr: true,
		},
		{
			name: "valid",
			data: NewUser{
				FirstName: " Jane ", LastName: "Doe", Email: " Jane@School.EDU ",
				Password: "Gr8-Lakes-Fall", PasswordConfirm: "Gr8-Lakes-Fall", Roles: []string{RoleTeacher},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.data.clean()
			err := validate.Struct(tt.data)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, "Jane Doe", tt.data.Name)
			assert.Equal(t, "jane@school.edu", tt.data.Email)
		})
	}
}

func TestQueryFilter(t *testing.T) {
	qf := &QueryFilter{Search: "  doe "}
	qf.Clean()
	assert.Equal(t, "doe", qf.Search)
	assert.False(t, qf.IsEmpty())
	assert.True(t, new(QueryFilter).IsEmpty())
}

func TestUpdateProfileAdminOnly(t *testing.T) {
	lvl := 2
	prog := "BSCS"
	assert.True(t, UpdateProfile{YearLevel: &lvl}.AdminOnly())
	assert.False(t, UpdateProfile{Program: &prog}.AdminOnly())
}
