package tests

import (
	"bytes"
	"context"
	"net/http"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spist/campus/apps/api/echo"
	"github.com/spist/campus/core"
	"github.com/spist/campus/core/user"
	"github.com/spist/campus/services/email"
	"github.com/spist/campus/tests"
)

func Test_userApi_login(t *testing.T) {
	e := setup(t)

	testutil.CreateUser(t, e.usrRepo, "Hero", "hero", "hero@spist.edu", "Secret-123", []string{user.RoleStudent}, true)
	testutil.CreateUser(t, e.usrRepo, "N Dog", "ndog", "ndog@spist.edu", "Secret-123", []string{user.RoleStudent}, false)

	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown user", body: marchallObj(t, echoapi.LoginRequest{Username: "lol", Password: "Secret-123"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", body: marchallObj(t, echoapi.LoginRequest{Username: "hero", Password: "secret-123"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "inactive user", body: marchallObj(t, echoapi.LoginRequest{Username: "ndog", Password: "Secret-123"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "username", body: marchallObj(t, echoapi.LoginRequest{Username: "HERO ", Password: "Secret-123"}), wantCode: http.StatusOK},
		{name: "email", body: marchallObj(t, echoapi.LoginRequest{Username: "hero@spist.edu", Password: "Secret-123"}), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodPost, "/v1/users/login", "", tt.body)
			if tt.wantCode != http.StatusOK {
				checkCodeAndData(t, tt, rec)
				return
			}

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var resp echoapi.LoginResponse
			unmarshal(t, rec, &resp)
			assert.NotEmpty(t, resp.Token)
		})
	}
}

func Test_userApi_userQuery(t *testing.T) {
	e := setup(t)

	path := func(search, ordering string, isActive *bool, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		if isActive != nil {
			v.Add("is_active", strconv.FormatBool(*isActive))
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/v1/users?" + v.Encode()
	}

	now := time.Now()
	tm := func(h int) time.Time { return now.Add(time.Duration(h) * time.Hour) }

	usr1 := testutil.CreateUser(t, e.usrRepo, "User", "awe", "awe@spist.edu", "", nil, true, tm(1))
	usr2 := testutil.CreateUser(t, e.usrRepo, "King", "user02", "king@spist.edu", "", nil, true, tm(-3))
	student := testutil.CreateUser(t, e.usrRepo, "Hero", "hero", "user3@spist.edu", "", []string{user.RoleStudent}, true, tm(-2))
	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "admin@spist.edu", "", []string{user.RoleAdmin}, true, tm(2))
	principal := testutil.CreateUser(t, e.usrRepo, "Principal", "princip", "princip@spist.edu", "", []string{user.RoleAdminPrincipal}, true, tm(-1))
	teacher := testutil.CreateUser(t, e.usrRepo, "Teacher", "teacher", "teacher@spist.edu", "", []string{user.RoleTeacher}, true, tm(3))
	naughty := testutil.CreateUser(t, e.usrRepo, "N Dog", "ndog", "ndog@spist.edu", "", []string{user.RoleStudent}, false, tm(0))

	adminToken := getToken(t, admin)
	empty := marchallList(t)
	bPtr := core.BoolPtr

	tests := []httpTest{
		{name: "Auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/v1/users", token: getToken(t, student), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Get all", path: "/v1/users", token: adminToken,
			wantData: marchallList(t, teacher, admin, usr1, naughty, principal, student, usr2),
		},
		// filtering
		{name: "search (unknown)", path: path("lol", "", nil), token: adminToken, wantData: empty},
		{name: "search=USE", path: path("USE", "", nil), token: adminToken, wantData: marchallList(t, usr1, student, usr2)},
		{name: "role (unknown)", path: path("", "", nil, "lol"), token: adminToken, wantData: empty},
		{name: "role=admin:", path: path("", "", nil, user.RoleAdmin), token: adminToken, wantData: marchallList(t, admin, principal)},
		{name: "role=teacher:", path: path("", "", nil, user.RoleTeacher), token: adminToken, wantData: marchallList(t, teacher)},
		{
			name: "role=teacher:,student:", path: path("", "", nil, user.RoleTeacher, user.RoleStudent),
			token: adminToken, wantData: marchallList(t, teacher, naughty, student),
		},
		{
			name: "is_active=true", path: path("", "", bPtr(true)),
			token: adminToken, wantData: marchallList(t, teacher, admin, usr1, principal, student, usr2),
		},
		{name: "is_active=false", path: path("", "", bPtr(false)), token: adminToken, wantData: marchallList(t, naughty)},
		{name: "combo (empty)", path: path("USE", "", bPtr(true), user.RoleAdminPrincipal), token: adminToken, wantData: empty},
		{name: "combo (found)", path: path("tea", "", bPtr(true), user.RoleTeacher), token: adminToken, wantData: marchallList(t, teacher)},
		// ordering
		{
			name: "order by created_at", path: path("", "created_at", nil), token: adminToken,
			wantData: marchallList(t, usr2, student, principal, naughty, usr1, admin, teacher),
		},
		{
			name: "order by -created_at", path: path("", "-created_at", nil), token: adminToken,
			wantData: marchallList(t, teacher, admin, usr1, naughty, principal, student, usr2),
		},
		{
			name: "order by is_active,-name", path: path("", "is_active,-name", nil), token: adminToken,
			wantData: marchallList(t, naughty, usr1, teacher, principal, usr2, student, admin),
		},
		{
			name: "filtering & ordering", path: path("", "name", nil, user.RoleTeacher, user.RoleStudent), token: adminToken,
			wantData: marchallList(t, student, naughty, teacher),
		},
	}
	for _, tt := range tests {
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodGet, tt.path, tt.token)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userDetail(t *testing.T) {
	e := setup(t)

	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "admin@spist.edu", "", []string{user.RoleAdmin}, true)
	owner := testutil.CreateUser(t, e.usrRepo, "Owner", "owner", "owner@spist.edu", "", []string{user.RoleAdminOwner}, true)
	student := testutil.CreateUser(t, e.usrRepo, "Hero", "hero", "hero@spist.edu", "", []string{user.RoleStudent}, true)
	other := testutil.CreateUser(t, e.usrRepo, "Other", "other", "other@spist.edu", "", []string{user.RoleStudent}, true)

	adminToken := getToken(t, admin)
	studentToken := getToken(t, student)
	notFound := marchallObj(t, httpErr{Error: "not found"})

	tests := []httpTest{
		{name: "own profile", method: http.MethodGet, path: "/v1/users/" + student.ID, token: studentToken, wantCode: http.StatusOK, wantData: marchallObj(t, student)},
		{name: "someone else's", method: http.MethodGet, path: "/v1/users/" + other.ID, token: studentToken, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "admin sees all", method: http.MethodGet, path: "/v1/users/" + other.ID, token: adminToken, wantCode: http.StatusOK, wantData: marchallObj(t, other)},
		{name: "unknown", method: http.MethodGet, path: "/v1/users/lol", token: adminToken, wantCode: http.StatusNotFound, wantData: notFound},
		{
			name: "student cannot change roles", method: http.MethodPut, path: "/v1/users/" + student.ID, token: studentToken,
			body: marchallObj(t, map[string]interface{}{"roles": []string{user.RoleAdmin}}), wantCode: http.StatusForbidden,
		},
		{
			name: "cannot delete self", method: http.MethodDelete, path: "/v1/users/" + admin.ID, token: adminToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: user.ErrCannotDeleteSelf.Error()}),
		},
		{
			name: "cannot delete higher role", method: http.MethodDelete, path: "/v1/users/" + owner.ID, token: adminToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "student cannot delete", method: http.MethodDelete, path: "/v1/users/" + other.ID, token: studentToken, wantCode: http.StatusNotFound},
		{name: "admin deletes", method: http.MethodDelete, path: "/v1/users/" + other.ID, token: adminToken, wantCode: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}

	_, err := e.usrRepo.GetUser(context.Background(), user.GetFilter{ID: other.ID})
	assert.True(t, core.IsNotFound(err))
}

func Test_userApi_userRefreshToken(t *testing.T) {
	e := setup(t)

	naughty := testutil.CreateUser(t, e.usrRepo, "N Dog", "ndog", "ndog@spist.edu", "", []string{user.RoleStudent}, false)
	student := testutil.CreateUser(t, e.usrRepo, "Hero", "hero", "user3@spist.edu", "", []string{user.RoleStudent}, true)

	now := time.Now()
	unrefreshableClaims := &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    core.Conf.AppName,
			Subject:   student.ID,
			Audience:  "SPIST",
			ExpiresAt: now.Add(core.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-2 * core.Conf.Server.JWTRefreshExpirationDelta).Unix(), // older than threshold
		IsStudent:    student.IsStudent(),
		Roles:        student.Roles,
	}
	unrefreshableToken, err := echoapi.GenerateToken(unrefreshableClaims)
	require.NoError(t, err)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Inactive user not allowed", token: getToken(t, naughty), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})},
		{name: "Token refreshed", token: getToken(t, student), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodPost, "/v1/users/token-refresh", tt.token)

			// cannot guess new token.. just check that it's not empty
			if tt.wantCode == http.StatusOK {
				require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
				var respData echoapi.LoginResponse
				unmarshal(t, rec, &respData)
				assert.NotEmpty(t, respData.Token)
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userResetPassword(t *testing.T) {
	e := setup(t)

	student := testutil.CreateUser(t, e.usrRepo, "Hero", "hero", "user3@spist.edu", "", []string{user.RoleStudent}, true)
	successData := marchallObj(t, echoapi.SuccessResponse{Success: "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."})

	pathRegex := regexp.MustCompile("/password-reset/.+/.+")

	type extraTest struct {
		emailSent bool
		to        mail.Address
	}
	tests := []httpTest{
		{name: "required fields", wantCode: http.StatusBadRequest, wantData: marchallObj(t, echoapi.PasswordResetRequest{Email: "this field is required"})},
		{
			name: "invalid email", wantCode: http.StatusBadRequest, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "lol"}),
			wantData: marchallObj(t, echoapi.PasswordResetRequest{Email: "email must be a valid email address"}),
		},
		{
			name: "unknown email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "lol@test.com"}),
			wantData: successData, extra: extraTest{emailSent: false},
		},
		{
			name: "known email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: student.Email}),
			wantData: successData, extra: extraTest{emailSent: true, to: mail.Address{Name: student.FullName(), Address: student.Email}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emailsvc.ResetSentMessages()

			rec := e.do(http.MethodPost, "/v1/users/password-reset", "", tt.body)
			checkCodeAndData(t, tt, rec)

			extra, ok := tt.extra.(extraTest)
			if !ok {
				return
			}
			sent := emailsvc.LastSentMessages()
			if !extra.emailSent {
				assert.Empty(t, sent)
				return
			}
			require.Len(t, sent, 1)
			msg := sent[0]
			assert.Equal(t, extra.to, msg.To[0])
			assert.True(t, strings.Contains(msg.TextContent, extra.to.Name))
			assert.True(t, strings.Contains(msg.HTMLContent, extra.to.Name))
			assert.Regexp(t, pathRegex, msg.TextContent)
			assert.Regexp(t, pathRegex, msg.HTMLContent)
		})
	}
}

func Test_userApi_userConfirmPasswordReset(t *testing.T) {
	e := setup(t)

	student := testutil.CreateUser(t, e.usrRepo, "Hero", "hero", "user3@spist.edu", "Old-Secret-1", []string{user.RoleStudent}, true)
	validUID := user.EncodeUID(student)
	tokens := user.NewResetTokens(core.Conf.SecretKey, core.Conf.PasswordResetTimeoutDelta)
	validToken := tokens.Make(student)

	// generate an expired token
	dayLate := core.Conf.PasswordResetTimeoutDelta + (24 * time.Hour)
	expiredToken := tokens.At(time.Now().Add(-dayLate)).Make(student)

	reqMsg := "this field is required"
	badLink := marchallObj(t, httpErr{Error: "invalid password reset link"})
	newPwd := "LolC@t123"

	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, user.ResetUserPassword{Token: reqMsg, UID: reqMsg, Password: "password must contain at least 8 characters", PasswordConfirm: reqMsg}),
		},
		{
			name: "PasswordConfirm must = Password", wantCode: http.StatusBadRequest,
			body: marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: newPwd, PasswordConfirm: "lol"}),
		},
		{
			name: "invalid uid", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "bG9s", Password: newPwd, PasswordConfirm: newPwd}),
			wantData: badLink,
		},
		{
			name: "invalid token", wantCode: http.StatusBadRequest,
			body: marchallObj(t, user.ResetUserPassword{Token: "HE4TS-sigsig-sig", UID: validUID, Password: newPwd, PasswordConfirm: newPwd}),
		},
		{
			name: "expired token", wantCode: http.StatusBadRequest,
			body: marchallObj(t, user.ResetUserPassword{Token: expiredToken, UID: validUID, Password: newPwd, PasswordConfirm: newPwd}),
		},
		{
			name: "valid token", wantCode: http.StatusOK,
			body:     marchallObj(t, user.ResetUserPassword{Token: validToken, UID: validUID, Password: newPwd, PasswordConfirm: newPwd}),
			wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Password has been reset with the new password."}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(http.MethodPost, "/v1/users/password-reset-confirm", "", tt.body)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				refreshed, err := e.usrRepo.GetUser(context.Background(), user.GetFilter{ID: student.ID})
				require.NoError(t, err)
				assert.False(t, bytes.Equal(refreshed.PasswordHash, student.PasswordHash), "password was not updated")
				assert.NoError(t, refreshed.CheckPassword(newPwd))
			}
		})
	}
}
