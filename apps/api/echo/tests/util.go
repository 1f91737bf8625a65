package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/spist/campus/apps/api/echo"
	"github.com/spist/campus/core"
	"github.com/spist/campus/core/analytics"
	"github.com/spist/campus/core/assessment"
	"github.com/spist/campus/core/calendar"
	"github.com/spist/campus/core/course"
	"github.com/spist/campus/core/docimport"
	"github.com/spist/campus/core/notification"
	"github.com/spist/campus/core/user"
	"github.com/spist/campus/services/cache"
	"github.com/spist/campus/services/email"
	"github.com/spist/campus/services/sms"
	"github.com/spist/campus/services/storage"
	"github.com/spist/campus/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testLogger struct{}

func (testLogger) Debug(string, ...interface{}) {}
func (testLogger) Info(string, ...interface{})  {}
func (testLogger) Warn(string, ...interface{})  {}
func (testLogger) Error(string, ...interface{}) {}
func (testLogger) Fatal(string, ...interface{}) {}

// env is a server backed by a fresh in-memory database.
type env struct {
	app       *Server
	usrRepo   user.Repository
	courseSvc course.ServiceInterface
	assessSvc assessment.ServiceInterface
	calSvc    calendar.ServiceInterface
	notifSvc  notification.ServiceInterface
}

func newValidator() (*validator.Validate, ut.Translator) {
	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(testLogger{})
	return validate, translator
}

func setup(t *testing.T) *env {
	t.Helper()
	conf := core.Conf
	logger := testLogger{}

	// set up DB & repos
	db := inmemdb.Open()
	tx := inmemdb.NewTransactor(db)
	usrRepo := inmemdb.NewUserRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(logger, conf)
	usrSvc := user.NewServiceMock(usrRepo, tx, mailSvc)
	notifSvc := notification.NewService(inmemdb.NewNotificationRepository(db), nil)
	courseSvc, err := course.NewService(course.ServiceDeps{
		Repo:     inmemdb.NewCourseRepository(db),
		Tx:       tx,
		UserSvc:  usrSvc,
		NotifSvc: notifSvc,
		MailSvc:  mailSvc,
		SMSSvc:   smssvc.NewService(logger, conf),
		Logger:   logger,
		Conf:     conf,
	})
	require.NoError(t, err)
	assessSvc := assessment.NewService(inmemdb.NewAssessmentRepository(db), tx, usrSvc, notifSvc, logger, conf)
	files, err := storagesvc.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	importSvc := docimport.NewService(inmemdb.NewDocImportRepository(db), files, assessSvc, logger, conf)
	calSvc := calendar.NewService(calendar.ServiceDeps{
		Repo:      inmemdb.NewCalendarRepository(db),
		UserSvc:   usrSvc,
		CourseSvc: courseSvc,
		NotifSvc:  notifSvc,
		MailSvc:   mailSvc,
		Logger:    logger,
		Conf:      conf,
	})
	analyticsSvc := analytics.NewService(inmemdb.NewAnalyticsRepository(db), cachesvc.NewMemoryCache(), logger)

	validate, translator := newValidator()

	// set up server
	app := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		Cache:          cachesvc.NewMemoryCache(),
		DisableReqLogs: true,
		UserSvc:        usrSvc,
		CourseSvc:      courseSvc,
		AssessmentSvc:  assessSvc,
		ImportSvc:      importSvc,
		CalendarSvc:    calSvc,
		NotifSvc:       notifSvc,
		AnalyticsSvc:   analyticsSvc,
	})

	emailsvc.ResetSentMessages()
	return &env{
		app:       app,
		usrRepo:   usrRepo,
		courseSvc: courseSvc,
		assessSvc: assessSvc,
		calSvc:    calSvc,
		notifSvc:  notifSvc,
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// do serves a request and returns the recorded response.
func (e *env) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	e.app.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, usr user.User) string {
	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoErrorf(t, json.Unmarshal(rec.Body.Bytes(), v), "body: %s", rec.Body.String())
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equalf(t, tt.wantCode, rec.Code, "body: %s", rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
