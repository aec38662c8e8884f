package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/grade"
	"github.com/trezcool/shule/core/record"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/fs"
	"github.com/trezcool/shule/services/email"
	"github.com/trezcool/shule/services/logger"
	"github.com/trezcool/shule/storage/database/sqlx"
	"github.com/trezcool/shule/storage/memstore"
	"github.com/trezcool/shule/tests"
)

const testPassword = "Sup3r$ecret!"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type fixture struct {
	app          Server
	conf         *core.Config
	usrSvc       user.Service
	mailSvc      *emailsvc.ConsoleServiceMock
	usrRepo      user.Repository
	academicRepo academic.Repository
	gradeRepo    grade.Repository
}

func setup(t *testing.T) *fixture {
	conf := core.NewConfig()
	conf.TestMode = true

	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)
	require.NoError(t, core.ParseEmailTemplates(appfs.FS, "templates/email", conf.AppName, true))

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	academic.InitValidators(validate, translator)

	// set up DB & repos
	db := testutil.PrepareDB(t)
	f := &fixture{
		conf:         conf,
		mailSvc:      emailsvc.NewConsoleServiceMock(conf, logger),
		usrRepo:      sqlxrepos.NewUserRepository(db),
		academicRepo: sqlxrepos.NewAcademicRepository(db),
		gradeRepo:    sqlxrepos.NewGradeRepository(db),
	}

	// set up services
	f.usrSvc = user.NewServiceMock(db, f.usrRepo, user.Options{
		Conf:        conf,
		Logger:      logger,
		MailSvc:     f.mailSvc,
		Sessions:    memstore.New[user.Session](conf.Auth.SessionTimeout),
		ResetTokens: memstore.New[user.ResetToken](conf.Auth.ResetTokenTimeout),
	})
	academicSvc := academic.NewService(db, f.academicRepo, f.usrSvc, logger)
	gradeSvc := grade.NewService(db, f.gradeRepo, f.usrSvc, academicSvc, logger)
	recordSvc := record.NewService(sqlxrepos.NewRecordRepository(db), f.usrSvc, gradeSvc)

	// set up server
	f.app = NewServer(
		&Options{
			Conf:           conf,
			Logger:         logger,
			Validate:       validate,
			Translator:     translator,
			DisableReqLogs: true,
			UserSvc:        f.usrSvc,
			AcademicSvc:    academicSvc,
			GradeSvc:       gradeSvc,
			RecordSvc:      recordSvc,
		},
	)
	t.Cleanup(func() { _ = f.app.Close() })
	return f
}

// createUser creates an active User whose password is testPassword.
func (f *fixture) createUser(t *testing.T, name, uname string, role user.Role) user.User {
	return testutil.CreateUser(t, f.usrRepo, name, uname, uname+"@test.cd", testPassword, role, true)
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

// serve runs a request against the app.
func (f *fixture) serve(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	f.app.ServeHTTP(rec, req)
	return rec
}

// getToken logs usr in, opening a live session.
func (f *fixture) getToken(t *testing.T, usr user.User) string {
	t.Helper()

	loggedIn, sess, err := f.usrSvc.Authenticate(context.Background(), usr.Username, testPassword)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	token, err := GenerateToken(f.conf, GetUserClaims(f.conf, loggedIn, sess))
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

func unmarshalBody(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("unmarshalBody() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
