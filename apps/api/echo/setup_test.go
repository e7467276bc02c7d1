package echoapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/edusense/core"
	"github.com/trezcool/edusense/core/analytics"
	"github.com/trezcool/edusense/core/announcement"
	"github.com/trezcool/edusense/core/assignment"
	"github.com/trezcool/edusense/core/attendance"
	"github.com/trezcool/edusense/core/subject"
	"github.com/trezcool/edusense/core/user"
	emailsvc "github.com/trezcool/edusense/services/email"
	dummydb "github.com/trezcool/edusense/storage/database/dummy"
)

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}

// testEnv wires a full API server over the in-memory store.
type testEnv struct {
	srv  *Server
	conf *core.Config

	usrRepo user.Repository
	subRepo subject.Repository
	attRepo attendance.Repository
	asgRepo assignment.Repository
	annRepo announcement.Repository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true
	conf.Attendance.DisableAlerts = true

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	usrRepo := dummydb.NewUserRepository(db)
	subRepo := dummydb.NewSubjectRepository(db)
	attRepo := dummydb.NewAttendanceRepository(db)
	asgRepo := dummydb.NewAssignmentRepository(db)
	annRepo := dummydb.NewAnnouncementRepository(db)

	logger := nopLogger{}
	notifier := core.NopNotifier{}
	mailSvc := emailsvc.NewConsoleServiceMock()

	validate := validator.New()
	translator := newTestTranslator(t)
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	srv := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,

		UserSvc:         user.NewService(usrRepo),
		SubjectSvc:      subject.NewService(subRepo),
		AttendanceSvc:   attendance.NewService(attRepo, subRepo, usrRepo, notifier, mailSvc, logger, conf),
		AssignmentSvc:   assignment.NewService(asgRepo, subRepo, notifier),
		AnnouncementSvc: announcement.NewService(annRepo, subRepo, notifier),
		AnalyticsSvc:    analytics.NewService(usrRepo, subRepo, attRepo, asgRepo, annRepo, logger),

		DisableReqLogs: true,
	})

	return &testEnv{
		srv:     srv,
		conf:    conf,
		usrRepo: usrRepo,
		subRepo: subRepo,
		attRepo: attRepo,
		asgRepo: asgRepo,
		annRepo: annRepo,
	}
}

func newTestTranslator(t *testing.T) ut.Translator {
	t.Helper()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, ok := uni.GetTranslator("en")
	if !ok {
		t.Fatal("translator not found")
	}
	return translator
}

func (env *testEnv) do(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	env.srv.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) createUser(
	t *testing.T,
	name, email, pwd string,
	roles []string,
	isActive bool,
	subjects ...string,
) user.User {
	t.Helper()

	now := time.Now().UTC()
	usr := user.User{
		Name:      name,
		Email:     email,
		Subjects:  subjects,
		IsActive:  &isActive,
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := env.usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func (env *testEnv) createSubject(t *testing.T, name, code string) subject.Subject {
	t.Helper()

	now := time.Now().UTC()
	active := true
	sub, err := env.subRepo.CreateSubject(context.Background(), subject.Subject{
		Name:        name,
		Code:        code,
		Description: name,
		Credits:     4,
		Semester:    1,
		IsActive:    &active,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("createSubject() failed: %v", err)
	}
	return sub
}
