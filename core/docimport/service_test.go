package docimport_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/assessment"
	"github.com/spist/campus/core/docimport"
	"github.com/spist/campus/core/notification"
	"github.com/spist/campus/core/user"
	emailsvc "github.com/spist/campus/services/email"
	storagesvc "github.com/spist/campus/services/storage"
	inmemdb "github.com/spist/campus/storage/database/inmem"
	"github.com/spist/campus/tests"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

const quiz = `Chapter 1 Quiz

1. Which keyword declares a constant in Go?
A. var
B. const
C. let

2. True or False: Go has a while keyword.
Answer: False
`

type fixture struct {
	svc     docimport.ServiceInterface
	files   core.FileStorage
	teacher user.User
	other   user.User
	admin   user.User
	student user.User
}

func newFixture(t *testing.T, maxUploadSize int64) fixture {
	t.Helper()
	conf := *core.Conf
	conf.Storage.MaxUploadSize = maxUploadSize
	logger := nopLogger{}

	db := inmemdb.Open()
	tx := inmemdb.NewTransactor(db)
	usrRepo := inmemdb.NewUserRepository(db)
	usrSvc := user.NewServiceMock(usrRepo, tx, emailsvc.NewConsoleServiceMock(logger, &conf))
	notifSvc := notification.NewService(inmemdb.NewNotificationRepository(db), nil)
	assessSvc := assessment.NewService(inmemdb.NewAssessmentRepository(db), tx, usrSvc, notifSvc, logger, &conf)

	files, err := storagesvc.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	return fixture{
		svc:     docimport.NewService(inmemdb.NewDocImportRepository(db), files, assessSvc, logger, &conf),
		files:   files,
		teacher: testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@spist.edu", "", []string{user.RoleTeacher}, true),
		other:   testutil.CreateUser(t, usrRepo, "Other", "other", "other@spist.edu", "", []string{user.RoleTeacher}, true),
		admin:   testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@spist.edu", "", []string{user.RoleAdmin}, true),
		student: testutil.CreateStudent(t, usrRepo, "Hero", "hero", "2026-0001", user.YearFirst),
	}
}

func TestService_Upload(t *testing.T) {
	f := newFixture(t, 1<<20)
	ctx := context.Background()

	tests := []struct {
		name     string
		actor    user.User
		filename string
		content  string
		wantErr  error
	}{
		{name: "students cannot upload", actor: f.student, filename: "quiz.txt", content: quiz, wantErr: core.ErrForbidden},
		{name: "unsupported type", actor: f.teacher, filename: "quiz.exe", content: quiz, wantErr: docimport.ErrUnsupported},
		{name: "too large", actor: f.teacher, filename: "quiz.txt", content: strings.Repeat("a", 1<<20+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Upload(ctx, tt.actor, tt.filename, strings.NewReader(tt.content))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
			}
		})
	}

	di, err := f.svc.Upload(ctx, f.teacher, `C:\Users\teacher\quiz.txt`, strings.NewReader(quiz))
	require.NoError(t, err)
	assert.Equal(t, "quiz.txt", di.OriginalFilename)
	assert.Equal(t, docimport.StatusNeedsReview, di.Status)
	require.NotNil(t, di.ParseResult)
	assert.Equal(t, 2, di.ParseResult.TotalQuestions)
	assert.Equal(t, 1, di.ParseResult.QuestionsWithAnswers)
	assert.NotNil(t, di.ProcessedAt)

	rc, err := f.files.Open(ctx, di.StorageKey)
	require.NoError(t, err)
	var stored bytes.Buffer
	_, err = stored.ReadFrom(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, quiz, stored.String())

	// imports are private to their uploader
	_, err = f.svc.Get(ctx, f.other, di.ID)
	assert.Equal(t, docimport.ErrNotFound, err)
	_, err = f.svc.Get(ctx, f.admin, di.ID)
	assert.NoError(t, err)

	list, err := f.svc.List(ctx, f.other)
	require.NoError(t, err)
	assert.Empty(t, list)
	list, err = f.svc.List(ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, f.svc.Delete(ctx, f.teacher, di.ID))
	_, err = f.svc.Get(ctx, f.teacher, di.ID)
	assert.Error(t, err)
	_, err = f.files.Open(ctx, di.StorageKey)
	assert.Error(t, err)
}

func TestService_CreateAssessment(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	di, err := f.svc.Upload(ctx, f.teacher, "quiz.txt", strings.NewReader(quiz))
	require.NoError(t, err)

	_, err = f.svc.ApplyAnswerKey(ctx, f.teacher, di.ID, docimport.AnswerKeyInput{AnswerKey: "no answers here"})
	assert.Error(t, err)

	di, err = f.svc.ApplyAnswerKey(ctx, f.teacher, di.ID, docimport.AnswerKeyInput{AnswerKey: "1. B"})
	require.NoError(t, err)
	assert.Equal(t, 2, di.ParseResult.QuestionsWithAnswers)

	_, err = f.svc.CreateAssessment(ctx, f.other, di.ID, docimport.CreateAssessmentInput{})
	assert.Equal(t, docimport.ErrNotFound, err)

	d, err := f.svc.CreateAssessment(ctx, f.teacher, di.ID, docimport.CreateAssessmentInput{})
	require.NoError(t, err)
	assert.Equal(t, "Imported from quiz.txt", d.Assessment.Title)
	assert.Equal(t, assessment.TypeQuiz, d.Assessment.AssessmentType)
	assert.Equal(t, assessment.StatusDraft, d.Assessment.Status)
	assert.Equal(t, f.teacher.ID, d.Assessment.CreatedBy)
	require.Len(t, d.Questions, 2)

	mc := d.Questions[0]
	assert.Equal(t, assessment.QuestionMultipleChoice, mc.QuestionType)
	require.Len(t, mc.Choices, 3)
	for _, c := range mc.Choices {
		assert.Equal(t, c.ChoiceText == "const", c.IsCorrect, c.ChoiceText)
	}
	assert.Equal(t, assessment.QuestionTrueFalse, d.Questions[1].QuestionType)

	di, err = f.svc.Get(ctx, f.teacher, di.ID)
	require.NoError(t, err)
	assert.Equal(t, d.Assessment.ID, di.AssessmentID)

	_, err = f.svc.CreateAssessment(ctx, f.teacher, di.ID, docimport.CreateAssessmentInput{})
	assert.Equal(t, docimport.ErrAlreadyLinked, err)
}
