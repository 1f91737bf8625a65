package docimport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/assessment"
	"github.com/spist/campus/core/docparse"
	"github.com/spist/campus/core/user"
)

var (
	NowFunc = time.Now // mockable

	ErrNotFound      = core.NewNotFoundError("document import")
	ErrUnsupported   = core.NewFieldError("document", "Unsupported file type. Upload a .txt, .docx or .pdf file.")
	ErrNoQuestions   = core.NewValidationError(errors.New("No questions found in the document"))
	ErrAlreadyLinked = core.NewValidationError(errors.New("An assessment was already created from this document."))
)

type (
	Repository interface {
		Save(ctx context.Context, di DocumentImport, exec ...core.DBExecutor) (DocumentImport, error)
		Get(ctx context.Context, id string, exec ...core.DBExecutor) (DocumentImport, error)
		// Query returns imports newest first, or all of them when uploadedBy is empty.
		Query(ctx context.Context, uploadedBy string, exec ...core.DBExecutor) ([]DocumentImport, error)
		Delete(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	ServiceInterface interface {
		Upload(ctx context.Context, actor user.User, filename string, r io.Reader) (DocumentImport, error)
		List(ctx context.Context, actor user.User) ([]DocumentImport, error)
		Get(ctx context.Context, actor user.User, id string) (DocumentImport, error)
		ApplyAnswerKey(ctx context.Context, actor user.User, id string, in AnswerKeyInput) (DocumentImport, error)
		CreateAssessment(ctx context.Context, actor user.User, id string, in CreateAssessmentInput) (assessment.Detail, error)
		Delete(ctx context.Context, actor user.User, id string) error
	}

	service struct {
		repo      Repository
		storage   core.FileStorage
		assessSvc assessment.ServiceInterface
		logger    core.Logger
		maxSize   int64
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(
	repo Repository,
	storage core.FileStorage,
	assessSvc assessment.ServiceInterface,
	logger core.Logger,
	conf *core.Config,
) *service {
	return &service{
		repo:      repo,
		storage:   storage,
		assessSvc: assessSvc,
		logger:    logger,
		maxSize:   conf.Storage.MaxUploadSize,
	}
}

func (svc *service) getOwned(ctx context.Context, actor user.User, id string) (DocumentImport, error) {
	di, err := svc.repo.Get(ctx, id)
	if err != nil {
		return DocumentImport{}, err
	}
	if !actor.IsAdmin() && di.UploadedBy != actor.ID {
		return DocumentImport{}, ErrNotFound
	}
	return di, nil
}

// Upload stores a document and parses it right away.
func (svc *service) Upload(ctx context.Context, actor user.User, filename string, r io.Reader) (DocumentImport, error) {
	if !(actor.IsTeacher() || actor.IsAdmin()) {
		return DocumentImport{}, core.ErrForbidden
	}
	filename = path.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext, err := docparse.Extension(filename)
	if err != nil {
		return DocumentImport{}, ErrUnsupported
	}

	limit := svc.maxSize
	if limit <= 0 {
		limit = 10 << 20
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return DocumentImport{}, errors.Wrap(err, "reading upload")
	}
	if int64(len(data)) > limit {
		return DocumentImport{}, core.NewFieldError("document", fmt.Sprintf("file exceeds the %d MB limit", limit>>20))
	}

	id := uuid.New().String()
	di := DocumentImport{
		ID:               id,
		UploadedBy:       actor.ID,
		OriginalFilename: filename,
		StorageKey:       fmt.Sprintf("imports/%s/%s%s", actor.ID, id, ext),
		FileSize:         int64(len(data)),
		Status:           StatusPending,
		CreatedAt:        NowFunc().UTC(),
	}
	if err = svc.storage.Save(ctx, di.StorageKey, bytes.NewReader(data), di.FileSize, mime.TypeByExtension(ext)); err != nil {
		return DocumentImport{}, errors.Wrap(err, "storing document")
	}
	di.Status = StatusProcessing
	if di, err = svc.repo.Save(ctx, di); err != nil {
		return DocumentImport{}, errors.Wrap(err, "saving document import")
	}

	svc.process(&di, data)
	return svc.repo.Save(ctx, di)
}

func (svc *service) process(di *DocumentImport, data []byte) {
	now := NowFunc().UTC()
	di.ProcessedAt = &now

	doc, err := docparse.Extract(di.OriginalFilename, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("extracting text from import %s: %v", di.ID, err))
		di.Status = StatusFailed
		di.ErrorMessage = err.Error()
		return
	}
	di.setResult(docparse.NewParser(svc.logger).Parse(di.OriginalFilename, doc))
}

func (svc *service) List(ctx context.Context, actor user.User) ([]DocumentImport, error) {
	uploadedBy := actor.ID
	if actor.IsAdmin() {
		uploadedBy = ""
	}
	return svc.repo.Query(ctx, uploadedBy)
}

func (svc *service) Get(ctx context.Context, actor user.User, id string) (DocumentImport, error) {
	return svc.getOwned(ctx, actor, id)
}

// ApplyAnswerKey sets the answers of parsed questions from "N. X" lines and re-evaluates the status.
func (svc *service) ApplyAnswerKey(ctx context.Context, actor user.User, id string, in AnswerKeyInput) (DocumentImport, error) {
	di, err := svc.getOwned(ctx, actor, id)
	if err != nil {
		return DocumentImport{}, err
	}
	if di.ParseResult == nil || len(di.ParseResult.Questions) == 0 {
		return DocumentImport{}, ErrNoQuestions
	}
	key := docparse.ParseAnswerKey(in.AnswerKey)
	if len(key) == 0 {
		return DocumentImport{}, core.NewFieldError("answer_key", "no answers found; use one \"N. answer\" per line")
	}
	res := *di.ParseResult
	docparse.ApplyAnswerKey(&res, key)
	di.setResult(res)
	return svc.repo.Save(ctx, di)
}

// CreateAssessment turns the parsed questions into a draft assessment linked to the import.
func (svc *service) CreateAssessment(ctx context.Context, actor user.User, id string, in CreateAssessmentInput) (assessment.Detail, error) {
	di, err := svc.getOwned(ctx, actor, id)
	if err != nil {
		return assessment.Detail{}, err
	}
	if di.AssessmentID != "" {
		return assessment.Detail{}, ErrAlreadyLinked
	}
	if di.ParseResult == nil || len(di.ParseResult.Questions) == 0 {
		return assessment.Detail{}, ErrNoQuestions
	}

	ain := assessment.AssessmentInput{
		Title:          in.Title,
		Description:    in.Description,
		AssessmentType: in.AssessmentType,
		MaxAttempts:    1,
	}
	if ain.Title == "" {
		ain.Title = "Imported from " + di.OriginalFilename
	}
	if ain.AssessmentType == "" {
		ain.AssessmentType = assessment.TypeQuiz
	}
	questions := make([]assessment.QuestionInput, 0, len(di.ParseResult.Questions))
	for _, q := range di.ParseResult.Questions {
		if qin, ok := toQuestionInput(q); ok {
			questions = append(questions, qin)
		}
	}
	if len(questions) == 0 {
		return assessment.Detail{}, ErrNoQuestions
	}

	d, err := svc.assessSvc.CreateWithQuestions(ctx, actor, ain, questions)
	if err != nil {
		return assessment.Detail{}, errors.Wrap(err, "creating assessment")
	}
	di.AssessmentID = d.Assessment.ID
	if _, err = svc.repo.Save(ctx, di); err != nil {
		return d, errors.Wrap(err, "linking assessment")
	}
	return d, nil
}

const (
	maxImportedChoices = 10
	maxImportedAnswers = 20
)

func toQuestionInput(q docparse.Question) (assessment.QuestionInput, bool) {
	text := core.StripTags(strings.TrimSpace(q.QuestionText))
	if text == "" {
		return assessment.QuestionInput{}, false
	}
	in := assessment.QuestionInput{
		QuestionType:         q.QuestionType,
		QuestionText:         text,
		Points:               q.Points,
		ExpectedAnswersCount: 1,
		Explanation:          q.Explanation,
	}
	if in.Points < 1 {
		in.Points = 1
	}

	switch q.QuestionType {
	case assessment.QuestionMultipleChoice:
		for i, c := range q.Choices {
			if i == maxImportedChoices {
				break
			}
			in.Choices = append(in.Choices, assessment.ChoiceInput{ChoiceText: c.Text, IsCorrect: c.IsCorrect})
		}
	case assessment.QuestionTrueFalse:
		if len(q.CorrectAnswers) > 0 {
			in.CorrectAnswer = strings.ToLower(q.CorrectAnswers[0])
		}
	default:
		for i, ans := range q.CorrectAnswers {
			if i == maxImportedAnswers {
				break
			}
			in.Answers = append(in.Answers, assessment.CorrectAnswerInput{AnswerText: ans})
		}
		if q.QuestionType == assessment.QuestionEnumeration && len(in.Answers) > 0 {
			in.ExpectedAnswersCount = len(in.Answers)
		}
	}
	return in, true
}

// Delete removes an import and its stored file.
func (svc *service) Delete(ctx context.Context, actor user.User, id string) error {
	di, err := svc.getOwned(ctx, actor, id)
	if err != nil {
		return err
	}
	if err = svc.storage.Delete(ctx, di.StorageKey); err != nil {
		svc.logger.Warn(fmt.Sprintf("deleting stored document %s: %v", di.StorageKey, err))
	}
	return svc.repo.Delete(ctx, di.ID)
}
