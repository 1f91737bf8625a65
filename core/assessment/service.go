package assessment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/notification"
	"github.com/spist/campus/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound         = core.NewNotFoundError("assessment")
	ErrQuestionNotFound = core.NewNotFoundError("question")
	ErrAttemptNotFound  = core.NewNotFoundError("attempt")
	ErrAnswerNotFound   = core.NewNotFoundError("answer")
	ErrDuplicate        = errors.New("an item with the same unique fields already exists")

	ErrTeachersOnly        = core.NewValidationError(errors.New("Only teachers can create assessments."))
	ErrNoQuestions         = core.NewValidationError(errors.New("Cannot publish assessment without questions."))
	ErrNotAvailable        = core.NewValidationError(errors.New("This assessment is not available."))
	ErrMaxAttempts         = core.NewValidationError(errors.New("You have reached the maximum number of attempts."))
	ErrNoAttemptInProgress = core.NewValidationError(errors.New("No attempt in progress."))
	ErrTimeUp              = core.NewValidationError(errors.New("Time limit exceeded."))
	ErrNotSubmitted        = core.NewValidationError(errors.New("This attempt has not been submitted yet."))
	ErrEditPublished       = core.NewValidationError(errors.New("Questions of a published assessment with attempts cannot be changed."))
)

type (
	Repository interface {
		// Assessments are returned with their TotalPoints and QuestionCount.
		SaveAssessment(ctx context.Context, a Assessment, exec ...core.DBExecutor) (Assessment, error)
		GetAssessment(ctx context.Context, id string, exec ...core.DBExecutor) (Assessment, error)
		QueryAssessments(ctx context.Context, filter Filter, exec ...core.DBExecutor) ([]Assessment, error)
		DeleteAssessment(ctx context.Context, id string, exec ...core.DBExecutor) error

		// SaveQuestion upserts a question and replaces its choices and correct answers.
		SaveQuestion(ctx context.Context, q Question, exec ...core.DBExecutor) (Question, error)
		GetQuestion(ctx context.Context, id string, exec ...core.DBExecutor) (Question, error)
		// QueryQuestions returns the questions of an assessment in order, with choices and correct answers.
		QueryQuestions(ctx context.Context, assessmentID string, exec ...core.DBExecutor) ([]Question, error)
		DeleteQuestion(ctx context.Context, id string, exec ...core.DBExecutor) error

		// SaveAttempt returns ErrDuplicate when the attempt number is already taken.
		SaveAttempt(ctx context.Context, at Attempt, exec ...core.DBExecutor) (Attempt, error)
		GetAttempt(ctx context.Context, id string, exec ...core.DBExecutor) (Attempt, error)
		// QueryAttempts returns attempts ordered by attempt number.
		QueryAttempts(ctx context.Context, filter AttemptFilter, exec ...core.DBExecutor) ([]Attempt, error)
		// SaveAnswers upserts answers by attempt and question.
		SaveAnswers(ctx context.Context, answers []Answer, exec ...core.DBExecutor) error
		QueryAnswers(ctx context.Context, attemptIDs []string, exec ...core.DBExecutor) ([]Answer, error)
		CreateViolation(ctx context.Context, v Violation, exec ...core.DBExecutor) (Violation, error)
		QueryViolations(ctx context.Context, attemptID string, exec ...core.DBExecutor) ([]Violation, error)
	}

	ServiceInterface interface {
		// authoring
		Create(ctx context.Context, actor user.User, in AssessmentInput) (Assessment, error)
		Update(ctx context.Context, actor user.User, id string, in AssessmentInput) (Assessment, error)
		Get(ctx context.Context, actor user.User, id string) (Detail, error)
		List(ctx context.Context, actor user.User, filter Filter) ([]Assessment, error)
		Delete(ctx context.Context, actor user.User, id string) error
		Publish(ctx context.Context, actor user.User, id string) (Assessment, error)
		Archive(ctx context.Context, actor user.User, id string) (Assessment, error)
		PublishScheduled(ctx context.Context) (int, error)
		// CreateWithQuestions creates a draft assessment and its questions at once.
		CreateWithQuestions(ctx context.Context, actor user.User, in AssessmentInput, questions []QuestionInput) (Detail, error)
		AddQuestion(ctx context.Context, actor user.User, assessmentID string, in QuestionInput) (Question, error)
		UpdateQuestion(ctx context.Context, actor user.User, questionID string, in QuestionInput) (Question, error)
		DeleteQuestion(ctx context.Context, actor user.User, questionID string) error

		// taking
		Available(ctx context.Context, student user.User) ([]AvailableAssessment, error)
		Start(ctx context.Context, student user.User, assessmentID string) (AttemptView, error)
		SaveProgress(ctx context.Context, student user.User, assessmentID string, sub Submission) (Attempt, error)
		TrackViolation(ctx context.Context, student user.User, assessmentID string, in ViolationInput) (Attempt, error)
		Submit(ctx context.Context, student user.User, assessmentID string, sub Submission) (Result, error)
		AttemptResult(ctx context.Context, actor user.User, attemptID string) (Result, error)
		StudentAttempts(ctx context.Context, student user.User) ([]Attempt, error)

		// grading
		Results(ctx context.Context, actor user.User, assessmentID string) ([]AttemptSummary, error)
		Violations(ctx context.Context, actor user.User, attemptID string) ([]Violation, error)
		GradingQueue(ctx context.Context, actor user.User) ([]GradingItem, error)
		Grade(ctx context.Context, actor user.User, attemptID string, in GradeInput) (Result, error)
		ExportGrades(ctx context.Context, actor user.User, assessmentID string) (*core.Table, error)
	}

	service struct {
		repo     Repository
		tx       core.Transactor
		usrSvc   user.ServiceInterface
		notifSvc notification.ServiceInterface
		logger   core.Logger
		grace    time.Duration
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(
	repo Repository,
	tx core.Transactor,
	usrSvc user.ServiceInterface,
	notifSvc notification.ServiceInterface,
	logger core.Logger,
	conf *core.Config,
) *service {
	return &service{
		repo:     repo,
		tx:       tx,
		usrSvc:   usrSvc,
		notifSvc: notifSvc,
		logger:   logger,
		grace:    conf.Grading.TimeLimitGrace,
	}
}

func newID() string {
	return uuid.New().String()
}

func canManage(actor user.User, a Assessment) bool {
	return actor.IsAdmin() || a.CreatedBy == actor.ID
}

// getOwned returns an assessment the actor may manage. Other assessments are reported as not found.
func (svc *service) getOwned(ctx context.Context, actor user.User, id string, exec ...core.DBExecutor) (Assessment, error) {
	a, err := svc.repo.GetAssessment(ctx, id, exec...)
	if err != nil {
		return Assessment{}, err
	}
	if !canManage(actor, a) {
		return Assessment{}, ErrNotFound
	}
	return a, nil
}

// Authoring

func (svc *service) Create(ctx context.Context, actor user.User, in AssessmentInput) (Assessment, error) {
	if !(actor.IsTeacher() || actor.IsAdmin()) {
		return Assessment{}, ErrTeachersOnly
	}
	now := NowFunc().UTC()
	a := Assessment{
		ID:        newID(),
		CreatedBy: actor.ID,
		Status:    StatusDraft,
		CreatedAt: now,
	}
	applyInput(&a, in)
	a.UpdatedAt = now
	return svc.repo.SaveAssessment(ctx, a)
}

func (svc *service) CreateWithQuestions(ctx context.Context, actor user.User, in AssessmentInput, questions []QuestionInput) (Detail, error) {
	if !(actor.IsTeacher() || actor.IsAdmin()) {
		return Detail{}, ErrTeachersOnly
	}
	now := NowFunc().UTC()
	a := Assessment{ID: newID(), CreatedBy: actor.ID, Status: StatusDraft, CreatedAt: now, UpdatedAt: now}
	applyInput(&a, in)

	var d Detail
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if a, err = svc.repo.SaveAssessment(ctx, a, exec); err != nil {
			return errors.Wrap(err, "saving assessment")
		}
		for i, qin := range questions {
			q := Question{ID: newID(), AssessmentID: a.ID, Order: i + 1}
			applyQuestionInput(&q, qin, true)
			if q, err = svc.repo.SaveQuestion(ctx, q, exec); err != nil {
				return errors.Wrapf(err, "saving question %d", i+1)
			}
			d.Questions = append(d.Questions, q)
		}
		d.Assessment, err = svc.repo.GetAssessment(ctx, a.ID, exec)
		return err
	})
	return d, err
}

func (svc *service) Update(ctx context.Context, actor user.User, id string, in AssessmentInput) (Assessment, error) {
	a, err := svc.getOwned(ctx, actor, id)
	if err != nil {
		return Assessment{}, err
	}
	applyInput(&a, in)
	a.UpdatedAt = NowFunc().UTC()
	return svc.repo.SaveAssessment(ctx, a)
}

func applyInput(a *Assessment, in AssessmentInput) {
	a.Title = in.Title
	a.Description = in.Description
	a.AssessmentType = in.AssessmentType
	a.TimeLimit = in.TimeLimit
	a.ShowCorrectAnswers = in.ShowCorrectAnswers == nil || *in.ShowCorrectAnswers
	a.RandomizeQuestions = in.RandomizeQuestions
	a.RandomizeChoices = in.RandomizeChoices
	a.MaxAttempts = in.MaxAttempts
	a.PassingScore = in.passingScore()
	a.AvailableFrom = in.AvailableFrom
	a.AvailableUntil = in.AvailableUntil
}

func (svc *service) Get(ctx context.Context, actor user.User, id string) (Detail, error) {
	a, err := svc.getOwned(ctx, actor, id)
	if err != nil {
		return Detail{}, err
	}
	questions, err := svc.repo.QueryQuestions(ctx, a.ID)
	if err != nil {
		return Detail{}, errors.Wrap(err, "querying questions")
	}
	return Detail{Assessment: a, Questions: questions}, nil
}

// List returns the assessments created by the actor, or all of them for admins.
func (svc *service) List(ctx context.Context, actor user.User, filter Filter) ([]Assessment, error) {
	filter.CreatedBy = ""
	if !actor.IsAdmin() {
		if !actor.IsTeacher() {
			return nil, core.ErrForbidden
		}
		filter.CreatedBy = actor.ID
	}
	return svc.repo.QueryAssessments(ctx, filter)
}

func (svc *service) Delete(ctx context.Context, actor user.User, id string) error {
	if _, err := svc.getOwned(ctx, actor, id); err != nil {
		return err
	}
	return svc.repo.DeleteAssessment(ctx, id)
}

func (svc *service) Publish(ctx context.Context, actor user.User, id string) (Assessment, error) {
	a, err := svc.getOwned(ctx, actor, id)
	if err != nil {
		return Assessment{}, err
	}
	if a.QuestionCount == 0 {
		return Assessment{}, ErrNoQuestions
	}
	return svc.setStatus(ctx, a, StatusPublished)
}

func (svc *service) Archive(ctx context.Context, actor user.User, id string) (Assessment, error) {
	a, err := svc.getOwned(ctx, actor, id)
	if err != nil {
		return Assessment{}, err
	}
	return svc.setStatus(ctx, a, StatusArchived)
}

func (svc *service) setStatus(ctx context.Context, a Assessment, status string) (Assessment, error) {
	a.Status = status
	a.UpdatedAt = NowFunc().UTC()
	return svc.repo.SaveAssessment(ctx, a)
}

// PublishScheduled publishes the draft assessments whose availability window has opened.
func (svc *service) PublishScheduled(ctx context.Context) (int, error) {
	drafts, err := svc.repo.QueryAssessments(ctx, Filter{Statuses: []string{StatusDraft}})
	if err != nil {
		return 0, errors.Wrap(err, "querying draft assessments")
	}
	now := NowFunc().UTC()
	n := 0
	for _, a := range drafts {
		if a.AvailableFrom == nil || a.AvailableFrom.After(now) || a.QuestionCount == 0 {
			continue
		}
		if a.AvailableUntil != nil && a.AvailableUntil.Before(now) {
			continue
		}
		if _, err := svc.setStatus(ctx, a, StatusPublished); err != nil {
			return n, errors.Wrapf(err, "publishing assessment %s", a.ID)
		}
		n++
	}
	return n, nil
}

// Questions

func (svc *service) AddQuestion(ctx context.Context, actor user.User, assessmentID string, in QuestionInput) (Question, error) {
	var q Question
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		a, err := svc.getOwned(ctx, actor, assessmentID, exec)
		if err != nil {
			return err
		}
		if err = svc.checkEditable(ctx, a, exec); err != nil {
			return err
		}
		questions, err := svc.repo.QueryQuestions(ctx, a.ID, exec)
		if err != nil {
			return errors.Wrap(err, "querying questions")
		}
		order := 1
		if n := len(questions); n > 0 {
			order = questions[n-1].Order + 1
		}

		q = Question{ID: newID(), AssessmentID: a.ID, Order: order}
		applyQuestionInput(&q, in, true)
		if q, err = svc.repo.SaveQuestion(ctx, q, exec); err != nil {
			return err
		}
		return svc.touch(ctx, a, exec)
	})
	return q, err
}

func (svc *service) UpdateQuestion(ctx context.Context, actor user.User, questionID string, in QuestionInput) (Question, error) {
	var q Question
	err := svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if q, err = svc.repo.GetQuestion(ctx, questionID, exec); err != nil {
			return err
		}
		a, err := svc.getOwned(ctx, actor, q.AssessmentID, exec)
		if err != nil {
			if core.IsNotFound(err) {
				return ErrQuestionNotFound
			}
			return err
		}
		if err = svc.checkEditable(ctx, a, exec); err != nil {
			return err
		}

		applyQuestionInput(&q, in, false)
		if q, err = svc.repo.SaveQuestion(ctx, q, exec); err != nil {
			return err
		}
		return svc.touch(ctx, a, exec)
	})
	return q, err
}

func (svc *service) DeleteQuestion(ctx context.Context, actor user.User, questionID string) error {
	return svc.tx.RunInTx(ctx, func(exec core.DBExecutor) error {
		q, err := svc.repo.GetQuestion(ctx, questionID, exec)
		if err != nil {
			return err
		}
		a, err := svc.getOwned(ctx, actor, q.AssessmentID, exec)
		if err != nil {
			if core.IsNotFound(err) {
				return ErrQuestionNotFound
			}
			return err
		}
		if err = svc.checkEditable(ctx, a, exec); err != nil {
			return err
		}
		if err = svc.repo.DeleteQuestion(ctx, q.ID, exec); err != nil {
			return err
		}
		return svc.touch(ctx, a, exec)
	})
}

// checkEditable refuses question changes once students have attempted a published assessment.
func (svc *service) checkEditable(ctx context.Context, a Assessment, exec core.DBExecutor) error {
	if a.Status != StatusPublished {
		return nil
	}
	attempts, err := svc.repo.QueryAttempts(ctx, AttemptFilter{AssessmentIDs: []string{a.ID}}, exec)
	if err != nil {
		return errors.Wrap(err, "querying attempts")
	}
	if len(attempts) > 0 {
		return ErrEditPublished
	}
	return nil
}

func (svc *service) touch(ctx context.Context, a Assessment, exec core.DBExecutor) error {
	a.UpdatedAt = NowFunc().UTC()
	_, err := svc.repo.SaveAssessment(ctx, a, exec)
	return errors.Wrap(err, "updating assessment")
}

// applyQuestionInput sets the fields of q from in. On creation, true/false questions get their
// True and False choices; on edit, the existing choices are kept and the correct one is flagged.
func applyQuestionInput(q *Question, in QuestionInput, creating bool) {
	typeChanged := q.QuestionType != in.QuestionType
	q.QuestionType = in.QuestionType
	q.QuestionText = in.QuestionText
	q.Points = in.Points
	q.ExpectedAnswersCount = in.ExpectedAnswersCount
	q.Explanation = in.Explanation

	switch q.QuestionType {
	case QuestionTrueFalse:
		q.CorrectAnswers = nil
		if creating || typeChanged || len(q.Choices) != 2 {
			q.Choices = []Choice{
				{ID: newID(), QuestionID: q.ID, ChoiceText: "True", Order: 1},
				{ID: newID(), QuestionID: q.ID, ChoiceText: "False", Order: 2},
			}
		}
		for i := range q.Choices {
			q.Choices[i].IsCorrect = strings.ToLower(q.Choices[i].ChoiceText) == in.CorrectAnswer
		}

	case QuestionMultipleChoice:
		q.CorrectAnswers = nil
		if creating || typeChanged || len(in.Choices) > 0 {
			q.Choices = make([]Choice, 0, len(in.Choices))
			for i, c := range in.Choices {
				q.Choices = append(q.Choices, Choice{
					ID:         newID(),
					QuestionID: q.ID,
					ChoiceText: c.ChoiceText,
					IsCorrect:  c.IsCorrect,
					Order:      i + 1,
				})
			}
		}

	default:
		q.Choices = nil
		if creating || typeChanged || len(in.Answers) > 0 {
			q.CorrectAnswers = make([]CorrectAnswer, 0, len(in.Answers))
			for i, ca := range in.Answers {
				q.CorrectAnswers = append(q.CorrectAnswers, CorrectAnswer{
					ID:              newID(),
					QuestionID:      q.ID,
					AnswerText:      ca.AnswerText,
					IsCaseSensitive: ca.IsCaseSensitive && q.QuestionType != QuestionEssay,
					Order:           i + 1,
				})
			}
		}
	}
}
