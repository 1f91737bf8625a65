package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/user"
)

var (
	NowFunc = time.Now // mockable

	ErrInvalidExportType = core.NewValidationError(errors.New("Invalid export type"))
)

const dashboardTTL = 10 * time.Minute

type (
	Repository interface {
		CreateActivity(ctx context.Context, a Activity) error
		// QueryActivity returns the matching activity, newest first.
		QueryActivity(ctx context.Context, filter ActivityFilter) ([]Activity, error)
		// ActionCounts counts the activity of the period per action, along with the distinct users behind it.
		ActionCounts(ctx context.Context, p Period) ([]ActionCount, error)
		CountActiveUsers(ctx context.Context, p Period) (int, error)

		Counts(ctx context.Context, p Period) (Counts, error)
		// StudentPerformance returns students ordered by average score, best first.
		StudentPerformance(ctx context.Context, filter PerformanceFilter) ([]StudentPerformance, error)
		AssessmentPerformance(ctx context.Context, filter PerformanceFilter) ([]AssessmentPerformance, error)
		QuestionPerformance(ctx context.Context, filter PerformanceFilter) ([]QuestionPerformance, error)
		GradeDistribution(ctx context.Context, filter PerformanceFilter) (GradeDistribution, error)
		TypeAccuracy(ctx context.Context, filter PerformanceFilter) ([]TypeAccuracy, error)
		TeacherActivity(ctx context.Context) ([]TeacherActivity, error)
	}

	ServiceInterface interface {
		// Log records the activity of usr; failures are logged, never returned.
		Log(ctx context.Context, usr user.User, action, description string, meta map[string]interface{}, ip, userAgent string)
		RecentActivity(ctx context.Context, actor user.User, limit int) ([]Activity, error)
		Dashboard(ctx context.Context, actor user.User, days int) (Dashboard, error)
		StudentAnalytics(ctx context.Context, actor user.User, filter PerformanceFilter) (StudentAnalytics, error)
		TeacherAnalytics(ctx context.Context, actor user.User) ([]TeacherActivity, error)
		AssessmentAnalytics(ctx context.Context, actor user.User) (AssessmentAnalytics, error)
		SystemAnalytics(ctx context.Context, actor user.User, days int) (SystemAnalytics, error)
		Export(ctx context.Context, actor user.User, exportType string) (Export, error)
	}

	service struct {
		repo   Repository
		cache  core.Cache
		logger core.Logger
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository, cache core.Cache, logger core.Logger) *service {
	return &service{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

func round(f float64) float64 {
	return core.Round(f, 2)
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round(float64(part) / float64(total) * 100)
}

func ratio(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round(float64(part) / float64(total))
}

// scope restricts the performance queries of teachers to their own assessments.
func scope(actor user.User, filter PerformanceFilter) PerformanceFilter {
	if !actor.IsAdmin() {
		filter.CreatedBy = actor.ID
	}
	return filter
}

func (svc *service) Log(ctx context.Context, usr user.User, action, description string, meta map[string]interface{}, ip, userAgent string) {
	a := Activity{
		ID:          uuid.New().String(),
		UserID:      usr.ID,
		Username:    usr.Username,
		Action:      action,
		Description: description,
		IPAddress:   ip,
		UserAgent:   userAgent,
		CreatedAt:   NowFunc().UTC(),
	}
	if a.Description == "" {
		a.Description = ActionLabel(action)
	}
	if len(meta) > 0 {
		if data, err := json.Marshal(meta); err == nil {
			a.Metadata = data
		}
	}
	if err := svc.repo.CreateActivity(ctx, a); err != nil {
		svc.logger.Error(fmt.Sprintf("logging %s activity: %v", action, err), err, usr)
	}
}

func (svc *service) RecentActivity(ctx context.Context, actor user.User, limit int) ([]Activity, error) {
	if !actor.IsStaff() {
		return nil, core.ErrForbidden
	}
	if limit <= 0 || limit > 100 {
		limit = recentLimit
	}
	return svc.repo.QueryActivity(ctx, ActivityFilter{Limit: limit})
}

func dashboardKey(days int) string {
	return fmt.Sprintf("analytics:dashboard:%d", days)
}

// Dashboard returns the school-wide metrics of the last `days` days.
// Results are cached for 10 minutes.
func (svc *service) Dashboard(ctx context.Context, actor user.User, days int) (Dashboard, error) {
	if !actor.IsStaff() {
		return Dashboard{}, core.ErrForbidden
	}
	period := NewPeriod(NowFunc().UTC(), days)

	var dash Dashboard
	key := dashboardKey(period.Days)
	if found, err := svc.cache.Get(ctx, key, &dash); err != nil {
		svc.logger.Warn(fmt.Sprintf("reading cached dashboard: %v", err), err)
	} else if found {
		return dash, nil
	}

	dash, err := svc.dashboard(ctx, period)
	if err != nil {
		return Dashboard{}, err
	}
	if err := svc.cache.Set(ctx, key, dash, dashboardTTL); err != nil {
		svc.logger.Warn(fmt.Sprintf("caching dashboard: %v", err), err)
	}
	return dash, nil
}

func (svc *service) dashboard(ctx context.Context, period Period) (Dashboard, error) {
	counts, err := svc.repo.Counts(ctx, period)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "counting")
	}
	prev, err := svc.repo.Counts(ctx, period.Previous())
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "counting previous period")
	}
	activeUsers, err := svc.repo.CountActiveUsers(ctx, period)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "counting active users")
	}
	actions, err := svc.repo.ActionCounts(ctx, period)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "counting activity")
	}
	var logins int
	for _, ac := range actions {
		if ac.Action == ActionLogin {
			logins = ac.Count
		}
	}
	recent, err := svc.repo.QueryActivity(ctx, ActivityFilter{Since: period.Start, Limit: recentLimit})
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "querying recent activity")
	}
	top, err := svc.repo.StudentPerformance(ctx, PerformanceFilter{
		From:        period.Start,
		To:          period.End,
		MinAttempts: topStudentsMin,
		Limit:       topStudentsLimit,
	})
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "querying top students")
	}
	for i := range top {
		top[i].AvgScore = round(top[i].AvgScore)
	}

	return Dashboard{
		Period: period,
		SystemMetrics: SystemOverview{
			TotalUsers:           counts.TotalUsers,
			ActiveStudents:       counts.ActiveStudents,
			ActiveTeachers:       counts.ActiveTeachers,
			TotalAssessments:     counts.TotalAssessments,
			PublishedAssessments: counts.PublishedAssessments,
			TotalQuestions:       counts.TotalQuestions,
			CompletedAttempts:    counts.AttemptsCompleted,
			AverageScore:         round(counts.AverageScore),
		},
		UserMetrics: UserMetrics{
			ActiveUsers:      activeUsers,
			NewRegistrations: counts.NewUsers,
			LoginCount:       logins,
		},
		AssessmentMetrics: AssessmentMetrics{
			AssessmentsCreated:       counts.AssessmentsCreated,
			AttemptsMade:             counts.AttemptsStarted,
			CompletedAttempts:        counts.AttemptsCompleted,
			CompletionRate:           percent(counts.AttemptsCompleted, counts.AttemptsStarted),
			AvgAttemptsPerAssessment: ratio(counts.AttemptsStarted, counts.AssessmentsCreated),
		},
		CourseMetrics: CourseMetrics{
			TotalCourses:         counts.ActiveCourses,
			ActiveEnrollments:    counts.ActiveEnrollments,
			NewEnrollments:       counts.NewEnrollments,
			AvgStudentsPerCourse: ratio(counts.ActiveEnrollments, counts.ActiveCourses),
		},
		RecentActivities: nonNilActivities(recent),
		TopStudents:      nonNilStudents(top),
		AssessmentStats: AssessmentStatistics{
			QuizCount:    counts.QuizzesCreated,
			ExamCount:    counts.ExamsCreated,
			AvgQuizScore: round(counts.AverageQuizScore),
			AvgExamScore: round(counts.AverageExamScore),
		},
		GrowthTrends: GrowthTrends{
			UserGrowth:       GrowthPercentage(prev.NewUsers, counts.NewUsers),
			AssessmentGrowth: GrowthPercentage(prev.AssessmentsCreated, counts.AssessmentsCreated),
		},
	}, nil
}

func (svc *service) StudentAnalytics(ctx context.Context, actor user.User, filter PerformanceFilter) (StudentAnalytics, error) {
	if !actor.IsStaff() {
		return StudentAnalytics{}, core.ErrForbidden
	}
	filter = scope(actor, filter)

	students, err := svc.repo.StudentPerformance(ctx, filter)
	if err != nil {
		return StudentAnalytics{}, errors.Wrap(err, "querying student performance")
	}
	for i := range students {
		students[i].AvgScore = round(students[i].AvgScore)
	}

	assessments, err := svc.repo.AssessmentPerformance(ctx, filter)
	if err != nil {
		return StudentAnalytics{}, errors.Wrap(err, "querying assessment performance")
	}
	difficulty := make([]AssessmentPerformance, 0, len(assessments))
	for _, ap := range assessments {
		if ap.CompletedAttempts > 0 {
			ap.computeRates()
			difficulty = append(difficulty, ap)
		}
	}
	// hardest first
	sort.SliceStable(difficulty, func(i, j int) bool { return difficulty[i].AvgScore < difficulty[j].AvgScore })
	if len(difficulty) > difficultyLimit {
		difficulty = difficulty[:difficultyLimit]
	}

	grades, err := svc.repo.GradeDistribution(ctx, filter)
	if err != nil {
		return StudentAnalytics{}, errors.Wrap(err, "querying grade distribution")
	}
	accuracy, err := svc.repo.TypeAccuracy(ctx, filter)
	if err != nil {
		return StudentAnalytics{}, errors.Wrap(err, "querying question type accuracy")
	}
	for i := range accuracy {
		accuracy[i].Accuracy = percent(accuracy[i].CorrectAnswers, accuracy[i].TotalAnswers)
	}

	return StudentAnalytics{
		Students:             nonNilStudents(students),
		AssessmentDifficulty: difficulty,
		GradeDistribution:    grades,
		QuestionTypeAccuracy: accuracy,
	}, nil
}

func (svc *service) TeacherAnalytics(ctx context.Context, actor user.User) ([]TeacherActivity, error) {
	if !actor.IsStaff() {
		return nil, core.ErrForbidden
	}
	teachers, err := svc.repo.TeacherActivity(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying teacher activity")
	}
	result := make([]TeacherActivity, 0, len(teachers))
	for _, t := range teachers {
		if !actor.IsAdmin() && t.TeacherID != actor.ID {
			continue
		}
		t.AvgStudentScore = round(t.AvgStudentScore)
		result = append(result, t)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].AssessmentsCreated > result[j].AssessmentsCreated })
	return result, nil
}

func (svc *service) AssessmentAnalytics(ctx context.Context, actor user.User) (AssessmentAnalytics, error) {
	if !actor.IsStaff() {
		return AssessmentAnalytics{}, core.ErrForbidden
	}
	filter := scope(actor, PerformanceFilter{})

	assessments, err := svc.repo.AssessmentPerformance(ctx, filter)
	if err != nil {
		return AssessmentAnalytics{}, errors.Wrap(err, "querying assessment performance")
	}
	published := make([]AssessmentPerformance, 0, len(assessments))
	for _, ap := range assessments {
		if ap.Status == "published" {
			ap.computeRates()
			published = append(published, ap)
		}
	}
	sort.SliceStable(published, func(i, j int) bool { return published[i].CompletedAttempts > published[j].CompletedAttempts })

	questions, err := svc.repo.QuestionPerformance(ctx, filter)
	if err != nil {
		return AssessmentAnalytics{}, errors.Wrap(err, "querying question performance")
	}
	for i := range questions {
		questions[i].DifficultyScore = percent(questions[i].CorrectCount, questions[i].AttemptCount)
	}
	sort.SliceStable(questions, func(i, j int) bool { return questions[i].DifficultyScore < questions[j].DifficultyScore })
	if questions == nil {
		questions = []QuestionPerformance{}
	}

	return AssessmentAnalytics{Assessments: published, QuestionDifficulty: questions}, nil
}

func (svc *service) SystemAnalytics(ctx context.Context, actor user.User, days int) (SystemAnalytics, error) {
	if !actor.IsAdmin() {
		return SystemAnalytics{}, core.ErrForbidden
	}
	period := NewPeriod(NowFunc().UTC(), days)
	counts, err := svc.repo.Counts(ctx, period)
	if err != nil {
		return SystemAnalytics{}, errors.Wrap(err, "counting")
	}
	actions, err := svc.repo.ActionCounts(ctx, period)
	if err != nil {
		return SystemAnalytics{}, errors.Wrap(err, "counting activity")
	}
	for i := range actions {
		actions[i].Label = ActionLabel(actions[i].Action)
	}
	sort.SliceStable(actions, func(i, j int) bool { return actions[i].Count > actions[j].Count })
	if actions == nil {
		actions = []ActionCount{}
	}
	counts.AverageScore = round(counts.AverageScore)
	counts.AverageQuizScore = round(counts.AverageQuizScore)
	counts.AverageExamScore = round(counts.AverageExamScore)
	return SystemAnalytics{Period: period, Database: counts, Activity: actions}, nil
}

// Export builds one of the analytics exports, scoped like the analytics pages.
func (svc *service) Export(ctx context.Context, actor user.User, exportType string) (Export, error) {
	if !actor.IsStaff() {
		return Export{}, core.ErrForbidden
	}
	if exportType == "" {
		exportType = ExportStudentPerformance
	}

	switch exportType {
	case ExportStudentPerformance:
		sa, err := svc.StudentAnalytics(ctx, actor, PerformanceFilter{})
		if err != nil {
			return Export{}, err
		}
		tbl := &core.Table{
			Name:    "Student performance",
			Headers: []string{"Student", "Email", "Attempts", "Average Score", "Total Points", "Passed", "Failed"},
		}
		for _, sp := range sa.Students {
			tbl.AddRow(studentName(sp), sp.Email, sp.TotalAttempts, sp.AvgScore, sp.TotalPoints, sp.Passed, sp.Failed)
		}
		return Export{Data: sa.Students, Table: tbl}, nil

	case ExportAssessmentStats:
		aa, err := svc.AssessmentAnalytics(ctx, actor)
		if err != nil {
			return Export{}, err
		}
		tbl := &core.Table{
			Name: "Assessment statistics",
			Headers: []string{
				"Assessment", "Type", "Attempts", "Completed", "Average Score", "Completion Rate", "Pass Rate",
			},
		}
		for _, ap := range aa.Assessments {
			tbl.AddRow(ap.Title, ap.AssessmentType, ap.TotalAttempts, ap.CompletedAttempts, ap.AvgScore, ap.CompletionRate, ap.PassRate)
		}
		return Export{Data: aa.Assessments, Table: tbl}, nil

	case ExportTeacherActivity:
		teachers, err := svc.TeacherAnalytics(ctx, actor)
		if err != nil {
			return Export{}, err
		}
		tbl := &core.Table{
			Name:    "Teacher activity",
			Headers: []string{"Teacher", "Email", "Assessments Created", "Questions", "Students Taught", "Average Student Score"},
		}
		for _, t := range teachers {
			tbl.AddRow(t.Name, t.Email, t.AssessmentsCreated, t.TotalQuestions, t.StudentsTaught, t.AvgStudentScore)
		}
		return Export{Data: teachers, Table: tbl}, nil
	}
	return Export{}, ErrInvalidExportType
}

func studentName(sp StudentPerformance) string {
	if sp.Name != "" {
		return sp.Name
	}
	return sp.FirstName + " " + sp.LastName
}

func nonNilActivities(a []Activity) []Activity {
	if a == nil {
		return []Activity{}
	}
	return a
}

func nonNilStudents(s []StudentPerformance) []StudentPerformance {
	if s == nil {
		return []StudentPerformance{}
	}
	return s
}

// Average returns the mean of values, 0 for none.
func Average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
