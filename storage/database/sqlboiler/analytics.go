// Package boiledrepos runs the reporting queries of analytics through sqlboiler's raw query binding.
package boiledrepos

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/analytics"
	"github.com/spist/campus/core/assessment"
	"github.com/spist/campus/core/course"
	"github.com/spist/campus/core/user"
)

type analyticsRepository struct {
	exec core.DBExecutor
}

var _ analytics.Repository = (*analyticsRepository)(nil) // interface compliance check

func NewAnalyticsRepository(exec core.DBExecutor) *analyticsRepository {
	return &analyticsRepository{exec: exec}
}

// params numbers the placeholders of a query as arguments are added.
type params []interface{}

func (p *params) add(v interface{}) string {
	*p = append(*p, v)
	return "$" + strconv.Itoa(len(*p))
}

func hasRole(alias, prefix string) string {
	return fmt.Sprintf("EXISTS (SELECT 1 FROM UNNEST(%s.roles) r WHERE r LIKE '%s%%')", alias, prefix)
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

type activityRow struct {
	ID          string      `boil:"id"`
	UserID      string      `boil:"user_id"`
	Username    null.String `boil:"username"`
	Action      string      `boil:"action"`
	Description string      `boil:"description"`
	Metadata    null.JSON   `boil:"metadata"`
	IPAddress   string      `boil:"ip_address"`
	UserAgent   string      `boil:"user_agent"`
	CreatedAt   time.Time   `boil:"created_at"`
}

func (repo analyticsRepository) CreateActivity(ctx context.Context, a analytics.Activity) error {
	meta := null.JSONFrom(a.Metadata)
	meta.Valid = len(a.Metadata) > 0
	_, err := queries.Raw(`INSERT INTO user_activity_log
		(id, user_id, action, description, metadata, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.UserID, a.Action, a.Description, meta, a.IPAddress, a.UserAgent, a.CreatedAt.UTC(),
	).ExecContext(ctx, repo.exec)
	if err != nil {
		return errors.Wrap(err, "inserting activity")
	}
	return nil
}

func (repo analyticsRepository) QueryActivity(ctx context.Context, filter analytics.ActivityFilter) ([]analytics.Activity, error) {
	var (
		p     params
		conds []string
	)
	if filter.UserID != "" {
		conds = append(conds, "l.user_id = "+p.add(filter.UserID))
	}
	if len(filter.Actions) > 0 {
		conds = append(conds, "l.action = ANY ("+p.add(pq.Array(filter.Actions))+")")
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "l.created_at >= "+p.add(filter.Since.UTC()))
	}
	if !filter.Until.IsZero() {
		conds = append(conds, "l.created_at < "+p.add(filter.Until.UTC()))
	}
	q := `SELECT l.id, l.user_id, u.username, l.action, l.description, l.metadata, l.ip_address, l.user_agent, l.created_at
		FROM user_activity_log l LEFT JOIN "user" u ON u.id = l.user_id` + whereClause(conds) + ` ORDER BY l.created_at DESC`
	if filter.Limit > 0 {
		q += " LIMIT " + p.add(filter.Limit)
	}

	var rows []activityRow
	if err := queries.Raw(q, p...).Bind(ctx, repo.exec, &rows); err != nil {
		return nil, errors.Wrap(err, "querying activity")
	}
	list := make([]analytics.Activity, 0, len(rows))
	for _, row := range rows {
		a := analytics.Activity{
			ID:          row.ID,
			UserID:      row.UserID,
			Username:    row.Username.String,
			Action:      row.Action,
			Description: row.Description,
			IPAddress:   row.IPAddress,
			UserAgent:   row.UserAgent,
			CreatedAt:   row.CreatedAt,
		}
		if row.Metadata.Valid {
			a.Metadata = []byte(row.Metadata.JSON)
		}
		list = append(list, a)
	}
	return list, nil
}

func (repo analyticsRepository) ActionCounts(ctx context.Context, p analytics.Period) ([]analytics.ActionCount, error) {
	var counts []analytics.ActionCount
	err := queries.Raw(`SELECT action, COUNT(*) AS count, COUNT(DISTINCT user_id) AS users
		FROM user_activity_log WHERE created_at >= $1 AND created_at < $2
		GROUP BY action ORDER BY count DESC, action`,
		p.Start.UTC(), p.End.UTC(),
	).Bind(ctx, repo.exec, &counts)
	if err != nil {
		return nil, errors.Wrap(err, "counting actions")
	}
	if counts == nil {
		counts = []analytics.ActionCount{}
	}
	return counts, nil
}

func (repo analyticsRepository) CountActiveUsers(ctx context.Context, p analytics.Period) (int, error) {
	var res struct {
		N int `boil:"n"`
	}
	err := queries.Raw(`SELECT COUNT(DISTINCT user_id) AS n
		FROM user_activity_log WHERE created_at >= $1 AND created_at < $2`,
		p.Start.UTC(), p.End.UTC(),
	).Bind(ctx, repo.exec, &res)
	if err != nil {
		return 0, errors.Wrap(err, "counting active users")
	}
	return res.N, nil
}

func (repo analyticsRepository) Counts(ctx context.Context, p analytics.Period) (analytics.Counts, error) {
	var c analytics.Counts
	completedIn := `sa.is_completed AND sa.completed_at >= $1 AND sa.completed_at < $2`
	q := `SELECT
		(SELECT COUNT(*) FROM "user") AS total_users,
		(SELECT COUNT(*) FROM "user" u WHERE COALESCE(u.is_active, true) AND ` + hasRole("u", user.RoleStudent) + `) AS active_students,
		(SELECT COUNT(*) FROM "user" u WHERE COALESCE(u.is_active, true) AND ` + hasRole("u", user.RoleTeacher) + `) AS active_teachers,
		(SELECT COUNT(*) FROM assessment) AS total_assessments,
		(SELECT COUNT(*) FROM assessment WHERE status = $3) AS published_assessments,
		(SELECT COUNT(*) FROM question) AS total_questions,
		(SELECT COUNT(*) FROM student_attempt) AS total_attempts,
		(SELECT COUNT(*) FROM student_answer) AS total_answers,
		(SELECT COUNT(*) FROM student_enrollment) AS total_enrollments,
		(SELECT COUNT(*) FROM calendar_event) AS total_events,
		(SELECT COUNT(*) FROM course WHERE is_active) AS active_courses,
		(SELECT COUNT(*) FROM student_enrollment WHERE status = $6) AS active_enrollments,
		(SELECT COUNT(*) FROM "user" WHERE created_at >= $1 AND created_at < $2) AS new_users,
		(SELECT COUNT(*) FROM assessment WHERE created_at >= $1 AND created_at < $2) AS assessments_created,
		(SELECT COUNT(*) FROM assessment WHERE created_at >= $1 AND created_at < $2 AND assessment_type = $4) AS quizzes_created,
		(SELECT COUNT(*) FROM assessment WHERE created_at >= $1 AND created_at < $2 AND assessment_type = $5) AS exams_created,
		(SELECT COUNT(*) FROM student_attempt WHERE started_at >= $1 AND started_at < $2) AS attempts_started,
		(SELECT COUNT(*) FROM student_attempt sa WHERE ` + completedIn + `) AS attempts_completed,
		(SELECT COALESCE(AVG(sa.percentage), 0) FROM student_attempt sa WHERE ` + completedIn + `) AS average_score,
		(SELECT COALESCE(AVG(sa.percentage), 0) FROM student_attempt sa JOIN assessment a ON a.id = sa.assessment_id
			WHERE ` + completedIn + ` AND a.assessment_type = $4) AS average_quiz_score,
		(SELECT COALESCE(AVG(sa.percentage), 0) FROM student_attempt sa JOIN assessment a ON a.id = sa.assessment_id
			WHERE ` + completedIn + ` AND a.assessment_type = $5) AS average_exam_score,
		(SELECT COUNT(*) FROM student_enrollment WHERE enrolled_at >= $1 AND enrolled_at < $2) AS new_enrollments`
	err := queries.Raw(q,
		p.Start.UTC(), p.End.UTC(), assessment.StatusPublished, assessment.TypeQuiz, assessment.TypeExam, course.StatusEnrolled,
	).Bind(ctx, repo.exec, &c)
	if err != nil {
		return analytics.Counts{}, errors.Wrap(err, "counting records")
	}
	return c, nil
}

// completedConds narrows the completed attempts "sa" of the assessments "a" to filter.
func completedConds(filter analytics.PerformanceFilter, p *params) []string {
	conds := []string{"sa.is_completed", "sa.completed_at IS NOT NULL"}
	if filter.StudentID != "" {
		conds = append(conds, "sa.student_id = "+p.add(filter.StudentID))
	}
	if filter.AssessmentID != "" {
		conds = append(conds, "sa.assessment_id = "+p.add(filter.AssessmentID))
	}
	if filter.CreatedBy != "" {
		conds = append(conds, "a.created_by = "+p.add(filter.CreatedBy))
	}
	if !filter.From.IsZero() {
		conds = append(conds, "sa.completed_at >= "+p.add(filter.From.UTC()))
	}
	if !filter.To.IsZero() {
		conds = append(conds, "sa.completed_at < "+p.add(filter.To.UTC()))
	}
	return conds
}

func (repo analyticsRepository) StudentPerformance(ctx context.Context, filter analytics.PerformanceFilter) ([]analytics.StudentPerformance, error) {
	var p params
	conds := append(completedConds(filter, &p), hasRole("u", user.RoleStudent))
	q := `SELECT u.id AS student_id, u.first_name, u.last_name, u.name, COALESCE(u.email, '') AS email,
		COUNT(*) AS total_attempts,
		AVG(sa.percentage) AS avg_score,
		COALESCE(SUM(sa.score), 0) AS total_points,
		COUNT(*) FILTER (WHERE sa.is_passed) AS passed,
		COUNT(*) FILTER (WHERE NOT sa.is_passed) AS failed
		FROM student_attempt sa
		JOIN "user" u ON u.id = sa.student_id
		JOIN assessment a ON a.id = sa.assessment_id` + whereClause(conds) + `
		GROUP BY u.id`
	if filter.MinAttempts > 0 {
		q += " HAVING COUNT(*) >= " + p.add(filter.MinAttempts)
	}
	q += " ORDER BY avg_score DESC, u.id"
	if filter.Limit > 0 {
		q += " LIMIT " + p.add(filter.Limit)
	}

	var list []analytics.StudentPerformance
	if err := queries.Raw(q, p...).Bind(ctx, repo.exec, &list); err != nil {
		return nil, errors.Wrap(err, "querying student performance")
	}
	if list == nil {
		list = []analytics.StudentPerformance{}
	}
	return list, nil
}

func (repo analyticsRepository) AssessmentPerformance(ctx context.Context, filter analytics.PerformanceFilter) ([]analytics.AssessmentPerformance, error) {
	var (
		p     params
		conds []string
	)
	join := []string{"sa.assessment_id = a.id"}
	if filter.StudentID != "" {
		join = append(join, "sa.student_id = "+p.add(filter.StudentID))
	}
	if !filter.From.IsZero() {
		join = append(join, "COALESCE(sa.completed_at, sa.started_at) >= "+p.add(filter.From.UTC()))
	}
	if !filter.To.IsZero() {
		join = append(join, "COALESCE(sa.completed_at, sa.started_at) < "+p.add(filter.To.UTC()))
	}
	if filter.AssessmentID != "" {
		conds = append(conds, "a.id = "+p.add(filter.AssessmentID))
	}
	if filter.CreatedBy != "" {
		conds = append(conds, "a.created_by = "+p.add(filter.CreatedBy))
	}
	q := `SELECT a.id AS assessment_id, a.title, a.assessment_type, a.status,
		COUNT(sa.id) AS total_attempts,
		COUNT(sa.id) FILTER (WHERE sa.is_completed) AS completed_attempts,
		COUNT(sa.id) FILTER (WHERE sa.is_completed AND sa.is_passed) AS passed_attempts,
		COALESCE(AVG(sa.percentage) FILTER (WHERE sa.is_completed), 0) AS avg_score
		FROM assessment a
		LEFT JOIN student_attempt sa ON ` + strings.Join(join, " AND ") + whereClause(conds) + `
		GROUP BY a.id
		ORDER BY a.title`

	var list []analytics.AssessmentPerformance
	if err := queries.Raw(q, p...).Bind(ctx, repo.exec, &list); err != nil {
		return nil, errors.Wrap(err, "querying assessment performance")
	}
	if list == nil {
		list = []analytics.AssessmentPerformance{}
	}
	return list, nil
}

const gradedAnswersFrom = `
		FROM student_answer ans
		JOIN question q ON q.id = ans.question_id
		JOIN student_attempt sa ON sa.id = ans.attempt_id
		JOIN assessment a ON a.id = sa.assessment_id`

func (repo analyticsRepository) QuestionPerformance(ctx context.Context, filter analytics.PerformanceFilter) ([]analytics.QuestionPerformance, error) {
	var p params
	q := `SELECT q.id AS question_id, q.assessment_id, q.question_text, q.question_type,
		COUNT(*) AS attempt_count,
		COUNT(*) FILTER (WHERE ans.is_correct) AS correct_count` +
		gradedAnswersFrom + whereClause(completedConds(filter, &p)) + `
		GROUP BY q.id
		ORDER BY q.id`

	var list []analytics.QuestionPerformance
	if err := queries.Raw(q, p...).Bind(ctx, repo.exec, &list); err != nil {
		return nil, errors.Wrap(err, "querying question performance")
	}
	if list == nil {
		list = []analytics.QuestionPerformance{}
	}
	return list, nil
}

func (repo analyticsRepository) GradeDistribution(ctx context.Context, filter analytics.PerformanceFilter) (analytics.GradeDistribution, error) {
	var p params
	q := `SELECT
		COUNT(*) FILTER (WHERE sa.percentage >= 90) AS a_grade,
		COUNT(*) FILTER (WHERE sa.percentage >= 80 AND sa.percentage < 90) AS b_grade,
		COUNT(*) FILTER (WHERE sa.percentage >= 70 AND sa.percentage < 80) AS c_grade,
		COUNT(*) FILTER (WHERE sa.percentage >= 60 AND sa.percentage < 70) AS d_grade,
		COUNT(*) FILTER (WHERE sa.percentage < 60) AS f_grade
		FROM student_attempt sa
		JOIN assessment a ON a.id = sa.assessment_id` + whereClause(completedConds(filter, &p))

	var gd analytics.GradeDistribution
	if err := queries.Raw(q, p...).Bind(ctx, repo.exec, &gd); err != nil {
		return analytics.GradeDistribution{}, errors.Wrap(err, "querying grade distribution")
	}
	return gd, nil
}

func (repo analyticsRepository) TypeAccuracy(ctx context.Context, filter analytics.PerformanceFilter) ([]analytics.TypeAccuracy, error) {
	var p params
	q := `SELECT q.question_type,
		COUNT(*) AS total_answers,
		COUNT(*) FILTER (WHERE ans.is_correct) AS correct_answers` +
		gradedAnswersFrom + whereClause(completedConds(filter, &p)) + `
		GROUP BY q.question_type`

	var rows []analytics.TypeAccuracy
	if err := queries.Raw(q, p...).Bind(ctx, repo.exec, &rows); err != nil {
		return nil, errors.Wrap(err, "querying question type accuracy")
	}
	list := make([]analytics.TypeAccuracy, 0, len(rows))
	for _, qt := range assessment.QuestionTypes {
		for _, ta := range rows {
			if ta.QuestionType == qt {
				list = append(list, ta)
			}
		}
	}
	return list, nil
}

type teacherRow struct {
	ID                 string      `boil:"id"`
	Name               string      `boil:"name"`
	FirstName          string      `boil:"first_name"`
	LastName           string      `boil:"last_name"`
	Username           null.String `boil:"username"`
	Email              null.String `boil:"email"`
	AssessmentsCreated int         `boil:"assessments_created"`
	TotalQuestions     int         `boil:"total_questions"`
	StudentsTaught     int         `boil:"students_taught"`
	AvgStudentScore    float64     `boil:"avg_student_score"`
}

func (repo analyticsRepository) TeacherActivity(ctx context.Context) ([]analytics.TeacherActivity, error) {
	q := `SELECT u.id, u.name, u.first_name, u.last_name, u.username, u.email,
		(SELECT COUNT(*) FROM assessment a WHERE a.created_by = u.id) AS assessments_created,
		(SELECT COUNT(*) FROM question q JOIN assessment a ON a.id = q.assessment_id
			WHERE a.created_by = u.id) AS total_questions,
		(SELECT COUNT(DISTINCT sa.student_id) FROM student_attempt sa JOIN assessment a ON a.id = sa.assessment_id
			WHERE a.created_by = u.id) AS students_taught,
		(SELECT COALESCE(AVG(sa.percentage), 0) FROM student_attempt sa JOIN assessment a ON a.id = sa.assessment_id
			WHERE a.created_by = u.id AND sa.is_completed) AS avg_student_score
		FROM "user" u
		WHERE ` + hasRole("u", user.RoleTeacher)

	var rows []teacherRow
	if err := queries.Raw(q).Bind(ctx, repo.exec, &rows); err != nil {
		return nil, errors.Wrap(err, "querying teacher activity")
	}
	list := make([]analytics.TeacherActivity, 0, len(rows))
	for _, row := range rows {
		usr := user.User{
			Name:      row.Name,
			FirstName: row.FirstName,
			LastName:  row.LastName,
			Username:  row.Username.String,
			Email:     row.Email.String,
		}
		list = append(list, analytics.TeacherActivity{
			TeacherID:          row.ID,
			Name:               usr.FullName(),
			Email:              usr.Email,
			AssessmentsCreated: row.AssessmentsCreated,
			TotalQuestions:     row.TotalQuestions,
			StudentsTaught:     row.StudentsTaught,
			AvgStudentScore:    row.AvgStudentScore,
		})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}
