package analytics

import (
	"encoding/json"
	"time"

	"github.com/spist/campus/core"
)

// Activity actions
const (
	ActionLogin              = "login"
	ActionLogout             = "logout"
	ActionAssessmentCreate   = "assessment_create"
	ActionAssessmentStart    = "assessment_start"
	ActionAssessmentComplete = "assessment_complete"
	ActionQuestionAdd        = "question_add"
	ActionCourseEnroll       = "course_enroll"
	ActionGradeView          = "grade_view"
	ActionProfileUpdate      = "profile_update"
)

var actionLabels = map[string]string{
	ActionLogin:              "User Login",
	ActionLogout:             "User Logout",
	ActionAssessmentCreate:   "Assessment Created",
	ActionAssessmentStart:    "Assessment Started",
	ActionAssessmentComplete: "Assessment Completed",
	ActionQuestionAdd:        "Question Added",
	ActionCourseEnroll:       "Course Enrollment",
	ActionGradeView:          "Grade Viewed",
	ActionProfileUpdate:      "Profile Updated",
}

func ActionLabel(action string) string {
	return actionLabels[action]
}

// Export types
const (
	ExportStudentPerformance = "student_performance"
	ExportAssessmentStats    = "assessment_stats"
	ExportTeacherActivity    = "teacher_activity"
)

const (
	DefaultPeriodDays = 30
	maxPeriodDays     = 366
	recentLimit       = 20
	topStudentsLimit  = 10
	topStudentsMin    = 3
	difficultyLimit   = 10
)

type Activity struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Username    string          `json:"username,omitempty"`
	Action      string          `json:"action"`
	Description string          `json:"description"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	IPAddress   string          `json:"ip_address"`
	UserAgent   string          `json:"user_agent"`
	CreatedAt   time.Time       `json:"created_at"`
}

type ActivityFilter struct {
	UserID  string
	Actions []string
	Since   time.Time
	Until   time.Time
	Limit   int
}

// Period is a half-open time range [Start, End).
type Period struct {
	Days  int       `json:"days"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewPeriod(end time.Time, days int) Period {
	if days <= 0 {
		days = DefaultPeriodDays
	}
	if days > maxPeriodDays {
		days = maxPeriodDays
	}
	return Period{Days: days, Start: end.AddDate(0, 0, -days), End: end}
}

// Previous returns the period of the same length right before p.
func (p Period) Previous() Period {
	return Period{Days: p.Days, Start: p.Start.AddDate(0, 0, -p.Days), End: p.Start}
}

// Counts are the raw counters behind the dashboards.
// Fields under "period" only take the rows created, started or completed within the queried Period.
type Counts struct {
	TotalUsers           int `json:"total_users" boil:"total_users"`
	ActiveStudents       int `json:"active_students" boil:"active_students"`
	ActiveTeachers       int `json:"active_teachers" boil:"active_teachers"`
	TotalAssessments     int `json:"total_assessments" boil:"total_assessments"`
	PublishedAssessments int `json:"published_assessments" boil:"published_assessments"`
	TotalQuestions       int `json:"total_questions" boil:"total_questions"`
	TotalAttempts        int `json:"total_attempts" boil:"total_attempts"`
	TotalAnswers         int `json:"total_answers" boil:"total_answers"`
	TotalEnrollments     int `json:"total_enrollments" boil:"total_enrollments"`
	TotalEvents          int `json:"total_events" boil:"total_events"`
	ActiveCourses        int `json:"active_courses" boil:"active_courses"`
	ActiveEnrollments    int `json:"active_enrollments" boil:"active_enrollments"`

	// period
	NewUsers           int     `json:"new_users" boil:"new_users"`
	AssessmentsCreated int     `json:"assessments_created" boil:"assessments_created"`
	QuizzesCreated     int     `json:"quizzes_created" boil:"quizzes_created"`
	ExamsCreated       int     `json:"exams_created" boil:"exams_created"`
	AttemptsStarted    int     `json:"attempts_started" boil:"attempts_started"`
	AttemptsCompleted  int     `json:"attempts_completed" boil:"attempts_completed"`
	AverageScore       float64 `json:"average_score" boil:"average_score"`
	AverageQuizScore   float64 `json:"average_quiz_score" boil:"average_quiz_score"`
	AverageExamScore   float64 `json:"average_exam_score" boil:"average_exam_score"`
	NewEnrollments     int     `json:"new_enrollments" boil:"new_enrollments"`
}

// PerformanceFilter narrows the attempts aggregated by the performance queries.
// Only completed attempts are ever aggregated.
type PerformanceFilter struct {
	StudentID    string
	AssessmentID string
	CreatedBy    string    // assessments' creator
	From         time.Time // completed_at
	To           time.Time
	MinAttempts  int
	Limit        int
}

type StudentPerformance struct {
	StudentID     string  `json:"student_id" boil:"student_id"`
	FirstName     string  `json:"first_name" boil:"first_name"`
	LastName      string  `json:"last_name" boil:"last_name"`
	Name          string  `json:"name" boil:"name"`
	Email         string  `json:"email" boil:"email"`
	TotalAttempts int     `json:"total_attempts" boil:"total_attempts"`
	AvgScore      float64 `json:"avg_score" boil:"avg_score"`
	TotalPoints   int     `json:"total_points" boil:"total_points"`
	Passed        int     `json:"passed_assessments" boil:"passed"`
	Failed        int     `json:"failed_assessments" boil:"failed"`
}

type AssessmentPerformance struct {
	AssessmentID      string  `json:"assessment_id" boil:"assessment_id"`
	Title             string  `json:"title" boil:"title"`
	AssessmentType    string  `json:"assessment_type" boil:"assessment_type"`
	Status            string  `json:"status" boil:"status"`
	TotalAttempts     int     `json:"total_attempts" boil:"total_attempts"`
	CompletedAttempts int     `json:"attempt_count" boil:"completed_attempts"`
	PassedAttempts    int     `json:"passed_attempts" boil:"passed_attempts"`
	AvgScore          float64 `json:"avg_score" boil:"avg_score"`
	CompletionRate    float64 `json:"completion_rate" boil:"-"`
	PassRate          float64 `json:"pass_rate" boil:"-"`
}

func (ap *AssessmentPerformance) computeRates() {
	ap.AvgScore = round(ap.AvgScore)
	ap.CompletionRate = percent(ap.CompletedAttempts, ap.TotalAttempts)
	ap.PassRate = percent(ap.PassedAttempts, ap.CompletedAttempts)
}

type QuestionPerformance struct {
	QuestionID      string  `json:"question_id" boil:"question_id"`
	AssessmentID    string  `json:"assessment_id" boil:"assessment_id"`
	QuestionText    string  `json:"question_text" boil:"question_text"`
	QuestionType    string  `json:"question_type" boil:"question_type"`
	AttemptCount    int     `json:"attempt_count" boil:"attempt_count"`
	CorrectCount    int     `json:"correct_count" boil:"correct_count"`
	DifficultyScore float64 `json:"difficulty_score" boil:"-"` // % of correct answers, lower is harder
}

type TypeAccuracy struct {
	QuestionType   string  `json:"question_type" boil:"question_type"`
	TotalAnswers   int     `json:"total_answers" boil:"total_answers"`
	CorrectAnswers int     `json:"correct_answers" boil:"correct_answers"`
	Accuracy       float64 `json:"accuracy" boil:"-"`
}

type GradeDistribution struct {
	A int `json:"a_grade" boil:"a_grade"` // >= 90
	B int `json:"b_grade" boil:"b_grade"` // 80 - 89
	C int `json:"c_grade" boil:"c_grade"` // 70 - 79
	D int `json:"d_grade" boil:"d_grade"` // 60 - 69
	F int `json:"f_grade" boil:"f_grade"` // < 60
}

// Add counts a percentage in its grade bucket.
func (gd *GradeDistribution) Add(percentage float64) {
	switch {
	case percentage >= 90:
		gd.A++
	case percentage >= 80:
		gd.B++
	case percentage >= 70:
		gd.C++
	case percentage >= 60:
		gd.D++
	default:
		gd.F++
	}
}

type TeacherActivity struct {
	TeacherID          string  `json:"teacher_id" boil:"teacher_id"`
	Name               string  `json:"name" boil:"name"`
	Email              string  `json:"email" boil:"email"`
	AssessmentsCreated int     `json:"assessments_created" boil:"assessments_created"`
	TotalQuestions     int     `json:"total_questions" boil:"total_questions"`
	StudentsTaught     int     `json:"students_taught" boil:"students_taught"`
	AvgStudentScore    float64 `json:"avg_student_score" boil:"avg_student_score"`
}

type ActionCount struct {
	Action string `json:"action" boil:"action"`
	Label  string `json:"label" boil:"-"`
	Count  int    `json:"count" boil:"count"`
	Users  int    `json:"users" boil:"users"`
}

// Dashboard sections

type SystemOverview struct {
	TotalUsers           int     `json:"total_users"`
	ActiveStudents       int     `json:"active_students"`
	ActiveTeachers       int     `json:"active_teachers"`
	TotalAssessments     int     `json:"total_assessments"`
	PublishedAssessments int     `json:"published_assessments"`
	TotalQuestions       int     `json:"total_questions"`
	CompletedAttempts    int     `json:"completed_attempts"`
	AverageScore         float64 `json:"average_score"`
}

type UserMetrics struct {
	ActiveUsers      int `json:"active_users"`
	NewRegistrations int `json:"new_registrations"`
	LoginCount       int `json:"login_count"`
}

type AssessmentMetrics struct {
	AssessmentsCreated       int     `json:"assessments_created"`
	AttemptsMade             int     `json:"attempts_made"`
	CompletedAttempts        int     `json:"completed_attempts"`
	CompletionRate           float64 `json:"completion_rate"`
	AvgAttemptsPerAssessment float64 `json:"avg_attempts_per_assessment"`
}

type CourseMetrics struct {
	TotalCourses         int     `json:"total_courses"`
	ActiveEnrollments    int     `json:"active_enrollments"`
	NewEnrollments       int     `json:"new_enrollments"`
	AvgStudentsPerCourse float64 `json:"avg_students_per_course"`
}

type AssessmentStatistics struct {
	QuizCount    int     `json:"quiz_count"`
	ExamCount    int     `json:"exam_count"`
	AvgQuizScore float64 `json:"avg_quiz_score"`
	AvgExamScore float64 `json:"avg_exam_score"`
}

type GrowthTrends struct {
	UserGrowth       float64 `json:"user_growth"`
	AssessmentGrowth float64 `json:"assessment_growth"`
}

type Dashboard struct {
	Period            Period               `json:"period"`
	SystemMetrics     SystemOverview       `json:"system_metrics"`
	UserMetrics       UserMetrics          `json:"user_metrics"`
	AssessmentMetrics AssessmentMetrics    `json:"assessment_metrics"`
	CourseMetrics     CourseMetrics        `json:"course_metrics"`
	RecentActivities  []Activity           `json:"recent_activities"`
	TopStudents       []StudentPerformance `json:"top_students"`
	AssessmentStats   AssessmentStatistics `json:"assessment_stats"`
	GrowthTrends      GrowthTrends         `json:"growth_trends"`
}

type StudentAnalytics struct {
	Students             []StudentPerformance    `json:"student_performance"`
	AssessmentDifficulty []AssessmentPerformance `json:"assessment_difficulty"`
	GradeDistribution    GradeDistribution       `json:"grade_distribution"`
	QuestionTypeAccuracy []TypeAccuracy          `json:"question_type_performance"`
}

type AssessmentAnalytics struct {
	Assessments        []AssessmentPerformance `json:"assessments"`
	QuestionDifficulty []QuestionPerformance   `json:"question_difficulty"`
}

type SystemAnalytics struct {
	Period   Period        `json:"period"`
	Database Counts        `json:"db_stats"`
	Activity []ActionCount `json:"activity_patterns"`
}

// Export is an analytics export: Data is served as JSON, Table as CSV or XLSX.
type Export struct {
	Data  interface{}
	Table *core.Table
}

// GrowthPercentage compares current to previous; 100 when there was nothing before.
func GrowthPercentage(previous, current int) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return round(float64(current-previous) / float64(previous) * 100)
}
