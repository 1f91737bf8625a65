package docparse

import "time"

// Choice is a lettered option of an extracted multiple choice question.
type Choice struct {
	Letter    string `json:"letter"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// Question is a question found in a document.
type Question struct {
	Number         int      `json:"number"`
	QuestionText   string   `json:"question_text"`
	QuestionType   string   `json:"question_type"`
	Points         int      `json:"points"`
	Order          int      `json:"order"`
	Choices        []Choice `json:"choices"`
	CorrectAnswers []string `json:"correct_answers"`
	Explanation    string   `json:"explanation"`
	Confidence     float64  `json:"confidence"`
}

func (q Question) HasAnswer() bool {
	if len(q.CorrectAnswers) > 0 {
		return true
	}
	for _, c := range q.Choices {
		if c.IsCorrect {
			return true
		}
	}
	return false
}

type Step struct {
	Step      string    `json:"step"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

type Statistics struct {
	TotalLines      int            `json:"total_lines"`
	TotalPages      int            `json:"total_pages,omitempty"`
	QuestionsFound  int            `json:"questions_found"`
	QuestionsByType map[string]int `json:"questions_by_type"`
	ConfidenceScore float64        `json:"confidence_score"`
}

type ProcessingLog struct {
	StartTime  time.Time  `json:"start_time"`
	EndTime    time.Time  `json:"end_time"`
	Steps      []Step     `json:"steps"`
	Warnings   []string   `json:"warnings"`
	Statistics Statistics `json:"statistics"`
}

// Result of parsing a document.
type Result struct {
	Questions            []Question    `json:"questions"`
	TotalQuestions       int           `json:"total_questions"`
	QuestionsWithAnswers int           `json:"questions_with_answers"`
	ProcessingLog        ProcessingLog `json:"processing_log"`
	Errors               []string      `json:"errors"`
	Confidence           float64       `json:"confidence"`
}

// Complete reports whether the result can be used without review.
func (r Result) Complete(threshold float64) bool {
	return len(r.Questions) > 0 && r.Confidence >= threshold && r.QuestionsWithAnswers == r.TotalQuestions
}

func (r *Result) refresh() {
	r.TotalQuestions = len(r.Questions)
	r.QuestionsWithAnswers = 0
	byType := make(map[string]int)
	for _, q := range r.Questions {
		if q.HasAnswer() {
			r.QuestionsWithAnswers++
		}
		byType[q.QuestionType]++
	}
	r.Confidence = Confidence(r.Questions)
	r.ProcessingLog.Statistics.QuestionsFound = r.TotalQuestions
	r.ProcessingLog.Statistics.QuestionsByType = byType
	r.ProcessingLog.Statistics.ConfidenceScore = r.Confidence
}
