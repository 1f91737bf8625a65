package docparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/assessment"
)

const maxQuestionText = 500

var NowFunc = time.Now // mockable

var (
	questionNumberPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\s*(\d+)\.\s*`),                   // 1. Question
		regexp.MustCompile(`^\s*(\d+)\)\s*`),                   // 1) Question
		regexp.MustCompile(`(?i)^\s*Question\s+(\d+)[:.]?\s*`), // Question 1:
		regexp.MustCompile(`(?i)^\s*Q\.?\s*(\d+)[:.]?\s*`),     // Q1. or Q.1:
		regexp.MustCompile(`(?i)^\s*No\.?\s*(\d+)[:.]?\s*`),    // No. 1
	}

	choicePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^\s*([a-z])\.\s*(.+)$`),   // A. Choice
		regexp.MustCompile(`(?i)^\s*([a-z])\)\s*(.+)$`),   // A) Choice
		regexp.MustCompile(`(?i)^\s*\(([a-z])\)\s*(.+)$`), // (A) Choice
	}

	answerPattern    = regexp.MustCompile(`(?i)^\s*(?:(?:answers?|correct(?:\s+answers?)?)(?:\s*[:.]\s*|\s+)|key\s*[:.]\s*)(.+)$`)
	answerKeyPattern = regexp.MustCompile(`^\s*(\d+)\s*[.):-]\s*(.+?)\s*$`)

	typeIndicators = []struct {
		qtype    string
		patterns []*regexp.Regexp
	}{
		{assessment.QuestionMultipleChoice, compileAll(`\bchoose\b`, `\bselect\b`, `\bmultiple choice\b`, `\boptions?\b`)},
		{assessment.QuestionTrueFalse, compileAll(`\btrue\s+or\s+false\b`, `\bt/f\b`, `\btrue\s*[/\\]\s*false\b`)},
		{assessment.QuestionIdentification, compileAll(`\bidentify\b`, `\bname\b`, `\bwhat\s+is\b`, `\bdefine\b`)},
		{assessment.QuestionEnumeration, compileAll(`\benumerate\b`, `\blist\b`, `\bgive\s+\d+\b`, `\bname\s+\d+\b`)},
		{assessment.QuestionEssay, compileAll(`\bexplain\b`, `\bdiscuss\b`, `\bdescribe\b`, `\banalyze\b`, `\bevaluate\b`, `\bcompare\b`, `\bcontrast\b`)},
	}

	trueFalseWords = compileAll(`(?i)\b(true|false)\b`, `(?i)\b(t|f)\b`, `(?i)\b(correct|incorrect)\b`, `(?i)\b(yes|no)\b`)
	blankPatterns  = compileAll(`_{3,}`, `\[.*?\]`, `\(.*?\)`)
)

func compileAll(exprs ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		res[i] = regexp.MustCompile(expr)
	}
	return res
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// DetectType guesses the question type from its text.
func DetectType(text string) string {
	lower := strings.ToLower(text)
	for _, ti := range typeIndicators {
		if matchAny(ti.patterns, lower) {
			return ti.qtype
		}
	}
	if matchAny(trueFalseWords, text) {
		return assessment.QuestionTrueFalse
	}
	if matchAny(blankPatterns, text) {
		// fill in the blank
		return assessment.QuestionIdentification
	}
	return assessment.QuestionMultipleChoice
}

func matchQuestionStart(line string) (int, string, bool) {
	for _, re := range questionNumberPatterns {
		if m := re.FindStringSubmatchIndex(line); m != nil {
			num, _ := strconv.Atoi(line[m[2]:m[3]])
			return num, strings.TrimSpace(line[m[1]:]), true
		}
	}
	return 0, "", false
}

func matchChoice(line string) (Choice, bool) {
	for _, re := range choicePatterns {
		if m := re.FindStringSubmatch(line); m != nil {
			return Choice{Letter: strings.ToUpper(m[1]), Text: strings.TrimSpace(m[2])}, true
		}
	}
	return Choice{}, false
}

// Parser turns document lines into questions.
type Parser struct {
	logger core.Logger
	res    Result
}

func NewParser(logger core.Logger) *Parser {
	return &Parser{logger: logger}
}

func (p *Parser) step(step, details string) {
	p.res.ProcessingLog.Steps = append(p.res.ProcessingLog.Steps, Step{Step: step, Details: details, Timestamp: NowFunc().UTC()})
	if p.logger != nil {
		p.logger.Debug(fmt.Sprintf("parser step: %s - %s", step, details))
	}
}

func (p *Parser) warn(msg string) {
	p.res.ProcessingLog.Warnings = append(p.res.ProcessingLog.Warnings, msg)
	if p.logger != nil {
		p.logger.Warn("parser warning: " + msg)
	}
}

// Parse extracts the questions of doc.
func (p *Parser) Parse(filename string, doc Document) Result {
	p.res = Result{Questions: []Question{}, Errors: []string{}}
	p.res.ProcessingLog.StartTime = NowFunc().UTC()
	p.res.ProcessingLog.Warnings = []string{}
	p.step("Starting parsing", "File: "+filename)
	for _, w := range doc.Warnings {
		p.warn(w)
	}
	p.step("Text extraction complete", fmt.Sprintf("Found %d text lines", len(doc.Lines)))

	p.res.Questions = p.scan(doc.Lines)
	for i := range p.res.Questions {
		q := &p.res.Questions[i]
		matchAnswers(q)
		if q.QuestionType == assessment.QuestionMultipleChoice && len(q.Choices) == 0 {
			p.warn(fmt.Sprintf("Question %d looks like multiple choice but has no choices", q.Order))
		}
	}
	if len(p.res.Questions) == 0 {
		p.warn("No questions found")
	}

	p.res.ProcessingLog.Statistics.TotalLines = len(doc.Lines)
	p.res.ProcessingLog.Statistics.TotalPages = doc.Pages
	p.res.refresh()
	p.res.ProcessingLog.EndTime = NowFunc().UTC()
	p.step("Parsing complete", fmt.Sprintf("%d questions, confidence %.2f", p.res.TotalQuestions, p.res.Confidence))
	return p.res
}

// scan keeps one current question: numbered lines start a new one, lettered lines following a
// multiple choice question become its choices, answer lines set its answer and any other line
// extends its text.
func (p *Parser) scan(lines []string) []Question {
	var (
		questions   []Question
		cur         *Question
		choicesDone bool
	)
	flush := func() {
		if cur != nil {
			questions = append(questions, *cur)
			cur = nil
		}
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if num, text, ok := matchQuestionStart(line); ok {
			flush()
			cur = &Question{
				Number:       num,
				QuestionText: text,
				QuestionType: DetectType(text),
				Points:       1,
				Order:        len(questions) + 1,
			}
			choicesDone = false
			continue
		}
		if cur == nil {
			continue
		}

		if cur.QuestionType == assessment.QuestionMultipleChoice && !choicesDone {
			if c, ok := matchChoice(line); ok {
				cur.Choices = append(cur.Choices, c)
				continue
			}
			if len(cur.Choices) > 0 {
				choicesDone = true
			}
		}

		if m := answerPattern.FindStringSubmatch(line); m != nil {
			cur.CorrectAnswers = splitAnswer(cur.QuestionType, m[1])
			continue
		}
		if len(cur.QuestionText) < maxQuestionText {
			cur.QuestionText += " " + line
		}
	}
	flush()
	return questions
}

func splitAnswer(qtype, answer string) []string {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil
	}
	switch qtype {
	case assessment.QuestionMultipleChoice, assessment.QuestionEnumeration:
		var res []string
		for _, part := range strings.Split(answer, ",") {
			if part = strings.TrimSpace(part); part != "" {
				res = append(res, part)
			}
		}
		return res
	}
	return []string{answer}
}

// matchAnswers flags the choices named by the answers, by letter or text, and normalises
// true/false answers.
func matchAnswers(q *Question) {
	switch q.QuestionType {
	case assessment.QuestionMultipleChoice:
		for i := range q.Choices {
			q.Choices[i].IsCorrect = false
			for _, ans := range q.CorrectAnswers {
				if strings.EqualFold(ans, q.Choices[i].Letter) || strings.EqualFold(ans, q.Choices[i].Text) {
					q.Choices[i].IsCorrect = true
				}
			}
		}
	case assessment.QuestionTrueFalse:
		if len(q.CorrectAnswers) == 0 {
			return
		}
		switch strings.ToLower(q.CorrectAnswers[0]) {
		case "true", "t", "correct", "yes":
			q.CorrectAnswers = []string{"True"}
		case "false", "f", "incorrect", "no":
			q.CorrectAnswers = []string{"False"}
		default:
			q.CorrectAnswers = nil
		}
	}
}

// Confidence scores each question and returns their mean.
func Confidence(questions []Question) float64 {
	if len(questions) == 0 {
		return 0
	}
	total := 0.0
	for i := range questions {
		q := &questions[i]
		c := 0.5
		if len(q.QuestionText) > 10 {
			c += 0.2
		}
		if q.QuestionType == assessment.QuestionMultipleChoice && len(q.Choices) > 0 {
			c += 0.2
			wellFormed := true
			for _, ch := range q.Choices {
				if ch.Letter == "" || ch.Text == "" {
					wellFormed = false
					break
				}
			}
			if wellFormed {
				c += 0.1
			}
		}
		if q.HasAnswer() {
			c += 0.2
		}
		if c > 1 {
			c = 1
		}
		q.Confidence = core.Round(c, 2)
		total += q.Confidence
	}
	return core.Round(total/float64(len(questions)), 2)
}

// ParseAnswerKey reads "N. X" lines into answers by question number. Several answers can be
// separated by commas.
func ParseAnswerKey(text string) map[int][]string {
	key := make(map[int][]string)
	for _, line := range strings.Split(text, "\n") {
		m := answerKeyPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		var answers []string
		for _, part := range strings.Split(m[2], ",") {
			if part = strings.TrimSpace(part); part != "" {
				answers = append(answers, part)
			}
		}
		if len(answers) > 0 {
			key[num] = answers
		}
	}
	return key
}

// ApplyAnswerKey sets the answers of the questions listed in key, matched by their number in the
// document, and returns how many were updated.
func ApplyAnswerKey(res *Result, key map[int][]string) int {
	n := 0
	for i := range res.Questions {
		q := &res.Questions[i]
		answers, ok := key[q.Number]
		if !ok {
			continue
		}
		if q.QuestionType == assessment.QuestionIdentification || q.QuestionType == assessment.QuestionEssay {
			answers = []string{strings.Join(answers, ", ")}
		}
		q.CorrectAnswers = answers
		matchAnswers(q)
		n++
	}
	res.refresh()
	return n
}
