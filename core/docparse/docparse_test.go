package docparse

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spist/campus/core/assessment"
)

const sampleQuiz = `General Knowledge Quiz

1. What is the capital of France? Choose one.
A. London
B. Paris
C. Berlin
Answer: B

2. True or False: The earth is flat.
Answer: False

3. Enumerate the primary colors.
Answer: red, yellow, blue

Question 4: Explain the water cycle.
`

func parseText(t *testing.T, text string) Result {
	t.Helper()
	doc, err := extractText(strings.NewReader(text))
	require.NoError(t, err)
	return NewParser(nil).Parse("quiz.txt", doc)
}

func TestParse(t *testing.T) {
	res := parseText(t, sampleQuiz)
	require.Len(t, res.Questions, 4)
	assert.Equal(t, 4, res.TotalQuestions)
	assert.Equal(t, 3, res.QuestionsWithAnswers)
	assert.Empty(t, res.Errors)

	q1 := res.Questions[0]
	assert.Equal(t, assessment.QuestionMultipleChoice, q1.QuestionType)
	assert.Equal(t, "What is the capital of France? Choose one.", q1.QuestionText)
	require.Len(t, q1.Choices, 3)
	assert.Equal(t, Choice{Letter: "B", Text: "Paris", IsCorrect: true}, q1.Choices[1])
	assert.False(t, q1.Choices[0].IsCorrect)
	assert.InDelta(t, 1.0, q1.Confidence, 0.001)

	q2 := res.Questions[1]
	assert.Equal(t, assessment.QuestionTrueFalse, q2.QuestionType)
	assert.Equal(t, []string{"False"}, q2.CorrectAnswers)
	assert.InDelta(t, 0.9, q2.Confidence, 0.001)

	q3 := res.Questions[2]
	assert.Equal(t, assessment.QuestionEnumeration, q3.QuestionType)
	assert.Equal(t, []string{"red", "yellow", "blue"}, q3.CorrectAnswers)

	q4 := res.Questions[3]
	assert.Equal(t, assessment.QuestionEssay, q4.QuestionType)
	assert.Equal(t, 4, q4.Number)
	assert.Equal(t, "Explain the water cycle.", q4.QuestionText)
	assert.False(t, q4.HasAnswer())
	assert.InDelta(t, 0.7, q4.Confidence, 0.001)

	assert.InDelta(t, 0.875, res.Confidence, 0.01)
	assert.False(t, res.Complete(0.7))
	assert.Equal(t, 1, res.ProcessingLog.Statistics.QuestionsByType[assessment.QuestionEssay])
	assert.NotEmpty(t, res.ProcessingLog.Steps)
}

func TestParse_ContinuationAndChoicesEnd(t *testing.T) {
	res := parseText(t, `1) Which of the following
is a prime number?
(a) 4
(b) 7
This line is not a choice.
Key: b`)
	require.Len(t, res.Questions, 1)
	q := res.Questions[0]
	assert.Equal(t, "Which of the following is a prime number? This line is not a choice.", q.QuestionText)
	require.Len(t, q.Choices, 2)
	assert.True(t, q.Choices[1].IsCorrect)
}

func TestAnswerPattern(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"Answer: B", "B"},
		{"Answer B", "B"},
		{"answers. A, C", "A, C"},
		{"Answers A, C", "A, C"},
		{"Correct: A", "A"},
		{"Correct A", "A"},
		{"Correct answer: True", "True"},
		{"Correct answers red, blue", "red, blue"},
		{"Key: b", "b"},
		{"Key ideas of the lesson", ""},
		{"Answerable in one word", ""},
		{"Correctly spelled words", ""},
	}
	for _, tc := range tests {
		t.Run(tc.line, func(t *testing.T) {
			var got string
			if m := answerPattern.FindStringSubmatch(tc.line); m != nil {
				got = m[1]
			}
			assert.Equal(t, tc.want, got)
		})
	}

	res := parseText(t, "1. Which word starts with a vowel? Choose one.\nA. cat\nB. egg\nCorrect B")
	require.Len(t, res.Questions, 1)
	require.Len(t, res.Questions[0].Choices, 2)
	assert.False(t, res.Questions[0].Choices[0].IsCorrect)
	assert.True(t, res.Questions[0].Choices[1].IsCorrect)
}

func TestDetectType(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Select the best answer", assessment.QuestionMultipleChoice},
		{"T/F: Water boils at 100C", assessment.QuestionTrueFalse},
		{"Define osmosis.", assessment.QuestionIdentification},
		{"List the planets.", assessment.QuestionEnumeration},
		{"Discuss the causes of war.", assessment.QuestionEssay},
		{"The sky is blue. Yes", assessment.QuestionTrueFalse},
		{"The ____ is the powerhouse of the cell.", assessment.QuestionIdentification},
		{"Which planet is largest?", assessment.QuestionMultipleChoice},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectType(tc.text))
		})
	}
}

func TestAnswerKey(t *testing.T) {
	res := parseText(t, sampleQuiz)
	key := ParseAnswerKey("1. C\n3) red, green\nnot a key line\n4. Evaporation and condensation, precipitation")
	assert.Equal(t, map[int][]string{
		1: {"C"},
		3: {"red", "green"},
		4: {"Evaporation and condensation", "precipitation"},
	}, key)

	n := ApplyAnswerKey(&res, key)
	assert.Equal(t, 3, n)
	assert.True(t, res.Questions[0].Choices[2].IsCorrect)
	assert.False(t, res.Questions[0].Choices[1].IsCorrect)
	assert.Equal(t, []string{"Evaporation and condensation, precipitation"}, res.Questions[3].CorrectAnswers)
	assert.Equal(t, 4, res.QuestionsWithAnswers)
	assert.True(t, res.Complete(0.7))
}

func TestExtension(t *testing.T) {
	ext, err := Extension("Quiz.DOCX")
	require.NoError(t, err)
	assert.Equal(t, ".docx", ext)

	_, err = Extension("quiz.odt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func buildDocx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">` + p + `</w:t></w:r></w:p>`)
	}
	body.WriteString(`<w:tbl><w:tr><w:tc><w:p><w:r><w:t>Answer: A</w:t></w:r></w:p></w:tc></w:tr></w:tbl>`)
	body.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(body.String()))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtract_Docx(t *testing.T) {
	data := buildDocx(t, "1. Choose the smallest number.", "A. 1", "B. 2")
	doc, err := Extract("quiz.docx", bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, []string{"1. Choose the smallest number.", "A. 1", "B. 2", "Answer: A"}, doc.Lines)

	res := NewParser(nil).Parse("quiz.docx", doc)
	require.Len(t, res.Questions, 1)
	assert.True(t, res.Questions[0].Choices[0].IsCorrect)
}

func TestExtract_DocxTooLarge(t *testing.T) {
	defer func(max int64) { MaxDocxContentSize = max }(MaxDocxContentSize)
	MaxDocxContentSize = 1024

	data := buildDocx(t, strings.Repeat("a", 2048))
	_, err := Extract("quiz.docx", bytes.NewReader(data), int64(len(data)))
	assert.Equal(t, ErrDocumentTooLarge, err)

	data = buildDocx(t, "1. Choose the smallest number.")
	_, err = Extract("quiz.docx", bytes.NewReader(data), int64(len(data)))
	assert.NoError(t, err)
}

func TestExtract_Invalid(t *testing.T) {
	data := []byte("not an archive")
	_, err := Extract("quiz.docx", bytes.NewReader(data), int64(len(data)))
	assert.Error(t, err)

	_, err = Extract("quiz.pdf", bytes.NewReader(data), int64(len(data)))
	assert.Error(t, err)
}
