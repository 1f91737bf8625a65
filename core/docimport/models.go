package docimport

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/docparse"
)

// Import statuses
const (
	StatusPending     = "pending"
	StatusProcessing  = "processing"
	StatusCompleted   = "completed"
	StatusNeedsReview = "needs_review"
	StatusFailed      = "failed"
)

// CompleteConfidence is the confidence from which a fully answered import needs no review.
const CompleteConfidence = 0.7

type DocumentImport struct {
	ID               string           `json:"id"`
	UploadedBy       string           `json:"uploaded_by"`
	OriginalFilename string           `json:"original_filename"`
	StorageKey       string           `json:"-"`
	FileSize         int64            `json:"file_size"`
	Status           string           `json:"status"`
	ParseResult      *docparse.Result `json:"parse_result"`
	Confidence       float64          `json:"confidence"`
	ErrorMessage     string           `json:"error_message"`
	AssessmentID     string           `json:"assessment_id"`
	CreatedAt        time.Time        `json:"created_at"`
	ProcessedAt      *time.Time       `json:"processed_at"`
}

// setResult records a parse result and the status it implies.
func (di *DocumentImport) setResult(res docparse.Result) {
	di.ParseResult = &res
	di.Confidence = res.Confidence
	di.ErrorMessage = strings.Join(res.Errors, "\n")
	switch {
	case res.Complete(CompleteConfidence):
		di.Status = StatusCompleted
	case len(res.Questions) == 0 && len(res.Errors) > 0:
		di.Status = StatusFailed
	default:
		di.Status = StatusNeedsReview
	}
}

type AnswerKeyInput struct {
	AnswerKey string `json:"answer_key" validate:"required"`
}

func (in *AnswerKeyInput) Validate(validate *validator.Validate) error {
	in.AnswerKey = strings.TrimSpace(in.AnswerKey)
	return validate.Struct(in)
}

type CreateAssessmentInput struct {
	Title          string `json:"title" validate:"max=200"`
	Description    string `json:"description"`
	AssessmentType string `json:"assessment_type" validate:"omitempty,oneof=quiz exam"`
}

func (in *CreateAssessmentInput) Validate(validate *validator.Validate) error {
	in.Title = core.StripTags(core.CleanString(in.Title))
	in.Description = core.SanitizeHTML(strings.TrimSpace(in.Description))
	return validate.Struct(in)
}
