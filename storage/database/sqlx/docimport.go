package sqlxrepos

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/docimport"
	"github.com/spist/campus/core/docparse"
)

const importColumns = `id, uploaded_by, original_filename, storage_key, file_size, status, parse_result, confidence,
error_message, assessment_id, created_at, processed_at`

type importRow struct {
	ID               string      `db:"id"`
	UploadedBy       string      `db:"uploaded_by"`
	OriginalFilename string      `db:"original_filename"`
	StorageKey       string      `db:"storage_key"`
	FileSize         int64       `db:"file_size"`
	Status           string      `db:"status"`
	ParseResult      null.JSON   `db:"parse_result"`
	Confidence       float64     `db:"confidence"`
	ErrorMessage     string      `db:"error_message"`
	AssessmentID     null.String `db:"assessment_id"`
	CreatedAt        null.Time   `db:"created_at"`
	ProcessedAt      null.Time   `db:"processed_at"`
}

type importRepository struct {
	repository
}

var _ docimport.Repository = (*importRepository)(nil)

func NewDocImportRepository(db *sqlx.DB) *importRepository {
	return &importRepository{repository{db: db}}
}

func (repo importRepository) Save(ctx context.Context, di docimport.DocumentImport, exec ...core.DBExecutor) (docimport.DocumentImport, error) {
	row := importRow{
		ID:               di.ID,
		UploadedBy:       di.UploadedBy,
		OriginalFilename: di.OriginalFilename,
		StorageKey:       di.StorageKey,
		FileSize:         di.FileSize,
		Status:           di.Status,
		Confidence:       di.Confidence,
		ErrorMessage:     di.ErrorMessage,
		AssessmentID:     nullID(di.AssessmentID),
		CreatedAt:        null.TimeFrom(di.CreatedAt.UTC()),
		ProcessedAt:      null.TimeFromPtr(di.ProcessedAt),
	}
	if di.ParseResult != nil {
		if err := row.ParseResult.Marshal(di.ParseResult); err != nil {
			return docimport.DocumentImport{}, errors.Wrap(err, "encoding parse result")
		}
	}
	_, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), `INSERT INTO document_import (`+importColumns+`)
		VALUES (:id, :uploaded_by, :original_filename, :storage_key, :file_size, :status, :parse_result, :confidence,
		:error_message, :assessment_id, :created_at, :processed_at)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, parse_result = EXCLUDED.parse_result,
		confidence = EXCLUDED.confidence, error_message = EXCLUDED.error_message,
		assessment_id = EXCLUDED.assessment_id, processed_at = EXCLUDED.processed_at`, row)
	if err != nil {
		return docimport.DocumentImport{}, errors.Wrap(err, "saving document import")
	}
	return di, nil
}

func (repo importRepository) fromRow(row importRow) (docimport.DocumentImport, error) {
	di := docimport.DocumentImport{
		ID:               row.ID,
		UploadedBy:       row.UploadedBy,
		OriginalFilename: row.OriginalFilename,
		StorageKey:       row.StorageKey,
		FileSize:         row.FileSize,
		Status:           row.Status,
		Confidence:       row.Confidence,
		ErrorMessage:     row.ErrorMessage,
		AssessmentID:     row.AssessmentID.String,
		CreatedAt:        row.CreatedAt.Time,
		ProcessedAt:      row.ProcessedAt.Ptr(),
	}
	if row.ParseResult.Valid {
		var res docparse.Result
		if err := json.Unmarshal(row.ParseResult.JSON, &res); err != nil {
			return docimport.DocumentImport{}, errors.Wrap(err, "decoding parse result")
		}
		di.ParseResult = &res
	}
	return di, nil
}

func (repo importRepository) Get(ctx context.Context, id string, exec ...core.DBExecutor) (docimport.DocumentImport, error) {
	var row importRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, "SELECT "+importColumns+" FROM document_import WHERE id = $1", id)
	if err != nil {
		return docimport.DocumentImport{}, trapNoRowsErr(err, docimport.ErrNotFound, "finding document import")
	}
	return repo.fromRow(row)
}

func (repo importRepository) Query(ctx context.Context, uploadedBy string, exec ...core.DBExecutor) ([]docimport.DocumentImport, error) {
	var w where
	if uploadedBy != "" {
		w.add("uploaded_by = ?", uploadedBy)
	}
	q, args, err := bind("SELECT "+importColumns+" FROM document_import"+w.String()+" ORDER BY created_at DESC", w.args...)
	if err != nil {
		return nil, err
	}
	var rows []importRow
	if err = sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying document imports")
	}
	imports := make([]docimport.DocumentImport, 0, len(rows))
	for _, row := range rows {
		di, err := repo.fromRow(row)
		if err != nil {
			return nil, err
		}
		imports = append(imports, di)
	}
	return imports, nil
}

func (repo importRepository) Delete(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM document_import WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting document import")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return docimport.ErrNotFound
	}
	return nil
}
