package inmemdb

import (
	"context"
	"sort"

	"github.com/spist/campus/core"
	"github.com/spist/campus/core/docimport"
)

type docImportRepository struct {
	db *DB
}

var _ docimport.Repository = (*docImportRepository)(nil)

func NewDocImportRepository(db *DB) *docImportRepository {
	return &docImportRepository{db: db}
}

func (repo *docImportRepository) Save(_ context.Context, di docimport.DocumentImport, _ ...core.DBExecutor) (docimport.DocumentImport, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.imports[di.ID] = &di
	return di, nil
}

func (repo *docImportRepository) Get(_ context.Context, id string, _ ...core.DBExecutor) (docimport.DocumentImport, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if di, ok := repo.db.imports[id]; ok {
		return *di, nil
	}
	return docimport.DocumentImport{}, docimport.ErrNotFound
}

func (repo *docImportRepository) Query(_ context.Context, uploadedBy string, _ ...core.DBExecutor) ([]docimport.DocumentImport, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	imports := make([]docimport.DocumentImport, 0)
	for _, di := range repo.db.imports {
		if uploadedBy == "" || di.UploadedBy == uploadedBy {
			imports = append(imports, *di)
		}
	}
	sort.SliceStable(imports, func(i, j int) bool { return imports[i].CreatedAt.After(imports[j].CreatedAt) })
	return imports, nil
}

func (repo *docImportRepository) Delete(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.imports[id]; !ok {
		return docimport.ErrNotFound
	}
	delete(repo.db.imports, id)
	return nil
}
