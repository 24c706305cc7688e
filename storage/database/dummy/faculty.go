package dummydb

import (
	"context"
	"strings"

	"github.com/kahero/campushub/core"
	"github.com/kahero/campushub/core/faculty"
)

type facultyRepository struct {
	db *DB
}

var _ faculty.Repository = (*facultyRepository)(nil) // interface compliance check

func NewFacultyRepository(db *DB) faculty.Repository {
	return &facultyRepository{db: db}
}

func (repo *facultyRepository) query() []faculty.Faculty {
	members := make([]faculty.Faculty, 0, len(repo.db.faculty.table))
	for _, fac := range repo.db.faculty.table {
		members = append(members, *fac)
	}
	return members
}

func (repo *facultyRepository) CheckUniqueness(_ context.Context, code, email string, excluded []faculty.Faculty, _ ...core.DBExecutor) error {
	repo.db.faculty.RLock()
	defer repo.db.faculty.RUnlock()

	for _, fac := range repo.query() {
		if isExcludedFaculty(fac, excluded) {
			continue
		}
		if strings.EqualFold(fac.Code, code) {
			return faculty.ErrCodeExists
		}
		if strings.EqualFold(fac.Email, email) {
			return faculty.ErrEmailExists
		}
	}
	return nil
}

func (repo *facultyRepository) CreateFaculty(_ context.Context, fac faculty.Faculty, _ ...core.DBExecutor) (faculty.Faculty, error) {
	repo.db.faculty.Lock()
	defer repo.db.faculty.Unlock()

	fac.ID = newID()
	repo.db.faculty.table[fac.ID] = &fac
	return fac, nil
}

func (repo *facultyRepository) GetFaculty(_ context.Context, filter faculty.GetFilter, _ ...core.DBExecutor) (faculty.Faculty, error) {
	repo.db.faculty.RLock()
	defer repo.db.faculty.RUnlock()

	if filter.ID != "" {
		if fac, ok := repo.db.faculty.table[filter.ID]; ok {
			return *fac, nil
		}
		return faculty.Faculty{}, faculty.ErrNotFound
	}
	for _, fac := range repo.query() {
		switch {
		case filter.Code != "" && strings.EqualFold(fac.Code, filter.Code):
			return fac, nil
		case filter.Email != "" && strings.EqualFold(fac.Email, filter.Email):
			return fac, nil
		case filter.CodeOrEmail != "" &&
			(strings.EqualFold(fac.Code, filter.CodeOrEmail) || strings.EqualFold(fac.Email, filter.CodeOrEmail)):
			return fac, nil
		}
	}
	return faculty.Faculty{}, faculty.ErrNotFound
}

func (repo *facultyRepository) QueryFaculty(_ context.Context, filter *faculty.QueryFilter, _ []core.DBOrdering, _ ...core.DBExecutor) ([]faculty.Faculty, error) {
	repo.db.faculty.RLock()
	defer repo.db.faculty.RUnlock()

	members := repo.query()
	if filter == nil {
		return members, nil
	}

	if filter.Search != "" {
		var filtered []faculty.Faculty
		for _, fac := range members {
			if containsFold(fac.Code, filter.Search) ||
				containsFold(fac.FirstName, filter.Search) ||
				containsFold(fac.LastName, filter.Search) ||
				containsFold(fac.Email, filter.Search) {
				filtered = append(filtered, fac)
			}
		}
		members = filtered
	}
	if members != nil && filter.Department != "" {
		var filtered []faculty.Faculty
		for _, fac := range members {
			if strings.EqualFold(fac.Department, filter.Department) {
				filtered = append(filtered, fac)
			}
		}
		members = filtered
	}
	if members != nil && filter.IsActive != nil {
		var filtered []faculty.Faculty
		for _, fac := range members {
			if fac.Active() == *filter.IsActive {
				filtered = append(filtered, fac)
			}
		}
		members = filtered
	}
	return members, nil
}

func (repo *facultyRepository) UpdateFaculty(_ context.Context, fac faculty.Faculty, isActive *bool, _ ...core.DBExecutor) (faculty.Faculty, error) {
	repo.db.faculty.Lock()
	defer repo.db.faculty.Unlock()

	// only save set fields
	orig, ok := repo.db.faculty.table[fac.ID]
	if !ok {
		return faculty.Faculty{}, faculty.ErrNotFound
	}
	if fac.FirstName != "" {
		orig.FirstName = fac.FirstName
	}
	if fac.LastName != "" {
		orig.LastName = fac.LastName
	}
	if fac.Email != "" {
		orig.Email = fac.Email
	}
	if fac.Phone != "" {
		orig.Phone = fac.Phone
	}
	if fac.Department != "" {
		orig.Department = fac.Department
	}
	if fac.PasswordHash != nil {
		orig.PasswordHash = fac.PasswordHash
	}
	if isActive != nil {
		orig.SetActive(*isActive)
	}
	if !fac.LastLogin.IsZero() {
		orig.LastLogin = fac.LastLogin
	}
	if !fac.UpdatedAt.IsZero() {
		orig.UpdatedAt = fac.UpdatedAt
	}
	return *orig, nil
}

func (repo *facultyRepository) DeleteFacultyByID(_ context.Context, ids []string, _ ...core.DBExecutor) error {
	repo.db.faculty.Lock()
	defer repo.db.faculty.Unlock()
	for _, id := range ids {
		delete(repo.db.faculty.table, id)
	}
	return nil
}

func isExcludedFaculty(fac faculty.Faculty, excluded []faculty.Faculty) bool {
	for i := range excluded {
		if excluded[i].ID == fac.ID {
			return true
		}
	}
	return false
}
