package dummydb

import (
	"context"
	"strings"

	"github.com/kahero/campushub/core"
	"github.com/kahero/campushub/core/club"
)

type clubRepository struct {
	db *DB
}

var _ club.Repository = (*clubRepository)(nil) // interface compliance check

func NewClubRepository(db *DB) club.Repository {
	return &clubRepository{db: db}
}

func (repo *clubRepository) queryClubs() []club.Club {
	clubs := make([]club.Club, 0, len(repo.db.clubs.table))
	for _, cl := range repo.db.clubs.table {
		clubs = append(clubs, *cl)
	}
	return clubs
}

func (repo *clubRepository) CheckNameUniqueness(_ context.Context, name string, excluded []club.Club, _ ...core.DBExecutor) error {
	repo.db.clubs.RLock()
	defer repo.db.clubs.RUnlock()

	for _, cl := range repo.queryClubs() {
		if isExcludedClub(cl, excluded) {
			continue
		}
		if strings.EqualFold(cl.Name, name) {
			return club.ErrNameExists
		}
	}
	return nil
}

func (repo *clubRepository) CreateClub(_ context.Context, cl club.Club, _ ...core.DBExecutor) (club.Club, error) {
	repo.db.clubs.Lock()
	defer repo.db.clubs.Unlock()

	cl.ID = newID()
	repo.db.clubs.table[cl.ID] = &cl
	return cl, nil
}

func (repo *clubRepository) GetClubByID(_ context.Context, id string, _ ...core.DBExecutor) (club.Club, error) {
	repo.db.clubs.RLock()
	defer repo.db.clubs.RUnlock()

	if cl, ok := repo.db.clubs.table[id]; ok {
		return *cl, nil
	}
	return club.Club{}, club.ErrNotFound
}

func (repo *clubRepository) QueryClubs(_ context.Context, filter *club.QueryFilter, _ []core.DBOrdering, _ ...core.DBExecutor) ([]club.Club, error) {
	repo.db.clubs.RLock()
	defer repo.db.clubs.RUnlock()

	clubs := repo.queryClubs()
	if filter == nil {
		return clubs, nil
	}

	if filter.Search != "" {
		var filtered []club.Club
		for _, cl := range clubs {
			if containsFold(cl.Name, filter.Search) {
				filtered = append(filtered, cl)
			}
		}
		clubs = filtered
	}
	if clubs != nil && filter.FacultyID != "" {
		var filtered []club.Club
		for _, cl := range clubs {
			if cl.FacultyID != nil && *cl.FacultyID == filter.FacultyID {
				filtered = append(filtered, cl)
			}
		}
		clubs = filtered
	}
	if clubs != nil && filter.IsActive != nil {
		var filtered []club.Club
		for _, cl := range clubs {
			if cl.Active() == *filter.IsActive {
				filtered = append(filtered, cl)
			}
		}
		clubs = filtered
	}
	return clubs, nil
}

func (repo *clubRepository) UpdateClub(_ context.Context, cl club.Club, isActive *bool, _ ...core.DBExecutor) (club.Club, error) {
	repo.db.clubs.Lock()
	defer repo.db.clubs.Unlock()

	// only save set fields
	orig, ok := repo.db.clubs.table[cl.ID]
	if !ok {
		return club.Club{}, club.ErrNotFound
	}
	if cl.Name != "" {
		orig.Name = cl.Name
	}
	if cl.Description != "" {
		orig.Description = cl.Description
	}
	if cl.FacultyID != nil {
		orig.FacultyID = cl.FacultyID
	}
	if cl.HeadStudentID != nil {
		orig.HeadStudentID = cl.HeadStudentID
	}
	if cl.Email != "" {
		orig.Email = cl.Email
	}
	if cl.EstablishedDate != nil {
		orig.EstablishedDate = cl.EstablishedDate
	}
	if isActive != nil {
		orig.SetActive(*isActive)
	}
	if !cl.UpdatedAt.IsZero() {
		orig.UpdatedAt = cl.UpdatedAt
	}
	return *orig, nil
}

func (repo *clubRepository) DeleteClubsByID(_ context.Context, ids []string, _ ...core.DBExecutor) error {
	repo.db.clubs.Lock()
	defer repo.db.clubs.Unlock()
	for _, id := range ids {
		delete(repo.db.clubs.table, id)
	}
	return nil
}

func (repo *clubRepository) QueryRoles(_ context.Context, _ ...core.DBExecutor) ([]club.Role, error) {
	repo.db.roles.RLock()
	defer repo.db.roles.RUnlock()

	roles := make([]club.Role, 0, len(repo.db.roles.table))
	for _, role := range repo.db.roles.table {
		roles = append(roles, *role)
	}
	return roles, nil
}

func (repo *clubRepository) GetRoleByID(_ context.Context, id string, _ ...core.DBExecutor) (club.Role, error) {
	repo.db.roles.RLock()
	defer repo.db.roles.RUnlock()

	if role, ok := repo.db.roles.table[id]; ok {
		return *role, nil
	}
	return club.Role{}, club.ErrRoleNotFound
}

func (repo *clubRepository) CreateMember(_ context.Context, mbr club.Member, _ ...core.DBExecutor) (club.Member, error) {
	repo.db.members.Lock()
	defer repo.db.members.Unlock()

	for _, existing := range repo.db.members.table {
		if existing.ClubID == mbr.ClubID && existing.StudentID == mbr.StudentID {
			return club.Member{}, club.ErrAlreadyMember
		}
		if mbr.LoginID != "" && strings.EqualFold(existing.LoginID, mbr.LoginID) {
			return club.Member{}, club.ErrLoginIDExists
		}
	}

	mbr.ID = newID()
	repo.db.members.table[mbr.ID] = &mbr
	return mbr, nil
}

func (repo *clubRepository) GetMemberByID(_ context.Context, id string, _ ...core.DBExecutor) (club.Member, error) {
	repo.db.members.RLock()
	defer repo.db.members.RUnlock()

	if mbr, ok := repo.db.members.table[id]; ok {
		return repo.withRole(*mbr), nil
	}
	return club.Member{}, club.ErrMemberNotFound
}

func (repo *clubRepository) GetMemberByLoginID(_ context.Context, loginID string, _ ...core.DBExecutor) (club.Member, error) {
	repo.db.members.RLock()
	defer repo.db.members.RUnlock()

	for _, mbr := range repo.db.members.table {
		if mbr.LoginID != "" && strings.EqualFold(mbr.LoginID, loginID) {
			return repo.withRole(*mbr), nil
		}
	}
	return club.Member{}, club.ErrMemberNotFound
}

func (repo *clubRepository) GetMembership(_ context.Context, clubID, studentID string, _ ...core.DBExecutor) (club.Member, error) {
	repo.db.members.RLock()
	defer repo.db.members.RUnlock()

	for _, mbr := range repo.db.members.table {
		if mbr.ClubID == clubID && mbr.StudentID == studentID {
			return repo.withRole(*mbr), nil
		}
	}
	return club.Member{}, club.ErrMemberNotFound
}

func (repo *clubRepository) QueryMembers(_ context.Context, clubID string, _ ...core.DBExecutor) ([]club.Member, error) {
	repo.db.members.RLock()
	defer repo.db.members.RUnlock()

	var members []club.Member
	for _, mbr := range repo.db.members.table {
		if mbr.ClubID == clubID {
			members = append(members, repo.withRole(*mbr))
		}
	}
	return members, nil
}

func (repo *clubRepository) QueryMembershipsByStudent(_ context.Context, studentID string, _ ...core.DBExecutor) ([]club.Member, error) {
	repo.db.members.RLock()
	defer repo.db.members.RUnlock()

	var members []club.Member
	for _, mbr := range repo.db.members.table {
		if mbr.StudentID == studentID {
			members = append(members, repo.withRole(*mbr))
		}
	}
	return members, nil
}

func (repo *clubRepository) UpdateMember(_ context.Context, mbr club.Member, isActive *bool, _ ...core.DBExecutor) (club.Member, error) {
	repo.db.members.Lock()
	defer repo.db.members.Unlock()

	orig, ok := repo.db.members.table[mbr.ID]
	if !ok {
		return club.Member{}, club.ErrMemberNotFound
	}
	if mbr.RoleID != "" {
		orig.RoleID = mbr.RoleID
	}
	if mbr.LoginID != "" {
		orig.LoginID = mbr.LoginID
	}
	if mbr.ClubPasswordHash != nil {
		orig.ClubPasswordHash = mbr.ClubPasswordHash
	}
	if isActive != nil {
		orig.SetActive(*isActive)
	}
	return repo.withRole(*orig), nil
}

func (repo *clubRepository) DeleteMember(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.members.Lock()
	defer repo.db.members.Unlock()
	delete(repo.db.members.table, id)
	return nil
}

// withRole loads the member's role the way a SQL join would.
func (repo *clubRepository) withRole(mbr club.Member) club.Member {
	repo.db.roles.RLock()
	defer repo.db.roles.RUnlock()

	if role, ok := repo.db.roles.table[mbr.RoleID]; ok {
		mbr.Role = *role
	}
	return mbr
}

func isExcludedClub(cl club.Club, excluded []club.Club) bool {
	for i := range excluded {
		if excluded[i].ID == cl.ID {
			return true
		}
	}
	return false
}
