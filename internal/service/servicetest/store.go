// Package servicetest 提供内存中的 service.Store 实现，语义与 PostgreSQL 实现保持一致：
// 按公司隔离、(模板, 员工) 唯一、乐观锁以及删除策略。
package servicetest

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/domain"
)

type assignmentKey struct {
	templateID int64
	userID     int64
}

type Store struct {
	mu          sync.Mutex
	nextID      int64
	users       map[int64]*domain.User
	templates   map[int64]*domain.ShiftTemplate
	assignments map[assignmentKey]*domain.Assignment

	// BeforeUpsert 在每次 upsert 之前调用，返回错误时不写入
	BeforeUpsert func(ctx context.Context, a *domain.Assignment) error
}

func NewStore() *Store {
	return &Store{
		users:       make(map[int64]*domain.User),
		templates:   make(map[int64]*domain.ShiftTemplate),
		assignments: make(map[assignmentKey]*domain.Assignment),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) AddUser(companyID int64, username string, role domain.Role, active bool) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := &domain.User{
		ID:        s.id(),
		CompanyID: companyID,
		Username:  username,
		FullName:  username,
		Email:     username + "@example.com",
		Role:      role,
		IsActive:  active,
		CreatedAt: time.Now().UTC(),
		Version:   1,
	}
	s.users[user.ID] = user

	copied := *user
	return &copied
}

func (s *Store) AddTemplate(companyID int64, title string, start, end time.Time) *domain.ShiftTemplate {
	st := &domain.ShiftTemplate{
		CompanyID: companyID,
		Title:     title,
		StartTime: start,
		EndTime:   end,
	}
	_ = s.CreateShiftTemplate(context.Background(), st)
	return st
}

// Assignments 返回所有分配记录的快照
func (s *Store) Assignments() []domain.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]domain.Assignment, 0, len(s.assignments))
	for _, a := range s.assignments {
		result = append(result, *a)
	}
	slices.SortFunc(result, func(a, b domain.Assignment) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result
}

func (s *Store) template(companyID, id int64) (*domain.ShiftTemplate, error) {
	st, ok := s.templates[id]
	if !ok || st.CompanyID != companyID {
		return nil, fmt.Errorf("%w: 班次模板不存在", domain.ErrNotFound)
	}
	return st, nil
}

func (s *Store) user(companyID, id int64) (*domain.User, error) {
	user, ok := s.users[id]
	if !ok || user.CompanyID != companyID {
		return nil, fmt.Errorf("%w: 员工不存在", domain.ErrNotFound)
	}
	return user, nil
}

func copyTemplate(st *domain.ShiftTemplate) *domain.ShiftTemplate {
	copied := *st
	copied.AssignedUsers = make([]domain.AssignedUser, 0)
	return &copied
}

func (s *Store) GetAllShiftTemplates(_ context.Context, companyID int64) ([]*domain.ShiftTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sts := make([]*domain.ShiftTemplate, 0)
	for _, st := range s.templates {
		if st.CompanyID == companyID {
			sts = append(sts, copyTemplate(st))
		}
	}
	slices.SortFunc(sts, func(a, b *domain.ShiftTemplate) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return sts, nil
}

func (s *Store) GetShiftTemplate(_ context.Context, companyID, id int64) (*domain.ShiftTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.template(companyID, id)
	if err != nil {
		return nil, err
	}
	return copyTemplate(st), nil
}

func (s *Store) CreateShiftTemplate(_ context.Context, st *domain.ShiftTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	st.ID = s.id()
	st.CreatedAt = now
	st.UpdatedAt = now
	st.Version = 1
	s.templates[st.ID] = copyTemplate(st)
	return nil
}

func (s *Store) UpdateShiftTemplate(_ context.Context, st *domain.ShiftTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.template(st.CompanyID, st.ID)
	if err != nil {
		return err
	}
	if stored.Version != st.Version {
		return fmt.Errorf("%w: 班次模板已被修改，请重试", domain.ErrConflict)
	}

	st.Version++
	st.UpdatedAt = time.Now().UTC()
	s.templates[st.ID] = copyTemplate(st)
	return nil
}

func (s *Store) DeleteShiftTemplate(_ context.Context, companyID, id int64, cascade bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.template(companyID, id); err != nil {
		return err
	}

	for key := range s.assignments {
		if key.templateID != id {
			continue
		}
		if !cascade {
			return fmt.Errorf("%w: 该班次模板仍有员工分配，无法删除", domain.ErrConflict)
		}
	}

	for key := range s.assignments {
		if key.templateID == id {
			delete(s.assignments, key)
		}
	}
	delete(s.templates, id)
	return nil
}

func (s *Store) UpsertAssignment(ctx context.Context, companyID int64, a *domain.Assignment) (bool, error) {
	if s.BeforeUpsert != nil {
		if err := s.BeforeUpsert(ctx, a); err != nil {
			return false, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.template(companyID, a.ShiftTemplateID); err != nil {
		return false, fmt.Errorf("%w: 班次模板或员工不存在", domain.ErrNotFound)
	}
	if _, err := s.user(companyID, a.UserID); err != nil {
		return false, fmt.Errorf("%w: 班次模板或员工不存在", domain.ErrNotFound)
	}

	now := time.Now().UTC()
	key := assignmentKey{templateID: a.ShiftTemplateID, userID: a.UserID}
	if stored, ok := s.assignments[key]; ok {
		stored.Recurrence = a.Recurrence
		stored.UpdatedAt = now
		stored.Version++
		*a = *stored
		return false, nil
	}

	a.ID = s.id()
	a.CreatedAt = now
	a.UpdatedAt = now
	a.Version = 1
	stored := *a
	s.assignments[key] = &stored
	return true, nil
}

func (s *Store) DeleteAssignment(_ context.Context, companyID, templateID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, terr := s.template(companyID, templateID)
	_, uerr := s.user(companyID, userID)
	key := assignmentKey{templateID: templateID, userID: userID}
	if _, ok := s.assignments[key]; !ok || terr != nil || uerr != nil {
		return fmt.Errorf("%w: 分配记录不存在", domain.ErrNotFound)
	}

	delete(s.assignments, key)
	return nil
}

func (s *Store) assignedUsers(companyID int64, match func(domain.Assignment) bool) []domain.AssignedUser {
	aus := make([]domain.AssignedUser, 0)
	for _, a := range s.assignments {
		if _, err := s.template(companyID, a.ShiftTemplateID); err != nil {
			continue
		}
		if !match(*a) {
			continue
		}
		user := *s.users[a.UserID]
		aus = append(aus, domain.AssignedUser{
			AssignmentID:    a.ID,
			ShiftTemplateID: a.ShiftTemplateID,
			User:            &user,
			Recurrence:      a.Recurrence,
			AssignedBy:      a.AssignedBy,
		})
	}

	slices.SortFunc(aus, func(a, b domain.AssignedUser) int {
		return cmp.Or(
			cmp.Compare(a.ShiftTemplateID, b.ShiftTemplateID),
			cmp.Compare(a.User.ID, b.User.ID),
		)
	})
	return aus
}

func (s *Store) GetAssignedUsers(_ context.Context, companyID, templateID int64) ([]domain.AssignedUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.assignedUsers(companyID, func(a domain.Assignment) bool {
		return a.ShiftTemplateID == templateID
	}), nil
}

func (s *Store) GetAllAssignedUsers(_ context.Context, companyID int64) ([]domain.AssignedUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.assignedUsers(companyID, func(domain.Assignment) bool { return true }), nil
}

func (s *Store) GetUserShifts(_ context.Context, companyID, userID int64) ([]domain.ScheduledShift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	shifts := make([]domain.ScheduledShift, 0)
	for _, a := range s.assignments {
		if a.UserID != userID {
			continue
		}
		st, err := s.template(companyID, a.ShiftTemplateID)
		if err != nil {
			continue
		}
		shifts = append(shifts, domain.ScheduledShift{
			Template:   copyTemplate(st),
			Recurrence: a.Recurrence,
		})
	}

	slices.SortFunc(shifts, func(a, b domain.ScheduledShift) int {
		return cmp.Compare(a.Template.ID, b.Template.ID)
	})
	return shifts, nil
}

func (s *Store) GetCompanyUser(_ context.Context, companyID, id int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.user(companyID, id)
	if err != nil {
		return nil, err
	}
	copied := *user
	return &copied, nil
}

func (s *Store) GetCompanyUsers(_ context.Context, companyID int64) ([]*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]*domain.User, 0)
	for _, user := range s.users {
		if user.CompanyID == companyID {
			copied := *user
			users = append(users, &copied)
		}
	}
	slices.SortFunc(users, func(a, b *domain.User) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return users, nil
}
