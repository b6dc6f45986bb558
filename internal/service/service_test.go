package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/config"
	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/lock"
	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/service/servicetest"
)

const (
	companyA int64 = 100
	companyB int64 = 200
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.AssignmentEvent
	err    error
}

func (n *recordingNotifier) Publish(_ context.Context, event domain.AssignmentEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func (n *recordingNotifier) types() []domain.AssignmentEventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	types := make([]domain.AssignmentEventType, 0, len(n.events))
	for _, e := range n.events {
		types = append(types, e.Type)
	}
	return types
}

type heldLocker struct{}

func (heldLocker) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, lock.ErrNotAcquired
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Scheduling.TitleMaxLength = 100
	cfg.Scheduling.AssignAllConcurrency = 4
	cfg.Scheduling.AssignAllLockTTL = 60
	cfg.Scheduling.AssignAllExcluded = []string{string(domain.RoleSuperAdmin)}
	cfg.Scheduling.TemplateDeletePolicy = config.DeletePolicyCascade
	return cfg
}

type fixture struct {
	cfg      *config.Config
	store    *servicetest.Store
	notifier *recordingNotifier
	svc      *Service
	admin    domain.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := testConfig()
	store := servicetest.NewStore()
	notifier := &recordingNotifier{}
	admin := store.AddUser(companyA, "admin", domain.RoleAdmin, true)

	return &fixture{
		cfg:      cfg,
		store:    store,
		notifier: notifier,
		svc:      New(cfg, store, nil, notifier, metrics.New(prometheus.NewRegistry())),
		admin:    domain.Actor{UserID: admin.ID, CompanyID: companyA, Role: domain.RoleAdmin},
	}
}

func (f *fixture) createMorning(t *testing.T) *domain.ShiftTemplate {
	t.Helper()

	st, err := f.svc.CreateTemplate(context.Background(), f.admin, TemplateInput{
		Title:     "Morning",
		StartTime: "2024-01-01T22:00:00Z",
		EndTime:   "2024-01-02T06:00:00Z",
	})
	require.NoError(t, err)
	return st
}

func TestEndToEndAssignAndRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st := f.createMorning(t)
	user := f.store.AddUser(companyA, "user7", domain.RoleEmployee, true)

	_, created, err := f.svc.Assignments.Assign(ctx, f.admin, st.ID, user.ID, "weekdays")
	require.NoError(t, err)
	assert.True(t, created)

	got, err := f.svc.GetTemplate(ctx, companyA, st.ID)
	require.NoError(t, err)

	assert.Equal(t, 8.0, got.TotalHours)
	require.Len(t, got.AssignedUsers, 1)
	assert.Equal(t, user.ID, got.AssignedUsers[0].User.ID)
	assert.Equal(t, domain.RecurrenceWeekdays, got.AssignedUsers[0].Recurrence)
	assert.Equal(t, f.admin.UserID, got.AssignedUsers[0].AssignedBy)
}

func TestAssignIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st := f.createMorning(t)
	user := f.store.AddUser(companyA, "zhangsan", domain.RoleEmployee, true)

	first, created, err := f.svc.Assignments.Assign(ctx, f.admin, st.ID, user.ID, "all")
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := f.svc.Assignments.Assign(ctx, f.admin, st.ID, user.ID, "weekdays")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	rows := f.store.Assignments()
	require.Len(t, rows, 1)
	assert.Equal(t, domain.RecurrenceWeekdays, rows[0].Recurrence)

	assert.Equal(t, []domain.AssignmentEventType{domain.AssignmentCreated, domain.AssignmentUpdated}, f.notifier.types())
}

func TestConcurrentAssignCreatesOneRow(t *testing.T) {
	f := newFixture(t)
	st := f.createMorning(t)
	user := f.store.AddUser(companyA, "lisi", domain.RoleEmployee, true)

	const callers = 16
	var wg sync.WaitGroup
	createdCount := make(chan bool, callers)

	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := f.svc.Assignments.Assign(context.Background(), f.admin, st.ID, user.ID, "all")
			assert.NoError(t, err)
			createdCount <- created
		}()
	}
	wg.Wait()
	close(createdCount)

	creations := 0
	for created := range createdCount {
		if created {
			creations++
		}
	}

	assert.Equal(t, 1, creations)
	assert.Len(t, f.store.Assignments(), 1)
}

func TestAssignValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.createMorning(t)
	user := f.store.AddUser(companyA, "wangwu", domain.RoleEmployee, true)

	_, _, err := f.svc.Assignments.Assign(ctx, f.admin, st.ID, user.ID, "fortnightly")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = f.svc.Assignments.Assign(ctx, f.admin, st.ID+999, user.ID, "all")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = f.svc.Assignments.Assign(ctx, f.admin, st.ID, user.ID+999, "all")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Empty(t, f.store.Assignments())
}

func TestTenantIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	foreign := f.store.AddTemplate(companyB, "Foreign", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 17, 0, 0, 0, time.UTC))
	foreignUser := f.store.AddUser(companyB, "outsider", domain.RoleEmployee, true)
	own := f.createMorning(t)

	title := "Hijacked"
	got, err := f.svc.UpdateTemplate(ctx, f.admin, foreign.ID, TemplatePatch{Title: &title})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, got)

	_, err = f.svc.GetTemplate(ctx, companyA, foreign.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, f.svc.DeleteTemplate(ctx, f.admin, foreign.ID), domain.ErrNotFound)

	_, err = f.svc.Assignments.ListAssignedUsers(ctx, companyA, foreign.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// 其他公司的员工不能被分配到本公司的模板
	_, _, err = f.svc.Assignments.Assign(ctx, f.admin, own.ID, foreignUser.ID, "all")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	sts, err := f.svc.ListTemplates(ctx, companyA)
	require.NoError(t, err)
	require.Len(t, sts, 1)
	assert.Equal(t, own.ID, sts[0].ID)

	stored, err := f.store.GetShiftTemplate(ctx, companyB, foreign.ID)
	require.NoError(t, err)
	assert.Equal(t, "Foreign", stored.Title)
	assert.Empty(t, f.store.Assignments())
}

func TestAssignAllPartialFailure(t *testing.T) {
	f := newFixture(t)
	f.cfg.Scheduling.AssignAllExcluded = []string{string(domain.RoleSuperAdmin), string(domain.RoleAdmin)}
	st := f.createMorning(t)

	users := make([]*domain.User, 0, 5)
	for _, name := range []string{"u1", "u2", "u3", "u4", "u5"} {
		users = append(users, f.store.AddUser(companyA, name, domain.RoleEmployee, true))
	}

	rejected := users[2].ID
	f.store.BeforeUpsert = func(_ context.Context, a *domain.Assignment) error {
		if a.UserID == rejected {
			return errors.New("storage unavailable")
		}
		return nil
	}

	result, err := f.svc.Assignments.AssignAll(context.Background(), f.admin, st.ID, "all")
	require.NoError(t, err)

	assert.NotEmpty(t, result.ID)
	assert.Equal(t, 4, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.Skipped)
	assert.False(t, result.Complete())

	require.Len(t, result.Items, 5)
	for _, item := range result.Items {
		if item.UserID == rejected {
			assert.Equal(t, domain.BulkItemFailed, item.Status)
			assert.Contains(t, item.Error, "storage unavailable")
			continue
		}
		assert.Equal(t, domain.BulkItemCreated, item.Status)
		require.NotNil(t, item.Assignment)
	}

	rows := f.store.Assignments()
	assert.Len(t, rows, 4)
	for _, row := range rows {
		assert.NotEqual(t, rejected, row.UserID)
	}
}

func TestAssignAllRolePolicy(t *testing.T) {
	f := newFixture(t)
	st := f.createMorning(t)

	f.store.AddUser(companyA, "root", domain.RoleSuperAdmin, true)
	f.store.AddUser(companyA, "left", domain.RoleEmployee, false)
	employee := f.store.AddUser(companyA, "staff", domain.RoleEmployee, true)
	f.store.AddUser(companyB, "outsider", domain.RoleEmployee, true)

	result, err := f.svc.Assignments.AssignAll(context.Background(), f.admin, st.ID, "weekends")
	require.NoError(t, err)
	assert.True(t, result.Complete())

	// admin 和 staff，超级管理员、离职员工和其他公司的员工不参与
	userIDs := make([]int64, 0)
	for _, item := range result.Items {
		userIDs = append(userIDs, item.UserID)
	}
	assert.ElementsMatch(t, []int64{f.admin.UserID, employee.ID}, userIDs)
	assert.Equal(t, 2, result.Succeeded)
}

func TestAssignAllReportsUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.createMorning(t)
	user := f.store.AddUser(companyA, "zhaoliu", domain.RoleEmployee, true)

	_, _, err := f.svc.Assignments.Assign(ctx, f.admin, st.ID, user.ID, "weekends")
	require.NoError(t, err)

	result, err := f.svc.Assignments.AssignAll(ctx, f.admin, st.ID, "all")
	require.NoError(t, err)

	for _, item := range result.Items {
		if item.UserID == user.ID {
			assert.Equal(t, domain.BulkItemUpdated, item.Status)
		} else {
			assert.Equal(t, domain.BulkItemCreated, item.Status)
		}
	}

	for _, row := range f.store.Assignments() {
		assert.Equal(t, domain.RecurrenceAll, row.Recurrence)
	}
}

func TestAssignAllStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.cfg.Scheduling.AssignAllConcurrency = 1
	st := f.createMorning(t)
	for _, name := range []string{"u1", "u2", "u3", "u4"} {
		f.store.AddUser(companyA, name, domain.RoleEmployee, true)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 第一次写入之后取消，之后不应再有写入
	f.store.BeforeUpsert = func(context.Context, *domain.Assignment) error {
		cancel()
		return nil
	}

	result, err := f.svc.Assignments.AssignAll(ctx, f.admin, st.ID, "all")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 4, result.Skipped)
	assert.Len(t, f.store.Assignments(), 1)
}

func TestAssignAllLockHeld(t *testing.T) {
	f := newFixture(t)
	svc := New(f.cfg, f.store, heldLocker{}, nil, nil)
	st := f.createMorning(t)
	f.store.AddUser(companyA, "u1", domain.RoleEmployee, true)

	_, err := svc.Assignments.AssignAll(context.Background(), f.admin, st.ID, "all")
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Empty(t, f.store.Assignments())
}

func TestAssignAllValidation(t *testing.T) {
	f := newFixture(t)
	st := f.createMorning(t)

	_, err := f.svc.Assignments.AssignAll(context.Background(), f.admin, st.ID, "daily")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Assignments.AssignAll(context.Background(), f.admin, st.ID+999, "all")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.createMorning(t)
	user := f.store.AddUser(companyA, "sunqi", domain.RoleEmployee, true)

	_, _, err := f.svc.Assignments.Assign(ctx, f.admin, st.ID, user.ID, "all")
	require.NoError(t, err)

	require.NoError(t, f.svc.Assignments.Remove(ctx, f.admin, st.ID, user.ID))
	assert.Empty(t, f.store.Assignments())

	assert.ErrorIs(t, f.svc.Assignments.Remove(ctx, f.admin, st.ID, user.ID), domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.Assignments.Remove(ctx, f.admin, st.ID+999, user.ID), domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.Assignments.Remove(ctx, f.admin, st.ID, user.ID+999), domain.ErrNotFound)

	assert.Equal(t, []domain.AssignmentEventType{domain.AssignmentCreated, domain.AssignmentRemoved}, f.notifier.types())
}

func TestPublishFailureDoesNotFailAssign(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("broker down")
	st := f.createMorning(t)
	user := f.store.AddUser(companyA, "zhouba", domain.RoleEmployee, true)

	_, created, err := f.svc.Assignments.Assign(context.Background(), f.admin, st.ID, user.ID, "all")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, f.store.Assignments(), 1)
}

func TestListAssignedUsersOrderedByUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.createMorning(t)

	later := f.store.AddUser(companyA, "b", domain.RoleEmployee, true)
	earlier := f.admin.UserID

	_, _, err := f.svc.Assignments.Assign(ctx, f.admin, st.ID, later.ID, "weekends")
	require.NoError(t, err)
	_, _, err = f.svc.Assignments.Assign(ctx, f.admin, st.ID, earlier, "all")
	require.NoError(t, err)

	aus, err := f.svc.Assignments.ListAssignedUsers(ctx, companyA, st.ID)
	require.NoError(t, err)
	require.Len(t, aus, 2)
	assert.Equal(t, earlier, aus[0].User.ID)
	assert.Equal(t, later.ID, aus[1].User.ID)
	assert.Equal(t, domain.RecurrenceWeekends, aus[1].Recurrence)
}

func TestCreateTemplateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.svc.CreateTemplate(ctx, f.admin, TemplateInput{Title: "  Evening ", StartTime: "17:00", EndTime: "23:00"})
	require.NoError(t, err)
	assert.Equal(t, "Evening", st.Title)
	assert.Equal(t, 6.0, st.TotalHours)
	assert.NotNil(t, st.AssignedUsers)

	cases := []TemplateInput{
		{Title: "   ", StartTime: "09:00", EndTime: "17:00"},
		{Title: strings.Repeat("班", 101), StartTime: "09:00", EndTime: "17:00"},
		{Title: "Day", StartTime: "9am", EndTime: "17:00"},
		{Title: "Day", StartTime: "09:00", EndTime: "17:00", Timezone: "Nowhere/City"},
	}
	for _, in := range cases {
		_, err := f.svc.CreateTemplate(ctx, f.admin, in)
		assert.ErrorIs(t, err, domain.ErrValidation, "input %+v", in)
	}

	sts, err := f.svc.ListTemplates(ctx, companyA)
	require.NoError(t, err)
	assert.Len(t, sts, 1)
}

func TestCreateTemplateNormalizesWallClock(t *testing.T) {
	f := newFixture(t)
	f.svc.SetClock(func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) })

	st, err := f.svc.CreateTemplate(context.Background(), f.admin, TemplateInput{
		Title:     "夜班",
		StartTime: "22:00",
		EndTime:   "06:00",
		Timezone:  "Asia/Shanghai",
	})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC), st.StartTime)
	assert.Equal(t, time.Date(2024, 3, 9, 22, 0, 0, 0, time.UTC), st.EndTime)
	assert.Equal(t, 8.0, st.TotalHours)
}

func TestUpdateTemplatePatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.createMorning(t)
	user := f.store.AddUser(companyA, "qianjiu", domain.RoleEmployee, true)
	_, _, err := f.svc.Assignments.Assign(ctx, f.admin, st.ID, user.ID, "all")
	require.NoError(t, err)

	title := " Night "
	updated, err := f.svc.UpdateTemplate(ctx, f.admin, st.ID, TemplatePatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Night", updated.Title)
	assert.Equal(t, st.StartTime, updated.StartTime)
	assert.Equal(t, st.EndTime, updated.EndTime)
	assert.Len(t, updated.AssignedUsers, 1)

	end := "2024-01-02T02:00:00Z"
	updated, err = f.svc.UpdateTemplate(ctx, f.admin, st.ID, TemplatePatch{EndTime: &end})
	require.NoError(t, err)
	assert.Equal(t, 4.0, updated.TotalHours)

	empty := ""
	_, err = f.svc.UpdateTemplate(ctx, f.admin, st.ID, TemplatePatch{Title: &empty})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

// racingStore 在读取和写入之间插入一次其他请求的更新
type racingStore struct {
	*servicetest.Store
}

func (s racingStore) UpdateShiftTemplate(ctx context.Context, st *domain.ShiftTemplate) error {
	concurrent, err := s.Store.GetShiftTemplate(ctx, st.CompanyID, st.ID)
	if err != nil {
		return err
	}
	if err := s.Store.UpdateShiftTemplate(ctx, concurrent); err != nil {
		return err
	}
	return s.Store.UpdateShiftTemplate(ctx, st)
}

func TestUpdateTemplateConflict(t *testing.T) {
	f := newFixture(t)
	st := f.createMorning(t)
	svc := New(f.cfg, racingStore{f.store}, nil, nil, nil)

	title := "Late"
	_, err := svc.UpdateTemplate(context.Background(), f.admin, st.ID, TemplatePatch{Title: &title})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

// deletingStore 在读取和写入之间删除模板
type deletingStore struct {
	*servicetest.Store
}

func (s deletingStore) UpdateShiftTemplate(ctx context.Context, st *domain.ShiftTemplate) error {
	if err := s.Store.DeleteShiftTemplate(ctx, st.CompanyID, st.ID, true); err != nil {
		return err
	}
	return s.Store.UpdateShiftTemplate(ctx, st)
}

func TestUpdateDeletedTemplateIsNotFound(t *testing.T) {
	f := newFixture(t)
	st := f.createMorning(t)
	svc := New(f.cfg, deletingStore{f.store}, nil, nil, nil)

	title := "Late"
	_, err := svc.UpdateTemplate(context.Background(), f.admin, st.ID, TemplatePatch{Title: &title})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotErrorIs(t, err, domain.ErrConflict)
}

func TestDeleteTemplateCascade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	st := f.createMorning(t)
	user := f.store.AddUser(companyA, "wushi", domain.RoleEmployee, true)
	_, _, err := f.svc.Assignments.Assign(ctx, f.admin, st.ID, user.ID, "all")
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteTemplate(ctx, f.admin, st.ID))
	assert.Empty(t, f.store.Assignments())

	_, err = f.svc.GetTemplate(ctx, companyA, st.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, []domain.AssignmentEventType{domain.AssignmentCreated, domain.AssignmentRemoved}, f.notifier.types())
}

func TestDeleteTemplateRestrict(t *testing.T) {
	f := newFixture(t)
	f.cfg.Scheduling.TemplateDeletePolicy = config.DeletePolicyRestrict
	ctx := context.Background()
	st := f.createMorning(t)
	user := f.store.AddUser(companyA, "zhengshiyi", domain.RoleEmployee, true)
	_, _, err := f.svc.Assignments.Assign(ctx, f.admin, st.ID, user.ID, "all")
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeleteTemplate(ctx, f.admin, st.ID), domain.ErrConflict)
	assert.Len(t, f.store.Assignments(), 1)

	require.NoError(t, f.svc.Assignments.Remove(ctx, f.admin, st.ID, user.ID))
	require.NoError(t, f.svc.DeleteTemplate(ctx, f.admin, st.ID))
}

func TestShiftsOn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	weekdays := f.store.AddTemplate(companyA, "Weekday", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 17, 0, 0, 0, time.UTC))
	weekends := f.store.AddTemplate(companyA, "Weekend", time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC))
	daily := f.store.AddTemplate(companyA, "Daily", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 13, 30, 0, 0, time.UTC))

	for _, assign := range []struct {
		id         int64
		recurrence string
	}{
		{weekdays.ID, "weekdays"},
		{weekends.ID, "weekends"},
		{daily.ID, "all"},
	} {
		_, _, err := f.svc.Assignments.Assign(ctx, f.admin, assign.id, f.admin.UserID, assign.recurrence)
		require.NoError(t, err)
	}

	// 2024-01-06 是周六
	shifts, err := f.svc.ShiftsOn(ctx, f.admin, "2024-01-06", "Asia/Shanghai")
	require.NoError(t, err)
	require.Len(t, shifts, 2)
	assert.Equal(t, weekends.ID, shifts[0].Template.ID)
	assert.Equal(t, 8.0, shifts[0].TotalHours)
	assert.Equal(t, "2024-01-06", shifts[0].Date)
	assert.Equal(t, daily.ID, shifts[1].Template.ID)
	assert.Equal(t, 1.5, shifts[1].TotalHours)

	shifts, err = f.svc.ShiftsOn(ctx, f.admin, "2024-01-08", "")
	require.NoError(t, err)
	require.Len(t, shifts, 2)
	assert.Equal(t, weekdays.ID, shifts[0].Template.ID)

	_, err = f.svc.ShiftsOn(ctx, f.admin, "08/01/2024", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
