package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/config"
	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/scheduler"
)

// Store 是服务层依赖的持久化接口，由 repository.Repository 实现。
// 所有方法都必须按 companyID 过滤，其他公司的数据一律视为不存在。
type Store interface {
	GetAllShiftTemplates(ctx context.Context, companyID int64) ([]*domain.ShiftTemplate, error)
	GetShiftTemplate(ctx context.Context, companyID, id int64) (*domain.ShiftTemplate, error)
	CreateShiftTemplate(ctx context.Context, st *domain.ShiftTemplate) error
	UpdateShiftTemplate(ctx context.Context, st *domain.ShiftTemplate) error
	DeleteShiftTemplate(ctx context.Context, companyID, id int64, cascade bool) error

	UpsertAssignment(ctx context.Context, companyID int64, a *domain.Assignment) (bool, error)
	DeleteAssignment(ctx context.Context, companyID, templateID, userID int64) error
	GetAssignedUsers(ctx context.Context, companyID, templateID int64) ([]domain.AssignedUser, error)
	GetAllAssignedUsers(ctx context.Context, companyID int64) ([]domain.AssignedUser, error)
	GetUserShifts(ctx context.Context, companyID, userID int64) ([]domain.ScheduledShift, error)

	GetCompanyUser(ctx context.Context, companyID, id int64) (*domain.User, error)
	GetCompanyUsers(ctx context.Context, companyID int64) ([]*domain.User, error)
}

// Locker 提供跨进程的互斥锁，release 必须可以重复调用
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// Notifier 把分配变化通知给外部的通知服务
type Notifier interface {
	Publish(ctx context.Context, event domain.AssignmentEvent) error
}

type nopLocker struct{}

func (nopLocker) Acquire(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, domain.AssignmentEvent) error {
	return nil
}

// Service 是 HTTP 层调用的排班服务，负责时间归一化和响应数据的组装
type Service struct {
	cfg        *config.Config
	store      Store
	normalizer *scheduler.Normalizer

	Assignments *AssignmentManager
}

// New 创建服务。locker 和 notifier 可以为 nil，此时分别不加锁、不发送事件。
func New(cfg *config.Config, store Store, locker Locker, notifier Notifier, m *metrics.Metrics) *Service {
	if locker == nil {
		locker = nopLocker{}
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}

	normalizer := scheduler.NewNormalizer()

	return &Service{
		cfg:        cfg,
		store:      store,
		normalizer: normalizer,

		Assignments: &AssignmentManager{
			cfg:      cfg,
			store:    store,
			locker:   locker,
			notifier: notifier,
			metrics:  m,
			now:      time.Now,
		},
	}
}

// SetClock 替换服务使用的当前时间，用于测试
func (s *Service) SetClock(now func() time.Time) {
	s.normalizer.Now = now
	s.Assignments.now = now
}

type TemplateInput struct {
	Title     string
	StartTime string
	EndTime   string
	Timezone  string
}

// TemplatePatch 中为 nil 的字段保持不变
type TemplatePatch struct {
	Title     *string
	StartTime *string
	EndTime   *string
	Timezone  string
}

func (s *Service) normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: 班次名称不能为空", domain.ErrValidation)
	}
	if utf8.RuneCountInString(title) > s.cfg.Scheduling.TitleMaxLength {
		return "", fmt.Errorf("%w: 班次名称不能超过 %d 个字符", domain.ErrValidation, s.cfg.Scheduling.TitleMaxLength)
	}

	return title, nil
}

func (s *Service) shape(st *domain.ShiftTemplate, assigned []domain.AssignedUser) *domain.ShiftTemplate {
	st.TotalHours = scheduler.TotalHours(st.StartTime, st.EndTime)
	if assigned == nil {
		assigned = make([]domain.AssignedUser, 0)
	}
	st.AssignedUsers = assigned
	return st
}

// ListTemplates 返回公司的所有班次模板，按 ID 升序，附带已分配员工和时长
func (s *Service) ListTemplates(ctx context.Context, companyID int64) ([]*domain.ShiftTemplate, error) {
	sts, err := s.store.GetAllShiftTemplates(ctx, companyID)
	if err != nil {
		return nil, err
	}

	assigned, err := s.store.GetAllAssignedUsers(ctx, companyID)
	if err != nil {
		return nil, err
	}

	byTemplate := make(map[int64][]domain.AssignedUser, len(sts))
	for _, au := range assigned {
		byTemplate[au.ShiftTemplateID] = append(byTemplate[au.ShiftTemplateID], au)
	}

	for _, st := range sts {
		s.shape(st, byTemplate[st.ID])
	}

	return sts, nil
}

func (s *Service) GetTemplate(ctx context.Context, companyID, id int64) (*domain.ShiftTemplate, error) {
	st, err := s.store.GetShiftTemplate(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	assigned, err := s.store.GetAssignedUsers(ctx, companyID, id)
	if err != nil {
		return nil, err
	}

	return s.shape(st, assigned), nil
}

// CreateTemplate 在写入前完成所有校验，校验失败时不会产生任何数据
func (s *Service) CreateTemplate(ctx context.Context, actor domain.Actor, in TemplateInput) (*domain.ShiftTemplate, error) {
	title, err := s.normalizeTitle(in.Title)
	if err != nil {
		return nil, err
	}

	start, err := s.normalizer.ToUTC(in.StartTime, in.Timezone)
	if err != nil {
		return nil, err
	}
	end, err := s.normalizer.ToUTC(in.EndTime, in.Timezone)
	if err != nil {
		return nil, err
	}

	st := &domain.ShiftTemplate{
		CompanyID: actor.CompanyID,
		Title:     title,
		StartTime: start,
		EndTime:   end,
	}
	if err := s.store.CreateShiftTemplate(ctx, st); err != nil {
		return nil, err
	}

	slog.Info("已创建班次模板", "company", actor.CompanyID, "template", st.ID, "actor", actor.UserID)

	return s.shape(st, nil), nil
}

func (s *Service) UpdateTemplate(ctx context.Context, actor domain.Actor, id int64, patch TemplatePatch) (*domain.ShiftTemplate, error) {
	st, err := s.store.GetShiftTemplate(ctx, actor.CompanyID, id)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		title, err := s.normalizeTitle(*patch.Title)
		if err != nil {
			return nil, err
		}
		st.Title = title
	}
	if patch.StartTime != nil {
		start, err := s.normalizer.ToUTC(*patch.StartTime, patch.Timezone)
		if err != nil {
			return nil, err
		}
		st.StartTime = start
	}
	if patch.EndTime != nil {
		end, err := s.normalizer.ToUTC(*patch.EndTime, patch.Timezone)
		if err != nil {
			return nil, err
		}
		st.EndTime = end
	}

	if err := s.store.UpdateShiftTemplate(ctx, st); err != nil {
		return nil, err
	}

	assigned, err := s.store.GetAssignedUsers(ctx, actor.CompanyID, id)
	if err != nil {
		return nil, err
	}

	slog.Info("已更新班次模板", "company", actor.CompanyID, "template", id, "actor", actor.UserID)

	return s.shape(st, assigned), nil
}

// DeleteTemplate 按配置的策略删除模板。cascade 策略下同时删除所有分配并通知相关员工。
func (s *Service) DeleteTemplate(ctx context.Context, actor domain.Actor, id int64) error {
	st, err := s.store.GetShiftTemplate(ctx, actor.CompanyID, id)
	if err != nil {
		return err
	}

	assigned, err := s.store.GetAssignedUsers(ctx, actor.CompanyID, id)
	if err != nil {
		return err
	}

	cascade := s.cfg.Scheduling.TemplateDeletePolicy == config.DeletePolicyCascade
	if err := s.store.DeleteShiftTemplate(ctx, actor.CompanyID, id, cascade); err != nil {
		return err
	}

	slog.Info("已删除班次模板", "company", actor.CompanyID, "template", id, "actor", actor.UserID, "assignments", len(assigned))

	for _, au := range assigned {
		s.Assignments.publish(ctx, domain.AssignmentRemoved, actor, st, au.User, au.Recurrence)
	}

	return nil
}

// ShiftsOn 返回员工在 date（tz 时区的日历日期）当天需要上的班次
func (s *Service) ShiftsOn(ctx context.Context, actor domain.Actor, date string, tz string) ([]domain.ScheduledShift, error) {
	day, err := s.normalizer.Date(date, tz)
	if err != nil {
		return nil, err
	}

	shifts, err := s.store.GetUserShifts(ctx, actor.CompanyID, actor.UserID)
	if err != nil {
		return nil, err
	}

	result := make([]domain.ScheduledShift, 0, len(shifts))
	for _, shift := range shifts {
		if !scheduler.Applies(shift.Recurrence, day) {
			continue
		}

		shift.Date = day.Format(scheduler.DateLayout)
		shift.TotalHours = scheduler.TotalHours(shift.Template.StartTime, shift.Template.EndTime)
		shift.Template.TotalHours = shift.TotalHours
		result = append(result, shift)
	}

	return result, nil
}
