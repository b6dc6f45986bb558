package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/config"
	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/metrics"
)

const (
	operationAssign    = "assign"
	operationAssignAll = "assign_all"
	operationRemove    = "remove"
)

// AssignmentManager 管理班次模板和员工之间的分配关系。
// 同一对 (模板, 员工) 最多只有一条分配记录，由存储层的原子 upsert 保证。
type AssignmentManager struct {
	cfg      *config.Config
	store    Store
	locker   Locker
	notifier Notifier
	metrics  *metrics.Metrics
	now      func() time.Time
}

func createdStatus(created bool) domain.BulkItemStatus {
	if created {
		return domain.BulkItemCreated
	}
	return domain.BulkItemUpdated
}

// Assign 把员工分配到模板，已分配时只更新重复规则。返回值 created 表示是否新建了记录。
func (m *AssignmentManager) Assign(ctx context.Context, actor domain.Actor, templateID, userID int64, recurrence string) (*domain.Assignment, bool, error) {
	r, err := domain.ParseRecurrence(recurrence)
	if err != nil {
		return nil, false, err
	}

	st, err := m.store.GetShiftTemplate(ctx, actor.CompanyID, templateID)
	if err != nil {
		return nil, false, err
	}

	user, err := m.store.GetCompanyUser(ctx, actor.CompanyID, userID)
	if err != nil {
		return nil, false, err
	}

	a, created, err := m.upsert(ctx, actor, st, user, r)
	if err != nil {
		m.metrics.ObserveAssignment(operationAssign, string(domain.BulkItemFailed))
		return nil, false, err
	}
	m.metrics.ObserveAssignment(operationAssign, string(createdStatus(created)))

	slog.Info("已分配班次", "company", actor.CompanyID, "template", templateID, "user", userID, "recurrence", r, "created", created)

	return a, created, nil
}

func (m *AssignmentManager) upsert(ctx context.Context, actor domain.Actor, st *domain.ShiftTemplate, user *domain.User, r domain.Recurrence) (*domain.Assignment, bool, error) {
	a := &domain.Assignment{
		ShiftTemplateID: st.ID,
		UserID:          user.ID,
		AssignedBy:      actor.UserID,
		Recurrence:      r,
	}

	created, err := m.store.UpsertAssignment(ctx, actor.CompanyID, a)
	if err != nil {
		return nil, false, err
	}

	eventType := domain.AssignmentUpdated
	if created {
		eventType = domain.AssignmentCreated
	}
	m.publish(ctx, eventType, actor, st, user, r)

	return a, created, nil
}

// eligibleForAssignAll 过滤掉已离职的员工和配置中排除的角色
func (m *AssignmentManager) eligibleForAssignAll(users []*domain.User) []*domain.User {
	eligible := make([]*domain.User, 0, len(users))
	for _, user := range users {
		if !user.IsActive {
			continue
		}
		if slices.Contains(m.cfg.Scheduling.AssignAllExcluded, string(user.Role)) {
			continue
		}
		eligible = append(eligible, user)
	}
	return eligible
}

// AssignAll 把公司内所有符合条件的员工分配到模板。
// 每个员工的分配相互独立，部分失败不会回滚已成功的分配；ctx 取消后不再发起新的写入，
// 剩余员工标记为 skipped。
func (m *AssignmentManager) AssignAll(ctx context.Context, actor domain.Actor, templateID int64, recurrence string) (*domain.BulkAssignResult, error) {
	r, err := domain.ParseRecurrence(recurrence)
	if err != nil {
		return nil, err
	}

	st, err := m.store.GetShiftTemplate(ctx, actor.CompanyID, templateID)
	if err != nil {
		return nil, err
	}

	users, err := m.store.GetCompanyUsers(ctx, actor.CompanyID)
	if err != nil {
		return nil, err
	}
	users = m.eligibleForAssignAll(users)

	// 同一个模板同时只允许一个批量分配
	key := fmt.Sprintf("assign_all_%d_%d", actor.CompanyID, templateID)
	release, err := m.locker.Acquire(ctx, key, time.Duration(m.cfg.Scheduling.AssignAllLockTTL)*time.Second)
	if err != nil {
		return nil, err
	}
	defer release()

	result := &domain.BulkAssignResult{
		ID:         uuid.NewString(),
		TemplateID: templateID,
		Recurrence: r,
		Items:      make([]domain.BulkAssignItem, len(users)),
	}
	errs := make([]error, len(users))

	g := errgroup.Group{}
	g.SetLimit(m.cfg.Scheduling.AssignAllConcurrency)

	for i, user := range users {
		item := &result.Items[i]
		item.UserID = user.ID
		item.Status = domain.BulkItemSkipped

		if ctx.Err() != nil {
			continue
		}

		g.Go(func() error {
			// 等待期间 ctx 可能已被取消
			if ctx.Err() != nil {
				return nil
			}

			a, created, err := m.upsert(ctx, actor, st, user, r)
			if err != nil {
				item.Status = domain.BulkItemFailed
				item.Error = err.Error()
				errs[i] = fmt.Errorf("员工 %d: %w", user.ID, err)
				return nil
			}

			item.Status = createdStatus(created)
			item.Assignment = a
			return nil
		})
	}

	// 每个员工的错误记录在 item 中，goroutine 不返回错误
	_ = g.Wait()

	for _, item := range result.Items {
		switch item.Status {
		case domain.BulkItemCreated, domain.BulkItemUpdated:
			result.Succeeded++
		case domain.BulkItemFailed:
			result.Failed++
		case domain.BulkItemSkipped:
			result.Skipped++
		}
		m.metrics.ObserveAssignment(operationAssignAll, string(item.Status))
	}

	if err := multierr.Combine(errs...); err != nil {
		slog.Warn("批量分配部分失败", "run", result.ID, "company", actor.CompanyID, "template", templateID, "failed", result.Failed, "error", err)
	}
	slog.Info("批量分配完成", "run", result.ID, "company", actor.CompanyID, "template", templateID, "succeeded", result.Succeeded, "failed", result.Failed, "skipped", result.Skipped)

	return result, nil
}

// Remove 取消员工的班次分配。模板、员工或分配记录不存在时返回 ErrNotFound。
func (m *AssignmentManager) Remove(ctx context.Context, actor domain.Actor, templateID, userID int64) error {
	st, err := m.store.GetShiftTemplate(ctx, actor.CompanyID, templateID)
	if err != nil {
		return err
	}

	user, err := m.store.GetCompanyUser(ctx, actor.CompanyID, userID)
	if err != nil {
		return err
	}

	if err := m.store.DeleteAssignment(ctx, actor.CompanyID, templateID, userID); err != nil {
		return err
	}
	m.metrics.ObserveAssignment(operationRemove, "removed")

	slog.Info("已取消班次分配", "company", actor.CompanyID, "template", templateID, "user", userID)

	m.publish(ctx, domain.AssignmentRemoved, actor, st, user, "")

	return nil
}

// ListAssignedUsers 返回模板下的所有员工及其重复规则，按员工 ID 升序
func (m *AssignmentManager) ListAssignedUsers(ctx context.Context, companyID, templateID int64) ([]domain.AssignedUser, error) {
	if _, err := m.store.GetShiftTemplate(ctx, companyID, templateID); err != nil {
		return nil, err
	}

	return m.store.GetAssignedUsers(ctx, companyID, templateID)
}

// publish 发送失败只记录日志，分配本身已经提交
func (m *AssignmentManager) publish(ctx context.Context, eventType domain.AssignmentEventType, actor domain.Actor, st *domain.ShiftTemplate, user *domain.User, r domain.Recurrence) {
	event := domain.AssignmentEvent{
		Type:          eventType,
		CompanyID:     actor.CompanyID,
		TemplateID:    st.ID,
		TemplateTitle: st.Title,
		StartTime:     st.StartTime,
		EndTime:       st.EndTime,
		UserID:        user.ID,
		UserEmail:     user.Email,
		UserFullName:  user.FullName,
		Recurrence:    r,
		ActorID:       actor.UserID,
		OccurredAt:    m.now().UTC(),
	}

	// 请求结束后 ctx 会被取消，事件发送不受其影响
	if err := m.notifier.Publish(context.WithoutCancel(ctx), event); err != nil {
		m.metrics.ObservePublishFailure()
		slog.Error("无法发送分配事件", "type", eventType, "template", st.ID, "user", user.ID, "error", err)
	}
}
