package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/domain"
)

const assignmentNotFound = "班次模板或员工不存在"

// UpsertAssignment 原子地插入或更新 (班次模板, 员工) 的分配记录。
// 唯一约束 shift_assignments_template_user_key 保证并发请求只会产生一行；
// 已存在时只更新重复规则，assigned_by 保留第一次分配的操作人。
// 模板和员工必须都属于 companyID，否则不写入任何数据并返回 ErrNotFound。
// 返回值 created 表示是否新建了记录。
func (r *Repository) UpsertAssignment(ctx context.Context, companyID int64, a *domain.Assignment) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		INSERT INTO shift_assignments (shift_template_id, user_id, assigned_by, recurrence)
		SELECT st.id, u.id, $3::BIGINT, $4::TEXT
		FROM shift_templates st
		JOIN users u ON u.company_id = st.company_id
		WHERE st.id = $1 AND u.id = $2 AND st.company_id = $5
		ON CONFLICT ON CONSTRAINT shift_assignments_template_user_key
		DO UPDATE SET
			recurrence = EXCLUDED.recurrence,
			updated_at = NOW(),
			version = shift_assignments.version + 1
		RETURNING id, assigned_by, created_at, updated_at, version, (xmax = 0) AS inserted
	`

	var assignedBy sql.NullInt64
	var created bool

	// 操作人为 0 时（例如种子脚本）不记录 assigned_by
	actor := sql.NullInt64{Int64: a.AssignedBy, Valid: a.AssignedBy != 0}

	params := []any{a.ShiftTemplateID, a.UserID, actor, a.Recurrence, companyID}
	dst := []any{&a.ID, &assignedBy, &a.CreatedAt, &a.UpdatedAt, &a.Version, &created}
	if err := r.dbpool.QueryRowContext(ctx, query, params...).Scan(dst...); err != nil {
		return false, translateError(err, assignmentNotFound)
	}

	a.AssignedBy = assignedBy.Int64
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()

	return created, nil
}

func (r *Repository) DeleteAssignment(ctx context.Context, companyID, templateID, userID int64) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		DELETE FROM shift_assignments sa
		USING shift_templates st, users u
		WHERE sa.shift_template_id = st.id
			AND sa.user_id = u.id
			AND st.id = $1
			AND u.id = $2
			AND st.company_id = $3
			AND u.company_id = $3
	`

	result, err := r.dbpool.ExecContext(ctx, query, templateID, userID, companyID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: 分配记录不存在", domain.ErrNotFound)
	}

	return nil
}

func (r *Repository) queryAssignedUsers(ctx context.Context, query string, args ...any) ([]domain.AssignedUser, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	aus := make([]domain.AssignedUser, 0)
	for rows.Next() {
		var assignedBy sql.NullInt64
		au := domain.AssignedUser{User: &domain.User{}}

		dst := []any{
			&au.AssignmentID,
			&au.ShiftTemplateID,
			&assignedBy,
			&au.Recurrence,
			&au.User.ID,
			&au.User.CompanyID,
			&au.User.Username,
			&au.User.FullName,
			&au.User.Email,
			&au.User.Role,
			&au.User.IsActive,
			&au.User.CreatedAt,
			&au.User.Version,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}

		au.AssignedBy = assignedBy.Int64
		au.User.CreatedAt = au.User.CreatedAt.UTC()
		aus = append(aus, au)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return aus, nil
}

const assignedUserColumns = `
	sa.id,
	sa.shift_template_id,
	sa.assigned_by,
	sa.recurrence,
	u.id,
	u.company_id,
	u.username,
	u.full_name,
	u.email,
	u.role,
	u.is_active,
	u.created_at,
	u.version
`

// GetAssignedUsers 返回某个模板下的所有员工，按员工 ID 排序
func (r *Repository) GetAssignedUsers(ctx context.Context, companyID, templateID int64) ([]domain.AssignedUser, error) {
	query := `
		SELECT ` + assignedUserColumns + `
		FROM shift_assignments sa
		JOIN shift_templates st ON st.id = sa.shift_template_id
		JOIN users u ON u.id = sa.user_id
		WHERE st.id = $1 AND st.company_id = $2
		ORDER BY u.id
	`

	return r.queryAssignedUsers(ctx, query, templateID, companyID)
}

// GetAllAssignedUsers 返回公司内所有模板的分配情况，按模板 ID、员工 ID 排序
func (r *Repository) GetAllAssignedUsers(ctx context.Context, companyID int64) ([]domain.AssignedUser, error) {
	query := `
		SELECT ` + assignedUserColumns + `
		FROM shift_assignments sa
		JOIN shift_templates st ON st.id = sa.shift_template_id
		JOIN users u ON u.id = sa.user_id
		WHERE st.company_id = $1
		ORDER BY sa.shift_template_id, u.id
	`

	return r.queryAssignedUsers(ctx, query, companyID)
}

// GetUserShifts 返回员工被分配的所有班次模板以及对应的重复规则
func (r *Repository) GetUserShifts(ctx context.Context, companyID, userID int64) ([]domain.ScheduledShift, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		SELECT
			st.id,
			st.company_id,
			st.title,
			st.start_time,
			st.end_time,
			st.created_at,
			st.updated_at,
			st.version,
			sa.recurrence
		FROM shift_assignments sa
		JOIN shift_templates st ON st.id = sa.shift_template_id
		WHERE sa.user_id = $1 AND st.company_id = $2
		ORDER BY st.id
	`

	rows, err := r.dbpool.QueryContext(ctx, query, userID, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shifts := make([]domain.ScheduledShift, 0)
	for rows.Next() {
		var recurrence domain.Recurrence
		st := &domain.ShiftTemplate{}

		scan := func(dest ...any) error {
			return rows.Scan(append(dest, &recurrence)...)
		}
		if err := scanShiftTemplate(scan, st); err != nil {
			return nil, err
		}

		shifts = append(shifts, domain.ScheduledShift{
			Template:   st,
			Recurrence: recurrence,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return shifts, nil
}
