package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/domain"
)

const shiftTemplateNotFound = "班次模板不存在"

func scanShiftTemplate(scan func(dest ...any) error, st *domain.ShiftTemplate) error {
	dst := []any{
		&st.ID,
		&st.CompanyID,
		&st.Title,
		&st.StartTime,
		&st.EndTime,
		&st.CreatedAt,
		&st.UpdatedAt,
		&st.Version,
	}
	if err := scan(dst...); err != nil {
		return err
	}

	st.StartTime = st.StartTime.UTC()
	st.EndTime = st.EndTime.UTC()
	st.CreatedAt = st.CreatedAt.UTC()
	st.UpdatedAt = st.UpdatedAt.UTC()
	st.AssignedUsers = make([]domain.AssignedUser, 0)

	return nil
}

func (r *Repository) GetAllShiftTemplates(ctx context.Context, companyID int64) ([]*domain.ShiftTemplate, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		SELECT id, company_id, title, start_time, end_time, created_at, updated_at, version
		FROM shift_templates
		WHERE company_id = $1
		ORDER BY id
	`

	rows, err := r.dbpool.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sts := make([]*domain.ShiftTemplate, 0)
	for rows.Next() {
		st := &domain.ShiftTemplate{}
		if err := scanShiftTemplate(rows.Scan, st); err != nil {
			return nil, err
		}
		sts = append(sts, st)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sts, nil
}

func (r *Repository) GetShiftTemplate(ctx context.Context, companyID, id int64) (*domain.ShiftTemplate, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		SELECT id, company_id, title, start_time, end_time, created_at, updated_at, version
		FROM shift_templates
		WHERE id = $1 AND company_id = $2
	`

	st := &domain.ShiftTemplate{}
	if err := scanShiftTemplate(r.dbpool.QueryRowContext(ctx, query, id, companyID).Scan, st); err != nil {
		return nil, translateError(err, shiftTemplateNotFound)
	}

	return st, nil
}

func (r *Repository) CreateShiftTemplate(ctx context.Context, st *domain.ShiftTemplate) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		INSERT INTO shift_templates (company_id, title, start_time, end_time)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at, version
	`

	params := []any{st.CompanyID, st.Title, st.StartTime, st.EndTime}
	dst := []any{&st.ID, &st.CreatedAt, &st.UpdatedAt, &st.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, params...).Scan(dst...); err != nil {
		return translateError(err, "公司不存在")
	}

	st.CreatedAt = st.CreatedAt.UTC()
	st.UpdatedAt = st.UpdatedAt.UTC()

	return nil
}

// UpdateShiftTemplate 使用乐观锁更新模板。版本号不一致返回 ErrConflict，模板已被删除返回 ErrNotFound
func (r *Repository) UpdateShiftTemplate(ctx context.Context, st *domain.ShiftTemplate) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		UPDATE shift_templates
		SET
			title = $1,
			start_time = $2,
			end_time = $3,
			updated_at = NOW(),
			version = version + 1
		WHERE id = $4 AND company_id = $5 AND version = $6
		RETURNING updated_at, version
	`

	params := []any{st.Title, st.StartTime, st.EndTime, st.ID, st.CompanyID, st.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, params...).Scan(&st.UpdatedAt, &st.Version); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return translateError(err, shiftTemplateNotFound)
		}

		// 没有更新到任何行时区分模板已被删除和版本号不一致两种情况
		var exists bool
		query = `SELECT EXISTS (SELECT 1 FROM shift_templates WHERE id = $1 AND company_id = $2)`
		if err := r.dbpool.QueryRowContext(ctx, query, st.ID, st.CompanyID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, shiftTemplateNotFound)
		}
		return fmt.Errorf("%w: 班次模板已被修改，请重试", domain.ErrConflict)
	}

	st.UpdatedAt = st.UpdatedAt.UTC()

	return nil
}

// DeleteShiftTemplate 删除模板。cascade 为 false 时，只要模板仍有分配记录就拒绝删除。
// 检查和删除在同一个事务中完成，模板行被锁住，期间新的分配会等待事务结束。
func (r *Repository) DeleteShiftTemplate(ctx context.Context, companyID, id int64, cascade bool) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `SELECT id FROM shift_templates WHERE id = $1 AND company_id = $2 FOR UPDATE`
	var lockedID int64
	if err := tx.QueryRowContext(ctx, query, id, companyID).Scan(&lockedID); err != nil {
		return translateError(err, shiftTemplateNotFound)
	}

	if !cascade {
		query = `SELECT EXISTS (SELECT 1 FROM shift_assignments WHERE shift_template_id = $1)`
		var assigned bool
		if err := tx.QueryRowContext(ctx, query, id).Scan(&assigned); err != nil {
			return err
		}
		if assigned {
			return fmt.Errorf("%w: 该班次模板仍有员工分配，无法删除", domain.ErrConflict)
		}
	}

	// shift_assignments 的外键为 ON DELETE CASCADE
	query = `DELETE FROM shift_templates WHERE id = $1 AND company_id = $2`
	if _, err := tx.ExecContext(ctx, query, id, companyID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	return nil
}
