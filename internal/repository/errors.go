package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgStringTooLong       = "22001"
)

// translateError 将数据库错误转换为领域错误，无法识别的错误原样返回
func translateError(err error, notFound string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, notFound)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.ConstraintName {
	case "companies_name_key":
		return fmt.Errorf("%w: 公司名称已存在", domain.ErrConflict)
	case "users_username_key":
		return fmt.Errorf("%w: 用户名已存在", domain.ErrConflict)
	case "users_email_key":
		return fmt.Errorf("%w: 邮箱已存在", domain.ErrConflict)
	case "shift_assignments_template_user_key":
		return fmt.Errorf("%w: 该员工已被分配到此班次", domain.ErrConflict)
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.ConstraintName)
	case pgForeignKeyViolation:
		// 引用的班次模板或用户在写入过程中被删除
		return fmt.Errorf("%w: %s", domain.ErrNotFound, notFound)
	case pgCheckViolation:
		return fmt.Errorf("%w: %s", domain.ErrValidation, pgErr.ConstraintName)
	case pgStringTooLong:
		return fmt.Errorf("%w: 字段长度超出限制", domain.ErrValidation)
	}

	return err
}
