package repository

import (
	"context"
	"time"

	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/domain"
)

const userNotFound = "员工不存在"

// GetCompanyUser 只在 companyID 内查找员工，其他公司的员工视为不存在
func (r *Repository) GetCompanyUser(ctx context.Context, companyID, id int64) (*domain.User, error) {
	query := `
		SELECT username, full_name, email, role, is_active, created_at, version
		FROM users WHERE id = $1 AND company_id = $2
	`

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	user := &domain.User{
		ID:        id,
		CompanyID: companyID,
	}

	dst := []any{&user.Username, &user.FullName, &user.Email, &user.Role, &user.IsActive, &user.CreatedAt, &user.Version}
	if err := r.dbpool.QueryRowContext(ctx, query, id, companyID).Scan(dst...); err != nil {
		return nil, translateError(err, userNotFound)
	}

	user.CreatedAt = user.CreatedAt.UTC()

	return user, nil
}

func (r *Repository) GetCompanyUsers(ctx context.Context, companyID int64) ([]*domain.User, error) {
	query := `
		SELECT id, username, full_name, email, role, is_active, created_at, version
		FROM users WHERE company_id = $1
		ORDER BY id
	`

	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user := &domain.User{CompanyID: companyID}
		dst := []any{&user.ID, &user.Username, &user.FullName, &user.Email, &user.Role, &user.IsActive, &user.CreatedAt, &user.Version}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}

func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		INSERT INTO users (company_id, username, full_name, email, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, is_active, created_at, version
	`

	args := []any{user.CompanyID, user.Username, user.FullName, user.Email, user.Role}
	if err := r.dbpool.QueryRowContext(ctx, query, args...).Scan(&user.ID, &user.IsActive, &user.CreatedAt, &user.Version); err != nil {
		return translateError(err, "公司不存在")
	}

	return nil
}
