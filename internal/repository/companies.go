package repository

import (
	"context"
	"time"

	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/domain"
)

func (r *Repository) CreateCompany(ctx context.Context, company *domain.Company) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `
		INSERT INTO companies (name)
		VALUES ($1)
		RETURNING id, created_at
	`

	if err := r.dbpool.QueryRowContext(ctx, query, company.Name).Scan(&company.ID, &company.CreatedAt); err != nil {
		return translateError(err, "公司不存在")
	}

	return nil
}

func (r *Repository) GetCompanyByName(ctx context.Context, name string) (*domain.Company, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
	defer cancel()

	query := `SELECT id, created_at FROM companies WHERE name = $1`

	company := &domain.Company{Name: name}
	if err := r.dbpool.QueryRowContext(ctx, query, name).Scan(&company.ID, &company.CreatedAt); err != nil {
		return nil, translateError(err, "公司不存在")
	}

	return company, nil
}
