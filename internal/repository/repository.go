package repository

import (
	"database/sql"

	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/config"
)

// Repository 的每一条语句都按 company_id 过滤，不会先查出其他租户的数据再在内存中筛选
type Repository struct {
	cfg    *config.Config
	dbpool *sql.DB
}

func NewRepository(cfg *config.Config, dbpool *sql.DB) *Repository {
	return &Repository{
		cfg:    cfg,
		dbpool: dbpool,
	}
}
