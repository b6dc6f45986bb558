package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/config"
	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/handler"
	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/repository"
	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/seed"
	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/service"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var companyName string
	var file string
	var userID int64

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 创建公司, 2: 插入随机员工, 3: 插入随机班次模板, 4: 从 CSV 导入员工, 5: 随机分配班次, 6: 签发开发用令牌)")
	flag.IntVar(&n, "n", 5, "要插入的记录数量")
	flag.StringVar(&companyName, "company", "示例公司", "公司名称")
	flag.StringVar(&file, "file", "", "要导入的 CSV 文件")
	flag.Int64Var(&userID, "user-id", 0, "签发令牌的用户 ID")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	// 创建 repository
	repo := repository.NewRepository(cfg, dbpool)
	ctx = context.Background()

	if op == 1 {
		company := &domain.Company{Name: companyName}
		if err := repo.CreateCompany(ctx, company); err != nil {
			slog.Error("无法创建公司", slog.String("error", err.Error()))
			return
		}
		slog.Info("创建公司成功", slog.Int64("company_id", company.ID))
		return
	}

	company, err := repo.GetCompanyByName(ctx, companyName)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			slog.Error("指定的公司不存在，请先使用 -op 1 创建", slog.String("company", companyName))
		default:
			slog.Error("无法获取公司", slog.String("error", err.Error()))
		}
		return
	}

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 2:
		if n <= 0 {
			slog.Error("请输入合法的员工数量")
			return
		}

		cnt := 0
		for i := 0; i < n; i++ {
			user := seed.GenerateRandomUser(company.ID, cfg.Seed.EmailDomain)
			if err := repo.CreateUser(ctx, user); err != nil {
				slog.Error("无法插入员工", slog.String("error", err.Error()))
				continue
			}
			cnt++
		}

		slog.Info("插入员工成功", slog.Int("count", cnt))
	case 3:
		if n <= 0 {
			slog.Error("请输入合法的班次模板数量")
			return
		}

		cnt := 0
		for i := 0; i < n; i++ {
			st := seed.GenerateRandomShiftTemplate(company.ID)
			if err := repo.CreateShiftTemplate(ctx, st); err != nil {
				slog.Error("无法插入班次模板", slog.String("error", err.Error()))
				continue
			}
			cnt++
		}

		slog.Info("插入班次模板成功", slog.Int("count", cnt))
	case 4:
		f, err := os.Open(file)
		if err != nil {
			slog.Error("打开文件失败", "error", err)
			return
		}
		defer f.Close()

		cnt, err := seed.ImportUsers(ctx, repo, company.ID, f, cfg.Seed.EmailDomain)
		if err != nil {
			slog.Error("导入员工失败", "error", err)
		}
		slog.Info("导入员工完成", slog.Int("count", cnt))
	case 5:
		// 通过服务层批量分配，不发送事件也不加锁
		svc := service.New(cfg, repo, nil, nil, nil)
		sts, err := svc.ListTemplates(ctx, company.ID)
		if err != nil {
			slog.Error("无法获取班次模板", slog.String("error", err.Error()))
			return
		}

		actor := domain.Actor{CompanyID: company.ID, Role: domain.RoleSuperAdmin}
		for _, st := range sts {
			result, err := svc.Assignments.AssignAll(ctx, actor, st.ID, string(seed.GenerateRandomRecurrence()))
			if err != nil {
				slog.Error("批量分配失败", slog.Int64("template_id", st.ID), slog.String("error", err.Error()))
				continue
			}
			slog.Info("批量分配完成", slog.Int64("template_id", st.ID), slog.Int("succeeded", result.Succeeded), slog.Int("failed", result.Failed))
		}
	case 6:
		user, err := repo.GetCompanyUser(ctx, company.ID, userID)
		if err != nil {
			slog.Error("无法获取用户", slog.String("error", err.Error()))
			return
		}

		actor := domain.Actor{UserID: user.ID, CompanyID: company.ID, Role: user.Role}
		token, err := handler.IssueToken(cfg.JWT.Secret, actor, time.Duration(cfg.JWT.Expiration)*time.Second)
		if err != nil {
			slog.Error("无法签发令牌", slog.String("error", err.Error()))
			return
		}
		fmt.Println(token)
	default:
		slog.Error("指定的操作非法")
	}
}
