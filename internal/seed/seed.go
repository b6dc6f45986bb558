package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/domain"
)

// 导入文件必须包含的列
var requiredHeaders = []string{"姓名", "用户名"}

type UserCreator interface {
	CreateUser(ctx context.Context, user *domain.User) error
}

// ImportUsers 从 CSV 导入员工。表头必须包含“姓名”和“用户名”，可选“邮箱”和“角色”。
// 邮箱为空时使用 用户名@emailDomain，角色为空时为普通员工。
// 单行出错只记录日志并跳过，返回成功导入的数量。
func ImportUsers(ctx context.Context, creator UserCreator, companyID int64, r io.Reader, emailDomain string) (int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	// 读取表头
	headers, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("读取表头失败: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(headers[i], "\ufeff"))
	}
	for _, required := range requiredHeaders {
		if !slices.Contains(headers, required) {
			return 0, fmt.Errorf("没有找到 %s 列", required)
		}
	}

	cnt := 0
	line := 1
	for {
		row, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return cnt, fmt.Errorf("读取文件失败: %w", err)
		}
		line++

		record := make(map[string]string, len(headers))
		for i, value := range row {
			record[headers[i]] = strings.TrimSpace(value)
		}

		user, err := userFromRecord(record, companyID, emailDomain)
		if err != nil {
			slog.Error("无效的记录", "line", line, "error", err)
			continue
		}

		if err := creator.CreateUser(ctx, user); err != nil {
			slog.Error("无法插入员工", "line", line, "username", user.Username, "error", err)
			continue
		}

		cnt++
	}

	return cnt, nil
}

func userFromRecord(record map[string]string, companyID int64, emailDomain string) (*domain.User, error) {
	user := &domain.User{
		CompanyID: companyID,
		FullName:  record["姓名"],
		Username:  record["用户名"],
		Email:     record["邮箱"],
		Role:      domain.Role(record["角色"]),
	}

	if user.FullName == "" || user.Username == "" {
		return nil, errors.New("姓名和用户名不能为空")
	}
	if user.Email == "" {
		user.Email = user.Username + "@" + emailDomain
	}

	switch user.Role {
	case "":
		user.Role = domain.RoleEmployee
	case domain.RoleEmployee, domain.RoleAdmin, domain.RoleSuperAdmin:
	default:
		return nil, fmt.Errorf("未知的角色 %q", user.Role)
	}

	return user, nil
}
