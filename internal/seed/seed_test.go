package seed

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/domain"
	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/scheduler"
)

type memoryCreator struct {
	users []*domain.User
}

func (c *memoryCreator) CreateUser(_ context.Context, user *domain.User) error {
	for _, u := range c.users {
		if u.Username == user.Username {
			return errors.New("用户名已存在")
		}
	}
	c.users = append(c.users, user)
	return nil
}

func TestImportUsers(t *testing.T) {
	csvData := "\ufeff姓名,用户名,邮箱,角色\n" +
		"张三,zhangsan,zs@corp.cn,admin\n" +
		"李四,lisi,,\n" +
		"王五,lisi,,\n" +
		",nobody,,\n" +
		"赵六,zhaoliu,,owner\n"

	creator := &memoryCreator{}
	cnt, err := ImportUsers(context.Background(), creator, 9, strings.NewReader(csvData), "example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, cnt)

	require.Len(t, creator.users, 2)
	assert.Equal(t, "zs@corp.cn", creator.users[0].Email)
	assert.Equal(t, domain.RoleAdmin, creator.users[0].Role)
	assert.Equal(t, "lisi@example.com", creator.users[1].Email)
	assert.Equal(t, domain.RoleEmployee, creator.users[1].Role)
	assert.Equal(t, int64(9), creator.users[1].CompanyID)
}

func TestImportUsersMissingHeader(t *testing.T) {
	_, err := ImportUsers(context.Background(), &memoryCreator{}, 1, strings.NewReader("姓名,邮箱\n张三,a@b.c\n"), "example.com")
	assert.Error(t, err)
}

func TestGenerateRandomUser(t *testing.T) {
	user := GenerateRandomUser(3, "example.com")

	assert.Equal(t, int64(3), user.CompanyID)
	assert.NotEmpty(t, user.FullName)
	assert.True(t, strings.HasSuffix(user.Email, "@example.com"))
	for _, r := range user.Username {
		assert.True(t, r < unicode.MaxASCII, user.Username)
	}
}

func TestGenerateRandomShiftTemplate(t *testing.T) {
	for range 50 {
		st := GenerateRandomShiftTemplate(1)
		hours := scheduler.TotalHours(st.StartTime, st.EndTime)
		assert.GreaterOrEqual(t, hours, 1.0)
		assert.LessOrEqual(t, hours, 12.0)
	}
}
