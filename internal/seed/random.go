package seed

import (
	"math/rand"
	"time"

	"github.com/mozillazg/go-pinyin"
	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/domain"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

func GenerateRandomChineseName() string {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	nameLength := rand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

// 大部分用户是普通员工
var roles = []domain.Role{
	domain.RoleEmployee,
	domain.RoleEmployee,
	domain.RoleEmployee,
	domain.RoleEmployee,
	domain.RoleAdmin,
}

func GenerateRandomRole() domain.Role {
	return roles[rand.Intn(len(roles))]
}

var digits = "0123456789"

func GenerateUsernameFromChineseName(chineseName string) string {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	username := ""

	for _, pinyin := range pinyinArray {
		length := rand.Intn(len(pinyin)) + 1
		username += pinyin[:length]
	}

	digitsLength := rand.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		username += string(digits[rand.Intn(len(digits))])
	}

	return username
}

func GenerateRandomUser(companyID int64, emailDomainName string) *domain.User {
	fullName := GenerateRandomChineseName()
	username := GenerateUsernameFromChineseName(fullName)

	return &domain.User{
		CompanyID: companyID,
		Username:  username,
		FullName:  fullName,
		Email:     username + "@" + emailDomainName,
		Role:      GenerateRandomRole(),
	}
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")

func GenerateRandomID(letterLength int, digitLength int) string {
	random_id := make([]rune, letterLength+digitLength)
	for i := range random_id {
		if i < letterLength {
			random_id[i] = letters[rand.Intn(len(letters))]
		} else {
			random_id[i] = rune(digits[rand.Intn(len(digits))])
		}
	}
	return string(random_id)
}

var shiftTitles = []string{"早班", "中班", "晚班", "夜班", "前台", "值班"}

// GenerateRandomShiftTemplate 生成一个 1~12 小时的班次，开始时间按 15 分钟对齐，可能跨夜
func GenerateRandomShiftTemplate(companyID int64) *domain.ShiftTemplate {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	start := today.Add(time.Duration(rand.Intn(96)) * 15 * time.Minute)
	end := start.Add(time.Duration(rand.Intn(45)+4) * 15 * time.Minute)

	return &domain.ShiftTemplate{
		CompanyID: companyID,
		Title:     shiftTitles[rand.Intn(len(shiftTitles))] + GenerateRandomID(2, 2),
		StartTime: start,
		EndTime:   end,
	}
}

var recurrences = []domain.Recurrence{
	domain.RecurrenceAll,
	domain.RecurrenceWeekdays,
	domain.RecurrenceWeekends,
}

func GenerateRandomRecurrence() domain.Recurrence {
	return recurrences[rand.Intn(len(recurrences))]
}
