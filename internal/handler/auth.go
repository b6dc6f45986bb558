package handler

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/domain"
)

// AuthClaims 由上游的认证服务签发，sub 为用户 ID
type AuthClaims struct {
	CompanyID int64  `json:"company_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken 签发与认证服务格式一致的令牌，供种子脚本和测试使用
func IssueToken(secret string, actor domain.Actor, expiration time.Duration) (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AuthClaims{
		CompanyID: actor.CompanyID,
		Role:      string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Subject:   strconv.FormatInt(actor.UserID, 10),
		},
	})

	return token.SignedString([]byte(secret))
}

func (h *Handler) parseToken(tokenString string) (domain.Actor, bool) {
	claims := &AuthClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(h.config.JWT.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Actor{}, false
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 || claims.CompanyID <= 0 {
		return domain.Actor{}, false
	}

	role := domain.Role(claims.Role)
	switch role {
	case domain.RoleSuperAdmin, domain.RoleAdmin, domain.RoleEmployee:
	default:
		return domain.Actor{}, false
	}

	return domain.Actor{
		UserID:    userID,
		CompanyID: claims.CompanyID,
		Role:      role,
	}, true
}
