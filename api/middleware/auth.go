package middleware

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"ordercore/api/ctxutil"
	"ordercore/api/response"
	"ordercore/config"
	apperrors "ordercore/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// DevUserHeader 和 DevAdminHeader 仅在非生产环境且请求未携带 Bearer token 时生效
	DevUserHeader  = "X-User-ID"
	DevAdminHeader = "X-Admin-ID"
)

// Claims token 由认证服务签发，sub 为用户 id
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator 校验 HS256 Bearer token
type Authenticator struct {
	secret     []byte
	issuer     string
	devHeaders bool
}

func NewAuthenticator(cfg config.AuthConfig, devHeaders bool) *Authenticator {
	return &Authenticator{secret: []byte(cfg.JWTSecret), issuer: cfg.Issuer, devHeaders: devHeaders}
}

// Parse 返回 token 中的用户 id 和角色
func (a *Authenticator) Parse(token string) (string, ctxutil.Role, error) {
	if len(a.secret) == 0 {
		return "", "", errors.New("token verification is not configured")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	var claims Claims
	if _, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...); err != nil {
		return "", "", err
	}
	if claims.Subject == "" {
		return "", "", errors.New("token has no subject")
	}
	role := ctxutil.RoleCustomer
	if claims.Role == string(ctxutil.RoleAdmin) {
		role = ctxutil.RoleAdmin
	}
	return claims.Subject, role, nil
}

// Issue 签发 token，供本地调试和测试使用
func (a *Authenticator) Issue(subject string, role ctxutil.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authenticator) identify(c *gin.Context) (string, ctxutil.Role, error) {
	header := c.GetHeader("Authorization")
	if header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return "", "", errors.New("authorization header must be a Bearer token")
		}
		return a.Parse(strings.TrimSpace(token))
	}
	if a.devHeaders {
		if id := c.GetHeader(DevAdminHeader); id != "" {
			return id, ctxutil.RoleAdmin, nil
		}
		if id := c.GetHeader(DevUserHeader); id != "" {
			return id, ctxutil.RoleCustomer, nil
		}
	}
	return "", "", errors.New("missing bearer token")
}

// RequireUser 任何已认证调用方
func (a *Authenticator) RequireUser() gin.HandlerFunc {
	return a.require(false)
}

// RequireAdmin 仅管理员
func (a *Authenticator) RequireAdmin() gin.HandlerFunc {
	return a.require(true)
}

func (a *Authenticator) require(admin bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, err := a.identify(c)
		if err != nil {
			response.HandleAppError(c, apperrors.Wrap(err, apperrors.CodeUnauthorized, "authentication required"))
			c.Abort()
			return
		}
		if admin && role != ctxutil.RoleAdmin {
			response.HandleAppError(c, apperrors.Forbidden(fmt.Sprintf("user %s is not an administrator", userID)))
			c.Abort()
			return
		}
		ctxutil.SetIdentity(c, userID, role)
		c.Next()
	}
}
