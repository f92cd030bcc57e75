package service

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/seyoonp1/running/internal/config"
	"github.com/seyoonp1/running/internal/errors"
	"github.com/seyoonp1/running/internal/models"
	"github.com/seyoonp1/running/internal/repository"
	"github.com/seyoonp1/running/internal/utils"
)

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=6,max=100"`
	Nickname string `json:"nickname" binding:"max=100"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse 认证响应
type AuthResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
}

// AuthService 认证服务
type AuthService interface {
	Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error)
	ValidateToken(ctx context.Context, token string) (*utils.JWTClaims, error)
}

type authService struct {
	users repository.UserRepository
	jwt   *utils.JWTManager
	cfg   config.RatingConfig
}

// NewAuthService 创建认证服务
func NewAuthService(db *gorm.DB, jwtCfg config.JWTConfig, ratingCfg config.RatingConfig) AuthService {
	return &authService{
		users: repository.NewUserRepository(db),
		jwt: utils.NewJWTManager(
			jwtCfg.Secret,
			time.Duration(jwtCfg.ExpireHours)*time.Hour,
			time.Duration(jwtCfg.RefreshHours)*time.Hour,
		),
		cfg: ratingCfg,
	}
}

// Register 注册新用户
func (s *authService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	if existing, _ := s.users.FindByUsername(ctx, req.Username); existing != nil {
		return nil, errors.New(errors.ErrAlreadyExists, "用户名已被占用")
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrUnknown, "密码加密失败")
	}

	nickname := req.Nickname
	if nickname == "" {
		nickname = req.Username
	}

	user := &models.User{
		Username:      req.Username,
		Nickname:      nickname,
		Status:        "active",
		Rating:        s.cfg.InitialRating,
		HighestRating: s.cfg.InitialRating,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	if err := s.users.CreateAuth(ctx, &models.UserAuth{
		UserID:   user.ID,
		Password: hash,
	}); err != nil {
		return nil, err
	}

	return s.issueTokens(user)
}

// Login 用户登录
func (s *authService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		return nil, errors.New(errors.ErrAuthentication, "用户名或密码错误")
	}

	auth, err := s.users.FindAuthByUserID(ctx, user.ID)
	if err != nil {
		return nil, errors.New(errors.ErrAuthentication, "用户名或密码错误")
	}

	ok, err := utils.VerifyPassword(req.Password, auth.Password)
	if err != nil || !ok {
		return nil, errors.New(errors.ErrAuthentication, "用户名或密码错误")
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		return nil, err
	}

	return s.issueTokens(user)
}

// RefreshToken 刷新访问令牌
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.jwt.ValidateToken(refreshToken)
	if err != nil || claims.TokenType != "refresh" {
		return nil, errors.New(errors.ErrTokenInvalid, "刷新令牌无效")
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, errors.New(errors.ErrNotFound, "用户不存在")
	}

	return s.issueTokens(user)
}

// ValidateToken 验证访问令牌
func (s *authService) ValidateToken(ctx context.Context, token string) (*utils.JWTClaims, error) {
	claims, err := s.jwt.ValidateToken(token)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTokenInvalid, "令牌验证失败")
	}
	if claims.TokenType != "access" {
		return nil, errors.New(errors.ErrTokenInvalid, "令牌类型错误")
	}
	return claims, nil
}

// issueTokens 为用户签发令牌对
func (s *authService) issueTokens(user *models.User) (*AuthResponse, error) {
	sessionID, err := utils.GenerateSessionID()
	if err != nil {
		return nil, err
	}

	accessToken, err := s.jwt.GenerateAccessToken(user.ID, user.Username, sessionID)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.jwt.GenerateRefreshToken(user.ID, sessionID)
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwt.GetAccessExpiry().Seconds()),
	}, nil
}
