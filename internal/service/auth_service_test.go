package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/seyoonp1/running/internal/config"
	"github.com/seyoonp1/running/internal/repository"
)

// AuthServiceTestSuite 认证服务测试套件
type AuthServiceTestSuite struct {
	suite.Suite
	ctx         context.Context
	db          *gorm.DB
	authService AuthService
}

func (suite *AuthServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.db = repository.SetupTestDB()
	suite.authService = NewAuthService(suite.db,
		config.JWTConfig{Secret: "test-secret", ExpireHours: 1, RefreshHours: 24},
		config.RatingConfig{KFactor: 32, MVPBonus: 15, InitialRating: 1500},
	)
}

func (suite *AuthServiceTestSuite) TearDownTest() {
	repository.CleanupTestDB(suite.db)
}

func (suite *AuthServiceTestSuite) TestRegisterAndLogin() {
	resp, err := suite.authService.Register(suite.ctx, &RegisterRequest{
		Username: "alice",
		Password: "secret123",
		Nickname: "小跑",
	})
	suite.NoError(err)
	suite.NotEmpty(resp.AccessToken)
	suite.NotEmpty(resp.RefreshToken)
	suite.Equal(1500, resp.User.Rating)

	login, err := suite.authService.Login(suite.ctx, &LoginRequest{
		Username: "alice",
		Password: "secret123",
	})
	suite.NoError(err)
	suite.Equal(resp.User.ID, login.User.ID)
}

func (suite *AuthServiceTestSuite) TestRegisterDuplicateUsername() {
	_, err := suite.authService.Register(suite.ctx, &RegisterRequest{
		Username: "alice",
		Password: "secret123",
	})
	suite.NoError(err)

	_, err = suite.authService.Register(suite.ctx, &RegisterRequest{
		Username: "alice",
		Password: "another456",
	})
	suite.Error(err)
}

func (suite *AuthServiceTestSuite) TestLoginWrongPassword() {
	_, err := suite.authService.Register(suite.ctx, &RegisterRequest{
		Username: "alice",
		Password: "secret123",
	})
	suite.NoError(err)

	_, err = suite.authService.Login(suite.ctx, &LoginRequest{
		Username: "alice",
		Password: "wrong",
	})
	suite.Error(err)
}

func (suite *AuthServiceTestSuite) TestValidateToken() {
	resp, err := suite.authService.Register(suite.ctx, &RegisterRequest{
		Username: "alice",
		Password: "secret123",
	})
	suite.NoError(err)

	claims, err := suite.authService.ValidateToken(suite.ctx, resp.AccessToken)
	suite.NoError(err)
	suite.Equal(resp.User.ID, claims.UserID)
	suite.Equal("alice", claims.Username)

	// 刷新令牌不能当访问令牌用
	_, err = suite.authService.ValidateToken(suite.ctx, resp.RefreshToken)
	suite.Error(err)
}

func (suite *AuthServiceTestSuite) TestRefreshToken() {
	resp, err := suite.authService.Register(suite.ctx, &RegisterRequest{
		Username: "alice",
		Password: "secret123",
	})
	suite.NoError(err)

	refreshed, err := suite.authService.RefreshToken(suite.ctx, resp.RefreshToken)
	suite.NoError(err)
	suite.NotEmpty(refreshed.AccessToken)

	claims, err := suite.authService.ValidateToken(suite.ctx, refreshed.AccessToken)
	suite.NoError(err)
	suite.Equal(resp.User.ID, claims.UserID)
}

func TestAuthServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}
