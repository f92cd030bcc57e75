package service

import (
	"context"

	"gorm.io/gorm"

	"github.com/seyoonp1/running/internal/errors"
	"github.com/seyoonp1/running/internal/models"
	"github.com/seyoonp1/running/internal/repository"
)

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      uint   `json:"user_id"`
	Username    string `json:"username"`
	Nickname    string `json:"nickname"`
	Rating      int    `json:"rating"`
	GamesPlayed int    `json:"games_played"`
	GamesWon    int    `json:"games_won"`
	MVPCount    int    `json:"mvp_count"`
}

// UserService 用户档案与排行服务
type UserService interface {
	GetProfile(ctx context.Context, userID uint) (*models.User, error)
	Leaderboard(ctx context.Context, limit int) ([]*LeaderboardEntry, error)
	ListRunningRecords(ctx context.Context, userID uint, page, pageSize int) ([]*models.RunningRecord, error)
}

type userService struct {
	users   repository.UserRepository
	records repository.RunningRecordRepository
}

// NewUserService 创建用户服务
func NewUserService(db *gorm.DB) UserService {
	return &userService{
		users:   repository.NewUserRepository(db),
		records: repository.NewRunningRecordRepository(db),
	}
}

// GetProfile 查询用户档案
func (s *userService) GetProfile(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, errors.New(errors.ErrNotFound, "用户不存在")
	}
	return user, nil
}

// Leaderboard 按评分取排行榜
func (s *userService) Leaderboard(ctx context.Context, limit int) ([]*LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	users, err := s.users.GetTopByRating(ctx, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]*LeaderboardEntry, 0, len(users))
	for i, u := range users {
		entries = append(entries, &LeaderboardEntry{
			Rank:        i + 1,
			UserID:      u.ID,
			Username:    u.Username,
			Nickname:    u.Nickname,
			Rating:      u.Rating,
			GamesPlayed: u.GamesPlayed,
			GamesWon:    u.GamesWon,
			MVPCount:    u.MVPCount,
		})
	}
	return entries, nil
}

// ListRunningRecords 分页查询用户跑步记录
func (s *userService) ListRunningRecords(ctx context.Context, userID uint, page, pageSize int) ([]*models.RunningRecord, error) {
	return s.records.ListByUser(ctx, userID, repository.NewPagination(page, pageSize))
}
