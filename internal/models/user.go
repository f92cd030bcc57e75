package models

import (
	"time"
)

// User 用户基础信息表
type User struct {
	BaseModel
	Username    string     `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Nickname    string     `gorm:"size:100" json:"nickname"`
	Avatar      string     `gorm:"size:255" json:"avatar"`
	Status      string     `gorm:"size:20;default:'active'" json:"status"` // active, frozen, banned
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	// 对战评分与战绩
	Rating        int `gorm:"default:1500" json:"rating"`
	HighestRating int `gorm:"default:1500" json:"highest_rating"`
	GamesPlayed   int `gorm:"default:0" json:"games_played"`
	GamesWon      int `gorm:"default:0" json:"games_won"`
	GamesLost     int `gorm:"default:0" json:"games_lost"`
	GamesDraw     int `gorm:"default:0" json:"games_draw"`
	MVPCount      int `gorm:"default:0" json:"mvp_count"`

	// 累计跑步数据
	TotalDistance float64 `gorm:"default:0" json:"total_distance"` // 米
	TotalDuration int64   `gorm:"default:0" json:"total_duration"` // 秒

	// 关联（注意：不直接嵌入 Participant，查询时使用 Preload）
	Auth UserAuth `gorm:"foreignKey:UserID" json:"-"`
}

// UserAuth 用户认证信息表
type UserAuth struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserID        uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	Password      string     `gorm:"size:255;not null" json:"-"`
	LoginAttempts int        `gorm:"default:0" json:"login_attempts"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName 指定User表名
func (User) TableName() string {
	return "users"
}

// TableName 指定UserAuth表名
func (UserAuth) TableName() string {
	return "user_auths"
}
