package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// 房间状态
const (
	RoomStatusReady    = "ready"
	RoomStatusActive   = "active"
	RoomStatusFinished = "finished"
)

// 队伍标识
const (
	TeamA = "A"
	TeamB = "B"
)

// 占领来源
const (
	ClaimSourcePlayer    = "player"
	ClaimSourceLoopFill  = "loop_fill"
	ClaimSourcePaintball = "paintball"
)

// HexClaim 一个格子的当前占领状态
type HexClaim struct {
	Team          string    `json:"team"`
	UserID        uint      `json:"user_id"`
	ParticipantID uint      `json:"participant_id"`
	ClaimedAt     time.Time `json:"claimed_at"`
	Source        string    `json:"source"`
}

// OwnershipMap 格子ID到占领状态的映射
// 核心逻辑中始终以该类型操作，仅在持久化边界序列化为JSON
type OwnershipMap map[string]HexClaim

// Value 实现 driver.Valuer 接口
func (m OwnershipMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan 实现 sql.Scanner 接口
func (m *OwnershipMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("不支持的JSON字段类型")
	}

	return json.Unmarshal(data, m)
}

// TeamCount 统计某队伍占领的格子数
func (m OwnershipMap) TeamCount(team string) int {
	count := 0
	for _, claim := range m {
		if claim.Team == team {
			count++
		}
	}
	return count
}

// Room 游戏房间表
type Room struct {
	BaseModel
	Name          string     `gorm:"size:200;not null" json:"name"`
	InviteCode    string     `gorm:"uniqueIndex;size:20;not null" json:"invite_code"`
	CreatorID     uint       `gorm:"not null;index" json:"creator_id"`
	Status        string     `gorm:"size:20;default:'ready';index" json:"status"`
	TeamSizeTotal int        `gorm:"default:4" json:"team_size_total"` // 双方合计人数，必须为偶数
	H3Resolution  int        `gorm:"default:9" json:"h3_resolution"`
	StartAt       *time.Time `json:"start_at,omitempty"`
	EndAt         *time.Time `gorm:"index" json:"end_at,omitempty"`

	// 占领地图快照（仅在房间会话内修改，结算时冻结）
	Ownership OwnershipMap `gorm:"type:json" json:"ownership"`

	// 结算结果
	WinnerTeam *string `gorm:"size:1" json:"winner_team,omitempty"` // A / B / null(平局)
	MVPUserID  *uint   `json:"mvp_user_id,omitempty"`

	// 关联
	Participants []Participant `gorm:"foreignKey:RoomID" json:"participants,omitempty"`
}

// Participant 房间参与者表
type Participant struct {
	BaseModel
	RoomID uint   `gorm:"not null;index:idx_room_user,unique" json:"room_id"`
	UserID uint   `gorm:"not null;index:idx_room_user,unique" json:"user_id"`
	Team   string `gorm:"size:1;not null" json:"team"`
	IsHost bool   `gorm:"default:false" json:"is_host"`

	// 实时状态（游戏进行中由房间会话独占写入）
	IsRecording         bool       `gorm:"default:false" json:"is_recording"`
	PaintballCount      int        `gorm:"default:0" json:"paintball_count"`
	SuperPaintballCount int        `gorm:"default:0" json:"super_paintball_count"`
	Gauge               int        `gorm:"default:0" json:"gauge"` // 0-100
	LastCellID          string     `gorm:"size:20" json:"last_cell_id"`
	LastLat             float64    `json:"last_lat"`
	LastLng             float64    `json:"last_lng"`
	LastLocationAt      *time.Time `json:"last_location_at,omitempty"`

	// 出勤连续天数
	AttendanceStreak   int        `gorm:"default:0" json:"attendance_streak"`
	LastAttendanceDate *time.Time `json:"last_attendance_date,omitempty"`

	// 结算输出（status=finished 后只读）
	HexesClaimed int  `gorm:"default:0" json:"hexes_claimed"`
	RatingChange int  `gorm:"default:0" json:"rating_change"`
	IsMVP        bool `gorm:"default:false" json:"is_mvp"`

	// 关联
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName 指定Room表名
func (Room) TableName() string {
	return "rooms"
}

// TableName 指定Participant表名
func (Participant) TableName() string {
	return "participants"
}

// IsActive 房间是否进行中
func (r *Room) IsActive() bool {
	return r.Status == RoomStatusActive
}

// Expired 游戏窗口是否已过期
func (r *Room) Expired(now time.Time) bool {
	return r.EndAt != nil && now.After(*r.EndAt)
}

// OpponentTeam 返回对方队伍标识
func OpponentTeam(team string) string {
	if team == TeamA {
		return TeamB
	}
	return TeamA
}
