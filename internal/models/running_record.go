package models

import (
	"time"
)

// 跑步记录状态
const (
	RunStatusRecording = "recording"
	RunStatusFinished  = "finished"
)

// RunningRecord 跑步记录表
// 一次记录对应一个 [started_at, ended_at] 区间；is_recording=true 是
// 占领判定和距离累计的前置条件，但记录本身与占领逻辑相互独立。
type RunningRecord struct {
	BaseModel
	UserID        uint       `gorm:"not null;index" json:"user_id"`
	RoomID        uint       `gorm:"not null;index" json:"room_id"`
	ParticipantID uint       `gorm:"not null;index" json:"participant_id"`
	Status        string     `gorm:"size:20;default:'recording'" json:"status"`
	StartedAt     time.Time  `gorm:"not null" json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	Distance      float64    `gorm:"default:0" json:"distance"` // 米
	Duration      int64      `gorm:"default:0" json:"duration"` // 秒
	AveragePace   float64    `gorm:"default:0" json:"average_pace"` // 分/公里
}

// TableName 指定RunningRecord表名
func (RunningRecord) TableName() string {
	return "running_records"
}

// Pace 根据距离与时长计算配速（分/公里），距离为0时返回0
func Pace(distanceMeters float64, duration time.Duration) float64 {
	if distanceMeters <= 0 {
		return 0
	}
	minutes := duration.Minutes()
	km := distanceMeters / 1000.0
	return minutes / km
}
