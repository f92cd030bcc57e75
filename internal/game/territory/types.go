package territory

import (
	"context"
	"time"

	"github.com/seyoonp1/running/internal/models"
)

// PushMessage 表示需要发送给客户端的主动推送
// Targets 为空表示同房间广播，否则仅发送给指定参与者ID
type PushMessage struct {
	Type    string
	RoomID  uint
	Targets []uint
	Payload interface{}
}

// Event 房间事件，由房间会话按到达顺序串行处理
type Event interface {
	ParticipantID() uint
}

// LocationEvent 位置上报事件
type LocationEvent struct {
	Participant uint
	Lat         float64
	Lng         float64
	Accuracy    float64
	Speed       float64
	At          time.Time
}

// PaintballEvent 弹药使用事件
type PaintballEvent struct {
	Participant   uint
	PaintballType string // paintball / super_paintball
	TargetCellID  string
	At            time.Time
}

// StartRecordingEvent 开始跑步记录事件
type StartRecordingEvent struct {
	Participant uint
	At          time.Time
}

// StopRecordingEvent 结束跑步记录事件
type StopRecordingEvent struct {
	Participant uint
	At          time.Time
}

func (e LocationEvent) ParticipantID() uint       { return e.Participant }
func (e PaintballEvent) ParticipantID() uint      { return e.Participant }
func (e StartRecordingEvent) ParticipantID() uint { return e.Participant }
func (e StopRecordingEvent) ParticipantID() uint  { return e.Participant }

// participantState 参与者在房间内的实时状态
// 仅房间会话goroutine可读写
type participantState struct {
	model *models.Participant

	// 当前跑步记录（未开始时为nil）
	record *models.RunningRecord

	// 本次记录内的距离累计
	sessionDistance float64

	// 上一次定位（用于距离累计）
	prevLat float64
	prevLng float64
	prevAt  time.Time
	hasPrev bool
}

// Store 房间会话的持久化边界
type Store interface {
	SaveOwnership(ctx context.Context, roomID uint, ownership models.OwnershipMap) error
	SaveParticipant(ctx context.Context, participant *models.Participant) error
	CreateRunningRecord(ctx context.Context, record *models.RunningRecord) error
	UpdateRunningRecord(ctx context.Context, record *models.RunningRecord) error
}
