package territory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/seyoonp1/running/internal/config"
	"github.com/seyoonp1/running/internal/models"
)

// fakeStore 记录持久化调用的内存实现
type fakeStore struct {
	ownershipSaves   int
	participantSaves int
	records          []*models.RunningRecord
	nextRecordID     uint
}

func (s *fakeStore) SaveOwnership(ctx context.Context, roomID uint, ownership models.OwnershipMap) error {
	s.ownershipSaves++
	return nil
}

func (s *fakeStore) SaveParticipant(ctx context.Context, participant *models.Participant) error {
	s.participantSaves++
	return nil
}

func (s *fakeStore) CreateRunningRecord(ctx context.Context, record *models.RunningRecord) error {
	s.nextRecordID++
	record.ID = s.nextRecordID
	s.records = append(s.records, record)
	return nil
}

func (s *fakeStore) UpdateRunningRecord(ctx context.Context, record *models.RunningRecord) error {
	return nil
}

// GameRoomTestSuite 房间会话测试套件
// 直接调用事件处理方法，保持与会话循环一致的串行语义。
type GameRoomTestSuite struct {
	suite.Suite
	room   *GameRoom
	model  *models.Room
	store  *fakeStore
	pushes []*PushMessage
	base   time.Time
}

func (suite *GameRoomTestSuite) SetupTest() {
	suite.base = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	suite.pushes = nil
	suite.store = &fakeStore{}

	suite.model = &models.Room{
		Status:    models.RoomStatusActive,
		Ownership: make(models.OwnershipMap),
		Participants: []models.Participant{
			{BaseModel: models.BaseModel{ID: 1}, RoomID: 1, UserID: 10, Team: models.TeamA},
			{BaseModel: models.BaseModel{ID: 2}, RoomID: 1, UserID: 20, Team: models.TeamB},
		},
	}
	suite.model.ID = 1

	cfg := config.GameConfig{
		Claim:      config.ClaimConfig{H3Resolution: 9, MinSamples: 3, MinDwell: 5 * time.Second, SampleTTL: 5 * time.Minute},
		Loop:       config.LoopConfig{MinCycleLen: 4, ExpandRadius: 3, MinNeighbors: 3},
		Gauge:      config.GaugeConfig{Increment: 60, Threshold: 100},
		Attendance: config.AttendanceConfig{MaxStreakReward: 7},
		Recording:  config.RecordingConfig{MaxSpeed: 12.0},
	}

	suite.room = NewGameRoom(suite.model, &fakeGrid{}, suite.store, cfg, func(msg *PushMessage) {
		suite.pushes = append(suite.pushes, msg)
	})
}

// startRecording 让参与者进入记录状态
func (suite *GameRoomTestSuite) startRecording(participantID uint) {
	suite.room.handleStartRecording(StartRecordingEvent{Participant: participantID, At: suite.base})
}

// sendDwell 连续三次同点位上报，满足停留时长
func (suite *GameRoomTestSuite) sendDwell(participantID uint, lat, lng float64) {
	for i := 0; i < 3; i++ {
		suite.room.handleLocation(LocationEvent{
			Participant: participantID,
			Lat:         lat,
			Lng:         lng,
			At:          suite.base.Add(time.Duration(i*3) * time.Second),
		})
	}
}

// pushed 取指定类型的推送
func (suite *GameRoomTestSuite) pushed(eventType string) []*PushMessage {
	var out []*PushMessage
	for _, p := range suite.pushes {
		if p.Type == eventType {
			out = append(out, p)
		}
	}
	return out
}

func (suite *GameRoomTestSuite) TestClaimAfterDwell() {
	suite.startRecording(1)
	suite.sendDwell(1, 0, 0)

	claim, ok := suite.model.Ownership["0,0"]
	suite.True(ok)
	suite.Equal(models.TeamA, claim.Team)
	suite.Equal(models.ClaimSourcePlayer, claim.Source)

	suite.Len(suite.pushed(EventHexClaimed), 1)
	suite.Len(suite.pushed(EventScoreUpdate), 1)
	suite.Equal(1, suite.store.ownershipSaves)
}

func (suite *GameRoomTestSuite) TestNoClaimWithoutRecording() {
	suite.sendDwell(1, 0, 0)

	suite.Empty(suite.model.Ownership)
	// 未记录也会广播位置
	suite.Len(suite.pushed(EventLocationUpdate), 3)
}

func (suite *GameRoomTestSuite) TestOpposingClaimFlips() {
	suite.model.Ownership["0,0"] = models.HexClaim{Team: models.TeamB, UserID: 20, ParticipantID: 2}

	suite.startRecording(1)
	suite.sendDwell(1, 0, 0)

	claim := suite.model.Ownership["0,0"]
	suite.Equal(models.TeamA, claim.Team)
}

func (suite *GameRoomTestSuite) TestGaugeWrapAround() {
	// 己方已占领的格子上重复停留转化为槽值
	suite.model.Ownership["0,0"] = models.HexClaim{Team: models.TeamA, UserID: 10, ParticipantID: 1}
	participant := suite.room.states[1].model
	participant.Gauge = 95

	suite.startRecording(1)
	suite.sendDwell(1, 0, 0)

	// 95 + 60 = 155 → 越过一次阈值，剩余55，奖励一颗弹药
	suite.Equal(55, participant.Gauge)
	suite.Equal(1, participant.PaintballCount)
	suite.Empty(suite.pushed(EventHexClaimed))
}

func (suite *GameRoomTestSuite) TestGaugeDoubleWrap() {
	state := suite.room.states[1]
	state.model.Gauge = 95

	// 两次大增量连续越过阈值各奖励一次
	suite.room.addGauge(state)
	suite.room.addGauge(state)

	suite.Equal(15, state.model.Gauge)
	suite.Equal(2, state.model.PaintballCount)
}

func (suite *GameRoomTestSuite) TestLoopFillOnRingClosure() {
	// 预置环上其余五格，最后一格由占领触发闭环
	ring := ringCells()
	for _, c := range ring[:len(ring)-1] {
		suite.model.Ownership[c] = models.HexClaim{Team: models.TeamA, UserID: 10, ParticipantID: 1}
	}

	suite.startRecording(1)
	suite.sendDwell(1, 0, 1) // ring的最后一格是 "0,1"

	// 环心被自动填充
	center, ok := suite.model.Ownership["0,0"]
	suite.True(ok)
	suite.Equal(models.ClaimSourceLoopFill, center.Source)

	loops := suite.pushed(EventLoopComplete)
	suite.Len(loops, 1)
	payload := loops[0].Payload.(*LoopCompletePayload)
	suite.Equal(1, payload.ClaimedCount)
	suite.Contains(payload.InteriorCells, "0,0")
}

func (suite *GameRoomTestSuite) TestPaintballForceClaim() {
	participant := suite.room.states[1].model
	participant.PaintballCount = 1

	suite.room.handlePaintball(PaintballEvent{
		Participant:   1,
		PaintballType: PaintballTypeNormal,
		TargetCellID:  "5,5",
		At:            suite.base,
	})

	claim, ok := suite.model.Ownership["5,5"]
	suite.True(ok)
	suite.Equal(models.ClaimSourcePaintball, claim.Source)
	suite.Equal(0, participant.PaintballCount)

	used := suite.pushed(EventPaintballUsed)
	suite.Len(used, 1)
	suite.Equal(0, used[0].Payload.(*PaintballUsedPayload).RemainingCount)
}

func (suite *GameRoomTestSuite) TestPaintballRejectedWhenEmpty() {
	suite.room.handlePaintball(PaintballEvent{
		Participant:   1,
		PaintballType: PaintballTypeNormal,
		TargetCellID:  "5,5",
		At:            suite.base,
	})

	suite.Empty(suite.model.Ownership)
	suite.Len(suite.pushed(EventError), 1)
}

func (suite *GameRoomTestSuite) TestRecordingLifecycle() {
	suite.startRecording(1)

	started := suite.pushed(EventRecordingStarted)
	suite.Len(started, 1)
	suite.True(suite.room.states[1].model.IsRecording)

	// 重复开始被拒绝
	suite.startRecording(1)
	suite.Len(suite.pushed(EventError), 1)

	// 小范围移动累计距离
	suite.room.handleLocation(LocationEvent{Participant: 1, Lat: 0.0000, Lng: 0.0000, At: suite.base.Add(time.Second)})
	suite.room.handleLocation(LocationEvent{Participant: 1, Lat: 0.0001, Lng: 0.0000, At: suite.base.Add(4 * time.Second)})

	suite.room.handleStopRecording(StopRecordingEvent{Participant: 1, At: suite.base.Add(10 * time.Second)})

	stopped := suite.pushed(EventRecordingStopped)
	suite.Len(stopped, 1)
	payload := stopped[0].Payload.(*RecordingStoppedPayload)
	suite.Equal(int64(10), payload.Duration)
	suite.Greater(payload.Distance, 0.0)
	suite.False(suite.room.states[1].model.IsRecording)
}

func (suite *GameRoomTestSuite) TestTeleportDistanceDiscarded() {
	suite.startRecording(1)

	suite.room.handleLocation(LocationEvent{Participant: 1, Lat: 0, Lng: 0, At: suite.base.Add(time.Second)})
	// 一秒内跨越一个整度，远超速度上限
	suite.room.handleLocation(LocationEvent{Participant: 1, Lat: 1, Lng: 0, At: suite.base.Add(2 * time.Second)})

	// 位置照常更新，但异常位移不计入距离
	suite.Equal(1.0, suite.room.states[1].model.LastLat)
	suite.Equal(0.0, suite.room.states[1].sessionDistance)
}

func (suite *GameRoomTestSuite) TestAttendanceStreakReward() {
	participant := suite.room.states[1].model
	yesterday := suite.base.AddDate(0, 0, -1).Truncate(24 * time.Hour)
	participant.AttendanceStreak = 1
	participant.LastAttendanceDate = &yesterday
	participant.LastCellID = "9,9"

	suite.startRecording(1)
	suite.room.handleLocation(LocationEvent{Participant: 1, Lat: 0, Lng: 0, At: suite.base})

	suite.Equal(2, participant.AttendanceStreak)
	suite.Equal(2, participant.PaintballCount)

	// 同一天内不重复评估
	suite.room.handleLocation(LocationEvent{Participant: 1, Lat: 2, Lng: 2, At: suite.base.Add(time.Minute)})
	suite.Equal(2, participant.AttendanceStreak)
	suite.Equal(2, participant.PaintballCount)
}

func (suite *GameRoomTestSuite) TestBrokenStreakResets() {
	participant := suite.room.states[1].model
	lastWeek := suite.base.AddDate(0, 0, -5).Truncate(24 * time.Hour)
	participant.AttendanceStreak = 4
	participant.LastAttendanceDate = &lastWeek
	participant.LastCellID = "9,9"

	suite.startRecording(1)
	suite.room.handleLocation(LocationEvent{Participant: 1, Lat: 0, Lng: 0, At: suite.base})

	suite.Equal(1, participant.AttendanceStreak)
	suite.Equal(0, participant.PaintballCount)
}

func (suite *GameRoomTestSuite) TestInactiveRoomIgnoresEvents() {
	suite.model.Status = models.RoomStatusFinished

	suite.room.handleLocation(LocationEvent{Participant: 1, Lat: 0, Lng: 0, At: suite.base})

	suite.Empty(suite.pushes)
	suite.Empty(suite.model.Ownership)
}

func (suite *GameRoomTestSuite) TestUnknownParticipantIgnored() {
	suite.room.handleLocation(LocationEvent{Participant: 99, Lat: 0, Lng: 0, At: suite.base})
	suite.Empty(suite.pushes)
}

func TestGameRoomTestSuite(t *testing.T) {
	suite.Run(t, new(GameRoomTestSuite))
}
