package territory

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seyoonp1/running/internal/config"
	"github.com/seyoonp1/running/internal/errors"
	"github.com/seyoonp1/running/internal/game/hexgrid"
	"github.com/seyoonp1/running/internal/logger"
	"github.com/seyoonp1/running/internal/models"
)

// 弹药类型
const (
	PaintballTypeNormal = "paintball"
	PaintballTypeSuper  = "super_paintball"
)

// 事件队列长度与清理周期
const (
	eventQueueSize      = 256
	validatorSweepCycle = time.Minute
)

// PushCallback 房间会话对外推送的回调
type PushCallback func(msg *PushMessage)

// GameRoom 单个房间的游戏会话
// 房间内全部可变状态（占领地图、参与者计数器）仅由run循环这一个
// goroutine读写，事件按到达顺序串行处理，房间之间完全并行。
type GameRoom struct {
	cfg      config.GameConfig
	room     *models.Room
	grid     hexgrid.Grid
	detector *LoopDetector
	store    Store

	// 参与者ID -> 实时状态/采样窗口
	states     map[uint]*participantState
	validators map[uint]*ClaimValidator

	events chan Event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	push   PushCallback
	logger *zap.Logger
}

// NewGameRoom 创建房间会话
// room 需已预加载参与者列表，Ownership 为nil时初始化为空地图。
func NewGameRoom(room *models.Room, grid hexgrid.Grid, store Store, cfg config.GameConfig, push PushCallback) *GameRoom {
	ctx, cancel := context.WithCancel(context.Background())

	if room.Ownership == nil {
		room.Ownership = make(models.OwnershipMap)
	}

	r := &GameRoom{
		cfg:        cfg,
		room:       room,
		grid:       grid,
		detector:   NewLoopDetector(grid, cfg.Loop.MinCycleLen, cfg.Loop.ExpandRadius, cfg.Loop.MinNeighbors),
		store:      store,
		states:     make(map[uint]*participantState),
		validators: make(map[uint]*ClaimValidator),
		events:     make(chan Event, eventQueueSize),
		ctx:        ctx,
		cancel:     cancel,
		push:       push,
		logger:     logger.GetLogger(),
	}

	for i := range room.Participants {
		p := &room.Participants[i]
		r.states[p.ID] = &participantState{model: p}
	}

	return r
}

// Start 启动房间会话循环
func (r *GameRoom) Start() {
	r.wg.Add(1)
	go r.run()

	r.logger.Info("房间会话启动",
		zap.Uint("room_id", r.room.ID),
		zap.Int("participants", len(r.states)))
}

// Stop 停止房间会话并等待循环退出
func (r *GameRoom) Stop() {
	r.cancel()
	r.wg.Wait()

	r.logger.Info("房间会话停止", zap.Uint("room_id", r.room.ID))
}

// RoomID 返回房间ID
func (r *GameRoom) RoomID() uint {
	return r.room.ID
}

// Enqueue 投递一个事件到房间队列
// 队列满时丢弃并返回错误，避免单个房间拖垮上游连接。
func (r *GameRoom) Enqueue(ev Event) error {
	if r.ctx.Err() != nil {
		return errors.New(errors.ErrRoomNotActive, "房间会话已停止")
	}

	select {
	case r.events <- ev:
		return nil
	default:
		r.logger.Warn("房间事件队列已满，丢弃事件",
			zap.Uint("room_id", r.room.ID),
			zap.Uint("participant_id", ev.ParticipantID()))
		return errors.New(errors.ErrWebSocketSend, "房间繁忙")
	}
}

// run 房间事件循环
func (r *GameRoom) run() {
	defer r.wg.Done()

	sweep := time.NewTicker(validatorSweepCycle)
	defer sweep.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case ev := <-r.events:
			r.dispatch(ev)
		case <-sweep.C:
			r.sweepValidators(time.Now())
		}
	}
}

// dispatch 按事件类型分发
func (r *GameRoom) dispatch(ev Event) {
	switch e := ev.(type) {
	case LocationEvent:
		r.handleLocation(e)
	case PaintballEvent:
		r.handlePaintball(e)
	case StartRecordingEvent:
		r.handleStartRecording(e)
	case StopRecordingEvent:
		r.handleStopRecording(e)
	default:
		r.logger.Warn("未知房间事件",
			zap.Uint("room_id", r.room.ID),
			zap.Uint("participant_id", ev.ParticipantID()))
	}
}

// sweepValidators 清理长期未使用的采样窗口，约束静默断线者的内存
func (r *GameRoom) sweepValidators(now time.Time) {
	for pid, v := range r.validators {
		if v.ExpiredSince(now) {
			delete(r.validators, pid)
		}
	}
}

// validatorFor 取参与者的采样窗口，不存在时创建
func (r *GameRoom) validatorFor(pid uint) *ClaimValidator {
	v, ok := r.validators[pid]
	if !ok {
		v = NewClaimValidator(r.cfg.Claim.MinSamples, r.cfg.Claim.MinDwell, r.cfg.Claim.SampleTTL)
		r.validators[pid] = v
	}
	return v
}

// handleLocation 处理位置上报
// 非进行中房间或未知参与者直接忽略；位置与格子总是更新并广播，
// 占领判定仅在记录中执行。
func (r *GameRoom) handleLocation(ev LocationEvent) {
	if !r.room.IsActive() {
		return
	}
	st, ok := r.states[ev.Participant]
	if !ok {
		return
	}

	// 反瞬移：超过速度上限的位移不计入距离
	if st.model.IsRecording && st.hasPrev {
		dist := haversineMeters(st.prevLat, st.prevLng, ev.Lat, ev.Lng)
		dt := ev.At.Sub(st.prevAt).Seconds()
		if dt > 0 {
			if dist/dt <= r.cfg.Recording.MaxSpeed {
				st.sessionDistance += dist
			} else {
				r.logger.Debug("丢弃异常位移",
					zap.Uint("room_id", r.room.ID),
					zap.Uint("participant_id", ev.Participant),
					zap.Float64("speed", dist/dt))
			}
		}
	}
	st.prevLat, st.prevLng, st.prevAt, st.hasPrev = ev.Lat, ev.Lng, ev.At, true

	cellID, err := r.grid.CellAt(ev.Lat, ev.Lng)
	if err != nil {
		// 网格解析失败时只更新位置，不进占领流程
		r.logger.Warn("定位转换格子失败",
			zap.Uint("room_id", r.room.ID),
			zap.Uint("participant_id", ev.Participant),
			zap.Error(err))
		cellID = ""
	}

	// 记录中且格子发生变化时评估出勤连续奖励
	if st.model.IsRecording && cellID != "" && cellID != st.model.LastCellID {
		r.evaluateAttendance(st, ev.At)
	}

	st.model.LastLat = ev.Lat
	st.model.LastLng = ev.Lng
	at := ev.At
	st.model.LastLocationAt = &at
	if cellID != "" {
		st.model.LastCellID = cellID
	}

	r.broadcast(EventLocationUpdate, &LocationUpdatePayload{
		ParticipantID: st.model.ID,
		Team:          st.model.Team,
		Lat:           ev.Lat,
		Lng:           ev.Lng,
		CellID:        cellID,
		Timestamp:     ev.At.Unix(),
	})

	ownershipChanged := false
	if st.model.IsRecording && cellID != "" {
		v := r.validatorFor(st.model.ID)
		v.AddSample(ev.Lat, ev.Lng, cellID, ev.At)

		if claimCell, ok := v.CheckClaim(); ok {
			if cur, owned := r.room.Ownership[claimCell]; owned && cur.Team == st.model.Team {
				// 己方格子重复停留转化为槽值
				r.addGauge(st)
			} else {
				r.applyClaim(st, claimCell, models.ClaimSourcePlayer, ev.At)
				ownershipChanged = true
			}
			v.Clear()
		}
	}

	r.persistParticipant(st)
	if ownershipChanged {
		r.persistOwnership()
		r.broadcastScore(ev.At)
	}
}

// evaluateAttendance 每自然日最多评估一次出勤连续奖励
// 昨天有出勤则连续天数+1，否则重置为1；连续不少于2天时奖励
// min(连续天数, 上限) 颗弹药。
func (r *GameRoom) evaluateAttendance(st *participantState, now time.Time) {
	today := now.Truncate(24 * time.Hour)
	if st.model.LastAttendanceDate != nil {
		last := st.model.LastAttendanceDate.Truncate(24 * time.Hour)
		if last.Equal(today) {
			return
		}
		if last.Equal(today.AddDate(0, 0, -1)) {
			st.model.AttendanceStreak++
		} else {
			st.model.AttendanceStreak = 1
		}
	} else {
		st.model.AttendanceStreak = 1
	}
	st.model.LastAttendanceDate = &today

	if st.model.AttendanceStreak >= 2 {
		reward := st.model.AttendanceStreak
		if reward > r.cfg.Attendance.MaxStreakReward {
			reward = r.cfg.Attendance.MaxStreakReward
		}
		st.model.PaintballCount += reward

		r.logger.Info("出勤连续奖励",
			zap.Uint("room_id", r.room.ID),
			zap.Uint("participant_id", st.model.ID),
			zap.Int("streak", st.model.AttendanceStreak),
			zap.Int("reward", reward))
	}
}

// addGauge 累加槽值，每越过一次阈值兑换一颗弹药
// 单次大增量可以连续越过多次阈值。
func (r *GameRoom) addGauge(st *participantState) {
	st.model.Gauge += r.cfg.Gauge.Increment
	for st.model.Gauge >= r.cfg.Gauge.Threshold {
		st.model.Gauge -= r.cfg.Gauge.Threshold
		st.model.PaintballCount++
	}
}

// applyClaim 占领一个格子并触发闭环检测
// 调用方负责随后的持久化与比分广播。
func (r *GameRoom) applyClaim(st *participantState, cellID, source string, at time.Time) {
	r.room.Ownership[cellID] = models.HexClaim{
		Team:          st.model.Team,
		UserID:        st.model.UserID,
		ParticipantID: st.model.ID,
		ClaimedAt:     at,
		Source:        source,
	}
	st.model.HexesClaimed++

	r.broadcast(EventHexClaimed, &HexClaimedPayload{
		ParticipantID: st.model.ID,
		Team:          st.model.Team,
		CellID:        cellID,
		Source:        source,
		Timestamp:     at.Unix(),
	})

	// 以本次占领为起点检测闭环
	owned := make(map[string]bool)
	for c, claim := range r.room.Ownership {
		if claim.Team == st.model.Team {
			owned[c] = true
		}
	}
	loop := r.detector.DetectLoop(owned, cellID)
	if loop == nil {
		return
	}

	interior := r.detector.FillInterior(loop, func(c string) bool {
		_, exists := r.room.Ownership[c]
		return exists
	})

	claimed := 0
	for _, c := range interior {
		if _, exists := r.room.Ownership[c]; exists {
			continue
		}
		r.room.Ownership[c] = models.HexClaim{
			Team:          st.model.Team,
			UserID:        st.model.UserID,
			ParticipantID: st.model.ID,
			ClaimedAt:     at,
			Source:        models.ClaimSourceLoopFill,
		}
		st.model.HexesClaimed++
		claimed++
	}

	r.broadcast(EventLoopComplete, &LoopCompletePayload{
		Team:          st.model.Team,
		LoopCells:     loop,
		InteriorCells: interior,
		ClaimedCount:  claimed,
		Timestamp:     at.Unix(),
	})

	r.logger.Info("闭环完成",
		zap.Uint("room_id", r.room.ID),
		zap.Uint("participant_id", st.model.ID),
		zap.Int("loop_cells", len(loop)),
		zap.Int("interior_claimed", claimed))
}

// handlePaintball 处理弹药使用
// 无视采样窗口直接强制占领目标格子，之后走与普通占领相同的
// 闭环与广播流程。
func (r *GameRoom) handlePaintball(ev PaintballEvent) {
	if !r.room.IsActive() {
		r.unicastError(ev.Participant, "房间未在进行中")
		return
	}
	st, ok := r.states[ev.Participant]
	if !ok {
		return
	}

	var remaining int
	switch ev.PaintballType {
	case PaintballTypeNormal:
		if st.model.PaintballCount <= 0 {
			r.unicastError(ev.Participant, "弹药不足")
			return
		}
		st.model.PaintballCount--
		remaining = st.model.PaintballCount
	case PaintballTypeSuper:
		if st.model.SuperPaintballCount <= 0 {
			r.unicastError(ev.Participant, "超级弹药不足")
			return
		}
		st.model.SuperPaintballCount--
		remaining = st.model.SuperPaintballCount
	default:
		r.unicastError(ev.Participant, "未知弹药类型")
		return
	}

	if _, _, err := r.grid.CellLatLng(ev.TargetCellID); err != nil {
		// 计数已扣减前先校验会更友好，这里回滚扣减
		switch ev.PaintballType {
		case PaintballTypeNormal:
			st.model.PaintballCount++
		case PaintballTypeSuper:
			st.model.SuperPaintballCount++
		}
		r.unicastError(ev.Participant, "无效的目标格子")
		return
	}

	r.applyClaim(st, ev.TargetCellID, models.ClaimSourcePaintball, ev.At)

	r.broadcast(EventPaintballUsed, &PaintballUsedPayload{
		ParticipantID:  st.model.ID,
		Team:           st.model.Team,
		PaintballType:  ev.PaintballType,
		TargetCellID:   ev.TargetCellID,
		RemainingCount: remaining,
		Timestamp:      ev.At.Unix(),
	})

	r.persistParticipant(st)
	r.persistOwnership()
	r.broadcastScore(ev.At)
}

// handleStartRecording 开始跑步记录
func (r *GameRoom) handleStartRecording(ev StartRecordingEvent) {
	if !r.room.IsActive() {
		r.unicastError(ev.Participant, "房间未在进行中")
		return
	}
	st, ok := r.states[ev.Participant]
	if !ok {
		return
	}
	if st.model.IsRecording {
		r.unicastError(ev.Participant, "已在记录中")
		return
	}

	record := &models.RunningRecord{
		UserID:        st.model.UserID,
		RoomID:        r.room.ID,
		ParticipantID: st.model.ID,
		Status:        models.RunStatusRecording,
		StartedAt:     ev.At,
	}
	if err := r.store.CreateRunningRecord(r.ctx, record); err != nil {
		r.logger.Error("创建跑步记录失败",
			zap.Uint("room_id", r.room.ID),
			zap.Uint("participant_id", ev.Participant),
			zap.Error(err))
		r.unicastError(ev.Participant, "开始记录失败")
		return
	}

	st.record = record
	st.sessionDistance = 0
	st.hasPrev = false
	st.model.IsRecording = true
	r.persistParticipant(st)

	r.unicast(ev.Participant, EventRecordingStarted, &RecordingStartedPayload{
		RecordID:  record.ID,
		StartedAt: record.StartedAt.Unix(),
	})
}

// handleStopRecording 结束跑步记录
func (r *GameRoom) handleStopRecording(ev StopRecordingEvent) {
	st, ok := r.states[ev.Participant]
	if !ok {
		return
	}
	if !st.model.IsRecording || st.record == nil {
		r.unicastError(ev.Participant, "未在记录中")
		return
	}

	record := st.record
	duration := ev.At.Sub(record.StartedAt)
	endedAt := ev.At

	record.Status = models.RunStatusFinished
	record.EndedAt = &endedAt
	record.Distance = st.sessionDistance
	record.Duration = int64(duration.Seconds())
	record.AveragePace = models.Pace(st.sessionDistance, duration)

	if err := r.store.UpdateRunningRecord(r.ctx, record); err != nil {
		r.logger.Error("保存跑步记录失败",
			zap.Uint("room_id", r.room.ID),
			zap.Uint("record_id", record.ID),
			zap.Error(err))
	}

	st.model.IsRecording = false
	st.record = nil
	st.hasPrev = false
	if v, exists := r.validators[st.model.ID]; exists {
		v.Clear()
	}
	r.persistParticipant(st)

	r.unicast(ev.Participant, EventRecordingStopped, &RecordingStoppedPayload{
		RecordID: record.ID,
		Duration: record.Duration,
		Distance: record.Distance,
		Pace:     record.AveragePace,
	})
}

// persistParticipant 落库参与者实时状态
func (r *GameRoom) persistParticipant(st *participantState) {
	if err := r.store.SaveParticipant(r.ctx, st.model); err != nil {
		r.logger.Error("保存参与者状态失败",
			zap.Uint("room_id", r.room.ID),
			zap.Uint("participant_id", st.model.ID),
			zap.Error(err))
	}
}

// persistOwnership 落库占领地图
func (r *GameRoom) persistOwnership() {
	if err := r.store.SaveOwnership(r.ctx, r.room.ID, r.room.Ownership); err != nil {
		r.logger.Error("保存占领地图失败",
			zap.Uint("room_id", r.room.ID),
			zap.Error(err))
	}
}

// broadcastScore 广播双方当前比分
func (r *GameRoom) broadcastScore(at time.Time) {
	r.broadcast(EventScoreUpdate, &ScoreUpdatePayload{
		TeamACount: r.room.Ownership.TeamCount(models.TeamA),
		TeamBCount: r.room.Ownership.TeamCount(models.TeamB),
		Timestamp:  at.Unix(),
	})
}

// broadcast 向房间内全部连接广播
func (r *GameRoom) broadcast(eventType string, payload interface{}) {
	if r.push == nil {
		return
	}
	r.push(&PushMessage{
		Type:    eventType,
		RoomID:  r.room.ID,
		Payload: payload,
	})
}

// unicast 仅向指定参与者推送
func (r *GameRoom) unicast(participantID uint, eventType string, payload interface{}) {
	if r.push == nil {
		return
	}
	r.push(&PushMessage{
		Type:    eventType,
		RoomID:  r.room.ID,
		Targets: []uint{participantID},
		Payload: payload,
	})
}

// unicastError 向指定参与者推送错误事件
func (r *GameRoom) unicastError(participantID uint, message string) {
	r.unicast(participantID, EventError, &ErrorPayload{Message: message})
}

// haversineMeters 两点间球面直线距离（米）
func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadius = 6371000.0

	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadius * math.Asin(math.Sqrt(a))
}
