package settlement

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/seyoonp1/running/internal/game/territory"
	"github.com/seyoonp1/running/internal/logger"
	"github.com/seyoonp1/running/internal/repository"
)

// Sweeper 到期房间的定时结算扫描
// 周期性找出 end_at 已过但仍为 active 的房间并结算。多实例或
// 重复触发是安全的，幂等性由结算器的行锁加状态检查保证。
type Sweeper struct {
	interval time.Duration
	rooms    repository.RoomRepository
	settler  *Settler
	manager  *territory.Manager
	push     territory.PushCallback

	sched  gocron.Scheduler
	logger *zap.Logger
}

// NewSweeper 创建结算扫描器
func NewSweeper(interval time.Duration, rooms repository.RoomRepository, settler *Settler, manager *territory.Manager, push territory.PushCallback) *Sweeper {
	return &Sweeper{
		interval: interval,
		rooms:    rooms,
		settler:  settler,
		manager:  manager,
		push:     push,
		logger:   logger.GetLogger(),
	}
}

// Start 启动周期扫描
func (s *Sweeper) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	s.sched = sched

	if _, err := sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.sweep),
	); err != nil {
		return err
	}

	sched.Start()
	s.logger.Info("结算扫描启动", zap.Duration("interval", s.interval))
	return nil
}

// Stop 停止扫描
func (s *Sweeper) Stop() {
	if s.sched != nil {
		if err := s.sched.Shutdown(); err != nil {
			s.logger.Warn("结算扫描停止异常", zap.Error(err))
		}
	}
}

// sweep 找出到期房间并逐个结算
func (s *Sweeper) sweep() {
	ctx := context.Background()
	now := time.Now()

	expired, err := s.rooms.FindExpiredActive(ctx, now)
	if err != nil {
		s.logger.Error("查询到期房间失败", zap.Error(err))
		return
	}

	for _, room := range expired {
		s.SettleRoom(ctx, room.ID)
	}
}

// SettleRoom 结算单个房间并广播结束事件
// 重复调用安全；仅首次实际结算的调用会发出广播。
// 先停房间会话再结算：会话停止后不再处理事件，结算提交的
// 比分、评分和占领地图不会被在途位置事件覆盖。
func (s *Sweeper) SettleRoom(ctx context.Context, roomID uint) {
	if s.manager != nil {
		s.manager.StopRoom(roomID)
	}

	result, err := s.settler.ProcessGameEnd(ctx, roomID)
	if err != nil {
		s.logger.Error("房间结算失败", zap.Uint("room_id", roomID), zap.Error(err))
		return
	}
	if result == nil {
		// 已被其他触发方结算过
		return
	}

	if s.push != nil {
		payload := &territory.GameEndedPayload{
			WinnerTeam: result.WinnerTeam,
			TeamACount: result.TeamACount,
			TeamBCount: result.TeamBCount,
			Timestamp:  time.Now().Unix(),
		}
		if result.MVPUserID != nil {
			payload.MVPID = result.MVPUserID
			payload.MVPUsername = result.MVPUsername
		}
		s.push(&territory.PushMessage{
			Type:    territory.EventGameEnded,
			RoomID:  roomID,
			Payload: payload,
		})
	}
}
