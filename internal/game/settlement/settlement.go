package settlement

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seyoonp1/running/internal/config"
	"github.com/seyoonp1/running/internal/errors"
	"github.com/seyoonp1/running/internal/logger"
	"github.com/seyoonp1/running/internal/models"
)

// Result 一次结算的输出
type Result struct {
	RoomID      uint
	WinnerTeam  *string // nil 表示平局
	MVPUserID   *uint
	MVPUsername string
	TeamACount  int
	TeamBCount  int
}

// Settler 游戏结束结算器
// ProcessGameEnd 幂等：同一房间重复调用（包括并发调用）只有第一个
// 观察到 status!=finished 的事务会执行结算，其余返回nil。
type Settler struct {
	db     *gorm.DB
	cfg    config.RatingConfig
	logger *zap.Logger
}

// NewSettler 创建结算器
func NewSettler(db *gorm.DB, cfg config.RatingConfig) *Settler {
	return &Settler{
		db:     db,
		cfg:    cfg,
		logger: logger.GetLogger(),
	}
}

// ProcessGameEnd 结算一个房间
// 全部写入在一个事务内完成：要么房间状态、参与者结果、用户分数
// 一起生效，要么全部不生效。已结算过的房间返回 (nil, nil)。
func (s *Settler) ProcessGameEnd(ctx context.Context, roomID uint) (*Result, error) {
	var result *Result

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room models.Room
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&room, roomID).Error; err != nil {
			return errors.Wrap(err, errors.ErrDatabaseQuery, "加载房间失败")
		}

		// 幂等保护：重新读取状态，已结束则直接返回
		if room.Status == models.RoomStatusFinished {
			return nil
		}

		var participants []*models.Participant
		if err := tx.Preload("User").
			Where("room_id = ?", roomID).
			Find(&participants).Error; err != nil {
			return errors.Wrap(err, errors.ErrDatabaseQuery, "加载参与者失败")
		}

		now := time.Now()

		// 空房间只关闭状态
		if len(participants) == 0 {
			room.Status = models.RoomStatusFinished
			return tx.Save(&room).Error
		}

		if err := s.closeOpenRecords(tx, roomID, now); err != nil {
			return err
		}

		// 以占领地图为准统计每个用户的现存格子数
		hexByUser := make(map[uint]int)
		for _, claim := range room.Ownership {
			hexByUser[claim.UserID]++
		}

		teamACount := room.Ownership.TeamCount(models.TeamA)
		teamBCount := room.Ownership.TeamCount(models.TeamB)

		var winner *string
		switch {
		case teamACount > teamBCount:
			team := models.TeamA
			winner = &team
		case teamBCount > teamACount:
			team := models.TeamB
			winner = &team
		}

		mvpID := pickMVP(participants, hexByUser)

		teamAvg := teamAverages(participants)

		var mvpUserID *uint
		mvpUsername := ""

		for _, p := range participants {
			oppAvg := teamAvg[models.OpponentTeam(p.Team)]

			score := 0.5
			if winner != nil {
				if *winner == p.Team {
					score = 1
				} else {
					score = 0
				}
			}

			expected := 1.0 / (1.0 + math.Pow(10, (oppAvg-float64(p.User.Rating))/400.0))
			delta := int(math.Round(float64(s.cfg.KFactor) * (score - expected)))

			isMVP := mvpID != nil && *mvpID == p.ID
			if isMVP {
				delta += s.cfg.MVPBonus
				uid := p.UserID
				mvpUserID = &uid
				mvpUsername = p.User.Username
			}

			p.RatingChange = delta
			p.IsMVP = isMVP
			p.IsRecording = false
			if err := tx.Omit("User").Save(p).Error; err != nil {
				return errors.Wrap(err, errors.ErrDatabaseUpdate, "保存参与者结算失败")
			}

			p.User.Rating += delta
			if p.User.Rating > p.User.HighestRating {
				p.User.HighestRating = p.User.Rating
			}
			p.User.GamesPlayed++
			switch {
			case winner == nil:
				p.User.GamesDraw++
			case *winner == p.Team:
				p.User.GamesWon++
			default:
				p.User.GamesLost++
			}
			if isMVP {
				p.User.MVPCount++
			}
			if err := tx.Save(&p.User).Error; err != nil {
				return errors.Wrap(err, errors.ErrDatabaseUpdate, "保存用户分数失败")
			}
		}

		if err := s.accumulateRunTotals(tx, roomID); err != nil {
			return err
		}

		room.Status = models.RoomStatusFinished
		room.WinnerTeam = winner
		room.MVPUserID = mvpUserID
		if err := tx.Save(&room).Error; err != nil {
			return errors.Wrap(err, errors.ErrDatabaseUpdate, "保存房间结算失败")
		}

		result = &Result{
			RoomID:      roomID,
			WinnerTeam:  winner,
			MVPUserID:   mvpUserID,
			MVPUsername: mvpUsername,
			TeamACount:  teamACount,
			TeamBCount:  teamBCount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result != nil {
		s.logger.Info("房间结算完成",
			zap.Uint("room_id", roomID),
			zap.Any("winner", result.WinnerTeam),
			zap.Int("team_a", result.TeamACount),
			zap.Int("team_b", result.TeamBCount))
	}
	return result, nil
}

// closeOpenRecords 强制结束房间内仍在进行的跑步记录，以当前时刻为终点
func (s *Settler) closeOpenRecords(tx *gorm.DB, roomID uint, now time.Time) error {
	var open []*models.RunningRecord
	if err := tx.Where("room_id = ? AND status = ?", roomID, models.RunStatusRecording).
		Find(&open).Error; err != nil {
		return errors.Wrap(err, errors.ErrDatabaseQuery, "加载跑步记录失败")
	}

	for _, rec := range open {
		duration := now.Sub(rec.StartedAt)
		endedAt := now
		rec.Status = models.RunStatusFinished
		rec.EndedAt = &endedAt
		rec.Duration = int64(duration.Seconds())
		rec.AveragePace = models.Pace(rec.Distance, duration)
		if err := tx.Save(rec).Error; err != nil {
			return errors.Wrap(err, errors.ErrDatabaseUpdate, "关闭跑步记录失败")
		}
	}
	return nil
}

// accumulateRunTotals 把本局已结束记录的里程与时长累计到用户档案
func (s *Settler) accumulateRunTotals(tx *gorm.DB, roomID uint) error {
	var records []*models.RunningRecord
	if err := tx.Where("room_id = ? AND status = ?", roomID, models.RunStatusFinished).
		Find(&records).Error; err != nil {
		return errors.Wrap(err, errors.ErrDatabaseQuery, "汇总跑步记录失败")
	}

	type total struct {
		distance float64
		duration int64
	}
	totals := make(map[uint]*total)
	for _, rec := range records {
		t, ok := totals[rec.UserID]
		if !ok {
			t = &total{}
			totals[rec.UserID] = t
		}
		t.distance += rec.Distance
		t.duration += rec.Duration
	}

	for userID, t := range totals {
		err := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Updates(map[string]interface{}{
				"total_distance": gorm.Expr("total_distance + ?", t.distance),
				"total_duration": gorm.Expr("total_duration + ?", t.duration),
			}).Error
		if err != nil {
			return errors.Wrap(err, errors.ErrDatabaseUpdate, "累计跑步里程失败")
		}
	}
	return nil
}

// pickMVP 以现存格子数严格最高者为MVP，并列时无MVP
func pickMVP(participants []*models.Participant, hexByUser map[uint]int) *uint {
	var best *models.Participant
	bestCount := -1
	tied := false

	for _, p := range participants {
		count := hexByUser[p.UserID]
		switch {
		case count > bestCount:
			best, bestCount, tied = p, count, false
		case count == bestCount:
			tied = true
		}
	}

	if best == nil || tied || bestCount <= 0 {
		return nil
	}
	id := best.ID
	return &id
}

// teamAverages 计算双方队伍的平均分
func teamAverages(participants []*models.Participant) map[string]float64 {
	sum := map[string]float64{}
	count := map[string]int{}
	for _, p := range participants {
		sum[p.Team] += float64(p.User.Rating)
		count[p.Team]++
	}

	avg := map[string]float64{}
	for _, team := range []string{models.TeamA, models.TeamB} {
		if count[team] > 0 {
			avg[team] = sum[team] / float64(count[team])
		}
	}
	return avg
}
