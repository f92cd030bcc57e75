package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/seyoonp1/running/internal/config"
	"github.com/seyoonp1/running/internal/models"
	"github.com/seyoonp1/running/internal/repository"
)

// SettlementTestSuite 结算测试套件
type SettlementTestSuite struct {
	suite.Suite
	ctx     context.Context
	db      *gorm.DB
	settler *Settler
}

func (suite *SettlementTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.db = repository.SetupTestDB()
	suite.settler = NewSettler(suite.db, config.RatingConfig{
		KFactor:       32,
		MVPBonus:      15,
		InitialRating: 1500,
	})
}

func (suite *SettlementTestSuite) TearDownTest() {
	repository.CleanupTestDB(suite.db)
}

// createUser 创建测试用户
func (suite *SettlementTestSuite) createUser(username string, rating int) *models.User {
	user := &models.User{
		Username:      username,
		Nickname:      username,
		Status:        "active",
		Rating:        rating,
		HighestRating: rating,
	}
	suite.NoError(suite.db.Create(user).Error)
	return user
}

// createRoom 创建到期的进行中房间
func (suite *SettlementTestSuite) createRoom(ownership models.OwnershipMap) *models.Room {
	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(-time.Minute)
	room := &models.Room{
		Name:          "test room",
		InviteCode:    "TEST" + time.Now().Format("150405.000000"),
		CreatorID:     1,
		Status:        models.RoomStatusActive,
		TeamSizeTotal: 4,
		H3Resolution:  9,
		StartAt:       &start,
		EndAt:         &end,
		Ownership:     ownership,
	}
	suite.NoError(suite.db.Create(room).Error)
	return room
}

// addParticipant 加入参与者
func (suite *SettlementTestSuite) addParticipant(room *models.Room, user *models.User, team string) *models.Participant {
	p := &models.Participant{
		RoomID: room.ID,
		UserID: user.ID,
		Team:   team,
	}
	suite.NoError(suite.db.Create(p).Error)
	return p
}

func (suite *SettlementTestSuite) TestWinnerAndMVP() {
	u1 := suite.createUser("alice", 1500)
	u2 := suite.createUser("bob", 1500)

	ownership := models.OwnershipMap{
		"cell-1": {Team: models.TeamA, UserID: u1.ID},
		"cell-2": {Team: models.TeamA, UserID: u1.ID},
		"cell-3": {Team: models.TeamA, UserID: u1.ID},
		"cell-4": {Team: models.TeamB, UserID: u2.ID},
	}
	room := suite.createRoom(ownership)
	suite.addParticipant(room, u1, models.TeamA)
	suite.addParticipant(room, u2, models.TeamB)

	result, err := suite.settler.ProcessGameEnd(suite.ctx, room.ID)
	suite.NoError(err)
	suite.NotNil(result)

	suite.NotNil(result.WinnerTeam)
	suite.Equal(models.TeamA, *result.WinnerTeam)
	suite.Equal(3, result.TeamACount)
	suite.Equal(1, result.TeamBCount)
	suite.NotNil(result.MVPUserID)
	suite.Equal(u1.ID, *result.MVPUserID)
	suite.Equal("alice", result.MVPUsername)

	// 同分对局：胜者 +16，MVP再 +15；败者 -16
	var winner, loser models.User
	suite.NoError(suite.db.First(&winner, u1.ID).Error)
	suite.NoError(suite.db.First(&loser, u2.ID).Error)
	suite.Equal(1531, winner.Rating)
	suite.Equal(1531, winner.HighestRating)
	suite.Equal(1484, loser.Rating)
	suite.Equal(1500, loser.HighestRating)
	suite.Equal(1, winner.GamesWon)
	suite.Equal(1, winner.MVPCount)
	suite.Equal(1, loser.GamesLost)

	var room2 models.Room
	suite.NoError(suite.db.First(&room2, room.ID).Error)
	suite.Equal(models.RoomStatusFinished, room2.Status)
	suite.Equal(models.TeamA, *room2.WinnerTeam)
	suite.Equal(u1.ID, *room2.MVPUserID)
}

func (suite *SettlementTestSuite) TestIdempotentSettlement() {
	u1 := suite.createUser("alice", 1500)
	u2 := suite.createUser("bob", 1500)

	room := suite.createRoom(models.OwnershipMap{
		"cell-1": {Team: models.TeamA, UserID: u1.ID},
	})
	suite.addParticipant(room, u1, models.TeamA)
	suite.addParticipant(room, u2, models.TeamB)

	first, err := suite.settler.ProcessGameEnd(suite.ctx, room.ID)
	suite.NoError(err)
	suite.NotNil(first)

	var ratingAfterFirst int
	var u models.User
	suite.NoError(suite.db.First(&u, u1.ID).Error)
	ratingAfterFirst = u.Rating

	// 重复结算不产生第二次效果
	second, err := suite.settler.ProcessGameEnd(suite.ctx, room.ID)
	suite.NoError(err)
	suite.Nil(second)

	suite.NoError(suite.db.First(&u, u1.ID).Error)
	suite.Equal(ratingAfterFirst, u.Rating)
}

func (suite *SettlementTestSuite) TestDrawZeroDelta() {
	u1 := suite.createUser("alice", 1500)
	u2 := suite.createUser("bob", 1500)

	room := suite.createRoom(models.OwnershipMap{
		"cell-1": {Team: models.TeamA, UserID: u1.ID},
		"cell-2": {Team: models.TeamB, UserID: u2.ID},
	})
	suite.addParticipant(room, u1, models.TeamA)
	suite.addParticipant(room, u2, models.TeamB)

	result, err := suite.settler.ProcessGameEnd(suite.ctx, room.ID)
	suite.NoError(err)
	suite.NotNil(result)

	suite.Nil(result.WinnerTeam)
	// 平局且格子数并列：无MVP
	suite.Nil(result.MVPUserID)

	var a, b models.User
	suite.NoError(suite.db.First(&a, u1.ID).Error)
	suite.NoError(suite.db.First(&b, u2.ID).Error)
	suite.Equal(1500, a.Rating)
	suite.Equal(1500, b.Rating)
	suite.Equal(1, a.GamesDraw)
	suite.Equal(1, b.GamesDraw)
}

func (suite *SettlementTestSuite) TestRatingAsymmetryByStrength() {
	// 高分选手战胜低分选手只能拿到低于一半K值的涨幅
	u1 := suite.createUser("strong", 1700)
	u2 := suite.createUser("weak", 1300)

	room := suite.createRoom(models.OwnershipMap{
		"cell-1": {Team: models.TeamA, UserID: u1.ID},
		"cell-2": {Team: models.TeamA, UserID: u1.ID},
	})
	suite.addParticipant(room, u1, models.TeamA)
	suite.addParticipant(room, u2, models.TeamB)

	result, err := suite.settler.ProcessGameEnd(suite.ctx, room.ID)
	suite.NoError(err)
	suite.NotNil(result)

	var winner, loser models.Participant
	suite.NoError(suite.db.Where("user_id = ?", u1.ID).First(&winner).Error)
	suite.NoError(suite.db.Where("user_id = ?", u2.ID).First(&loser).Error)

	// E(strong) ≈ 0.909 → 胜利涨幅 round(32*0.091)=3，MVP +15
	suite.Equal(18, winner.RatingChange)
	suite.Equal(-3, loser.RatingChange)
}

func (suite *SettlementTestSuite) TestEmptyRoomJustFinishes() {
	room := suite.createRoom(models.OwnershipMap{})

	result, err := suite.settler.ProcessGameEnd(suite.ctx, room.ID)
	suite.NoError(err)
	suite.Nil(result)

	var room2 models.Room
	suite.NoError(suite.db.First(&room2, room.ID).Error)
	suite.Equal(models.RoomStatusFinished, room2.Status)
}

func (suite *SettlementTestSuite) TestOpenRecordsForceClosed() {
	u1 := suite.createUser("alice", 1500)
	u2 := suite.createUser("bob", 1500)

	room := suite.createRoom(models.OwnershipMap{
		"cell-1": {Team: models.TeamA, UserID: u1.ID},
	})
	p1 := suite.addParticipant(room, u1, models.TeamA)
	suite.addParticipant(room, u2, models.TeamB)

	started := time.Now().Add(-30 * time.Minute)
	record := &models.RunningRecord{
		UserID:        u1.ID,
		RoomID:        room.ID,
		ParticipantID: p1.ID,
		Status:        models.RunStatusRecording,
		StartedAt:     started,
		Distance:      4200,
	}
	suite.NoError(suite.db.Create(record).Error)

	_, err := suite.settler.ProcessGameEnd(suite.ctx, room.ID)
	suite.NoError(err)

	var closed models.RunningRecord
	suite.NoError(suite.db.First(&closed, record.ID).Error)
	suite.Equal(models.RunStatusFinished, closed.Status)
	suite.NotNil(closed.EndedAt)
	suite.Greater(closed.Duration, int64(0))
	suite.Greater(closed.AveragePace, 0.0)

	// 已结束记录的里程累计进用户档案
	var u models.User
	suite.NoError(suite.db.First(&u, u1.ID).Error)
	suite.Equal(4200.0, u.TotalDistance)
}

func TestSettlementTestSuite(t *testing.T) {
	suite.Run(t, new(SettlementTestSuite))
}
