package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/seyoonp1/running/internal/models"
	"github.com/seyoonp1/running/internal/repository"
)

// RoomServiceTestSuite 房间服务测试套件
type RoomServiceTestSuite struct {
	suite.Suite
	ctx         context.Context
	db          *gorm.DB
	roomService RoomService
	users       []*models.User
}

func (suite *RoomServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.db = repository.SetupTestDB()
	// 会话管理器在服务外部注入，这里只测房间生命周期
	suite.roomService = NewRoomService(suite.db, nil)

	suite.users = nil
	for _, name := range []string{"alice", "bob", "carol", "dave", "erin"} {
		user := &models.User{Username: name, Nickname: name, Status: "active", Rating: 1500, HighestRating: 1500}
		suite.NoError(suite.db.Create(user).Error)
		suite.users = append(suite.users, user)
	}
}

func (suite *RoomServiceTestSuite) TearDownTest() {
	repository.CleanupTestDB(suite.db)
}

func (suite *RoomServiceTestSuite) createRoom() *models.Room {
	room, err := suite.roomService.CreateRoom(suite.ctx, suite.users[0].ID, &CreateRoomRequest{
		Name:          "周末跑团",
		TeamSizeTotal: 4,
	})
	suite.NoError(err)
	return room
}

func (suite *RoomServiceTestSuite) TestCreateRoomHostJoinsTeamA() {
	room := suite.createRoom()

	suite.Equal(models.RoomStatusReady, room.Status)
	suite.NotEmpty(room.InviteCode)
	suite.Len(room.Participants, 1)
	suite.Equal(models.TeamA, room.Participants[0].Team)
	suite.True(room.Participants[0].IsHost)
}

func (suite *RoomServiceTestSuite) TestCreateRoomOddSizeRejected() {
	_, err := suite.roomService.CreateRoom(suite.ctx, suite.users[0].ID, &CreateRoomRequest{
		Name:          "周末跑团",
		TeamSizeTotal: 3,
	})
	suite.Error(err)
}

func (suite *RoomServiceTestSuite) TestJoinBalancesTeams() {
	room := suite.createRoom()

	// 依次加入，双方人数保持均衡
	joined, err := suite.roomService.JoinRoom(suite.ctx, suite.users[1].ID, room.InviteCode)
	suite.NoError(err)
	joined, err = suite.roomService.JoinRoom(suite.ctx, suite.users[2].ID, room.InviteCode)
	suite.NoError(err)
	joined, err = suite.roomService.JoinRoom(suite.ctx, suite.users[3].ID, room.InviteCode)
	suite.NoError(err)

	countA, countB := 0, 0
	for _, p := range joined.Participants {
		if p.Team == models.TeamA {
			countA++
		} else {
			countB++
		}
	}
	suite.Equal(2, countA)
	suite.Equal(2, countB)
}

func (suite *RoomServiceTestSuite) TestJoinFullRoomRejected() {
	room := suite.createRoom()
	for i := 1; i <= 3; i++ {
		_, err := suite.roomService.JoinRoom(suite.ctx, suite.users[i].ID, room.InviteCode)
		suite.NoError(err)
	}

	_, err := suite.roomService.JoinRoom(suite.ctx, suite.users[4].ID, room.InviteCode)
	suite.Error(err)
}

func (suite *RoomServiceTestSuite) TestJoinTwiceRejected() {
	room := suite.createRoom()

	_, err := suite.roomService.JoinRoom(suite.ctx, suite.users[1].ID, room.InviteCode)
	suite.NoError(err)
	_, err = suite.roomService.JoinRoom(suite.ctx, suite.users[1].ID, room.InviteCode)
	suite.Error(err)
}

func (suite *RoomServiceTestSuite) TestStartGameHostOnly() {
	room := suite.createRoom()
	_, err := suite.roomService.JoinRoom(suite.ctx, suite.users[1].ID, room.InviteCode)
	suite.NoError(err)

	// 非房主不可开局
	_, err = suite.roomService.StartGame(suite.ctx, suite.users[1].ID, room.ID, 30*time.Minute)
	suite.Error(err)

	started, err := suite.roomService.StartGame(suite.ctx, suite.users[0].ID, room.ID, 30*time.Minute)
	suite.NoError(err)
	suite.Equal(models.RoomStatusActive, started.Status)
	suite.NotNil(started.StartAt)
	suite.NotNil(started.EndAt)
	suite.True(started.EndAt.After(*started.StartAt))

	// 不可重复开局
	_, err = suite.roomService.StartGame(suite.ctx, suite.users[0].ID, room.ID, 30*time.Minute)
	suite.Error(err)
}

func (suite *RoomServiceTestSuite) TestLeaveBeforeStartOnly() {
	room := suite.createRoom()
	_, err := suite.roomService.JoinRoom(suite.ctx, suite.users[1].ID, room.InviteCode)
	suite.NoError(err)

	// 房主不可退出
	err = suite.roomService.LeaveRoom(suite.ctx, suite.users[0].ID, room.ID)
	suite.Error(err)

	// 普通成员开局前可退出
	err = suite.roomService.LeaveRoom(suite.ctx, suite.users[1].ID, room.ID)
	suite.NoError(err)

	// 开局后不可退出
	_, err = suite.roomService.JoinRoom(suite.ctx, suite.users[1].ID, room.InviteCode)
	suite.NoError(err)
	_, err = suite.roomService.StartGame(suite.ctx, suite.users[0].ID, room.ID, 30*time.Minute)
	suite.NoError(err)
	err = suite.roomService.LeaveRoom(suite.ctx, suite.users[1].ID, room.ID)
	suite.Error(err)
}

func TestRoomServiceTestSuite(t *testing.T) {
	suite.Run(t, new(RoomServiceTestSuite))
}
