package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/seyoonp1/running/internal/models"
)

// RoomRepositoryTestSuite 房间仓储测试套件
type RoomRepositoryTestSuite struct {
	suite.Suite
	ctx   context.Context
	db    *gorm.DB
	rooms RoomRepository
	parts ParticipantRepository
}

func (suite *RoomRepositoryTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.db = SetupTestDB()
	suite.rooms = NewRoomRepository(suite.db)
	suite.parts = NewParticipantRepository(suite.db)
}

func (suite *RoomRepositoryTestSuite) TearDownTest() {
	CleanupTestDB(suite.db)
}

func (suite *RoomRepositoryTestSuite) newRoom(code, status string) *models.Room {
	room := &models.Room{
		Name:          "周末跑团",
		InviteCode:    code,
		CreatorID:     1,
		Status:        status,
		TeamSizeTotal: 4,
		H3Resolution:  9,
		Ownership:     make(models.OwnershipMap),
	}
	suite.NoError(suite.rooms.Create(suite.ctx, room))
	return room
}

func (suite *RoomRepositoryTestSuite) TestCreateAndFindByInviteCode() {
	created := suite.newRoom("ABC234", models.RoomStatusReady)

	found, err := suite.rooms.FindByInviteCode(suite.ctx, "ABC234")
	suite.NoError(err)
	suite.Equal(created.ID, found.ID)
	suite.Equal(models.RoomStatusReady, found.Status)

	_, err = suite.rooms.FindByInviteCode(suite.ctx, "NOPE99")
	suite.Error(err)
}

func (suite *RoomRepositoryTestSuite) TestOwnershipRoundTrip() {
	room := suite.newRoom("ABC235", models.RoomStatusActive)

	ownership := models.OwnershipMap{
		"8930e1d8d4bffff": {
			Team:          models.TeamA,
			UserID:        10,
			ParticipantID: 1,
			ClaimedAt:     time.Now().UTC(),
			Source:        models.ClaimSourcePlayer,
		},
		"8930e1d8d53ffff": {
			Team:          models.TeamB,
			UserID:        20,
			ParticipantID: 2,
			ClaimedAt:     time.Now().UTC(),
			Source:        models.ClaimSourceLoopFill,
		},
	}
	suite.NoError(suite.rooms.SaveOwnership(suite.ctx, room.ID, ownership))

	found, err := suite.rooms.FindByID(suite.ctx, room.ID)
	suite.NoError(err)
	suite.Len(found.Ownership, 2)
	suite.Equal(models.TeamA, found.Ownership["8930e1d8d4bffff"].Team)
	suite.Equal(models.ClaimSourceLoopFill, found.Ownership["8930e1d8d53ffff"].Source)
	suite.Equal(1, found.Ownership.TeamCount(models.TeamA))
	suite.Equal(1, found.Ownership.TeamCount(models.TeamB))
}

func (suite *RoomRepositoryTestSuite) TestFindExpiredActive() {
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	expired := suite.newRoom("ABC236", models.RoomStatusActive)
	expired.EndAt = &past
	suite.NoError(suite.rooms.Update(suite.ctx, expired))

	running := suite.newRoom("ABC237", models.RoomStatusActive)
	running.EndAt = &future
	suite.NoError(suite.rooms.Update(suite.ctx, running))

	finished := suite.newRoom("ABC238", models.RoomStatusFinished)
	finished.EndAt = &past
	suite.NoError(suite.rooms.Update(suite.ctx, finished))

	rooms, err := suite.rooms.FindExpiredActive(suite.ctx, time.Now())
	suite.NoError(err)
	suite.Len(rooms, 1)
	suite.Equal(expired.ID, rooms[0].ID)
}

func (suite *RoomRepositoryTestSuite) TestListByStatusWithPagination() {
	for i := 0; i < 3; i++ {
		suite.newRoom("CODE2"+string(rune('A'+i)), models.RoomStatusReady)
	}
	suite.newRoom("CODE2X", models.RoomStatusFinished)

	pagination := NewPagination(1, 2)
	rooms, err := suite.rooms.List(suite.ctx, models.RoomStatusReady, pagination)
	suite.NoError(err)
	suite.Len(rooms, 2)
	suite.Equal(int64(3), pagination.Total)
}

func (suite *RoomRepositoryTestSuite) TestParticipantTeamCount() {
	room := suite.newRoom("ABC239", models.RoomStatusReady)

	suite.NoError(suite.parts.Create(suite.ctx, &models.Participant{RoomID: room.ID, UserID: 1, Team: models.TeamA, IsHost: true}))
	suite.NoError(suite.parts.Create(suite.ctx, &models.Participant{RoomID: room.ID, UserID: 2, Team: models.TeamB}))
	suite.NoError(suite.parts.Create(suite.ctx, &models.Participant{RoomID: room.ID, UserID: 3, Team: models.TeamB}))

	countA, err := suite.parts.CountByRoomAndTeam(suite.ctx, room.ID, models.TeamA)
	suite.NoError(err)
	suite.Equal(int64(1), countA)

	countB, err := suite.parts.CountByRoomAndTeam(suite.ctx, room.ID, models.TeamB)
	suite.NoError(err)
	suite.Equal(int64(2), countB)
}

func (suite *RoomRepositoryTestSuite) TestFindByIDWithParticipants() {
	room := suite.newRoom("ABC240", models.RoomStatusReady)

	user := &models.User{Username: "runner", Nickname: "runner", Status: "active", Rating: 1500, HighestRating: 1500}
	suite.NoError(suite.db.Create(user).Error)
	suite.NoError(suite.parts.Create(suite.ctx, &models.Participant{RoomID: room.ID, UserID: user.ID, Team: models.TeamA}))

	found, err := suite.rooms.FindByIDWithParticipants(suite.ctx, room.ID)
	suite.NoError(err)
	suite.Len(found.Participants, 1)
	suite.Equal("runner", found.Participants[0].User.Username)
}

func TestRoomRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RoomRepositoryTestSuite))
}
