package service

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/seyoonp1/running/internal/errors"
	"github.com/seyoonp1/running/internal/game/territory"
	"github.com/seyoonp1/running/internal/models"
	"github.com/seyoonp1/running/internal/repository"
	"github.com/seyoonp1/running/internal/utils"
)

// CreateRoomRequest 创建房间请求
type CreateRoomRequest struct {
	Name          string `json:"name" binding:"required,max=200"`
	TeamSizeTotal int    `json:"team_size_total" binding:"omitempty,min=2,max=20"`
	H3Resolution  int    `json:"h3_resolution" binding:"omitempty,min=7,max=11"`
}

// RoomService 房间生命周期服务
type RoomService interface {
	CreateRoom(ctx context.Context, creatorID uint, req *CreateRoomRequest) (*models.Room, error)
	JoinRoom(ctx context.Context, userID uint, inviteCode string) (*models.Room, error)
	LeaveRoom(ctx context.Context, userID, roomID uint) error
	StartGame(ctx context.Context, userID, roomID uint, duration time.Duration) (*models.Room, error)
	GetRoom(ctx context.Context, roomID uint) (*models.Room, error)
	ListRooms(ctx context.Context, status string, page, pageSize int) ([]*models.Room, error)
	ResolveParticipant(ctx context.Context, roomID, userID uint) (*models.Participant, error)
}

type roomService struct {
	db      *gorm.DB
	rooms   repository.RoomRepository
	parts   repository.ParticipantRepository
	manager *territory.Manager

	defaultDuration time.Duration
}

// NewRoomService 创建房间服务
func NewRoomService(db *gorm.DB, manager *territory.Manager) RoomService {
	return &roomService{
		db:              db,
		rooms:           repository.NewRoomRepository(db),
		parts:           repository.NewParticipantRepository(db),
		manager:         manager,
		defaultDuration: 30 * time.Minute,
	}
}

// CreateRoom 创建房间并以房主身份加入
func (s *roomService) CreateRoom(ctx context.Context, creatorID uint, req *CreateRoomRequest) (*models.Room, error) {
	teamSize := req.TeamSizeTotal
	if teamSize == 0 {
		teamSize = 4
	}
	if teamSize%2 != 0 {
		return nil, errors.New(errors.ErrInvalidParam, "队伍总人数必须为偶数")
	}

	resolution := req.H3Resolution
	if resolution == 0 {
		resolution = 9
	}

	inviteCode, err := utils.GenerateInviteCode()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrUnknown, "生成邀请码失败")
	}

	room := &models.Room{
		Name:          req.Name,
		InviteCode:    inviteCode,
		CreatorID:     creatorID,
		Status:        models.RoomStatusReady,
		TeamSizeTotal: teamSize,
		H3Resolution:  resolution,
		Ownership:     make(models.OwnershipMap),
	}

	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, err
	}

	host := &models.Participant{
		RoomID: room.ID,
		UserID: creatorID,
		Team:   models.TeamA,
		IsHost: true,
	}
	if err := s.parts.Create(ctx, host); err != nil {
		return nil, err
	}

	return s.rooms.FindByIDWithParticipants(ctx, room.ID)
}

// JoinRoom 凭邀请码加入房间，自动分配到人数较少的一方
func (s *roomService) JoinRoom(ctx context.Context, userID uint, inviteCode string) (*models.Room, error) {
	room, err := s.rooms.FindByInviteCode(ctx, inviteCode)
	if err != nil {
		return nil, errors.New(errors.ErrNotFound, "房间不存在")
	}
	if room.Status != models.RoomStatusReady {
		return nil, errors.New(errors.ErrRoomNotActive, "房间已开局或已结束")
	}

	if existing, _ := s.parts.FindByRoomAndUser(ctx, room.ID, userID); existing != nil {
		return nil, errors.New(errors.ErrAlreadyJoined, "已在房间中")
	}

	countA, err := s.parts.CountByRoomAndTeam(ctx, room.ID, models.TeamA)
	if err != nil {
		return nil, err
	}
	countB, err := s.parts.CountByRoomAndTeam(ctx, room.ID, models.TeamB)
	if err != nil {
		return nil, err
	}
	if countA+countB >= int64(room.TeamSizeTotal) {
		return nil, errors.New(errors.ErrRoomFull, "房间已满")
	}

	// 补入人数较少的一方，人数相同时进B队（房主固定在A队）
	team := models.TeamB
	if countB > countA {
		team = models.TeamA
	}

	participant := &models.Participant{
		RoomID: room.ID,
		UserID: userID,
		Team:   team,
	}
	if err := s.parts.Create(ctx, participant); err != nil {
		return nil, err
	}

	return s.rooms.FindByIDWithParticipants(ctx, room.ID)
}

// LeaveRoom 离开房间，仅开局前可退出
func (s *roomService) LeaveRoom(ctx context.Context, userID, roomID uint) error {
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		return errors.New(errors.ErrNotFound, "房间不存在")
	}
	if room.Status != models.RoomStatusReady {
		return errors.New(errors.ErrRoomNotActive, "开局后不可退出")
	}

	participant, err := s.parts.FindByRoomAndUser(ctx, roomID, userID)
	if err != nil {
		return errors.New(errors.ErrNotParticipant, "未加入该房间")
	}
	if participant.IsHost {
		return errors.New(errors.ErrNotHost, "房主不可退出，请解散房间")
	}

	return s.parts.Delete(ctx, participant.ID)
}

// StartGame 房主开局
// 状态切换为 active 并启动房间会话，到期后由结算扫描收尾。
func (s *roomService) StartGame(ctx context.Context, userID, roomID uint, duration time.Duration) (*models.Room, error) {
	room, err := s.rooms.FindByIDWithParticipants(ctx, roomID)
	if err != nil {
		return nil, errors.New(errors.ErrNotFound, "房间不存在")
	}
	if room.Status != models.RoomStatusReady {
		return nil, errors.New(errors.ErrRoomNotActive, "房间状态不允许开局")
	}

	participant, err := s.parts.FindByRoomAndUser(ctx, roomID, userID)
	if err != nil {
		return nil, errors.New(errors.ErrNotParticipant, "未加入该房间")
	}
	if !participant.IsHost {
		return nil, errors.New(errors.ErrNotHost, "只有房主可以开局")
	}

	if duration <= 0 {
		duration = s.defaultDuration
	}
	now := time.Now()
	endAt := now.Add(duration)
	room.Status = models.RoomStatusActive
	room.StartAt = &now
	room.EndAt = &endAt
	if err := s.rooms.Update(ctx, room); err != nil {
		return nil, err
	}

	if s.manager != nil {
		if _, err := s.manager.StartRoom(room); err != nil {
			return nil, err
		}
	}

	return room, nil
}

// GetRoom 查询房间详情
func (s *roomService) GetRoom(ctx context.Context, roomID uint) (*models.Room, error) {
	return s.rooms.FindByIDWithParticipants(ctx, roomID)
}

// ListRooms 分页查询房间
func (s *roomService) ListRooms(ctx context.Context, status string, page, pageSize int) ([]*models.Room, error) {
	return s.rooms.List(ctx, status, repository.NewPagination(page, pageSize))
}

// ResolveParticipant 按房间和用户定位参与者，供连接鉴权使用
func (s *roomService) ResolveParticipant(ctx context.Context, roomID, userID uint) (*models.Participant, error) {
	participant, err := s.parts.FindByRoomAndUser(ctx, roomID, userID)
	if err != nil {
		return nil, errors.New(errors.ErrNotParticipant, "未加入该房间")
	}
	return participant, nil
}
