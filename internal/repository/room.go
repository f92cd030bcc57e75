package repository

import (
	"context"
	"errors"
	"time"

	"github.com/seyoonp1/running/internal/models"
	"gorm.io/gorm"
)

// RoomRepository 房间仓储接口
type RoomRepository interface {
	BaseRepository
	Create(ctx context.Context, room *models.Room) error
	Update(ctx context.Context, room *models.Room) error
	FindByID(ctx context.Context, id uint) (*models.Room, error)
	FindByIDWithParticipants(ctx context.Context, id uint) (*models.Room, error)
	FindByInviteCode(ctx context.Context, code string) (*models.Room, error)
	FindExpiredActive(ctx context.Context, now time.Time) ([]*models.Room, error)
	List(ctx context.Context, status string, pagination *Pagination) ([]*models.Room, error)
	SaveOwnership(ctx context.Context, roomID uint, ownership models.OwnershipMap) error
}

// roomRepo 房间仓储实现
type roomRepo struct {
	*BaseRepo
}

// NewRoomRepository 创建房间仓储
func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建房间
func (r *roomRepo) Create(ctx context.Context, room *models.Room) error {
	return r.db.WithContext(ctx).Create(room).Error
}

// Update 更新房间
// 参与者列表可能被预加载，这里只写房间自身字段
func (r *roomRepo) Update(ctx context.Context, room *models.Room) error {
	return r.db.WithContext(ctx).Omit("Participants").Save(room).Error
}

// FindByID 根据ID查找房间
func (r *roomRepo) FindByID(ctx context.Context, id uint) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).First(&room, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("房间不存在")
		}
		return nil, err
	}
	return &room, nil
}

// FindByIDWithParticipants 根据ID查找房间（含参与者）
func (r *roomRepo) FindByIDWithParticipants(ctx context.Context, id uint) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Preload("Participants.User").
		First(&room, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("房间不存在")
		}
		return nil, err
	}
	return &room, nil
}

// FindByInviteCode 根据邀请码查找房间
func (r *roomRepo) FindByInviteCode(ctx context.Context, code string) (*models.Room, error) {
	var room models.Room
	err := r.db.WithContext(ctx).Where("invite_code = ?", code).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("房间不存在")
		}
		return nil, err
	}
	return &room, nil
}

// FindExpiredActive 查找游戏窗口已过期但仍为active的房间
func (r *roomRepo) FindExpiredActive(ctx context.Context, now time.Time) ([]*models.Room, error) {
	var rooms []*models.Room
	err := r.db.WithContext(ctx).
		Where("status = ? AND end_at IS NOT NULL AND end_at < ?", models.RoomStatusActive, now).
		Find(&rooms).Error
	return rooms, err
}

// List 按状态列出房间
func (r *roomRepo) List(ctx context.Context, status string, pagination *Pagination) ([]*models.Room, error) {
	var rooms []*models.Room
	query := r.db.WithContext(ctx).Model(&models.Room{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&pagination.Total).Error; err != nil {
		return nil, err
	}
	err := query.Order("created_at DESC").
		Scopes(Paginate(pagination)).
		Find(&rooms).Error
	return rooms, err
}

// SaveOwnership 写入占领地图快照
func (r *roomRepo) SaveOwnership(ctx context.Context, roomID uint, ownership models.OwnershipMap) error {
	return r.db.WithContext(ctx).Model(&models.Room{}).
		Where("id = ?", roomID).
		Update("ownership", ownership).Error
}
