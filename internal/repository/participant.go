package repository

import (
	"context"
	"errors"

	"github.com/seyoonp1/running/internal/models"
	"gorm.io/gorm"
)

// ParticipantRepository 参与者仓储接口
type ParticipantRepository interface {
	BaseRepository
	Create(ctx context.Context, participant *models.Participant) error
	Update(ctx context.Context, participant *models.Participant) error
	Delete(ctx context.Context, id uint) error
	FindByID(ctx context.Context, id uint) (*models.Participant, error)
	FindByRoomAndUser(ctx context.Context, roomID, userID uint) (*models.Participant, error)
	ListByRoom(ctx context.Context, roomID uint) ([]*models.Participant, error)
	CountByRoomAndTeam(ctx context.Context, roomID uint, team string) (int64, error)
}

// participantRepo 参与者仓储实现
type participantRepo struct {
	*BaseRepo
}

// NewParticipantRepository 创建参与者仓储
func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &participantRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建参与者
func (r *participantRepo) Create(ctx context.Context, participant *models.Participant) error {
	return r.db.WithContext(ctx).Create(participant).Error
}

// Update 更新参与者
// 关联的用户档案不在此处写入
func (r *participantRepo) Update(ctx context.Context, participant *models.Participant) error {
	return r.db.WithContext(ctx).Omit("User").Save(participant).Error
}

// Delete 删除参与者
func (r *participantRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Participant{}, id).Error
}

// FindByID 根据ID查找参与者
func (r *participantRepo) FindByID(ctx context.Context, id uint) (*models.Participant, error) {
	var participant models.Participant
	err := r.db.WithContext(ctx).Preload("User").First(&participant, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("参与者不存在")
		}
		return nil, err
	}
	return &participant, nil
}

// FindByRoomAndUser 根据房间和用户查找参与者
func (r *participantRepo) FindByRoomAndUser(ctx context.Context, roomID, userID uint) (*models.Participant, error) {
	var participant models.Participant
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&participant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("参与者不存在")
		}
		return nil, err
	}
	return &participant, nil
}

// ListByRoom 列出房间全部参与者
func (r *participantRepo) ListByRoom(ctx context.Context, roomID uint) ([]*models.Participant, error) {
	var participants []*models.Participant
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("room_id = ?", roomID).
		Order("created_at ASC").
		Find(&participants).Error
	return participants, err
}

// CountByRoomAndTeam 统计房间内某队伍人数
func (r *participantRepo) CountByRoomAndTeam(ctx context.Context, roomID uint, team string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Participant{}).
		Where("room_id = ? AND team = ?", roomID, team).
		Count(&count).Error
	return count, err
}
