package repository

import (
	"context"
	"errors"

	"github.com/seyoonp1/running/internal/models"
	"gorm.io/gorm"
)

// RunningRecordRepository 跑步记录仓储接口
type RunningRecordRepository interface {
	BaseRepository
	Create(ctx context.Context, record *models.RunningRecord) error
	Update(ctx context.Context, record *models.RunningRecord) error
	FindByID(ctx context.Context, id uint) (*models.RunningRecord, error)
	FindOpenByParticipant(ctx context.Context, participantID uint) (*models.RunningRecord, error)
	ListOpenByRoom(ctx context.Context, roomID uint) ([]*models.RunningRecord, error)
	ListByUser(ctx context.Context, userID uint, pagination *Pagination) ([]*models.RunningRecord, error)
}

// runningRecordRepo 跑步记录仓储实现
type runningRecordRepo struct {
	*BaseRepo
}

// NewRunningRecordRepository 创建跑步记录仓储
func NewRunningRecordRepository(db *gorm.DB) RunningRecordRepository {
	return &runningRecordRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 创建跑步记录
func (r *runningRecordRepo) Create(ctx context.Context, record *models.RunningRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// Update 更新跑步记录
func (r *runningRecordRepo) Update(ctx context.Context, record *models.RunningRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

// FindByID 根据ID查找跑步记录
func (r *runningRecordRepo) FindByID(ctx context.Context, id uint) (*models.RunningRecord, error) {
	var record models.RunningRecord
	err := r.db.WithContext(ctx).First(&record, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("跑步记录不存在")
		}
		return nil, err
	}
	return &record, nil
}

// FindOpenByParticipant 查找参与者未结束的跑步记录
func (r *runningRecordRepo) FindOpenByParticipant(ctx context.Context, participantID uint) (*models.RunningRecord, error) {
	var record models.RunningRecord
	err := r.db.WithContext(ctx).
		Where("participant_id = ? AND status = ?", participantID, models.RunStatusRecording).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("跑步记录不存在")
		}
		return nil, err
	}
	return &record, nil
}

// ListOpenByRoom 列出房间内所有未结束的跑步记录
func (r *runningRecordRepo) ListOpenByRoom(ctx context.Context, roomID uint) ([]*models.RunningRecord, error) {
	var records []*models.RunningRecord
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND status = ?", roomID, models.RunStatusRecording).
		Find(&records).Error
	return records, err
}

// ListByUser 按用户分页列出跑步记录
func (r *runningRecordRepo) ListByUser(ctx context.Context, userID uint, pagination *Pagination) ([]*models.RunningRecord, error) {
	var records []*models.RunningRecord
	query := r.db.WithContext(ctx).Model(&models.RunningRecord{}).
		Where("user_id = ?", userID)
	if err := query.Count(&pagination.Total).Error; err != nil {
		return nil, err
	}
	err := query.Order("started_at DESC").
		Scopes(Paginate(pagination)).
		Find(&records).Error
	return records, err
}
