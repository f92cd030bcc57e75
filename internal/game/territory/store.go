package territory

import (
	"context"

	"gorm.io/gorm"

	"github.com/seyoonp1/running/internal/models"
	"github.com/seyoonp1/running/internal/repository"
)

// gormStore 基于仓储层的持久化实现
type gormStore struct {
	rooms   repository.RoomRepository
	parts   repository.ParticipantRepository
	records repository.RunningRecordRepository
}

// NewGormStore 创建房间会话的数据库存储
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{
		rooms:   repository.NewRoomRepository(db),
		parts:   repository.NewParticipantRepository(db),
		records: repository.NewRunningRecordRepository(db),
	}
}

func (s *gormStore) SaveOwnership(ctx context.Context, roomID uint, ownership models.OwnershipMap) error {
	return s.rooms.SaveOwnership(ctx, roomID, ownership)
}

func (s *gormStore) SaveParticipant(ctx context.Context, participant *models.Participant) error {
	return s.parts.Update(ctx, participant)
}

func (s *gormStore) CreateRunningRecord(ctx context.Context, record *models.RunningRecord) error {
	return s.records.Create(ctx, record)
}

func (s *gormStore) UpdateRunningRecord(ctx context.Context, record *models.RunningRecord) error {
	return s.records.Update(ctx, record)
}
