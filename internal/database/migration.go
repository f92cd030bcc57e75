package database

import (
	"fmt"

	"github.com/seyoonp1/running/internal/logger"
	"github.com/seyoonp1/running/internal/models"
	"go.uber.org/zap"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate() error {
	if DB == nil {
		return fmt.Errorf("数据库未初始化")
	}

	// 定义需要迁移的模型
	migrationModels := []interface{}{
		// 用户相关
		&models.User{},
		&models.UserAuth{},

		// 房间相关
		&models.Room{},
		&models.Participant{},

		// 跑步记录
		&models.RunningRecord{},
	}

	for _, model := range migrationModels {
		if err := DB.AutoMigrate(model); err != nil {
			logger.Error("表迁移失败",
				zap.String("model", fmt.Sprintf("%T", model)),
				zap.Error(err))
			return fmt.Errorf("迁移 %T 失败: %w", model, err)
		}
	}

	logger.Info("数据库迁移完成", zap.Int("tables", len(migrationModels)))
	return nil
}
