package territory

import (
	"sync"

	"go.uber.org/zap"

	"github.com/seyoonp1/running/internal/config"
	"github.com/seyoonp1/running/internal/errors"
	"github.com/seyoonp1/running/internal/game/hexgrid"
	"github.com/seyoonp1/running/internal/logger"
	"github.com/seyoonp1/running/internal/models"
)

// Manager 管理全部进行中房间的会话
// 房间之间完全独立，互不阻塞。
type Manager struct {
	mu    sync.RWMutex
	rooms map[uint]*GameRoom

	store Store
	cfg   config.GameConfig
	push  PushCallback

	logger *zap.Logger
}

// NewManager 创建房间会话管理器
func NewManager(store Store, cfg config.GameConfig, push PushCallback) *Manager {
	return &Manager{
		rooms:  make(map[uint]*GameRoom),
		store:  store,
		cfg:    cfg,
		push:   push,
		logger: logger.GetLogger(),
	}
}

// StartRoom 为房间创建并启动会话
// 同一房间重复启动时返回已存在的会话。
func (m *Manager) StartRoom(room *models.Room) (*GameRoom, error) {
	if !room.IsActive() {
		return nil, errors.New(errors.ErrRoomNotActive, "房间未在进行中")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.rooms[room.ID]; ok {
		return existing, nil
	}

	resolution := room.H3Resolution
	if resolution <= 0 {
		resolution = m.cfg.Claim.H3Resolution
	}

	gr := NewGameRoom(room, hexgrid.NewH3Grid(resolution), m.store, m.cfg, m.push)
	gr.Start()
	m.rooms[room.ID] = gr

	return gr, nil
}

// GetRoom 取房间会话，不存在时返回nil
func (m *Manager) GetRoom(roomID uint) *GameRoom {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[roomID]
}

// StopRoom 停止并移除房间会话
func (m *Manager) StopRoom(roomID uint) {
	m.mu.Lock()
	gr, ok := m.rooms[roomID]
	if ok {
		delete(m.rooms, roomID)
	}
	m.mu.Unlock()

	if ok {
		gr.Stop()
	}
}

// StopAll 停止全部房间会话，用于服务关闭
func (m *Manager) StopAll() {
	m.mu.Lock()
	rooms := make([]*GameRoom, 0, len(m.rooms))
	for _, gr := range m.rooms {
		rooms = append(rooms, gr)
	}
	m.rooms = make(map[uint]*GameRoom)
	m.mu.Unlock()

	for _, gr := range rooms {
		gr.Stop()
	}

	m.logger.Info("全部房间会话已停止", zap.Int("count", len(rooms)))
}

// ActiveCount 当前进行中的房间会话数量
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}
