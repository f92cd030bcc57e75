package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seyoonp1/running/internal/game/territory"
)

// Hub WebSocket连接管理中心
// 按房间维护连接分组，房间会话的推送经由 Push 路由到对应连接。
type Hub struct {
	// 客户端连接池
	clients   map[string]*Client
	clientsMu sync.RWMutex

	// 房间ID到客户端的映射
	roomClients map[uint][]*Client
	roomMu      sync.RWMutex

	// 注册/注销通道
	register   chan *Client
	unregister chan *Client

	// 房间事件入口（由路由层注入）
	manager *territory.Manager

	logger *zap.Logger
}

// Message 出站消息信封
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// NewHub 创建Hub
func NewHub(manager *territory.Manager, logger *zap.Logger) *Hub {
	return &Hub{
		clients:     make(map[string]*Client),
		roomClients: make(map[uint][]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		manager:     manager,
		logger:      logger,
	}
}

// SetManager 注入房间会话管理器
// 管理器的推送回调又指向Hub，二者相互引用，构造后再注入。
func (h *Hub) SetManager(manager *territory.Manager) {
	h.manager = manager
}

// Register 注册客户端
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Run 运行Hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

// registerClient 注册客户端
func (h *Hub) registerClient(client *Client) {
	h.clientsMu.Lock()
	h.clients[client.ID] = client
	h.clientsMu.Unlock()

	h.roomMu.Lock()
	h.roomClients[client.RoomID] = append(h.roomClients[client.RoomID], client)
	h.roomMu.Unlock()

	h.logger.Info("WebSocket客户端连接",
		zap.String("client_id", client.ID),
		zap.Uint("room_id", client.RoomID),
		zap.Uint("user_id", client.UserID))
}

// unregisterClient 注销客户端
func (h *Hub) unregisterClient(client *Client) {
	h.clientsMu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
	}
	h.clientsMu.Unlock()

	h.roomMu.Lock()
	clients := h.roomClients[client.RoomID]
	for i, c := range clients {
		if c.ID == client.ID {
			h.roomClients[client.RoomID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(h.roomClients[client.RoomID]) == 0 {
		delete(h.roomClients, client.RoomID)
	}
	h.roomMu.Unlock()

	h.logger.Info("WebSocket客户端断开",
		zap.String("client_id", client.ID),
		zap.Uint("room_id", client.RoomID),
		zap.Uint("user_id", client.UserID))
}

// Push 路由房间会话推送
// Targets为空时发给房间内全部连接，否则仅发给指定参与者的连接。
// 满足 territory.PushCallback 签名。
func (h *Hub) Push(msg *territory.PushMessage) {
	data, err := json.Marshal(&Message{
		Type:      msg.Type,
		Data:      msg.Payload,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		h.logger.Error("序列化推送消息失败",
			zap.String("type", msg.Type),
			zap.Error(err))
		return
	}

	// 注册/注销会原地改写房间切片，持锁期间拷贝出快照再遍历
	h.roomMu.RLock()
	clients := make([]*Client, len(h.roomClients[msg.RoomID]))
	copy(clients, h.roomClients[msg.RoomID])
	h.roomMu.RUnlock()

	for _, client := range clients {
		if len(msg.Targets) > 0 && !containsParticipant(msg.Targets, client.ParticipantID) {
			continue
		}
		select {
		case client.Send <- data:
		default:
			// 发送缓冲区满时丢弃，慢客户端不能阻塞房间推送
			h.logger.Warn("客户端发送缓冲区满",
				zap.String("client_id", client.ID),
				zap.Uint("room_id", msg.RoomID))
		}
	}
}

// SendToClient 发送消息给指定客户端
func (h *Hub) SendToClient(client *Client, msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("序列化消息失败", zap.Error(err))
		return
	}

	select {
	case client.Send <- data:
	default:
		h.logger.Warn("客户端发送缓冲区满",
			zap.String("client_id", client.ID))
	}
}

// RoomClientCount 房间内当前连接数
func (h *Hub) RoomClientCount(roomID uint) int {
	h.roomMu.RLock()
	defer h.roomMu.RUnlock()
	return len(h.roomClients[roomID])
}

func containsParticipant(targets []uint, participantID uint) bool {
	for _, t := range targets {
		if t == participantID {
			return true
		}
	}
	return false
}
