package websocket

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/seyoonp1/running/internal/game/territory"
)

// 错误定义
var (
	ErrClientNotFound = errors.New("客户端未找到")
	ErrSendBufferFull = errors.New("发送缓冲区已满")
	ErrInvalidMessage = errors.New("无效的消息格式")
)

// WebSocket配置
const (
	// 写超时
	writeWait = 10 * time.Second

	// 读取pong超时
	pongWait = 60 * time.Second

	// ping发送周期（必须小于pongWait）
	pingPeriod = (pongWait * 9) / 10

	// 最大消息大小
	maxMessageSize = 64 * 1024 // 64KB
)

// Client 一条房间内的WebSocket连接
type Client struct {
	ID            string
	UserID        uint
	RoomID        uint
	ParticipantID uint
	SessionID     string

	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte
}

// NewClient 创建新客户端
func NewClient(hub *Hub, conn *websocket.Conn, userID, roomID, participantID uint) *Client {
	return &Client{
		ID:            uuid.New().String(),
		SessionID:     uuid.New().String(),
		UserID:        userID,
		RoomID:        roomID,
		ParticipantID: participantID,
		Hub:           hub,
		Conn:          conn,
		Send:          make(chan []byte, 256),
	}
}

// ReadPump 读取消息并转换为房间事件
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Error("WebSocket读取错误",
					zap.String("client_id", c.ID),
					zap.Error(err))
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump 写入消息
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub关闭了通道
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// 批量发送队列中的消息
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 解析上行消息并投递到房间会话
func (c *Client) handleMessage(data []byte) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.Hub.logger.Warn("解析WebSocket消息失败",
			zap.String("client_id", c.ID),
			zap.Error(err))
		c.sendError("消息格式错误")
		return
	}

	room := c.Hub.manager.GetRoom(c.RoomID)
	if room == nil {
		c.sendError("房间未在进行中")
		return
	}

	now := time.Now()

	var ev territory.Event
	switch msg.Type {
	case InboundLocation:
		ev = territory.LocationEvent{
			Participant: c.ParticipantID,
			Lat:         msg.Lat,
			Lng:         msg.Lng,
			Accuracy:    msg.Accuracy,
			Speed:       msg.Speed,
			At:          now,
		}
	case InboundPaintball:
		ev = territory.PaintballEvent{
			Participant:   c.ParticipantID,
			PaintballType: msg.PaintballType,
			TargetCellID:  msg.TargetH3ID,
			At:            now,
		}
	case InboundStartRecording:
		ev = territory.StartRecordingEvent{Participant: c.ParticipantID, At: now}
	case InboundStopRecording:
		ev = territory.StopRecordingEvent{Participant: c.ParticipantID, At: now}
	default:
		c.Hub.logger.Warn("未知消息类型",
			zap.String("client_id", c.ID),
			zap.String("type", msg.Type))
		c.sendError("未知消息类型")
		return
	}

	if err := room.Enqueue(ev); err != nil {
		c.sendError("房间繁忙，请稍后重试")
	}
}

// sendError 推送错误事件给当前连接
func (c *Client) sendError(message string) {
	c.Hub.SendToClient(c, &Message{
		Type:      territory.EventError,
		Data:      &territory.ErrorPayload{Message: message},
		Timestamp: time.Now().Unix(),
	})
}

// Close 主动关闭连接
func (c *Client) Close() {
	c.Conn.Close()
}
