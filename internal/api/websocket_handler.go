package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/seyoonp1/running/internal/config"
	"github.com/seyoonp1/running/internal/game/territory"
	"github.com/seyoonp1/running/internal/middleware"
	"github.com/seyoonp1/running/internal/service"
	ws "github.com/seyoonp1/running/internal/websocket"
)

// WebSocketHandler 房间WebSocket处理器
type WebSocketHandler struct {
	hub         *ws.Hub
	roomService service.RoomService
	upgrader    websocket.Upgrader
	logger      *zap.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(hub *ws.Hub, roomService service.RoomService, cfg config.WebSocketConfig, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		roomService: roomService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    cfg.ReadBufferSize,
			WriteBufferSize:   cfg.WriteBufferSize,
			EnableCompression: cfg.EnableCompression,
			CheckOrigin: func(r *http.Request) bool {
				// 生产环境应校验Origin
				return true
			},
		},
		logger: logger,
	}
}

// RoomWebSocket 进入房间的实时连接
// 认证中间件已解析token（Header或query），这里再校验参与者身份。
func (h *WebSocketHandler) RoomWebSocket(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Code:    "UNAUTHORIZED",
			Message: "未认证",
		})
		return
	}

	roomID64, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_ROOM_ID",
			Message: "房间ID无效",
		})
		return
	}
	roomID := uint(roomID64)

	participant, err := h.roomService.ResolveParticipant(c.Request.Context(), roomID, userID)
	if err != nil {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Code:    "NOT_PARTICIPANT",
			Message: "未加入该房间",
		})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket升级失败",
			zap.Uint("user_id", userID),
			zap.Uint("room_id", roomID),
			zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, userID, roomID, participant.ID)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	h.hub.SendToClient(client, &ws.Message{
		Type: territory.EventConnectionEstablished,
		Data: gin.H{
			"session_id":     client.SessionID,
			"participant_id": participant.ID,
		},
		Timestamp: time.Now().Unix(),
	})

	h.logger.Info("房间WebSocket连接建立",
		zap.String("client_id", client.ID),
		zap.Uint("room_id", roomID),
		zap.Uint("participant_id", participant.ID))
}
