package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/seyoonp1/running/internal/errors"
	"github.com/seyoonp1/running/internal/middleware"
	"github.com/seyoonp1/running/internal/service"
)

// RoomHandler 房间处理器
type RoomHandler struct {
	roomService service.RoomService
}

// NewRoomHandler 创建房间处理器
func NewRoomHandler(roomService service.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

// CreateRoom 创建房间
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req service.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_REQUEST",
			Message: "请求参数错误",
			Details: err.Error(),
		})
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), userID, &req)
	if err != nil {
		h.writeError(c, err, "CREATE_ROOM_FAILED")
		return
	}

	c.JSON(http.StatusOK, room)
}

// JoinRoom 凭邀请码加入房间
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req struct {
		InviteCode string `json:"invite_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_REQUEST",
			Message: "请求参数错误",
		})
		return
	}

	room, err := h.roomService.JoinRoom(c.Request.Context(), userID, req.InviteCode)
	if err != nil {
		h.writeError(c, err, "JOIN_ROOM_FAILED")
		return
	}

	c.JSON(http.StatusOK, room)
}

// LeaveRoom 离开房间
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	roomID, ok := h.roomIDParam(c)
	if !ok {
		return
	}

	if err := h.roomService.LeaveRoom(c.Request.Context(), userID, roomID); err != nil {
		h.writeError(c, err, "LEAVE_ROOM_FAILED")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "已退出房间"})
}

// StartGame 房主开局
func (h *RoomHandler) StartGame(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	roomID, ok := h.roomIDParam(c)
	if !ok {
		return
	}

	var req struct {
		DurationMin int `json:"duration_min" binding:"omitempty,min=5,max=240"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_REQUEST",
			Message: "请求参数错误",
		})
		return
	}

	room, err := h.roomService.StartGame(c.Request.Context(), userID, roomID,
		time.Duration(req.DurationMin)*time.Minute)
	if err != nil {
		h.writeError(c, err, "START_GAME_FAILED")
		return
	}

	c.JSON(http.StatusOK, room)
}

// GetRoom 查询房间详情
func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID, ok := h.roomIDParam(c)
	if !ok {
		return
	}

	room, err := h.roomService.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    "ROOM_NOT_FOUND",
			Message: "房间不存在",
		})
		return
	}

	c.JSON(http.StatusOK, room)
}

// ListRooms 分页查询房间
func (h *RoomHandler) ListRooms(c *gin.Context) {
	status := c.Query("status")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	rooms, err := h.roomService.ListRooms(c.Request.Context(), status, page, pageSize)
	if err != nil {
		h.writeError(c, err, "LIST_ROOMS_FAILED")
		return
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// roomIDParam 解析路径中的房间ID
func (h *RoomHandler) roomIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_ROOM_ID",
			Message: "房间ID无效",
		})
		return 0, false
	}
	return uint(id), true
}

// writeError 按错误码映射HTTP状态返回
func (h *RoomHandler) writeError(c *gin.Context, err error, code string) {
	status := http.StatusBadRequest
	if appErr, ok := err.(*apperrors.AppError); ok {
		status = appErr.HTTPStatus()
	}
	c.JSON(status, ErrorResponse{
		Code:    code,
		Message: err.Error(),
	})
}
