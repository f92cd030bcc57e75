package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/seyoonp1/running/internal/middleware"
	"github.com/seyoonp1/running/internal/service"
)

// RankingHandler 排行与跑步记录处理器
type RankingHandler struct {
	userService service.UserService
}

// NewRankingHandler 创建排行处理器
func NewRankingHandler(userService service.UserService) *RankingHandler {
	return &RankingHandler{userService: userService}
}

// Leaderboard 评分排行榜
func (h *RankingHandler) Leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	entries, err := h.userService.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "LEADERBOARD_FAILED",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

// MyRunningRecords 当前用户的跑步记录
func (h *RankingHandler) MyRunningRecords(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	records, err := h.userService.ListRunningRecords(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "LIST_RECORDS_FAILED",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": records})
}
