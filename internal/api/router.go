package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seyoonp1/running/internal/config"
	"github.com/seyoonp1/running/internal/game/territory"
	"github.com/seyoonp1/running/internal/middleware"
	"github.com/seyoonp1/running/internal/service"
	ws "github.com/seyoonp1/running/internal/websocket"
)

// Router API路由器
type Router struct {
	engine *gin.Engine
	db     *gorm.DB
	log    *zap.Logger

	authHandler    *AuthHandler
	roomHandler    *RoomHandler
	rankingHandler *RankingHandler
	wsHandler      *WebSocketHandler
	authMiddleware *middleware.AuthMiddleware
}

// NewRouter 创建路由器
func NewRouter(db *gorm.DB, cfg *config.Config, hub *ws.Hub, manager *territory.Manager, log *zap.Logger) *Router {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())

	authService := service.NewAuthService(db, cfg.Security.JWT, cfg.Game.Rating)
	roomService := service.NewRoomService(db, manager)
	userService := service.NewUserService(db)

	router := &Router{
		engine:         engine,
		db:             db,
		log:            log,
		authHandler:    NewAuthHandler(authService, userService),
		roomHandler:    NewRoomHandler(roomService),
		rankingHandler: NewRankingHandler(userService),
		wsHandler:      NewWebSocketHandler(hub, roomService, cfg.WebSocket, log),
		authMiddleware: middleware.NewAuthMiddleware(authService),
	}

	router.setupRoutes()
	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	v1 := r.engine.Group("/api/v1")
	{
		// 认证相关路由（不需要认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
			auth.POST("/refresh", r.authHandler.RefreshToken)

			authRequired := auth.Group("")
			authRequired.Use(r.authMiddleware.RequireAuth())
			{
				authRequired.GET("/profile", r.authHandler.GetProfile)
			}
		}

		// 房间相关路由（需要认证）
		rooms := v1.Group("/rooms")
		rooms.Use(r.authMiddleware.RequireAuth())
		{
			rooms.POST("", r.roomHandler.CreateRoom)
			rooms.GET("", r.roomHandler.ListRooms)
			rooms.POST("/join", r.roomHandler.JoinRoom)
			rooms.GET("/:id", r.roomHandler.GetRoom)
			rooms.POST("/:id/leave", r.roomHandler.LeaveRoom)
			rooms.POST("/:id/start", r.roomHandler.StartGame)
			rooms.GET("/:id/ws", r.wsHandler.RoomWebSocket)
		}

		// 排行与跑步记录（需要认证）
		ranking := v1.Group("/ranking")
		ranking.Use(r.authMiddleware.RequireAuth())
		{
			ranking.GET("/leaderboard", r.rankingHandler.Leaderboard)
		}

		runs := v1.Group("/runs")
		runs.Use(r.authMiddleware.RequireAuth())
		{
			runs.GET("/mine", r.rankingHandler.MyRunningRecords)
		}
	}
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Engine 返回Gin引擎
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
