package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/seyoonp1/running/internal/api"
	"github.com/seyoonp1/running/internal/config"
	"github.com/seyoonp1/running/internal/database"
	"github.com/seyoonp1/running/internal/errors"
	"github.com/seyoonp1/running/internal/game/settlement"
	"github.com/seyoonp1/running/internal/game/territory"
	"github.com/seyoonp1/running/internal/logger"
	"github.com/seyoonp1/running/internal/repository"
	ws "github.com/seyoonp1/running/internal/websocket"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 服务器实例
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	hub     *ws.Hub
	manager *territory.Manager
	sweeper *settlement.Sweeper
	http    *http.Server

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	shutdownCh chan struct{}
}

func main() {
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("territory-run %s (build %s, commit %s)\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	server := NewServer(cfg)
	if err := server.Start(); err != nil {
		logger.Fatal("服务器启动失败", zap.Error(err))
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("服务器关闭失败", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("服务器已安全关闭")
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:        cfg,
		logger:     logger.GetLogger(),
		ctx:        ctx,
		cancel:     cancel,
		shutdownCh: make(chan struct{}),
	}
}

// Start 启动服务器
func (s *Server) Start() error {
	s.logger.Info("正在启动领地跑步服务器...",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode))

	if err := s.initDatabase(); err != nil {
		return err
	}

	db := database.GetDB()

	// Hub与房间管理器相互引用：先建Hub，再注入管理器
	s.hub = ws.NewHub(nil, s.logger)
	store := territory.NewGormStore(db)
	s.manager = territory.NewManager(store, s.cfg.Game, s.hub.Push)
	s.hub.SetManager(s.manager)

	go s.hub.Run()

	// 恢复进程重启前仍在进行的房间会话
	if err := s.resumeActiveRooms(); err != nil {
		return err
	}

	// 结算扫描兜底到期房间
	roomRepo := repository.NewRoomRepository(db)
	settler := settlement.NewSettler(db, s.cfg.Game.Rating)
	s.sweeper = settlement.NewSweeper(s.cfg.Game.Settlement.SweepInterval, roomRepo, settler, s.manager, s.hub.Push)
	if err := s.sweeper.Start(); err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "启动结算扫描失败")
	}

	router := api.NewRouter(db, s.cfg, s.hub, s.manager, s.logger)
	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:      router.Engine(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP服务异常退出", zap.Error(err))
		}
	}()

	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("配置已更新")
		s.cfg = newCfg
	})

	s.logger.Info("服务器启动成功",
		zap.String("http", s.http.Addr))
	return nil
}

// initDatabase 初始化数据库
func (s *Server) initDatabase() error {
	s.logger.Info("初始化数据库...")

	if err := database.Init(&s.cfg.Database); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseConnect, "初始化数据库连接失败")
	}

	if s.cfg.Database.AutoMigrate {
		s.logger.Info("执行数据库自动迁移...")
		if err := database.AutoMigrate(); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseConnect, "数据库迁移失败")
		}
	}

	if !database.IsConnected() {
		return errors.New(errors.ErrDatabaseConnect, "数据库连接检查失败")
	}

	s.logger.Info("数据库初始化完成")
	return nil
}

// resumeActiveRooms 进程启动时恢复进行中房间的会话
// 已到期的房间留给结算扫描处理。
func (s *Server) resumeActiveRooms() error {
	db := database.GetDB()
	roomRepo := repository.NewRoomRepository(db)

	rooms, err := roomRepo.List(context.Background(), "active", repository.NewPagination(1, 500))
	if err != nil {
		return errors.Wrap(err, errors.ErrDatabaseQuery, "查询进行中房间失败")
	}

	now := time.Now()
	resumed := 0
	for _, room := range rooms {
		if room.Expired(now) {
			continue
		}
		full, err := roomRepo.FindByIDWithParticipants(context.Background(), room.ID)
		if err != nil {
			s.logger.Warn("加载房间失败", zap.Uint("room_id", room.ID), zap.Error(err))
			continue
		}
		if _, err := s.manager.StartRoom(full); err != nil {
			s.logger.Warn("恢复房间会话失败", zap.Uint("room_id", room.ID), zap.Error(err))
			continue
		}
		resumed++
	}

	if resumed > 0 {
		s.logger.Info("已恢复进行中房间", zap.Int("count", resumed))
	}
	return nil
}

// WaitForShutdown 等待关闭信号
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-sigCh
	s.logger.Info("收到退出信号", zap.String("signal", sig.String()))
	close(s.shutdownCh)
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.sweeper != nil {
		s.sweeper.Stop()
	}

	if s.http != nil {
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("HTTP服务关闭异常", zap.Error(err))
		}
	}

	if s.manager != nil {
		s.manager.StopAll()
	}

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("所有服务已正常关闭")
	case <-shutdownCtx.Done():
		s.logger.Warn("关闭超时，强制退出")
		return errors.New(errors.ErrTimeout, "关闭超时")
	}

	if err := database.Close(); err != nil {
		s.logger.Error("关闭数据库失败", zap.Error(err))
	}

	if err := logger.Sync(); err != nil {
		fmt.Printf("同步日志失败: %v\n", err)
	}

	return nil
}
